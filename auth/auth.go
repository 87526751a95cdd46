// Package auth validates the connection tokens issued by the account
// service. A connection carrying no valid token is refused before any
// protocol message is read.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity 已验证的玩家身份
type Identity struct {
	PlayerID string
	UserID   int64
}

type tokenClaims struct {
	jwt.RegisteredClaims
	PlayerID string `json:"player_id"`
	UserID   int64  `json:"user_id"`
}

// Validator verifies HS256 tokens against a shared secret and issuer.
type Validator struct {
	secret []byte
	issuer string
}

func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and verifies a token string, returning the identity
// bound to the connection. Expired, malformed, or mis-issued tokens fail.
func (v *Validator) ValidateToken(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingToken
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.PlayerID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{PlayerID: claims.PlayerID, UserID: claims.UserID}, nil
}

// IssueToken signs a token for a player. The live server never issues
// tokens itself; this exists for the demo client and tests.
func (v *Validator) IssueToken(playerID string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		PlayerID: playerID,
		UserID:   userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
