// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/meeplelab/tileserver/network"
)

// Session 是一条已认证的连接。PlayerID 来自连接授权，GameID 是该连接
// 订阅的对局主题（game/{gameID}），加入对局时设置。
type Session struct {
	ID        string
	Conn      network.Connection
	PlayerID  string
	UserID    int64
	CreatedAt time.Time

	mutex      sync.RWMutex
	gameID     string
	lastActive time.Time
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Subscribe binds the session to a game topic.
func (s *Session) Subscribe(gameID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.gameID = gameID
}

func (s *Session) GameID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.gameID
}

// Touch records activity, read by the idle sweeper.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(data []byte) error {
	s.Touch()
	return s.Conn.Send(data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByGameID returns every session subscribed to a game's topic.
func (m *Manager) GetByGameID(gameID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.GameID() == gameID {
			result = append(result, session)
		}
	}
	return result
}

// GetByPlayerID returns the sessions of one player (a player may reconnect
// and briefly hold more than one).
func (m *Manager) GetByPlayerID(playerID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.PlayerID == playerID {
			result = append(result, session)
		}
	}
	return result
}

// All returns a snapshot slice of every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// IdleSince returns sessions with no activity after the cutoff.
func (m *Manager) IdleSince(cutoff time.Time) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.LastActive().Before(cutoff) {
			result = append(result, session)
		}
	}
	return result
}
