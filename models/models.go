// models/models.go
package models

import (
	"time"
)

// GameState 写入持久层的对局状态快照
type GameState struct {
	GameID    string    `json:"game_id"`
	Status    string    `json:"status"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerResult 游戏记录中的单个玩家结果
type PlayerResult struct {
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
	Outcome  string `json:"outcome"` // win/lose/draw
}

// GameRecord 一局结束后的结算记录
type GameRecord struct {
	GameID    string         `json:"game_id"`
	Winner    string         `json:"winner"`
	Players   []PlayerResult `json:"players"`
	Moves     int            `json:"moves"`
	CreatedAt time.Time      `json:"created_at"`
}
