package protocol

import (
	"github.com/meeplelab/tileserver/game"
)

// MessageType 入站消息类型（封闭集合）
type MessageType string

const (
	MsgJoinGame    MessageType = "join_game"
	MsgPlaceTile   MessageType = "place_tile"
	MsgPlaceMeeple MessageType = "place_meeple"
	MsgStartGame   MessageType = "start_game"
	MsgEndGame     MessageType = "end_game"
)

// InboundMessage 客户端发来的一条协议消息
type InboundMessage struct {
	Type   MessageType        `json:"type"`
	GameID string             `json:"gameId"`
	Player string             `json:"player"`
	Tile   *game.TileTemplate `json:"tile,omitempty"`

	// place_tile only
	X        int `json:"x"`
	Y        int `json:"y"`
	Rotation int `json:"rotation"`

	// place_meeple only
	MeepleType string `json:"meepleType,omitempty"`
	TileID     string `json:"tileId,omitempty"`
	Edge       string `json:"edge,omitempty"`
}

// EventType 广播消息类型（封闭集合）
type EventType string

const (
	EvtPlayerJoined EventType = "player_joined"
	EvtBoardUpdate  EventType = "board_update"
	EvtMeeplePlaced EventType = "meeple_placed"
	EvtError        EventType = "error"
	EvtGameStarted  EventType = "game_started"
	EvtGameOver     EventType = "game_over"
)

type PlayerJoined struct {
	Type          EventType `json:"type"`
	Player        string    `json:"player"`
	Players       []string  `json:"players"`
	CurrentPlayer string    `json:"currentPlayer"`
}

type BoardUpdate struct {
	Type       EventType        `json:"type"`
	Tile       *game.PlacedTile `json:"tile"`
	Player     string           `json:"player"`
	NextPlayer string           `json:"nextPlayer"`
}

type MeeplePlaced struct {
	Type             EventType    `json:"type"`
	Player           string       `json:"player"`
	Meeple           *game.Meeple `json:"meeple"`
	RemainingMeeples int          `json:"remainingMeeples"`
}

type ErrorMessage struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

type GameStarted struct {
	Type   EventType `json:"type"`
	GameID string    `json:"gameId"`
}

type GameOver struct {
	Type   EventType          `json:"type"`
	Winner string             `json:"winner"`
	Scores []game.PlayerScore `json:"scores"`
}
