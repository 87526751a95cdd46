package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status 表示对局的业务状态
type Status int

const (
	StatusWaiting Status = iota
	StatusInProgress
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "WAITING"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusFinished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

const (
	MaxPlayers      = 4
	MinPlayers      = 2
	StartingMeeples = 7
)

var (
	ErrGameStartedOrFull = errors.New("game already started or full")
	ErrNotEnoughPlayers  = errors.New("at least 2 players required")
	ErrEmptyGame         = errors.New("no players in game")
	ErrNotInProgress     = errors.New("game is not in progress")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrDeckEmpty         = errors.New("tile deck is empty")
	ErrNoMeeples         = errors.New("no meeples remaining")
	ErrTileNotFound      = errors.New("tile not found on board")
	ErrBadPlacement      = errors.New("invalid placement")
)

// Player 玩家。加入顺序即回合顺序
type Player struct {
	ID               string `json:"id"`
	Score            int    `json:"score"`
	RemainingMeeples int    `json:"remainingMeeples"`
	LinkedUserID     *int64 `json:"linkedUserId,omitempty"`
}

func NewPlayer(id string) *Player {
	return &Player{ID: id, RemainingMeeples: StartingMeeples}
}

// MoveEntry is one append-only move-log record.
type MoveEntry struct {
	Turn      int       `json:"turn"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerScore pairs a player ID with its score for settlement payloads.
type PlayerScore struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
}

// Game 是一局游戏的核心结构：玩家、棋盘、牌堆、回合指针。
// 所有修改方法内部持有 g.mu，保证单局内的串行化；不同对局互不竞争。
// 锁内不做任何网络 IO，广播与持久化由调用方在锁释放后进行。
type Game struct {
	GameID    string
	CreatedAt time.Time

	mu                 sync.Mutex
	status             Status
	players            []*Player
	board              map[Position]*PlacedTile
	tileDeck           []TileTemplate
	meeples            []*Meeple
	currentPlayerIndex int
	moveLog            []MoveEntry
}

// NewGame 创建一局新游戏，牌堆由 seed 决定
func NewGame(gameID string, seed int64) *Game {
	return &Game{
		GameID:    gameID,
		CreatedAt: time.Now(),
		status:    StatusWaiting,
		board:     make(map[Position]*PlacedTile),
		tileDeck:  NewShuffledDeck(seed),
	}
}

// AddPlayer appends a player to the turn order. Only legal while the game is
// waiting and has room.
func (g *Game) AddPlayer(p *Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting || len(g.players) >= MaxPlayers {
		return ErrGameStartedOrFull
	}
	g.players = append(g.players, p)
	return nil
}

// HasPlayer reports whether a player with the given ID already joined.
func (g *Game) HasPlayer(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.findPlayer(playerID) != nil
}

// StartGame transitions WAITING -> IN_PROGRESS. Requires at least two
// players. Transitions never regress.
func (g *Game) StartGame() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting {
		return ErrGameStartedOrFull
	}
	if len(g.players) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	g.status = StatusInProgress
	g.appendMove("game_started")
	return nil
}

// CurrentPlayer returns the player whose turn it is.
func (g *Game) CurrentPlayer() (*Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentPlayerLocked()
}

// AdvanceTurn moves the turn pointer to the next player, wrapping around.
// With a single player this is a no-op by design.
func (g *Game) AdvanceTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceTurnLocked()
}

// PlaceTile records a tile on the board for the requesting player, appends a
// move-log entry, consumes the deck front when available, and advances the
// turn. The turn-ownership check happens here, under the same lock as the
// mutation, so racing placements cannot both succeed.
// Placement legality (adjacency etc.) is not checked: any position is
// accepted, overwriting an occupant is the caller's problem.
func (g *Game) PlaceTile(requestingPlayer string, tpl TileTemplate, pos Position, rot Rotation) (*PlacedTile, *Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusInProgress {
		return nil, nil, ErrNotInProgress
	}
	current, err := g.currentPlayerLocked()
	if err != nil {
		return nil, nil, err
	}
	if current.ID != requestingPlayer {
		return nil, nil, ErrNotYourTurn
	}
	if !rot.Valid() {
		return nil, nil, ErrBadPlacement
	}

	placed := &PlacedTile{
		ID:           uuid.New().String(),
		TileTemplate: tpl,
		Position:     pos,
		Rotation:     rot,
	}
	g.board[pos] = placed
	if len(g.tileDeck) > 0 {
		g.tileDeck = g.tileDeck[1:]
	}
	g.appendMove("tile_placed")
	g.advanceTurnLocked()

	next, _ := g.currentPlayerLocked()
	return placed, next, nil
}

// PlaceMeeple puts one of the requesting player's meeples on a placed tile.
// The player must be seated but need not hold the turn: the meeple goes on
// the tile just placed, after the turn pointer has already advanced.
func (g *Game) PlaceMeeple(requestingPlayer string, mt MeepleType, tileID string, edge EdgePosition) (*Meeple, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusInProgress {
		return nil, 0, ErrNotInProgress
	}
	if !mt.Valid() || !edge.Valid() {
		return nil, 0, ErrBadPlacement
	}
	player := g.findPlayer(requestingPlayer)
	if player == nil {
		return nil, 0, ErrNotYourTurn
	}
	if player.RemainingMeeples <= 0 {
		return nil, 0, ErrNoMeeples
	}
	if !g.tileOnBoard(tileID) {
		return nil, 0, ErrTileNotFound
	}

	meeple := &Meeple{
		ID:            uuid.New().String(),
		OwnerPlayerID: player.ID,
		Type:          mt,
		TileID:        tileID,
		Edge:          edge,
	}
	g.meeples = append(g.meeples, meeple)
	player.RemainingMeeples--
	g.appendMove("meeple_placed")
	return meeple, player.RemainingMeeples, nil
}

// DrawTile pops the front of the deck.
func (g *Game) DrawTile() (TileTemplate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.tileDeck) == 0 {
		return TileTemplate{}, ErrDeckEmpty
	}
	tile := g.tileDeck[0]
	g.tileDeck = g.tileDeck[1:]
	return tile, nil
}

// FinishGame transitions to FINISHED unconditionally and settles the game.
// The winner is the player with the strictly highest score; on a tie the
// first-joined of the tied players wins. Returns nil winner for an empty
// game.
func (g *Game) FinishGame() (*Player, []PlayerScore) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusFinished {
		g.status = StatusFinished
		g.appendMove("game_over")
	}

	var winner *Player
	scores := make([]PlayerScore, 0, len(g.players))
	for _, p := range g.players {
		scores = append(scores, PlayerScore{Player: p.ID, Score: p.Score})
		if winner == nil || p.Score > winner.Score {
			winner = p
		}
	}
	return winner, scores
}

// CalculateScore 计分占位实现，规则计分不在本服务范围内
func (g *Game) CalculateScore(p *Player) int {
	return 0
}

// AddScore bumps a player's score, used by settlement collaborators.
func (g *Game) AddScore(playerID string, points int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.findPlayer(playerID); p != nil {
		p.Score += points
	}
}

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// PlayerIDs returns player IDs in turn order.
func (g *Game) PlayerIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.players))
	for _, p := range g.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// Snapshot is a consistent read-only view of a game for lookups.
type Snapshot struct {
	GameID        string        `json:"gameId"`
	Status        string        `json:"status"`
	Players       []PlayerScore `json:"players"`
	CurrentPlayer string        `json:"currentPlayer,omitempty"`
	Board         []*PlacedTile `json:"board"`
	DeckRemaining int           `json:"deckRemaining"`
	Moves         int           `json:"moves"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Snapshot copies the visible state under the session lock so readers never
// observe a half-applied mutation.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := Snapshot{
		GameID:        g.GameID,
		Status:        g.status.String(),
		Players:       make([]PlayerScore, 0, len(g.players)),
		Board:         make([]*PlacedTile, 0, len(g.board)),
		DeckRemaining: len(g.tileDeck),
		Moves:         len(g.moveLog),
		CreatedAt:     g.CreatedAt,
	}
	for _, p := range g.players {
		snap.Players = append(snap.Players, PlayerScore{Player: p.ID, Score: p.Score})
	}
	if current, err := g.currentPlayerLocked(); err == nil {
		snap.CurrentPlayer = current.ID
	}
	for _, tile := range g.board {
		copied := *tile
		snap.Board = append(snap.Board, &copied)
	}
	return snap
}

// --- internal, caller must hold g.mu ---

func (g *Game) currentPlayerLocked() (*Player, error) {
	if len(g.players) == 0 {
		return nil, ErrEmptyGame
	}
	return g.players[g.currentPlayerIndex], nil
}

func (g *Game) advanceTurnLocked() {
	if len(g.players) == 0 {
		return
	}
	g.currentPlayerIndex = (g.currentPlayerIndex + 1) % len(g.players)
}

func (g *Game) findPlayer(playerID string) *Player {
	for _, p := range g.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (g *Game) tileOnBoard(tileID string) bool {
	for _, tile := range g.board {
		if tile.ID == tileID {
			return true
		}
	}
	return false
}

func (g *Game) appendMove(action string) {
	g.moveLog = append(g.moveLog, MoveEntry{
		Turn:      len(g.moveLog) + 1,
		Action:    action,
		Timestamp: time.Now(),
	})
}
