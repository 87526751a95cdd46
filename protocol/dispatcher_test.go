package protocol

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/meeplelab/tileserver/game"
	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/models"
	"github.com/meeplelab/tileserver/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mu   sync.Mutex
	sent [][]byte
}

func (m *MockConnection) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}
func (m *MockConnection) ReadMessage() ([]byte, error)        { return nil, nil }
func (m *MockConnection) Close() error                        { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

// MockBroadcaster captures per-game broadcasts, thread-safe.
type MockBroadcaster struct {
	mu     sync.Mutex
	byGame map[string][][]byte
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{byGame: make(map[string][][]byte)}
}

func (m *MockBroadcaster) BroadcastToGame(gameID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byGame[gameID] = append(m.byGame[gameID], data)
	return nil
}

func (m *MockBroadcaster) BroadcastToAll(data []byte) error { return nil }

// payloads decodes every broadcast for a game into generic maps.
func (m *MockBroadcaster) payloads(t *testing.T, gameID string) []map[string]interface{} {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []map[string]interface{}
	for _, data := range m.byGame[gameID] {
		var payload map[string]interface{}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("broadcast is not valid JSON: %v", err)
		}
		result = append(result, payload)
	}
	return result
}

// countByType tallies broadcast payloads per message type.
func (m *MockBroadcaster) countByType(t *testing.T, gameID string) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for _, payload := range m.payloads(t, gameID) {
		counts[payload["type"].(string)]++
	}
	return counts
}

// MockStore records persistence hand-offs.
type MockStore struct {
	mu       sync.Mutex
	statuses []string
	records  []*models.GameRecord
}

func (m *MockStore) UpdateGameStatus(gameID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, gameID+":"+status)
}

func (m *MockStore) SaveGameRecord(record *models.GameRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
}

func newTestDispatcher() (*Dispatcher, *game.Registry, *MockBroadcaster, *MockStore) {
	registry := game.NewRegistry(1)
	broadcaster := NewMockBroadcaster()
	store := &MockStore{}
	return NewDispatcher(registry, broadcaster, store), registry, broadcaster, store
}

func newTestSession() *session.Session {
	return session.NewSession("test_session", &MockConnection{})
}

func frame(t *testing.T, msg InboundMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal inbound message: %v", err)
	}
	return data
}

var cityTile = &game.TileTemplate{
	North: game.TerrainCity, East: game.TerrainCity,
	South: game.TerrainCity, West: game.TerrainCity,
}

func TestDispatcher_JoinGame_TwoPlayers(t *testing.T) {
	d, _, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))

	payloads := broadcaster.payloads(t, "G1")
	if len(payloads) != 2 {
		t.Fatalf("expected 2 player_joined broadcasts, got %d", len(payloads))
	}
	for _, p := range payloads {
		if p["type"] != "player_joined" {
			t.Fatalf("expected player_joined, got %v", p["type"])
		}
	}

	last := payloads[1]
	players := last["players"].([]interface{})
	if len(players) != 2 || players[0] != "Alice" || players[1] != "Bob" {
		t.Errorf("expected players [Alice Bob], got %v", players)
	}
	if last["currentPlayer"] != "Alice" {
		t.Errorf("expected currentPlayer Alice, got %v", last["currentPlayer"])
	}
	if sess.GameID() != "G1" {
		t.Errorf("join should subscribe the session to the game topic, got %q", sess.GameID())
	}
}

func TestDispatcher_JoinGame_Idempotent(t *testing.T) {
	d, registry, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))

	g, _ := registry.Get("G1")
	if ids := g.PlayerIDs(); len(ids) != 1 {
		t.Fatalf("repeated join must not duplicate the player, got %v", ids)
	}

	// Both joins still broadcast the roster.
	if got := len(broadcaster.payloads(t, "G1")); got != 2 {
		t.Errorf("expected 2 broadcasts, got %d", got)
	}
}

func TestDispatcher_StartGame(t *testing.T) {
	d, registry, broadcaster, store := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgStartGame, GameID: "G1", Player: "Alice"}))

	g, _ := registry.Get("G1")
	if g.Status() != game.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %v", g.Status())
	}

	counts := broadcaster.countByType(t, "G1")
	if counts["game_started"] != 1 {
		t.Errorf("expected 1 game_started broadcast, got %d", counts["game_started"])
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.statuses) != 1 || store.statuses[0] != "G1:IN_PROGRESS" {
		t.Errorf("expected status hand-off G1:IN_PROGRESS, got %v", store.statuses)
	}
}

func TestDispatcher_StartGame_NotEnoughPlayers(t *testing.T) {
	d, registry, broadcaster, store := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgStartGame, GameID: "G1", Player: "Alice"}))

	g, _ := registry.Get("G1")
	if g.Status() != game.StatusWaiting {
		t.Fatalf("expected WAITING, got %v", g.Status())
	}
	counts := broadcaster.countByType(t, "G1")
	if counts["error"] != 1 || counts["game_started"] != 0 {
		t.Errorf("expected exactly one error broadcast, got %v", counts)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.statuses) != 0 {
		t.Errorf("rejected start must not persist a status, got %v", store.statuses)
	}
}

func TestDispatcher_PlaceTile_WrongTurn(t *testing.T) {
	d, registry, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgStartGame, GameID: "G1", Player: "Alice"}))

	d.Handle(sess, frame(t, InboundMessage{
		Type: MsgPlaceTile, GameID: "G1", Player: "Bob", Tile: cityTile, X: 0, Y: 0,
	}))

	payloads := broadcaster.payloads(t, "G1")
	last := payloads[len(payloads)-1]
	if last["type"] != "error" {
		t.Fatalf("expected error broadcast, got %v", last["type"])
	}
	if last["message"] != "Invalid move or not your turn" {
		t.Errorf("unexpected error message: %v", last["message"])
	}

	g, _ := registry.Get("G1")
	if snap := g.Snapshot(); len(snap.Board) != 0 {
		t.Errorf("rejected placement must leave the board unchanged, got %d tiles", len(snap.Board))
	}
}

func TestDispatcher_PlaceTile_Success(t *testing.T) {
	d, _, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgStartGame, GameID: "G1", Player: "Alice"}))

	d.Handle(sess, frame(t, InboundMessage{
		Type: MsgPlaceTile, GameID: "G1", Player: "Alice", Tile: cityTile, X: 2, Y: 3, Rotation: 90,
	}))

	payloads := broadcaster.payloads(t, "G1")
	last := payloads[len(payloads)-1]
	if last["type"] != "board_update" {
		t.Fatalf("expected board_update, got %v", last["type"])
	}
	if last["player"] != "Alice" || last["nextPlayer"] != "Bob" {
		t.Errorf("expected Alice -> Bob, got player=%v nextPlayer=%v", last["player"], last["nextPlayer"])
	}
}

func TestDispatcher_PlaceTile_UnknownGame(t *testing.T) {
	d, _, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{
		Type: MsgPlaceTile, GameID: "NOPE", Player: "Alice", Tile: cityTile,
	}))

	counts := broadcaster.countByType(t, "NOPE")
	if counts["error"] != 1 {
		t.Fatalf("expected an error broadcast for an unknown game, got %v", counts)
	}
}

func TestDispatcher_EndGame_WinnerAndScores(t *testing.T) {
	d, registry, broadcaster, store := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))

	g, _ := registry.Get("G1")
	g.AddScore("Alice", 10)
	g.AddScore("Bob", 5)

	d.Handle(sess, frame(t, InboundMessage{Type: MsgEndGame, GameID: "G1", Player: "Alice"}))

	payloads := broadcaster.payloads(t, "G1")
	last := payloads[len(payloads)-1]
	if last["type"] != "game_over" {
		t.Fatalf("expected game_over, got %v", last["type"])
	}
	if last["winner"] != "Alice" {
		t.Errorf("expected winner Alice, got %v", last["winner"])
	}

	scores := last["scores"].([]interface{})
	if len(scores) != 2 {
		t.Fatalf("expected scores for every player, got %d", len(scores))
	}
	first := scores[0].(map[string]interface{})
	second := scores[1].(map[string]interface{})
	if first["player"] != "Alice" || first["score"].(float64) != 10 {
		t.Errorf("unexpected first score entry: %v", first)
	}
	if second["player"] != "Bob" || second["score"].(float64) != 5 {
		t.Errorf("unexpected second score entry: %v", second)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.records) != 1 || store.records[0].Winner != "Alice" {
		t.Errorf("expected a settlement record for Alice, got %+v", store.records)
	}
}

func TestDispatcher_EndGame_UnknownGame(t *testing.T) {
	d, _, broadcaster, store := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgEndGame, GameID: "NOPE", Player: "Alice"}))

	counts := broadcaster.countByType(t, "NOPE")
	if counts["error"] != 1 {
		t.Fatalf("expected an error broadcast, got %v", counts)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.records) != 0 {
		t.Errorf("unknown game must not produce a record, got %+v", store.records)
	}
}

func TestDispatcher_PlaceMeeple(t *testing.T) {
	d, registry, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgStartGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{
		Type: MsgPlaceTile, GameID: "G1", Player: "Alice", Tile: cityTile,
	}))

	g, _ := registry.Get("G1")
	tileID := g.Snapshot().Board[0].ID

	d.Handle(sess, frame(t, InboundMessage{
		Type: MsgPlaceMeeple, GameID: "G1", Player: "Alice",
		MeepleType: "KNIGHT", TileID: tileID, Edge: "N",
	}))

	payloads := broadcaster.payloads(t, "G1")
	last := payloads[len(payloads)-1]
	if last["type"] != "meeple_placed" {
		t.Fatalf("expected meeple_placed, got %v", last["type"])
	}
	if last["remainingMeeples"].(float64) != 6 {
		t.Errorf("expected 6 meeples remaining, got %v", last["remainingMeeples"])
	}
}

func TestDispatcher_BadJSON_RepliesToSenderOnly(t *testing.T) {
	d, _, broadcaster, _ := newTestDispatcher()
	conn := &MockConnection{}
	sess := session.NewSession("s1", conn)

	d.Handle(sess, []byte("{not json"))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.sent) != 1 {
		t.Fatalf("expected 1 direct reply, got %d", len(conn.sent))
	}
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if len(broadcaster.byGame) != 0 {
		t.Error("bad json must not produce a topic broadcast")
	}
}

// One in-progress game, one message from the current player and many from a
// player with no seat: exactly one placement lands, everything else turns
// into an error broadcast, and the turn pointer is consistent afterwards.
func TestDispatcher_ConcurrentPlaceTile(t *testing.T) {
	d, registry, broadcaster, _ := newTestDispatcher()
	sess := newTestSession()

	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Alice"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgJoinGame, GameID: "G1", Player: "Bob"}))
	d.Handle(sess, frame(t, InboundMessage{Type: MsgStartGame, GameID: "G1", Player: "Alice"}))

	const intruders = 15
	var wg sync.WaitGroup
	wg.Add(intruders + 1)

	go func() {
		defer wg.Done()
		d.Handle(newTestSession(), frame(t, InboundMessage{
			Type: MsgPlaceTile, GameID: "G1", Player: "Alice", Tile: cityTile, X: 1, Y: 1,
		}))
	}()
	for i := 0; i < intruders; i++ {
		go func(i int) {
			defer wg.Done()
			d.Handle(newTestSession(), frame(t, InboundMessage{
				Type: MsgPlaceTile, GameID: "G1", Player: fmt.Sprintf("mallory%d", i),
				Tile: cityTile, X: i, Y: -i,
			}))
		}(i)
	}
	wg.Wait()

	counts := broadcaster.countByType(t, "G1")
	if counts["board_update"] != 1 {
		t.Errorf("expected exactly 1 board_update, got %d", counts["board_update"])
	}
	if counts["error"] != intruders {
		t.Errorf("expected %d error broadcasts, got %d", intruders, counts["error"])
	}

	g, _ := registry.Get("G1")
	snap := g.Snapshot()
	if len(snap.Board) != 1 {
		t.Errorf("expected exactly 1 tile on the board, got %d", len(snap.Board))
	}
	if snap.CurrentPlayer != "Bob" {
		t.Errorf("turn should have advanced exactly once to Bob, got %s", snap.CurrentPlayer)
	}
}
