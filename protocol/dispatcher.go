package protocol

import (
	"encoding/json"
	"time"

	"github.com/meeplelab/tileserver/broadcast"
	"github.com/meeplelab/tileserver/game"
	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/models"
	"github.com/meeplelab/tileserver/session"
)

// 规则违例统一回给整个主题的错误文案
const invalidMoveMessage = "Invalid move or not your turn"

// Store 协议层需要的持久化接口：异步、best-effort，无返回值
type Store interface {
	UpdateGameStatus(gameID, status string)
	SaveGameRecord(record *models.GameRecord)
}

// Dispatcher 校验入站消息、驱动对局状态机并产出广播。
// 对局内的互斥由 game.Game 自己的锁保证；广播和落库都发生在锁外。
// 规则违例不会中断连接，只会变成发到对局主题的 error 广播。
type Dispatcher struct {
	registry    *game.Registry
	broadcaster broadcast.Broadcaster
	store       Store
}

func NewDispatcher(registry *game.Registry, broadcaster broadcast.Broadcaster, store Store) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		broadcaster: broadcaster,
		store:       store,
	}
}

// Handle processes one raw inbound frame from a session.
func (d *Dispatcher) Handle(sess *session.Session, raw []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.sendError(sess, "bad json")
		return
	}
	if msg.GameID == "" || msg.Player == "" {
		d.sendError(sess, "missing gameId or player")
		return
	}

	switch msg.Type {
	case MsgJoinGame:
		d.handleJoinGame(sess, msg)
	case MsgPlaceTile:
		d.handlePlaceTile(sess, msg)
	case MsgPlaceMeeple:
		d.handlePlaceMeeple(sess, msg)
	case MsgStartGame:
		d.handleStartGame(sess, msg)
	case MsgEndGame:
		d.handleEndGame(sess, msg)
	default:
		d.sendError(sess, "unknown message type")
	}
}

// handleJoinGame 加入对局。重复加入同名玩家是幂等的
func (d *Dispatcher) handleJoinGame(sess *session.Session, msg InboundMessage) {
	g := d.registry.GetOrCreate(msg.GameID)
	sess.Subscribe(msg.GameID)

	if !g.HasPlayer(msg.Player) {
		if err := g.AddPlayer(game.NewPlayer(msg.Player)); err != nil {
			d.broadcastError(msg.GameID, err.Error())
			return
		}
	}

	current, err := g.CurrentPlayer()
	if err != nil {
		// Unreachable after a successful join, but never crash the session.
		d.broadcastError(msg.GameID, err.Error())
		return
	}

	d.broadcastJSON(msg.GameID, PlayerJoined{
		Type:          EvtPlayerJoined,
		Player:        msg.Player,
		Players:       g.PlayerIDs(),
		CurrentPlayer: current.ID,
	})
}

// handlePlaceTile 放置板块。对局不存在、未开始、或者不是该玩家的回合，
// 都广播统一的 error 文案（主题内所有订阅者可见，保留原有行为）
func (d *Dispatcher) handlePlaceTile(sess *session.Session, msg InboundMessage) {
	g, exists := d.registry.Get(msg.GameID)
	if !exists || msg.Tile == nil {
		d.broadcastError(msg.GameID, invalidMoveMessage)
		return
	}

	placed, next, err := g.PlaceTile(
		msg.Player,
		*msg.Tile,
		game.Position{X: msg.X, Y: msg.Y},
		game.Rotation(msg.Rotation),
	)
	if err != nil {
		d.broadcastError(msg.GameID, invalidMoveMessage)
		return
	}

	nextID := ""
	if next != nil {
		nextID = next.ID
	}
	d.broadcastJSON(msg.GameID, BoardUpdate{
		Type:       EvtBoardUpdate,
		Tile:       placed,
		Player:     msg.Player,
		NextPlayer: nextID,
	})
}

func (d *Dispatcher) handlePlaceMeeple(sess *session.Session, msg InboundMessage) {
	g, exists := d.registry.Get(msg.GameID)
	if !exists {
		d.broadcastError(msg.GameID, invalidMoveMessage)
		return
	}

	meeple, remaining, err := g.PlaceMeeple(
		msg.Player,
		game.MeepleType(msg.MeepleType),
		msg.TileID,
		game.EdgePosition(msg.Edge),
	)
	if err != nil {
		d.broadcastError(msg.GameID, invalidMoveMessage)
		return
	}

	d.broadcastJSON(msg.GameID, MeeplePlaced{
		Type:             EvtMeeplePlaced,
		Player:           msg.Player,
		Meeple:           meeple,
		RemainingMeeples: remaining,
	})
}

// handleStartGame 开始对局。状态落库是异步 best-effort 的，
// 存储故障不回滚也不阻塞内存状态
func (d *Dispatcher) handleStartGame(sess *session.Session, msg InboundMessage) {
	g := d.registry.GetOrCreate(msg.GameID)
	sess.Subscribe(msg.GameID)

	if err := g.StartGame(); err != nil {
		d.broadcastError(msg.GameID, err.Error())
		return
	}

	d.store.UpdateGameStatus(msg.GameID, game.StatusInProgress.String())
	d.broadcastJSON(msg.GameID, GameStarted{
		Type:   EvtGameStarted,
		GameID: msg.GameID,
	})
}

// handleEndGame 结束对局并结算。胜者为分数严格最高者，平分时先加入者胜
func (d *Dispatcher) handleEndGame(sess *session.Session, msg InboundMessage) {
	g, exists := d.registry.Get(msg.GameID)
	if !exists {
		d.broadcastError(msg.GameID, "game not found")
		return
	}

	winner, scores := g.FinishGame()
	winnerID := ""
	if winner != nil {
		winnerID = winner.ID
	}

	d.store.UpdateGameStatus(msg.GameID, game.StatusFinished.String())
	d.store.SaveGameRecord(buildGameRecord(msg.GameID, winnerID, scores, g.Snapshot().Moves))

	d.broadcastJSON(msg.GameID, GameOver{
		Type:   EvtGameOver,
		Winner: winnerID,
		Scores: scores,
	})
}

func buildGameRecord(gameID, winner string, scores []game.PlayerScore, moves int) *models.GameRecord {
	record := &models.GameRecord{
		GameID:    gameID,
		Winner:    winner,
		Moves:     moves,
		CreatedAt: time.Now(),
	}
	for _, s := range scores {
		outcome := "lose"
		if s.Player == winner {
			outcome = "win"
		}
		record.Players = append(record.Players, models.PlayerResult{
			PlayerID: s.Player,
			Score:    s.Score,
			Outcome:  outcome,
		})
	}
	return record
}

func (d *Dispatcher) broadcastJSON(gameID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("marshal broadcast for game %s: %v", gameID, err)
		return
	}
	if err := d.broadcaster.BroadcastToGame(gameID, data); err != nil {
		logger.Log.Warnf("broadcast to game %s failed: %v", gameID, err)
	}
}

func (d *Dispatcher) broadcastError(gameID, message string) {
	d.broadcastJSON(gameID, ErrorMessage{Type: EvtError, Message: message})
}

// sendError 只回给发送方，用于还没解析出 gameID 的帧
func (d *Dispatcher) sendError(sess *session.Session, message string) {
	data, err := json.Marshal(ErrorMessage{Type: EvtError, Message: message})
	if err != nil {
		return
	}
	if err := sess.Send(data); err != nil {
		logger.Log.Warnf("send error to session %s failed: %v", sess.GetID(), err)
	}
}
