// broadcast/broadcast.go
package broadcast

import (
	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/session"
)

// 广播接口。主题按 gameID 划分：只有订阅了该对局的连接收到消息
type Broadcaster interface {
	BroadcastToGame(gameID string, data []byte) error
	BroadcastToAll(data []byte) error
}

// GameBroadcaster 基于会话订阅的广播器
type GameBroadcaster struct {
	sessionManager *session.Manager
}

func NewGameBroadcaster(sessionManager *session.Manager) *GameBroadcaster {
	return &GameBroadcaster{sessionManager: sessionManager}
}

// BroadcastToGame delivers a payload to every subscriber of game/{gameID}.
// A game with no subscribers is not an error. Send failures are logged and
// skipped; the dead connection is reaped by its own read loop.
func (b *GameBroadcaster) BroadcastToGame(gameID string, data []byte) error {
	for _, s := range b.sessionManager.GetByGameID(gameID) {
		if err := s.Send(data); err != nil {
			logger.Log.Warnf("broadcast to session %s failed: %v", s.GetID(), err)
			continue
		}
	}
	return nil
}

// BroadcastToAll delivers a payload to every connected session, used for
// server-wide notices.
func (b *GameBroadcaster) BroadcastToAll(data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(data); err != nil {
			logger.Log.Warnf("broadcast to session %s failed: %v", s.GetID(), err)
			continue
		}
	}
	return nil
}
