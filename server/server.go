package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meeplelab/tileserver/auth"
	"github.com/meeplelab/tileserver/broadcast"
	"github.com/meeplelab/tileserver/config"
	"github.com/meeplelab/tileserver/game"
	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/monitor"
	"github.com/meeplelab/tileserver/network"
	"github.com/meeplelab/tileserver/persistence"
	"github.com/meeplelab/tileserver/protocol"
	gsrpc "github.com/meeplelab/tileserver/rpc"
	"github.com/meeplelab/tileserver/session"
	"github.com/meeplelab/tileserver/timer"
)

// broadcastCounter is the slice of the monitor the broadcaster needs.
type broadcastCounter interface {
	IncBroadcastsSent()
}

// monitoredBroadcaster counts every topic broadcast before delivering it.
type monitoredBroadcaster struct {
	broadcast.Broadcaster
	counter broadcastCounter
}

func (b *monitoredBroadcaster) BroadcastToGame(gameID string, data []byte) error {
	b.counter.IncBroadcastsSent()
	return b.Broadcaster.BroadcastToGame(gameID, data)
}

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	registry       *game.Registry
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	dispatcher     *protocol.Dispatcher
	validator      *auth.Validator
	writer         *persistence.AsyncWriter
	monitor        *monitor.Monitor
	timers         *timer.Manager
	rpcServer      *gsrpc.Server
	router         chi.Router
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, db persistence.Database) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		registry:       game.NewRegistry(cfg.Game.DeckSeed),
		sessionManager: session.NewManager(),
		validator:      auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer),
		writer:         persistence.NewAsyncWriter(db),
		monitor:        monitor.NewMonitor("tileserver"),
		timers:         timer.NewManager(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = &monitoredBroadcaster{
		Broadcaster: broadcast.NewGameBroadcaster(s.sessionManager),
		counter:     s.monitor,
	}
	s.dispatcher = protocol.NewDispatcher(s.registry, s.broadcaster, s.writer)

	// 初始化RPC服务器
	rpcServer, err := gsrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(gsrpc.NewGameService(s.registry, db))

	s.router = s.setupRoutes()
	return s
}

func (s *GameServer) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWebSocket)
	r.Get("/games/{gameID}", s.handleGetGame)
	r.Post("/games", s.handleCreateGame)
	r.Get("/healthz", s.handleHealthz)
	return r
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MonitorAddress)

	// 周期清理空闲连接
	if s.cfg.Game.IdleTimeout > 0 {
		s.timers.AddTimer(s.cfg.Game.IdleTimeout, s.cfg.Game.IdleTimeout, s.sweepIdleSessions)
	}

	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, s.router)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
	s.writer.Close()
}

// Handler exposes the HTTP routes, for tests.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

// handleWebSocket 校验连接令牌后升级连接并进入读循环。
// 令牌无效的连接直接拒绝，不会产生会话
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.validator.ValidateToken(bearerToken(r))
	if err != nil {
		logger.Log.Warnf("Rejected connection from %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, identity)
}

// bearerToken reads the token from the Authorization header or, for browser
// clients that cannot set headers on WebSocket dials, the query string.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *GameServer) handleConnection(conn *websocket.Conn, identity auth.Identity) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	sess.PlayerID = identity.PlayerID
	sess.UserID = identity.UserID
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, player %s, session ID: %s",
		wsConn.RemoteAddr(), identity.PlayerID, sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			start := time.Now()
			s.monitor.IncMessagesReceived()
			s.dispatcher.Handle(sess, data)
			s.monitor.ObserveMessageLatency(time.Since(start))
			s.monitor.SetActiveGames(s.registry.Count())
		}
	}
}

// handleGetGame 只读快照查询。对局不存在时按加入语义懒创建
func (s *GameServer) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		http.Error(w, "missing gameID", http.StatusBadRequest)
		return
	}

	g := s.registry.GetOrCreate(gameID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(g.Snapshot())
}

// handleCreateGame 宿主显式建局，覆盖同名旧局
func (s *GameServer) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameID string `json:"gameId"`
		Host   string `json:"host"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == "" || req.Host == "" {
		http.Error(w, "gameId and host are required", http.StatusBadRequest)
		return
	}

	g := s.registry.CreateWithHost(req.GameID, req.Host)
	logger.Log.Infof("Player %s created game %s", req.Host, req.GameID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(g.Snapshot())
}

func (s *GameServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// sweepIdleSessions closes connections with no traffic for IdleTimeout.
func (s *GameServer) sweepIdleSessions() {
	cutoff := time.Now().Add(-s.cfg.Game.IdleTimeout)
	for _, sess := range s.sessionManager.IdleSince(cutoff) {
		logger.Log.Infof("Closing idle session %s (player %s)", sess.GetID(), sess.PlayerID)
		sess.Close()
	}
}
