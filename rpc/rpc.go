package rpc

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/meeplelab/tileserver/game"
	"github.com/meeplelab/tileserver/logger"
	"github.com/meeplelab/tileserver/persistence"
)

var ErrGameNotFound = errors.New("game not found")

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// via net/rpc before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService exposes read-only lookups over net/rpc: live snapshots from
// the registry and historical stats from the store.
type GameService struct {
	registry *game.Registry
	db       persistence.Database
}

func NewGameService(registry *game.Registry, db persistence.Database) *GameService {
	return &GameService{registry: registry, db: db}
}

type SnapshotArgs struct {
	GameID string
}

type SnapshotReply struct {
	Snapshot game.Snapshot
}

// GetGameSnapshot returns the live state of a game. Unlike the REST lookup
// this requires the game to exist: RPC callers are back-office tools, not
// joining players.
func (gs *GameService) GetGameSnapshot(args *SnapshotArgs, reply *SnapshotReply) error {
	g, exists := gs.registry.Get(args.GameID)
	if !exists {
		return ErrGameNotFound
	}
	reply.Snapshot = g.Snapshot()
	return nil
}

type PlayerStatsArgs struct {
	PlayerID string
}

type PlayerStatsReply struct {
	Stats map[string]interface{}
}

func (gs *GameService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := gs.db.GetPlayerStats(args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}
