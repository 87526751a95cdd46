package game

import (
	"sync"
)

// Registry 管理所有进行中的对局。按 gameID 寻址，无跨对局引用，
// 因此各对局的内部锁之间不存在加锁顺序问题。
type Registry struct {
	mu       sync.RWMutex
	games    map[string]*Game
	baseSeed int64
}

func NewRegistry(baseSeed int64) *Registry {
	return &Registry{
		games:    make(map[string]*Game),
		baseSeed: baseSeed,
	}
}

// GetOrCreate returns the game for the given ID, creating it lazily.
// Exactly one game is created per ID even under concurrent first access.
func (r *Registry) GetOrCreate(gameID string) *Game {
	r.mu.RLock()
	g, exists := r.games[gameID]
	r.mu.RUnlock()
	if exists {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: another caller may have created it between the locks.
	if g, exists := r.games[gameID]; exists {
		return g
	}
	g = NewGame(gameID, DeckSeed(r.baseSeed, gameID))
	r.games[gameID] = g
	return g
}

// CreateWithHost creates a fresh game with the host already seated.
// It overwrites any existing game for that ID: explicit host creation is a
// reset, not an idempotent lookup.
func (r *Registry) CreateWithHost(gameID, hostPlayerID string) *Game {
	g := NewGame(gameID, DeckSeed(r.baseSeed, gameID))
	// Cannot fail: freshly created game is waiting and empty.
	_ = g.AddPlayer(NewPlayer(hostPlayerID))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[gameID] = g
	return g
}

// Get returns the game if it exists.
func (r *Registry) Get(gameID string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, exists := r.games[gameID]
	return g, exists
}

// Remove drops a game from the registry.
func (r *Registry) Remove(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// Count returns the number of live games, for metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
