// apps/gtn-server/internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for tests and for STORE_DRIVER=memory when durability is not required.
//
// Characteristics:
//   - Games keyed by id in a map; rounds kept per game in insertion order.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Values are copied in and out, so callers never share state with the store.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
)

// Memory is a map-based Store.
type Memory struct {
	mu          sync.RWMutex
	games       map[int64]game.Game
	rounds      map[int64][]game.Round // keyed by GameID, oldest first
	nextGameID  int64
	nextRoundID int64
	now         func() time.Time
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *Memory {
	return &Memory{
		games:  make(map[int64]game.Game),
		rounds: make(map[int64][]game.Round),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateGame stores a new open game under the next id.
func (m *Memory) CreateGame(ctx context.Context, secret string) (game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextGameID++
	g := game.Game{ID: m.nextGameID, Secret: secret, StartedAt: m.now()}
	m.games[g.ID] = g
	return g, nil
}

// GetGame returns a copy of the game, or ErrNotFound.
func (m *Memory) GetGame(ctx context.Context, id int64) (game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.games[id]; ok {
		return g, nil
	}
	return game.Game{}, ErrNotFound
}

// ListGames returns all games, most recent first.
func (m *Memory) ListGames(ctx context.Context) ([]game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]game.Game, 0, len(m.games))
	// ids are dense and increasing, so walking down yields most recent first
	for id := m.nextGameID; id > 0; id-- {
		if g, ok := m.games[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// MarkFinished sets the finished flag; repeated calls are no-ops.
func (m *Memory) MarkFinished(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markFinishedLocked(id)
}

func (m *Memory) markFinishedLocked(id int64) error {
	g, ok := m.games[id]
	if !ok {
		return ErrNotFound
	}
	g.Finished = true
	m.games[id] = g
	return nil
}

// AddRound appends a round without finishing the game.
func (m *Memory) AddRound(ctx context.Context, gameID int64, guess string, res game.Result) (game.Round, error) {
	return m.RecordRound(ctx, gameID, guess, res, false)
}

// RecordRound appends the round and, when finish is set, flips the finished
// flag under the same lock. A finished game takes no more rounds.
func (m *Memory) RecordRound(ctx context.Context, gameID int64, guess string, res game.Result, finish bool) (game.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return game.Round{}, ErrNotFound
	}
	if err := g.CanGuess(); err != nil {
		return game.Round{}, err
	}
	m.nextRoundID++
	r := game.Round{
		ID:           m.nextRoundID,
		GameID:       gameID,
		Guess:        guess,
		ExactMatch:   res.ExactMatch,
		PartialMatch: res.PartialMatch,
		CreatedAt:    m.now(),
	}
	m.rounds[gameID] = append(m.rounds[gameID], r)
	if finish {
		if err := m.markFinishedLocked(gameID); err != nil {
			return game.Round{}, err
		}
	}
	return r, nil
}

// ListRounds returns the game's rounds, most recent first.
func (m *Memory) ListRounds(ctx context.Context, gameID int64) ([]game.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.rounds[gameID]
	out := make([]game.Round, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
