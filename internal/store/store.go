// apps/gtn-server/internal/store/store.go
//
// Persistence contract for games and rounds.
// Backends live alongside this file:
//   - memory.go   in-process map (tests, ephemeral runs)
//   - sqlite.go   mattn/go-sqlite3, the default
//   - postgres.go pgx connection pool
//   - redis.go    go-redis hashes + lists
//
// Ordering guarantees every backend provides:
//   - ListGames returns most recent first.
//   - ListRounds returns most recent first.
//   - RecordRound applies the round insert and the finished flag together,
//     and refuses finished games inside the same unit.

package store

import (
	"context"
	"errors"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
)

// ErrNotFound is returned when a referenced game does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for games and rounds.
type Store interface {
	// CreateGame persists a new, unfinished game with the given secret.
	CreateGame(ctx context.Context, secret string) (game.Game, error)

	// GetGame fetches a game by id, or ErrNotFound.
	GetGame(ctx context.Context, id int64) (game.Game, error)

	// ListGames returns every game, most recent first.
	ListGames(ctx context.Context) ([]game.Game, error)

	// MarkFinished sets the finished flag. Calling it twice is harmless.
	MarkFinished(ctx context.Context, id int64) error

	// AddRound appends a scored round to a game. Backends reject rounds for a
	// finished game with game.ErrGameFinished.
	AddRound(ctx context.Context, gameID int64, guess string, res game.Result) (game.Round, error)

	// ListRounds returns the rounds of a game, most recent first.
	// Unknown games yield an empty slice.
	ListRounds(ctx context.Context, gameID int64) ([]game.Round, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections.
	Close() error
}

// RoundRecorder is implemented by stores that can append a round and mark
// the game finished as one atomic unit. The unfinished check runs inside the
// same unit, so of two racing guesses on an open game only rounds recorded
// before the win are kept; later ones get game.ErrGameFinished.
type RoundRecorder interface {
	RecordRound(ctx context.Context, gameID int64, guess string, res game.Result, finish bool) (game.Round, error)
}
