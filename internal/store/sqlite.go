// apps/gtn-server/internal/store/sqlite.go
//
// SQLite-backed Store.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded migrations (idempotent, recorded in _migrations).
//   - Game/round CRUD with the round insert + finished flag in one transaction.
//
// Timestamps are stored as fixed-width UTC text (timeLayout) so lexical order is time order.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/assets"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
)

// SQLite is a Store over a *sql.DB opened with the sqlite3 driver.
type SQLite struct {
	db *sql.DB
}

/**
 * OpenSQLite opens (and creates if missing) a SQLite database file, then migrates it.
 *
 * - Ensures parent directory exists for relative paths (e.g. ./data/gtn.db).
 * - Configures busy timeout and WAL journaling mode.
 * - Enforces foreign keys.
 * - Starts transactions with BEGIN IMMEDIATE so writers queue on the busy timeout.
 */
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrateSQL(ctx, db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// migrateSQL applies the embedded scripts for dialect that are not yet
// recorded in _migrations, each inside its own transaction.
func migrateSQL(ctx context.Context, db *sql.DB, dialect string) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	scripts, err := assets.Migrations(dialect)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, m := range scripts {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

// CreateGame inserts an open game and returns it with its row id.
func (s *SQLite) CreateGame(ctx context.Context, secret string) (game.Game, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO game (answer, is_finished, started_at) VALUES (?, 0, ?)`,
		secret, formatTime(now),
	)
	if err != nil {
		return game.Game{}, fmt.Errorf("insert game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return game.Game{}, fmt.Errorf("insert game id: %w", err)
	}
	return game.Game{ID: id, Secret: secret, StartedAt: now}, nil
}

// GetGame loads one game row, or ErrNotFound.
func (s *SQLite) GetGame(ctx context.Context, id int64) (game.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, answer, is_finished, started_at FROM game WHERE id=?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Game{}, ErrNotFound
	}
	return g, err
}

// ListGames returns all games by id descending.
func (s *SQLite) ListGames(ctx context.Context) ([]game.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, answer, is_finished, started_at FROM game ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	out := []game.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkFinished sets is_finished=1; ErrNotFound when no row matches.
func (s *SQLite) MarkFinished(ctx context.Context, id int64) error {
	return markFinished(ctx, s.db, id)
}

// AddRound records a non-winning round.
func (s *SQLite) AddRound(ctx context.Context, gameID int64, guess string, res game.Result) (game.Round, error) {
	return s.RecordRound(ctx, gameID, guess, res, false)
}

// RecordRound inserts the round and, on a win, sets is_finished in the same transaction.
// A finished game returns game.ErrGameFinished and nothing is written.
func (s *SQLite) RecordRound(ctx context.Context, gameID int64, guess string, res game.Result, finish bool) (game.Round, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return game.Round{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var finished bool
	if err := tx.QueryRowContext(ctx, `SELECT is_finished FROM game WHERE id=?`, gameID).Scan(&finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return game.Round{}, ErrNotFound
		}
		return game.Round{}, fmt.Errorf("lookup game: %w", err)
	}
	if finished {
		return game.Round{}, game.ErrGameFinished
	}

	now := time.Now().UTC()
	r, err := tx.ExecContext(ctx,
		`INSERT INTO round (game_id, guess, exact_match, partial_match, created_at) VALUES (?, ?, ?, ?, ?)`,
		gameID, guess, res.ExactMatch, res.PartialMatch, formatTime(now),
	)
	if err != nil {
		return game.Round{}, fmt.Errorf("insert round: %w", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return game.Round{}, fmt.Errorf("insert round id: %w", err)
	}
	if finish {
		if err := markFinished(ctx, tx, gameID); err != nil {
			return game.Round{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return game.Round{}, fmt.Errorf("commit round: %w", err)
	}

	return game.Round{
		ID:           id,
		GameID:       gameID,
		Guess:        guess,
		ExactMatch:   res.ExactMatch,
		PartialMatch: res.PartialMatch,
		CreatedAt:    now,
	}, nil
}

// ListRounds returns the game's rounds, newest first.
func (s *SQLite) ListRounds(ctx context.Context, gameID int64) ([]game.Round, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, game_id, guess, exact_match, partial_match, created_at
        FROM round
        WHERE game_id=?
        ORDER BY created_at DESC, id DESC`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	out := []game.Round{}
	for rows.Next() {
		var (
			r       game.Round
			created string
		)
		if err := rows.Scan(&r.ID, &r.GameID, &r.Guess, &r.ExactMatch, &r.PartialMatch, &created); err != nil {
			return nil, err
		}
		r.Guess = strings.TrimSpace(r.Guess)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the underlying *sql.DB.
func (s *SQLite) Close() error { return s.db.Close() }

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func markFinished(ctx context.Context, db execer, id int64) error {
	res, err := db.ExecContext(ctx, `UPDATE game SET is_finished=1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (game.Game, error) {
	var (
		g       game.Game
		started string
	)
	if err := row.Scan(&g.ID, &g.Secret, &g.Finished, &started); err != nil {
		return game.Game{}, err
	}
	g.Secret = strings.TrimSpace(g.Secret)
	g.StartedAt = parseTime(started)
	return g, nil
}

// timeLayout keeps all nine fractional digits; RFC3339Nano would trim them.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// parseTime parses stored timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}
