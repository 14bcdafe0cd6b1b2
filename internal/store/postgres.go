// apps/gtn-server/internal/store/postgres.go
//
// PostgreSQL-backed Store over a pgx connection pool.
// Schema matches the SQLite store (see assets/sql/postgres).

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/assets"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
)

// Postgres is a Store backed by a *pgxpool.Pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, sizes the pool, pings, and migrates.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	scripts, err := assets.Migrations("postgres")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for _, m := range scripts {
		err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `INSERT INTO _migrations(name) VALUES ($1) ON CONFLICT DO NOTHING`, m.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				log.Debug().Str("migration", m.Name).Msg("already applied")
				return nil
			}
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			log.Info().Str("migration", m.Name).Msg("applied")
			return nil
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
	}
	return nil
}

// CreateGame inserts an open game; id and started_at come from the database.
func (p *Postgres) CreateGame(ctx context.Context, secret string) (game.Game, error) {
	g := game.Game{Secret: secret}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO game (answer, is_finished) VALUES ($1, FALSE) RETURNING id, started_at`,
		secret,
	).Scan(&g.ID, &g.StartedAt)
	if err != nil {
		return game.Game{}, fmt.Errorf("insert game: %w", err)
	}
	g.StartedAt = g.StartedAt.UTC()
	return g, nil
}

// GetGame loads one game row, or ErrNotFound.
func (p *Postgres) GetGame(ctx context.Context, id int64) (game.Game, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, answer, is_finished, started_at FROM game WHERE id=$1`, id)
	g, err := scanPgGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Game{}, ErrNotFound
	}
	return g, err
}

// ListGames returns all games by id descending.
func (p *Postgres) ListGames(ctx context.Context) ([]game.Game, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, answer, is_finished, started_at FROM game ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	out := []game.Game{}
	for rows.Next() {
		g, err := scanPgGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// MarkFinished sets is_finished; ErrNotFound when no row matches.
func (p *Postgres) MarkFinished(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `UPDATE game SET is_finished=TRUE WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRound records a non-winning round.
func (p *Postgres) AddRound(ctx context.Context, gameID int64, guess string, res game.Result) (game.Round, error) {
	return p.RecordRound(ctx, gameID, guess, res, false)
}

// RecordRound inserts the round and, when finish is set, flips is_finished in one transaction.
// A finished game returns game.ErrGameFinished and nothing is written.
func (p *Postgres) RecordRound(ctx context.Context, gameID int64, guess string, res game.Result, finish bool) (game.Round, error) {
	r := game.Round{
		GameID:       gameID,
		Guess:        guess,
		ExactMatch:   res.ExactMatch,
		PartialMatch: res.PartialMatch,
	}
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// the row lock serialises concurrent guesses on one game
		var finished bool
		err := tx.QueryRow(ctx, `SELECT is_finished FROM game WHERE id=$1 FOR UPDATE`, gameID).Scan(&finished)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if finished {
			return game.ErrGameFinished
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO round (game_id, guess, exact_match, partial_match)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			gameID, guess, res.ExactMatch, res.PartialMatch,
		).Scan(&r.ID, &r.CreatedAt); err != nil {
			return err
		}
		if finish {
			if _, err := tx.Exec(ctx, `UPDATE game SET is_finished=TRUE WHERE id=$1`, gameID); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, game.ErrGameFinished):
		return game.Round{}, err
	case err != nil:
		return game.Round{}, fmt.Errorf("tx record round: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// ListRounds returns the game's rounds, newest first.
func (p *Postgres) ListRounds(ctx context.Context, gameID int64) ([]game.Round, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, game_id, guess, exact_match, partial_match, created_at
		FROM round
		WHERE game_id=$1
		ORDER BY created_at DESC, id DESC`, gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	out := []game.Round{}
	for rows.Next() {
		var r game.Round
		if err := rows.Scan(&r.ID, &r.GameID, &r.Guess, &r.ExactMatch, &r.PartialMatch, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Guess = strings.TrimSpace(r.Guess)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping acquires a pooled connection and pings the server.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Close closes every pooled connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanPgGame(row pgx.Row) (game.Game, error) {
	var g game.Game
	if err := row.Scan(&g.ID, &g.Secret, &g.Finished, &g.StartedAt); err != nil {
		return game.Game{}, err
	}
	g.Secret = strings.TrimSpace(g.Secret)
	g.StartedAt = g.StartedAt.UTC()
	return g, nil
}
