// apps/gtn-server/internal/store/redis.go
//
// Redis-backed Store.
//
// Key layout (all under a configurable prefix, default "gtn:"):
//   game:seq          INCR counter for game ids
//   round:seq         INCR counter for round ids
//   game:<id>         hash {answer, is_finished, started_at}
//   games             sorted set of game ids scored by id
//   rounds:<gameID>   list of JSON rounds, oldest first
//
// Round append and finished flag go out together in a MULTI/EXEC pipeline
// guarded by WATCH on the game hash.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
)

// maxWatchRetries bounds optimistic retries when a watched game hash changes.
const maxWatchRetries = 5

// Redis is a Store backed by a *redis.Client.
type Redis struct {
	client *redis.Client
	prefix string
}

// redisRound is the JSON shape stored in rounds:<gameID>.
type redisRound struct {
	ID           int64     `json:"id"`
	GameID       int64     `json:"game_id"`
	Guess        string    `json:"guess"`
	ExactMatch   int       `json:"exact_match"`
	PartialMatch int       `json:"partial_match"`
	CreatedAt    time.Time `json:"created_at"`
}

// OpenRedis connects to addr/db and pings it.
func OpenRedis(ctx context.Context, addr string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "gtn:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) gameKey(id int64) string { return s.prefix + "game:" + strconv.FormatInt(id, 10) }
func (s *Redis) roundsKey(id int64) string { return s.prefix + "rounds:" + strconv.FormatInt(id, 10) }
func (s *Redis) gamesKey() string { return s.prefix + "games" }
func (s *Redis) seqKey(name string) string { return s.prefix + name + ":seq" }

// CreateGame allocates an id with INCR and writes the hash and index together.
func (s *Redis) CreateGame(ctx context.Context, secret string) (game.Game, error) {
	id, err := s.client.Incr(ctx, s.seqKey("game")).Result()
	if err != nil {
		return game.Game{}, fmt.Errorf("next game id: %w", err)
	}
	g := game.Game{ID: id, Secret: secret, StartedAt: time.Now().UTC()}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.gameKey(id),
			"answer", secret,
			"is_finished", "0",
			"started_at", g.StartedAt.Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, s.gamesKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return game.Game{}, fmt.Errorf("failed to set game: %w", err)
	}
	return g, nil
}

// GetGame reads the game hash, or ErrNotFound when it is absent.
func (s *Redis) GetGame(ctx context.Context, id int64) (game.Game, error) {
	fields, err := s.client.HGetAll(ctx, s.gameKey(id)).Result()
	if err != nil {
		return game.Game{}, fmt.Errorf("get game: %w", err)
	}
	if len(fields) == 0 {
		return game.Game{}, ErrNotFound
	}
	return gameFromHash(id, fields), nil
}

// ListGames reads the games index in reverse and fetches each hash in one pipeline.
func (s *Redis) ListGames(ctx context.Context) ([]game.Game, error) {
	ids, err := s.client.ZRevRange(ctx, s.gamesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	cmds, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, raw := range ids {
			pipe.HGetAll(ctx, s.prefix+"game:"+raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	out := make([]game.Game, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.(*redis.MapStringStringCmd).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		id, _ := strconv.ParseInt(ids[i], 10, 64)
		out = append(out, gameFromHash(id, fields))
	}
	return out, nil
}

// MarkFinished sets is_finished on an existing game hash.
func (s *Redis) MarkFinished(ctx context.Context, id int64) error {
	n, err := s.client.Exists(ctx, s.gameKey(id)).Result()
	if err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := s.client.HSet(ctx, s.gameKey(id), "is_finished", "1").Err(); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	return nil
}

// AddRound records a non-winning round.
func (s *Redis) AddRound(ctx context.Context, gameID int64, guess string, res game.Result) (game.Round, error) {
	return s.RecordRound(ctx, gameID, guess, res, false)
}

// RecordRound appends the round and, when finish is set, sets is_finished
// inside one MULTI/EXEC block. The game hash is WATCHed, so a concurrent win
// aborts the block and the retry sees the game finished.
func (s *Redis) RecordRound(ctx context.Context, gameID int64, guess string, res game.Result, finish bool) (game.Round, error) {
	key := s.gameKey(gameID)

	var rr redisRound
	record := func(tx *redis.Tx) error {
		state, err := tx.HGet(ctx, key, "is_finished").Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup game: %w", err)
		}
		if state == "1" {
			return game.ErrGameFinished
		}

		id, err := tx.Incr(ctx, s.seqKey("round")).Result()
		if err != nil {
			return fmt.Errorf("next round id: %w", err)
		}
		rr = redisRound{
			ID:           id,
			GameID:       gameID,
			Guess:        guess,
			ExactMatch:   res.ExactMatch,
			PartialMatch: res.PartialMatch,
			CreatedAt:    time.Now().UTC(),
		}
		data, err := json.Marshal(rr)
		if err != nil {
			return fmt.Errorf("could not marshal round: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, s.roundsKey(gameID), data)
			if finish {
				pipe.HSet(ctx, key, "is_finished", "1")
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, record, key)
		switch {
		case err == nil:
			return rr.toRound(), nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, game.ErrGameFinished):
			return game.Round{}, err
		default:
			return game.Round{}, fmt.Errorf("record round: %w", err)
		}
	}
	return game.Round{}, fmt.Errorf("record round: game %d kept changing", gameID)
}

// ListRounds decodes the rounds list, newest first.
func (s *Redis) ListRounds(ctx context.Context, gameID int64) ([]game.Round, error) {
	raw, err := s.client.LRange(ctx, s.roundsKey(gameID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list rounds: %w", err)
	}

	out := make([]game.Round, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var rr redisRound
		if err := json.Unmarshal([]byte(raw[i]), &rr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal round: %w", err)
		}
		out = append(out, rr.toRound())
	}
	return out, nil
}

// Ping sends PING to the server.
func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Close closes the client.
func (s *Redis) Close() error { return s.client.Close() }

func (rr redisRound) toRound() game.Round {
	return game.Round{
		ID:           rr.ID,
		GameID:       rr.GameID,
		Guess:        rr.Guess,
		ExactMatch:   rr.ExactMatch,
		PartialMatch: rr.PartialMatch,
		CreatedAt:    rr.CreatedAt.UTC(),
	}
}

func gameFromHash(id int64, fields map[string]string) game.Game {
	started, _ := time.Parse(time.RFC3339Nano, fields["started_at"])
	return game.Game{
		ID:        id,
		Secret:    fields["answer"],
		Finished:  fields["is_finished"] == "1",
		StartedAt: started.UTC(),
	}
}
