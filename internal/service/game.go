// apps/gtn-server/internal/service/game.go
//
// GameService wires the engine to a Store and is what HTTP handlers call.
// Responsibilities:
//   - Start games with a freshly generated secret.
//   - Serve masked game views and round history.
//   - Run one guess: load → reject if finished → validate → score → record → reload.
//
// Errors surfaced to callers:
//   - ErrGameNotFound         unknown game id
//   - game.ErrGameFinished    guess against a won game (nothing is recorded)
//   - *game.ValidationError   malformed guess
//   - anything else           wrapped store failure; callers treat it as a server error

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/store"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/view"
)

// ErrGameNotFound is returned when the referenced game does not exist.
var ErrGameNotFound = errors.New("game not found")

// GameService orchestrates the engine and the store.
type GameService struct {
	store     store.Store
	newSecret func() string
	log       zerolog.Logger
}

// Option customises a GameService.
type Option func(*GameService)

// WithSecretFunc replaces the secret generator (tests, fixed games).
func WithSecretFunc(fn func() string) Option {
	return func(s *GameService) { s.newSecret = fn }
}

// WithLogger sets the logger used for game events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *GameService) { s.log = l }
}

// New constructs a GameService over st.
func New(st store.Store, opts ...Option) *GameService {
	s := &GameService{
		store:     st,
		newSecret: game.NewSecret,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartGame creates a game. The returned view never carries the secret.
func (s *GameService) StartGame(ctx context.Context) (view.Game, error) {
	g, err := s.store.CreateGame(ctx, s.newSecret())
	if err != nil {
		return view.Game{}, fmt.Errorf("create game: %w", err)
	}
	s.log.Info().Int64("gameId", g.ID).Msg("game started")
	return view.FromGame(g), nil
}

// GetGame returns the masked view of one game.
func (s *GameService) GetGame(ctx context.Context, id int64) (view.Game, error) {
	g, err := s.loadGame(ctx, id)
	if err != nil {
		return view.Game{}, err
	}
	return view.FromGame(g), nil
}

// ListGames returns masked views of all games, most recent first.
func (s *GameService) ListGames(ctx context.Context) ([]view.Game, error) {
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return view.FromGames(games), nil
}

// ListRounds returns the rounds of a game, most recent first.
// An unknown game id yields an empty list.
func (s *GameService) ListRounds(ctx context.Context, gameID int64) ([]view.Round, error) {
	rounds, err := s.store.ListRounds(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return view.FromRounds(rounds), nil
}

// SubmitGuess scores guess against the game's secret and records the round.
// A winning guess finishes the game in the same store operation.
func (s *GameService) SubmitGuess(ctx context.Context, gameID int64, guess string) (view.GuessResult, error) {
	g, err := s.loadGame(ctx, gameID)
	if err != nil {
		return view.GuessResult{}, err
	}
	if err := g.CanGuess(); err != nil {
		return view.GuessResult{}, err
	}
	if err := game.ValidateGuess(guess); err != nil {
		return view.GuessResult{}, err
	}

	res, err := game.Score(g.Secret, guess)
	if err != nil {
		// the stored secret itself is malformed
		return view.GuessResult{}, fmt.Errorf("score game %d: %w", gameID, err)
	}

	if err := s.record(ctx, gameID, guess, res); err != nil {
		return view.GuessResult{}, err
	}

	outcome := game.OutcomeOf(res)
	if outcome == game.OutcomeWin {
		s.log.Info().Int64("gameId", gameID).Str("guess", guess).Msg("game won")
	}

	current, err := s.loadGame(ctx, gameID)
	if err != nil {
		return view.GuessResult{}, err
	}
	rounds, err := s.ListRounds(ctx, gameID)
	if err != nil {
		return view.GuessResult{}, err
	}

	return view.GuessResult{
		Status: outcome,
		Game:   view.FromGame(current),
		Rounds: rounds,
		Result: view.FromResult(res),
	}, nil
}

// record persists the round and, on a win, the finished flag. A RoundRecorder
// also rechecks the finished flag inside its atomic unit. Stores that cannot do
// both atomically get them in a fixed order: round first.
func (s *GameService) record(ctx context.Context, gameID int64, guess string, res game.Result) error {
	if rec, ok := s.store.(store.RoundRecorder); ok {
		_, err := rec.RecordRound(ctx, gameID, guess, res, res.Won())
		return s.storeErr("record round", err)
	}

	if _, err := s.store.AddRound(ctx, gameID, guess, res); err != nil {
		return s.storeErr("add round", err)
	}
	if res.Won() {
		return s.storeErr("mark finished", s.store.MarkFinished(ctx, gameID))
	}
	return nil
}

func (s *GameService) loadGame(ctx context.Context, id int64) (game.Game, error) {
	g, err := s.store.GetGame(ctx, id)
	if err != nil {
		return game.Game{}, s.storeErr("get game", err)
	}
	return g, nil
}

// storeErr maps store.ErrNotFound to ErrGameNotFound, passes game.ErrGameFinished
// through and wraps everything else.
func (s *GameService) storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrGameNotFound
	case errors.Is(err, game.ErrGameFinished):
		// another guess won the game after it was loaded
		return game.ErrGameFinished
	default:
		s.log.Error().Err(err).Str("op", op).Msg("store failure")
		return fmt.Errorf("%s: %w", op, err)
	}
}
