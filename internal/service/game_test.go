package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/store"
)

var errStoreDown = errors.New("store down")

// plainStore hides RoundRecorder so the fixed-order fallback is exercised.
type plainStore struct{ store.Store }

// failingStore fails the selected operations.
type failingStore struct {
	store.Store
	failCreate bool
	failRounds bool
	failGet    bool
}

func (f *failingStore) CreateGame(ctx context.Context, secret string) (game.Game, error) {
	if f.failCreate {
		return game.Game{}, errStoreDown
	}
	return f.Store.CreateGame(ctx, secret)
}

func (f *failingStore) GetGame(ctx context.Context, id int64) (game.Game, error) {
	if f.failGet {
		return game.Game{}, errStoreDown
	}
	return f.Store.GetGame(ctx, id)
}

func (f *failingStore) AddRound(ctx context.Context, gameID int64, guess string, res game.Result) (game.Round, error) {
	if f.failRounds {
		return game.Round{}, errStoreDown
	}
	return f.Store.AddRound(ctx, gameID, guess, res)
}

// gatedStore holds the first `loads` GetGame calls until all of them have read
// the game, so racing guesses both see it open.
type gatedStore struct {
	*store.Memory
	loads   int32
	calls   atomic.Int32
	arrived sync.WaitGroup
}

func newGatedStore(loads int) *gatedStore {
	g := &gatedStore{Memory: store.NewMemoryStore(), loads: int32(loads)}
	g.arrived.Add(loads)
	return g
}

func (g *gatedStore) GetGame(ctx context.Context, id int64) (game.Game, error) {
	res, err := g.Memory.GetGame(ctx, id)
	if g.calls.Add(1) <= g.loads {
		g.arrived.Done()
		g.arrived.Wait()
	}
	return res, err
}

func fixedSecret(s string) Option {
	return WithSecretFunc(func() string { return s })
}

func TestGameService_StartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates an open game with a masked answer", func(t *testing.T) {
		svc := New(store.NewMemoryStore())

		g, err := svc.StartGame(ctx)

		require.NoError(t, err)
		assert.NotZero(t, g.GameID)
		assert.Equal(t, game.MaskedSecret, g.Answer)
		assert.False(t, g.IsFinished)
	})

	t.Run("Stores a valid secret", func(t *testing.T) {
		mem := store.NewMemoryStore()
		svc := New(mem)

		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		stored, err := mem.GetGame(ctx, g.GameID)
		require.NoError(t, err)
		assert.NoError(t, game.ValidateGuess(stored.Secret))
	})

	t.Run("Wraps store failures", func(t *testing.T) {
		svc := New(&failingStore{Store: store.NewMemoryStore(), failCreate: true})

		_, err := svc.StartGame(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestGameService_GetGame(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemoryStore(), fixedSecret("1234"))

	t.Run("Unknown game", func(t *testing.T) {
		_, err := svc.GetGame(ctx, 42)
		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Answer revealed only after a win", func(t *testing.T) {
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		before, err := svc.GetGame(ctx, g.GameID)
		require.NoError(t, err)
		assert.Equal(t, game.MaskedSecret, before.Answer)

		_, err = svc.SubmitGuess(ctx, g.GameID, "1234")
		require.NoError(t, err)

		after, err := svc.GetGame(ctx, g.GameID)
		require.NoError(t, err)
		assert.Equal(t, "1234", after.Answer)
		assert.True(t, after.IsFinished)
	})
}

func TestGameService_ListGames(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewMemoryStore(), fixedSecret("1234"))

	first, err := svc.StartGame(ctx)
	require.NoError(t, err)
	second, err := svc.StartGame(ctx)
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, first.GameID, "1234")
	require.NoError(t, err)

	games, err := svc.ListGames(ctx)

	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, second.GameID, games[0].GameID)
	assert.Equal(t, game.MaskedSecret, games[0].Answer)
	assert.Equal(t, first.GameID, games[1].GameID)
	assert.Equal(t, "1234", games[1].Answer)
}

func TestGameService_ListRounds_UnknownGame(t *testing.T) {
	svc := New(store.NewMemoryStore())

	rounds, err := svc.ListRounds(context.Background(), 99)

	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestGameService_SubmitGuess(t *testing.T) {
	ctx := context.Background()

	t.Run("Partial guess continues and is recorded", func(t *testing.T) {
		// Given: a game whose secret is 1234
		svc := New(store.NewMemoryStore(), fixedSecret("1234"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		// When: guessing 1243
		res, err := svc.SubmitGuess(ctx, g.GameID, "1243")

		// Then: two exact, two partial, game continues
		require.NoError(t, err)
		assert.Equal(t, game.OutcomeContinue, res.Status)
		assert.Equal(t, 2, res.Result.ExactMatch)
		assert.Equal(t, 2, res.Result.PartialMatch)
		assert.False(t, res.Game.IsFinished)
		assert.Equal(t, game.MaskedSecret, res.Game.Answer)
		require.Len(t, res.Rounds, 1)
		assert.Equal(t, "1243", res.Rounds[0].Guess)
	})

	t.Run("Miss shares no digits", func(t *testing.T) {
		svc := New(store.NewMemoryStore(), fixedSecret("1234"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		res, err := svc.SubmitGuess(ctx, g.GameID, "5678")

		require.NoError(t, err)
		assert.Equal(t, game.OutcomeContinue, res.Status)
		assert.Zero(t, res.Result.ExactMatch)
		assert.Zero(t, res.Result.PartialMatch)
	})

	t.Run("Winning guess finishes the game and reveals the answer", func(t *testing.T) {
		svc := New(store.NewMemoryStore(), fixedSecret("1234"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)
		_, err = svc.SubmitGuess(ctx, g.GameID, "5678")
		require.NoError(t, err)

		res, err := svc.SubmitGuess(ctx, g.GameID, "1234")

		require.NoError(t, err)
		assert.Equal(t, game.OutcomeWin, res.Status)
		assert.Equal(t, 4, res.Result.ExactMatch)
		assert.Zero(t, res.Result.PartialMatch)
		assert.True(t, res.Game.IsFinished)
		assert.Equal(t, "1234", res.Game.Answer)
		require.Len(t, res.Rounds, 2)
		assert.Equal(t, "1234", res.Rounds[0].Guess, "most recent round first")
		assert.Equal(t, "5678", res.Rounds[1].Guess)
	})

	t.Run("Guess after a win is rejected and not recorded", func(t *testing.T) {
		svc := New(store.NewMemoryStore(), fixedSecret("1234"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)
		_, err = svc.SubmitGuess(ctx, g.GameID, "1234")
		require.NoError(t, err)

		_, err = svc.SubmitGuess(ctx, g.GameID, "5678")

		assert.ErrorIs(t, err, game.ErrGameFinished)
		rounds, err := svc.ListRounds(ctx, g.GameID)
		require.NoError(t, err)
		assert.Len(t, rounds, 1)
	})

	t.Run("Unknown game", func(t *testing.T) {
		svc := New(store.NewMemoryStore())

		_, err := svc.SubmitGuess(ctx, 404, "1234")

		assert.ErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Invalid guesses report the rule and record nothing", func(t *testing.T) {
		svc := New(store.NewMemoryStore(), fixedSecret("1234"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		for guess, rule := range map[string]game.Rule{
			"123":  game.RuleLength,
			"12a3": game.RuleDigits,
			"1123": game.RuleUnique,
		} {
			_, err := svc.SubmitGuess(ctx, g.GameID, guess)
			var verr *game.ValidationError
			require.ErrorAs(t, err, &verr, guess)
			assert.Equal(t, rule, verr.Rule, guess)
		}

		rounds, err := svc.ListRounds(ctx, g.GameID)
		require.NoError(t, err)
		assert.Empty(t, rounds)
	})

	t.Run("Stores without RoundRecorder still finish the game", func(t *testing.T) {
		svc := New(plainStore{store.NewMemoryStore()}, fixedSecret("5079"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		res, err := svc.SubmitGuess(ctx, g.GameID, "5079")

		require.NoError(t, err)
		assert.Equal(t, game.OutcomeWin, res.Status)
		assert.True(t, res.Game.IsFinished)
		assert.Len(t, res.Rounds, 1)
	})

	t.Run("Round write failure surfaces as a store error", func(t *testing.T) {
		fs := &failingStore{Store: store.NewMemoryStore(), failRounds: true}
		svc := New(plainStore{fs}, fixedSecret("1234"))
		g, err := svc.StartGame(ctx)
		require.NoError(t, err)

		_, err = svc.SubmitGuess(ctx, g.GameID, "1234")

		require.Error(t, err)
		assert.ErrorIs(t, err, errStoreDown)
		assert.NotErrorIs(t, err, ErrGameNotFound)
	})

	t.Run("Read failure surfaces as a store error", func(t *testing.T) {
		svc := New(&failingStore{Store: store.NewMemoryStore(), failGet: true})

		_, err := svc.SubmitGuess(ctx, 1, "1234")

		assert.ErrorIs(t, err, errStoreDown)
	})
}

func TestGameService_SubmitGuess_RacingWins(t *testing.T) {
	ctx := context.Background()

	// Given: an open game and two winning guesses that both load it unfinished
	gs := newGatedStore(2)
	svc := New(gs, fixedSecret("1234"))
	g, err := svc.StartGame(ctx)
	require.NoError(t, err)

	// When: both are submitted at once
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.SubmitGuess(ctx, g.GameID, "1234")
		}()
	}
	wg.Wait()

	// Then: one wins, the other is rejected, one round is stored
	won, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, game.ErrGameFinished):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, rejected)

	rounds, err := svc.ListRounds(ctx, g.GameID)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}
