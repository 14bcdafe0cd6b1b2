package game

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecret(t *testing.T) {
	t.Run("Always four distinct digits", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			s := NewSecret()
			require.NoError(t, ValidateGuess(s), "secret %q", s)
		}
	})

	t.Run("Seeded source is repeatable", func(t *testing.T) {
		a := NewSecretWith(rand.New(rand.NewPCG(7, 11)))
		b := NewSecretWith(rand.New(rand.NewPCG(7, 11)))
		assert.Equal(t, a, b)
	})

	t.Run("Every digit can lead", func(t *testing.T) {
		// Given: a seeded source and many draws
		r := rand.New(rand.NewPCG(1, 2))
		first := map[byte]bool{}

		// When: secrets are generated
		for i := 0; i < 2000; i++ {
			first[NewSecretWith(r)[0]] = true
		}

		// Then: all ten digits show up in the first position
		assert.Len(t, first, 10)
	})
}

func TestValidateGuess(t *testing.T) {
	cases := []struct {
		guess string
		rule  Rule
	}{
		{"1234", ""},
		{"0987", ""},
		{"123", RuleLength},
		{"12345", RuleLength},
		{"", RuleLength},
		{"12a3", RuleDigits},
		{"-123", RuleDigits},
		{" 123", RuleDigits},
		{"1123", RuleUnique},
		{"0000", RuleUnique},
		{"１２３", RuleLength}, // full-width digits are multi-byte
	}
	for _, tc := range cases {
		err := ValidateGuess(tc.guess)
		if tc.rule == "" {
			assert.NoError(t, err, "guess %q", tc.guess)
			continue
		}
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "guess %q: expected ValidationError, got %v", tc.guess, err)
		assert.Equal(t, tc.rule, verr.Rule, "guess %q", tc.guess)
		assert.NotEmpty(t, verr.Error())
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		secret, guess  string
		exact, partial int
	}{
		{"1234", "1243", 2, 2},
		{"1234", "5678", 0, 0},
		{"1234", "1234", 4, 0},
		{"1234", "4321", 0, 4},
		{"1234", "1567", 1, 0},
		{"1234", "5123", 0, 3},
		{"0918", "8190", 0, 4},
	}
	for _, tc := range cases {
		res, err := Score(tc.secret, tc.guess)
		require.NoError(t, err)
		assert.Equal(t, Result{ExactMatch: tc.exact, PartialMatch: tc.partial}, res, "%s vs %s", tc.secret, tc.guess)
	}
}

func TestScore_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 42))

	t.Run("Counts stay within bounds", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			s, g := NewSecretWith(r), NewSecretWith(r)
			res, err := Score(s, g)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.ExactMatch, 0)
			assert.GreaterOrEqual(t, res.PartialMatch, 0)
			assert.LessOrEqual(t, res.ExactMatch+res.PartialMatch, SecretLength)
		}
	})

	t.Run("Secret scores as a pure win", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			s := NewSecretWith(r)
			res, err := Score(s, s)
			require.NoError(t, err)
			assert.Equal(t, Result{ExactMatch: 4}, res)
			assert.True(t, res.Won())
		}
	})

	t.Run("Permuting a guess keeps the shared digit total", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			s, g := NewSecretWith(r), NewSecretWith(r)
			base, err := Score(s, g)
			require.NoError(t, err)

			b := []byte(g)
			r.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
			perm, err := Score(s, string(b))
			require.NoError(t, err)

			assert.Equal(t, intersection(s, g), base.ExactMatch+base.PartialMatch)
			assert.Equal(t, base.ExactMatch+base.PartialMatch, perm.ExactMatch+perm.PartialMatch)
		}
	})
}

func TestScore_RejectsInvalidInput(t *testing.T) {
	_, err := Score("1234", "1123")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RuleUnique, verr.Rule)

	_, err = Score("11", "1234")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, RuleLength, verr.Rule)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeWin, OutcomeOf(Result{ExactMatch: 4}))
	assert.Equal(t, OutcomeContinue, OutcomeOf(Result{ExactMatch: 2, PartialMatch: 2}))
	assert.Equal(t, OutcomeContinue, OutcomeOf(Result{}))
}

func TestGame_CanGuess(t *testing.T) {
	open := &Game{Secret: "1234"}
	assert.NoError(t, open.CanGuess())

	done := &Game{Secret: "1234", Finished: true}
	assert.ErrorIs(t, done.CanGuess(), ErrGameFinished)
}

func intersection(a, b string) int {
	n := 0
	for i := 0; i < len(b); i++ {
		if strings.IndexByte(a, b[i]) >= 0 {
			n++
		}
	}
	return n
}
