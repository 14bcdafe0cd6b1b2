// apps/gtn-server/internal/game/types.go
//
// Core type definitions for the Guess the Number engine.
// Defines:
//   - Game:   a single game with its four-digit secret.
//   - Round:  one scored guess, append-only.
//   - Result: exact/partial match counts for a guess.
//   - Outcome: WIN | CONTINUE reported back to callers.
//   - ValidationError: the guess rule that was violated.

package game

import (
	"errors"
	"time"
)

const (
	// SecretLength is the number of digits in a secret and in every guess.
	SecretLength = 4

	// MaskedSecret replaces the secret in any view of an unfinished game.
	MaskedSecret = "****"
)

// ErrGameFinished is returned when a guess targets a game that is already won.
var ErrGameFinished = errors.New("game is already finished")

// Game holds the state of a single game.
type Game struct {
	ID        int64     // Assigned by the store on creation.
	Secret    string    // Four distinct digits. Never shown while unfinished.
	Finished  bool      // Set exactly once, on the winning round.
	StartedAt time.Time // Creation timestamp (UTC).
}

// CanGuess reports whether g still accepts scoring guesses.
func (g *Game) CanGuess() error {
	if g.Finished {
		return ErrGameFinished
	}
	return nil
}

// Round is a single recorded guess against a game.
type Round struct {
	ID           int64
	GameID       int64
	Guess        string
	ExactMatch   int
	PartialMatch int
	CreatedAt    time.Time
}

// Result is the score of one guess.
type Result struct {
	ExactMatch   int
	PartialMatch int
}

// Won reports whether every position matched.
func (r Result) Won() bool { return r.ExactMatch == SecretLength }

// Outcome is the coarse result of a guess submission.
type Outcome string

const (
	OutcomeWin      Outcome = "WIN"
	OutcomeContinue Outcome = "CONTINUE"
)

// OutcomeOf maps a score to the submission outcome.
func OutcomeOf(r Result) Outcome {
	if r.Won() {
		return OutcomeWin
	}
	return OutcomeContinue
}

// Rule names which guess constraint failed.
type Rule string

const (
	RuleLength Rule = "length"
	RuleDigits Rule = "digits"
	RuleUnique Rule = "unique"
)

// ValidationError reports a malformed guess.
type ValidationError struct {
	Rule    Rule
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
