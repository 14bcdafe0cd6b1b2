// apps/gtn-server/internal/game/engine.go
//
// Core rules for Guess the Number.
// Responsibilities:
//   - Generate secrets: four distinct digits from a shuffled 0–9 alphabet.
//   - Validate guesses (length, digits only, no repeated digit).
//   - Score a guess against a secret (exact + partial matches).
//
// Notes:
//   - Secrets and guesses are ASCII, so byte indexing is safe once validated.
//   - Because both strings have distinct digits, partial = |digits(g) ∩ digits(s)| - exact.
package game

import (
	"fmt"
	"math/rand/v2"
)

const digits = "0123456789"

// NewSecret returns a uniformly random secret using the process-wide source.
func NewSecret() string {
	return shuffleSecret(rand.Shuffle)
}

// NewSecretWith draws a secret from r. Useful for seeded, repeatable games.
func NewSecretWith(r *rand.Rand) string {
	return shuffleSecret(r.Shuffle)
}

func shuffleSecret(shuffle func(n int, swap func(i, j int))) string {
	alphabet := []byte(digits)
	shuffle(len(alphabet), func(i, j int) {
		alphabet[i], alphabet[j] = alphabet[j], alphabet[i]
	})
	return string(alphabet[:SecretLength])
}

// ValidateGuess checks, in order: exact length, digits only, distinct digits.
// The first failing rule is reported as a *ValidationError.
func ValidateGuess(guess string) error {
	if len(guess) != SecretLength {
		return &ValidationError{
			Rule:    RuleLength,
			Message: fmt.Sprintf("Guess must be exactly %d digits.", SecretLength),
		}
	}

	var seen [10]bool
	for i := 0; i < len(guess); i++ {
		if !isDigit(guess[i]) {
			return &ValidationError{Rule: RuleDigits, Message: "Guess must contain only digits 0-9."}
		}
	}
	for i := 0; i < len(guess); i++ {
		d := guess[i] - '0'
		if seen[d] {
			return &ValidationError{Rule: RuleUnique, Message: "Digits must be unique (no repeats)."}
		}
		seen[d] = true
	}
	return nil
}

// Score compares guess against secret.
//
// ExactMatch counts positions where both strings hold the same digit.
// PartialMatch counts guess digits present elsewhere in the secret.
// Both inputs must satisfy ValidateGuess; otherwise the violation is returned.
func Score(secret, guess string) (Result, error) {
	if err := ValidateGuess(secret); err != nil {
		return Result{}, fmt.Errorf("invalid secret: %w", err)
	}
	if err := ValidateGuess(guess); err != nil {
		return Result{}, err
	}

	var inSecret [10]bool
	for i := 0; i < SecretLength; i++ {
		inSecret[secret[i]-'0'] = true
	}

	var res Result
	shared := 0
	for i := 0; i < SecretLength; i++ {
		if guess[i] == secret[i] {
			res.ExactMatch++
		}
		if inSecret[guess[i]-'0'] {
			shared++
		}
	}
	res.PartialMatch = shared - res.ExactMatch
	return res, nil
}

// isDigit reports whether b is an ASCII decimal digit.
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
