// Package view turns engine types into client-facing JSON shapes.
//
// FromGame is the one place a secret can leave the server, and it masks
// the secret unless the game is finished. Every read path goes through it.
// Struct field order fixes JSON key order.
package view

import (
	"encoding/json"
	"time"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
)

// Game is the client view of a game.
type Game struct {
	GameID     int64     `json:"gameId"`
	Answer     string    `json:"answer"`
	IsFinished bool      `json:"isFinished"`
	StartedAt  Timestamp `json:"startedAt"`
}

// Round is the client view of a round.
type Round struct {
	RoundID      int64     `json:"roundId"`
	GameID       int64     `json:"gameId"`
	Guess        string    `json:"guess"`
	ExactMatch   int       `json:"exactMatch"`
	PartialMatch int       `json:"partialMatch"`
	CreatedAt    Timestamp `json:"createdAt"`
}

// Result carries the match counts of the guess just scored.
type Result struct {
	ExactMatch   int `json:"exactMatch"`
	PartialMatch int `json:"partialMatch"`
}

// GuessResult is the response to a guess submission.
type GuessResult struct {
	Status game.Outcome `json:"status"`
	Game   Game         `json:"game"`
	Rounds []Round      `json:"rounds"`
	Result Result       `json:"result"`
}

// FromGame builds the client view, masking the secret while the game is open.
func FromGame(g game.Game) Game {
	answer := g.Secret
	if !g.Finished {
		answer = game.MaskedSecret
	}
	return Game{
		GameID:     g.ID,
		Answer:     answer,
		IsFinished: g.Finished,
		StartedAt:  Timestamp(g.StartedAt),
	}
}

// FromGames maps FromGame over games.
func FromGames(games []game.Game) []Game {
	out := make([]Game, 0, len(games))
	for _, g := range games {
		out = append(out, FromGame(g))
	}
	return out
}

// FromRound builds the client view of a round.
func FromRound(r game.Round) Round {
	return Round{
		RoundID:      r.ID,
		GameID:       r.GameID,
		Guess:        r.Guess,
		ExactMatch:   r.ExactMatch,
		PartialMatch: r.PartialMatch,
		CreatedAt:    Timestamp(r.CreatedAt),
	}
}

// FromRounds maps FromRound over rounds, keeping their order.
func FromRounds(rounds []game.Round) []Round {
	out := make([]Round, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, FromRound(r))
	}
	return out
}

// FromResult copies the match counts.
func FromResult(r game.Result) Result {
	return Result{ExactMatch: r.ExactMatch, PartialMatch: r.PartialMatch}
}

// Timestamp encodes as RFC3339 in UTC, or null when zero.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tt.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts the MarshalJSON form, including null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	tt, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = Timestamp(tt)
	return nil
}
