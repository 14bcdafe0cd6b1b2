package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/game"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/service"
)

const maxBodyBytes = 4096

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string    `json:"error"`
	Rule  game.Rule `json:"rule,omitempty"`
}

type startRes struct {
	Message string `json:"message"`
	GameID  int64  `json:"gameId"`
}

// guessReq is the body of POST /guess. Both fields are required.
type guessReq struct {
	GameID *int64  `json:"gameId"`
	Guess  *string `json:"guess"`
}

func (g guessReq) validate() error {
	switch {
	case g.GameID == nil:
		return errors.New("gameId is required")
	case g.Guess == nil:
		return errors.New("guess is required")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleStart creates a game; the secret stays on the server.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.StartGame(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startRes{Message: "Game started", GameID: g.GameID})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	g, err := s.svc.GetGame(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	case err != nil:
		s.serverError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, g)
	}
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.svc.ListGames(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	rounds, err := s.svc.ListRounds(r.Context(), id)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// handleGuessPath serves POST /{gameId}/{guess}.
func (s *Server) handleGuessPath(w http.ResponseWriter, r *http.Request) {
	id, ok := gameIDParam(w, r)
	if !ok {
		return
	}
	s.guess(w, r, id, chi.URLParam(r, "guess"))
}

// handleGuessJSON serves POST /guess with a guessReq body.
func (s *Server) handleGuessJSON(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var req guessReq
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_json"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.guess(w, r, *req.GameID, *req.Guess)
}

func (s *Server) guess(w http.ResponseWriter, r *http.Request, gameID int64, guess string) {
	res, err := s.svc.SubmitGuess(r.Context(), gameID, guess)

	var verr *game.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Rule: verr.Rule})
	case errors.Is(err, service.ErrGameNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Game not found"})
	case errors.Is(err, game.ErrGameFinished):
		writeJSON(w, http.StatusConflict, errorBody{Error: "Game already finished"})
	default:
		s.serverError(w, r, err)
	}
}

// gameIDParam parses the {gameId} URL param, writing a 400 when it is not an integer.
func gameIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "gameId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid game id"})
		return 0, false
	}
	return id, true
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
