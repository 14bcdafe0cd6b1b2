// apps/gtn-server/internal/httpserver/server.go
//
// HTTP server wiring for the Guess the Number backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Game endpoints: POST /start, GET /game/{gameId}, GET /games, GET /rounds/{gameId}.
//   - Guess endpoints (rate limited): POST /{gameId}/{guess}, POST /guess.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled for the configured client.
//   - Handlers only parse, call GameService and map its errors to status codes;
//     the masked views come back from the service ready to encode.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/config"
	"github.com/DHunnicuttSG/SRE/apps/gtn-server/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server bundles router, game service, and the store health probe.
type Server struct {
	r      *chi.Mux
	http   *http.Server
	svc    *service.GameService
	health Pinger
	log    zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(svc *service.GameService, health Pinger, cfg *config.Config, logger zerolog.Logger) *Server {
	s := &Server{r: chi.NewRouter(), svc: svc, health: health, log: logger}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                   // add X-Request-ID
	s.r.Use(chimw.RealIP)                      // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger(logger))             // one line per request
	s.r.Use(chimw.Recoverer)                   // recover from panics
	s.r.Use(chimw.Timeout(cfg.RequestTimeout)) // bound handler time
	s.r.Use(jsonContentType)                   // default JSON responses
	s.r.Use(cors(cfg.ClientOrigin))            // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "gtn-go",
			"endpoints": []string{"/health", "POST /start", "GET /game/{gameId}", "GET /games", "GET /rounds/{gameId}", "POST /{gameId}/{guess}", "POST /guess"},
		})
	})
	s.r.Get("/health", s.handleHealth)

	// --- games ---
	s.r.Post("/start", s.handleStart)
	s.r.Get("/game/{gameId}", s.handleGetGame)
	s.r.Get("/games", s.handleListGames)
	s.r.Get("/rounds/{gameId}", s.handleListRounds)

	// --- guesses ---
	limiter := rate.NewLimiter(rate.Limit(cfg.Guess.Rate), cfg.Guess.Burst)
	s.r.Group(func(r chi.Router) {
		r.Use(limitRate(limiter))
		r.Post("/guess", s.handleGuessJSON)
		r.Post("/{gameId}/{guess}", s.handleGuessPath)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving HTTP. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error { return s.http.ListenAndServe() }

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }
