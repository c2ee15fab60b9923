// Package server provides the HTTP API over the dapp operations.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/branched-services/go-evmprobe/internal/config"
	"github.com/branched-services/go-evmprobe/internal/dapp"
	"github.com/branched-services/go-evmprobe/internal/metrics"
)

// Server is the HTTP server
type Server struct {
	cfg     *config.Config
	svc     dapp.API
	logger  *slog.Logger
	router  *chi.Mux
	limiter *RateLimiter
}

// New creates a new server. svc is wrapped with the dapp logging middleware.
func New(cfg *config.Config, svc dapp.API, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    dapp.LoggingMiddleware(logger)(svc),
		logger: logger,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RealIP)

	if s.cfg.RateLimit.Enabled {
		s.limiter = NewRateLimiter(s.cfg.RateLimit.RequestsPerMin, s.cfg.RateLimit.BurstSize, 10*time.Minute)
		s.router.Use(s.limiter.Middleware)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)

	// Browser clients call the API directly.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/health/network", s.handleNetwork)
	s.router.Get("/account", s.handleAccount)
	s.router.Get("/health/account", s.handleAccount)
	s.router.Get("/block-number", s.handleBlockNumber)
	s.router.Get("/balance/eth", s.handleEthBalance)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/erc20", func(r chi.Router) {
		r.Get("/decimals", s.handleDecimals)
		r.Get("/balance", s.handleTokenBalance)
		r.Get("/allowance", s.handleAllowance)
		r.Get("/meta", s.handleMeta)
		r.Post("/approve", s.handleApprove)
		r.Post("/transfer", s.handleTransfer)
		r.Post("/transferFrom", s.handleTransferFrom)
	})
	s.router.Get("/balance/erc20", s.handleTokenBalance)

	s.router.Route("/wallet", func(r chi.Router) {
		r.Post("/deposit", s.handleDeposit)
		r.Post("/withdraw", s.handleWithdraw)
	})

	s.router.Route("/t31", func(r chi.Router) {
		r.Get("/state", s.handleGameState)
		r.Get("/inspect", s.handleGameInspect)
		r.Post("/submit", s.handleGameSubmit)
		r.Post("/round/next", s.handleGameNextRound)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
