// Package api serves the ledger over a JSON HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
)

// Server is the HTTP front end of a ledger.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	ledger    *ledger.Ledger
	logger    *logrus.Logger
	port      int
	authToken string
	timeout   time.Duration
	refreshes singleflight.Group
	now       func() time.Time
}

// Config configures the HTTP server.
type Config struct {
	Port      int
	AuthToken string
	// RequestTimeout bounds each request, including refreshes.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 60 * time.Second

// NewServer creates a server over l. A nil logger falls back to the logrus standard logger.
func NewServer(cfg Config, l *ledger.Ledger, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		router:    chi.NewRouter(),
		ledger:    l,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
		timeout:   cfg.RequestTimeout,
		now:       time.Now,
	}

	s.setupRoutes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.timeout))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts", s.handleAddAccount)
		r.Delete("/accounts/{id}", s.handleDeleteAccount)

		r.Get("/positions", s.handleListOpen)
		r.Post("/positions", s.handleOpenStrategy)
		r.Get("/positions/{id}", s.handleGetStrategy)
		r.Put("/positions/{id}", s.handleEditStrategy)
		r.Post("/positions/{id}/roll", s.handleRollStrategy)
		r.Post("/positions/{id}/close", s.handleCloseStrategy)
		r.Get("/closed", s.handleListClosed)
		r.Post("/sort/{table}", s.handleSort)

		r.Get("/summary", s.handleSummary)
		r.Get("/history", s.handleHistory)

		r.Get("/watchlist", s.handleWatchlist)
		r.Post("/watchlist", s.handleWatch)
		r.Delete("/watchlist/{ticker}", s.handleUnwatch)

		r.Get("/alerts", s.handleListAlerts)
		r.Post("/alerts", s.handleAddAlert)
		r.Delete("/alerts/{id}", s.handleDeleteAlert)
		r.Get("/notifications", s.handleNotifications)
		r.Delete("/notifications/{id}", s.handleDismissNotification)

		r.Post("/refresh", s.handleRefresh)
		r.Get("/settings/provider", s.handleGetProvider)
		r.Put("/settings/provider", s.handleSetProvider)
		r.Get("/audit", s.handleAudit)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
			"request":  middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting API server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// statusFor maps ledger errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		configErr  *ledger.ConfigError
		refreshErr *ledger.RefreshError
		domainErr  *ledger.DomainError
	)
	switch {
	case errors.As(err, &configErr):
		return http.StatusPreconditionFailed
	case errors.As(err, &refreshErr):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrStrategyNotFound),
		errors.Is(err, ledger.ErrAlertNotFound),
		errors.Is(err, ledger.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrAccountInUse), errors.Is(err, ledger.ErrMultiLegRoll):
		return http.StatusConflict
	case errors.As(err, &domainErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := s.logger.WithError(err).WithFields(logrus.Fields{"path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

// decode reads a JSON body, rejecting unknown fields.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().Unix(),
	})
}
