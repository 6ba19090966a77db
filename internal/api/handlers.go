package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eddiefleurent/options_tracker/internal/ledger"
	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/views"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Accounts())
}

type accountRequest struct {
	Name   string `json:"name"`
	Broker string `json:"broker"`
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !s.decode(w, r, &req) {
		return
	}
	acc, err := s.ledger.AddAccount(req.Name, req.Broker)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAccount(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// accountFilter reads ?account=, defaulting to every account.
func accountFilter(r *http.Request) string {
	if id := r.URL.Query().Get("account"); id != "" {
		return id
	}
	return views.AllAccounts
}

func (s *Server) handleListOpen(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.OpenStrategies(accountFilter(r)))
}

func (s *Server) handleListClosed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.ClosedStrategies(accountFilter(r)))
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	st, ok := s.ledger.Strategy(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, r, ledger.ErrStrategyNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleOpenStrategy(w http.ResponseWriter, r *http.Request) {
	var in models.StrategyInput
	if !s.decode(w, r, &in) {
		return
	}
	st, err := s.ledger.OpenStrategy(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleEditStrategy(w http.ResponseWriter, r *http.Request) {
	var in models.StrategyInput
	if !s.decode(w, r, &in) {
		return
	}
	applied, err := s.ledger.EditStrategy(chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (s *Server) handleRollStrategy(w http.ResponseWriter, r *http.Request) {
	var in ledger.RollInput
	if !s.decode(w, r, &in) {
		return
	}
	st, err := s.ledger.RollStrategy(chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

type closeRequest struct {
	Legs []ledger.ClosingLeg `json:"legs"`
}

func (s *Server) handleCloseStrategy(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.ledger.CloseStrategy(chi.URLParam(r, "id"), req.Legs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

type sortRequest struct {
	Key views.SortKey `json:"key"`
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if !s.decode(w, r, &req) {
		return
	}
	cfg, err := s.ledger.ToggleSort(ledger.Table(chi.URLParam(r, "table")), req.Key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := views.ParsePeriod(q.Get("period"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	var custom views.DateRange
	if period == views.PeriodCustom {
		custom = views.DefaultCustomRange(s.now())
		if start := q.Get("start"); start != "" {
			custom.Start = start
		}
		if end := q.Get("end"); end != "" {
			custom.End = end
		}
	}

	s.writeJSON(w, http.StatusOK, s.ledger.Summary(accountFilter(r), period, custom))
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.History())
}

type watchlistResponse struct {
	Manual []string               `json:"manual"`
	Items  []models.WatchlistItem `json:"items"`
}

func (s *Server) handleWatchlist(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, watchlistResponse{
		Manual: s.ledger.ManualWatchlist(),
		Items:  s.ledger.Watchlist(),
	})
}

type watchRequest struct {
	Ticker string `json:"ticker"`
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if !s.decode(w, r, &req) {
		return
	}
	added, err := s.ledger.AddToWatchlist(req.Ticker)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]bool{"added": added})
}

func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.RemoveFromWatchlist(chi.URLParam(r, "ticker")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Alerts())
}

type alertRequest struct {
	Ticker      string                `json:"ticker"`
	TargetPrice float64               `json:"targetPrice"`
	Condition   models.AlertCondition `json:"condition"`
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.ledger.AddAlert(req.Ticker, req.TargetPrice, req.Condition)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAlert(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Notifications())
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DismissNotification(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh collapses concurrent requests into one refresh. The refresh
// outlives a disconnecting caller but is still bounded by the request timeout.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ch := s.refreshes.DoChan("refresh", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
		defer cancel()
		return s.ledger.Refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			s.writeError(w, r, res.Err)
			return
		}
		s.writeJSON(w, http.StatusOK, res.Val)
	case <-r.Context().Done():
		s.logger.WithError(r.Context().Err()).Warn("Refresh request abandoned")
	}
}

func (s *Server) handleGetProvider(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, maskSettings(s.ledger.Settings()))
}

func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var settings models.ProviderSettings
	if !s.decode(w, r, &settings) {
		return
	}
	if err := s.ledger.SetProviderSettings(settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, maskSettings(s.ledger.Settings()))
}

func (s *Server) handleAudit(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Audit())
}

type providerResponse struct {
	Provider   models.ProviderName `json:"provider"`
	Configured bool                `json:"configured"`
	Keys       models.APIKeys      `json:"keys"`
}

const maskedKey = "********"

// maskSettings hides key material; a set key reads back as a fixed mask.
func maskSettings(settings models.ProviderSettings) providerResponse {
	mask := func(k string) string {
		if k == "" {
			return ""
		}
		return maskedKey
	}
	return providerResponse{
		Provider:   settings.Provider,
		Configured: settings.Configured(),
		Keys: models.APIKeys{
			AlphaVantage: mask(settings.Keys.AlphaVantage),
			AlpacaKey:    mask(settings.Keys.AlpacaKey),
			AlpacaSecret: mask(settings.Keys.AlpacaSecret),
			Tradier:      mask(settings.Keys.Tradier),
			Gemini:       mask(settings.Keys.Gemini),
		},
	}
}
