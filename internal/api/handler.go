package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/generator"
	"github.com/opensource-finance/welfareshield/internal/index"
	"github.com/opensource-finance/welfareshield/internal/rules"
	"github.com/opensource-finance/welfareshield/internal/scoring"
	"github.com/opensource-finance/welfareshield/internal/session"
)

var validate = validator.New()

// Handler holds dependencies for API handlers.
type Handler struct {
	sessions *session.Manager
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *rules.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(sessions *session.Manager, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, version string) *Handler {
	return &Handler{
		sessions: sessions,
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		version:  version,
	}
}

// snapshot loads the caller's session snapshot, writing the error response
// itself when that fails.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*session.Snapshot, bool) {
	s, err := h.sessions.Get(r.Context(), GetSessionID(r.Context()))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	activeSessions.Set(float64(h.sessions.Len()))
	return s, true
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// KPIs returns the dashboard headline figures for the session.
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Index.KPIs())
}

// ListBeneficiaries handles GET /beneficiaries.
//
// Query parameters: minScore, search, sort (riskScore|name), limit and expr,
// an optional CEL predicate over the same variables as watch rules.
func (h *Handler) ListBeneficiaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var query index.BeneficiaryQuery
	var err error
	if query.MinScore, err = queryInt(q.Get("minScore"), 0); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minScore must be an integer"})
		return
	}
	if query.Limit, err = queryInt(q.Get("limit"), 0); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}
	query.Search = q.Get("search")
	query.Sort = q.Get("sort")

	if err := validate.Struct(query); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var filter *rules.Filter
	if expr := q.Get("expr"); expr != "" {
		if h.engine == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rule engine not available"})
			return
		}
		if filter, err = h.engine.Compile(expr); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid expression: " + err.Error()})
			return
		}
	}

	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	var match func(*domain.Beneficiary) bool
	if filter != nil {
		ctx := r.Context()
		match = func(b *domain.Beneficiary) bool {
			count, err := s.Velocity.GetTransactionCount(ctx, b.ID, s.VelocityWindowDays)
			if err != nil {
				count = 0
			}
			return filter.MatchBeneficiary(b, scoring.ClassifyTier(b.RiskScore), count)
		}
	}

	list := s.Index.FilterBeneficiaries(query, match)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"beneficiaries": list,
		"count":         len(list),
	})
}

// ListTransactions handles GET /transactions.
//
// Query parameters: scheme, severity, from, to (YYYY-MM-DD) and limit.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := index.TransactionQuery{
		Scheme:   q.Get("scheme"),
		Severity: domain.Tier(q.Get("severity")),
	}
	var err error
	if query.Limit, err = queryInt(q.Get("limit"), 0); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		return
	}
	if query.From, err = queryDate(q.Get("from")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be a YYYY-MM-DD date"})
		return
	}
	if query.To, err = queryDate(q.Get("to")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be a YYYY-MM-DD date"})
		return
	}

	if err := validate.Struct(query); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	list := s.Index.FilterTransactions(query)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": list,
		"count":        len(list),
	})
}

// RiskTrend returns the session's monthly risk index series.
func (h *Handler) RiskTrend(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Trend)
}

// RegionalAnomalies returns the static heat-map points.
func (h *Handler) RegionalAnomalies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, generator.RegionalAnomalies())
}

// AnomalyAlerts returns the curated alert catalogue, served from the
// repository when one is configured.
func (h *Handler) AnomalyAlerts(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusOK, generator.AnomalyAlerts())
		return
	}

	alerts, err := h.repo.ListAlerts(r.Context())
	if err != nil {
		slog.Error("failed to list anomaly alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load anomaly alerts",
		})
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Regions returns per-state summaries for the session.
func (h *Handler) Regions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Index.RegionSummaries())
}

// MonthlyRollups returns flagged transaction totals per calendar month.
func (h *Handler) MonthlyRollups(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Index.MonthlyRollups())
}

// ResetSession regenerates the caller's snapshot.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())

	s, err := h.sessions.Reset(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	snapshotResets.Inc()
	activeSessions.Set(float64(h.sessions.Len()))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId":     s.SessionID,
		"generation":    s.Generation,
		"seed":          strconv.FormatUint(s.Seed, 10),
		"beneficiaries": len(s.Index.Beneficiaries()),
		"transactions":  len(s.Index.Transactions()),
		"createdAt":     s.CreatedAt,
	})
}

// ListRules returns the watch rules loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rule engine not available"})
		return
	}

	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a watch rule by ID, preferring the stored copy so that
// rules saved but not yet reloaded are visible.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if h.repo != nil {
		rule, err := h.repo.GetWatchRule(r.Context(), ruleID)
		if err == nil {
			writeJSON(w, http.StatusOK, rule)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get watch rule", "id", ruleID, "error", err)
			writeError(w, err)
			return
		}
	}

	if h.engine != nil {
		for _, rule := range h.engine.GetLoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a watch rule.
type CreateRuleRequest struct {
	ID          string `json:"id" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description,omitempty" validate:"max=512"`
	Expression  string `json:"expression" validate:"required,max=2048"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule validates a watch rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	if h.repo == nil || h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rule := &domain.WatchRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveWatchRule(ctx, rule); err != nil {
		slog.Error("failed to save watch rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("watch rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule disables a watch rule and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteWatchRule(r.Context(), ruleID); err != nil {
		writeError(w, err)
		return
	}

	count, err := h.reloadRules(r)
	if err != nil {
		slog.Error("failed to reload rules after delete", "id", ruleID, "error", err)
	}

	slog.Info("watch rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rule deleted",
		"count":   count,
	})
}

// ReloadRules reloads all watch rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	count, err := h.reloadRules(r)
	if err != nil {
		slog.Error("failed to reload watch rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("watch rules reloaded from database", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reloadRules(r *http.Request) (int, error) {
	if h.engine == nil {
		return 0, nil
	}
	dbRules, err := h.repo.ListWatchRules(r.Context())
	if err != nil {
		return 0, err
	}
	if err := h.engine.ReloadRules(dbRules); err != nil {
		return 0, err
	}
	return len(dbRules), nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func queryDate(raw string) (civil.Date, error) {
	if raw == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(raw)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownEntityType), errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
