package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/welfareshield/internal/bus"
	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/repository"
)

// profileViewWindow bounds the per-session view counter.
const profileViewWindow = 24 * time.Hour

// GetProfile handles GET /profile/{entityType}/{id}.
//
// The resolved profile is returned as is. Each successful resolution is
// published to the audit stream and counted per session.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := GetSessionID(ctx)
	entityType := chi.URLParam(r, "entityType")
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}

	s, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	profile, err := s.Resolver.Resolve(ctx, entityType, id)
	if err != nil {
		profileResolutions.WithLabelValues(metricEntityType(entityType), outcome(err)).Inc()
		writeError(w, err)
		return
	}
	core := profile.Core()
	profileResolutions.WithLabelValues(string(core.EntityType), "ok").Inc()

	if h.cache != nil {
		key := "views:" + string(core.EntityType) + ":" + id
		if n, err := h.cache.IncrementCounter(ctx, sessionID, key, profileViewWindow); err == nil {
			w.Header().Set(ProfileViewsHeader, strconv.FormatInt(n, 10))
		} else {
			slog.Warn("failed to count profile view", "session_id", sessionID, "key", key, "error", err)
		}
	}

	if h.bus != nil {
		view := domain.ProfileView{
			SessionID:  sessionID,
			EntityType: core.EntityType,
			EntityID:   id,
			RiskScore:  core.RiskScore,
			RequestID:  GetRequestID(ctx),
			ViewedAt:   time.Now().UTC(),
		}
		if err := bus.PublishJSON(ctx, h.bus, domain.AuditStream, domain.TopicProfileViewed, view); err != nil {
			slog.Warn("failed to publish profile view",
				"session_id", sessionID,
				"entity_type", core.EntityType,
				"entity_id", id,
				"error", err,
			)
		}
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListProfileViews returns the caller's most recent profile views.
func (h *Handler) ListProfileViews(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit, err := queryInt(r.URL.Query().Get("limit"), repository.DefaultViewLimit)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		return
	}

	views, err := h.repo.ListProfileViews(r.Context(), GetSessionID(r.Context()), limit)
	if err != nil {
		slog.Error("failed to list profile views", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"views": views,
		"count": len(views),
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnknownEntityType), errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	}
	return "error"
}

// metricEntityType keeps label cardinality bounded for unknown types.
func metricEntityType(raw string) string {
	if t, err := domain.ParseEntityType(raw); err == nil {
		return string(t)
	}
	return "unknown"
}
