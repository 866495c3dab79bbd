// Package worker provides async processing of audit events.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// ViewRecorder persists profile views. domain.Repository satisfies it.
type ViewRecorder interface {
	SaveProfileView(ctx context.Context, view *domain.ProfileView) error
}

// Worker consumes the audit stream and appends profile views to the
// investigation trail.
type Worker struct {
	bus  domain.EventBus
	repo ViewRecorder

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	viewsSaved  atomic.Int64
	viewsFailed atomic.Int64
	resets      atomic.Int64
}

// NewWorker creates a new audit worker.
func NewWorker(bus domain.EventBus, repo ViewRecorder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the audit stream.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	handlers := map[string]domain.MessageHandler{
		domain.TopicProfileViewed: w.handleProfileViewed,
		domain.TopicSnapshotReset: w.handleSnapshotReset,
	}
	for _, topic := range []string{domain.TopicProfileViewed, domain.TopicSnapshotReset} {
		sub, err := w.bus.Subscribe(w.ctx, domain.AuditStream, topic, handlers[topic])
		if err != nil {
			w.unsubscribeAll()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("audit worker started",
		"stream", domain.AuditStream,
		"topics", len(w.subscriptions),
	)
	return nil
}

// handleProfileViewed stores one profile view.
func (w *Worker) handleProfileViewed(ctx context.Context, msg *domain.Message) error {
	var view domain.ProfileView
	if err := json.Unmarshal(msg.Payload, &view); err != nil {
		w.viewsFailed.Add(1)
		slog.Error("failed to parse profile view",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if view.ID == "" {
		view.ID = uuid.New().String()
	}
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Unix(0, msg.Timestamp).UTC()
	}

	if w.repo == nil {
		return nil
	}
	if err := w.repo.SaveProfileView(ctx, &view); err != nil {
		w.viewsFailed.Add(1)
		slog.Error("failed to save profile view",
			"session_id", view.SessionID,
			"entity_type", view.EntityType,
			"entity_id", view.EntityID,
			"error", err,
		)
		return err
	}
	w.viewsSaved.Add(1)

	slog.Debug("profile view recorded",
		"session_id", view.SessionID,
		"entity_type", view.EntityType,
		"entity_id", view.EntityID,
	)
	return nil
}

func (w *Worker) handleSnapshotReset(ctx context.Context, msg *domain.Message) error {
	var ev domain.SnapshotResetEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return err
	}
	w.resets.Add(1)

	slog.Info("snapshot reset observed",
		"session_id", ev.SessionID,
		"generation", ev.Generation,
		"seed", ev.Seed,
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	w.unsubscribeAll()
	w.mu.Unlock()

	slog.Info("audit worker stopped")
	return nil
}

// unsubscribeAll must be called with mu held.
func (w *Worker) unsubscribeAll() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	ViewsSaved        int64    `json:"viewsSaved"`
	ViewsFailed       int64    `json:"viewsFailed"`
	Resets            int64    `json:"resets"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		ViewsSaved:        w.viewsSaved.Load(),
		ViewsFailed:       w.viewsFailed.Load(),
		Resets:            w.resets.Load(),
	}
}
