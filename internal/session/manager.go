package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/opensource-finance/welfareshield/internal/bus"
	"github.com/opensource-finance/welfareshield/internal/cache"
	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/resolver"
)

// MaxSessionIDLength bounds the accepted session identifier.
const MaxSessionIDLength = 128

// Config sizes the snapshots a Manager builds.
type Config struct {
	Generator   domain.GeneratorConfig
	ScoreTTL    time.Duration
	MaxSessions int
}

// Deps are the shared services every snapshot is wired to. All are optional.
type Deps struct {
	Cache  domain.Cache
	Bus    domain.EventBus
	Watch  resolver.Matcher
	Logger *slog.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

// Manager maps session ids to snapshots. A snapshot is built lazily on the
// first read and replaced only by Reset.
type Manager struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	flight    singleflight.Group

	cfg    Config
	cache  domain.Cache
	bus    domain.EventBus
	watch  resolver.Matcher
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewManager creates an empty session manager.
func NewManager(cfg Config, deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		snapshots: make(map[string]*Snapshot),
		cfg:       cfg,
		cache:     deps.Cache,
		bus:       deps.Bus,
		watch:     deps.Watch,
		logger:    logger,
		tracer:    deps.Tracer,
		now:       now,
	}
}

// Get returns the session's snapshot, building it on first use.
// Concurrent first reads of one session share a single build.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}

	if s := m.lookup(sessionID); s != nil {
		return s, nil
	}

	v, err, _ := m.flight.Do(sessionID, func() (any, error) {
		if s := m.lookup(sessionID); s != nil {
			return s, nil
		}

		s, err := m.build(sessionID, 0, m.seedFor(sessionID, 0))
		if err != nil {
			return nil, err
		}
		s = m.store(s)

		m.logger.Info("session snapshot created",
			"session_id", sessionID,
			"seed", s.Seed,
			"beneficiaries", len(s.Index.Beneficiaries()),
			"transactions", len(s.Index.Transactions()),
		)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Reset regenerates the session's snapshot under the next generation and
// announces it on the audit stream.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*Snapshot, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}

	v, err, _ := m.flight.Do("reset:"+sessionID, func() (any, error) {
		generation := 1
		if prev := m.lookup(sessionID); prev != nil {
			generation = prev.Generation + 1
		}

		s, err := m.build(sessionID, generation, m.seedFor(sessionID, generation))
		if err != nil {
			return nil, err
		}
		return m.store(s), nil
	})
	if err != nil {
		return nil, err
	}
	s := v.(*Snapshot)

	if purger, ok := m.cache.(cache.SessionPurger); ok {
		if _, err := purger.PurgeSession(ctx, sessionID); err != nil {
			m.logger.Warn("failed to purge session cache", "session_id", sessionID, "error", err)
		}
	}

	m.logger.Info("session snapshot reset",
		"session_id", sessionID,
		"generation", s.Generation,
		"seed", s.Seed,
	)

	if m.bus != nil {
		event := domain.SnapshotResetEvent{
			SessionID:     sessionID,
			Seed:          s.Seed,
			Generation:    s.Generation,
			Beneficiaries: len(s.Index.Beneficiaries()),
			Transactions:  len(s.Index.Transactions()),
		}
		if err := bus.PublishJSON(ctx, m.bus, domain.AuditStream, domain.TopicSnapshotReset, event); err != nil {
			m.logger.Warn("failed to publish snapshot reset", "session_id", sessionID, "error", err)
		}
	}

	return s, nil
}

// Drop forgets a session. It reports whether a snapshot existed.
func (m *Manager) Drop(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.snapshots[sessionID]
	delete(m.snapshots, sessionID)
	return ok
}

// Len returns the number of live snapshots.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func (m *Manager) lookup(sessionID string) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[sessionID]
}

// store installs s unless a newer generation is already present, evicting
// the oldest snapshot when over capacity. It returns the installed snapshot.
func (m *Manager) store(s *Snapshot) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.snapshots[s.SessionID]; ok && cur.Generation >= s.Generation {
		return cur
	}
	m.snapshots[s.SessionID] = s

	if m.cfg.MaxSessions > 0 && len(m.snapshots) > m.cfg.MaxSessions {
		var oldest *Snapshot
		for _, snap := range m.snapshots {
			if snap.SessionID == s.SessionID {
				continue
			}
			if oldest == nil || snap.CreatedAt.Before(oldest.CreatedAt) {
				oldest = snap
			}
		}
		if oldest != nil {
			delete(m.snapshots, oldest.SessionID)
			m.logger.Info("session snapshot evicted", "session_id", oldest.SessionID)
		}
	}
	return s
}

// seedFor derives a per-session, per-generation seed. A configured seed makes
// every session reproducible; zero falls back to the clock.
func (m *Manager) seedFor(sessionID string, generation int) uint64 {
	base := m.cfg.Generator.Seed
	if base == 0 {
		base = uint64(m.now().UnixNano())
	}
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return mix64(base ^ h.Sum64() ^ uint64(generation)*0x9e3779b97f4a7c15)
}

// mix64 is the splitmix64 finaliser.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ValidateID rejects empty or oversized session identifiers.
func ValidateID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	if len(sessionID) > MaxSessionIDLength {
		return fmt.Errorf("%w: session id longer than %d bytes", domain.ErrInvalidInput, MaxSessionIDLength)
	}
	return nil
}
