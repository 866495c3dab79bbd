package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/welfareshield/internal/bus"
	"github.com/opensource-finance/welfareshield/internal/cache"
	"github.com/opensource-finance/welfareshield/internal/domain"
)

var testNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Generator: domain.GeneratorConfig{
			Beneficiaries:      60,
			Transactions:       80,
			TrendMonths:        12,
			Seed:               42,
			VelocityWindowDays: 90,
		},
		ScoreTTL: time.Minute,
	}
}

func newTestManager(cfg Config, deps Deps) *Manager {
	if deps.Now == nil {
		deps.Now = func() time.Time { return testNow }
	}
	return NewManager(cfg, deps)
}

func TestManagerGet(t *testing.T) {
	m := newTestManager(testConfig(), Deps{})
	ctx := context.Background()

	s, err := m.Get(ctx, "s-1")
	require.NoError(t, err)

	assert.Equal(t, "s-1", s.SessionID)
	assert.Zero(t, s.Generation)
	assert.Len(t, s.Index.Beneficiaries(), 60)
	assert.Len(t, s.Index.Transactions(), 80)
	assert.Len(t, s.Trend, 13)
	assert.Equal(t, 14, s.Today.Day)

	again, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Same(t, s, again, "snapshot must be reused until reset")
	assert.Equal(t, 1, m.Len())
}

func TestManagerReproducible(t *testing.T) {
	ctx := context.Background()
	a, err := newTestManager(testConfig(), Deps{}).Get(ctx, "s-1")
	require.NoError(t, err)
	b, err := newTestManager(testConfig(), Deps{}).Get(ctx, "s-1")
	require.NoError(t, err)

	assert.Equal(t, a.Seed, b.Seed)
	assert.Equal(t, a.Index.Beneficiaries(), b.Index.Beneficiaries())

	other, err := newTestManager(testConfig(), Deps{}).Get(ctx, "s-2")
	require.NoError(t, err)
	assert.NotEqual(t, a.Seed, other.Seed, "sessions must not share a population")
}

func TestManagerConcurrentGet(t *testing.T) {
	m := newTestManager(testConfig(), Deps{})
	ctx := context.Background()

	const readers = 16
	got := make([]*Snapshot, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Get(ctx, "shared")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
}

func TestManagerReset(t *testing.T) {
	lru := cache.NewLRUCache(100)
	events := bus.NewChannelBus(10)
	defer events.Close()

	received := make(chan domain.SnapshotResetEvent, 1)
	_, err := events.Subscribe(context.Background(), domain.AuditStream, domain.TopicSnapshotReset, func(ctx context.Context, msg *domain.Message) error {
		var ev domain.SnapshotResetEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return err
		}
		received <- ev
		return nil
	})
	require.NoError(t, err)

	m := newTestManager(testConfig(), Deps{Cache: lru, Bus: events})
	ctx := context.Background()

	first, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	require.NoError(t, lru.Set(ctx, "s-1", "views:district:Patna", []byte("3"), time.Minute))

	second, err := m.Reset(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Generation)
	assert.NotEqual(t, first.Seed, second.Seed)

	current, err := m.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Same(t, second, current)

	val, err := lru.Get(ctx, "s-1", "views:district:Patna")
	require.NoError(t, err)
	assert.Nil(t, val, "reset must purge the session's cache entries")

	select {
	case ev := <-received:
		assert.Equal(t, "s-1", ev.SessionID)
		assert.Equal(t, 1, ev.Generation)
		assert.Equal(t, 60, ev.Beneficiaries)
		assert.Equal(t, 80, ev.Transactions)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for reset event")
	}

	third, err := m.Reset(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, third.Generation)
}

// remoteCache stands in for a shared cache whose purge can fail.
type remoteCache struct {
	*cache.LRUCache
	purged []string
	err    error
}

func (c *remoteCache) PurgeSession(ctx context.Context, sessionID string) (int, error) {
	c.purged = append(c.purged, sessionID)
	if c.err != nil {
		return 0, c.err
	}
	return c.LRUCache.PurgeSession(ctx, sessionID)
}

func TestManagerResetPurgesAnySessionPurger(t *testing.T) {
	ctx := context.Background()

	t.Run("Purged", func(t *testing.T) {
		c := &remoteCache{LRUCache: cache.NewLRUCache(100)}
		m := newTestManager(testConfig(), Deps{Cache: c})

		_, err := c.IncrementCounter(ctx, "s-1", "views:state:Bihar", time.Hour)
		require.NoError(t, err)

		_, err = m.Reset(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"s-1"}, c.purged)

		count, err := c.IncrementCounter(ctx, "s-1", "views:state:Bihar", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "view counters must restart after a reset")
	})

	t.Run("PurgeFailureDoesNotFailReset", func(t *testing.T) {
		c := &remoteCache{LRUCache: cache.NewLRUCache(100), err: errors.New("redis down")}
		m := newTestManager(testConfig(), Deps{Cache: c})

		s, err := m.Reset(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, 1, s.Generation)
		assert.Len(t, c.purged, 1)
	})
}

func TestManagerResetWithoutSnapshot(t *testing.T) {
	m := newTestManager(testConfig(), Deps{})

	s, err := m.Reset(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Generation)
}

func TestManagerEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 2

	clock := testNow
	m := newTestManager(cfg, Deps{Now: func() time.Time { return clock }})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Get(ctx, id)
		require.NoError(t, err)
		clock = clock.Add(time.Second)
	}

	assert.Equal(t, 2, m.Len())
	assert.Nil(t, m.lookup("a"), "oldest session should be evicted")
	assert.NotNil(t, m.lookup("c"))
}

func TestManagerDrop(t *testing.T) {
	m := newTestManager(testConfig(), Deps{})
	_, err := m.Get(context.Background(), "s-1")
	require.NoError(t, err)

	assert.True(t, m.Drop("s-1"))
	assert.False(t, m.Drop("s-1"))
	assert.Zero(t, m.Len())
}

func TestManagerInvalidInput(t *testing.T) {
	ctx := context.Background()

	t.Run("SessionID", func(t *testing.T) {
		m := newTestManager(testConfig(), Deps{})
		_, err := m.Get(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = m.Reset(ctx, strings.Repeat("x", MaxSessionIDLength+1))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("GeneratorSizes", func(t *testing.T) {
		cfg := testConfig()
		cfg.Generator.Beneficiaries = -1
		m := newTestManager(cfg, Deps{})

		_, err := m.Get(ctx, "s-1")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, m.Len())
	})
}

func TestSnapshotResolves(t *testing.T) {
	m := newTestManager(testConfig(), Deps{})
	ctx := context.Background()

	s, err := m.Get(ctx, "s-1")
	require.NoError(t, err)

	top := s.Index.Beneficiaries()[0]
	p, err := s.Resolver.Resolve(ctx, "beneficiary", top.ID)
	require.NoError(t, err)
	assert.Equal(t, top.RiskScore, p.Core().RiskScore)

	p, err = s.Resolver.Resolve(ctx, "district", top.Location.District)
	require.NoError(t, err)
	assert.Equal(t, top.Location.District, p.Core().Hierarchy.District)
}
