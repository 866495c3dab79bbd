package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/welfareshield/internal/domain"
)

// fakeClock drives TTL expiry without sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLRU(maxSize int) (*LRUCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache(maxSize)
	c.now = clock.now
	return c, clock
}

func TestLRUCache(t *testing.T) {
	cache, clock := newTestLRU(100)
	ctx := context.Background()
	sessionID := "session-001"

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, sessionID, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, sessionID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, sessionID, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, sessionID, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, sessionID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, sessionID, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, sessionID, "expiring", []byte("temp"), 10*time.Second)

		val, _ := cache.Get(ctx, sessionID, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		clock.advance(11 * time.Second)

		val, _ = cache.Get(ctx, sessionID, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		_ = cache.Set(ctx, sessionID, "forever", []byte("x"), 0)
		clock.advance(24 * time.Hour)

		val, _ := cache.Get(ctx, sessionID, "forever")
		if val == nil {
			t.Error("expected value with zero TTL to persist")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, sessionID, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, sessionID, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, sessionID, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, sessionID, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, sessionID, "d", []byte("4"), time.Minute)

		val, _ := smallCache.Get(ctx, sessionID, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		val, _ = smallCache.Get(ctx, sessionID, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("SessionIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "session-a", "district:Patna", []byte("71"), time.Minute)
		_ = cache.Set(ctx, "session-b", "district:Patna", []byte("64"), time.Minute)

		valA, _ := cache.Get(ctx, "session-a", "district:Patna")
		valB, _ := cache.Get(ctx, "session-b", "district:Patna")

		if string(valA) != "71" {
			t.Errorf("expected '71', got '%s'", string(valA))
		}
		if string(valB) != "64" {
			t.Errorf("expected '64', got '%s'", string(valB))
		}
	})

	t.Run("RequiresSessionID", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty sessionID, got %v", err)
		}

		_, err = cache.Get(ctx, "", "key")
		if err == nil {
			t.Error("expected error for empty sessionID")
		}

		_, err = cache.IncrementCounter(ctx, "", "key", time.Minute)
		if err == nil {
			t.Error("expected error for empty sessionID")
		}
	})

	t.Run("IncrementCounter", func(t *testing.T) {
		window := 100 * time.Millisecond

		count1, err := cache.IncrementCounter(ctx, sessionID, "views", window)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if count1 != 1 {
			t.Errorf("expected count 1, got %d", count1)
		}

		count2, _ := cache.IncrementCounter(ctx, sessionID, "views", window)
		if count2 != 2 {
			t.Errorf("expected count 2, got %d", count2)
		}

		clock.advance(150 * time.Millisecond)

		count3, _ := cache.IncrementCounter(ctx, sessionID, "views", window)
		if count3 != 1 {
			t.Errorf("expected count 1 after window reset, got %d", count3)
		}
	})

	t.Run("PurgeSession", func(t *testing.T) {
		c, _ := newTestLRU(10)
		_ = c.Set(ctx, "s1", "a", []byte("1"), time.Minute)
		_ = c.Set(ctx, "s1", "b", []byte("2"), time.Minute)
		_ = c.Set(ctx, "s10", "a", []byte("3"), time.Minute)
		_, _ = c.IncrementCounter(ctx, "s1", "views", time.Minute)

		if removed, err := c.PurgeSession(ctx, "s1"); err != nil || removed != 2 {
			t.Errorf("expected 2 entries purged, got %d (err %v)", removed, err)
		}
		if val, _ := c.Get(ctx, "s10", "a"); string(val) != "3" {
			t.Error("purge must not touch sessions sharing a prefix")
		}
		if count, _ := c.IncrementCounter(ctx, "s1", "views", time.Minute); count != 1 {
			t.Errorf("expected counter reset after purge, got %d", count)
		}
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		if err := SetJSON(ctx, cache, sessionID, "score:village:Village Beta", 66, time.Minute); err != nil {
			t.Fatalf("SetJSON failed: %v", err)
		}

		var score int
		ok, err := GetJSON(ctx, cache, sessionID, "score:village:Village Beta", &score)
		if err != nil || !ok {
			t.Fatalf("GetJSON failed: ok=%v err=%v", ok, err)
		}
		if score != 66 {
			t.Errorf("expected 66, got %d", score)
		}

		ok, err = GetJSON(ctx, cache, sessionID, "score:village:missing", &score)
		if err != nil || ok {
			t.Errorf("expected miss, got ok=%v err=%v", ok, err)
		}

		_ = cache.Set(ctx, sessionID, "garbled", []byte("{"), time.Minute)
		if _, err := GetJSON(ctx, cache, sessionID, "garbled", &score); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, sessionID, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, sessionID, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, sessionID, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}

		val, _ := testCache.Get(ctx, sessionID, "k")
		if val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestEscapeGlob(t *testing.T) {
	tests := map[string]string{
		"analyst-1":  "analyst-1",
		"a*b":        `a\*b`,
		"[x]?":       `\[x\]\?`,
		`back\slash`: `back\\slash`,
	}
	for in, want := range tests {
		if got := escapeGlob(in); got != want {
			t.Errorf("escapeGlob(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestTwoPhasePurgeSession runs against a real Redis when
// WELFARESHIELD_TEST_REDIS is set, e.g. localhost:6379.
func TestTwoPhasePurgeSession(t *testing.T) {
	addr := os.Getenv("WELFARESHIELD_TEST_REDIS")
	if addr == "" {
		t.Skip("WELFARESHIELD_TEST_REDIS not set")
	}

	ctx := context.Background()
	c, err := NewTwoPhaseCache(domain.CacheConfig{RedisAddr: addr, LocalMaxSize: 100, LocalTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewTwoPhaseCache failed: %v", err)
	}
	defer c.Close()

	session := "purge-" + time.Now().Format("150405.000000000") + "*"
	other := session + "x"
	_ = c.Set(ctx, session, "score:0:district:Patna", []byte("71"), time.Minute)
	_ = c.Set(ctx, other, "score:0:district:Patna", []byte("64"), time.Minute)
	if _, err := c.IncrementCounter(ctx, session, "views:state:Bihar", time.Hour); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	defer c.PurgeSession(ctx, other)

	removed, err := c.PurgeSession(ctx, session)
	if err != nil {
		t.Fatalf("PurgeSession failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 redis keys removed, got %d", removed)
	}
	if val, _ := c.Get(ctx, session, "score:0:district:Patna"); val != nil {
		t.Error("expected purged value to be gone from both tiers")
	}
	if count, _ := c.IncrementCounter(ctx, session, "views:state:Bihar", time.Hour); count != 1 {
		t.Errorf("expected counter to restart, got %d", count)
	}
	if val, _ := c.Get(ctx, other, "score:0:district:Patna"); string(val) != "64" {
		t.Error("purge must not touch other sessions")
	}
	_, _ = c.PurgeSession(ctx, session)
}
