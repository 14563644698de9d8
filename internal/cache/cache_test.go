package cache

import (
	"testing"
	"time"
)

func TestGetMissThenHit(t *testing.T) {
	c := New[string](10, time.Minute)

	if _, ok := c.Get("AK2510034"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Set("AK2510034", "v1")
	v, ok := c.Get("AK2510034")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v != "v1" {
		t.Fatalf("got %q, want v1", v)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
	if s.HitRate != 0.5 {
		t.Fatalf("hit rate = %v, want 0.5", s.HitRate)
	}
}

func TestEvictionByInsertionOrder(t *testing.T) {
	c := New[int](3, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest insertion should have been evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("key %q unexpectedly evicted", k)
		}
	}
	if got := c.Stats().Size; got != 3 {
		t.Fatalf("size = %d, want 3", got)
	}
}

func TestResetRefreshesInsertionPosition(t *testing.T) {
	c := New[int](3, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("a", 10) // a is now newest
	c.Set("d", 4)  // evicts b, not a

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("a = %v/%v, want 10/true", v, ok)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[int](10, 10*time.Millisecond)

	c.Set("x", 1)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("expected hit before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if got := c.Stats().Size; got != 0 {
		t.Fatalf("size = %d after expiry, want 0", got)
	}
}

func TestClearPreservesCounters(t *testing.T) {
	c := New[int](10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("zz")

	if n := c.Clear(); n != 2 {
		t.Fatalf("Clear returned %d, want 2", n)
	}
	s := c.Stats()
	if s.Size != 0 {
		t.Fatalf("size = %d after clear, want 0", s.Size)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("counters lost on clear: hits=%d misses=%d", s.Hits, s.Misses)
	}
}

func TestResetStats(t *testing.T) {
	c := New[int](10, time.Minute)

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.ResetStats()

	s := c.Stats()
	if s.Hits != 0 || s.Misses != 0 || s.TotalQueries != 0 || s.UniqueMTOs != 0 {
		t.Fatalf("stats not zeroed: %+v", s)
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entries must survive a stats reset")
	}
}

func TestHotKeysOrdering(t *testing.T) {
	c := New[int](10, time.Minute)

	for i := 0; i < 5; i++ {
		c.Get("busy")
	}
	for i := 0; i < 2; i++ {
		c.Get("idle")
	}
	c.Get("aaa")
	c.Get("bbb") // ties with aaa, breaks by key

	hot := c.HotKeys(3)
	if len(hot) != 3 {
		t.Fatalf("got %d hot keys, want 3", len(hot))
	}
	if hot[0].MTO != "busy" || hot[0].Count != 5 {
		t.Fatalf("hot[0] = %+v", hot[0])
	}
	if hot[1].MTO != "idle" || hot[1].Count != 2 {
		t.Fatalf("hot[1] = %+v", hot[1])
	}
	if hot[2].MTO != "aaa" {
		t.Fatalf("tie should break alphabetically, got %+v", hot[2])
	}
}

func TestZeroMaxSizeUsesDefault(t *testing.T) {
	c := New[int](0, 0)
	if got := c.Stats().MaxSize; got != 200 {
		t.Fatalf("default max size = %d, want 200", got)
	}
}
