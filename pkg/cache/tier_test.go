package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTier_SetAndGet(t *testing.T) {
	clock := newFakeClock()
	tier := NewTier(TierHot, DefaultHotTTL, WithClock(clock.Now))

	tier.Set("nse:gainers", []string{"SBIN"}, 30*time.Second)

	clock.Advance(10 * time.Second)
	v, ok := tier.Get("nse:gainers")
	if !ok {
		t.Fatal("Get() should return a live value at t0+10s")
	}
	if got := v.([]string); len(got) != 1 || got[0] != "SBIN" {
		t.Errorf("Get() = %v, want [SBIN]", got)
	}

	clock.Advance(25 * time.Second)
	if _, ok := tier.Get("nse:gainers"); ok {
		t.Error("Get() should hide the value once the TTL has passed")
	}
}

func TestTier_TimeSinceWrite(t *testing.T) {
	clock := newFakeClock()
	tier := NewTier(TierNormal, DefaultNormalTTL, WithClock(clock.Now))

	if _, ok := tier.TimeSinceWrite("nse:missing"); ok {
		t.Error("TimeSinceWrite() on an unknown key should report absent")
	}

	tier.Set("nse:deals:bulk", "payload", time.Second)
	clock.Advance(35 * time.Second)

	age, ok := tier.TimeSinceWrite("nse:deals:bulk")
	if !ok {
		t.Fatal("TimeSinceWrite() should still report expired entries")
	}
	if age != 35*time.Second {
		t.Errorf("TimeSinceWrite() = %v, want 35s", age)
	}
}

func TestTier_SetDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	tier := NewTier(TierStatic, DefaultStaticTTL, WithClock(clock.Now))

	tier.Set("nse:corporate:actions", "x", 0)

	entry, err := tier.Peek("nse:corporate:actions")
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if entry.TTL != DefaultStaticTTL {
		t.Errorf("TTL = %v, want %v", entry.TTL, DefaultStaticTTL)
	}
}

func TestTier_SetSupersedes(t *testing.T) {
	clock := newFakeClock()
	tier := NewTier(TierHot, DefaultHotTTL, WithClock(clock.Now))

	tier.Set("k", 1, 10*time.Second)
	clock.Advance(20 * time.Second)
	tier.Set("k", 2, 10*time.Second)

	v, ok := tier.Get("k")
	if !ok || v.(int) != 2 {
		t.Errorf("Get() = %v, %v; want 2, true", v, ok)
	}
	if age, _ := tier.TimeSinceWrite("k"); age != 0 {
		t.Errorf("TimeSinceWrite() after rewrite = %v, want 0", age)
	}
}

func TestTier_PeekMiss(t *testing.T) {
	tier := NewTier(TierHot, DefaultHotTTL)

	if _, err := tier.Peek("nope"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Peek() error = %v, want ErrCacheMiss", err)
	}
}

func TestTier_FlushAll(t *testing.T) {
	tier := NewTier(TierHot, DefaultHotTTL)
	tier.Set("a", 1, 0)
	tier.Set("b", 2, 0)

	if n := tier.FlushAll(); n != 2 {
		t.Errorf("FlushAll() = %d, want 2", n)
	}
	if tier.Len() != 0 {
		t.Errorf("Len() after flush = %d, want 0", tier.Len())
	}
	if _, ok := tier.TimeSinceWrite("a"); ok {
		t.Error("flushed keys should not report a write time")
	}
}

func TestTier_Sweep(t *testing.T) {
	clock := newFakeClock()
	tier := NewTier(TierHot, DefaultHotTTL, WithClock(clock.Now))
	tier.Set("nse:gainers:old", 1, 30*time.Second)
	clock.Advance(50 * time.Second)
	tier.Set("nse:gainers:new", 2, 30*time.Second)

	// old is 20s past its TTL, still inside a 60s stale window.
	if n := tier.Sweep(60 * time.Second); n != 0 {
		t.Fatalf("Sweep() inside grace = %d, want 0", n)
	}
	if age, ok := tier.TimeSinceWrite("nse:gainers:old"); !ok || age != 50*time.Second {
		t.Errorf("TimeSinceWrite() = %v, %v; want 50s, true", age, ok)
	}

	clock.Advance(40 * time.Second)
	if n := tier.Sweep(60 * time.Second); n != 1 {
		t.Fatalf("Sweep() past grace = %d, want 1", n)
	}
	if _, ok := tier.TimeSinceWrite("nse:gainers:old"); ok {
		t.Error("swept key should not report a write time")
	}
	if _, err := tier.Peek("nse:gainers:new"); err != nil {
		t.Errorf("Peek(new) error = %v, want entry kept", err)
	}
	if tier.Len() != 1 {
		t.Errorf("Len() after sweep = %d, want 1", tier.Len())
	}
}

func TestTiers_Sweep(t *testing.T) {
	clock := newFakeClock()
	tiers := NewTiers(DefaultConfig(), WithClock(clock.Now))
	tiers.Hot.Set("a", 1, time.Second)
	tiers.Normal.Set("a", 1, time.Second)
	tiers.Static.Set("a", 1, time.Hour)

	clock.Advance(time.Minute)
	if n := tiers.Sweep(0); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if tiers.Static.Len() != 1 {
		t.Error("live static entry must survive the sweep")
	}
}

func TestTier_Delete(t *testing.T) {
	tier := NewTier(TierHot, DefaultHotTTL)
	tier.Set("a", 1, 0)
	tier.Delete("a")

	if _, ok := tier.Get("a"); ok {
		t.Error("deleted key should be absent")
	}
}

func TestTier_ConcurrentAccess(t *testing.T) {
	tier := NewTier(TierHot, DefaultHotTTL)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tier.Set("shared", i, time.Minute)
			tier.Get("shared")
			tier.TimeSinceWrite("shared")
		}(i)
	}
	wg.Wait()

	if tier.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tier.Len())
	}
}

func TestTiers_IndependentKeys(t *testing.T) {
	tiers := NewTiers(DefaultConfig())

	tiers.Hot.Set("nse:quote:SBIN", "hot", 0)
	tiers.Static.Set("nse:quote:SBIN", "static", 0)

	hot, _ := tiers.Hot.Get("nse:quote:SBIN")
	static, _ := tiers.Static.Get("nse:quote:SBIN")
	if hot != "hot" || static != "static" {
		t.Errorf("tiers share state: hot=%v static=%v", hot, static)
	}
	if _, ok := tiers.Normal.Get("nse:quote:SBIN"); ok {
		t.Error("normal tier should not see keys written to other tiers")
	}
}

func TestTiers_DefaultTTLs(t *testing.T) {
	tiers := NewTiers(Config{HotTTL: 15 * time.Second})

	tests := []struct {
		tier *Tier
		want time.Duration
	}{
		{tiers.Hot, 15 * time.Second},
		{tiers.Normal, DefaultNormalTTL},
		{tiers.Static, DefaultStaticTTL},
	}
	for _, tt := range tests {
		if got := tt.tier.DefaultTTL(); got != tt.want {
			t.Errorf("%s DefaultTTL() = %v, want %v", tt.tier.Name(), got, tt.want)
		}
	}
}

func TestTiers_Flush(t *testing.T) {
	tiers := NewTiers(DefaultConfig())
	tiers.Hot.Set("a", 1, 0)
	tiers.Normal.Set("a", 1, 0)

	n, err := tiers.Flush(TierHot)
	if err != nil || n != 1 {
		t.Fatalf("Flush(hot) = %d, %v; want 1, nil", n, err)
	}
	if tiers.Normal.Len() != 1 {
		t.Error("flushing hot must not touch normal")
	}

	if _, err := tiers.Flush("lukewarm"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Flush(lukewarm) error = %v, want ErrUnknownTier", err)
	}
}

func TestParseTierName(t *testing.T) {
	tests := []struct {
		in      string
		want    TierName
		wantErr bool
	}{
		{"hot", TierHot, false},
		{"NORMAL", TierNormal, false},
		{" static ", TierStatic, false},
		{"cold", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTierName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTierName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseTierName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTiers_Stats(t *testing.T) {
	tiers := NewTiers(DefaultConfig())
	tiers.Hot.Set("a", 1, 0)

	stats := tiers.Stats()
	if len(stats) != 3 {
		t.Fatalf("Stats() len = %d, want 3", len(stats))
	}
	if stats[0].Tier != TierHot || stats[0].Entries != 1 {
		t.Errorf("Stats()[0] = %+v", stats[0])
	}
}
