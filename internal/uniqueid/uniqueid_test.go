package uniqueid

import (
	"sync"
	"testing"
	"time"
)

// fakeClock returns a fixed time that only moves when sleep is called.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestGenerator(t *testing.T, machine int64) (*Generator, *fakeClock) {
	t.Helper()
	g, err := New(machine)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	clk := &fakeClock{t: time.UnixMilli(Epoch + 1_000_000)}
	g.now = clk.now
	g.sleep = func(time.Duration) { clk.advance(time.Millisecond) }
	return g, clk
}

func TestNew_RejectsOutOfRangeMachineID(t *testing.T) {
	for _, id := range []int64{-1, MaxMachineID + 1} {
		if _, err := New(id); err == nil {
			t.Fatalf("New(%d) succeeded", id)
		}
	}
	if _, err := New(MaxMachineID); err != nil {
		t.Fatalf("New(max): %v", err)
	}
}

func TestNext_LayoutRoundTrips(t *testing.T) {
	g, clk := newTestGenerator(t, 1234)
	id := g.Next()
	if id <= 0 {
		t.Fatalf("id must be positive, got %d", id)
	}
	m, ms, c := Parts(id)
	if m != 1234 || ms != clk.now().UnixMilli() || c != 0 {
		t.Fatalf("parts = (%d,%d,%d)", m, ms, c)
	}
	id2 := g.Next()
	if _, _, c := Parts(id2); c != 1 {
		t.Fatalf("second id in same ms must bump counter, got %d", c)
	}
}

func TestNext_CounterResetsWhenMillisecondAdvances(t *testing.T) {
	g, clk := newTestGenerator(t, 1)
	g.Next()
	g.Next()
	clk.advance(time.Millisecond)
	if _, _, c := Parts(g.Next()); c != 0 {
		t.Fatalf("counter must reset on new ms, got %d", c)
	}
}

func TestNext_CounterOverflowWaitsForNextMillisecond(t *testing.T) {
	g, clk := newTestGenerator(t, 1)
	start := clk.now().UnixMilli()

	var last int64
	for i := 0; i <= maxCounter; i++ {
		last = g.Next()
	}
	if _, ms, c := Parts(last); ms != start || c != maxCounter {
		t.Fatalf("last in ms = (%d,%d)", ms, c)
	}

	next := g.Next()
	_, ms, c := Parts(next)
	if ms != start+1 || c != 0 || next <= last {
		t.Fatalf("overflow must roll to next ms: ms=%d counter=%d", ms, c)
	}
}

func TestNext_ClockStepBackStaysMonotonic(t *testing.T) {
	g, clk := newTestGenerator(t, 1)
	a := g.Next()
	clk.advance(-5 * time.Second)
	b := g.Next()
	if b <= a {
		t.Fatalf("ids must increase across clock step back: %d then %d", a, b)
	}
}

func TestNext_ConcurrentIdsUnique(t *testing.T) {
	g, err := New(7)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	const workers, each = 8, 2000

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*each)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, each)
			for i := 0; i < each; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != workers*each {
		t.Fatalf("duplicate ids: %d unique of %d", len(seen), workers*each)
	}
}

func TestMachineIDFromHost_InRangeAndStable(t *testing.T) {
	a := MachineIDFromHost("feed-1.internal")
	if a < 0 || a > MaxMachineID || a != MachineIDFromHost("feed-1.internal") {
		t.Fatalf("machine id = %d", a)
	}
}
