package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/reconcile/internal/ir"
)

// testClock is a settable clock starting at a fixed instant.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// createTestStore opens a store in a temp directory with a controllable clock.
func createTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := newTestClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func testRecord(name, hostname string) ir.TransferRecord {
	return ir.TransferRecord{
		Name:     name,
		RunID:    "run-" + name,
		Status:   ir.StatusApply,
		Hostname: hostname,
	}
}
