package poller

import (
	"sync"
	"time"
)

// staggeredSchedule fires first at offset after the time it is first asked
// about, then every period on that grid. Slots that pass while a tick is
// still running are skipped, not queued, so the rate stays fixed.
type staggeredSchedule struct {
	offset time.Duration
	period time.Duration

	mu     sync.Mutex
	anchor time.Time
}

func newStaggeredSchedule(offset, period time.Duration) *staggeredSchedule {
	return &staggeredSchedule{offset: offset, period: period}
}

// Next implements cron.Schedule.
func (s *staggeredSchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.anchor.IsZero() {
		s.anchor = t.Add(s.offset)
		return s.anchor
	}
	if t.Before(s.anchor) {
		return s.anchor
	}
	elapsed := t.Sub(s.anchor)
	return s.anchor.Add((elapsed/s.period + 1) * s.period)
}
