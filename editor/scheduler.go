package editor

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending scheduled call
type Timer interface {
	// Stop cancels the call and reports whether it was still pending
	Stop() bool
}

// Scheduler runs fn once after d
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// Clock tells the time
type Clock interface {
	Now() time.Time
}

// ClockScheduler is the wall-clock Scheduler and Clock
type ClockScheduler struct{}

var (
	_ Scheduler = ClockScheduler{}
	_ Clock     = ClockScheduler{}
)

// Schedule implements Scheduler
func (ClockScheduler) Schedule(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Now implements Clock
func (ClockScheduler) Now() time.Time {
	return time.Now()
}

// ManualScheduler is a virtual-time Scheduler and Clock. Nothing runs until
// Advance moves the clock past a call's deadline.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

var (
	_ Scheduler = (*ManualScheduler)(nil)
	_ Clock     = (*ManualScheduler)(nil)
)

type manualTimer struct {
	owner *ManualScheduler
	at    time.Time
	seq   int
	fn    func()
	done  bool
}

// NewManualScheduler starts the virtual clock at start
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now implements Clock
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule implements Scheduler
func (s *ManualScheduler) Schedule(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{owner: s, at: s.now.Add(d), seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Stop implements Timer
func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Pending returns the number of calls that have not fired or been stopped
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d and runs every call that falls due,
// in deadline order. Calls scheduled by a running call are honoured too.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	s.mu.Lock()
	s.now = target
	s.mu.Unlock()
}

// nextDue pops the earliest live timer due at or before target and moves the
// clock to its deadline
func (s *ManualScheduler) nextDue(target time.Time) *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	s.timers = live

	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].at.Equal(s.timers[j].at) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].at.Before(s.timers[j].at)
	})
	if len(s.timers) == 0 || s.timers[0].at.After(target) {
		return nil
	}
	t := s.timers[0]
	t.done = true
	if t.at.After(s.now) {
		s.now = t.at
	}
	return t
}
