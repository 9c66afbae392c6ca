package service

import (
	"sync"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
)

const (
	RUNTIME_WINDOW   = 5
	QUARTER_HOUR     = 15 * time.Minute
	MIN_RUN_GAP      = 30 * time.Second
	RUN_GAP_FACTOR   = 0.7
	RUN_CLOSE_FACTOR = 0.5
)

// RuntimeTracker keeps the last successful optimizer runtimes. The first
// sample fills the whole window.
type RuntimeTracker struct {
	mu       sync.Mutex
	runtimes [RUNTIME_WINDOW]time.Duration
	next     int
	filled   bool
}

func NewRuntimeTracker() *RuntimeTracker {
	return &RuntimeTracker{}
}

func (r *RuntimeTracker) Add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		for i := range r.runtimes {
			r.runtimes[i] = d
		}
		r.filled = true
	} else {
		r.runtimes[r.next] = d
	}
	r.next = (r.next + 1) % RUNTIME_WINDOW
}

func (r *RuntimeTracker) Average() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.runtimes {
		sum += d
	}
	return sum / RUNTIME_WINDOW
}

// NextRunTime aims to have a fresh schedule right at each quarter hour.
// When the quarter is far enough away a gap fill run at now+interval comes
// first.
func NextRunTime(now time.Time, interval, avgRuntime time.Duration) time.Time {
	minGap := maxDuration(time.Duration(float64(interval+avgRuntime)*RUN_GAP_FACTOR), MIN_RUN_GAP)

	nextQuarter := domain.SlotStart(now, int(QUARTER_HOUR/time.Second)).Add(QUARTER_HOUR)
	start := nextQuarter.Add(-avgRuntime)
	if !start.After(now) {
		nextQuarter = nextQuarter.Add(QUARTER_HOUR)
		start = nextQuarter.Add(-avgRuntime)
	}

	until := start.Sub(now)
	if until >= 2*interval && until >= minGap {
		return now.Add(interval)
	}

	if until < maxDuration(time.Duration(float64(avgRuntime)*RUN_CLOSE_FACTOR), MIN_RUN_GAP) {
		nextQuarter = nextQuarter.Add(QUARTER_HOUR)
		start = nextQuarter.Add(-avgRuntime)
	}
	return start
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
