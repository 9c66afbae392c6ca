package service

import (
	"context"
	"fmt"
	"time"

	"github.com/reugn/go-quartz/quartz"
)

// OptimizationTrigger is a quartz.Trigger that places every run with
// NextRunTime using the current average runtime.
type OptimizationTrigger struct {
	interval time.Duration
	runtimes *RuntimeTracker
	clock    func() time.Time
	// onNext is told about every computed fire time, e.g. to publish it.
	onNext func(time.Time)
}

var _ quartz.Trigger = (*OptimizationTrigger)(nil)

func NewOptimizationTrigger(interval time.Duration, runtimes *RuntimeTracker, clock func() time.Time, onNext func(time.Time)) *OptimizationTrigger {
	if clock == nil {
		clock = time.Now
	}
	return &OptimizationTrigger{
		interval: interval,
		runtimes: runtimes,
		clock:    clock,
		onNext:   onNext,
	}
}

// NextFireTime works in Unix nanoseconds like every quartz trigger.
func (t *OptimizationTrigger) NextFireTime(prev int64) (int64, error) {
	now := t.clock()
	if base := time.Unix(0, prev); base.After(now) {
		now = base
	}
	next := NextRunTime(now, t.interval, t.runtimes.Average())
	if t.onNext != nil {
		t.onNext(next)
	}
	return next.UnixNano(), nil
}

func (t *OptimizationTrigger) Description() string {
	return fmt.Sprintf("OptimizationTrigger::%s", t.interval)
}

// OptimizationJob hands a tick to whoever runs the optimization. It must
// not block; the scheduler runs jobs on its own goroutines.
type OptimizationJob struct {
	tick func()
}

var _ quartz.Job = (*OptimizationJob)(nil)

func NewOptimizationJob(tick func()) *OptimizationJob {
	return &OptimizationJob{tick: tick}
}

func (j *OptimizationJob) Execute(context.Context) error {
	j.tick()
	return nil
}

func (j *OptimizationJob) Description() string {
	return "OptimizationJob"
}
