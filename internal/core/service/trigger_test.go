package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizationTriggerUsesAverageRuntime(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 11, 0, 0, time.UTC)
	runtimes := NewRuntimeTracker()
	runtimes.Add(time.Minute)

	var published []time.Time
	trigger := NewOptimizationTrigger(3*time.Minute, runtimes, func() time.Time { return now },
		func(next time.Time) { published = append(published, next) })

	next, err := trigger.NextFireTime(now.UnixNano())
	require.NoError(t, err)
	expected := time.Date(2025, 3, 1, 10, 14, 0, 0, time.UTC)
	assert.Equal(t, expected.UnixNano(), next)
	assert.Equal(t, []time.Time{expected}, published)

	// prev in the future is used as the base
	next, err = trigger.NextFireTime(expected.UnixNano())
	require.NoError(t, err)
	assert.Greater(t, next, expected.UnixNano())
	assert.NotEmpty(t, trigger.Description())
}

func TestOptimizationJob(t *testing.T) {
	ticks := 0
	job := NewOptimizationJob(func() { ticks++ })
	require.NoError(t, job.Execute(context.Background()))
	require.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, 2, ticks)
	assert.Equal(t, "OptimizationJob", job.Description())
}
