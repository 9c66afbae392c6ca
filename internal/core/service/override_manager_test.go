package service

import (
	"sync"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestOverrideManager(clock *fakeClock) *OverrideManager {
	return NewOverrideManager(5000, clock.Now, zap.Must(zap.NewDevelopment()))
}

func TestOverrideExpiryBoundary(t *testing.T) {
	tenOClock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: tenOClock}
	m := newTestOverrideManager(clock)

	o, err := m.Set(domain.OverrideCommand{Mode: domain.ModeDischargeAllowed, Duration: 60 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, tenOClock.Add(time.Hour), o.EndTime)

	assert.NotNil(t, m.Active(tenOClock))
	assert.NotNil(t, m.Active(tenOClock.Add(59*time.Minute)))
	assert.NotNil(t, m.Active(tenOClock.Add(time.Hour-time.Nanosecond)))
	assert.Nil(t, m.Active(tenOClock.Add(time.Hour)), "inactive at end time")
	assert.Nil(t, m.Active(tenOClock.Add(2*time.Hour)))
}

func TestOverrideRevert(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestOverrideManager(clock)

	_, err := m.Set(domain.OverrideCommand{Mode: domain.ModeChargeFromGrid, Duration: 4 * time.Hour})
	require.NoError(t, err)

	o, err := m.Set(domain.OverrideCommand{Revert: true})
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.Nil(t, m.Active(clock.Now()))
}

func TestOverrideReplacesPrevious(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	m := newTestOverrideManager(clock)

	_, err := m.Set(domain.OverrideCommand{Mode: domain.ModeChargeFromGrid, Duration: 4 * time.Hour})
	require.NoError(t, err)

	clock.Set(start.Add(10 * time.Minute))
	_, err = m.Set(domain.OverrideCommand{Mode: domain.ModeAvoidDischarge, Duration: 30 * time.Minute})
	require.NoError(t, err)

	active := m.Active(clock.Now())
	require.NotNil(t, active)
	assert.Equal(t, domain.ModeAvoidDischarge, active.Mode)
	assert.Nil(t, m.Active(start.Add(41*time.Minute)), "new end time replaced the old one")
}

func TestOverrideDurationRounding(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestOverrideManager(clock)

	o, err := m.Set(domain.OverrideCommand{Mode: domain.ModeAvoidDischarge, Duration: 45 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, domain.Duration(time.Hour), o.Duration)

	_, err = m.Set(domain.OverrideCommand{Mode: domain.ModeAvoidDischarge, Duration: 25 * time.Hour})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = m.Set(domain.OverrideCommand{Mode: domain.ModeInvalid, Duration: time.Hour})
	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}

func TestOverridePowerClamped(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestOverrideManager(clock)

	o, err := m.Set(domain.OverrideCommand{Mode: domain.ModeChargeFromGrid, Duration: time.Hour, GridChargePowerW: 100})
	require.NoError(t, err)
	assert.Equal(t, 500.0, o.GridChargePowerW)

	o, err = m.Set(domain.OverrideCommand{Mode: domain.ModeChargeFromGrid, Duration: time.Hour, GridChargePowerW: 9000})
	require.NoError(t, err)
	assert.Equal(t, 5000.0, o.GridChargePowerW)
}

func TestOverrideDefaults(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestOverrideManager(clock)

	d, p := m.Defaults()
	assert.Equal(t, 2*time.Hour, d)
	assert.Equal(t, 5000.0, p)

	minutes := 90.0
	power := 1200.0
	require.NoError(t, m.SetDefaults(&minutes, &power))

	o, err := m.Set(domain.OverrideCommand{Mode: domain.ModeChargeFromGrid})
	require.NoError(t, err)
	assert.Equal(t, domain.Duration(90*time.Minute), o.Duration)
	assert.Equal(t, 1200.0, o.GridChargePowerW)

	bad := 0.0
	assert.Error(t, m.SetDefaults(&bad, nil))
}

func TestOverrideConcurrentAccess(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := newTestOverrideManager(clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%3 == 0 {
					_, _ = m.Set(domain.OverrideCommand{Revert: true})
				} else {
					_, _ = m.Set(domain.OverrideCommand{Mode: domain.ModeAvoidDischarge, Duration: time.Hour})
				}
				if o := m.Active(clock.Now()); o != nil {
					assert.Equal(t, domain.ModeAvoidDischarge, o.Mode)
					assert.Equal(t, o.SetAt.Add(time.Hour), o.EndTime)
				}
			}
		}(i)
	}
	wg.Wait()
}
