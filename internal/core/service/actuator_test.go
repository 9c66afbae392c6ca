package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingDriver struct {
	writes []domain.ActuationTarget
	fail   error
}

func (d *recordingDriver) Name() string { return "recording" }

func (d *recordingDriver) Capabilities() port.DriverCapabilities {
	return port.DriverCapabilities{GridChargeLimit: true}
}

func (d *recordingDriver) Apply(_ context.Context, target domain.ActuationTarget) error {
	if d.fail != nil {
		return d.fail
	}
	d.writes = append(d.writes, target)
	return nil
}

func (d *recordingDriver) Close() error { return nil }

func chargeDecision(w float64) domain.ControlDecision {
	return domain.ControlDecision{
		Mode:            domain.ModeChargeFromGrid,
		ACChargeDemandW: w,
		ResolvedAt:      time.Now(),
	}
}

func TestActuatorIdempotent(t *testing.T) {
	driver := &recordingDriver{}
	a := NewActuator(driver, 5000, zap.Must(zap.NewDevelopment()))

	applied, err := a.Apply(context.Background(), chargeDecision(3000))
	require.NoError(t, err)
	assert.True(t, applied)

	// a new ResolvedAt alone is not a new target
	applied, err = a.Apply(context.Background(), chargeDecision(3000))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, driver.writes, 1)

	applied, err = a.Apply(context.Background(), chargeDecision(2000))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Len(t, driver.writes, 2)
}

func TestActuatorFailureRetriesNextPass(t *testing.T) {
	driver := &recordingDriver{fail: errors.New("connection refused")}
	a := NewActuator(driver, 5000, zap.Must(zap.NewDevelopment()))

	_, err := a.Apply(context.Background(), chargeDecision(3000))
	var failed domain.ActuationFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "recording", failed.Driver)
	assert.Nil(t, a.Last())

	driver.fail = nil
	applied, err := a.Apply(context.Background(), chargeDecision(3000))
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestActuatorBoundsTargets(t *testing.T) {
	driver := &recordingDriver{}
	a := NewActuator(driver, 2500, zap.Must(zap.NewDevelopment()))

	d := chargeDecision(4000)
	d.DCChargeDemandW = domain.Float64Ptr(3000)
	_, err := a.Apply(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, driver.writes, 1)
	assert.Equal(t, 2500.0, driver.writes[0].ACChargeDemandW)
	assert.Equal(t, 2500.0, driver.writes[0].DCChargeDemandW)
	assert.True(t, driver.writes[0].DCKnown)
}

func TestActuatorRefresh(t *testing.T) {
	driver := &recordingDriver{}
	a := NewActuator(driver, 5000, zap.Must(zap.NewDevelopment()))

	require.NoError(t, a.Refresh(context.Background()))
	assert.Empty(t, driver.writes, "nothing to refresh yet")

	_, err := a.Apply(context.Background(), chargeDecision(1000))
	require.NoError(t, err)
	require.NoError(t, a.Refresh(context.Background()))
	assert.Len(t, driver.writes, 2)
	assert.Equal(t, driver.writes[0], driver.writes[1])
}

func TestActuatorRewritesAfterClose(t *testing.T) {
	driver := &recordingDriver{}
	a := NewActuator(driver, 5000, zap.Must(zap.NewDevelopment()))

	_, err := a.Apply(context.Background(), chargeDecision(3000))
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.Nil(t, a.Last())

	applied, err := a.Apply(context.Background(), chargeDecision(3000))
	require.NoError(t, err)
	assert.True(t, applied, "released hardware gets the target again")
	assert.Len(t, driver.writes, 2)
}
