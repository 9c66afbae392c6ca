package events

import (
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventsById(evs []any) map[string]any {
	out := map[string]any{}
	for _, ev := range evs {
		if s, ok := ev.(domain.SensorUpdateEvent); ok {
			out[s.SensorId()] = ev
		}
	}
	return out
}

func TestDecisionToUpdateEvents(t *testing.T) {
	end := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	override := &domain.Override{Mode: domain.ModeChargeFromGrid, GridChargePowerW: 2500, EndTime: end}
	d := domain.ControlDecision{
		Mode:            domain.ModeChargeFromGrid,
		ACChargeDemandW: 2500,
		OverrideActive:  true,
		OverrideEndTime: &end,
		BatterySoC:      48.25,
	}

	byId := eventsById(DecisionToUpdateEvents(d, override))
	require.Contains(t, byId, domain.SENSOR_ID_CONTROL_OVERALL_STATE)
	assert.Equal(t, "MODE CHARGE FROM GRID", byId[domain.SENSOR_ID_CONTROL_OVERALL_STATE].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(t, 0.0, byId[domain.SENSOR_ID_CONTROL_MODE_NUM].(domain.FloatSensorUpdateEvent).Value)
	assert.Nil(t, byId[domain.SENSOR_ID_CONTROL_DC_CHARGE_DEMAND].(domain.OptionalFloatSensorUpdateEvent).Value)
	assert.True(t, byId[domain.SENSOR_ID_OVERRIDE_ACTIVE].(domain.BinarySensorUpdateEvent).Value)
	assert.Equal(t, "2025-03-01T11:00:00Z", byId[domain.SENSOR_ID_OVERRIDE_END_TIME].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(t, 2500.0, *byId[domain.SENSOR_ID_OVERRIDE_CHARGE_POWER].(domain.OptionalFloatSensorUpdateEvent).Value)
	assert.Equal(t, "MODE CHARGE FROM GRID", byId[domain.SELECT_ID_OVERRIDE_MODE].(domain.SelectUpdateEvent).Value)
}

func TestDecisionWithoutOverrideSelectsAuto(t *testing.T) {
	d := domain.ControlDecision{Mode: domain.ModeAvoidDischarge, DCChargeDemandW: domain.Float64Ptr(0)}
	byId := eventsById(DecisionToUpdateEvents(d, nil))
	assert.Equal(t, domain.SELECT_OPTION_AUTO, byId[domain.SELECT_ID_OVERRIDE_MODE].(domain.SelectUpdateEvent).Value)
	assert.Equal(t, "", byId[domain.SENSOR_ID_OVERRIDE_END_TIME].(domain.TextSensorUpdateEvent).Value)
	assert.Nil(t, byId[domain.SENSOR_ID_OVERRIDE_CHARGE_POWER].(domain.OptionalFloatSensorUpdateEvent).Value)
	dc := byId[domain.SENSOR_ID_CONTROL_DC_CHARGE_DEMAND].(domain.OptionalFloatSensorUpdateEvent).Value
	require.NotNil(t, dc)
	assert.Zero(t, *dc)
}

func TestOptimizationStateToUpdateEvents(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := domain.OptimizationState{
		RequestState:          domain.REQUEST_STATE_FAILED,
		LastResponseTimestamp: &now,
		LastError:             domain.OPTIMIZATION_FAILED_TIMEOUT,
	}
	byId := eventsById(OptimizationStateToUpdateEvents(s))
	assert.Equal(t, "request failed", byId[domain.SENSOR_ID_OPTIMIZATION_STATE].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(t, "2025-03-01T10:00:00Z", byId[domain.SENSOR_ID_OPTIMIZATION_LAST_RUN].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(t, "", byId[domain.SENSOR_ID_OPTIMIZATION_NEXT_RUN].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(t, "Request timed out", byId[domain.SENSOR_ID_OPTIMIZATION_LAST_ERROR].(domain.TextSensorUpdateEvent).Value)
}

func TestOverrideDefaultsToUpdateEvents(t *testing.T) {
	byId := eventsById(OverrideDefaultsToUpdateEvents(90*time.Minute, 1200))
	assert.Equal(t, 90.0, byId[domain.INPUT_NUMBER_ID_OVERRIDE_DURATION].(domain.InputNumberSensorUpdateEvent).Value)
	assert.Equal(t, 1200.0, byId[domain.INPUT_NUMBER_ID_OVERRIDE_POWER].(domain.InputNumberSensorUpdateEvent).Value)
}
