package events

import (
	"time"

	. "github.com/berfenger/eosconnect/internal/core/domain"
)

func DecisionToUpdateEvents(d ControlDecision, override *Override) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_OVERALL_STATE,
		},
		Value: d.Mode.String(),
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_MODE_NUM,
		},
		Value:    float64(d.Mode.Code()),
		Decimals: 0,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_AC_CHARGE_DEMAND,
		},
		Value:    d.ACChargeDemandW,
		Decimals: 0,
	})
	// blank when unknown
	events = append(events, OptionalFloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_DC_CHARGE_DEMAND,
		},
		Value:    d.DCChargeDemandW,
		Decimals: 0,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONTROL_DISCHARGE_ALLOWED,
		},
		Value: d.DischargeAllowed,
	})
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_ACTIVE,
		},
		Value: d.OverrideActive,
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_END_TIME,
		},
		Value: optionalTimestamp(d.OverrideEndTime),
	})
	var overridePower *float64
	if override != nil && d.OverrideActive {
		overridePower = Float64Ptr(override.GridChargePowerW)
	}
	events = append(events, OptionalFloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OVERRIDE_CHARGE_POWER,
		},
		Value:    overridePower,
		Decimals: 0,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BATTERY_SOC,
		},
		Value:    d.BatterySoC,
		Decimals: 1,
	})

	// select mirrors the active override
	selected := SELECT_OPTION_AUTO
	if d.OverrideActive && override != nil {
		selected = override.Mode.String()
	}
	events = append(events, SelectUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SELECT_ID_OVERRIDE_MODE,
		},
		Value: selected,
	})

	return events
}

func OptimizationStateToUpdateEvents(s OptimizationState) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OPTIMIZATION_STATE,
		},
		Value: string(s.RequestState),
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OPTIMIZATION_LAST_RUN,
		},
		Value: optionalTimestamp(s.LastResponseTimestamp),
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OPTIMIZATION_NEXT_RUN,
		},
		Value: optionalTimestamp(s.NextRun),
	})
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_OPTIMIZATION_LAST_ERROR,
		},
		Value: s.LastError,
	})

	return events
}

func HomeApplianceToUpdateEvents(released bool) []any {
	return []any{BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_HOME_APPLIANCE_RELEASED,
		},
		Value: released,
	}}
}

func OverrideDefaultsToUpdateEvents(duration time.Duration, gridChargePowerW float64) []any {
	var events []any

	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_OVERRIDE_DURATION,
		},
		Value:    duration.Minutes(),
		Decimals: 0,
	})
	events = append(events, InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_OVERRIDE_POWER,
		},
		Value:    gridChargePowerW,
		Decimals: 0,
	})

	return events
}

func optionalTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
