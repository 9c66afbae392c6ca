package domain

import (
	"time"
)

type DecisionSource string

const (
	DECISION_SOURCE_EVCC     DecisionSource = "evcc"
	DECISION_SOURCE_OVERRIDE DecisionSource = "override"
	DECISION_SOURCE_SCHEDULE DecisionSource = "schedule"
	DECISION_SOURCE_FALLBACK DecisionSource = "fallback"
)

// ControlDecision is the single authoritative target state for now.
type ControlDecision struct {
	Mode            Mode    `json:"mode"`
	ACChargeDemandW float64 `json:"ac_charge_demand"`
	// DCChargeDemandW is nil when not applicable, which is distinct from 0.
	DCChargeDemandW   *float64       `json:"dc_charge_demand"`
	DischargeAllowed  bool           `json:"discharge_allowed"`
	OverrideActive    bool           `json:"override_active"`
	OverrideEndTime   *time.Time     `json:"override_end_time"`
	BatterySoC        float64        `json:"battery_soc"`
	ResolutionSeconds int            `json:"resolution_seconds"`
	Source            DecisionSource `json:"source"`
	ResolvedAt        time.Time      `json:"resolved_at"`
}

// ActuationTarget is the part of a decision a driver acts upon.
type ActuationTarget struct {
	Mode             Mode
	ACChargeDemandW  float64
	DCChargeDemandW  float64
	DCKnown          bool
	DischargeAllowed bool
}

func (d ControlDecision) Target() ActuationTarget {
	t := ActuationTarget{
		Mode:             d.Mode,
		ACChargeDemandW:  d.ACChargeDemandW,
		DischargeAllowed: d.DischargeAllowed,
	}
	if d.DCChargeDemandW != nil {
		t.DCChargeDemandW = *d.DCChargeDemandW
		t.DCKnown = true
	}
	return t
}

// SafeDecision is used when nothing better is known.
func SafeDecision(now time.Time) ControlDecision {
	return ControlDecision{
		Mode:       ModeAvoidDischarge,
		Source:     DECISION_SOURCE_FALLBACK,
		ResolvedAt: now,
	}
}

func Float64Ptr(v float64) *float64 {
	return &v
}
