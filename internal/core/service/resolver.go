package service

import (
	"math"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
)

type ResolverInput struct {
	Slot       domain.ScheduleSlot
	HasSlot    bool
	Override   *domain.Override
	EV         *domain.EVChargingSignal
	BatterySoC float64
	Now        time.Time
}

type ResolverParams struct {
	MaxGridChargeRateW float64
	MaxPVChargeRateW   float64
	ResolutionSeconds  int
}

// Resolve computes the decision for the current slot from scratch.
// Precedence is EV signal, then override, then schedule. Anything it
// cannot interpret resolves to AVOID_DISCHARGE.
func Resolve(in ResolverInput, p ResolverParams) domain.ControlDecision {
	decision := domain.SafeDecision(in.Now)
	decision.BatterySoC = in.BatterySoC
	decision.ResolutionSeconds = p.ResolutionSeconds

	override := in.Override
	if override != nil && !override.ActiveAt(in.Now) {
		override = nil
	}
	if override != nil && !override.Mode.Valid() {
		override = nil
	}
	if override != nil {
		end := override.EndTime
		decision.OverrideActive = true
		decision.OverrideEndTime = &end
	}

	if in.HasSlot {
		decision.DCChargeDemandW = dcDemand(in.Slot, p.MaxPVChargeRateW)
	}

	if mode, ok := evMode(in.EV); ok && mode.EVCCDriven() {
		decision.Mode = mode
		decision.DischargeAllowed = mode.AllowsDischarge()
		decision.Source = domain.DECISION_SOURCE_EVCC
		return decision
	}

	if override != nil {
		decision.Mode = override.Mode
		decision.DischargeAllowed = override.Mode.AllowsDischarge()
		decision.Source = domain.DECISION_SOURCE_OVERRIDE
		switch override.Mode {
		case domain.ModeChargeFromGrid:
			decision.ACChargeDemandW = clamp(override.GridChargePowerW, 0, p.MaxGridChargeRateW)
			decision.DCChargeDemandW = nil
		case domain.ModeAvoidDischarge:
			decision.DCChargeDemandW = nil
		}
		return decision
	}

	if !in.HasSlot || !validFraction(in.Slot.ACChargeFraction) {
		decision.DCChargeDemandW = nil
		return decision
	}
	decision.Source = domain.DECISION_SOURCE_SCHEDULE
	switch {
	case in.Slot.ACChargeFraction > 0:
		decision.Mode = domain.ModeChargeFromGrid
		decision.ACChargeDemandW = clamp(in.Slot.ACChargeFraction*p.MaxGridChargeRateW, 0, p.MaxGridChargeRateW)
	case in.Slot.DischargeAllowed:
		decision.Mode = domain.ModeDischargeAllowed
		decision.DischargeAllowed = true
	default:
		decision.Mode = domain.ModeAvoidDischarge
	}
	return decision
}

// evMode maps an EV signal to one of the EVCC modes. Signals that are not
// charging, or charging in "off", do not take precedence.
func evMode(ev *domain.EVChargingSignal) (domain.Mode, bool) {
	if ev == nil || !ev.Charging {
		return domain.ModeInvalid, false
	}
	switch ev.Mode {
	case domain.EV_CHARGE_MODE_NOW:
		if ev.PVSurplus() {
			return domain.ModeDischargeAllowedEVCCPV, true
		}
		return domain.ModeAvoidDischargeEVCCFast, true
	case domain.EV_CHARGE_MODE_PV:
		return domain.ModeDischargeAllowedEVCCPV, true
	case domain.EV_CHARGE_MODE_MIN_PV:
		return domain.ModeDischargeAllowedEVCCMinPV, true
	default:
		return domain.ModeInvalid, false
	}
}

func dcDemand(slot domain.ScheduleSlot, maxPVChargeRateW float64) *float64 {
	if slot.DCChargeFraction == nil || !validFraction(*slot.DCChargeFraction) {
		return nil
	}
	return domain.Float64Ptr(clamp(*slot.DCChargeFraction*maxPVChargeRateW, 0, maxPVChargeRateW))
}

func validFraction(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
