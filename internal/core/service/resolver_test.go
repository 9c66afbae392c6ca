package service

import (
	"math"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

var testParams = ResolverParams{
	MaxGridChargeRateW: 5000,
	MaxPVChargeRateW:   4000,
	ResolutionSeconds:  3600,
}

func TestResolveChargeFromSchedule(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 20, 0, 0, time.UTC)
	d := Resolve(ResolverInput{
		Slot:       domain.ScheduleSlot{ACChargeFraction: 0.6},
		HasSlot:    true,
		BatterySoC: 42,
		Now:        now,
	}, testParams)

	assert.Equal(t, domain.ModeChargeFromGrid, d.Mode)
	assert.InDelta(t, 3000.0, d.ACChargeDemandW, 0.001)
	assert.False(t, d.DischargeAllowed)
	assert.False(t, d.OverrideActive)
	assert.Equal(t, 42.0, d.BatterySoC)
	assert.Equal(t, 3600, d.ResolutionSeconds)
	assert.Equal(t, domain.DECISION_SOURCE_SCHEDULE, d.Source)
}

func TestResolveChargeExclusiveWithDischarge(t *testing.T) {
	d := Resolve(ResolverInput{
		Slot:    domain.ScheduleSlot{ACChargeFraction: 0.2, DischargeAllowed: true},
		HasSlot: true,
		Now:     time.Now(),
	}, testParams)
	assert.Equal(t, domain.ModeChargeFromGrid, d.Mode)
	assert.False(t, d.DischargeAllowed)
}

func TestResolveACDemandClamped(t *testing.T) {
	d := Resolve(ResolverInput{
		Slot:    domain.ScheduleSlot{ACChargeFraction: 1.7},
		HasSlot: true,
		Now:     time.Now(),
	}, testParams)
	assert.Equal(t, 5000.0, d.ACChargeDemandW)
}

func TestResolveScheduleModes(t *testing.T) {
	now := time.Now()
	d := Resolve(ResolverInput{Slot: domain.ScheduleSlot{DischargeAllowed: true}, HasSlot: true, Now: now}, testParams)
	assert.Equal(t, domain.ModeDischargeAllowed, d.Mode)
	assert.True(t, d.DischargeAllowed)

	d = Resolve(ResolverInput{Slot: domain.ScheduleSlot{}, HasSlot: true, Now: now}, testParams)
	assert.Equal(t, domain.ModeAvoidDischarge, d.Mode)
	assert.False(t, d.DischargeAllowed)
}

func TestResolveFallback(t *testing.T) {
	now := time.Now()
	d := Resolve(ResolverInput{Now: now}, testParams)
	assert.Equal(t, domain.ModeAvoidDischarge, d.Mode)
	assert.Equal(t, domain.DECISION_SOURCE_FALLBACK, d.Source)
	assert.Nil(t, d.DCChargeDemandW)

	for _, bad := range []float64{math.NaN(), -0.5, math.Inf(1)} {
		d = Resolve(ResolverInput{
			Slot:    domain.ScheduleSlot{ACChargeFraction: bad, DischargeAllowed: true},
			HasSlot: true,
			Now:     now,
		}, testParams)
		assert.Equal(t, domain.ModeAvoidDischarge, d.Mode, "fraction %v", bad)
		assert.False(t, d.DischargeAllowed)
		assert.Zero(t, d.ACChargeDemandW)
	}
}

func TestResolveEVFastWinsOverSchedule(t *testing.T) {
	d := Resolve(ResolverInput{
		Slot:    domain.ScheduleSlot{DischargeAllowed: true},
		HasSlot: true,
		EV:      &domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_NOW, CurrentDrawW: 11000, PVAvailableW: 2000},
		Now:     time.Now(),
	}, testParams)
	assert.Equal(t, domain.ModeAvoidDischargeEVCCFast, d.Mode)
	assert.False(t, d.DischargeAllowed)
	assert.Equal(t, domain.DECISION_SOURCE_EVCC, d.Source)
}

func TestResolveEVModes(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name     string
		signal   domain.EVChargingSignal
		expected domain.Mode
	}{
		{"now with pv surplus", domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_NOW, CurrentDrawW: 3000, PVAvailableW: 4000}, domain.ModeDischargeAllowedEVCCPV},
		{"pv", domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_PV}, domain.ModeDischargeAllowedEVCCPV},
		{"minpv", domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_MIN_PV}, domain.ModeDischargeAllowedEVCCMinPV},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			signal := c.signal
			d := Resolve(ResolverInput{HasSlot: true, EV: &signal, Now: now}, testParams)
			assert.Equal(t, c.expected, d.Mode)
			assert.True(t, d.DischargeAllowed)
		})
	}
}

func TestResolveEVNotChargingIgnored(t *testing.T) {
	d := Resolve(ResolverInput{
		Slot:    domain.ScheduleSlot{DischargeAllowed: true},
		HasSlot: true,
		EV:      &domain.EVChargingSignal{Charging: false, Mode: domain.EV_CHARGE_MODE_NOW},
		Now:     time.Now(),
	}, testParams)
	assert.Equal(t, domain.ModeDischargeAllowed, d.Mode)

	d = Resolve(ResolverInput{
		Slot:    domain.ScheduleSlot{DischargeAllowed: true},
		HasSlot: true,
		EV:      &domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_OFF},
		Now:     time.Now(),
	}, testParams)
	assert.Equal(t, domain.ModeDischargeAllowed, d.Mode)
}

func TestResolvePrecedence(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	override := &domain.Override{
		Mode:             domain.ModeChargeFromGrid,
		GridChargePowerW: 2500,
		SetAt:            now.Add(-30 * time.Minute),
		EndTime:          now.Add(30 * time.Minute),
	}
	slot := domain.ScheduleSlot{DischargeAllowed: true}
	ev := &domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_NOW, CurrentDrawW: 7000}

	d := Resolve(ResolverInput{Slot: slot, HasSlot: true, Override: override, EV: ev, Now: now}, testParams)
	assert.Equal(t, domain.ModeAvoidDischargeEVCCFast, d.Mode, "EV beats override")
	assert.True(t, d.OverrideActive)

	d = Resolve(ResolverInput{Slot: slot, HasSlot: true, Override: override, Now: now}, testParams)
	assert.Equal(t, domain.ModeChargeFromGrid, d.Mode, "override beats schedule")
	assert.Equal(t, 2500.0, d.ACChargeDemandW)
	assert.False(t, d.DischargeAllowed)
	assert.Equal(t, domain.DECISION_SOURCE_OVERRIDE, d.Source)
	if assert.NotNil(t, d.OverrideEndTime) {
		assert.Equal(t, override.EndTime, *d.OverrideEndTime)
	}

	d = Resolve(ResolverInput{Slot: slot, HasSlot: true, Override: override, Now: override.EndTime}, testParams)
	assert.Equal(t, domain.ModeDischargeAllowed, d.Mode, "expired override is ignored")
	assert.False(t, d.OverrideActive)
	assert.Nil(t, d.OverrideEndTime)
}

func TestResolveOverrideDischargeAllowed(t *testing.T) {
	now := time.Now()
	override := &domain.Override{Mode: domain.ModeDischargeAllowed, GridChargePowerW: 3000, EndTime: now.Add(time.Hour)}
	d := Resolve(ResolverInput{Slot: domain.ScheduleSlot{ACChargeFraction: 1}, HasSlot: true, Override: override, Now: now}, testParams)
	assert.Equal(t, domain.ModeDischargeAllowed, d.Mode)
	assert.True(t, d.DischargeAllowed)
	assert.Zero(t, d.ACChargeDemandW, "no grid charging while discharge is allowed")
}

func TestResolveDCDemand(t *testing.T) {
	now := time.Now()
	slot := domain.ScheduleSlot{DischargeAllowed: true, DCChargeFraction: domain.Float64Ptr(0.5)}

	d := Resolve(ResolverInput{Slot: slot, HasSlot: true, Now: now}, testParams)
	if assert.NotNil(t, d.DCChargeDemandW) {
		assert.Equal(t, 2000.0, *d.DCChargeDemandW)
	}

	big := domain.ScheduleSlot{DCChargeFraction: domain.Float64Ptr(3)}
	d = Resolve(ResolverInput{Slot: big, HasSlot: true, Now: now}, testParams)
	if assert.NotNil(t, d.DCChargeDemandW) {
		assert.Equal(t, 4000.0, *d.DCChargeDemandW)
	}

	d = Resolve(ResolverInput{Slot: domain.ScheduleSlot{}, HasSlot: true, Now: now}, testParams)
	assert.Nil(t, d.DCChargeDemandW, "unknown stays blank")

	zero := domain.ScheduleSlot{DCChargeFraction: domain.Float64Ptr(0)}
	d = Resolve(ResolverInput{Slot: zero, HasSlot: true, Now: now}, testParams)
	if assert.NotNil(t, d.DCChargeDemandW) {
		assert.Zero(t, *d.DCChargeDemandW, "zero is distinct from blank")
	}
}

func TestResolveDCSuppressedDuringOverride(t *testing.T) {
	now := time.Now()
	slot := domain.ScheduleSlot{DCChargeFraction: domain.Float64Ptr(0.5)}
	for _, mode := range []domain.Mode{domain.ModeChargeFromGrid, domain.ModeAvoidDischarge} {
		override := &domain.Override{Mode: mode, GridChargePowerW: 1000, EndTime: now.Add(time.Hour)}
		d := Resolve(ResolverInput{Slot: slot, HasSlot: true, Override: override, Now: now}, testParams)
		assert.Nil(t, d.DCChargeDemandW, mode.String())
	}

	override := &domain.Override{Mode: domain.ModeDischargeAllowed, EndTime: now.Add(time.Hour)}
	d := Resolve(ResolverInput{Slot: slot, HasSlot: true, Override: override, Now: now}, testParams)
	assert.NotNil(t, d.DCChargeDemandW)
}

func TestResolveDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	in := ResolverInput{
		Slot:       domain.ScheduleSlot{ACChargeFraction: 0.25, DCChargeFraction: domain.Float64Ptr(0.1)},
		HasSlot:    true,
		BatterySoC: 61,
		Now:        now,
	}
	first := Resolve(in, testParams)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve(in, testParams))
	}
}

func TestResolveFromStoredSchedule(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewScheduleStore()
	store.Replace(testSchedule(start, 3600, 0, 0.6, 0), domain.OptimizeRequest{})

	now := start.Add(time.Hour + 10*time.Minute)
	slot, ok := store.CurrentSlot(now)
	d := Resolve(ResolverInput{Slot: slot, HasSlot: ok, Now: now}, testParams)
	assert.Equal(t, domain.ModeChargeFromGrid, d.Mode)
	assert.InDelta(t, 3000.0, d.ACChargeDemandW, 0.001)
}
