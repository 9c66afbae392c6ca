package domain

import (
	"time"
)

const (
	RESOLUTION_HOURLY_SECONDS  = 3600
	RESOLUTION_QUARTER_SECONDS = 900
)

func ValidResolution(seconds int) bool {
	return seconds == RESOLUTION_HOURLY_SECONDS || seconds == RESOLUTION_QUARTER_SECONDS
}

// ScheduleSlot is one bucket of the optimizer horizon.
type ScheduleSlot struct {
	Start            time.Time `json:"start"`
	DischargeAllowed bool      `json:"discharge_allowed"`
	// ACChargeFraction is the share of the max grid charge rate, 0..1.
	ACChargeFraction float64 `json:"ac_charge"`
	// DCChargeFraction is the share of the max PV charge rate, nil if the
	// optimizer did not report one.
	DCChargeFraction *float64 `json:"dc_charge,omitempty"`
	ProjectedSoC     float64  `json:"soc"`
	PriceEuroPerWh   float64  `json:"price"`
	CostEuro         float64  `json:"cost"`
	IncomeEuro       float64  `json:"income"`
	GridImportWh     float64  `json:"grid_import_wh"`
	LoadWh           float64  `json:"load_wh"`
}

// Schedule is an immutable snapshot of one optimizer answer.
type Schedule struct {
	Start             time.Time      `json:"start"`
	ResolutionSeconds int            `json:"resolution_seconds"`
	ResponseTimestamp time.Time      `json:"response_timestamp"`
	Slots             []ScheduleSlot `json:"slots"`
}

func (s *Schedule) Horizon() int {
	if s == nil {
		return 0
	}
	return len(s.Slots)
}

func (s *Schedule) resolution() time.Duration {
	if s.ResolutionSeconds <= 0 {
		return RESOLUTION_HOURLY_SECONDS * time.Second
	}
	return time.Duration(s.ResolutionSeconds) * time.Second
}

// CurrentSlot maps now onto the slot index, clamped to [0, horizon).
func (s *Schedule) CurrentSlot(now time.Time) int {
	if s.Horizon() == 0 {
		return 0
	}
	elapsed := now.Sub(s.Start)
	if elapsed < 0 {
		return 0
	}
	idx := int(elapsed / s.resolution())
	if idx >= len(s.Slots) {
		return len(s.Slots) - 1
	}
	return idx
}

// SlotAt returns the slot covering now. The second value is false when the
// schedule is empty or now lies outside the horizon.
func (s *Schedule) SlotAt(now time.Time) (ScheduleSlot, bool) {
	if s.Horizon() == 0 {
		return ScheduleSlot{}, false
	}
	end := s.Start.Add(time.Duration(len(s.Slots)) * s.resolution())
	if now.Before(s.Start) || !now.Before(end) {
		return ScheduleSlot{}, false
	}
	return s.Slots[s.CurrentSlot(now)], true
}

// SlotStart truncates t to the start of its slot in t's location.
func SlotStart(t time.Time, resolutionSeconds int) time.Time {
	if resolutionSeconds <= 0 {
		resolutionSeconds = RESOLUTION_HOURLY_SECONDS
	}
	y, mo, d := t.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	sinceMidnight := t.Sub(midnight)
	res := time.Duration(resolutionSeconds) * time.Second
	return midnight.Add(sinceMidnight / res * res)
}

// SlotsPerHorizon returns how many slots cover the given number of hours.
func SlotsPerHorizon(hours int, resolutionSeconds int) int {
	if resolutionSeconds <= 0 {
		return hours
	}
	return hours * 3600 / resolutionSeconds
}
