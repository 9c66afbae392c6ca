package domain

type EVChargeMode string

const (
	EV_CHARGE_MODE_OFF    EVChargeMode = "off"
	EV_CHARGE_MODE_PV     EVChargeMode = "pv"
	EV_CHARGE_MODE_MIN_PV EVChargeMode = "minpv"
	EV_CHARGE_MODE_NOW    EVChargeMode = "now"
)

func (m EVChargeMode) Valid() bool {
	switch m {
	case EV_CHARGE_MODE_OFF, EV_CHARGE_MODE_PV, EV_CHARGE_MODE_MIN_PV, EV_CHARGE_MODE_NOW:
		return true
	}
	return false
}

// EVChargingSignal describes the current slot only.
type EVChargingSignal struct {
	Charging     bool         `json:"charging"`
	Mode         EVChargeMode `json:"mode"`
	CurrentDrawW float64      `json:"current_draw_w"`
	PVAvailableW float64      `json:"pv_available_w"`
}

// PVSurplus reports whether PV covers the current EV draw.
func (s EVChargingSignal) PVSurplus() bool {
	return s.PVAvailableW > s.CurrentDrawW
}

// SameState reports whether both signals describe the same charging state.
// Power readings only count in "now" mode, where PV covering the draw
// changes the resulting mode; other fluctuations do not retrigger a pass.
func (s EVChargingSignal) SameState(o EVChargingSignal) bool {
	if s.Charging != o.Charging || s.Mode != o.Mode {
		return false
	}
	if s.Mode == EV_CHARGE_MODE_NOW {
		return s.PVSurplus() == o.PVSurplus()
	}
	return true
}

// EVCCState is what one poll of the EVCC state endpoint yields.
type EVCCState struct {
	Signal     EVChargingSignal
	BatterySoC *float64
}
