package domain

import (
	"errors"
	"fmt"
)

// Mode is the operating intent for the inverter. The zero value is not a
// valid mode; numeric codes exist only at the external boundary (Code).
type Mode uint8

const (
	ModeInvalid Mode = iota
	ModeChargeFromGrid
	ModeAvoidDischarge
	ModeDischargeAllowed
	ModeAvoidDischargeEVCCFast
	ModeDischargeAllowedEVCCPV
	ModeDischargeAllowedEVCCMinPV
)

// MODE_CODE_REVERT is the external override code that clears the override.
// MODE_CODE_DEACTIVATE is the older dashboard code for the same action.
const (
	MODE_CODE_REVERT     = -2
	MODE_CODE_DEACTIVATE = -1
)

func IsRevertCode(code int) bool {
	return code == MODE_CODE_REVERT || code == MODE_CODE_DEACTIVATE
}

var ErrInvalidMode = errors.New("invalid mode value")

var allModes = []Mode{
	ModeChargeFromGrid,
	ModeAvoidDischarge,
	ModeDischargeAllowed,
	ModeAvoidDischargeEVCCFast,
	ModeDischargeAllowedEVCCPV,
	ModeDischargeAllowedEVCCMinPV,
}

func Modes() []Mode {
	return append([]Mode(nil), allModes...)
}

func ModeFromCode(code int) (Mode, error) {
	switch code {
	case 0:
		return ModeChargeFromGrid, nil
	case 1:
		return ModeAvoidDischarge, nil
	case 2:
		return ModeDischargeAllowed, nil
	case 3:
		return ModeAvoidDischargeEVCCFast, nil
	case 4:
		return ModeDischargeAllowedEVCCPV, nil
	case 5:
		return ModeDischargeAllowedEVCCMinPV, nil
	default:
		return ModeInvalid, fmt.Errorf("%w: %d", ErrInvalidMode, code)
	}
}

func ModeFromString(name string) (Mode, error) {
	for _, m := range allModes {
		if m.String() == name {
			return m, nil
		}
	}
	return ModeInvalid, fmt.Errorf("%w: %q", ErrInvalidMode, name)
}

func (m Mode) Valid() bool {
	return m >= ModeChargeFromGrid && m <= ModeDischargeAllowedEVCCMinPV
}

// Code returns the numeric boundary code, -1 for an invalid mode.
func (m Mode) Code() int {
	switch m {
	case ModeChargeFromGrid:
		return 0
	case ModeAvoidDischarge:
		return 1
	case ModeDischargeAllowed:
		return 2
	case ModeAvoidDischargeEVCCFast:
		return 3
	case ModeDischargeAllowedEVCCPV:
		return 4
	case ModeDischargeAllowedEVCCMinPV:
		return 5
	default:
		return -1
	}
}

func (m Mode) String() string {
	switch m {
	case ModeChargeFromGrid:
		return "MODE CHARGE FROM GRID"
	case ModeAvoidDischarge:
		return "MODE AVOID DISCHARGE"
	case ModeDischargeAllowed:
		return "MODE DISCHARGE ALLOWED"
	case ModeAvoidDischargeEVCCFast:
		return "MODE AVOID DISCHARGE EVCC FAST"
	case ModeDischargeAllowedEVCCPV:
		return "MODE DISCHARGE ALLOWED EVCC PV"
	case ModeDischargeAllowedEVCCMinPV:
		return "MODE DISCHARGE ALLOWED EVCC MIN PV"
	default:
		return "MODE INVALID"
	}
}

// AllowsDischarge reports whether the battery may discharge freely.
func (m Mode) AllowsDischarge() bool {
	switch m {
	case ModeDischargeAllowed, ModeDischargeAllowedEVCCPV, ModeDischargeAllowedEVCCMinPV:
		return true
	case ModeChargeFromGrid, ModeAvoidDischarge, ModeAvoidDischargeEVCCFast:
		return false
	default:
		return false
	}
}

// EVCCDriven reports whether the mode mirrors an EV charging state.
// Such modes are only ever selected for the current slot.
func (m Mode) EVCCDriven() bool {
	switch m {
	case ModeAvoidDischargeEVCCFast, ModeDischargeAllowedEVCCPV, ModeDischargeAllowedEVCCMinPV:
		return true
	default:
		return false
	}
}

func (m Mode) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", m.Code())), nil
}
