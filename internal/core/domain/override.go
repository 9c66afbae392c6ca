package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	OVERRIDE_DURATION_STEP = 30 * time.Minute
	OVERRIDE_DURATION_MIN  = 30 * time.Minute
	OVERRIDE_DURATION_MAX  = 24 * time.Hour
	OVERRIDE_MIN_POWER_W   = 500
)

var ErrInvalidDuration = errors.New("invalid override duration")

// Override is an operator issued mode that wins over the schedule until EndTime.
type Override struct {
	Mode             Mode      `json:"mode"`
	Duration         Duration  `json:"duration"`
	GridChargePowerW float64   `json:"grid_charge_power_w"`
	SetAt            time.Time `json:"set_at"`
	EndTime          time.Time `json:"end_time"`
}

// ActiveAt is the only expiry rule: an override is active iff now < EndTime.
func (o Override) ActiveAt(now time.Time) bool {
	return now.Before(o.EndTime)
}

// OverrideCommand is a validated operator intent, either a new override or a revert.
type OverrideCommand struct {
	Revert           bool
	Mode             Mode
	Duration         time.Duration
	GridChargePowerW float64
}

// NewOverrideCommand builds a command from boundary values. Codes -2 and
// -1 revert.
func NewOverrideCommand(code int, duration time.Duration, gridChargePowerW float64) (OverrideCommand, error) {
	if IsRevertCode(code) {
		return OverrideCommand{Revert: true}, nil
	}
	mode, err := ModeFromCode(code)
	if err != nil {
		return OverrideCommand{}, err
	}
	return OverrideCommand{
		Mode:             mode,
		Duration:         duration,
		GridChargePowerW: gridChargePowerW,
	}, nil
}

// NormalizeOverrideDuration rounds d up to the next 30 minute step and
// checks the allowed range.
func NormalizeOverrideDuration(d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}
	steps := (d + OVERRIDE_DURATION_STEP - 1) / OVERRIDE_DURATION_STEP
	rounded := steps * OVERRIDE_DURATION_STEP
	if rounded < OVERRIDE_DURATION_MIN || rounded > OVERRIDE_DURATION_MAX {
		return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}
	return rounded, nil
}

// ParseOverrideDuration parses the "HH:MM" label used by dashboard and MQTT.
func ParseOverrideDuration(label string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, label)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, label)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, label)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

func FormatOverrideDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Duration marshals as "HH:MM".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(FormatOverrideDuration(time.Duration(d))), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseOverrideDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
