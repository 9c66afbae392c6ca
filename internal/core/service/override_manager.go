package service

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"go.uber.org/zap"
)

const DEFAULT_OVERRIDE_DURATION = 2 * time.Hour

// OverrideManager owns the single manual override. Expiry is lazy: Active
// compares against now on every call, nothing sweeps in the background.
type OverrideManager struct {
	mu       sync.Mutex
	override *domain.Override

	maxGridChargePowerW    float64
	defaultDuration        time.Duration
	defaultGridChargePower float64

	clock  func() time.Time
	logger *zap.Logger
}

func NewOverrideManager(maxGridChargePowerW float64, clock func() time.Time, logger *zap.Logger) *OverrideManager {
	if clock == nil {
		clock = time.Now
	}
	return &OverrideManager{
		maxGridChargePowerW:    maxGridChargePowerW,
		defaultDuration:        DEFAULT_OVERRIDE_DURATION,
		defaultGridChargePower: maxGridChargePowerW,
		clock:                  clock,
		logger:                 logger.With(zap.String("service", "override")),
	}
}

// Set applies cmd. A revert clears the override and returns nil. A zero
// duration or power falls back to the configured defaults.
func (m *OverrideManager) Set(cmd domain.OverrideCommand) (*domain.Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cmd.Revert {
		if m.override != nil {
			m.logger.Info("override@set: reverted to automatic", zap.Stringer("mode", m.override.Mode))
		}
		m.override = nil
		return nil, nil
	}
	if !cmd.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidMode, cmd.Mode.Code())
	}

	requested := cmd.Duration
	if requested == 0 {
		requested = m.defaultDuration
	}
	duration, err := domain.NormalizeOverrideDuration(requested)
	if err != nil {
		return nil, err
	}

	power := cmd.GridChargePowerW
	if power == 0 {
		power = m.defaultGridChargePower
	}
	power = m.clampPower(power)

	now := m.clock()
	m.override = &domain.Override{
		Mode:             cmd.Mode,
		Duration:         domain.Duration(duration),
		GridChargePowerW: power,
		SetAt:            now,
		EndTime:          now.Add(duration),
	}
	m.logger.Info("override@set: override active",
		zap.Stringer("mode", cmd.Mode),
		zap.Duration("duration", duration),
		zap.Float64("grid_charge_power_w", power),
		zap.Time("end_time", m.override.EndTime))

	o := *m.override
	return &o, nil
}

// Active returns a copy of the override if now < end time.
func (m *OverrideManager) Active(now time.Time) *domain.Override {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.override == nil || !m.override.ActiveAt(now) {
		return nil
	}
	o := *m.override
	return &o
}

// SetDefaults updates what a mode only command (the HA select) uses.
func (m *OverrideManager) SetDefaults(durationMinutes, gridChargePowerW *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if durationMinutes != nil {
		d, err := domain.NormalizeOverrideDuration(time.Duration(*durationMinutes * float64(time.Minute)))
		if err != nil {
			return err
		}
		m.defaultDuration = d
	}
	if gridChargePowerW != nil {
		m.defaultGridChargePower = m.clampPower(*gridChargePowerW)
	}
	return nil
}

func (m *OverrideManager) Defaults() (time.Duration, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultDuration, m.defaultGridChargePower
}

func (m *OverrideManager) clampPower(power float64) float64 {
	return math.Max(domain.OVERRIDE_MIN_POWER_W, math.Min(power, m.maxGridChargePowerW))
}
