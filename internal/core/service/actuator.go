package service

import (
	"context"
	"math"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"

	"go.uber.org/zap"
)

// Actuator forwards decisions to the driver and skips unchanged targets.
// It is not safe for concurrent use; the inverter actor owns it.
type Actuator struct {
	driver          port.InverterDriver
	maxChargePowerW float64
	last            *domain.ActuationTarget
	logger          *zap.Logger
}

func NewActuator(driver port.InverterDriver, maxChargePowerW float64, logger *zap.Logger) *Actuator {
	return &Actuator{
		driver:          driver,
		maxChargePowerW: maxChargePowerW,
		logger:          logger.With(zap.String("service", "actuator"), zap.String("driver", driver.Name())),
	}
}

// Apply writes the decision target unless it equals the last applied one.
// A failed write leaves the last target untouched so the next pass retries.
func (a *Actuator) Apply(ctx context.Context, decision domain.ControlDecision) (bool, error) {
	target := a.bound(decision.Target())
	if a.last != nil && *a.last == target {
		return false, nil
	}
	if err := a.driver.Apply(ctx, target); err != nil {
		return false, domain.ActuationFailed{Driver: a.driver.Name(), Err: err}
	}
	a.last = &target
	a.logger.Info("actuator@apply: target applied",
		zap.Stringer("mode", target.Mode),
		zap.Float64("ac_charge_w", target.ACChargeDemandW),
		zap.Float64("dc_charge_w", target.DCChargeDemandW),
		zap.Bool("dc_known", target.DCKnown),
		zap.Bool("discharge_allowed", target.DischargeAllowed))
	return true, nil
}

// Refresh re-sends the last applied target, for drivers with a keepalive.
func (a *Actuator) Refresh(ctx context.Context) error {
	if a.last == nil {
		return nil
	}
	if err := a.driver.Apply(ctx, *a.last); err != nil {
		return domain.ActuationFailed{Driver: a.driver.Name(), Err: err}
	}
	return nil
}

func (a *Actuator) Last() *domain.ActuationTarget {
	if a.last == nil {
		return nil
	}
	t := *a.last
	return &t
}

func (a *Actuator) Capabilities() port.DriverCapabilities {
	return a.driver.Capabilities()
}

// Close hands the battery back to the driver and forgets the last target,
// so the next decision is written again.
func (a *Actuator) Close() error {
	a.last = nil
	return a.driver.Close()
}

func (a *Actuator) bound(t domain.ActuationTarget) domain.ActuationTarget {
	if a.maxChargePowerW <= 0 {
		return t
	}
	t.ACChargeDemandW = math.Min(t.ACChargeDemandW, a.maxChargePowerW)
	t.DCChargeDemandW = math.Min(t.DCChargeDemandW, a.maxChargePowerW)
	return t
}
