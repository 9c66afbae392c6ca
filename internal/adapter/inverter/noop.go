package inverter

import (
	"context"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"

	"go.uber.org/zap"
)

// NoopDriver only logs; the decision is still published.
type NoopDriver struct {
	logger *zap.Logger
}

var _ port.InverterDriver = (*NoopDriver)(nil)

func NewNoopDriver(logger *zap.Logger) *NoopDriver {
	return &NoopDriver{logger: logger.With(zap.String("driver", "default"))}
}

func (d *NoopDriver) Name() string {
	return "default"
}

func (d *NoopDriver) Capabilities() port.DriverCapabilities {
	return port.DriverCapabilities{}
}

func (d *NoopDriver) Apply(_ context.Context, target domain.ActuationTarget) error {
	d.logger.Debug("noop: target", zap.String("mode", target.Mode.String()), zap.Float64("ac", target.ACChargeDemandW))
	return nil
}

func (d *NoopDriver) Close() error {
	return nil
}
