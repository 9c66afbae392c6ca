package port

import (
	"context"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
)

// DriverCapabilities tells which limits a driver can enforce on hardware.
type DriverCapabilities struct {
	GridChargeLimit bool
	PVChargeLimit   bool
	// KeepAlive > 0 means the last command must be re-sent at that
	// interval or the hardware falls back on its own.
	KeepAlive time.Duration
}

type InverterDriver interface {
	Name() string
	Capabilities() DriverCapabilities
	Apply(ctx context.Context, target domain.ActuationTarget) error
	Close() error
}
