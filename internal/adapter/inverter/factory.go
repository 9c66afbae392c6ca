package inverter

import (
	"fmt"

	"github.com/berfenger/eosconnect/internal/adapter/evcc"
	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/pkg/sunspec_modbus"

	"go.uber.org/zap"
)

// NewDriver builds the configured driver. session is required only for
// fronius_gen24.
func NewDriver(cfg config.Config, session *sunspec_modbus.Session, logger *zap.Logger) (port.InverterDriver, error) {
	switch cfg.Inverter.Type {
	case config.INVERTER_TYPE_FRONIUS_GEN24:
		if session == nil {
			return nil, domain.ConfigurationError{Key: "inverter.address", Reason: "no modbus session"}
		}
		return NewFroniusDriver(session, cfg.Inverter.RevertTimeSeconds, logger), nil
	case config.INVERTER_TYPE_EVCC:
		if cfg.EVCC.URL == "" {
			return nil, domain.ConfigurationError{Key: "evcc.url", Reason: "required by inverter.type"}
		}
		return evcc.NewBatteryModeDriver(cfg.EVCC.URL, logger), nil
	case config.INVERTER_TYPE_DEFAULT:
		return NewNoopDriver(logger), nil
	default:
		return nil, domain.ConfigurationError{Key: "inverter.type", Reason: fmt.Sprintf("unknown type %q", cfg.Inverter.Type)}
	}
}
