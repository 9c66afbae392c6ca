package source

import (
	"fmt"

	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
)

type Sources struct {
	Load    port.LoadSource
	Price   port.PriceSource
	PV      port.PVSource
	Battery port.BatterySource
}

// FromConfig picks the configured source for every series. evcc and
// sunspec may be nil when the configuration does not use them.
func FromConfig(cfg config.Config, evcc port.EVCCClient, sunspec *SunSpecBattery) (Sources, error) {
	var s Sources

	s.Load = StaticLoad{}

	switch cfg.Price.Source {
	case config.SOURCE_FIXED_24H:
		price, err := NewFixed24hPrice(cfg.Price.Fixed24hArray, cfg.Price.FeedInPrice, cfg.Price.NegativePriceSwitch)
		if err != nil {
			return s, domain.ConfigurationError{Key: "price.fixed_24h_array", Reason: err.Error()}
		}
		s.Price = price
	default:
		s.Price = NewDefaultPrice(cfg.Price.FeedInPrice, cfg.Price.NegativePriceSwitch)
	}

	installations := make([]PVInstallation, 0, len(cfg.PVForecast))
	for _, pv := range cfg.PVForecast {
		installations = append(installations, PVInstallation{Name: pv.Name, PeakPowerW: pv.PeakPowerW})
	}
	s.PV = StaticPV{Installations: installations}

	switch cfg.Battery.Source {
	case config.SOURCE_EVCC:
		if evcc == nil {
			return s, domain.ConfigurationError{Key: "battery.source", Reason: "evcc client not configured"}
		}
		s.Battery = EVCCBattery{Client: evcc}
	case config.SOURCE_FRONIUS_GEN24:
		if sunspec == nil {
			return s, domain.ConfigurationError{Key: "battery.source", Reason: "fronius_gen24 inverter not configured"}
		}
		s.Battery = sunspec
	case config.SOURCE_DEFAULT:
		s.Battery = StaticBattery{SoC: cfg.Battery.StaticSoC}
	default:
		return s, domain.ConfigurationError{Key: "battery.source", Reason: fmt.Sprintf("unknown source %q", cfg.Battery.Source)}
	}
	return s, nil
}
