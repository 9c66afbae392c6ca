package util

import (
	"time"

	"github.com/berfenger/eosconnect/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig is a valid configuration that talks to nothing: static
// sources, the logging driver and MQTT disabled.
func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:           zap.DebugLevel,
		TimeZone:           "UTC",
		Location:           time.UTC,
		Port:               8081,
		RefreshTimeMinutes: 3,
		TimeFrameSeconds:   3600,
		HorizonHours:       48,
		EOS: config.EOSConfig{
			Server:         "127.0.0.1",
			Port:           8503,
			TimeoutSeconds: 5,
		},
		Inverter: config.InverterConfig{
			Type:              config.INVERTER_TYPE_DEFAULT,
			MaxGridChargeRate: 5000,
			MaxPVChargeRate:   5000,
			RevertTimeSeconds: 120,
		},
		Battery: config.BatteryConfig{
			Source:              config.SOURCE_DEFAULT,
			StaticSoC:           50,
			CapacityWh:          10000,
			ChargeEfficiency:    0.88,
			DischargeEfficiency: 0.88,
			MaxChargePowerW:     5000,
			MinSoCPercentage:    5,
			MaxSoCPercentage:    100,
		},
		Load:             config.LoadConfig{Source: config.SOURCE_DEFAULT, AdditionalLoad1RuntimeHours: 1},
		Price:            config.PriceConfig{Source: config.SOURCE_DEFAULT},
		PVForecastSource: config.SOURCE_DEFAULT,
		PVForecast:       []config.PVInstallationConfig{{Name: "default", PeakPowerW: 5000}},
		EVCC:             config.EVCCConfig{PollIntervalSeconds: 10},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "eos_connect",
			HADiscoveryTopic: "homeassistant",
		},
	}
}
