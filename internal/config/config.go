package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

const (
	INVERTER_TYPE_FRONIUS_GEN24 = "fronius_gen24"
	INVERTER_TYPE_EVCC          = "evcc"
	INVERTER_TYPE_DEFAULT       = "default"

	SOURCE_DEFAULT       = "default"
	SOURCE_EVCC          = "evcc"
	SOURCE_FRONIUS_GEN24 = "fronius_gen24"
	SOURCE_FIXED_24H     = "fixed_24h"
)

type Config struct {
	LogLevel           zapcore.Level  `mapstructure:"-"`
	TimeZone           string         `mapstructure:"time_zone"`
	Location           *time.Location `mapstructure:"-"`
	Port               uint           `mapstructure:"port"`
	HttpLog            bool           `mapstructure:"http_log"`
	RefreshTimeMinutes uint           `mapstructure:"refresh_time_minutes"`
	TimeFrameSeconds   int            `mapstructure:"time_frame_seconds"`
	HorizonHours       int            `mapstructure:"horizon_hours"`

	EOS              EOSConfig              `mapstructure:"eos"`
	Inverter         InverterConfig         `mapstructure:"inverter"`
	Battery          BatteryConfig          `mapstructure:"battery"`
	Load             LoadConfig             `mapstructure:"load"`
	Price            PriceConfig            `mapstructure:"price"`
	PVForecastSource string                 `mapstructure:"pv_forecast_source"`
	PVForecast       []PVInstallationConfig `mapstructure:"pv_forecast"`
	EVCC             EVCCConfig             `mapstructure:"evcc"`
	MQTT             MQTTConfig             `mapstructure:"mqtt"`
}

type EOSConfig struct {
	Server         string
	Port           uint
	TimeoutSeconds uint `mapstructure:"timeout_seconds"`
}

type InverterConfig struct {
	Type              string
	Address           string
	ModbusPort        uint    `mapstructure:"modbus_port"`
	UnitId            uint    `mapstructure:"unit_id"`
	IgnoreFronius     bool    `mapstructure:"ignore_fronius"`
	MaxGridChargeRate float64 `mapstructure:"max_grid_charge_rate"`
	MaxPVChargeRate   float64 `mapstructure:"max_pv_charge_rate"`
	RevertTimeSeconds uint32  `mapstructure:"revert_time_seconds"`
}

type BatteryConfig struct {
	Source              string
	StaticSoC           float64 `mapstructure:"static_soc"`
	CapacityWh          float64 `mapstructure:"capacity_wh"`
	ChargeEfficiency    float64 `mapstructure:"charge_efficiency"`
	DischargeEfficiency float64 `mapstructure:"discharge_efficiency"`
	MaxChargePowerW     float64 `mapstructure:"max_charge_power_w"`
	MinSoCPercentage    int     `mapstructure:"min_soc_percentage"`
	MaxSoCPercentage    int     `mapstructure:"max_soc_percentage"`
	PriceEuroPerWhAccu  float64 `mapstructure:"price_euro_per_wh_accu"`
}

type LoadConfig struct {
	Source                      string
	AdditionalLoad1Consumption  float64 `mapstructure:"additional_load_1_consumption"`
	AdditionalLoad1RuntimeHours float64 `mapstructure:"additional_load_1_runtime"`
}

type PriceConfig struct {
	Source string
	// Fixed24hArray is in ct/kWh, one value per hour of the day.
	Fixed24hArray       []float64 `mapstructure:"fixed_24h_array"`
	FeedInPrice         float64   `mapstructure:"feed_in_price"`
	NegativePriceSwitch bool      `mapstructure:"negative_price_switch"`
}

type PVInstallationConfig struct {
	Name       string
	PeakPowerW float64 `mapstructure:"peak_power_w"`
}

type EVCCConfig struct {
	URL                 string `mapstructure:"url"`
	PollIntervalSeconds uint   `mapstructure:"poll_interval_seconds"`
}

type MQTTConfig struct {
	Enabled           bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// Horizon is the number of slots one optimization covers.
func (c Config) Horizon() int {
	return domain.SlotsPerHorizon(c.HorizonHours, c.TimeFrameSeconds)
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshTimeMinutes) * time.Minute
}

func (c Config) EOSTimeout() time.Duration {
	return time.Duration(c.EOS.TimeoutSeconds) * time.Second
}

func (c Config) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
