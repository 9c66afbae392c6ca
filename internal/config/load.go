package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Load reads defaults, EOSCONNECT_* env vars and the optional YAML file
// named by CONFIG_FILE, then validates the result.
func Load() (*Config, error) {

	// alias PORT => EOSCONNECT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("EOSCONNECT_PORT", port)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("eosconnect")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				return nil, domain.ConfigurationError{Key: "CONFIG_FILE", Reason: err.Error()}
			}
		}
	}

	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToFloatSliceHook(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, domain.ConfigurationError{Key: "config", Reason: err.Error()}
	}

	cfg.LogLevel = parseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "error":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// stringToFloatSliceHook accepts "10.1, 11, 12.5" for []float64 fields.
func stringToFloatSliceHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]float64{}) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []float64{}, nil
		}
		parts := strings.Split(strings.Trim(raw, "[]"), ",")
		out := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", p)
			}
			out = append(out, f)
		}
		return out, nil
	}
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("time_zone", "UTC")
	v.SetDefault("port", 8081)
	v.SetDefault("http_log", false)
	v.SetDefault("refresh_time_minutes", 3)
	v.SetDefault("time_frame_seconds", domain.RESOLUTION_HOURLY_SECONDS)
	v.SetDefault("horizon_hours", 48)
	v.SetDefault("eos.server", "")
	v.SetDefault("eos.port", 8503)
	v.SetDefault("eos.timeout_seconds", 180)
	v.SetDefault("inverter.type", INVERTER_TYPE_DEFAULT)
	v.SetDefault("inverter.address", "")
	v.SetDefault("inverter.modbus_port", 502)
	v.SetDefault("inverter.unit_id", 1)
	v.SetDefault("inverter.ignore_fronius", false)
	v.SetDefault("inverter.max_grid_charge_rate", 5000)
	v.SetDefault("inverter.max_pv_charge_rate", 5000)
	v.SetDefault("inverter.revert_time_seconds", 120)
	v.SetDefault("battery.source", SOURCE_DEFAULT)
	v.SetDefault("battery.static_soc", 50)
	v.SetDefault("battery.capacity_wh", 0)
	v.SetDefault("battery.charge_efficiency", 0.88)
	v.SetDefault("battery.discharge_efficiency", 0.88)
	v.SetDefault("battery.max_charge_power_w", 5000)
	v.SetDefault("battery.min_soc_percentage", 5)
	v.SetDefault("battery.max_soc_percentage", 100)
	v.SetDefault("battery.price_euro_per_wh_accu", 0)
	v.SetDefault("load.source", SOURCE_DEFAULT)
	v.SetDefault("load.additional_load_1_consumption", 0)
	v.SetDefault("load.additional_load_1_runtime", 1)
	v.SetDefault("price.source", SOURCE_DEFAULT)
	v.SetDefault("price.fixed_24h_array", []float64{})
	v.SetDefault("price.feed_in_price", 0)
	v.SetDefault("price.negative_price_switch", false)
	v.SetDefault("pv_forecast_source", SOURCE_DEFAULT)
	v.SetDefault("pv_forecast", []map[string]any{{"name": "default", "peak_power_w": 5000}})
	v.SetDefault("evcc.url", "")
	v.SetDefault("evcc.poll_interval_seconds", 10)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "eos_connect")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

// Validate checks bounds and fixes topics in place.
func (cfg *Config) Validate() error {
	if cfg.EOS.Server == "" {
		return domain.ConfigurationError{Key: "eos.server", Reason: "required"}
	}
	if cfg.Battery.CapacityWh <= 0 {
		return domain.ConfigurationError{Key: "battery.capacity_wh", Reason: "required and must be > 0"}
	}
	if !domain.ValidResolution(cfg.TimeFrameSeconds) {
		return domain.ConfigurationError{Key: "time_frame_seconds", Reason: "must be 900 or 3600"}
	}
	if cfg.HorizonHours < 1 {
		return domain.ConfigurationError{Key: "horizon_hours", Reason: "must be >= 1"}
	}
	if cfg.RefreshTimeMinutes < 1 {
		return domain.ConfigurationError{Key: "refresh_time_minutes", Reason: "must be >= 1"}
	}
	if cfg.EOS.TimeoutSeconds < 1 {
		return domain.ConfigurationError{Key: "eos.timeout_seconds", Reason: "must be >= 1"}
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return domain.ConfigurationError{Key: "time_zone", Reason: err.Error()}
	}
	cfg.Location = loc

	switch cfg.Inverter.Type {
	case INVERTER_TYPE_FRONIUS_GEN24, INVERTER_TYPE_EVCC, INVERTER_TYPE_DEFAULT:
	default:
		return domain.ConfigurationError{Key: "inverter.type", Reason: fmt.Sprintf("unknown type %q", cfg.Inverter.Type)}
	}
	if cfg.Inverter.MaxGridChargeRate < domain.OVERRIDE_MIN_POWER_W {
		return domain.ConfigurationError{Key: "inverter.max_grid_charge_rate", Reason: fmt.Sprintf("must be >= %d", domain.OVERRIDE_MIN_POWER_W)}
	}
	if cfg.Inverter.MaxPVChargeRate < 0 {
		return domain.ConfigurationError{Key: "inverter.max_pv_charge_rate", Reason: "must be >= 0"}
	}

	switch cfg.Battery.Source {
	case SOURCE_DEFAULT, SOURCE_EVCC, SOURCE_FRONIUS_GEN24:
	default:
		return domain.ConfigurationError{Key: "battery.source", Reason: fmt.Sprintf("unknown source %q", cfg.Battery.Source)}
	}
	if cfg.Battery.StaticSoC < 0 || cfg.Battery.StaticSoC > 100 {
		return domain.ConfigurationError{Key: "battery.static_soc", Reason: "must be within 0..100"}
	}
	if cfg.Battery.MinSoCPercentage < 0 || cfg.Battery.MaxSoCPercentage > 100 || cfg.Battery.MinSoCPercentage >= cfg.Battery.MaxSoCPercentage {
		return domain.ConfigurationError{Key: "battery.min_soc_percentage", Reason: "must satisfy 0 <= min < max <= 100"}
	}

	if cfg.Load.Source != SOURCE_DEFAULT {
		return domain.ConfigurationError{Key: "load.source", Reason: fmt.Sprintf("unknown source %q", cfg.Load.Source)}
	}
	switch cfg.Price.Source {
	case SOURCE_DEFAULT:
	case SOURCE_FIXED_24H:
		if len(cfg.Price.Fixed24hArray) != 24 {
			return domain.ConfigurationError{Key: "price.fixed_24h_array", Reason: fmt.Sprintf("expected 24 values, got %d", len(cfg.Price.Fixed24hArray))}
		}
	default:
		return domain.ConfigurationError{Key: "price.source", Reason: fmt.Sprintf("unknown source %q", cfg.Price.Source)}
	}
	if cfg.PVForecastSource != SOURCE_DEFAULT {
		return domain.ConfigurationError{Key: "pv_forecast_source", Reason: fmt.Sprintf("unknown source %q", cfg.PVForecastSource)}
	}

	needsEVCC := cfg.Inverter.Type == INVERTER_TYPE_EVCC || cfg.Battery.Source == SOURCE_EVCC
	if needsEVCC && cfg.EVCC.URL == "" {
		return domain.ConfigurationError{Key: "evcc.url", Reason: "required by inverter.type or battery.source"}
	}
	needsFronius := cfg.Inverter.Type == INVERTER_TYPE_FRONIUS_GEN24 || cfg.Battery.Source == SOURCE_FRONIUS_GEN24
	if needsFronius && cfg.Inverter.Address == "" {
		return domain.ConfigurationError{Key: "inverter.address", Reason: "required by inverter.type or battery.source"}
	}
	if cfg.EVCC.URL != "" && cfg.EVCC.PollIntervalSeconds < 1 {
		return domain.ConfigurationError{Key: "evcc.poll_interval_seconds", Reason: "must be >= 1"}
	}

	// check and fix base topic
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return domain.ConfigurationError{Key: "mqtt.base_topic", Reason: err.Error()}
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return domain.ConfigurationError{Key: "mqtt.ha_discovery_topic", Reason: err.Error()}
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	return nil
}

// SafePrintConfig logs the config with credentials redacted.
func SafePrintConfig(cfg Config, logger *zap.Logger) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	logger.Info("Using", zap.Any("config", cfg))
}
