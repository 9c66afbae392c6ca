package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"

	"go.uber.org/zap"
)

const DEFAULT_TEMPERATURE_C = 15.0

// static EV parameters sent with every request
var defaultEAuto = domain.BatteryParams{
	DeviceId:              domain.DEVICE_ID_EV,
	CapacityWh:            27000,
	ChargingEfficiency:    0.90,
	DischargingEfficiency: 0.95,
	MaxChargePowerW:       7360,
	InitialSoCPercentage:  50,
	MinSoCPercentage:      5,
	MaxSoCPercentage:      100,
}

// AssembledRequest is an optimizer payload plus what it was built from.
type AssembledRequest struct {
	Request    domain.OptimizeRequest
	Start      time.Time
	StartHour  int
	Slots      int
	BatterySoC float64
}

type Assembler struct {
	cfg     config.Config
	load    port.LoadSource
	price   port.PriceSource
	pv      port.PVSource
	battery port.BatterySource
	logger  *zap.Logger
}

func NewAssembler(cfg config.Config, load port.LoadSource, price port.PriceSource, pv port.PVSource,
	battery port.BatterySource, logger *zap.Logger) *Assembler {
	return &Assembler{
		cfg:     cfg,
		load:    load,
		price:   price,
		pv:      pv,
		battery: battery,
		logger:  logger.With(zap.String("service", "assembler")),
	}
}

// Build gathers every series for the horizon starting at the slot that
// contains now. Any source failure is a DataUnavailable and nothing is sent.
func (a *Assembler) Build(ctx context.Context, now time.Time, prevStartSolution []float64) (*AssembledRequest, error) {
	if a.cfg.EOS.Server == "" {
		return nil, domain.ConfigurationError{Key: "eos.server", Reason: "missing"}
	}
	if a.cfg.Battery.CapacityWh <= 0 {
		return nil, domain.ConfigurationError{Key: "battery.capacity_wh", Reason: "missing"}
	}

	res := a.cfg.TimeFrameSeconds
	slots := a.cfg.Horizon()
	start := domain.SlotStart(now, res)

	soc, err := a.battery.BatterySoC(ctx)
	if err != nil {
		return nil, unavailable("battery", err)
	}

	load, err := a.load.LoadForecast(ctx, start, slots, res)
	if err == nil {
		err = checkLen(load, slots)
	}
	if err != nil {
		return nil, unavailable("load", err)
	}

	pv, err := a.pv.PVForecast(ctx, start, slots, res)
	if err == nil {
		err = checkLen(pv, slots)
	}
	if err != nil {
		return nil, unavailable("pv_forecast", err)
	}

	prices, feedIn, err := a.price.PriceForecast(ctx, start, slots, res)
	if err == nil {
		err = errors.Join(checkLen(prices, slots), checkLen(feedIn, slots))
	}
	if err != nil {
		return nil, unavailable("price", err)
	}

	temperature := make([]float64, slots)
	for i := range temperature {
		temperature[i] = DEFAULT_TEMPERATURE_C
	}

	var startSolution []float64
	if len(prevStartSolution) > 1 {
		startSolution = prevStartSolution
	}

	req := domain.OptimizeRequest{
		EMS: domain.EMSParams{
			PVForecastWh:     pv,
			PriceEuroPerWh:   prices,
			FeedInEuroPerWh:  feedIn,
			BatteryEuroPerWh: a.cfg.Battery.PriceEuroPerWhAccu,
			TotalLoadWh:      load,
		},
		PVAkku: domain.BatteryParams{
			DeviceId:              domain.DEVICE_ID_BATTERY,
			CapacityWh:            a.cfg.Battery.CapacityWh,
			ChargingEfficiency:    a.cfg.Battery.ChargeEfficiency,
			DischargingEfficiency: a.cfg.Battery.DischargeEfficiency,
			MaxChargePowerW:       a.cfg.Battery.MaxChargePowerW,
			InitialSoCPercentage:  int(math.Round(soc)),
			MinSoCPercentage:      a.cfg.Battery.MinSoCPercentage,
			MaxSoCPercentage:      a.cfg.Battery.MaxSoCPercentage,
		},
		Inverter: domain.InverterParams{
			DeviceId:   domain.DEVICE_ID_INVERTER,
			MaxPowerWh: a.cfg.Inverter.MaxPVChargeRate,
			BatteryId:  domain.DEVICE_ID_BATTERY,
		},
		EAuto: defaultEAuto,
		Dishwasher: domain.ApplianceParams{
			DeviceId:      domain.DEVICE_ID_APPLIANCE_1,
			ConsumptionWh: oneIfZero(a.cfg.Load.AdditionalLoad1Consumption),
			DurationH:     oneIfZero(a.cfg.Load.AdditionalLoad1RuntimeHours),
		},
		TemperatureForecast: temperature,
		StartSolution:       startSolution,
	}

	a.logger.Debug("assembler@build: request assembled",
		zap.Time("start", start),
		zap.Int("slots", slots),
		zap.Float64("soc", soc))

	return &AssembledRequest{
		Request:    req,
		Start:      start,
		StartHour:  now.Hour(),
		Slots:      slots,
		BatterySoC: soc,
	}, nil
}

func unavailable(source string, err error) error {
	var du domain.DataUnavailable
	if errors.As(err, &du) {
		return du
	}
	return domain.DataUnavailable{Source: source, Err: err}
}

func checkLen(series []float64, slots int) error {
	if len(series) != slots {
		return fmt.Errorf("got %d values, expected %d", len(series), slots)
	}
	return nil
}

func oneIfZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
