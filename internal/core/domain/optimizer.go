package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	DEVICE_ID_BATTERY     = "battery1"
	DEVICE_ID_INVERTER    = "inverter1"
	DEVICE_ID_EV          = "ev1"
	DEVICE_ID_APPLIANCE_1 = "additional_load_1"
)

// OptimizeRequest is the payload posted to the optimizer.
type OptimizeRequest struct {
	EMS                 EMSParams       `json:"ems"`
	PVAkku              BatteryParams   `json:"pv_akku"`
	Inverter            InverterParams  `json:"inverter"`
	EAuto               BatteryParams   `json:"eauto"`
	Dishwasher          ApplianceParams `json:"dishwasher"`
	TemperatureForecast []float64       `json:"temperature_forecast"`
	StartSolution       []float64       `json:"start_solution"`
}

type EMSParams struct {
	PVForecastWh     []float64 `json:"pv_prognose_wh"`
	PriceEuroPerWh   []float64 `json:"strompreis_euro_pro_wh"`
	FeedInEuroPerWh  []float64 `json:"einspeiseverguetung_euro_pro_wh"`
	BatteryEuroPerWh float64   `json:"preis_euro_pro_wh_akku"`
	TotalLoadWh      []float64 `json:"gesamtlast"`
}

type BatteryParams struct {
	DeviceId              string  `json:"device_id"`
	CapacityWh            float64 `json:"capacity_wh"`
	ChargingEfficiency    float64 `json:"charging_efficiency"`
	DischargingEfficiency float64 `json:"discharging_efficiency"`
	MaxChargePowerW       float64 `json:"max_charge_power_w"`
	InitialSoCPercentage  int     `json:"initial_soc_percentage"`
	MinSoCPercentage      int     `json:"min_soc_percentage"`
	MaxSoCPercentage      int     `json:"max_soc_percentage"`
}

type InverterParams struct {
	DeviceId   string  `json:"device_id"`
	MaxPowerWh float64 `json:"max_power_wh"`
	BatteryId  string  `json:"battery_id"`
}

type ApplianceParams struct {
	DeviceId      string  `json:"device_id"`
	ConsumptionWh float64 `json:"consumption_wh"`
	DurationH     float64 `json:"duration_h"`
}

// OptimizeResultSeries are the projection arrays. The optimizer nests them
// under "result"; a flat layout is accepted as well.
type OptimizeResultSeries struct {
	SoC              []float64 `json:"akku_soc_pro_stunde,omitempty"`
	ElectricityPrice []float64 `json:"Electricity_price,omitempty"`
	Cost             []float64 `json:"Kosten_Euro_pro_Stunde,omitempty"`
	Income           []float64 `json:"Einnahmen_Euro_pro_Stunde,omitempty"`
	GridImportWh     []float64 `json:"Netzbezug_Wh_pro_Stunde,omitempty"`
	LoadWh           []float64 `json:"Last_Wh_pro_Stunde,omitempty"`
}

type OptimizeResponse struct {
	OptimizeResultSeries
	ACCharge         []float64             `json:"ac_charge"`
	DCCharge         []float64             `json:"dc_charge,omitempty"`
	DischargeAllowed FlexFloats            `json:"discharge_allowed"`
	StartSolution    []float64             `json:"start_solution,omitempty"`
	WashingStart     *int                  `json:"washingstart,omitempty"`
	Timestamp        string                `json:"timestamp,omitempty"`
	Result           *OptimizeResultSeries `json:"result,omitempty"`
}

// FlexFloats accepts numbers and booleans.
type FlexFloats []float64

func (f *FlexFloats) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		switch tv := v.(type) {
		case float64:
			out[i] = tv
		case bool:
			if tv {
				out[i] = 1
			}
		default:
			return fmt.Errorf("unexpected element %v", v)
		}
	}
	*f = out
	return nil
}

func (r OptimizeResponse) series() OptimizeResultSeries {
	s := r.OptimizeResultSeries
	if r.Result == nil {
		return s
	}
	pick := func(flat, nested []float64) []float64 {
		if flat != nil {
			return flat
		}
		return nested
	}
	return OptimizeResultSeries{
		SoC:              pick(s.SoC, r.Result.SoC),
		ElectricityPrice: pick(s.ElectricityPrice, r.Result.ElectricityPrice),
		Cost:             pick(s.Cost, r.Result.Cost),
		Income:           pick(s.Income, r.Result.Income),
		GridImportWh:     pick(s.GridImportWh, r.Result.GridImportWh),
		LoadWh:           pick(s.LoadWh, r.Result.LoadWh),
	}
}

// Validate checks every required array is present and horizon long.
func (r OptimizeResponse) Validate(horizon int) error {
	s := r.series()
	required := []struct {
		name   string
		values []float64
	}{
		{"discharge_allowed", r.DischargeAllowed},
		{"ac_charge", r.ACCharge},
		{"akku_soc_pro_stunde", s.SoC},
		{"Electricity_price", s.ElectricityPrice},
		{"Kosten_Euro_pro_Stunde", s.Cost},
		{"Einnahmen_Euro_pro_Stunde", s.Income},
		{"Netzbezug_Wh_pro_Stunde", s.GridImportWh},
		{"Last_Wh_pro_Stunde", s.LoadWh},
	}
	var errs []error
	for _, arr := range required {
		if arr.values == nil {
			errs = append(errs, fmt.Errorf("missing %s", arr.name))
		} else if len(arr.values) != horizon {
			errs = append(errs, fmt.Errorf("%s has %d entries, expected %d", arr.name, len(arr.values), horizon))
		}
	}
	if r.DCCharge != nil && len(r.DCCharge) != horizon {
		errs = append(errs, fmt.Errorf("dc_charge has %d entries, expected %d", len(r.DCCharge), horizon))
	}
	return errors.Join(errs...)
}

// ToSchedule validates the response and turns it into a Schedule starting at start.
func (r OptimizeResponse) ToSchedule(start time.Time, resolutionSeconds, horizon int, receivedAt time.Time) (*Schedule, error) {
	if err := r.Validate(horizon); err != nil {
		return nil, OptimizationFailed{Reason: OPTIMIZATION_FAILED_INVALID, Err: err}
	}
	s := r.series()
	ts := receivedAt
	if r.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			ts = parsed
		}
	}
	slots := make([]ScheduleSlot, horizon)
	for i := range slots {
		slots[i] = ScheduleSlot{
			Start:            start.Add(time.Duration(i*resolutionSeconds) * time.Second),
			DischargeAllowed: r.DischargeAllowed[i] >= 0.5,
			ACChargeFraction: r.ACCharge[i],
			ProjectedSoC:     s.SoC[i],
			PriceEuroPerWh:   s.ElectricityPrice[i],
			CostEuro:         s.Cost[i],
			IncomeEuro:       s.Income[i],
			GridImportWh:     s.GridImportWh[i],
			LoadWh:           s.LoadWh[i],
		}
		if r.DCCharge != nil {
			slots[i].DCChargeFraction = Float64Ptr(r.DCCharge[i])
		}
	}
	return &Schedule{
		Start:             start,
		ResolutionSeconds: resolutionSeconds,
		ResponseTimestamp: ts,
		Slots:             slots,
	}, nil
}

// OptimizationResult is the outcome of one successful optimizer run.
type OptimizationResult struct {
	RunId       string
	Request     OptimizeRequest
	Response    OptimizeResponse
	RawResponse json.RawMessage
	Schedule    *Schedule
	BatterySoC  float64
	RequestedAt time.Time
	ReceivedAt  time.Time
	Runtime     time.Duration
	// HomeApplianceReleased is true when the optimizer scheduled the
	// additional load to start in the current slot.
	HomeApplianceReleased bool
}
