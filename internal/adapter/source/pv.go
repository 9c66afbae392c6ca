package source

import (
	"context"
	"math"
	"time"
)

const (
	pvSunrise = 6.0
	pvSunset  = 20.0
)

type PVInstallation struct {
	Name       string
	PeakPowerW float64
}

// StaticPV approximates each installation with a sine shaped day between
// sunrise and sunset. Installations are summed per slot.
type StaticPV struct {
	Installations []PVInstallation
}

func (s StaticPV) PVForecast(_ context.Context, start time.Time, slots, resolutionSeconds int) ([]float64, error) {
	out := make([]float64, slots)
	step := time.Duration(resolutionSeconds) * time.Second
	for i := range out {
		// sample the slot midpoint
		ts := start.Add(time.Duration(i)*step + step/2)
		factor := daylightFactor(ts)
		for _, inst := range s.Installations {
			out[i] += inst.PeakPowerW * factor * step.Hours()
		}
	}
	return out, nil
}

func daylightFactor(ts time.Time) float64 {
	h := float64(ts.Hour()) + float64(ts.Minute())/60
	if h <= pvSunrise || h >= pvSunset {
		return 0
	}
	return math.Sin(math.Pi * (h - pvSunrise) / (pvSunset - pvSunrise))
}
