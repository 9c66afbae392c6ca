package source

import (
	"context"
	"time"
)

// defaultLoadProfile is the household load in Wh per hour, two days.
var defaultLoadProfile = [48]float64{
	200, 200, 200, 200, 200, 300, 350, 400, 350, 300, 300, 550,
	450, 400, 300, 300, 400, 450, 500, 500, 500, 400, 300, 200,
	200, 200, 200, 200, 200, 300, 350, 400, 350, 300, 300, 550,
	450, 400, 300, 300, 400, 450, 500, 500, 500, 400, 300, 200,
}

// StaticLoad serves the default profile aligned to the hour of day of
// each slot.
type StaticLoad struct{}

func (StaticLoad) LoadForecast(_ context.Context, start time.Time, slots, resolutionSeconds int) ([]float64, error) {
	out := make([]float64, slots)
	for i := range out {
		ts := start.Add(time.Duration(i*resolutionSeconds) * time.Second)
		day := dayOffset(start, ts)
		hourly := defaultLoadProfile[(day%2)*24+ts.Hour()]
		out[i] = hourly * float64(resolutionSeconds) / 3600
	}
	return out, nil
}

func dayOffset(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
