package source

import (
	"context"
	"fmt"
	"time"
)

const (
	DEFAULT_PRICE_EURO_PER_WH = 0.0001
	// ct/kWh => EUR/Wh
	CENT_PER_KWH_TO_EURO_PER_WH = 1.0 / 100000
)

// StaticPrice repeats a 24 value hourly table across the horizon. An
// empty table means the flat default price.
type StaticPrice struct {
	HourlyEuroPerWh     []float64
	FeedInEuroPerWh     float64
	NegativePriceSwitch bool
}

func NewDefaultPrice(feedInCentPerKWh float64, negativePriceSwitch bool) StaticPrice {
	return StaticPrice{
		FeedInEuroPerWh:     feedInCentPerKWh * CENT_PER_KWH_TO_EURO_PER_WH,
		NegativePriceSwitch: negativePriceSwitch,
	}
}

func NewFixed24hPrice(centPerKWh []float64, feedInCentPerKWh float64, negativePriceSwitch bool) (StaticPrice, error) {
	if len(centPerKWh) != 24 {
		return StaticPrice{}, fmt.Errorf("fixed price table must have 24 entries, got %d", len(centPerKWh))
	}
	hourly := make([]float64, 24)
	for i, ct := range centPerKWh {
		hourly[i] = ct * CENT_PER_KWH_TO_EURO_PER_WH
	}
	p := NewDefaultPrice(feedInCentPerKWh, negativePriceSwitch)
	p.HourlyEuroPerWh = hourly
	return p, nil
}

func (s StaticPrice) PriceForecast(_ context.Context, start time.Time, slots, resolutionSeconds int) ([]float64, []float64, error) {
	prices := make([]float64, slots)
	feedIn := make([]float64, slots)
	for i := range prices {
		ts := start.Add(time.Duration(i*resolutionSeconds) * time.Second)
		if len(s.HourlyEuroPerWh) == 24 {
			prices[i] = s.HourlyEuroPerWh[ts.Hour()]
		} else {
			prices[i] = DEFAULT_PRICE_EURO_PER_WH
		}
		feedIn[i] = s.FeedInEuroPerWh
		if s.NegativePriceSwitch && prices[i] < 0 {
			feedIn[i] = 0
		}
	}
	return prices, feedIn, nil
}
