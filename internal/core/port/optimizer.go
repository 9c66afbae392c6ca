package port

import (
	"context"
	"encoding/json"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
)

type Optimizer interface {
	// Optimize posts the request and returns the raw and decoded answer.
	// Failures are domain.OptimizationFailed.
	Optimize(ctx context.Context, req domain.OptimizeRequest, startHour int) (json.RawMessage, *domain.OptimizeResponse, error)
}

// Series sources return horizon long slices aligned to start.

type LoadSource interface {
	LoadForecast(ctx context.Context, start time.Time, slots, resolutionSeconds int) ([]float64, error)
}

type PriceSource interface {
	// PriceForecast returns grid prices and feed-in remuneration, both EUR/Wh.
	PriceForecast(ctx context.Context, start time.Time, slots, resolutionSeconds int) ([]float64, []float64, error)
}

type PVSource interface {
	PVForecast(ctx context.Context, start time.Time, slots, resolutionSeconds int) ([]float64, error)
}

type BatterySource interface {
	BatterySoC(ctx context.Context) (float64, error)
}

type EVCCClient interface {
	State(ctx context.Context) (*domain.EVCCState, error)
}
