package actor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.Must(zap.NewDevelopment())
}

func repeatF(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// testResponse is a valid optimizer answer charging from grid in the
// first slot only.
func testResponse(n int, firstACCharge float64) *domain.OptimizeResponse {
	ac := repeatF(0, n)
	ac[0] = firstACCharge
	return &domain.OptimizeResponse{
		ACCharge:         ac,
		DischargeAllowed: domain.FlexFloats(repeatF(1, n)),
		StartSolution:    []float64{1, 2, 3},
		Result: &domain.OptimizeResultSeries{
			SoC:              repeatF(50, n),
			ElectricityPrice: repeatF(0.0003, n),
			Cost:             repeatF(0.1, n),
			Income:           repeatF(0, n),
			GridImportWh:     repeatF(100, n),
			LoadWh:           repeatF(400, n),
		},
	}
}

type stubOptimizer struct {
	mu       sync.Mutex
	resp     *domain.OptimizeResponse
	err      error
	delay    time.Duration
	calls    int
	requests []domain.OptimizeRequest
}

var _ port.Optimizer = (*stubOptimizer)(nil)

func (s *stubOptimizer) Optimize(ctx context.Context, req domain.OptimizeRequest, _ int) (json.RawMessage, *domain.OptimizeResponse, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	resp, err, delay := s.resp, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, nil, domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_TIMEOUT, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, nil, err
	}
	raw, _ := json.Marshal(resp)
	return raw, resp, nil
}

func (s *stubOptimizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubOptimizer) Requests() []domain.OptimizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OptimizeRequest(nil), s.requests...)
}

type recordingDriver struct {
	mu        sync.Mutex
	targets   []domain.ActuationTarget
	err       error
	keepAlive time.Duration
	closed    bool
}

var _ port.InverterDriver = (*recordingDriver)(nil)

func (d *recordingDriver) Name() string {
	return "recording"
}

func (d *recordingDriver) Capabilities() port.DriverCapabilities {
	return port.DriverCapabilities{GridChargeLimit: true, KeepAlive: d.keepAlive}
}

func (d *recordingDriver) Apply(_ context.Context, target domain.ActuationTarget) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.targets = append(d.targets, target)
	return nil
}

func (d *recordingDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *recordingDriver) Targets() []domain.ActuationTarget {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.ActuationTarget(nil), d.targets...)
}

// probe forwards every user message to a channel.
type probe struct {
	ch chan any
}

func (p *probe) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started, *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		p.ch <- ctx.Message()
	}
}

func spawnProbe(t *testing.T, as *actor.ActorSystem) (*actor.PID, chan any) {
	ch := make(chan any, 64)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return &probe{ch: ch} }))
	t.Cleanup(func() { as.Root.Stop(pid) })
	return pid, ch
}

// expectMessage skips other message types until one of type T arrives.
func expectMessage[T any](t *testing.T, ch chan any, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-ch:
			if typed, ok := msg.(T); ok {
				return typed
			}
		case <-deadline:
			var zero T
			require.FailNowf(t, "timeout", "no %T received", zero)
			return zero
		}
	}
}
