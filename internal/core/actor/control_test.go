package actor

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/adapter/eos"
	"github.com/berfenger/eosconnect/internal/adapter/source"
	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/core/service"
	"github.com/berfenger/eosconnect/internal/util"
	"github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controlFixture struct {
	as        *actor.ActorSystem
	pid       *actor.PID
	publisher *service.Publisher
	driver    *recordingDriver
}

func newControlFixture(t *testing.T, opt port.Optimizer, tweaks ...func(*config.Config)) *controlFixture {
	cfg := util.LoadTestConfig()
	for _, tweak := range tweaks {
		tweak(&cfg)
	}
	logger := testLogger()
	as := actorutil.NewActorSystemWithZapLogger(logger)
	t.Cleanup(as.Shutdown)

	sources, err := source.FromConfig(cfg, nil, nil)
	require.NoError(t, err)
	assembler := service.NewAssembler(cfg, sources.Load, sources.Price, sources.PV, sources.Battery, logger)
	optPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewOptimizerActor(cfg, assembler, opt, service.NewRuntimeTracker(), nil, logger)
	}))

	driver := &recordingDriver{}
	invPID := spawnInverter(t, as, driver)

	publisher := service.NewPublisher(cfg.TimeFrameSeconds, cfg.Inverter.MaxGridChargeRate, nil, nil)
	overrides := service.NewOverrideManager(cfg.Inverter.MaxGridChargeRate, nil, logger)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(cfg, publisher, overrides, optPID, invPID, nil, logger)
	}))
	return &controlFixture{as: as, pid: pid, publisher: publisher, driver: driver}
}

func (f *controlFixture) eventuallyMode(t *testing.T, mode domain.Mode) {
	t.Helper()
	require.Eventually(t, func() bool {
		d, ok := f.publisher.Decision()
		return ok && d.Mode == mode
	}, 3*time.Second, 20*time.Millisecond, "mode %s never resolved", mode)
}

func TestControlAppliesScheduleAfterFirstRun(t *testing.T) {
	f := newControlFixture(t, &stubOptimizer{resp: testResponse(48, 0.5)})

	f.eventuallyMode(t, domain.ModeChargeFromGrid)
	d, _ := f.publisher.Decision()
	assert.InDelta(t, 2500.0, d.ACChargeDemandW, 0.001)
	assert.Equal(t, domain.DECISION_SOURCE_SCHEDULE, d.Source)
	assert.Equal(t, domain.REQUEST_STATE_RECEIVED, f.publisher.State().RequestState)

	require.Eventually(t, func() bool {
		targets := f.driver.Targets()
		return len(targets) > 0 && targets[len(targets)-1].Mode == domain.ModeChargeFromGrid
	}, 3*time.Second, 20*time.Millisecond)

	_, ok := f.publisher.OptimizeRequestDocument().(domain.OptimizeRequest)
	assert.True(t, ok)
}

func TestControlOverrideAndRevert(t *testing.T) {
	f := newControlFixture(t, &stubOptimizer{resp: testResponse(48, 0)})
	f.eventuallyMode(t, domain.ModeDischargeAllowed)

	res, err := f.as.Root.RequestFuture(f.pid, domain.SetOverrideRequest{
		Command: domain.OverrideCommand{Mode: domain.ModeChargeFromGrid, Duration: 30 * time.Minute, GridChargePowerW: 1500},
	}, 3*time.Second).Result()
	require.NoError(t, err)
	resp := res.(domain.SetOverrideResponse)
	require.False(t, resp.HasResponseError())
	assert.Equal(t, domain.ModeChargeFromGrid, resp.Decision.Mode)
	assert.Equal(t, 1500.0, resp.Decision.ACChargeDemandW)
	assert.True(t, resp.Decision.OverrideActive)
	require.NotNil(t, resp.Decision.OverrideEndTime)

	res, err = f.as.Root.RequestFuture(f.pid, domain.GetControlStateRequest{}, time.Second).Result()
	require.NoError(t, err)
	st := res.(domain.GetControlStateResponse)
	require.NotNil(t, st.Override)
	assert.Equal(t, domain.ModeChargeFromGrid, st.Override.Mode)

	res, err = f.as.Root.RequestFuture(f.pid, domain.SetOverrideRequest{
		Command: domain.OverrideCommand{Revert: true},
	}, 3*time.Second).Result()
	require.NoError(t, err)
	resp = res.(domain.SetOverrideResponse)
	assert.Equal(t, domain.ModeDischargeAllowed, resp.Decision.Mode)
	assert.False(t, resp.Decision.OverrideActive)
}

func TestControlRejectsInvalidOverride(t *testing.T) {
	f := newControlFixture(t, &stubOptimizer{resp: testResponse(48, 0)})

	res, err := f.as.Root.RequestFuture(f.pid, domain.SetOverrideRequest{
		Command: domain.OverrideCommand{Mode: domain.ModeInvalid},
	}, 3*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(t, res.(domain.SetOverrideResponse).GetResponseError(), domain.ErrInvalidMode)
}

func TestControlEVSignalTakesPrecedence(t *testing.T) {
	f := newControlFixture(t, &stubOptimizer{resp: testResponse(48, 0.5)})
	f.eventuallyMode(t, domain.ModeChargeFromGrid)

	f.as.Root.Send(f.pid, domain.EVChargingSignalUpdate{
		Signal: domain.EVChargingSignal{Charging: true, Mode: domain.EV_CHARGE_MODE_PV},
	})
	f.eventuallyMode(t, domain.ModeDischargeAllowedEVCCPV)

	d, _ := f.publisher.Decision()
	assert.Equal(t, domain.DECISION_SOURCE_EVCC, d.Source)
	assert.True(t, d.DischargeAllowed)
	assert.True(t, f.publisher.ControlsDocument().EVCC.ChargingState)
}

func TestControlFailedRunKeepsSafeDecision(t *testing.T) {
	f := newControlFixture(t, &stubOptimizer{err: domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_UNREACHABLE, Err: errors.New("refused")}})

	require.Eventually(t, func() bool {
		return f.publisher.State().RequestState == domain.REQUEST_STATE_FAILED
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, domain.OPTIMIZATION_FAILED_UNREACHABLE, f.publisher.State().LastError)

	d, ok := f.publisher.Decision()
	require.True(t, ok)
	assert.Equal(t, domain.ModeAvoidDischarge, d.Mode)
	assert.Equal(t, map[string]string{"status": service.STATUS_AWAITING}, f.publisher.OptimizeResponseDocument())
}

func TestControlSkipsTriggerWhileRunning(t *testing.T) {
	opt := &stubOptimizer{resp: testResponse(48, 0), delay: 300 * time.Millisecond}
	f := newControlFixture(t, opt)

	// the start run is still in flight
	f.as.Root.Send(f.pid, domain.TriggerOptimizationRequest{})
	f.as.Root.Send(f.pid, domain.TriggerOptimizationRequest{})
	f.eventuallyMode(t, domain.ModeDischargeAllowed)
	assert.Equal(t, 1, opt.Calls())

	f.as.Root.Send(f.pid, domain.TriggerOptimizationRequest{})
	require.Eventually(t, func() bool { return opt.Calls() == 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestControlTimeoutKeepsPreviousDecision(t *testing.T) {
	good, err := json.Marshal(testResponse(48, 0.6))
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Write(good)
			return
		}
		// later runs outlast the client timeout
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	eosPort, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	client := eos.NewClient(u.Hostname(), uint(eosPort), time.Second, testLogger())

	f := newControlFixture(t, client, func(cfg *config.Config) {
		cfg.EOS.TimeoutSeconds = 1
	})
	f.eventuallyMode(t, domain.ModeChargeFromGrid)
	before, _ := f.publisher.Decision()
	assert.InDelta(t, 3000.0, before.ACChargeDemandW, 0.001)

	f.as.Root.Send(f.pid, domain.TriggerOptimizationRequest{})
	require.Eventually(t, func() bool {
		return f.publisher.State().RequestState == domain.REQUEST_STATE_FAILED
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, domain.OPTIMIZATION_FAILED_TIMEOUT, f.publisher.State().LastError)

	// a pass after the failure still resolves against the stored schedule
	res, err := f.as.Root.RequestFuture(f.pid, domain.GetControlStateRequest{}, time.Second).Result()
	require.NoError(t, err)
	after := res.(domain.GetControlStateResponse).Decision
	assert.Equal(t, domain.ModeChargeFromGrid, after.Mode)
	assert.Equal(t, before.ACChargeDemandW, after.ACChargeDemandW)
	assert.EqualValues(t, 2, calls.Load())
}

func TestNextPassAtLocalSlotBoundary(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+30*60)
	now := time.Date(2026, 3, 1, 10, 10, 0, 0, kolkata)

	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, kolkata), nextPassAt(now, domain.RESOLUTION_HOURLY_SECONDS, nil))
	assert.Equal(t, time.Date(2026, 3, 1, 10, 15, 0, 0, kolkata), nextPassAt(now, domain.RESOLUTION_QUARTER_SECONDS, nil))

	end := time.Date(2026, 3, 1, 10, 40, 0, 0, kolkata)
	override := &domain.Override{Mode: domain.ModeAvoidDischarge, EndTime: end}
	assert.Equal(t, end, nextPassAt(now, domain.RESOLUTION_HOURLY_SECONDS, override), "override end comes first")
}
