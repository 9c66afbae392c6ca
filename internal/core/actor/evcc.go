package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	. "github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const EVCC_POLL_TIMEOUT = 5 * time.Second

// EVCCActor polls the charger state and tells target whenever the
// charging state changes.
type EVCCActor struct {
	ActorWithStates
	client     port.EVCCClient
	interval   time.Duration
	target     *actor.PID
	last       *domain.EVChargingSignal
	failures   int
	scheduler  *scheduler.TimerScheduler
	cancelPoll scheduler.CancelFunc

	logger *zap.Logger
}

type evccPollTick struct {
}

type evccPollResult struct {
	State *domain.EVCCState
	Error error
}

func NewEVCCActor(client port.EVCCClient, interval time.Duration, target *actor.PID, logger *zap.Logger) *EVCCActor {
	act := &EVCCActor{
		client:   client,
		interval: interval,
		target:   target,
		logger:   ActorLogger(domain.ACTOR_ID_EVCC, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(EVCCPollingState{actor: act})
	return act
}

func (state *EVCCActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

type EVCCPollingState struct {
	ActorState
	actor *EVCCActor
}

func (state EVCCPollingState) Name() string {
	return "polling"
}

func (state EVCCPollingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("evcc@polling started", zap.Duration("interval", state.actor.interval))
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), evccPollTick{})
		state.actor.cancelPoll = state.actor.scheduler.SendRepeatedly(state.actor.interval, state.actor.interval, ctx.Self(), evccPollTick{})
	case *actor.Restarting, *actor.Stopping:
		if state.actor.cancelPoll != nil {
			state.actor.cancelPoll()
		}
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("evcc@polling: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_EVCC,
			Healthy: true,
			State:   state.Name(),
		})
	case evccPollTick:
		NewBackgroundTaskNoError(ctx, func() *evccPollResult {
			pollCtx, cancel := context.WithTimeout(context.Background(), EVCC_POLL_TIMEOUT)
			defer cancel()
			s, err := state.actor.client.State(pollCtx)
			return &evccPollResult{State: s, Error: err}
		}).WithTimeout(2 * EVCC_POLL_TIMEOUT).Recover(func(err error) evccPollResult {
			return evccPollResult{Error: err}
		}).PipeTo(ctx.Self())
	case evccPollResult:
		state.actor.handlePoll(ctx, msg)
	default:
		state.actor.logger.Debug("evcc@polling: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// handlePoll keeps the last known signal on errors. Only changes of the
// charging state are forwarded.
func (state *EVCCActor) handlePoll(ctx actor.Context, res evccPollResult) {
	if res.Error != nil || res.State == nil {
		state.failures++
		// warn once per outage
		if state.failures == 1 {
			state.logger.Warn("evcc@polling: poll failed", zap.Error(res.Error))
		} else {
			state.logger.Debug("evcc@polling: poll failed", zap.Int("failures", state.failures), zap.Error(res.Error))
		}
		return
	}
	if state.failures > 0 {
		state.logger.Info("evcc@polling: poll recovered", zap.Int("failures", state.failures))
		state.failures = 0
	}
	signal := res.State.Signal
	if state.last != nil && state.last.SameState(signal) {
		return
	}
	state.logger.Info("evcc@polling: charging state changed", zap.Bool("charging", signal.Charging), zap.String("mode", string(signal.Mode)))
	state.last = &signal
	ctx.Send(state.target, domain.EVChargingSignalUpdate{Signal: signal})
}
