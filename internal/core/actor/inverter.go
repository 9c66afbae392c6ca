package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/service"
	. "github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	INVERTER_WRITE_TIMEOUT = 5 * time.Second
	// the task outlives the write context so the driver sees its own deadline
	INVERTER_TASK_TIMEOUT = 10 * time.Second
)

// InverterActor owns the actuator and with it every hardware write.
type InverterActor struct {
	ActorWithStates
	actuator        *service.Actuator
	scheduler       *scheduler.TimerScheduler
	cancelKeepAlive scheduler.CancelFunc

	logger *zap.Logger
}

type keepAliveTick struct {
}

type keepAliveResult struct {
	Error error
}

func NewInverterActor(actuator *service.Actuator, logger *zap.Logger) *InverterActor {
	act := &InverterActor{
		actuator: actuator,
		logger:   ActorLogger(domain.ACTOR_ID_INVERTER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(InvIdleState{actor: act})
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type InvIdleState struct {
	ActorState
	actor *InverterActor
}

func (state InvIdleState) Name() string {
	return "idle"
}

func (state InvIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("inverter@idle started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		if keepAlive := state.actor.actuator.Capabilities().KeepAlive; keepAlive > 0 {
			state.actor.cancelKeepAlive = state.actor.scheduler.SendRepeatedly(keepAlive, keepAlive, ctx.Self(), keepAliveTick{})
		}
	case *actor.Restarting, *actor.Stopping:
		state.actor.stop()
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("inverter@idle: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_INVERTER,
			Healthy: true,
			State:   state.Name(),
		})
	case domain.ApplyDecisionRequest:
		state.actor.logger.Debug("inverter@idle: ApplyDecisionRequest", zap.Stringer("mode", msg.Decision.Mode))
		state.actor.apply(ctx, msg)
	case keepAliveTick:
		state.actor.refresh(ctx)
	case keepAliveResult:
		if msg.Error != nil {
			state.actor.logger.Warn("inverter@idle: keepalive failed", zap.Error(msg.Error))
		}
	default:
		state.actor.logger.Debug("inverter@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// apply runs the write synchronously; the mailbox queues further requests.
func (state *InverterActor) apply(ctx actor.Context, req domain.ApplyDecisionRequest) {
	replyTo := ForRequest(req).ReplyTo(ctx)
	NewBackgroundTask(ctx, func() (*domain.ApplyDecisionResponse, error) {
		writeCtx, cancel := context.WithTimeout(context.Background(), INVERTER_WRITE_TIMEOUT)
		defer cancel()
		applied, err := state.actuator.Apply(writeCtx, req.Decision)
		return &domain.ApplyDecisionResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			Applied:            applied,
		}, nil
	}).WithTimeout(INVERTER_TASK_TIMEOUT).Recover(func(err error) domain.ApplyDecisionResponse {
		return domain.ApplyDecisionResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ActuationFailed{Driver: "inverter", Err: err}},
		}
	}).OnSuccess(func(resp domain.ApplyDecisionResponse) {
		if resp.HasResponseError() {
			state.logger.Error("inverter@idle: apply failed", zap.Error(resp.GetResponseError()))
		}
		RespondTo(ctx, replyTo, resp)
	}).Run()
}

func (state *InverterActor) refresh(ctx actor.Context) {
	NewBackgroundTaskNoError(ctx, func() *keepAliveResult {
		writeCtx, cancel := context.WithTimeout(context.Background(), INVERTER_WRITE_TIMEOUT)
		defer cancel()
		return &keepAliveResult{Error: state.actuator.Refresh(writeCtx)}
	}).WithTimeout(INVERTER_TASK_TIMEOUT).Recover(func(err error) keepAliveResult {
		return keepAliveResult{Error: err}
	}).PipeTo(ctx.Self())
}

func (state *InverterActor) stop() {
	if state.cancelKeepAlive != nil {
		state.cancelKeepAlive()
		state.cancelKeepAlive = nil
	}
	if err := state.actuator.Close(); err != nil {
		state.logger.Warn("inverter: close failed", zap.Error(err))
	}
}
