package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/core/service"
	. "github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// extra time the background task gets on top of the HTTP timeout, so the
// client reports its own timeout first
const OPTIMIZER_TASK_GRACE = 5 * time.Second

var ErrRunInProgress = errors.New("optimization already running")

type OptimizerActor struct {
	ActorWithStates
	stash     *Stash
	cfg       config.Config
	assembler *service.Assembler
	optimizer port.Optimizer
	runtimes  *service.RuntimeTracker
	clock     func() time.Time

	// previous answer, fed back to speed up the next run
	startSolution []float64

	logger *zap.Logger
}

type optimizationDone struct {
	replyTo       *actor.PID
	response      domain.RunOptimizationResponse
	startSolution []float64
}

func NewOptimizerActor(cfg config.Config, assembler *service.Assembler, optimizer port.Optimizer,
	runtimes *service.RuntimeTracker, clock func() time.Time, logger *zap.Logger) *OptimizerActor {
	if clock == nil {
		clock = cfg.Now
	}
	act := &OptimizerActor{
		cfg:       cfg,
		assembler: assembler,
		optimizer: optimizer,
		runtimes:  runtimes,
		clock:     clock,
		stash:     &Stash{},
		logger:    ActorLogger(domain.ACTOR_ID_OPTIMIZER, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(OptIdleState{actor: act})
	return act
}

func (state *OptimizerActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Idle state

type OptIdleState struct {
	ActorState
	actor *OptimizerActor
}

func (state OptIdleState) Name() string {
	return "idle"
}

func (state OptIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("optimizer@idle started")
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.RunOptimizationRequest:
		state.actor.logger.Debug("optimizer@idle RunOptimizationRequest", zap.String("run_id", msg.RunId))
		replyTo := ForRequest(msg).ReplyTo(ctx)
		state.actor.BecomeStacked(OptRunningState{
			actor: state.actor,
			runId: msg.RunId,
		}.OnEnterAction(ctx, replyTo))
	default:
		state.actor.logger.Debug("optimizer@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Running state

type OptRunningState struct {
	ActorState
	actor *OptimizerActor
	runId string
}

func (state OptRunningState) Name() string {
	return "running"
}

func (state OptRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.RunOptimizationRequest:
		// strictly one run at a time
		state.actor.logger.Warn("optimizer@running: run rejected", zap.String("run_id", msg.RunId), zap.String("running", state.runId))
		ForRequest(msg).Respond(ctx, domain.RunOptimizationResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: ErrRunInProgress},
			RunId:              msg.RunId,
		})
	case optimizationDone:
		if msg.response.HasResponseError() {
			state.actor.logger.Warn("optimizer@running: run failed", zap.String("run_id", state.runId), zap.Error(msg.response.GetResponseError()))
		} else {
			state.actor.logger.Info("optimizer@running: run completed", zap.String("run_id", state.runId),
				zap.Duration("runtime", msg.response.Result.Runtime))
			if len(msg.startSolution) > 0 {
				state.actor.startSolution = msg.startSolution
			}
		}
		RespondTo(ctx, msg.replyTo, msg.response)
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("optimizer@running: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// OnEnterAction starts the run in the background. The actor keeps serving
// health checks while the optimizer computes.
func (state OptRunningState) OnEnterAction(ctx actor.Context, replyTo *actor.PID) OptRunningState {
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	act := state.actor
	runId := state.runId
	prev := append([]float64(nil), act.startSolution...)
	started := act.clock()

	go NewBackgroundTask(ctx, func() (*optimizationDone, error) {
		done := act.run(runId, prev, func(msg any) { RespondToRoot(root, replyTo, msg) })
		done.replyTo = replyTo
		return &done, nil
	}).WithTimeout(act.cfg.EOSTimeout() + OPTIMIZER_TASK_GRACE).Recover(func(err error) optimizationDone {
		return optimizationDone{
			replyTo:  replyTo,
			response: failedRun(runId, taskFailure(err, act.clock().Sub(started) >= act.cfg.EOSTimeout())),
		}
	}).OnSuccess(func(done optimizationDone) {
		root.Send(self, done)
	}).Run()

	return state
}

// run is one full cycle: assemble, announce, call the optimizer, decode.
func (state *OptimizerActor) run(runId string, prevStartSolution []float64, announce func(any)) optimizationDone {
	ctx, cancel := context.WithTimeout(context.Background(), state.cfg.EOSTimeout())
	defer cancel()

	now := state.clock()
	assembled, err := state.assembler.Build(ctx, now, prevStartSolution)
	if err != nil {
		return optimizationDone{response: failedRun(runId, err)}
	}

	requestedAt := state.clock()
	announce(domain.OptimizationRequestSent{
		RunId:   runId,
		Request: assembled.Request,
		At:      requestedAt,
	})
	state.logger.Info("optimizer@running: request sent", zap.String("run_id", runId),
		zap.Time("start", assembled.Start), zap.Int("slots", assembled.Slots))

	raw, resp, err := state.optimizer.Optimize(ctx, assembled.Request, assembled.StartHour)
	if err != nil {
		return optimizationDone{response: failedRun(runId, err)}
	}
	receivedAt := state.clock()

	schedule, err := resp.ToSchedule(assembled.Start, state.cfg.TimeFrameSeconds, assembled.Slots, receivedAt)
	if err != nil {
		return optimizationDone{response: failedRun(runId, err)}
	}

	runtime := receivedAt.Sub(requestedAt)
	state.runtimes.Add(runtime)

	result := &domain.OptimizationResult{
		RunId:                 runId,
		Request:               assembled.Request,
		Response:              *resp,
		RawResponse:           raw,
		Schedule:              schedule,
		BatterySoC:            assembled.BatterySoC,
		RequestedAt:           requestedAt,
		ReceivedAt:            receivedAt,
		Runtime:               runtime,
		HomeApplianceReleased: resp.WashingStart != nil && *resp.WashingStart == assembled.StartHour,
	}
	return optimizationDone{
		response:      domain.RunOptimizationResponse{RunId: runId, Result: result},
		startSolution: resp.StartSolution,
	}
}

func (state *OptimizerActor) respondHealth(ctx actor.Context, stateName string) {
	state.logger.Debug("optimizer@" + stateName + ": ActorHealthRequest")
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_OPTIMIZER,
		Healthy: true,
		State:   stateName,
	})
}

func failedRun(runId string, err error) domain.RunOptimizationResponse {
	return domain.RunOptimizationResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		RunId:              runId,
	}
}

// taskFailure keeps typed errors and classifies the rest, which are
// panics or the task timeout.
func taskFailure(err error, timedOut bool) error {
	var failed domain.OptimizationFailed
	var unavailable domain.DataUnavailable
	if errors.As(err, &failed) || errors.As(err, &unavailable) {
		return err
	}
	if timedOut {
		return domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_TIMEOUT, Err: err}
	}
	return domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_REQUEST, Err: err}
}
