package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/service"
	. "github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const CONTROL_ACTUATION_TIMEOUT = INVERTER_TASK_TIMEOUT + 2*time.Second

// ControlActor is the single writer of the schedule, the override and
// the decision. Every control pass resolves from scratch and hands the
// result to the inverter actor.
type ControlActor struct {
	ActorWithStates
	stash          *Stash
	cfg            config.Config
	store          *service.ScheduleStore
	overrides      *service.OverrideManager
	publisher      *service.Publisher
	params         service.ResolverParams
	optimizerActor *actor.PID
	inverterActor  *actor.PID
	scheduler      *scheduler.TimerScheduler
	cancelPass     scheduler.CancelFunc
	clock          func() time.Time
	newRunId       func() string

	ev          *domain.EVChargingSignal
	batterySoC  float64
	decision    domain.ControlDecision
	runInFlight string

	logger *zap.Logger
}

type controlPassTick struct {
}

type runWatchdog struct {
	RunId string
}

func NewControlActor(cfg config.Config, publisher *service.Publisher, overrides *service.OverrideManager,
	optimizerActor, inverterActor *actor.PID, clock func() time.Time, logger *zap.Logger) *ControlActor {
	if clock == nil {
		clock = cfg.Now
	}
	act := &ControlActor{
		cfg:            cfg,
		stash:          &Stash{},
		store:          service.NewScheduleStore(),
		overrides:      overrides,
		publisher:      publisher,
		optimizerActor: optimizerActor,
		inverterActor:  inverterActor,
		clock:          clock,
		newRunId:       uuid.NewString,
		batterySoC:     cfg.Battery.StaticSoC,
		decision:       domain.SafeDecision(clock()),
		params: service.ResolverParams{
			MaxGridChargeRateW: cfg.Inverter.MaxGridChargeRate,
			MaxPVChargeRateW:   cfg.Inverter.MaxPVChargeRate,
			ResolutionSeconds:  cfg.TimeFrameSeconds,
		},
		logger: ActorLogger(domain.ACTOR_ID_CONTROL, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CtlStartingState{actor: act})
	return act
}

func (state *ControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CtlStartingState struct {
	ActorState
	actor *ControlActor
}

func (state CtlStartingState) Name() string {
	return "starting"
}

func (state CtlStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("control@starting started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.publisher.OverrideDefaults(state.actor.overrides.Defaults())

		state.actor.Become(CtlIdleState{actor: state.actor})
		// first run right away, then a safe decision until it arrives
		state.actor.startRun(ctx)
		state.actor.controlPass(ctx, nil)
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Idle state

type CtlIdleState struct {
	ActorState
	actor *ControlActor
}

func (state CtlIdleState) Name() string {
	return "idle"
}

func (state CtlIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting, *actor.Stopping:
		state.actor.stop()
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.GetControlStateRequest:
		state.actor.respondControlState(ctx, msg)
	case domain.TriggerOptimizationRequest:
		state.actor.logger.Debug("control@idle: TriggerOptimizationRequest")
		state.actor.startRun(ctx)
	case domain.OptimizationRequestSent:
		state.actor.onRequestSent(msg)
	case runWatchdog:
		state.actor.onWatchdog(msg)
	case domain.RunOptimizationResponse:
		if state.actor.onRunFinished(msg) {
			state.actor.controlPass(ctx, nil)
		}
	case domain.SetOverrideRequest:
		state.actor.logger.Debug("control@idle: SetOverrideRequest", zap.Bool("revert", msg.Command.Revert), zap.Stringer("mode", msg.Command.Mode))
		replyTo := ForRequest(msg).ReplyTo(ctx)
		if _, err := state.actor.overrides.Set(msg.Command); err != nil {
			state.actor.logger.Warn("control@idle: override rejected", zap.Error(err))
			RespondTo(ctx, replyTo, domain.SetOverrideResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			})
			return
		}
		state.actor.controlPass(ctx, replyTo)
	case domain.SetOverrideDefaultsRequest:
		if err := state.actor.overrides.SetDefaults(msg.DurationMinutes, msg.GridChargePowerW); err != nil {
			state.actor.logger.Warn("control@idle: override defaults rejected", zap.Error(err))
		}
		state.actor.publisher.OverrideDefaults(state.actor.overrides.Defaults())
	case domain.EVChargingSignalUpdate:
		signal := msg.Signal
		state.actor.ev = &signal
		state.actor.publisher.EVSignal(signal)
		state.actor.controlPass(ctx, nil)
	case controlPassTick:
		state.actor.controlPass(ctx, nil)
	default:
		state.actor.logger.Debug("control@idle: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Awaiting actuation state

type CtlAwaitActuationState struct {
	ActorState
	actor    *ControlActor
	decision domain.ControlDecision
	replyTo  *actor.PID
}

func (state CtlAwaitActuationState) Name() string {
	return "actuating"
}

func (state CtlAwaitActuationState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ApplyDecisionResponse:
		if msg.HasResponseError() {
			// retried on the next pass, the decision itself stands
			state.actor.logger.Error("control@actuating: ApplyDecisionResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.actor.logger.Debug("control@actuating: ApplyDecisionResponse", zap.Bool("applied", msg.Applied))
		}
		RespondTo(ctx, state.replyTo, domain.SetOverrideResponse{Decision: state.decision})
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.Name())
	case domain.GetControlStateRequest:
		state.actor.respondControlState(ctx, msg)
	case domain.TriggerOptimizationRequest:
		state.actor.startRun(ctx)
	case domain.OptimizationRequestSent:
		state.actor.onRequestSent(msg)
	default:
		state.actor.logger.Debug("control@actuating: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state CtlAwaitActuationState) OnEnterAction(ctx actor.Context) CtlAwaitActuationState {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.inverterActor,
		domain.ApplyDecisionRequest{Decision: state.decision}, CONTROL_ACTUATION_TIMEOUT),
		func(err error) any {
			return domain.ApplyDecisionResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	return state
}

// Other actor function helpers

// controlPass resolves the decision for now and sends it to the inverter.
// replyTo, when set, receives the resulting decision once actuated.
func (state *ControlActor) controlPass(ctx actor.Context, replyTo *actor.PID) {
	now := state.clock()
	slot, hasSlot := state.store.CurrentSlot(now)
	override := state.overrides.Active(now)

	decision := service.Resolve(service.ResolverInput{
		Slot:       slot,
		HasSlot:    hasSlot,
		Override:   override,
		EV:         state.ev,
		BatterySoC: state.batterySoC,
		Now:        now,
	}, state.params)

	if decision.Mode != state.decision.Mode || decision.Source != state.decision.Source {
		state.logger.Info("control: decision changed",
			zap.Stringer("mode", decision.Mode),
			zap.String("source", string(decision.Source)),
			zap.Float64("ac_charge_w", decision.ACChargeDemandW))
	}
	state.decision = decision
	state.publisher.DecisionResolved(decision, override)
	state.scheduleNextPass(ctx, now, override)

	state.BecomeStacked(CtlAwaitActuationState{
		actor:    state,
		decision: decision,
		replyTo:  replyTo,
	}.OnEnterAction(ctx))
}

// scheduleNextPass wakes the actor at the next slot boundary or when the
// override ends, whichever is first.
func (state *ControlActor) scheduleNextPass(ctx actor.Context, now time.Time, override *domain.Override) {
	if state.cancelPass != nil {
		state.cancelPass()
	}
	next := nextPassAt(now, state.cfg.TimeFrameSeconds, override)
	state.cancelPass = state.scheduler.SendOnce(next.Sub(now), ctx.Self(), controlPassTick{})
}

// nextPassAt is the start of the next slot in now's location, or the
// override end when that comes first.
func nextPassAt(now time.Time, resolutionSeconds int, override *domain.Override) time.Time {
	if resolutionSeconds <= 0 {
		resolutionSeconds = domain.RESOLUTION_HOURLY_SECONDS
	}
	resolution := time.Duration(resolutionSeconds) * time.Second
	next := domain.SlotStart(now, resolutionSeconds).Add(resolution)
	if override != nil && override.EndTime.After(now) && override.EndTime.Before(next) {
		next = override.EndTime
	}
	return next
}

func (state *ControlActor) startRun(ctx actor.Context) {
	if state.runInFlight != "" {
		state.logger.Info("control: optimization skipped, run in flight", zap.String("run_id", state.runInFlight))
		return
	}
	runId := state.newRunId()
	state.runInFlight = runId
	ctx.Request(state.optimizerActor, domain.RunOptimizationRequest{RunId: runId})
	// the optimizer answers every run; this only covers a lost actor
	state.scheduler.SendOnce(state.cfg.EOSTimeout()+2*OPTIMIZER_TASK_GRACE, ctx.Self(), runWatchdog{RunId: runId})
}

func (state *ControlActor) onRequestSent(msg domain.OptimizationRequestSent) {
	if msg.RunId != state.runInFlight {
		return
	}
	state.publisher.RequestSent(msg.RunId, msg.Request, msg.At)
}

// onRunFinished stores a new schedule and reports whether a control pass
// is due. Failed runs keep the previous schedule.
func (state *ControlActor) onRunFinished(msg domain.RunOptimizationResponse) bool {
	if msg.RunId != state.runInFlight {
		state.logger.Debug("control: stale optimization response", zap.String("run_id", msg.RunId))
		return false
	}
	state.runInFlight = ""
	if msg.HasResponseError() || msg.Result == nil {
		err := msg.GetResponseError()
		state.logger.Warn("control: optimization failed, keeping previous schedule", zap.String("run_id", msg.RunId), zap.Error(err))
		state.publisher.OptimizationFailed(msg.RunId, err, state.clock())
		return true
	}
	result := *msg.Result
	state.store.Replace(result.Schedule, result.Request)
	state.batterySoC = result.BatterySoC
	state.publisher.ResponseReceived(result)
	state.logger.Info("control: schedule replaced", zap.String("run_id", msg.RunId),
		zap.Time("start", result.Schedule.Start), zap.Int("slots", result.Schedule.Horizon()))
	return true
}

func (state *ControlActor) onWatchdog(msg runWatchdog) {
	if msg.RunId != state.runInFlight {
		return
	}
	state.logger.Error("control: optimizer never answered", zap.String("run_id", msg.RunId))
	state.runInFlight = ""
	state.publisher.OptimizationFailed(msg.RunId, domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_TIMEOUT}, state.clock())
}

func (state *ControlActor) respondHealth(ctx actor.Context, stateName string) {
	state.logger.Debug("control@" + stateName + ": ActorHealthRequest")
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CONTROL,
		Healthy: true,
		State:   stateName,
	})
}

func (state *ControlActor) respondControlState(ctx actor.Context, msg domain.GetControlStateRequest) {
	ForRequest(msg).Respond(ctx, domain.GetControlStateResponse{
		Decision: state.decision,
		Override: state.overrides.Active(state.clock()),
	})
}

func (state *ControlActor) stop() {
	if state.cancelPass != nil {
		state.cancelPass()
		state.cancelPass = nil
	}
}
