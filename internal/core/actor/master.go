package actor

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	adactor "github.com/berfenger/eosconnect/internal/adapter/actor"
	"github.com/berfenger/eosconnect/internal/config"
	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/core/service"
	. "github.com/berfenger/eosconnect/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const HEALTH_CHECK_TIMEOUT = 1 * time.Second

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// MasterDeps is everything the children are built from. EVCC may be nil,
// which disables the charger poller.
type MasterDeps struct {
	Publisher         *service.Publisher
	Overrides         *service.OverrideManager
	Assembler         *service.Assembler
	Optimizer         port.Optimizer
	Runtimes          *service.RuntimeTracker
	Actuator          *service.Actuator
	EVCC              port.EVCCClient
	EventStream       *eventstream.EventStream
	MQTTActorProvider MQTTActorProvider
}

type MasterOfPuppetsActor struct {
	config   config.Config
	deps     MasterDeps
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	optimizerActor     *actor.PID
	inverterActor      *actor.PID
	controlActor       *actor.PID
	evccActor          *actor.PID
	mqttActor          *actor.PID
	logger             *zap.Logger
}

type healthCheckResult struct {
	expected  int
	healthy   map[string]bool
	states    map[string]string
	respondTo *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, deps MasterDeps, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:   config,
		deps:     deps,
		behavior: actor.NewBehavior(),
		stash:    &Stash{},
		logger:   ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	if act.deps.EventStream == nil {
		act.deps.EventStream = &eventstream.EventStream{}
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset(0, nil)

		optimizerActorPID, err := state.startOptimizerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.optimizerActor = optimizerActorPID

		inverterActorPID, err := state.startInverterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.inverterActor = inverterActorPID

		controlActorPID, err := state.startControlActor(ctx)
		if err != nil {
			panic(err)
		}
		state.controlActor = controlActorPID

		if state.deps.EVCC != nil {
			evccActorPID, err := state.startEVCCActor(ctx)
			if err != nil {
				panic(err)
			}
			state.evccActor = evccActorPID
		}

		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		if state.config.MQTT.Enabled && state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		children := state.healthChecked()
		state.currentHealthCheck.reset(len(children), ctx.Sender())
		for id, pid := range children {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, HEALTH_CHECK_TIMEOUT/2), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(HEALTH_CHECK_TIMEOUT)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Error(err))
			} else if cmd != nil {
				ctx.Send(state.controlActor, cmd)
			}
		}
	case domain.ControlRequest:
		// requests from the HTTP side keep their sender
		ctx.Forward(state.controlActor)
	case *actor.Terminated:
		// if some actor fails for good, terminate
		if state.controlActor != nil && msg.Who.Id == state.controlActor.Id {
			state.logger.Error("master@default control terminated")
			panic(errors.New("control terminated"))
		}
	default:
		state.logger.Debug("master@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		state.currentHealthCheck.states[msg.Id] = msg.State
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) healthChecked() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_OPTIMIZER: state.optimizerActor,
		domain.ACTOR_ID_INVERTER:  state.inverterActor,
		domain.ACTOR_ID_CONTROL:   state.controlActor,
		domain.ACTOR_ID_MQTT:      state.mqttActor,
	}
	if state.evccActor != nil {
		children[domain.ACTOR_ID_EVCC] = state.evccActor
	}
	return children
}

func restartDecider(reason interface{}) actor.Directive {
	log.Printf("handling failure for child. reason: %v", reason)
	return actor.RestartDirective
}

func (state *MasterOfPuppetsActor) startOptimizerActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewOptimizerActor(state.config, state.deps.Assembler, state.deps.Optimizer, state.deps.Runtimes, nil, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_OPTIMIZER)
}

func (state *MasterOfPuppetsActor) startInverterActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(state.deps.Actuator, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_INVERTER)
}

func (state *MasterOfPuppetsActor) startControlActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(state.config, state.deps.Publisher, state.deps.Overrides,
			state.optimizerActor, state.inverterActor, nil, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_CONTROL)
}

func (state *MasterOfPuppetsActor) startEVCCActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	interval := time.Duration(state.config.EVCC.PollIntervalSeconds) * time.Second
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewEVCCActor(state.deps.EVCC, interval, state.controlActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_EVCC)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.deps.MQTTActorProvider(state.deps.EventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_MQTT)
}

func (state *healthCheckResult) reset(expected int, respondTo *actor.PID) {
	state.expected = expected
	state.healthy = map[string]bool{}
	state.states = map[string]string{}
	state.respondTo = respondTo
}

func (state *healthCheckResult) allReceived() bool {
	return len(state.healthy) >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.expected {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

// summary is "control=idle inverter=idle ..." sorted by actor id.
func (state *healthCheckResult) summary() string {
	ids := make([]string, 0, len(state.healthy))
	for id := range state.healthy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		s := state.states[id]
		if !state.healthy[id] {
			s = "unhealthy"
		}
		parts = append(parts, id+"="+s)
	}
	return strings.Join(parts, " ")
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   state.summary(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
