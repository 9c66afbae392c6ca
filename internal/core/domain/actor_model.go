package domain

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CONTROL      = "control"
	ACTOR_ID_OPTIMIZER    = "optimizer"
	ACTOR_ID_INVERTER     = "inverter"
	ACTOR_ID_EVCC         = "evcc"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// Optimizer actor

type RunOptimizationRequest struct {
	ActorRequestMixIn
	RunId string
}

// OptimizationRequestSent is told to the requester right before the
// payload goes out, so the request document is visible while waiting.
type OptimizationRequestSent struct {
	RunId   string
	Request OptimizeRequest
	At      time.Time
}

type RunOptimizationResponse struct {
	ActorResponseMixIn
	RunId  string
	Result *OptimizationResult
}

// Inverter actor

type ApplyDecisionRequest struct {
	ActorRequestMixIn
	Decision ControlDecision
}

type ApplyDecisionResponse struct {
	ActorResponseMixIn
	Applied bool
}

// EVCC actor

type EVChargingSignalUpdate struct {
	Signal EVChargingSignal
}

// MQTT actor

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Selects      []GenericSelect
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}
