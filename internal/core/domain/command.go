package domain

import "fmt"

// ControlRequest is any request served by the control actor.
type ControlRequest interface {
	ActorRequest
	ControlCommand() string
}

type ControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ControlRequestMixIn) ControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// SetOverrideRequest sets or reverts the manual override. The reply is
// a SetOverrideResponse sent once the resulting decision was actuated.
type SetOverrideRequest struct {
	ControlRequestMixIn
	Command OverrideCommand
}

type SetOverrideResponse struct {
	ActorResponseMixIn
	Decision ControlDecision
}

// SetOverrideDefaultsRequest updates the duration and power used by the
// next override coming from a mode selector without explicit parameters.
type SetOverrideDefaultsRequest struct {
	ControlRequestMixIn
	DurationMinutes  *float64
	GridChargePowerW *float64
}

type GetControlStateRequest struct {
	ControlRequestMixIn
}

type GetControlStateResponse struct {
	ActorResponseMixIn
	Decision ControlDecision
	Override *Override
}

// TriggerOptimizationRequest forces an optimization run outside the schedule.
type TriggerOptimizationRequest struct {
	ControlRequestMixIn
}

// ensure interface compliance
var _ ControlRequest = (*SetOverrideRequest)(nil)
var _ ControlRequest = (*SetOverrideDefaultsRequest)(nil)
var _ ControlRequest = (*GetControlStateRequest)(nil)
var _ ControlRequest = (*TriggerOptimizationRequest)(nil)
