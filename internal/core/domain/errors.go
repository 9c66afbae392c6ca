package domain

import (
	"fmt"
)

const (
	OPTIMIZATION_FAILED_TIMEOUT     = "Request timed out"
	OPTIMIZATION_FAILED_INVALID     = "invalid response"
	OPTIMIZATION_FAILED_UNREACHABLE = "server unreachable"
	OPTIMIZATION_FAILED_REQUEST     = "request failed"
)

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// DataUnavailable aborts one cycle; the previous schedule stays in place.
type DataUnavailable struct {
	Source string
	Err    error
}

func (e DataUnavailable) Error() string {
	return fmt.Sprintf("data unavailable from %s: %v", e.Source, e.Err)
}

func (e DataUnavailable) Unwrap() error {
	return e.Err
}

// OptimizationFailed is returned by the optimizer client instead of a schedule.
type OptimizationFailed struct {
	Reason string
	Err    error
}

func (e OptimizationFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("optimization failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("optimization failed: %s", e.Reason)
}

func (e OptimizationFailed) Unwrap() error {
	return e.Err
}

// ActuationFailed is logged and otherwise ignored by the control loop.
type ActuationFailed struct {
	Driver string
	Err    error
}

func (e ActuationFailed) Error() string {
	return fmt.Sprintf("actuation failed on %s: %v", e.Driver, e.Err)
}

func (e ActuationFailed) Unwrap() error {
	return e.Err
}
