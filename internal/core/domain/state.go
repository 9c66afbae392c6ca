package domain

import "time"

type RequestState string

const (
	REQUEST_STATE_IDLE     RequestState = "idle"
	REQUEST_STATE_SENT     RequestState = "request send"
	REQUEST_STATE_RECEIVED RequestState = "response received"
	REQUEST_STATE_FAILED   RequestState = "request failed"
)

// OptimizationState tells consumers whether the published schedule is
// fresh, stale or errored.
type OptimizationState struct {
	RequestState          RequestState `json:"request_state"`
	LastRequestTimestamp  *time.Time   `json:"last_request_timestamp"`
	LastResponseTimestamp *time.Time   `json:"last_response_timestamp"`
	NextRun               *time.Time   `json:"next_run"`
	LastError             string       `json:"last_error"`
	LastErrorTimestamp    *time.Time   `json:"last_error_timestamp"`
	RunId                 string       `json:"run_id"`
}
