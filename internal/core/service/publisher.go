package service

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/events"

	"github.com/carlmjohnson/versioninfo"
)

const (
	API_VERSION        = "0.0.1"
	STATUS_AWAITING    = "Awaiting first optimization run"
	STATUS_FIELD_NAME  = "status"
	TIMESTAMP_FIELD    = "timestamp"
	DEFAULT_EVCC_STATE = "off"
)

// EventPublisher is satisfied by *eventstream.EventStream.
type EventPublisher interface {
	Publish(evt any)
}

type CurrentStatesDocument struct {
	ACChargeDemand   float64    `json:"current_ac_charge_demand"`
	DCChargeDemand   *float64   `json:"current_dc_charge_demand"`
	DischargeAllowed bool       `json:"current_discharge_allowed"`
	InverterMode     string     `json:"inverter_mode"`
	InverterModeNum  int        `json:"inverter_mode_num"`
	OverrideActive   bool       `json:"override_active"`
	OverrideEndTime  *time.Time `json:"override_end_time"`
}

type EVCCDocument struct {
	ChargingState bool   `json:"charging_state"`
	ChargingMode  string `json:"charging_mode"`
}

type BatteryDocument struct {
	SoC               float64 `json:"soc"`
	MaxGridChargeRate float64 `json:"max_grid_charge_rate"`
}

type ControlsDocument struct {
	CurrentStates CurrentStatesDocument    `json:"current_states"`
	EVCC          EVCCDocument             `json:"evcc"`
	Battery       BatteryDocument          `json:"battery"`
	State         domain.OptimizationState `json:"state"`
	TimeFrameBase int                      `json:"time_frame_base"`
	Version       string                   `json:"eos_connect_version"`
	Timestamp     time.Time                `json:"timestamp"`
	APIVersion    string                   `json:"api_version"`
}

// Publisher keeps the externally visible snapshot. Writers are the control
// actor and the optimization trigger; HTTP handlers read concurrently.
type Publisher struct {
	mu sync.RWMutex

	state      domain.OptimizationState
	request    *domain.OptimizeRequest
	response   json.RawMessage
	receivedAt time.Time
	decision   *domain.ControlDecision
	ev         domain.EVChargingSignal

	timeFrameBase     int
	maxGridChargeRate float64
	events            EventPublisher
	clock             func() time.Time
}

func NewPublisher(timeFrameBase int, maxGridChargeRate float64, bus EventPublisher, clock func() time.Time) *Publisher {
	if clock == nil {
		clock = time.Now
	}
	return &Publisher{
		state:             domain.OptimizationState{RequestState: domain.REQUEST_STATE_IDLE},
		ev:                domain.EVChargingSignal{Mode: DEFAULT_EVCC_STATE},
		timeFrameBase:     timeFrameBase,
		maxGridChargeRate: maxGridChargeRate,
		events:            bus,
		clock:             clock,
	}
}

func (p *Publisher) RequestSent(runId string, request domain.OptimizeRequest, at time.Time) {
	p.mu.Lock()
	p.state.RequestState = domain.REQUEST_STATE_SENT
	p.state.RunId = runId
	p.state.LastRequestTimestamp = &at
	p.request = &request
	state := p.state
	p.mu.Unlock()

	p.publish(events.OptimizationStateToUpdateEvents(state))
}

func (p *Publisher) ResponseReceived(result domain.OptimizationResult) {
	receivedAt := result.ReceivedAt
	p.mu.Lock()
	p.state.RequestState = domain.REQUEST_STATE_RECEIVED
	p.state.RunId = result.RunId
	p.state.LastResponseTimestamp = &receivedAt
	p.state.LastError = ""
	p.response = result.RawResponse
	p.receivedAt = receivedAt
	state := p.state
	p.mu.Unlock()

	p.publish(events.OptimizationStateToUpdateEvents(state))
	p.publish(events.HomeApplianceToUpdateEvents(result.HomeApplianceReleased))
}

// OptimizationFailed records the failure; the previous documents stay.
func (p *Publisher) OptimizationFailed(runId string, err error, at time.Time) {
	p.mu.Lock()
	p.state.RequestState = domain.REQUEST_STATE_FAILED
	p.state.RunId = runId
	p.state.LastError = failureReason(err)
	p.state.LastErrorTimestamp = &at
	state := p.state
	p.mu.Unlock()

	p.publish(events.OptimizationStateToUpdateEvents(state))
}

func (p *Publisher) DecisionResolved(decision domain.ControlDecision, override *domain.Override) {
	p.mu.Lock()
	p.decision = &decision
	p.mu.Unlock()

	p.publish(events.DecisionToUpdateEvents(decision, override))
}

func (p *Publisher) EVSignal(signal domain.EVChargingSignal) {
	p.mu.Lock()
	p.ev = signal
	p.mu.Unlock()
}

func (p *Publisher) NextRun(t time.Time) {
	p.mu.Lock()
	p.state.NextRun = &t
	state := p.state
	p.mu.Unlock()

	p.publish(events.OptimizationStateToUpdateEvents(state))
}

func (p *Publisher) OverrideDefaults(duration time.Duration, gridChargePowerW float64) {
	p.publish(events.OverrideDefaultsToUpdateEvents(duration, gridChargePowerW))
}

func (p *Publisher) State() domain.OptimizationState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Publisher) Decision() (domain.ControlDecision, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.decision == nil {
		return domain.ControlDecision{}, false
	}
	return *p.decision, true
}

func (p *Publisher) OptimizeRequestDocument() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.request == nil {
		return map[string]string{STATUS_FIELD_NAME: STATUS_AWAITING}
	}
	return *p.request
}

// OptimizeResponseDocument is the raw optimizer answer, stamped with the
// receive time when the optimizer did not send one.
func (p *Publisher) OptimizeResponseDocument() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.response == nil {
		return map[string]string{STATUS_FIELD_NAME: STATUS_AWAITING}
	}
	var doc map[string]any
	if err := json.Unmarshal(p.response, &doc); err != nil || doc == nil {
		return map[string]string{STATUS_FIELD_NAME: STATUS_AWAITING}
	}
	if _, ok := doc[TIMESTAMP_FIELD]; !ok {
		doc[TIMESTAMP_FIELD] = p.receivedAt.Format(time.RFC3339)
	}
	return doc
}

func (p *Publisher) ControlsDocument() ControlsDocument {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.clock()
	decision := domain.SafeDecision(now)
	if p.decision != nil {
		decision = *p.decision
	}
	return ControlsDocument{
		CurrentStates: CurrentStatesDocument{
			ACChargeDemand:   decision.ACChargeDemandW,
			DCChargeDemand:   decision.DCChargeDemandW,
			DischargeAllowed: decision.DischargeAllowed,
			InverterMode:     decision.Mode.String(),
			InverterModeNum:  decision.Mode.Code(),
			OverrideActive:   decision.OverrideActive,
			OverrideEndTime:  decision.OverrideEndTime,
		},
		EVCC: EVCCDocument{
			ChargingState: p.ev.Charging,
			ChargingMode:  string(p.ev.Mode),
		},
		Battery: BatteryDocument{
			SoC:               decision.BatterySoC,
			MaxGridChargeRate: p.maxGridChargeRate,
		},
		State:         p.state,
		TimeFrameBase: p.timeFrameBase,
		Version:       versioninfo.Short(),
		Timestamp:     now,
		APIVersion:    API_VERSION,
	}
}

func (p *Publisher) publish(evs []any) {
	if p.events == nil {
		return
	}
	for _, ev := range evs {
		p.events.Publish(ev)
	}
}

func failureReason(err error) string {
	var failed domain.OptimizationFailed
	if errors.As(err, &failed) {
		return failed.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
