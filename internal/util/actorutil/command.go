package actorutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/mqtt"
)

const DEFAULT_MQTT_OVERRIDE_DURATION = "02:00"

// ParsedMQTTCommandToCommand maps an MQTT command onto a control actor
// request. A nil request with nil error means the command is not handled.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ControlRequest, error) {
	switch {
	case cmd.Command == mqtt.COMMAND_SELECT && cmd.DeviceId == domain.SELECT_ID_OVERRIDE_MODE:
		if cmd.Payload == domain.SELECT_OPTION_AUTO {
			return domain.SetOverrideRequest{Command: domain.OverrideCommand{Revert: true}}, nil
		}
		mode, err := domain.ModeFromString(cmd.Payload)
		if err != nil {
			return nil, err
		}
		// duration and power come from the number entities
		return domain.SetOverrideRequest{Command: domain.OverrideCommand{Mode: mode}}, nil
	case cmd.Command == mqtt.COMMAND_NUMBER && cmd.DeviceId == domain.INPUT_NUMBER_ID_OVERRIDE_DURATION:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SetOverrideDefaultsRequest{DurationMinutes: &value}, nil
	case cmd.Command == mqtt.COMMAND_NUMBER && cmd.DeviceId == domain.INPUT_NUMBER_ID_OVERRIDE_POWER:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SetOverrideDefaultsRequest{GridChargePowerW: &value}, nil
	case cmd.Command == mqtt.COMMAND_OVERRIDE:
		return overridePayloadToCommand(cmd.Payload)
	}
	return nil, nil
}

func overridePayloadToCommand(payload string) (domain.ControlRequest, error) {
	var body mqtt.OverridePayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return nil, err
	}
	if body.Mode == nil {
		return nil, fmt.Errorf("%w: missing", domain.ErrInvalidMode)
	}
	label := body.Duration
	if label == "" {
		label = DEFAULT_MQTT_OVERRIDE_DURATION
	}
	var duration time.Duration
	if !domain.IsRevertCode(*body.Mode) {
		d, err := domain.ParseOverrideDuration(label)
		if err != nil {
			return nil, err
		}
		duration = d
	}
	command, err := domain.NewOverrideCommand(*body.Mode, duration, body.ChargePowerW)
	if err != nil {
		return nil, err
	}
	return domain.SetOverrideRequest{Command: command}, nil
}
