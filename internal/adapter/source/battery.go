package source

import (
	"context"
	"errors"
	"math"

	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/pkg/sunspec_modbus"
)

type StaticBattery struct {
	SoC float64
}

func (s StaticBattery) BatterySoC(context.Context) (float64, error) {
	return s.SoC, nil
}

var ErrNoBatterySoC = errors.New("evcc state carries no battery soc")

type EVCCBattery struct {
	Client port.EVCCClient
}

func (s EVCCBattery) BatterySoC(ctx context.Context) (float64, error) {
	state, err := s.Client.State(ctx)
	if err != nil {
		return 0, err
	}
	if state.BatterySoC == nil {
		return 0, ErrNoBatterySoC
	}
	return clampSoC(*state.BatterySoC), nil
}

// SunSpecBattery reads model 124 ChaState through the session shared
// with the inverter driver.
type SunSpecBattery struct {
	session *sunspec_modbus.Session
}

func NewSunSpecBattery(session *sunspec_modbus.Session) *SunSpecBattery {
	return &SunSpecBattery{session: session}
}

func (s *SunSpecBattery) BatterySoC(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var soc float64
	err := s.session.Do(func(reader sunspec_modbus.InverterModbusReader) error {
		state, err := reader.GetStorageState()
		if err != nil {
			return err
		}
		soc = state.StateOfCharge
		return nil
	})
	if err != nil {
		return 0, err
	}
	return clampSoC(soc), nil
}

func clampSoC(soc float64) float64 {
	return math.Max(0, math.Min(soc, 100))
}
