package sunspec_modbus

import (
	"errors"
	"sync"
)

// FakeInverterModbusReader records storage commands instead of writing
// registers. Fail makes every call return an error.
type FakeInverterModbusReader struct {
	mu       sync.Mutex
	SoC      float64
	Fail     bool
	opened   bool
	commands []StorageControlParams
	disabled int
}

var errFakeUnreachable = errors.New("fake inverter unreachable")

func NewFakeInverterModbusReader(soc float64) *FakeInverterModbusReader {
	return &FakeInverterModbusReader{SoC: soc}
}

func (inv *FakeInverterModbusReader) Open() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.Fail {
		return errFakeUnreachable
	}
	inv.opened = true
	return nil
}

func (inv *FakeInverterModbusReader) Close() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.opened = false
	return nil
}

func (inv *FakeInverterModbusReader) Validate() error {
	return nil
}

func (inv *FakeInverterModbusReader) GetInfo() (*InverterInfo, error) {
	return &InverterInfo{
		Manufacturer:      "Fronius",
		Model:             "Symo GEN24 10.0 Plus",
		Version:           "1.30.7-1",
		Serial:            "12345678",
		MaxRatedPowerWatt: 10000,
		HasStorage:        true,
	}, nil
}

func (inv *FakeInverterModbusReader) HasStorage() (bool, error) {
	return true, nil
}

func (inv *FakeInverterModbusReader) SetStorageControl(params StorageControlParams) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.Fail {
		return errFakeUnreachable
	}
	inv.commands = append(inv.commands, params)
	return nil
}

func (inv *FakeInverterModbusReader) SetStorageForceChargePower(watts uint16, revertTimeSeconds int32) error {
	params := NoStorageLimits(uint32(revertTimeSeconds))
	params.MinChargePowerWatt = int32(watts)
	return inv.SetStorageControl(params)
}

func (inv *FakeInverterModbusReader) DisableStorageControl() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.Fail {
		return errFakeUnreachable
	}
	inv.disabled++
	return nil
}

func (inv *FakeInverterModbusReader) GetStorageState() (*StorageState, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.Fail {
		return nil, errFakeUnreachable
	}
	return &StorageState{
		StateOfCharge:       inv.SoC,
		MaxCapacityWatt:     10000,
		CurrentCapacityWatt: uint32(inv.SoC * 100),
		ChargeStatus:        StorageChargeStatusHolding,
		ChargeStatusStr:     StorageChargeStatusHoldingStr,
	}, nil
}

func (inv *FakeInverterModbusReader) SetFail(fail bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.Fail = fail
}

// Commands returns the storage commands written so far.
func (inv *FakeInverterModbusReader) Commands() []StorageControlParams {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]StorageControlParams(nil), inv.commands...)
}

func (inv *FakeInverterModbusReader) DisabledCount() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.disabled
}

func (inv *FakeInverterModbusReader) Opened() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.opened
}
