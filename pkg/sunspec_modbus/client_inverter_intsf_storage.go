package sunspec_modbus

import (
	"errors"
	"math"

	"github.com/simonvetter/modbus"
)

var ErrNoStorageBlock = errors.New("sunspec: storage block not supported")

func (inv InverterIntSFModbusReader) HasStorage() (bool, error) {
	if inv.blocks.status == 0 {
		return inv.blocks.storage > 0, nil
	}
	storageConn, err := inv.readRegister(inv.blocks.status+3, modbus.HOLDING_REGISTER)
	if err != nil {
		return false, err
	}
	// check storage connected
	if storageConn&0x0001 == 0 {
		return false, nil
	}
	// check valid sunspec storage
	return inv.blocks.storage > 0, nil
}

func (inv InverterIntSFModbusReader) setStorageChargeControl(rates StorageRates, rvrtTimeSeconds int32) error {

	if inv.blocks.storage == 0 {
		return ErrNoStorageBlock
	}

	inoutSF, err := inv.readRegister(inv.blocks.storage+25, modbus.HOLDING_REGISTER)
	if err != nil {
		return err
	}
	control := uint16(0)
	if rates.ControlDischarge {
		control = control | 0x02
	}
	if rates.ControlCharge {
		control = control | 0x01
	}

	outWRte := int16(applySFfloat64Inv(rates.OutWRtePercent, inoutSF))
	inWRte := int16(applySFfloat64Inv(rates.InWRtePercent, inoutSF))

	err = inv.writeRegisters(inv.blocks.storage+12, []uint16{uint16(outWRte), uint16(inWRte)})
	if err != nil {
		return err
	}
	err = inv.writeRegister(inv.blocks.storage+5, control)
	if err != nil {
		return err
	}
	if rvrtTimeSeconds >= 0 {
		err = inv.writeRegister(inv.blocks.storage+15, uint16(rvrtTimeSeconds))
		if err != nil {
			return err
		}
	}
	return nil
}

// StorageRates are the model 124 OutWRte/InWRte percentages and the
// StorCtl_Mod bits derived from watt limits.
type StorageRates struct {
	OutWRtePercent   float64
	InWRtePercent    float64
	ControlDischarge bool
	ControlCharge    bool
}

// ComputeStorageRates converts watt limits into percentages of the
// storage max charge rate (WChaMax). A negative percentage in the
// opposite direction forces charge or discharge.
func ComputeStorageRates(params StorageControlParams, maxChargeRateW float64) StorageRates {
	rates := StorageRates{OutWRtePercent: 100, InWRtePercent: 100}
	if maxChargeRateW <= 0 {
		return rates
	}
	if params.MinChargePowerWatt >= 0 {
		rates.OutWRtePercent = -(float64(params.MinChargePowerWatt) / maxChargeRateW) * 100
		rates.ControlDischarge = true
	}
	if params.MaxChargePowerWatt >= 0 {
		rates.InWRtePercent = (float64(params.MaxChargePowerWatt) / maxChargeRateW) * 100
		rates.ControlCharge = true
	}
	if params.MinDischargePowerWatt >= 0 {
		rates.InWRtePercent = -(float64(params.MinDischargePowerWatt) / maxChargeRateW) * 100
		rates.ControlCharge = true
	}
	if params.MaxDischargePowerWatt >= 0 {
		rates.OutWRtePercent = (float64(params.MaxDischargePowerWatt) / maxChargeRateW) * 100
		rates.ControlDischarge = true
	}
	return rates
}

func (inv InverterIntSFModbusReader) SetStorageControl(params StorageControlParams) error {

	maxChargeRate, err := inv.getStorageMaxChargeRate()
	if err != nil {
		return err
	}
	if maxChargeRate <= 0 {
		return errors.New("sunspec: storage reports no max charge rate")
	}
	return inv.setStorageChargeControl(ComputeStorageRates(params, maxChargeRate), int32(params.RevertTimeSeconds))
}

func (inv InverterIntSFModbusReader) DisableStorageControl() error {
	return inv.setStorageChargeControl(StorageRates{OutWRtePercent: 100, InWRtePercent: 100}, -1)
}

func (inv InverterIntSFModbusReader) SetStorageForceChargePower(watts uint16, revertTimeSeconds int32) error {
	params := NoStorageLimits(uint32(revertTimeSeconds))
	params.MinChargePowerWatt = int32(watts)
	return inv.SetStorageControl(params)
}

func (inv InverterIntSFModbusReader) GetStorageState() (*StorageState, error) {
	if inv.blocks.storage == 0 {
		return nil, ErrNoStorageBlock
	}
	regs, err := inv.readRegisters(inv.blocks.storage+2, 24, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return storageStateFromRegisters(regs), nil
}

// storageStateFromRegisters decodes 24 registers starting at WChaMax.
func storageStateFromRegisters(regs []uint16) *StorageState {
	soc := applySF(regs[6], regs[20])
	// if state == off, soc = 0
	if regs[9] == StorageChargeStatusOff {
		soc = 0
	}
	maxCap := applySF(regs[0], regs[17])

	return &StorageState{
		StateOfCharge:       soc,
		MaxCapacityWatt:     uint32(math.Round(maxCap)),
		CurrentCapacityWatt: uint32(math.Round(soc / 100 * maxCap)),
		ChargeStatus:        regs[9],
		ChargeStatusStr:     StorageChargeStatusToString(regs[9]),
	}
}

func (inv InverterIntSFModbusReader) getStorageMaxChargeRate() (float64, error) {

	if inv.blocks.storage == 0 {
		return 0, ErrNoStorageBlock
	}

	wChaMax, err := inv.readRegister(inv.blocks.storage+2, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	wChaMaxSF, err := inv.readRegister(inv.blocks.storage+18, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	return applySF(wChaMax, wChaMaxSF), nil
}
