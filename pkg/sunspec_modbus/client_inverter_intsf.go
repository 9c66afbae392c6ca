package sunspec_modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type InverterIntSFModbusReader struct {
	ModbusClient

	logger        *zap.Logger
	blocks        inverterIntSFModbusBlocks
	ignoreFronius bool
}

func (inv *InverterIntSFModbusReader) Open() error {
	if err := inv.client.Open(); err != nil {
		return err
	}
	if err := inv.survey(); err != nil {
		return err
	}
	return nil
}

func (inv InverterIntSFModbusReader) Close() error {
	return inv.client.Close()
}

func (inv InverterIntSFModbusReader) Validate() error {
	// check manufacturer
	if !inv.ignoreFronius {
		str, err := inv.readString(inv.blocks.common+2, 32)
		if err != nil {
			return err
		}
		if str != "Fronius" {
			return errors.New("could not find a Fronius inverter")
		}
	}
	return nil
}

func (inv InverterIntSFModbusReader) GetInfo() (*InverterInfo, error) {
	manufacturer, err := inv.readString(inv.blocks.common+2, 32)
	if err != nil {
		return nil, err
	}
	model, err := inv.readString(inv.blocks.common+18, 32)
	if err != nil {
		return nil, err
	}
	version, err := inv.readString(inv.blocks.common+42, 16)
	if err != nil {
		return nil, err
	}
	serial, err := inv.readString(inv.blocks.common+50, 32)
	if err != nil {
		return nil, err
	}

	pow, err := inv.readRegister(inv.blocks.inverter+82, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	powSF, err := inv.readRegister(inv.blocks.inverter+102, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	hasStorage, err := inv.HasStorage()
	if err != nil {
		return nil, err
	}

	return &InverterInfo{
		Manufacturer:      manufacturer,
		Model:             model,
		Version:           version,
		Serial:            serial,
		MaxRatedPowerWatt: uint32(applySF(pow, powSF)),
		HasStorage:        hasStorage,
	}, nil
}

func debugLoggerInstrumentation(logger *zap.Logger) ModbusInstrument {
	return ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Duration("took", readTime))
		},
	}
}

func CreateInverterIntSFModbusReader(ip string, port uint, inverterAddress uint8, timeout time.Duration,
	ignoreFronius bool, logger *zap.Logger, instrumentation *ModbusInstrument) (InverterModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	inverterLogger := logger.With(zap.String("target", "inverter"), zap.Uint8("unit_id", inverterAddress))

	// instrumentation
	inst := []ModbusInstrument{debugLoggerInstrumentation(inverterLogger)}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	// set inverter address
	if inverterAddress > 0 {
		err = client.SetUnitId(inverterAddress)
		if err != nil {
			return nil, err
		}
	}

	// create reader instance
	fron := InverterIntSFModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger:        inverterLogger,
		ignoreFronius: ignoreFronius,
	}
	return &fron, nil
}
