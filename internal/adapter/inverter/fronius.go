package inverter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/pkg/sunspec_modbus"

	"go.uber.org/zap"
)

type StorageCommandKind int

const (
	STORAGE_COMMAND_FORCE_CHARGE StorageCommandKind = iota
	STORAGE_COMMAND_LIMIT
	STORAGE_COMMAND_DISABLE
)

// StorageCommand is what one actuation writes to the model 124 block.
type StorageCommand struct {
	Kind        StorageCommandKind
	ChargePower uint16
	Params      sunspec_modbus.StorageControlParams
}

func StorageCommandFor(target domain.ActuationTarget, revertTimeSeconds uint32) (StorageCommand, error) {
	switch target.Mode {
	case domain.ModeChargeFromGrid:
		return StorageCommand{
			Kind:        STORAGE_COMMAND_FORCE_CHARGE,
			ChargePower: toWatts(target.ACChargeDemandW),
		}, nil
	case domain.ModeAvoidDischarge, domain.ModeAvoidDischargeEVCCFast:
		params := sunspec_modbus.NoStorageLimits(revertTimeSeconds)
		params.MaxDischargePowerWatt = 0
		return StorageCommand{Kind: STORAGE_COMMAND_LIMIT, Params: params}, nil
	case domain.ModeDischargeAllowed, domain.ModeDischargeAllowedEVCCPV, domain.ModeDischargeAllowedEVCCMinPV:
		if !target.DCKnown {
			return StorageCommand{Kind: STORAGE_COMMAND_DISABLE}, nil
		}
		params := sunspec_modbus.NoStorageLimits(revertTimeSeconds)
		params.MaxChargePowerWatt = int32(toWatts(target.DCChargeDemandW))
		return StorageCommand{Kind: STORAGE_COMMAND_LIMIT, Params: params}, nil
	default:
		return StorageCommand{}, fmt.Errorf("%w: %d", domain.ErrInvalidMode, target.Mode.Code())
	}
}

func toWatts(w float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(w, math.MaxUint16))))
}

// FroniusDriver controls a Gen24 battery over SunSpec Modbus. Every
// command is reverted by the inverter after revertTimeSeconds.
type FroniusDriver struct {
	session           *sunspec_modbus.Session
	revertTimeSeconds uint32
	logger            *zap.Logger
}

var _ port.InverterDriver = (*FroniusDriver)(nil)

func NewFroniusDriver(session *sunspec_modbus.Session, revertTimeSeconds uint32, logger *zap.Logger) *FroniusDriver {
	return &FroniusDriver{
		session:           session,
		revertTimeSeconds: revertTimeSeconds,
		logger:            logger.With(zap.String("driver", "fronius_gen24")),
	}
}

func (d *FroniusDriver) Name() string {
	return "fronius_gen24"
}

func (d *FroniusDriver) Capabilities() port.DriverCapabilities {
	caps := port.DriverCapabilities{
		GridChargeLimit: true,
		PVChargeLimit:   true,
	}
	if d.revertTimeSeconds > 0 {
		caps.KeepAlive = time.Duration(d.revertTimeSeconds) * time.Second / 2
	}
	return caps
}

func (d *FroniusDriver) Apply(ctx context.Context, target domain.ActuationTarget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd, err := StorageCommandFor(target, d.revertTimeSeconds)
	if err != nil {
		return err
	}
	return d.session.Do(func(reader sunspec_modbus.InverterModbusReader) error {
		switch cmd.Kind {
		case STORAGE_COMMAND_FORCE_CHARGE:
			d.logger.Debug("fronius: force charge", zap.Uint16("watts", cmd.ChargePower))
			return reader.SetStorageForceChargePower(cmd.ChargePower, int32(d.revertTimeSeconds))
		case STORAGE_COMMAND_LIMIT:
			d.logger.Debug("fronius: storage limits", zap.Any("params", cmd.Params))
			return reader.SetStorageControl(cmd.Params)
		default:
			d.logger.Debug("fronius: storage control disabled")
			return reader.DisableStorageControl()
		}
	})
}

// Close hands the battery back to the inverter's own logic.
func (d *FroniusDriver) Close() error {
	err := d.session.Do(func(reader sunspec_modbus.InverterModbusReader) error {
		return reader.DisableStorageControl()
	})
	if err != nil {
		d.logger.Warn("fronius: could not disable storage control", zap.Error(err))
	}
	return d.session.Close()
}
