package evcc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/util/httputil"

	"go.uber.org/zap"
)

const (
	BATTERY_MODE_PATH   = "/api/batterymode/"
	BATTERY_MODE_CHARGE = "charge"
	BATTERY_MODE_HOLD   = "hold"
	BATTERY_MODE_NORMAL = "normal"
)

// BatteryModeDriver sets the EVCC external battery mode. It cannot
// enforce charge rates.
type BatteryModeDriver struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ port.InverterDriver = (*BatteryModeDriver)(nil)

func NewBatteryModeDriver(baseURL string, logger *zap.Logger) *BatteryModeDriver {
	return &BatteryModeDriver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httputil.HTTPClient(DEFAULT_HTTP_TIMEOUT),
		logger:  logger.With(zap.String("driver", "evcc")),
	}
}

func (d *BatteryModeDriver) Name() string {
	return "evcc"
}

func (d *BatteryModeDriver) Capabilities() port.DriverCapabilities {
	return port.DriverCapabilities{}
}

func BatteryModeFor(mode domain.Mode) (string, error) {
	switch mode {
	case domain.ModeChargeFromGrid:
		return BATTERY_MODE_CHARGE, nil
	case domain.ModeAvoidDischarge, domain.ModeAvoidDischargeEVCCFast:
		return BATTERY_MODE_HOLD, nil
	case domain.ModeDischargeAllowed, domain.ModeDischargeAllowedEVCCPV, domain.ModeDischargeAllowedEVCCMinPV:
		return BATTERY_MODE_NORMAL, nil
	default:
		return "", fmt.Errorf("%w: %d", domain.ErrInvalidMode, mode.Code())
	}
}

func (d *BatteryModeDriver) Apply(ctx context.Context, target domain.ActuationTarget) error {
	batteryMode, err := BatteryModeFor(target.Mode)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+BATTERY_MODE_PATH+batteryMode, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("evcc batterymode %s: status %d", batteryMode, resp.StatusCode)
	}
	d.logger.Debug("evcc: battery mode set", zap.String("mode", batteryMode))
	return nil
}

func (d *BatteryModeDriver) Close() error {
	return nil
}
