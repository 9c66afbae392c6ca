package evcc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/util/httputil"

	"go.uber.org/zap"
)

const (
	STATE_PATH           = "/api/state"
	DEFAULT_HTTP_TIMEOUT = 5 * time.Second
)

type loadpoint struct {
	Charging    bool    `json:"charging"`
	Mode        string  `json:"mode"`
	ChargePower float64 `json:"chargePower"`
}

type siteState struct {
	Loadpoints []loadpoint `json:"loadpoints"`
	BatterySoC *float64    `json:"batterySoc"`
	PVPower    float64     `json:"pvPower"`
}

// stateResponse covers both layouts: older releases wrap the site state
// in "result".
type stateResponse struct {
	siteState
	Result *siteState `json:"result"`
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ port.EVCCClient = (*Client)(nil)

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httputil.HTTPClient(DEFAULT_HTTP_TIMEOUT),
		logger:  logger.With(zap.String("adapter", "evcc")),
	}
}

func (c *Client) State(ctx context.Context) (*domain.EVCCState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+STATE_PATH, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("evcc state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("evcc state: status %d", resp.StatusCode)
	}

	var body stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("evcc state: %w", err)
	}
	site := body.siteState
	if body.Result != nil {
		site = *body.Result
	}
	return siteToState(site), nil
}

func siteToState(site siteState) *domain.EVCCState {
	signal := domain.EVChargingSignal{
		Mode:         domain.EV_CHARGE_MODE_OFF,
		PVAvailableW: site.PVPower,
	}
	// only the first loadpoint drives the battery
	if len(site.Loadpoints) > 0 {
		lp := site.Loadpoints[0]
		signal.Charging = lp.Charging
		signal.CurrentDrawW = lp.ChargePower
		if mode := domain.EVChargeMode(lp.Mode); mode.Valid() {
			signal.Mode = mode
		}
	}
	return &domain.EVCCState{
		Signal:     signal,
		BatterySoC: site.BatterySoC,
	}
}
