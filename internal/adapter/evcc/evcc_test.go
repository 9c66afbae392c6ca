package evcc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func stateServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, STATE_PATH, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStateFlatLayout(t *testing.T) {
	server := stateServer(t, `{"batterySoc": 63, "pvPower": 4200,
		"loadpoints": [{"charging": true, "mode": "pv", "chargePower": 3700}, {"charging": false, "mode": "now"}]}`)

	state, err := NewClient(server.URL+"/", testLogger()).State(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Signal.Charging)
	assert.Equal(t, domain.EV_CHARGE_MODE_PV, state.Signal.Mode)
	assert.Equal(t, 3700.0, state.Signal.CurrentDrawW)
	assert.Equal(t, 4200.0, state.Signal.PVAvailableW)
	require.NotNil(t, state.BatterySoC)
	assert.Equal(t, 63.0, *state.BatterySoC)
}

func TestStateResultLayout(t *testing.T) {
	server := stateServer(t, `{"result": {"loadpoints": [{"charging": false, "mode": "minpv"}]}}`)

	state, err := NewClient(server.URL, testLogger()).State(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Signal.Charging)
	assert.Equal(t, domain.EV_CHARGE_MODE_MIN_PV, state.Signal.Mode)
	assert.Nil(t, state.BatterySoC)
}

func TestStateUnknownModeIsOff(t *testing.T) {
	server := stateServer(t, `{"loadpoints": [{"charging": true, "mode": "turbo"}]}`)

	state, err := NewClient(server.URL, testLogger()).State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.EV_CHARGE_MODE_OFF, state.Signal.Mode)
}

func TestStateNoLoadpoints(t *testing.T) {
	server := stateServer(t, `{"batterySoc": 10}`)

	state, err := NewClient(server.URL, testLogger()).State(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Signal.Charging)
	assert.Equal(t, domain.EV_CHARGE_MODE_OFF, state.Signal.Mode)
}

func TestStateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, testLogger()).State(context.Background())
	assert.ErrorContains(t, err, "502")
}

func TestBatteryModeDriver(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	driver := NewBatteryModeDriver(server.URL, testLogger())
	assert.Equal(t, "evcc", driver.Name())
	assert.False(t, driver.Capabilities().GridChargeLimit)

	for _, mode := range domain.Modes() {
		require.NoError(t, driver.Apply(context.Background(), domain.ActuationTarget{Mode: mode}))
	}
	assert.Equal(t, []string{
		"/api/batterymode/charge",
		"/api/batterymode/hold",
		"/api/batterymode/normal",
		"/api/batterymode/hold",
		"/api/batterymode/normal",
		"/api/batterymode/normal",
	}, paths)

	assert.ErrorIs(t, driver.Apply(context.Background(), domain.ActuationTarget{Mode: domain.ModeInvalid}), domain.ErrInvalidMode)
}

func TestBatteryModeDriverHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewBatteryModeDriver(server.URL, testLogger()).Apply(context.Background(), domain.ActuationTarget{Mode: domain.ModeChargeFromGrid})
	assert.ErrorContains(t, err, "401")
}
