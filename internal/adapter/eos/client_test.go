package eos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const twoSlotResponse = `{
	"ac_charge": [0.5, 0],
	"dc_charge": [1, 1],
	"discharge_allowed": [0, 1],
	"start_solution": [1, 2, 3],
	"result": {
		"akku_soc_pro_stunde": [50, 60],
		"Electricity_price": [0.0003, 0.0002],
		"Kosten_Euro_pro_Stunde": [0.1, 0],
		"Einnahmen_Euro_pro_Stunde": [0, 0.05],
		"Netzbezug_Wh_pro_Stunde": [800, 0],
		"Last_Wh_pro_Stunde": [400, 300]
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger, _ := zap.NewDevelopment()
	return NewClient(server.URL, 0, timeout, logger)
}

func TestOptimizeSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, OPTIMIZE_PATH, r.URL.Path)
		assert.Equal(t, "14", r.URL.Query().Get("start_hour"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req domain.OptimizeRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, 10000.0, req.PVAkku.CapacityWh)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(twoSlotResponse))
	}, time.Second)

	raw, resp, err := client.Optimize(context.Background(), domain.OptimizeRequest{
		PVAkku: domain.BatteryParams{CapacityWh: 10000},
	}, 14)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.JSONEq(t, twoSlotResponse, string(raw))
	assert.Equal(t, []float64{0.5, 0}, resp.ACCharge)

	start := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	schedule, err := resp.ToSchedule(start, 3600, 2, start)
	require.NoError(t, err)
	assert.Equal(t, 2, schedule.Horizon())
	assert.True(t, schedule.Slots[1].DischargeAllowed)
}

func TestOptimizeTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)

	_, _, err := client.Optimize(context.Background(), domain.OptimizeRequest{}, 0)
	var failed domain.OptimizationFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, domain.OPTIMIZATION_FAILED_TIMEOUT, failed.Reason)
}

func TestOptimizeContextDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := client.Optimize(ctx, domain.OptimizeRequest{}, 0)
	var failed domain.OptimizationFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, domain.OPTIMIZATION_FAILED_TIMEOUT, failed.Reason)
}

func TestOptimizeServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, time.Second)

	_, _, err := client.Optimize(context.Background(), domain.OptimizeRequest{}, 0)
	var failed domain.OptimizationFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, domain.OPTIMIZATION_FAILED_REQUEST, failed.Reason)
	assert.Contains(t, err.Error(), "500")
}

func TestOptimizeInvalidBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}, time.Second)

	_, _, err := client.Optimize(context.Background(), domain.OptimizeRequest{}, 0)
	var failed domain.OptimizationFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, domain.OPTIMIZATION_FAILED_INVALID, failed.Reason)
}

func TestOptimizeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(url, 0, time.Second, logger)
	_, _, err := client.Optimize(context.Background(), domain.OptimizeRequest{}, 0)
	var failed domain.OptimizationFailed
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, domain.OPTIMIZATION_FAILED_UNREACHABLE, failed.Reason)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://eos.local:8503", BaseURL("eos.local", 8503))
	assert.Equal(t, "https://eos.example.com", BaseURL("https://eos.example.com/", 8503))
}
