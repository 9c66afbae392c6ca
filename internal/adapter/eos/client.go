package eos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"
	"github.com/berfenger/eosconnect/internal/core/port"
	"github.com/berfenger/eosconnect/internal/util/httputil"

	"go.uber.org/zap"
)

const OPTIMIZE_PATH = "/optimize"

// Client talks to the EOS optimize endpoint.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ port.Optimizer = (*Client)(nil)

func NewClient(server string, serverPort uint, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: BaseURL(server, serverPort),
		client:  httputil.HTTPClient(timeout),
		logger:  logger.With(zap.String("adapter", "eos")),
	}
}

// BaseURL accepts a bare host or a full URL for server.
func BaseURL(server string, serverPort uint) string {
	if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
		return strings.TrimSuffix(server, "/")
	}
	return fmt.Sprintf("http://%s:%d", server, serverPort)
}

func (c *Client) Optimize(ctx context.Context, request domain.OptimizeRequest, startHour int) (json.RawMessage, *domain.OptimizeResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, nil, domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_REQUEST, Err: err}
	}

	u, err := url.Parse(c.baseURL + OPTIMIZE_PATH)
	if err != nil {
		return nil, nil, domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_REQUEST, Err: err}
	}
	q := u.Query()
	q.Set("start_hour", strconv.Itoa(startHour))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, nil, domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_REQUEST, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("eos: optimize request", zap.String("url", u.String()), zap.Int("bytes", len(body)))
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, domain.OptimizationFailed{
			Reason: domain.OPTIMIZATION_FAILED_REQUEST,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200)),
		}
	}

	var decoded domain.OptimizeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_INVALID, Err: err}
	}
	c.logger.Debug("eos: optimize response", zap.Duration("elapsed", time.Since(start)), zap.Int("bytes", len(raw)))
	return json.RawMessage(raw), &decoded, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_TIMEOUT, Err: err}
	}
	return domain.OptimizationFailed{Reason: domain.OPTIMIZATION_FAILED_UNREACHABLE, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
