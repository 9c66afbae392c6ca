package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// overrides wait for the actuation behind them
const OVERRIDE_REQUEST_TIMEOUT = 20 * time.Second

type overrideBody struct {
	Mode            *int    `json:"mode"`
	Duration        string  `json:"duration"`
	GridChargePower float64 `json:"grid_charge_power"`
}

type errorBody struct {
	Error string `json:"error"`
}

type overrideResult struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Decision domain.ControlDecision `json:"decision"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.POST("/controls/mode_override", s.ModeOverrideHandler)

	e.GET("/json/current_controls.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.documents.ControlsDocument())
	})
	e.GET("/json/optimize_request.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.documents.OptimizeRequestDocument())
	})
	e.GET("/json/optimize_response.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.documents.OptimizeResponseDocument())
	})

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ModeOverrideHandler(c echo.Context) error {
	var body overrideBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	command, err := body.toCommand()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetOverrideRequest{Command: command}, OVERRIDE_REQUEST_TIMEOUT).Result()
	if err != nil {
		s.logger.Warn("http: override request failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	resp, ok := res.(domain.SetOverrideResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "unexpected response"})
	}
	if resp.HasResponseError() {
		return c.JSON(http.StatusBadRequest, errorBody{Error: resp.ResponseError.Error()})
	}

	message := "override set to " + resp.Decision.Mode.String()
	if command.Revert {
		message = "override reverted"
	}
	return c.JSON(http.StatusOK, overrideResult{
		Status:   "success",
		Message:  message,
		Decision: resp.Decision,
	})
}

// toCommand converts the dashboard form. Power arrives in kW.
func (b overrideBody) toCommand() (domain.OverrideCommand, error) {
	if b.Mode == nil {
		return domain.OverrideCommand{}, errors.New("missing mode")
	}
	var duration time.Duration
	if !domain.IsRevertCode(*b.Mode) {
		d, err := domain.ParseOverrideDuration(b.Duration)
		if err != nil {
			return domain.OverrideCommand{}, err
		}
		if _, err := domain.NormalizeOverrideDuration(d); err != nil {
			return domain.OverrideCommand{}, err
		}
		duration = d
	}
	return domain.NewOverrideCommand(*b.Mode, duration, b.GridChargePower*1000)
}
