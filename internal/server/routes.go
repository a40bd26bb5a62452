package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestTimeout = 5 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := e.Group("/api/power")
	api.GET("/state", s.GetStateHandler)
	api.POST("/state", s.SetStateHandler)
	api.POST("/in/change", s.InChangeHandler)
	api.POST("/out/change", s.OutChangeHandler)
	api.POST("/in/target", s.SetInTargetHandler)
	api.POST("/out/evaluate", s.OutEvaluateHandler)
	api.POST("/out/enable", s.SetOutEnabledHandler)
	api.POST("/soc/reset", s.ResetSOCHandler)
	api.POST("/optimize", s.OptimizeHandler)
	api.POST("/optimize/target", s.SetOptimizeTargetHandler)
	api.POST("/capacity/reset", s.ResetCapacityHandler)
	api.POST("/prices/refresh", s.RefreshPricesHandler)
	api.GET("/status", s.StatusHandler)

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

// ask sends cmd through the master and unwraps the typed response.
func ask[T domain.ActorResponse](s *Server, cmd domain.PowerCommandRequest) (T, error) {
	var zero T
	res, err := s.rootContext.RequestFuture(s.masterActor, cmd, requestTimeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrTimeout) {
			return zero, echo.NewHTTPError(http.StatusServiceUnavailable, "controller did not respond")
		}
		return zero, echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(T)
	if !ok {
		return zero, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("unexpected response %T", res))
	}
	if resp.HasResponseError() {
		return zero, responseError(resp.GetResponseError())
	}
	return resp, nil
}

func responseError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidTarget):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNoPriceData):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func bind(c echo.Context, body any) error {
	if err := c.Bind(body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

type stateBody struct {
	State any `json:"state"`
}

type stateJSON struct {
	State        string `json:"state"`
	BatteryState string `json:"battery_state"`
}

func stateResponse(r domain.PowerStateResponse) stateJSON {
	return stateJSON{State: r.State.String(), BatteryState: r.BatteryState.String()}
}

func (s *Server) GetStateHandler(c echo.Context) error {
	resp, err := ask[domain.PowerStateResponse](s, domain.GetStateRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stateResponse(resp))
}

func (s *Server) SetStateHandler(c echo.Context) error {
	var body stateBody
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.State == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "state is required")
	}
	state, err := domain.ParsePowerState(fmt.Sprint(body.State))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := ask[domain.PowerStateResponse](s, domain.SetStateRequest{State: state})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stateResponse(resp))
}

type powerBody struct {
	Power *float64 `json:"power"`
}

func (s *Server) InChangeHandler(c echo.Context) error {
	return s.change(c, func(power float64) domain.PowerCommandRequest {
		return domain.InChangeRequest{Power: power}
	}, "current_power_in")
}

func (s *Server) OutChangeHandler(c echo.Context) error {
	return s.change(c, func(power float64) domain.PowerCommandRequest {
		return domain.OutChangeRequest{Power: power}
	}, "current_power_out")
}

func (s *Server) change(c echo.Context, cmd func(float64) domain.PowerCommandRequest, currentKey string) error {
	var body powerBody
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.Power == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "power is required")
	}
	resp, err := ask[domain.ChangeResponse](s, cmd(*body.Power))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"result":   resp.Result.String(),
		"power":    resp.Power,
		currentKey: resp.Current,
	})
}

func (s *Server) ResetSOCHandler(c echo.Context) error {
	resp, err := ask[domain.ResetSOCResponse](s, domain.ResetSOCRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"soc":           resp.SOC,
		"battery_state": resp.BatteryState.String(),
	})
}

type evaluateBody struct {
	Limit *float64 `json:"limit"`
}

func (s *Server) OutEvaluateHandler(c echo.Context) error {
	var body evaluateBody
	if c.Request().ContentLength > 0 {
		if err := bind(c, &body); err != nil {
			return err
		}
	}
	resp, err := ask[domain.OutEvaluateResponse](s, domain.OutEvaluateRequest{Limit: body.Limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"enabled": resp.Enabled,
		"price":   resp.Price,
	})
}

type enableBody struct {
	Enable *bool `json:"enable"`
}

func (s *Server) bindEnable(c echo.Context) (bool, error) {
	var body enableBody
	if err := bind(c, &body); err != nil {
		return false, err
	}
	if body.Enable == nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "enable is required")
	}
	return *body.Enable, nil
}

func (s *Server) OptimizeHandler(c echo.Context) error {
	enable, err := s.bindEnable(c)
	if err != nil {
		return err
	}
	resp, err := ask[domain.OptimizeResponse](s, domain.OptimizeRequest{Enable: enable})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"enabled": resp.Enabled})
}

func (s *Server) SetOutEnabledHandler(c echo.Context) error {
	enable, err := s.bindEnable(c)
	if err != nil {
		return err
	}
	resp, err := ask[domain.SetOutEnabledResponse](s, domain.SetOutEnabledRequest{Enable: enable})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"enabled": resp.Enabled})
}

type targetBody struct {
	Target *float64 `json:"target"`
}

func (s *Server) SetInTargetHandler(c echo.Context) error {
	var body targetBody
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.Target == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "target is required")
	}
	resp, err := ask[domain.SetInTargetResponse](s, domain.SetInTargetRequest{Target: *body.Target})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"in_target": resp.InTarget})
}

type optimizeTargetBody struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (s *Server) SetOptimizeTargetHandler(c echo.Context) error {
	var body optimizeTargetBody
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.Min == nil && body.Max == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "min or max is required")
	}
	resp, err := ask[domain.SetOptimizeTargetResponse](s, domain.UpdateOptimizeTargetRequest{Min: body.Min, Max: body.Max})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"min": resp.Min, "max": resp.Max})
}

func (s *Server) ResetCapacityHandler(c echo.Context) error {
	resp, err := ask[domain.ResetCapacityResponse](s, domain.ResetCapacityRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"capacity_in":  resp.CapacityIn,
		"capacity_out": resp.CapacityOut,
	})
}

func (s *Server) RefreshPricesHandler(c echo.Context) error {
	resp, err := ask[domain.RefreshPricesResponse](s, domain.RefreshPricesRequest{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": resp.Entries})
}

type statusJSON struct {
	Timestamp         time.Time `json:"timestamp"`
	PowerState        string    `json:"power_state"`
	BatteryState      string    `json:"battery_state"`
	BatterySOC        int       `json:"battery_soc"`
	BatteryVoltage    float64   `json:"battery_voltage"`
	CurrentPowerIn    float64   `json:"current_power_in"`
	CurrentPowerOut   float64   `json:"current_power_out"`
	RequestedStepsIn  float64   `json:"requested_steps_in"`
	CurrentTotalPower float64   `json:"current_total_power"`
	OptimizeEnabled   bool      `json:"optimize_power_enabled"`
	OptimizeTargetMin float64   `json:"optimize_target_min"`
	OptimizeTargetMax float64   `json:"optimize_target_max"`
	InTarget          float64   `json:"in_target"`
	CapacityIn        float64   `json:"capacity_in"`
	CapacityOut       float64   `json:"capacity_out"`
	PowerOutEnabled   bool      `json:"power_out_enabled"`
	CurrentPrice      *float64  `json:"current_price,omitempty"`
}

func (s *Server) StatusHandler(c echo.Context) error {
	resp, err := ask[domain.GetStatusResponse](s, domain.GetStatusRequest{})
	if err != nil {
		return err
	}
	st := resp.Status
	return c.JSON(http.StatusOK, statusJSON{
		Timestamp:         st.Timestamp,
		PowerState:        st.PowerState.String(),
		BatteryState:      st.BatteryState.String(),
		BatterySOC:        st.BatterySOC,
		BatteryVoltage:    st.BatteryVoltage,
		CurrentPowerIn:    st.CurrentPowerIn,
		CurrentPowerOut:   st.CurrentPowerOut,
		RequestedStepsIn:  st.RequestedStepsIn,
		CurrentTotalPower: st.CurrentTotalPower,
		OptimizeEnabled:   st.OptimizeEnabled,
		OptimizeTargetMin: st.OptimizeTarget.Min,
		OptimizeTargetMax: st.OptimizeTarget.Max,
		InTarget:          st.InTarget,
		CapacityIn:        st.CapacityIn,
		CapacityOut:       st.CapacityOut,
		PowerOutEnabled:   st.PowerOutEnabled,
		CurrentPrice:      st.CurrentPrice,
	})
}
