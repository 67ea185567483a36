package server

import (
	"net/http"
	"time"

	"sunwarden2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/battery", s.BatteryReportHandler)
	e.GET("/api/limiter", s.LimiterStateHandler)

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

type batteryReportDTO struct {
	Voltage              float64  `json:"voltage"`
	AveragedVoltage      float64  `json:"averaged_voltage"`
	OpenCircuitVoltage   *float64 `json:"open_circuit_voltage,omitempty"`
	ResistanceInUse      *float64 `json:"resistance_in_use,omitempty"`
	CalculatedResistance *float64 `json:"calculated_resistance,omitempty"`
	CalculatedMin        *float64 `json:"calculated_min,omitempty"`
	CalculatedMax        *float64 `json:"calculated_max,omitempty"`
	CalculatedCount      uint     `json:"calculated_count"`
	ConfiguredResistance float64  `json:"configured_resistance"`
	SamplePeriodMillis   int64    `json:"sample_period_millis"`
	NotAvailableCounter  uint     `json:"not_available_counter"`
}

func (s *Server) BatteryReportHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetBatteryReportRequest{}, 5*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.GetBatteryReportResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	report := response.Report
	dto := batteryReportDTO{
		Voltage:              report.Voltage,
		AveragedVoltage:      report.AveragedVoltage,
		CalculatedCount:      report.CalculatedCount,
		ConfiguredResistance: report.ConfiguredResistance,
		SamplePeriodMillis:   report.SamplePeriodMillis,
		NotAvailableCounter:  report.NotAvailableCounter,
	}
	if report.OpenCircuitVoltageOk {
		dto.OpenCircuitVoltage = &report.OpenCircuitVoltage
	}
	if report.ResistanceInUseOk {
		dto.ResistanceInUse = &report.ResistanceInUse
	}
	if report.CalculatedCount > 0 {
		dto.CalculatedResistance = &report.CalculatedResistance
		dto.CalculatedMin = &report.CalculatedMin
		dto.CalculatedMax = &report.CalculatedMax
	}
	return c.JSON(http.StatusOK, dto)
}

type limiterStateDTO struct {
	State              string  `json:"state"`
	Enabled            bool    `json:"enabled"`
	DischargeEnabled   bool    `json:"discharge_enabled"`
	DirectFeedPercent  float64 `json:"direct_feed_percent"`
	LastRequestedLimit int32   `json:"last_requested_limit"`
}

func (s *Server) LimiterStateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetLimiterStateRequest{}, 5*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.GetLimiterStateResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, limiterStateDTO{
		State:              response.State.String(),
		Enabled:            response.Enabled,
		DischargeEnabled:   response.DischargeEnabled,
		DirectFeedPercent:  response.DirectFeedPercent,
		LastRequestedLimit: response.LastRequestedLimit,
	})
}
