package handler

import (
	"net/http"
	"strconv"

	"github.com/dushixiang/apiping/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AnalyticsHandler 统计分析接口，period 支持 1h、24h、7d、30d，默认 24h
type AnalyticsHandler struct {
	logger           *zap.Logger
	analyticsService *service.AnalyticsService
}

func NewAnalyticsHandler(logger *zap.Logger, analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		logger:           logger,
		analyticsService: analyticsService,
	}
}

// Uptime GET /api/ping-monitor/analytics/uptime
func (h *AnalyticsHandler) Uptime(c echo.Context) error {
	items, err := h.analyticsService.Uptime(c.Request().Context(), c.QueryParam("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Performance GET /api/ping-monitor/analytics/performance
func (h *AnalyticsHandler) Performance(c echo.Context) error {
	items, err := h.analyticsService.Performance(c.Request().Context(), c.QueryParam("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Incidents GET /api/ping-monitor/analytics/incidents
func (h *AnalyticsHandler) Incidents(c echo.Context) error {
	items, err := h.analyticsService.Incidents(c.Request().Context(), c.QueryParam("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Comparison GET /api/ping-monitor/analytics/comparison/:endpointId?current=24h&previous=24h
func (h *AnalyticsHandler) Comparison(c echo.Context) error {
	comparison, err := h.analyticsService.Comparison(c.Request().Context(), c.Param("endpointId"), c.QueryParam("current"), c.QueryParam("previous"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, comparison)
}

// Global GET /api/ping-monitor/analytics/global
func (h *AnalyticsHandler) Global(c echo.Context) error {
	global, err := h.analyticsService.Global(c.Request().Context(), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, global)
}

// SLA GET /api/ping-monitor/analytics/sla?target=99.9&period=30d
func (h *AnalyticsHandler) SLA(c echo.Context) error {
	var target float64
	if raw := c.QueryParam("target"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return badRequest(c, "target 必须是数字")
		}
		target = v
	}
	reports, err := h.analyticsService.SLA(c.Request().Context(), c.QueryParam("endpointId"), target, c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, reports)
}

// Trends GET /api/ping-monitor/analytics/trends/:endpointId
func (h *AnalyticsHandler) Trends(c echo.Context) error {
	trends, err := h.analyticsService.Trends(c.Request().Context(), c.Param("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, trends)
}

// Custom POST /api/ping-monitor/analytics/custom
func (h *AnalyticsHandler) Custom(c echo.Context) error {
	var req service.CustomReportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	report, err := h.analyticsService.Custom(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, report)
}
