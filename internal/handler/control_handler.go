package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dushixiang/apiping/internal/scheduler"
	"github.com/dushixiang/apiping/internal/service"
	"github.com/dushixiang/apiping/internal/version"
	ws "github.com/dushixiang/apiping/internal/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ControlHandler 调度器控制、通知、自检和实时推送接口
type ControlHandler struct {
	logger              *zap.Logger
	scheduler           *scheduler.PingScheduler
	monitorService      *service.MonitorService
	notificationService *service.NotificationService
	wsManager           *ws.Manager
	startedAt           time.Time
}

func NewControlHandler(logger *zap.Logger, pingScheduler *scheduler.PingScheduler, monitorService *service.MonitorService, notificationService *service.NotificationService, wsManager *ws.Manager) *ControlHandler {
	return &ControlHandler{
		logger:              logger,
		scheduler:           pingScheduler,
		monitorService:      monitorService,
		notificationService: notificationService,
		wsManager:           wsManager,
		startedAt:           time.Now(),
	}
}

// MonitorStatus GET /api/ping-monitor/monitor/status
func (h *ControlHandler) MonitorStatus(c echo.Context) error {
	status, err := h.scheduler.Status(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, status)
}

// StartMonitor POST /api/ping-monitor/monitor/start
func (h *ControlHandler) StartMonitor(c echo.Context) error {
	// 调度器的生命周期不跟随请求
	if err := h.scheduler.Start(context.WithoutCancel(c.Request().Context())); err != nil {
		h.logger.Error("启动调度器失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "启动调度器失败"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "调度器已启动",
		"isRunning": h.scheduler.IsRunning(),
	})
}

// StopMonitor POST /api/ping-monitor/monitor/stop
func (h *ControlHandler) StopMonitor(c echo.Context) error {
	h.scheduler.Stop()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "调度器已停止",
		"isRunning": h.scheduler.IsRunning(),
	})
}

// RestartMonitor POST /api/ping-monitor/monitor/restart
func (h *ControlHandler) RestartMonitor(c echo.Context) error {
	if err := h.scheduler.Restart(context.WithoutCancel(c.Request().Context())); err != nil {
		h.logger.Error("重启调度器失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "重启调度器失败"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":   "调度器已重启",
		"isRunning": h.scheduler.IsRunning(),
	})
}

// TestNotification POST /api/ping-monitor/notifications/test/:endpointId
func (h *ControlHandler) TestNotification(c echo.Context) error {
	delivered, err := h.notificationService.TestNotification(c.Request().Context(), c.Param("endpointId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"delivered": delivered,
	})
}

// NotificationSettings GET /api/ping-monitor/notifications/settings
func (h *ControlHandler) NotificationSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notificationService.Settings())
}

// UpdateNotificationSettings PUT /api/ping-monitor/notifications/settings
func (h *ControlHandler) UpdateNotificationSettings(c echo.Context) error {
	var req service.NotificationSettings
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	settings, err := h.notificationService.UpdateSettings(&req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// NotificationStats GET /api/ping-monitor/notifications/stats
func (h *ControlHandler) NotificationStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notificationService.Stats())
}

// Health 服务自检
// GET /api/ping-monitor/health
func (h *ControlHandler) Health(c echo.Context) error {
	database := h.monitorService.Ready(c.Request().Context())
	status := "healthy"
	code := http.StatusOK
	if !database {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    int64(time.Since(h.startedAt).Seconds()),
		"version":   version.GetVersion(),
		"services": map[string]bool{
			"monitoring": h.scheduler.IsRunning(),
			"database":   database,
		},
	})
}

// Subscribe 实时推送探测结果和告警
// GET /api/ping-monitor/ws/results
func (h *ControlHandler) Subscribe(c echo.Context) error {
	if err := h.wsManager.HandleConnection(c.Response(), c.Request()); err != nil {
		h.logger.Debug("WebSocket 升级失败", zap.Error(err))
		return nil
	}
	return nil
}
