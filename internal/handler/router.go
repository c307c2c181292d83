package handler

import "github.com/labstack/echo/v4"

// BasePath 接口前缀
const BasePath = "/api/ping-monitor"

// Router 汇总所有处理器并注册路由
type Router struct {
	Endpoint  *EndpointHandler
	Monitor   *MonitorHandler
	Analytics *AnalyticsHandler
	Control   *ControlHandler
}

func NewRouter(endpoint *EndpointHandler, monitor *MonitorHandler, analytics *AnalyticsHandler, control *ControlHandler) *Router {
	return &Router{
		Endpoint:  endpoint,
		Monitor:   monitor,
		Analytics: analytics,
		Control:   control,
	}
}

// Register 注册路由
func (r *Router) Register(e *echo.Echo) {
	g := e.Group(BasePath)

	// 端点，子资源与端点共用 :id 参数名
	g.POST("/endpoints", r.Endpoint.Create)
	g.GET("/endpoints", r.Endpoint.List)
	g.PATCH("/endpoints/bulk-update", r.Endpoint.BulkUpdate)
	g.GET("/endpoints/provider/:provider", r.Endpoint.ListByProvider)
	g.POST("/endpoints/presets/:provider", r.Endpoint.CreatePresets)
	g.GET("/endpoints/:id", r.Endpoint.Get)
	g.PUT("/endpoints/:id", r.Endpoint.Update)
	g.DELETE("/endpoints/:id", r.Endpoint.Delete)
	g.PATCH("/endpoints/:id/status", r.Endpoint.SetStatus)
	g.PATCH("/endpoints/:id/active", r.Endpoint.SetActive)
	g.GET("/statistics", r.Endpoint.Statistics)

	// 探测与结果
	g.POST("/ping/manual/:endpointId", r.Monitor.PingEndpoint)
	g.POST("/ping/bulk", r.Monitor.BulkPing)
	g.POST("/ping/all-active", r.Monitor.PingAllActive)
	g.GET("/results", r.Monitor.Results)
	g.GET("/results/:id", r.Monitor.Result)
	g.GET("/endpoints/:id/results", r.Monitor.EndpointResults)
	g.GET("/endpoints/:id/history", r.Monitor.History)
	g.GET("/endpoints/:id/health", r.Monitor.EndpointHealth)
	g.GET("/health-overview", r.Monitor.HealthOverview)
	g.GET("/system-health", r.Monitor.SystemHealth)
	g.POST("/export/results", r.Monitor.Export)
	g.GET("/reports/uptime", r.Monitor.UptimeReport)
	g.GET("/reports/performance", r.Monitor.PerformanceReport)
	g.GET("/reports/incidents", r.Monitor.IncidentReport)

	// 统计分析
	g.GET("/analytics/uptime", r.Analytics.Uptime)
	g.GET("/analytics/performance", r.Analytics.Performance)
	g.GET("/analytics/incidents", r.Analytics.Incidents)
	g.GET("/analytics/comparison/:endpointId", r.Analytics.Comparison)
	g.GET("/analytics/global", r.Analytics.Global)
	g.GET("/analytics/sla", r.Analytics.SLA)
	g.GET("/analytics/trends/:endpointId", r.Analytics.Trends)
	g.POST("/analytics/custom", r.Analytics.Custom)

	// 调度器、通知和自检
	g.GET("/monitor/status", r.Control.MonitorStatus)
	g.POST("/monitor/start", r.Control.StartMonitor)
	g.POST("/monitor/stop", r.Control.StopMonitor)
	g.POST("/monitor/restart", r.Control.RestartMonitor)
	g.POST("/notifications/test/:endpointId", r.Control.TestNotification)
	g.GET("/notifications/settings", r.Control.NotificationSettings)
	g.PUT("/notifications/settings", r.Control.UpdateNotificationSettings)
	g.GET("/notifications/stats", r.Control.NotificationStats)
	g.GET("/health", r.Control.Health)
	g.GET("/ws/results", r.Control.Subscribe)
}
