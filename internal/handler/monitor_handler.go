package handler

import (
	"net/http"
	"strconv"

	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/repo"
	"github.com/dushixiang/apiping/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MonitorHandler 手动探测、结果查询、历史、导出和报告接口
type MonitorHandler struct {
	logger         *zap.Logger
	monitorService *service.MonitorService
}

func NewMonitorHandler(logger *zap.Logger, monitorService *service.MonitorService) *MonitorHandler {
	return &MonitorHandler{
		logger:         logger,
		monitorService: monitorService,
	}
}

// pingRequest 未传 saveResult 时默认保存结果
type pingRequest struct {
	EndpointIDs    []string `json:"endpointIds"`
	SaveResult     *bool    `json:"saveResult"`
	IncludeDetails bool     `json:"includeDetails"`
	TriggeredBy    string   `json:"triggeredBy"`
}

func (r pingRequest) options() service.ManualPingOptions {
	save := true
	if r.SaveResult != nil {
		save = *r.SaveResult
	}
	return service.ManualPingOptions{SaveResult: save, IncludeDetails: r.IncludeDetails}
}

// PingEndpoint 立即探测一个端点
// POST /api/ping-monitor/ping/manual/:endpointId
func (h *MonitorHandler) PingEndpoint(c echo.Context) error {
	var req pingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	response, err := h.monitorService.PingEndpoint(c.Request().Context(), c.Param("endpointId"), req.options())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, response)
}

// BulkPing 并发探测多个端点
// POST /api/ping-monitor/ping/bulk
func (h *MonitorHandler) BulkPing(c echo.Context) error {
	var req pingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	responses, err := h.monitorService.BulkPing(c.Request().Context(), req.EndpointIDs, req.options())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, responses)
}

// PingAllActive 探测所有活跃端点
// POST /api/ping-monitor/ping/all-active
func (h *MonitorHandler) PingAllActive(c echo.Context) error {
	var req pingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	if req.TriggeredBy != "" {
		h.logger.Info("手动探测全部活跃端点", zap.String("triggeredBy", req.TriggeredBy))
	}
	responses, err := h.monitorService.PingAllActive(c.Request().Context(), req.options())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, responses)
}

func parseResultQuery(c echo.Context) (repo.ResultQuery, error) {
	q := repo.ResultQuery{
		EndpointID: c.QueryParam("endpointId"),
		Status:     models.PingStatus(c.QueryParam("status")),
		SortBy:     c.QueryParam("sortBy"),
		SortOrder:  c.QueryParam("sortOrder"),
	}
	var err error
	if q.IsSuccess, err = queryBoolPtr(c, "isSuccess"); err != nil {
		return q, err
	}
	if q.MinResponseTime, err = queryInt64Ptr(c, "minResponseTime"); err != nil {
		return q, err
	}
	if q.MaxResponseTime, err = queryInt64Ptr(c, "maxResponseTime"); err != nil {
		return q, err
	}
	if raw := c.QueryParam("httpStatusCode"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return q, err
		}
		q.HTTPStatusCode = &code
	}
	if q.StartTime, err = queryTime(c, "startDate"); err != nil {
		return q, err
	}
	if q.EndTime, err = queryTime(c, "endDate"); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = queryInt(c, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

// Results 分页查询探测结果
// GET /api/ping-monitor/results
func (h *MonitorHandler) Results(c echo.Context) error {
	q, err := parseResultQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	items, total, err := h.monitorService.Results(c.Request().Context(), q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// Result 获取单个探测结果
// GET /api/ping-monitor/results/:id
func (h *MonitorHandler) Result(c echo.Context) error {
	result, err := h.monitorService.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// EndpointResults 查询一个端点的探测结果
// GET /api/ping-monitor/endpoints/:id/results
func (h *MonitorHandler) EndpointResults(c echo.Context) error {
	q, err := parseResultQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	items, total, err := h.monitorService.EndpointResults(c.Request().Context(), c.Param("id"), q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// History 端点按天汇总的历史
// GET /api/ping-monitor/endpoints/:id/history?days=7
func (h *MonitorHandler) History(c echo.Context) error {
	days, err := queryInt(c, "days")
	if err != nil {
		return badRequest(c, err.Error())
	}
	history, err := h.monitorService.EndpointHistory(c.Request().Context(), c.Param("id"), days)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, history)
}

// HealthOverview 健康概览
// GET /api/ping-monitor/health-overview
func (h *MonitorHandler) HealthOverview(c echo.Context) error {
	overview, err := h.monitorService.HealthOverview(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, overview)
}

// SystemHealth 系统整体健康状况
// GET /api/ping-monitor/system-health
func (h *MonitorHandler) SystemHealth(c echo.Context) error {
	sh, err := h.monitorService.SystemHealth(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, sh)
}

// EndpointHealth 单个端点的健康状况
// GET /api/ping-monitor/endpoints/:id/health
func (h *MonitorHandler) EndpointHealth(c echo.Context) error {
	eh, err := h.monitorService.EndpointHealth(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, eh)
}

// Export 导出探测结果为文件下载
// POST /api/ping-monitor/export/results
func (h *MonitorHandler) Export(c echo.Context) error {
	var req service.ExportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	file, err := h.monitorService.ExportResults(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+file.Filename+`"`)
	return c.Blob(http.StatusOK, file.MimeType, file.Data)
}

// UptimeReport 可用率报告
// GET /api/ping-monitor/reports/uptime?period=24h
func (h *MonitorHandler) UptimeReport(c echo.Context) error {
	report, err := h.monitorService.UptimeReport(c.Request().Context(), c.QueryParam("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, report)
}

// PerformanceReport 性能报告
// GET /api/ping-monitor/reports/performance?period=24h
func (h *MonitorHandler) PerformanceReport(c echo.Context) error {
	report, err := h.monitorService.PerformanceReport(c.Request().Context(), c.QueryParam("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, report)
}

// IncidentReport 故障报告
// GET /api/ping-monitor/reports/incidents?period=24h
func (h *MonitorHandler) IncidentReport(c echo.Context) error {
	report, err := h.monitorService.IncidentReport(c.Request().Context(), c.QueryParam("endpointId"), c.QueryParam("period"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, report)
}
