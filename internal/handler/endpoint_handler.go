package handler

import (
	"net/http"
	"strings"

	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/repo"
	"github.com/dushixiang/apiping/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// EndpointHandler 端点注册表接口
type EndpointHandler struct {
	logger          *zap.Logger
	endpointService *service.EndpointService
}

func NewEndpointHandler(logger *zap.Logger, endpointService *service.EndpointService) *EndpointHandler {
	return &EndpointHandler{
		logger:          logger,
		endpointService: endpointService,
	}
}

// Create 注册端点
// POST /api/ping-monitor/endpoints
func (h *EndpointHandler) Create(c echo.Context) error {
	var req service.EndpointRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	endpoint, err := h.endpointService.Register(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, endpoint)
}

// List 按条件分页查询端点
// GET /api/ping-monitor/endpoints
func (h *EndpointHandler) List(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, err.Error())
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return badRequest(c, err.Error())
	}
	isActive, err := queryBoolPtr(c, "isActive")
	if err != nil {
		return badRequest(c, err.Error())
	}

	q := repo.EndpointQuery{
		Name:      c.QueryParam("name"),
		Provider:  models.Provider(c.QueryParam("provider")),
		Status:    models.EndpointStatus(c.QueryParam("status")),
		IsActive:  isActive,
		Tags:      c.QueryParam("tags"),
		CreatedBy: c.QueryParam("createdBy"),
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		Limit:     limit,
		Offset:    offset,
	}
	items, total, err := h.endpointService.List(c.Request().Context(), q)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get 获取端点及其健康指标
// GET /api/ping-monitor/endpoints/:id
func (h *EndpointHandler) Get(c echo.Context) error {
	view, err := h.endpointService.GetView(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Update 更新端点
// PUT /api/ping-monitor/endpoints/:id
func (h *EndpointHandler) Update(c echo.Context) error {
	var req service.EndpointUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	endpoint, err := h.endpointService.Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, endpoint)
}

// Delete 删除端点及其探测结果
// DELETE /api/ping-monitor/endpoints/:id
func (h *EndpointHandler) Delete(c echo.Context) error {
	if err := h.endpointService.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkUpdate 批量更新
// PATCH /api/ping-monitor/endpoints/bulk-update
func (h *EndpointHandler) BulkUpdate(c echo.Context) error {
	var req service.BulkUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	result, err := h.endpointService.BulkUpdate(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// SetStatus 设置生命周期状态
// PATCH /api/ping-monitor/endpoints/:id/status
func (h *EndpointHandler) SetStatus(c echo.Context) error {
	var req struct {
		Status models.EndpointStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	endpoint, err := h.endpointService.SetLifecycleStatus(c.Request().Context(), c.Param("id"), req.Status)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, endpoint)
}

// SetActive 打开或关闭监控
// PATCH /api/ping-monitor/endpoints/:id/active
func (h *EndpointHandler) SetActive(c echo.Context) error {
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	if req.IsActive == nil {
		return badRequest(c, "isActive 不能为空")
	}
	endpoint, err := h.endpointService.SetActive(c.Request().Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, endpoint)
}

// ListByProvider 按提供商查询
// GET /api/ping-monitor/endpoints/provider/:provider
func (h *EndpointHandler) ListByProvider(c echo.Context) error {
	provider := models.Provider(strings.ToLower(c.Param("provider")))
	endpoints, err := h.endpointService.ListByProvider(c.Request().Context(), provider)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, endpoints)
}

// CreatePresets 创建提供商的预设端点
// POST /api/ping-monitor/endpoints/presets/:provider
func (h *EndpointHandler) CreatePresets(c echo.Context) error {
	var req struct {
		CreatedBy string `json:"createdBy"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "请求参数错误")
	}
	provider := models.Provider(strings.ToLower(c.Param("provider")))
	created, err := h.endpointService.CreatePresets(c.Request().Context(), provider, req.CreatedBy)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Statistics 端点汇总统计
// GET /api/ping-monitor/statistics
func (h *EndpointHandler) Statistics(c echo.Context) error {
	stats, err := h.endpointService.Statistics(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, stats)
}
