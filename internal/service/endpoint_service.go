package service

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/repo"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EndpointService 端点注册表
type EndpointService struct {
	logger *zap.Logger
	*repo.EndpointRepo
	resultRepo *repo.PingResultRepo
	now        func() time.Time

	onRemove []func(endpointID string)
}

func NewEndpointService(logger *zap.Logger, db *gorm.DB) *EndpointService {
	return &EndpointService{
		logger:       logger,
		EndpointRepo: repo.NewEndpointRepo(db),
		resultRepo:   repo.NewPingResultRepo(db),
		now:          time.Now,
	}
}

// EndpointRequest 注册端点请求
type EndpointRequest struct {
	Name             string                   `json:"name" validate:"required,max=255"`
	Description      string                   `json:"description"`
	URL              string                   `json:"url" validate:"required"`
	Method           string                   `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Provider         models.Provider          `json:"provider" validate:"omitempty,oneof=stripe google facebook twitter github slack discord zoom paypal aws azure mailgun sendgrid twilio custom"`
	Headers          map[string]string        `json:"headers"`
	Body             string                   `json:"body"`
	TimeoutMs        int                      `json:"timeoutMs" validate:"omitempty,min=1000,max=300000"`
	IntervalSeconds  int                      `json:"intervalSeconds" validate:"omitempty,min=30,max=3600"`
	RetryAttempts    int                      `json:"retryAttempts" validate:"omitempty,min=1,max=10"`
	RetryDelayMs     int                      `json:"retryDelayMs" validate:"omitempty,min=100,max=10000"`
	ExpectedResponse *models.ExpectedResponse `json:"expectedResponse"`
	Status           models.EndpointStatus    `json:"status" validate:"omitempty,oneof=active inactive paused"`
	IsActive         *bool                    `json:"isActive"`
	EnableAlerts     *bool                    `json:"enableAlerts"`
	AlertConfig      *models.AlertConfig      `json:"alertConfig"`
	Tags             []string                 `json:"tags"`
	CreatedBy        string                   `json:"createdBy"`
}

// EndpointUpdateRequest 更新端点请求，为空的字段不修改
type EndpointUpdateRequest struct {
	Name             *string                  `json:"name" validate:"omitempty,min=1,max=255"`
	Description      *string                  `json:"description"`
	URL              *string                  `json:"url"`
	Method           *string                  `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Provider         *models.Provider         `json:"provider" validate:"omitempty,oneof=stripe google facebook twitter github slack discord zoom paypal aws azure mailgun sendgrid twilio custom"`
	Headers          map[string]string        `json:"headers"`
	Body             *string                  `json:"body"`
	TimeoutMs        *int                     `json:"timeoutMs" validate:"omitempty,min=1000,max=300000"`
	IntervalSeconds  *int                     `json:"intervalSeconds" validate:"omitempty,min=30,max=3600"`
	RetryAttempts    *int                     `json:"retryAttempts" validate:"omitempty,min=1,max=10"`
	RetryDelayMs     *int                     `json:"retryDelayMs" validate:"omitempty,min=100,max=10000"`
	ExpectedResponse *models.ExpectedResponse `json:"expectedResponse"`
	Status           *models.EndpointStatus   `json:"status" validate:"omitempty,oneof=active inactive paused"`
	IsActive         *bool                    `json:"isActive"`
	EnableAlerts     *bool                    `json:"enableAlerts"`
	AlertConfig      *models.AlertConfig      `json:"alertConfig"`
	Tags             []string                 `json:"tags"`
	UpdatedBy        string                   `json:"updatedBy"`
}

// BulkUpdateRequest 批量更新请求
type BulkUpdateRequest struct {
	EndpointIDs  []string               `json:"endpointIds" validate:"required,min=1"`
	Status       *models.EndpointStatus `json:"status" validate:"omitempty,oneof=active inactive paused"`
	IsActive     *bool                  `json:"isActive"`
	EnableAlerts *bool                  `json:"enableAlerts"`
}

// BulkUpdateResult 批量更新结果
type BulkUpdateResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// EndpointView 端点及其派生的健康指标
type EndpointView struct {
	models.Endpoint
	IsHealthy           bool          `json:"isHealthy"`
	CurrentStatus       health.Status `json:"currentStatus"`
	AverageResponseTime int64         `json:"averageResponseTime"`
	Uptime24h           float64       `json:"uptime24h"`
}

// EndpointStatistics 端点汇总统计
type EndpointStatistics struct {
	Total               int                           `json:"total"`
	Active              int                           `json:"active"`
	Inactive            int                           `json:"inactive"`
	Healthy             int                           `json:"healthy"`
	Degraded            int                           `json:"degraded"`
	Down                int                           `json:"down"`
	Unknown             int                           `json:"unknown"`
	ByProvider          map[models.Provider]int       `json:"byProvider"`
	ByStatus            map[models.EndpointStatus]int `json:"byStatus"`
	AverageUptime       float64                       `json:"averageUptime"`
	AverageResponseTime int64                         `json:"averageResponseTime"`
}

// Preset 知名服务的健康检查地址
type Preset struct {
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	URL              string                   `json:"url"`
	Method           string                   `json:"method"`
	Provider         models.Provider          `json:"provider"`
	ExpectedResponse *models.ExpectedResponse `json:"expectedResponse"`
}

var presetCatalog = map[models.Provider][]Preset{
	models.ProviderStripe: {{
		Name:             "Stripe Status",
		Description:      "Stripe 官方状态页 JSON 接口",
		URL:              "https://status.stripe.com/api/status.json",
		Method:           http.MethodGet,
		ExpectedResponse: &models.ExpectedResponse{StatusCode: 200, ContentType: "application/json"},
	}},
	models.ProviderGoogle: {{
		Name:             "Google Ping",
		Description:      "Google 连通性检查",
		URL:              "https://www.google.com/ping",
		Method:           http.MethodGet,
		ExpectedResponse: &models.ExpectedResponse{StatusCode: 200},
	}},
	models.ProviderGitHub: {{
		Name:             "GitHub Zen",
		Description:      "GitHub REST API 连通性检查",
		URL:              "https://api.github.com/zen",
		Method:           http.MethodGet,
		ExpectedResponse: &models.ExpectedResponse{StatusCode: 200},
	}},
	models.ProviderSlack: {{
		Name:             "Slack API Test",
		Description:      "Slack Web API 连通性检查",
		URL:              "https://slack.com/api/api.test",
		Method:           http.MethodGet,
		ExpectedResponse: &models.ExpectedResponse{StatusCode: 200, ContentType: "application/json", BodyContains: `"ok":true`},
	}},
	models.ProviderDiscord: {{
		Name:             "Discord Status",
		Description:      "Discord 官方状态页 JSON 接口",
		URL:              "https://discordstatus.com/api/v2/status.json",
		Method:           http.MethodGet,
		ExpectedResponse: &models.ExpectedResponse{StatusCode: 200, ContentType: "application/json"},
	}},
	models.ProviderTwilio: {{
		Name:             "Twilio Status",
		Description:      "Twilio 官方状态页 JSON 接口",
		URL:              "https://status.twilio.com/api/v2/status.json",
		Method:           http.MethodGet,
		ExpectedResponse: &models.ExpectedResponse{StatusCode: 200, ContentType: "application/json"},
	}},
}

// Register 注册端点，注册后立即可被调度
func (s *EndpointService) Register(ctx context.Context, req *EndpointRequest) (*models.Endpoint, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	endpointURL, err := validateURL(req.URL)
	if err != nil {
		return nil, err
	}

	existing, err := s.EndpointRepo.FindByURL(ctx, endpointURL)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	if existing != nil {
		return nil, conflict("endpoint with url %s", endpointURL)
	}

	now := s.now().UnixMilli()
	endpoint := &models.Endpoint{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		URL:              endpointURL,
		Method:           defaultString(strings.ToUpper(req.Method), http.MethodGet),
		Provider:         models.Provider(defaultString(string(req.Provider), string(models.ProviderCustom))),
		Headers:          datatypes.NewJSONType(req.Headers),
		Body:             req.Body,
		TimeoutMs:        defaultInt(req.TimeoutMs, models.DefaultTimeoutMs),
		IntervalSeconds:  defaultInt(req.IntervalSeconds, models.DefaultIntervalSeconds),
		RetryAttempts:    defaultInt(req.RetryAttempts, models.DefaultRetryAttempts),
		RetryDelayMs:     defaultInt(req.RetryDelayMs, models.DefaultRetryDelayMs),
		ExpectedResponse: datatypes.NewJSONType(req.ExpectedResponse),
		Status:           models.EndpointStatus(defaultString(string(req.Status), string(models.EndpointStatusActive))),
		IsActive:         defaultBool(req.IsActive, true),
		EnableAlerts:     defaultBool(req.EnableAlerts, true),
		AlertConfig:      datatypes.NewJSONType(req.AlertConfig),
		Tags:             datatypes.JSONSlice[string](req.Tags),
		CreatedBy:        req.CreatedBy,
		NextPingAt:       &now,
	}

	if err := s.EndpointRepo.Create(ctx, endpoint); err != nil {
		return nil, mapRepoError(err, "endpoint with url", endpointURL)
	}

	s.logger.Info("注册端点",
		zap.String("endpointId", endpoint.ID),
		zap.String("name", endpoint.Name),
		zap.String("url", endpoint.URL))

	return endpoint, nil
}

// Update 更新端点配置，修改探测间隔时重新计算下次探测时间
func (s *EndpointService) Update(ctx context.Context, id string, req *EndpointUpdateRequest) (*models.Endpoint, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	endpoint, err := s.EndpointRepo.FindById(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", id)
	}

	if req.URL != nil {
		endpointURL, err := validateURL(*req.URL)
		if err != nil {
			return nil, err
		}
		if endpointURL != endpoint.URL {
			existing, err := s.EndpointRepo.FindByURL(ctx, endpointURL)
			if err != nil {
				return nil, internal(err, "查询端点失败")
			}
			if existing != nil && existing.ID != endpoint.ID {
				return nil, conflict("endpoint with url %s", endpointURL)
			}
			endpoint.URL = endpointURL
		}
	}

	now := s.now().UnixMilli()
	oldInterval := endpoint.IntervalSeconds
	oldStatus := endpoint.Status

	if req.Name != nil {
		endpoint.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		endpoint.Description = *req.Description
	}
	if req.Method != nil {
		endpoint.Method = strings.ToUpper(*req.Method)
	}
	if req.Provider != nil {
		endpoint.Provider = *req.Provider
	}
	if req.Headers != nil {
		endpoint.Headers = datatypes.NewJSONType(req.Headers)
	}
	if req.Body != nil {
		endpoint.Body = *req.Body
	}
	if req.TimeoutMs != nil {
		endpoint.TimeoutMs = *req.TimeoutMs
	}
	if req.IntervalSeconds != nil {
		endpoint.IntervalSeconds = *req.IntervalSeconds
	}
	if req.RetryAttempts != nil {
		endpoint.RetryAttempts = *req.RetryAttempts
	}
	if req.RetryDelayMs != nil {
		endpoint.RetryDelayMs = *req.RetryDelayMs
	}
	if req.ExpectedResponse != nil {
		endpoint.ExpectedResponse = datatypes.NewJSONType(req.ExpectedResponse)
	}
	if req.Status != nil {
		endpoint.Status = *req.Status
	}
	if req.IsActive != nil {
		endpoint.IsActive = *req.IsActive
	}
	if req.EnableAlerts != nil {
		endpoint.EnableAlerts = *req.EnableAlerts
	}
	if req.AlertConfig != nil {
		endpoint.AlertConfig = datatypes.NewJSONType(req.AlertConfig)
	}
	if req.Tags != nil {
		endpoint.Tags = req.Tags
	}
	if req.UpdatedBy != "" {
		endpoint.UpdatedBy = req.UpdatedBy
	}

	// 间隔变化时按新间隔重新排期，避免沿用旧的下次探测时间
	if endpoint.IntervalSeconds != oldInterval {
		next := now + endpoint.Interval().Milliseconds()
		endpoint.NextPingAt = &next
	}
	// 恢复为 active 时立即探测
	if oldStatus != models.EndpointStatusActive && endpoint.Status == models.EndpointStatusActive {
		endpoint.NextPingAt = &now
	}

	if err := s.EndpointRepo.Save(ctx, &endpoint); err != nil {
		return nil, mapRepoError(err, "endpoint with url", endpoint.URL)
	}

	s.logger.Info("更新端点",
		zap.String("endpointId", endpoint.ID),
		zap.String("name", endpoint.Name))

	return &endpoint, nil
}

// SetLifecycleStatus 设置生命周期状态，切换为 active 时立即恢复探测
func (s *EndpointService) SetLifecycleStatus(ctx context.Context, id string, status models.EndpointStatus) (*models.Endpoint, error) {
	switch status {
	case models.EndpointStatusActive, models.EndpointStatusInactive, models.EndpointStatusPaused:
	default:
		return nil, invalidInput("unknown endpoint status %q", status)
	}

	endpoint, err := s.EndpointRepo.FindById(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", id)
	}

	columns := map[string]interface{}{"status": status}
	endpoint.Status = status
	if status == models.EndpointStatusActive {
		now := s.now().UnixMilli()
		columns["next_ping_at"] = now
		endpoint.NextPingAt = &now
	}

	if err := s.EndpointRepo.UpdateColumns(ctx, id, columns); err != nil {
		return nil, mapRepoError(err, "endpoint", id)
	}
	return &endpoint, nil
}

// SetActive 打开或关闭监控开关，在 active 状态下打开时立即恢复探测
func (s *EndpointService) SetActive(ctx context.Context, id string, active bool) (*models.Endpoint, error) {
	endpoint, err := s.EndpointRepo.FindById(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", id)
	}

	columns := map[string]interface{}{"is_active": active}
	endpoint.IsActive = active
	if active && endpoint.Status == models.EndpointStatusActive {
		now := s.now().UnixMilli()
		columns["next_ping_at"] = now
		endpoint.NextPingAt = &now
	}

	if err := s.EndpointRepo.UpdateColumns(ctx, id, columns); err != nil {
		return nil, mapRepoError(err, "endpoint", id)
	}
	return &endpoint, nil
}

// Remove 删除端点及其全部探测结果
func (s *EndpointService) Remove(ctx context.Context, id string) error {
	if err := s.EndpointRepo.DeleteWithResults(ctx, id); err != nil {
		return mapRepoError(err, "endpoint", id)
	}
	for _, fn := range s.onRemove {
		fn(id)
	}
	s.logger.Info("删除端点", zap.String("endpointId", id))
	return nil
}

// OnRemove 注册端点删除后的回调
func (s *EndpointService) OnRemove(fn func(endpointID string)) {
	s.onRemove = append(s.onRemove, fn)
}

// Get 获取端点
func (s *EndpointService) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	endpoint, err := s.EndpointRepo.FindById(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", id)
	}
	return &endpoint, nil
}

// GetView 获取端点及其健康指标
func (s *EndpointService) GetView(ctx context.Context, id string) (*EndpointView, error) {
	endpoint, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.View(ctx, *endpoint)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// View 根据最近的探测结果计算端点的派生指标
func (s *EndpointService) View(ctx context.Context, endpoint models.Endpoint) (EndpointView, error) {
	recent, err := s.resultRepo.FindRecentByEndpoint(ctx, endpoint.ID, health.CurrentStatusWindow)
	if err != nil {
		return EndpointView{}, internal(err, "查询最近探测结果失败")
	}
	successful, err := s.resultRepo.FindRecentSuccessfulByEndpoint(ctx, endpoint.ID, health.ResponseTimeWindow)
	if err != nil {
		return EndpointView{}, internal(err, "查询最近成功结果失败")
	}
	since := s.now().Add(-24 * time.Hour).UnixMilli()
	day, err := s.resultRepo.FindByEndpointSince(ctx, endpoint.ID, since)
	if err != nil {
		return EndpointView{}, internal(err, "查询24小时探测结果失败")
	}

	return EndpointView{
		Endpoint:            endpoint,
		IsHealthy:           health.IsHealthy(recent),
		CurrentStatus:       health.CurrentStatus(recent),
		AverageResponseTime: health.AverageResponseTime(successful),
		Uptime24h:           health.Uptime(day),
	}, nil
}

func (s *EndpointService) views(ctx context.Context, endpoints []models.Endpoint) ([]EndpointView, error) {
	items := make([]EndpointView, 0, len(endpoints))
	for _, endpoint := range endpoints {
		view, err := s.View(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		items = append(items, view)
	}
	return items, nil
}

// List 按条件分页查询端点
func (s *EndpointService) List(ctx context.Context, q repo.EndpointQuery) ([]EndpointView, int64, error) {
	endpoints, total, err := s.EndpointRepo.FindAll(ctx, q)
	if err != nil {
		return nil, 0, internal(err, "查询端点失败")
	}
	items, err := s.views(ctx, endpoints)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByProvider 按提供商查询端点
func (s *EndpointService) ListByProvider(ctx context.Context, provider models.Provider) ([]models.Endpoint, error) {
	endpoints, err := s.EndpointRepo.FindByProvider(ctx, provider)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	return endpoints, nil
}

// ListActive 查询满足调度条件的端点
func (s *EndpointService) ListActive(ctx context.Context) ([]models.Endpoint, error) {
	endpoints, err := s.EndpointRepo.FindActive(ctx)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	return endpoints, nil
}

// HealthyEndpoints 当前健康的活跃端点
func (s *EndpointService) HealthyEndpoints(ctx context.Context) ([]EndpointView, error) {
	return s.filterActive(ctx, true)
}

// UnhealthyEndpoints 当前不健康的活跃端点
func (s *EndpointService) UnhealthyEndpoints(ctx context.Context) ([]EndpointView, error) {
	return s.filterActive(ctx, false)
}

func (s *EndpointService) filterActive(ctx context.Context, healthy bool) ([]EndpointView, error) {
	endpoints, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, endpoints)
	if err != nil {
		return nil, err
	}
	items := make([]EndpointView, 0, len(views))
	for _, view := range views {
		if view.IsHealthy == healthy {
			items = append(items, view)
		}
	}
	return items, nil
}

// PresetsFor 返回提供商的预设端点
func (s *EndpointService) PresetsFor(provider models.Provider) []Preset {
	presets := presetCatalog[provider]
	items := make([]Preset, 0, len(presets))
	for _, preset := range presets {
		preset.Provider = provider
		items = append(items, preset)
	}
	return items
}

// CreatePresets 注册提供商的预设端点，URL 已存在的预设直接跳过
func (s *EndpointService) CreatePresets(ctx context.Context, provider models.Provider, createdBy string) ([]models.Endpoint, error) {
	presets := s.PresetsFor(provider)
	if len(presets) == 0 {
		return nil, invalidInput("no presets available for provider %s", provider)
	}

	created := make([]models.Endpoint, 0, len(presets))
	for _, preset := range presets {
		endpoint, err := s.Register(ctx, &EndpointRequest{
			Name:             preset.Name,
			Description:      preset.Description,
			URL:              preset.URL,
			Method:           preset.Method,
			Provider:         provider,
			IntervalSeconds:  models.DefaultIntervalSeconds,
			ExpectedResponse: preset.ExpectedResponse,
			CreatedBy:        createdBy,
		})
		if errors.Is(err, ErrConflict) {
			s.logger.Debug("预设端点已存在，跳过",
				zap.String("provider", string(provider)),
				zap.String("url", preset.URL))
			continue
		}
		if err != nil {
			return nil, err
		}
		created = append(created, *endpoint)
	}
	return created, nil
}

// BulkUpdate 批量更新状态和开关，单个端点失败不影响其他端点
func (s *EndpointService) BulkUpdate(ctx context.Context, req *BulkUpdateRequest) (*BulkUpdateResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	result := &BulkUpdateResult{Errors: []string{}}
	for _, id := range req.EndpointIDs {
		var err error
		if req.Status != nil {
			_, err = s.SetLifecycleStatus(ctx, id, *req.Status)
		}
		if err == nil && req.IsActive != nil {
			_, err = s.SetActive(ctx, id, *req.IsActive)
		}
		if err == nil && req.EnableAlerts != nil {
			err = s.EndpointRepo.UpdateColumns(ctx, id, map[string]interface{}{"enable_alerts": *req.EnableAlerts})
			err = mapRepoError(err, "endpoint", id)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to update endpoint %s: %v", id, err))
			continue
		}
		result.Updated++
	}
	return result, nil
}

// Statistics 端点汇总统计
func (s *EndpointService) Statistics(ctx context.Context) (*EndpointStatistics, error) {
	endpoints, err := s.EndpointRepo.FindAllEndpoints(ctx)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	views, err := s.views(ctx, endpoints)
	if err != nil {
		return nil, err
	}

	stats := &EndpointStatistics{
		Total:      len(views),
		ByProvider: make(map[models.Provider]int),
		ByStatus:   make(map[models.EndpointStatus]int),
	}

	var uptimeSum float64
	var responseSum, responseCount int64
	for _, view := range views {
		if view.Schedulable() {
			stats.Active++
		} else {
			stats.Inactive++
		}
		switch view.CurrentStatus {
		case health.StatusHealthy:
			stats.Healthy++
		case health.StatusDegraded:
			stats.Degraded++
		case health.StatusDown:
			stats.Down++
		default:
			stats.Unknown++
		}
		stats.ByProvider[view.Provider]++
		stats.ByStatus[view.Status]++
		uptimeSum += view.Uptime24h
		if view.AverageResponseTime > 0 {
			responseSum += view.AverageResponseTime
			responseCount++
		}
	}

	if len(views) > 0 {
		stats.AverageUptime = health.Round2(uptimeSum / float64(len(views)))
	}
	if responseCount > 0 {
		stats.AverageResponseTime = int64(math.Round(float64(responseSum) / float64(responseCount)))
	}
	return stats, nil
}

// UpdateNextPingTime 记录本次探测时间并按间隔计算下次探测时间
func (s *EndpointService) UpdateNextPingTime(ctx context.Context, endpoint *models.Endpoint) error {
	now := s.now()
	last := now.UnixMilli()
	next := now.Add(endpoint.Interval()).UnixMilli()
	if err := s.EndpointRepo.UpdateSchedule(ctx, endpoint.ID, last, next); err != nil {
		return mapRepoError(err, "endpoint", endpoint.ID)
	}
	endpoint.LastPingAt = &last
	endpoint.NextPingAt = &next
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func defaultBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
