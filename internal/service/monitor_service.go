package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/metric"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/notifier"
	"github.com/dushixiang/apiping/internal/prober"
	"github.com/dushixiang/apiping/internal/protocol"
	"github.com/dushixiang/apiping/internal/repo"
	ws "github.com/dushixiang/apiping/internal/websocket"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 系统整体状态
const (
	SystemHealthy   = "healthy"
	SystemDegraded  = "degraded"
	SystemUnhealthy = "unhealthy"
)

// MonitorService 手动探测、结果处理以及面向接口层的汇总查询
type MonitorService struct {
	logger              *zap.Logger
	endpointRepo        *repo.EndpointRepo
	resultRepo          *repo.PingResultRepo
	endpointService     *EndpointService
	analyticsService    *AnalyticsService
	notificationService *NotificationService
	prober              *prober.Prober
	wsManager           *ws.Manager
	now                 func() time.Time
	loc                 *time.Location
}

func NewMonitorService(logger *zap.Logger, db *gorm.DB, p *prober.Prober, endpointService *EndpointService, analyticsService *AnalyticsService, notificationService *NotificationService, wsManager *ws.Manager) *MonitorService {
	if endpointService != nil && notificationService != nil {
		endpointService.OnRemove(notificationService.Forget)
	}
	return &MonitorService{
		logger:              logger,
		endpointRepo:        repo.NewEndpointRepo(db),
		resultRepo:          repo.NewPingResultRepo(db),
		endpointService:     endpointService,
		analyticsService:    analyticsService,
		notificationService: notificationService,
		prober:              p,
		wsManager:           wsManager,
		now:                 time.Now,
		loc:                 time.Local,
	}
}

// ManualPingOptions 手动探测选项
type ManualPingOptions struct {
	SaveResult     bool `json:"saveResult"`
	IncludeDetails bool `json:"includeDetails"`
}

// PingResponse 手动探测的返回结果
type PingResponse struct {
	EndpointID     string            `json:"endpointId"`
	EndpointName   string            `json:"endpointName"`
	Status         models.PingStatus `json:"status"`
	IsSuccess      bool              `json:"isSuccess"`
	HTTPStatusCode *int              `json:"httpStatusCode,omitempty"`
	ResponseTimeMs int64             `json:"responseTimeMs"`
	ErrorMessage   string            `json:"errorMessage,omitempty"`
	Timings        models.Timings    `json:"timings"`
	Result         models.PingResult `json:"result"`
}

func newPingResponse(endpointName string, result models.PingResult) PingResponse {
	return PingResponse{
		EndpointID:     result.EndpointID,
		EndpointName:   endpointName,
		Status:         result.Status,
		IsSuccess:      result.IsSuccess,
		HTTPStatusCode: result.HTTPStatusCode,
		ResponseTimeMs: result.ResponseTimeMs,
		ErrorMessage:   result.ErrorMessage,
		Timings:        result.Timings.Data(),
		Result:         result,
	}
}

// Probe 执行单次探测，不保存结果
func (s *MonitorService) Probe(ctx context.Context, endpoint *models.Endpoint, attempt int, includeDetails bool) models.PingResult {
	return s.prober.Probe(ctx, endpoint, attempt, prober.Options{IncludeDetails: includeDetails})
}

// ProcessResult 保存结果、判断告警并推送到实时订阅。保存失败时不更新告警状态
func (s *MonitorService) ProcessResult(ctx context.Context, endpoint *models.Endpoint, result *models.PingResult) error {
	if err := s.resultRepo.Create(ctx, result); err != nil {
		s.logger.Error("保存探测结果失败",
			zap.String("endpointId", endpoint.ID),
			zap.String("status", string(result.Status)),
			zap.Error(err))
		return internal(err, "保存探测结果失败")
	}

	var events []notifier.Event
	if s.notificationService != nil {
		events = s.notificationService.Evaluate(ctx, endpoint, result)
	}

	if len(events) > 0 {
		if err := s.resultRepo.MarkAlertSent(ctx, result.ID); err != nil {
			s.logger.Warn("更新告警标记失败", zap.String("resultId", result.ID), zap.Error(err))
		}
		s.notificationService.Dispatch(endpoint, events)
	}

	s.publish(protocol.MessageTypePingResult, result)
	for _, event := range events {
		s.publish(protocol.MessageTypeAlert, event)
	}
	return nil
}

func (s *MonitorService) publish(messageType protocol.MessageType, payload interface{}) {
	if s.wsManager == nil {
		return
	}
	message, err := protocol.Encode(messageType, payload)
	if err != nil {
		s.logger.Warn("序列化推送消息失败", zap.String("type", string(messageType)), zap.Error(err))
		return
	}
	s.wsManager.Broadcast(message)
}

// PingEndpoint 立即探测一个端点，只尝试一次且不影响调度时间
func (s *MonitorService) PingEndpoint(ctx context.Context, endpointID string, opts ManualPingOptions) (*PingResponse, error) {
	endpoint, err := s.endpointRepo.FindById(ctx, endpointID)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", endpointID)
	}
	response := s.pingOne(ctx, &endpoint, opts)
	return &response, nil
}

func (s *MonitorService) pingOne(ctx context.Context, endpoint *models.Endpoint, opts ManualPingOptions) PingResponse {
	result := s.Probe(ctx, endpoint, 1, opts.IncludeDetails)
	if opts.SaveResult {
		if err := s.ProcessResult(ctx, endpoint, &result); err != nil {
			s.logger.Warn("手动探测结果未保存", zap.String("endpointId", endpoint.ID), zap.Error(err))
		}
	}
	s.logger.Debug("手动探测",
		zap.String("endpointId", endpoint.ID),
		zap.String("status", string(result.Status)),
		zap.Int64("responseTimeMs", result.ResponseTimeMs))
	return newPingResponse(endpoint.Name, result)
}

// BulkPing 并发探测多个端点，返回顺序与 ids 一致，不存在的端点返回 unknown_error 结果
func (s *MonitorService) BulkPing(ctx context.Context, ids []string, opts ManualPingOptions) ([]PingResponse, error) {
	if len(ids) == 0 {
		return nil, invalidInput("endpointIds must not be empty")
	}
	endpoints, err := s.endpointRepo.FindByIds(ctx, ids)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	byID := make(map[string]*models.Endpoint, len(endpoints))
	for i := range endpoints {
		byID[endpoints[i].ID] = &endpoints[i]
	}

	return iter.Map(ids, func(id *string) PingResponse {
		endpoint, ok := byID[*id]
		if !ok {
			return newPingResponse("", s.missingEndpointResult(*id))
		}
		return s.pingOne(ctx, endpoint, opts)
	}), nil
}

func (s *MonitorService) missingEndpointResult(endpointID string) models.PingResult {
	return models.PingResult{
		ID:            uuid.NewString(),
		EndpointID:    endpointID,
		Status:        models.PingStatusUnknownError,
		ErrorMessage:  "endpoint not found",
		AttemptNumber: 1,
		CreatedAt:     s.now().UnixMilli(),
	}
}

// PingAllActive 并发探测所有满足调度条件的端点
func (s *MonitorService) PingAllActive(ctx context.Context, opts ManualPingOptions) ([]PingResponse, error) {
	endpoints, err := s.endpointRepo.FindActive(ctx)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	if len(endpoints) == 0 {
		return []PingResponse{}, nil
	}
	return iter.Map(endpoints, func(endpoint *models.Endpoint) PingResponse {
		return s.pingOne(ctx, endpoint, opts)
	}), nil
}

// Results 分页查询探测结果
func (s *MonitorService) Results(ctx context.Context, q repo.ResultQuery) ([]models.PingResult, int64, error) {
	results, total, err := s.resultRepo.FindPage(ctx, q)
	if err != nil {
		return nil, 0, internal(err, "查询探测结果失败")
	}
	return results, total, nil
}

// Result 获取单个探测结果
func (s *MonitorService) Result(ctx context.Context, id string) (*models.PingResult, error) {
	result, err := s.resultRepo.FindById(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "ping result", id)
	}
	return &result, nil
}

// EndpointResults 分页查询一个端点的探测结果
func (s *MonitorService) EndpointResults(ctx context.Context, endpointID string, q repo.ResultQuery) ([]models.PingResult, int64, error) {
	if _, err := s.endpointRepo.FindById(ctx, endpointID); err != nil {
		return nil, 0, mapRepoError(err, "endpoint", endpointID)
	}
	q.EndpointID = endpointID
	return s.Results(ctx, q)
}

// DailyHistory 单日汇总
type DailyHistory struct {
	Date                string  `json:"date"`
	UptimePercentage    float64 `json:"uptimePercentage"`
	AverageResponseTime int64   `json:"averageResponseTime"`
	TotalPings          int     `json:"totalPings"`
	SuccessfulPings     int     `json:"successfulPings"`
	Incidents           int     `json:"incidents"`
}

// EndpointHistory 端点按天汇总的历史
type EndpointHistory struct {
	Endpoint models.Endpoint `json:"endpoint"`
	History  []DailyHistory  `json:"history"`
}

// EndpointHistory 最近 days 天(含今天)按天汇总，按日期升序
func (s *MonitorService) EndpointHistory(ctx context.Context, endpointID string, days int) (*EndpointHistory, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	endpoint, err := s.endpointRepo.FindById(ctx, endpointID)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", endpointID)
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	start := today.AddDate(0, 0, -(days - 1))

	results, err := s.resultRepo.FindByEndpointSince(ctx, endpointID, start.UnixMilli())
	if err != nil {
		return nil, internal(err, "查询探测结果失败")
	}

	byDay := make(map[string][]models.PingResult, days)
	for _, r := range results {
		key := r.CreatedTime().In(s.loc).Format(time.DateOnly)
		byDay[key] = append(byDay[key], r)
	}

	history := make([]DailyHistory, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		dayResults := byDay[date]

		successful := 0
		var responseSum int64
		for _, r := range dayResults {
			if r.IsSuccess {
				successful++
				responseSum += r.ResponseTimeMs
			}
		}
		var average int64
		if successful > 0 {
			average = int64(math.Round(float64(responseSum) / float64(successful)))
		}

		history = append(history, DailyHistory{
			Date:                date,
			UptimePercentage:    health.Uptime(dayResults),
			AverageResponseTime: average,
			TotalPings:          len(dayResults),
			SuccessfulPings:     successful,
			Incidents:           len(dayResults) - successful,
		})
	}

	return &EndpointHistory{Endpoint: endpoint, History: history}, nil
}

// SystemHealth 系统整体健康状况
type SystemHealth struct {
	Status            string `json:"status"`
	TotalEndpoints    int    `json:"totalEndpoints"`
	ActiveEndpoints   int    `json:"activeEndpoints"`
	HealthyEndpoints  int    `json:"healthyEndpoints"`
	DegradedEndpoints int    `json:"degradedEndpoints"`
	DownEndpoints     int    `json:"downEndpoints"`
	LastUpdated       int64  `json:"lastUpdated"`
}

// SystemHealth 超过 10% 的活跃端点宕机为 unhealthy，超过 20% 降级为 degraded
func (s *MonitorService) SystemHealth(ctx context.Context) (*SystemHealth, error) {
	endpoints, err := s.endpointRepo.FindAllEndpoints(ctx)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}

	sh := &SystemHealth{
		TotalEndpoints: len(endpoints),
		LastUpdated:    s.now().UnixMilli(),
	}
	for _, endpoint := range endpoints {
		if !endpoint.Schedulable() {
			continue
		}
		sh.ActiveEndpoints++

		recent, err := s.resultRepo.FindRecentByEndpoint(ctx, endpoint.ID, health.CurrentStatusWindow)
		if err != nil {
			return nil, internal(err, "查询最近探测结果失败")
		}
		switch health.CurrentStatus(recent) {
		case health.StatusHealthy:
			sh.HealthyEndpoints++
		case health.StatusDegraded:
			sh.DegradedEndpoints++
		case health.StatusDown:
			sh.DownEndpoints++
		}
	}

	active := float64(sh.ActiveEndpoints)
	switch {
	case float64(sh.DownEndpoints) > active*0.1:
		sh.Status = SystemUnhealthy
	case float64(sh.DegradedEndpoints) > active*0.2:
		sh.Status = SystemDegraded
	default:
		sh.Status = SystemHealthy
	}
	return sh, nil
}

// EndpointHealth 单个端点的健康状况
type EndpointHealth struct {
	Endpoint        EndpointView       `json:"endpoint"`
	CurrentStatus   health.Status      `json:"currentStatus"`
	UptimePercent   float64            `json:"uptimePercentage"`
	AverageResponse int64              `json:"averageResponseTime"`
	LastPingResult  *models.PingResult `json:"lastPingResult"`
	RecentIncidents int                `json:"recentIncidents"` // 最近 24 小时失败次数
}

func (s *MonitorService) EndpointHealth(ctx context.Context, endpointID string) (*EndpointHealth, error) {
	view, err := s.endpointService.GetView(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	eh := &EndpointHealth{
		Endpoint:        *view,
		CurrentStatus:   view.CurrentStatus,
		UptimePercent:   view.Uptime24h,
		AverageResponse: view.AverageResponseTime,
	}

	last, err := s.resultRepo.FindRecentByEndpoint(ctx, endpointID, 1)
	if err != nil {
		return nil, internal(err, "查询最近探测结果失败")
	}
	if len(last) > 0 {
		eh.LastPingResult = &last[0]
	}

	since := s.now().Add(-24 * time.Hour).UnixMilli()
	day, err := s.resultRepo.FindByEndpointSince(ctx, endpointID, since)
	if err != nil {
		return nil, internal(err, "查询探测结果失败")
	}
	for _, r := range day {
		if !r.IsSuccess {
			eh.RecentIncidents++
		}
	}
	return eh, nil
}

// HealthOverview 健康概览
type HealthOverview struct {
	Overview           *EndpointStatistics `json:"overview"`
	ActiveEndpoints    int                 `json:"activeEndpoints"`
	HealthyEndpoints   int                 `json:"healthyEndpoints"`
	UnhealthyEndpoints int                 `json:"unhealthyEndpoints"`
	CriticalEndpoints  int                 `json:"criticalEndpoints"`
	DegradedEndpoints  int                 `json:"degradedEndpoints"`
}

func (s *MonitorService) HealthOverview(ctx context.Context) (*HealthOverview, error) {
	stats, err := s.endpointService.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	healthy, err := s.endpointService.HealthyEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	unhealthy, err := s.endpointService.UnhealthyEndpoints(ctx)
	if err != nil {
		return nil, err
	}

	overview := &HealthOverview{
		Overview:           stats,
		ActiveEndpoints:    len(healthy) + len(unhealthy),
		HealthyEndpoints:   len(healthy),
		UnhealthyEndpoints: len(unhealthy),
	}
	for _, view := range unhealthy {
		switch view.CurrentStatus {
		case health.StatusDown:
			overview.CriticalEndpoints++
		case health.StatusDegraded:
			overview.DegradedEndpoints++
		}
	}
	return overview, nil
}

// 导出格式
const (
	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"
)

// ExportRequest 导出请求
type ExportRequest struct {
	EndpointID string     `json:"endpointId"`
	StartDate  *time.Time `json:"startDate"`
	EndDate    *time.Time `json:"endDate"`
	Format     string     `json:"format" validate:"omitempty,oneof=csv json"`
	Limit      int        `json:"limit" validate:"omitempty,min=1,max=100000"`
}

// ExportFile 导出文件
type ExportFile struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

var exportColumns = []string{
	"id", "endpointId", "status", "isSuccess", "httpStatusCode", "responseTimeMs",
	"responseSize", "errorMessage", "attemptNumber", "alertSent", "performanceIssue", "createdAt",
}

// ExportResults 按时间升序导出探测结果，默认 csv
func (s *MonitorService) ExportResults(ctx context.Context, req *ExportRequest) (*ExportFile, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	format := defaultString(req.Format, ExportFormatCSV)

	var start, end int64
	if req.StartDate != nil {
		start = req.StartDate.UnixMilli()
	}
	if req.EndDate != nil {
		end = req.EndDate.UnixMilli()
	}
	if start > 0 && end > 0 && start > end {
		return nil, invalidInput("startDate must not be after endDate")
	}
	if req.EndpointID != "" {
		if _, err := s.endpointRepo.FindById(ctx, req.EndpointID); err != nil {
			return nil, mapRepoError(err, "endpoint", req.EndpointID)
		}
	}

	results, err := s.resultRepo.FindForExport(ctx, req.EndpointID, start, end, req.Limit)
	if err != nil {
		return nil, internal(err, "查询探测结果失败")
	}

	filename := "ping-results-" + s.now().In(s.loc).Format(time.DateOnly)
	file := &ExportFile{}
	switch format {
	case ExportFormatJSON:
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return nil, internal(err, "序列化探测结果失败")
		}
		file.Filename = filename + ".json"
		file.MimeType = "application/json"
		file.Data = data
	default:
		data, err := resultsToCSV(results)
		if err != nil {
			return nil, internal(err, "生成 CSV 失败")
		}
		file.Filename = filename + ".csv"
		file.MimeType = "text/csv"
		file.Data = data
	}

	s.logger.Info("导出探测结果",
		zap.String("format", format),
		zap.String("endpointId", req.EndpointID),
		zap.Int("rows", len(results)))
	return file, nil
}

func resultsToCSV(results []models.PingResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}
	for _, r := range results {
		statusCode := ""
		if r.HTTPStatusCode != nil {
			statusCode = strconv.Itoa(*r.HTTPStatusCode)
		}
		record := []string{
			r.ID,
			r.EndpointID,
			string(r.Status),
			strconv.FormatBool(r.IsSuccess),
			statusCode,
			strconv.FormatInt(r.ResponseTimeMs, 10),
			strconv.FormatInt(r.ResponseSize, 10),
			r.ErrorMessage,
			strconv.Itoa(r.AttemptNumber),
			strconv.FormatBool(r.AlertSent),
			strconv.FormatBool(r.PerformanceIssue),
			r.CreatedTime().UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// UptimeReport 可用率报告
type UptimeReport struct {
	Period         metric.Period          `json:"period"`
	GeneratedAt    int64                  `json:"generatedAt"`
	TotalEndpoints int                    `json:"totalEndpoints"`
	OverallUptime  float64                `json:"overallUptime"`
	Endpoints      []metric.UptimeMetrics `json:"endpoints"`
}

// UptimeReport endpointID 为空时包含全部端点
func (s *MonitorService) UptimeReport(ctx context.Context, endpointID, period string) (*UptimeReport, error) {
	p := metric.ParsePeriod(period)
	rows, err := s.analyticsService.Uptime(ctx, endpointID, string(p))
	if err != nil {
		return nil, err
	}

	report := &UptimeReport{
		Period:         p,
		GeneratedAt:    s.now().UnixMilli(),
		TotalEndpoints: len(rows),
		OverallUptime:  100,
		Endpoints:      rows,
	}
	if len(rows) > 0 {
		var sum float64
		for _, row := range rows {
			sum += row.UptimePercentage
		}
		report.OverallUptime = health.Round2(sum / float64(len(rows)))
	}
	return report, nil
}

// PerformanceReport 性能报告
type PerformanceReport struct {
	Period              metric.Period               `json:"period"`
	GeneratedAt         int64                       `json:"generatedAt"`
	TotalRequests       int                         `json:"totalRequests"`
	AverageResponseTime int64                       `json:"averageResponseTime"`
	Endpoints           []metric.PerformanceMetrics `json:"endpoints"`
}

func (s *MonitorService) PerformanceReport(ctx context.Context, endpointID, period string) (*PerformanceReport, error) {
	p := metric.ParsePeriod(period)
	rows, err := s.analyticsService.Performance(ctx, endpointID, string(p))
	if err != nil {
		return nil, err
	}

	report := &PerformanceReport{
		Period:      p,
		GeneratedAt: s.now().UnixMilli(),
		Endpoints:   rows,
	}
	var weighted int64
	samples := 0
	for _, row := range rows {
		report.TotalRequests += row.SampleSize
		weighted += row.ResponseTime.Average * int64(row.SampleSize)
		samples += row.SampleSize
	}
	if samples > 0 {
		report.AverageResponseTime = int64(math.Round(float64(weighted) / float64(samples)))
	}
	return report, nil
}

// IncidentReport 故障报告，只包含有故障的端点
type IncidentReport struct {
	Period            metric.Period            `json:"period"`
	GeneratedAt       int64                    `json:"generatedAt"`
	TotalIncidents    int                      `json:"totalIncidents"`
	AffectedEndpoints int                      `json:"affectedEndpoints"`
	Endpoints         []metric.IncidentMetrics `json:"endpoints"`
}

func (s *MonitorService) IncidentReport(ctx context.Context, endpointID, period string) (*IncidentReport, error) {
	p := metric.ParsePeriod(period)
	rows, err := s.analyticsService.Incidents(ctx, endpointID, string(p))
	if err != nil {
		return nil, err
	}

	report := &IncidentReport{
		Period:      p,
		GeneratedAt: s.now().UnixMilli(),
		Endpoints:   make([]metric.IncidentMetrics, 0, len(rows)),
	}
	for _, row := range rows {
		if row.TotalIncidents == 0 {
			continue
		}
		report.TotalIncidents += row.TotalIncidents
		report.AffectedEndpoints++
		report.Endpoints = append(report.Endpoints, row)
	}
	return report, nil
}

// ScheduleCounters 调度器状态中使用的计数
type ScheduleCounters struct {
	ActiveEndpoints int64 `json:"activeEndpoints"`
	DueEndpoints    int64 `json:"dueEndpoints"`
	TotalPingsToday int64 `json:"totalPingsToday"`
}

func (s *MonitorService) ScheduleCounters(ctx context.Context) (*ScheduleCounters, error) {
	now := s.now()
	active, err := s.endpointRepo.CountActive(ctx)
	if err != nil {
		return nil, internal(err, "统计活跃端点失败")
	}
	due, err := s.endpointRepo.CountDue(ctx, now.UnixMilli())
	if err != nil {
		return nil, internal(err, "统计到期端点失败")
	}
	local := now.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	today, err := s.resultRepo.CountSince(ctx, midnight.UnixMilli(), false)
	if err != nil {
		return nil, internal(err, "统计今日探测次数失败")
	}
	return &ScheduleCounters{
		ActiveEndpoints: active,
		DueEndpoints:    due,
		TotalPingsToday: today,
	}, nil
}

// DueEndpoints 到期需要探测的端点
func (s *MonitorService) DueEndpoints(ctx context.Context) ([]models.Endpoint, error) {
	endpoints, err := s.endpointRepo.FindDue(ctx, s.now().UnixMilli())
	if err != nil {
		return nil, internal(err, "查询到期端点失败")
	}
	return endpoints, nil
}

// Reschedule 记录探测时间并计算下次探测时间
func (s *MonitorService) Reschedule(ctx context.Context, endpoint *models.Endpoint) error {
	return s.endpointService.UpdateNextPingTime(ctx, endpoint)
}

// Ready 数据库是否可用
func (s *MonitorService) Ready(ctx context.Context) bool {
	if _, err := s.endpointRepo.CountActive(ctx); err != nil {
		s.logger.Warn("数据库不可用", zap.Error(err))
		return false
	}
	return true
}
