package service

import (
	"context"
	"time"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/metric"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/repo"
	"github.com/go-orz/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 自定义报告维度
const (
	ReportMetricUptime      = "uptime"
	ReportMetricPerformance = "performance"
	ReportMetricIncidents   = "incidents"

	GroupByEndpoint = "endpoint"
	GroupByProvider = "provider"
	GroupByDay      = "day"
	GroupByHour     = "hour"
)

// UptimeSource 查询端点在时间窗口内的可用率
type UptimeSource interface {
	EndpointUptime(ctx context.Context, endpointID string, window time.Duration) (float64, error)
}

// AnalyticsService 基于探测结果计算可用率、性能和故障等统计
type AnalyticsService struct {
	logger       *zap.Logger
	endpointRepo *repo.EndpointRepo
	resultRepo   *repo.PingResultRepo
	globalCache  cache.Cache[string, *metric.GlobalMetrics]
	now          func() time.Time
	loc          *time.Location
}

func NewAnalyticsService(logger *zap.Logger, db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{
		logger:       logger,
		endpointRepo: repo.NewEndpointRepo(db),
		resultRepo:   repo.NewPingResultRepo(db),
		globalCache:  cache.New[string, *metric.GlobalMetrics](time.Minute),
		now:          time.Now,
		loc:          time.Local,
	}
}

// CustomReportRequest 自定义报告请求
type CustomReportRequest struct {
	EndpointIDs    []string          `json:"endpointIds"`
	Providers      []models.Provider `json:"providers"`
	StartDate      time.Time         `json:"startDate" validate:"required"`
	EndDate        time.Time         `json:"endDate" validate:"required"`
	IncludeMetrics []string          `json:"includeMetrics" validate:"omitempty,dive,oneof=uptime performance incidents"`
	GroupBy        string            `json:"groupBy" validate:"omitempty,oneof=endpoint provider day hour"`
}

// CustomReportGroup 自定义报告中的一个分组
type CustomReportGroup struct {
	Key              string                    `json:"key"`
	Label            string                    `json:"label,omitempty"`
	TotalChecks      int                       `json:"totalChecks"`
	SuccessfulChecks int                       `json:"successfulChecks"`
	FailedChecks     int                       `json:"failedChecks"`
	UptimePercentage *float64                  `json:"uptimePercentage,omitempty"`
	ResponseTime     *metric.ResponseTimeStats `json:"responseTime,omitempty"`
	IncidentsByType  map[models.PingStatus]int `json:"incidentsByType,omitempty"`
}

// CustomReport 自定义报告
type CustomReport struct {
	StartDate    int64               `json:"startDate"`
	EndDate      int64               `json:"endDate"`
	GroupBy      string              `json:"groupBy"`
	Metrics      []string            `json:"metrics"`
	TotalResults int                 `json:"totalResults"`
	Groups       []CustomReportGroup `json:"groups"`
}

// endpointsInScope 指定 endpointID 时只返回该端点，否则返回全部端点
func (s *AnalyticsService) endpointsInScope(ctx context.Context, endpointID string) ([]models.Endpoint, error) {
	if endpointID != "" {
		endpoint, err := s.endpointRepo.FindById(ctx, endpointID)
		if err != nil {
			return nil, mapRepoError(err, "endpoint", endpointID)
		}
		return []models.Endpoint{endpoint}, nil
	}
	endpoints, err := s.endpointRepo.FindAllEndpoints(ctx)
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	return endpoints, nil
}

// resultsByEndpoint 查询窗口内的结果并按端点分组，每组按时间升序
func (s *AnalyticsService) resultsByEndpoint(ctx context.Context, endpoints []models.Endpoint, w metric.Window, all bool) (map[string][]models.PingResult, error) {
	var ids []string
	if !all {
		ids = make([]string, 0, len(endpoints))
		for _, e := range endpoints {
			ids = append(ids, e.ID)
		}
	}
	results, err := s.resultRepo.FindBetween(ctx, ids, w.Start, w.End)
	if err != nil {
		return nil, internal(err, "查询探测结果失败")
	}
	grouped := make(map[string][]models.PingResult, len(endpoints))
	for _, r := range results {
		grouped[r.EndpointID] = append(grouped[r.EndpointID], r)
	}
	return grouped, nil
}

func (s *AnalyticsService) load(ctx context.Context, endpointID string, w metric.Window) ([]models.Endpoint, map[string][]models.PingResult, error) {
	endpoints, err := s.endpointsInScope(ctx, endpointID)
	if err != nil {
		return nil, nil, err
	}
	if len(endpoints) == 0 {
		return endpoints, map[string][]models.PingResult{}, nil
	}
	grouped, err := s.resultsByEndpoint(ctx, endpoints, w, endpointID == "")
	if err != nil {
		return nil, nil, err
	}
	return endpoints, grouped, nil
}

// Uptime 可用率统计，endpointID 为空时统计全部端点
func (s *AnalyticsService) Uptime(ctx context.Context, endpointID string, period string) ([]metric.UptimeMetrics, error) {
	w := metric.WindowOf(metric.ParsePeriod(period), s.now())
	return s.uptimeIn(ctx, endpointID, w)
}

func (s *AnalyticsService) uptimeIn(ctx context.Context, endpointID string, w metric.Window) ([]metric.UptimeMetrics, error) {
	endpoints, grouped, err := s.load(ctx, endpointID, w)
	if err != nil {
		return nil, err
	}
	items := make([]metric.UptimeMetrics, 0, len(endpoints))
	for i := range endpoints {
		items = append(items, metric.ComputeUptime(&endpoints[i], grouped[endpoints[i].ID], w))
	}
	return items, nil
}

// Performance 响应时间分布和吞吐量
func (s *AnalyticsService) Performance(ctx context.Context, endpointID string, period string) ([]metric.PerformanceMetrics, error) {
	w := metric.WindowOf(metric.ParsePeriod(period), s.now())
	endpoints, grouped, err := s.load(ctx, endpointID, w)
	if err != nil {
		return nil, err
	}
	items := make([]metric.PerformanceMetrics, 0, len(endpoints))
	for i := range endpoints {
		items = append(items, metric.ComputePerformance(&endpoints[i], grouped[endpoints[i].ID], w))
	}
	return items, nil
}

// Incidents 故障统计
func (s *AnalyticsService) Incidents(ctx context.Context, endpointID string, period string) ([]metric.IncidentMetrics, error) {
	w := metric.WindowOf(metric.ParsePeriod(period), s.now())
	endpoints, grouped, err := s.load(ctx, endpointID, w)
	if err != nil {
		return nil, err
	}
	items := make([]metric.IncidentMetrics, 0, len(endpoints))
	for i := range endpoints {
		items = append(items, metric.ComputeIncidents(&endpoints[i], grouped[endpoints[i].ID], w, s.loc))
	}
	return items, nil
}

// Comparison 对比当前窗口与紧邻其前的窗口
func (s *AnalyticsService) Comparison(ctx context.Context, endpointID string, currentPeriod, previousPeriod string) (*metric.ComparisonMetrics, error) {
	if endpointID == "" {
		return nil, invalidInput("endpointId is required")
	}
	current := metric.ParsePeriod(currentPeriod)
	previous := metric.ParsePeriod(previousPeriod)

	now := s.now()
	currentWindow := metric.WindowOf(current, now)
	previousEnd := time.UnixMilli(currentWindow.Start)
	previousWindow := metric.WindowOf(previous, previousEnd)

	cur, err := s.uptimeIn(ctx, endpointID, currentWindow)
	if err != nil {
		return nil, err
	}
	prev, err := s.uptimeIn(ctx, endpointID, previousWindow)
	if err != nil {
		return nil, err
	}

	return &metric.ComparisonMetrics{
		Current:        cur[0],
		Previous:       prev[0],
		CurrentPeriod:  current,
		PreviousPeriod: previous,
		Change:         metric.Compare(cur[0], prev[0]),
	}, nil
}

// Global 全局指标，结果缓存 1 分钟
func (s *AnalyticsService) Global(ctx context.Context, period string) (*metric.GlobalMetrics, error) {
	p := metric.ParsePeriod(period)
	cacheKey := "global:" + string(p)
	if cached, ok := s.globalCache.Get(cacheKey); ok {
		return cached, nil
	}

	now := s.now()
	w := metric.WindowOf(p, now)
	endpoints, grouped, err := s.load(ctx, "", w)
	if err != nil {
		return nil, err
	}

	items := make([]metric.UptimeMetrics, 0, len(endpoints))
	var all []models.PingResult
	active := 0
	for i := range endpoints {
		if endpoints[i].Schedulable() {
			active++
		}
		results := grouped[endpoints[i].ID]
		items = append(items, metric.ComputeUptime(&endpoints[i], results, w))
		all = append(all, results...)
	}

	overview, top, worst := metric.Summarize(items)
	overview.TotalEndpoints = len(endpoints)
	overview.ActiveEndpoints = active

	today := metric.TruncateTime(now, 24*time.Hour, s.loc).UnixMilli()
	if overview.TotalChecksToday, err = s.resultRepo.CountSince(ctx, today, false); err != nil {
		return nil, internal(err, "统计今日探测次数失败")
	}
	if overview.TotalIncidentsToday, err = s.resultRepo.CountSince(ctx, today, true); err != nil {
		return nil, internal(err, "统计今日故障次数失败")
	}

	global := &metric.GlobalMetrics{
		Period:          p,
		Overview:        overview,
		Trends:          metric.TrendSeries(metric.Buckets(all, metric.BucketSize(p), s.loc)),
		TopPerformers:   top,
		WorstPerformers: worst,
		GeneratedAt:     now.UnixMilli(),
	}
	s.globalCache.Set(cacheKey, global, time.Minute)
	return global, nil
}

// SLA 生成 SLA 报告，窗口只支持 30d 和 90d
func (s *AnalyticsService) SLA(ctx context.Context, endpointID string, target float64, period string) ([]metric.SLAReport, error) {
	if target == 0 {
		target = metric.DefaultSLATarget
	}
	if target < 0 || target > 100 {
		return nil, invalidInput("sla target must be between 0 and 100, got %v", target)
	}
	p := metric.Period(period)
	if p != metric.Period90d {
		p = metric.Period30d
	}

	items, err := s.uptimeIn(ctx, endpointID, metric.WindowOf(p, s.now()))
	if err != nil {
		return nil, err
	}
	reports := make([]metric.SLAReport, 0, len(items))
	for _, m := range items {
		reports = append(reports, metric.BuildSLAReport(m, target, p))
	}
	return reports, nil
}

// Trends 端点在窗口内按小时或按天的趋势
func (s *AnalyticsService) Trends(ctx context.Context, endpointID string, period string) (*metric.TrendReport, error) {
	p := metric.ParsePeriod(period)
	endpoint, err := s.endpointRepo.FindById(ctx, endpointID)
	if err != nil {
		return nil, mapRepoError(err, "endpoint", endpointID)
	}
	w := metric.WindowOf(p, s.now())
	results, err := s.resultRepo.FindByEndpointSince(ctx, endpointID, w.Start)
	if err != nil {
		return nil, internal(err, "查询探测结果失败")
	}

	size := metric.BucketSize(p)
	interval := "day"
	if size < 24*time.Hour {
		interval = "hour"
	}
	return &metric.TrendReport{
		EndpointID:   endpoint.ID,
		EndpointName: endpoint.Name,
		Period:       p,
		Interval:     interval,
		Series:       metric.TrendSeries(metric.Buckets(results, size, s.loc)),
	}, nil
}

// Custom 按时间范围和维度生成自定义报告
func (s *AnalyticsService) Custom(ctx context.Context, req *CustomReportRequest) (*CustomReport, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, invalidInput("endDate must be after startDate")
	}

	groupBy := req.GroupBy
	if groupBy == "" {
		groupBy = GroupByEndpoint
	}
	metrics := req.IncludeMetrics
	if len(metrics) == 0 {
		metrics = []string{ReportMetricUptime, ReportMetricPerformance, ReportMetricIncidents}
	}

	report := &CustomReport{
		StartDate: req.StartDate.UnixMilli(),
		EndDate:   req.EndDate.UnixMilli(),
		GroupBy:   groupBy,
		Metrics:   metrics,
		Groups:    []CustomReportGroup{},
	}

	var endpoints []models.Endpoint
	var err error
	if len(req.EndpointIDs) > 0 {
		endpoints, err = s.endpointRepo.FindByIds(ctx, req.EndpointIDs)
	} else {
		endpoints, err = s.endpointRepo.FindAllEndpoints(ctx)
	}
	if err != nil {
		return nil, internal(err, "查询端点失败")
	}
	endpoints = filterProviders(endpoints, req.Providers)
	if len(endpoints) == 0 {
		return report, nil
	}

	byID := make(map[string]*models.Endpoint, len(endpoints))
	ids := make([]string, 0, len(endpoints))
	for i := range endpoints {
		byID[endpoints[i].ID] = &endpoints[i]
		ids = append(ids, endpoints[i].ID)
	}
	results, err := s.resultRepo.FindBetween(ctx, ids, report.StartDate, report.EndDate)
	if err != nil {
		return nil, internal(err, "查询探测结果失败")
	}
	report.TotalResults = len(results)

	groups := make(map[string][]models.PingResult)
	labels := make(map[string]string)
	var order []string
	for _, r := range results {
		key, label := s.groupKey(groupBy, r, byID[r.EndpointID])
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			labels[key] = label
		}
		groups[key] = append(groups[key], r)
	}

	for _, key := range order {
		report.Groups = append(report.Groups, buildReportGroup(key, labels[key], groups[key], metrics))
	}
	return report, nil
}

func (s *AnalyticsService) groupKey(groupBy string, r models.PingResult, endpoint *models.Endpoint) (string, string) {
	switch groupBy {
	case GroupByProvider:
		return string(endpoint.Provider), ""
	case GroupByDay:
		return r.CreatedTime().In(s.loc).Format("2006-01-02"), ""
	case GroupByHour:
		return r.CreatedTime().In(s.loc).Format("2006-01-02 15:00"), ""
	default:
		return endpoint.ID, endpoint.Name
	}
}

func buildReportGroup(key, label string, results []models.PingResult, metrics []string) CustomReportGroup {
	group := CustomReportGroup{Key: key, Label: label, TotalChecks: len(results)}
	times := make([]int64, 0, len(results))
	byType := make(map[models.PingStatus]int)
	for _, r := range results {
		if r.IsSuccess {
			group.SuccessfulChecks++
			if r.ResponseTimeMs > 0 {
				times = append(times, r.ResponseTimeMs)
			}
			continue
		}
		group.FailedChecks++
		byType[r.Status]++
	}

	for _, m := range metrics {
		switch m {
		case ReportMetricUptime:
			uptime := health.Uptime(results)
			group.UptimePercentage = &uptime
		case ReportMetricPerformance:
			stats := metric.ResponseTimeDistribution(times)
			group.ResponseTime = &stats
		case ReportMetricIncidents:
			group.IncidentsByType = byType
		}
	}
	return group
}

func filterProviders(endpoints []models.Endpoint, providers []models.Provider) []models.Endpoint {
	if len(providers) == 0 {
		return endpoints
	}
	allowed := make(map[models.Provider]bool, len(providers))
	for _, p := range providers {
		allowed[p] = true
	}
	filtered := endpoints[:0]
	for _, e := range endpoints {
		if allowed[e.Provider] {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// EndpointUptime 端点在 window 内的可用率，没有数据时为 100
func (s *AnalyticsService) EndpointUptime(ctx context.Context, endpointID string, window time.Duration) (float64, error) {
	since := s.now().Add(-window).UnixMilli()
	results, err := s.resultRepo.FindByEndpointSince(ctx, endpointID, since)
	if err != nil {
		return 0, internal(err, "查询探测结果失败")
	}
	return health.Uptime(results), nil
}
