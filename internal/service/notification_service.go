package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/notifier"
	"github.com/dushixiang/apiping/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// alertState 单个端点的告警状态
type alertState struct {
	failureCount    int
	streakStartedAt int64 // 本轮连续失败的第一次失败时间
	streakNotified  bool  // 本轮连续失败是否已经发送过失败通知
	lastSeen        int64
	lastNotified    map[notifier.EventType]int64
}

func (st *alertState) cooldownElapsed(eventType notifier.EventType, now int64, cooldown time.Duration) bool {
	last, ok := st.lastNotified[eventType]
	if !ok {
		return true
	}
	return now-last >= cooldown.Milliseconds()
}

// NotificationSettings 通知冷却时间设置
type NotificationSettings struct {
	FailureCooldownMinutes      int `json:"failureCooldownMinutes" validate:"omitempty,min=1,max=1440"`
	SlowResponseCooldownMinutes int `json:"slowResponseCooldownMinutes" validate:"omitempty,min=1,max=1440"`
	DowntimeCooldownMinutes     int `json:"downtimeCooldownMinutes" validate:"omitempty,min=1,max=1440"`
}

// NotificationStats 通知统计
type NotificationStats struct {
	TrackedEndpoints int                  `json:"trackedEndpoints"`
	FailingEndpoints int                  `json:"failingEndpoints"`
	EventsEmitted    int64                `json:"eventsEmitted"`
	Settings         NotificationSettings `json:"settings"`
}

// NotificationService 根据探测结果判断告警规则并发送通知，状态只保存在内存中
type NotificationService struct {
	logger       *zap.Logger
	endpointRepo *repo.EndpointRepo
	resultRepo   *repo.PingResultRepo
	notifier     *notifier.Notifier
	uptime       UptimeSource

	mu       sync.Mutex
	states   map[string]*alertState
	settings NotificationSettings
	stateTTL time.Duration

	emitted atomic.Int64
	now     func() time.Time
	async   bool
}

func NewNotificationService(logger *zap.Logger, db *gorm.DB, n *notifier.Notifier, uptime UptimeSource, cfg config.NotificationConfig) *NotificationService {
	ttl := time.Duration(cfg.StateTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NotificationService{
		logger:       logger,
		endpointRepo: repo.NewEndpointRepo(db),
		resultRepo:   repo.NewPingResultRepo(db),
		notifier:     n,
		uptime:       uptime,
		states:       make(map[string]*alertState),
		settings: NotificationSettings{
			FailureCooldownMinutes:      defaultInt(cfg.FailureCooldownMinutes, 15),
			SlowResponseCooldownMinutes: defaultInt(cfg.SlowResponseCooldownMinutes, 30),
			DowntimeCooldownMinutes:     defaultInt(cfg.DowntimeCooldownMinutes, 60),
		},
		stateTTL: ttl,
		now:      time.Now,
		async:    true,
	}
}

func (s *NotificationService) stateFor(endpointID string) *alertState {
	st, ok := s.states[endpointID]
	if !ok {
		st = &alertState{lastNotified: make(map[notifier.EventType]int64)}
		s.states[endpointID] = st
	}
	return st
}

// Evaluate 根据本次探测结果更新告警状态并返回需要发送的事件，有事件时设置 result.AlertSent
func (s *NotificationService) Evaluate(ctx context.Context, endpoint *models.Endpoint, result *models.PingResult) []notifier.Event {
	alerts := endpoint.Alerts()
	if !endpoint.EnableAlerts || alerts == nil {
		return nil
	}

	nowTime := s.now()
	now := nowTime.UnixMilli()
	threshold := alerts.FailureThreshold()

	var events []notifier.Event

	s.mu.Lock()
	settings := s.settings
	st := s.stateFor(endpoint.ID)
	st.lastSeen = now

	if result.IsSuccess {
		previous := st.failureCount
		streakStartedAt := st.streakStartedAt
		st.failureCount = 0
		st.streakStartedAt = 0
		st.streakNotified = false

		if previous >= threshold && alerts.RecoveryEnabled() {
			down := time.Duration(now-streakStartedAt) * time.Millisecond
			events = append(events, s.newEvent(endpoint, notifier.EventRecovery, notifier.SeverityMedium, nowTime,
				map[string]interface{}{"name": endpoint.Name},
				map[string]interface{}{
					"previousFailureCount": previous,
					"responseTime":         result.ResponseTimeMs,
					"recoveredAt":          nowTime.UTC().Format(time.RFC3339),
					"downDuration":         formatDuration(down),
					"downDurationMs":       down.Milliseconds(),
				}))
		}

		limit := alerts.ResponseTimeThresholdMs
		if limit > 0 && result.ResponseTimeMs > limit &&
			st.cooldownElapsed(notifier.EventSlowResponse, now, minutes(settings.SlowResponseCooldownMinutes)) {
			st.lastNotified[notifier.EventSlowResponse] = now
			events = append(events, s.newEvent(endpoint, notifier.EventSlowResponse, notifier.SeverityLow, nowTime,
				map[string]interface{}{"name": endpoint.Name, "responseTime": result.ResponseTimeMs, "threshold": limit},
				map[string]interface{}{
					"responseTime": result.ResponseTimeMs,
					"threshold":    limit,
					"grade":        health.PerformanceGrade(result.ResponseTimeMs),
				}))
		}
	} else {
		st.failureCount++
		if st.failureCount == 1 {
			st.streakStartedAt = result.CreatedAt
			if st.streakStartedAt == 0 {
				st.streakStartedAt = now
			}
		}

		if st.failureCount >= threshold && !st.streakNotified &&
			st.cooldownElapsed(notifier.EventFailure, now, minutes(settings.FailureCooldownMinutes)) {
			st.streakNotified = true
			st.lastNotified[notifier.EventFailure] = now
			details := map[string]interface{}{
				"consecutiveFailures": st.failureCount,
				"errorType":           result.Status,
				"errorMessage":        health.ErrorSummary(result),
				"responseTime":        result.ResponseTimeMs,
				"attemptNumber":       result.AttemptNumber,
			}
			if result.HTTPStatusCode != nil {
				details["httpStatusCode"] = *result.HTTPStatusCode
			}
			events = append(events, s.newEvent(endpoint, notifier.EventFailure, Severity(st.failureCount, result.Status), nowTime,
				map[string]interface{}{"name": endpoint.Name, "failures": st.failureCount},
				details))
		}
	}

	checkDowntime := alerts.UptimeThreshold > 0 &&
		st.cooldownElapsed(notifier.EventDowntimeAlert, now, minutes(settings.DowntimeCooldownMinutes))
	s.mu.Unlock()

	if checkDowntime && s.uptime != nil {
		if event, ok := s.checkDowntime(ctx, endpoint, alerts, nowTime, settings); ok {
			events = append(events, event)
		}
	}

	for i := range events {
		if events[i].Type == notifier.EventFailure {
			s.attachLastSuccess(ctx, endpoint.ID, &events[i])
		}
	}

	if len(events) > 0 {
		result.AlertSent = true
		s.emitted.Add(int64(len(events)))
	}
	return events
}

// checkDowntime 24 小时可用率低于阈值时生成 downtime_alert
func (s *NotificationService) checkDowntime(ctx context.Context, endpoint *models.Endpoint, alerts *models.AlertConfig, nowTime time.Time, settings NotificationSettings) (notifier.Event, bool) {
	uptime, err := s.uptime.EndpointUptime(ctx, endpoint.ID, 24*time.Hour)
	if err != nil {
		s.logger.Error("查询端点可用率失败", zap.String("endpointId", endpoint.ID), zap.Error(err))
		return notifier.Event{}, false
	}
	if uptime >= alerts.UptimeThreshold {
		return notifier.Event{}, false
	}

	now := nowTime.UnixMilli()
	s.mu.Lock()
	st := s.stateFor(endpoint.ID)
	if !st.cooldownElapsed(notifier.EventDowntimeAlert, now, minutes(settings.DowntimeCooldownMinutes)) {
		s.mu.Unlock()
		return notifier.Event{}, false
	}
	st.lastNotified[notifier.EventDowntimeAlert] = now
	s.mu.Unlock()

	return s.newEvent(endpoint, notifier.EventDowntimeAlert, notifier.SeverityHigh, nowTime,
		map[string]interface{}{"name": endpoint.Name, "uptime": uptime, "threshold": alerts.UptimeThreshold},
		map[string]interface{}{
			"currentUptime": uptime,
			"threshold":     alerts.UptimeThreshold,
		}), true
}

func (s *NotificationService) attachLastSuccess(ctx context.Context, endpointID string, event *notifier.Event) {
	results, err := s.resultRepo.FindRecentSuccessfulByEndpoint(ctx, endpointID, 1)
	if err != nil {
		s.logger.Warn("查询最后成功时间失败", zap.String("endpointId", endpointID), zap.Error(err))
		return
	}
	if len(results) == 0 {
		event.Details["lastSuccessAt"] = nil
		return
	}
	event.Details["lastSuccessAt"] = results[0].CreatedTime().UTC().Format(time.RFC3339)
}

func (s *NotificationService) newEvent(endpoint *models.Endpoint, eventType notifier.EventType, severity notifier.Severity, at time.Time, vars, details map[string]interface{}) notifier.Event {
	return notifier.Event{
		Type:         eventType,
		Severity:     severity,
		EndpointID:   endpoint.ID,
		EndpointName: endpoint.Name,
		EndpointURL:  endpoint.URL,
		Message:      notifier.Message(eventType, vars),
		Details:      details,
		Timestamp:    at,
	}
}

// Dispatch 发送事件，默认在后台发送，不阻塞调用方
func (s *NotificationService) Dispatch(endpoint *models.Endpoint, events []notifier.Event) {
	alerts := endpoint.Alerts()
	for _, event := range events {
		s.logger.Info("触发通知",
			zap.String("endpointId", endpoint.ID),
			zap.String("endpointName", endpoint.Name),
			zap.String("event", string(event.Type)),
			zap.String("severity", string(event.Severity)),
		)
		if s.async {
			go s.send(alerts, event)
		} else {
			s.send(alerts, event)
		}
	}
}

// send 发送通知(带panic恢复)
func (s *NotificationService) send(alerts *models.AlertConfig, event notifier.Event) int {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("发送通知时发生panic",
				zap.Any("panic", r),
				zap.String("endpointId", event.EndpointID),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.notifier.Dispatch(ctx, alerts, event)
}

// HandleResult 判断并发送通知
func (s *NotificationService) HandleResult(ctx context.Context, endpoint *models.Endpoint, result *models.PingResult) []notifier.Event {
	events := s.Evaluate(ctx, endpoint, result)
	s.Dispatch(endpoint, events)
	return events
}

// TestNotification 向端点配置的所有渠道发送一条测试通知，返回投递成功的渠道数
func (s *NotificationService) TestNotification(ctx context.Context, endpointID string) (int, error) {
	endpoint, err := s.endpointRepo.FindById(ctx, endpointID)
	if err != nil {
		return 0, mapRepoError(err, "endpoint", endpointID)
	}
	alerts := endpoint.Alerts()
	if alerts == nil {
		return 0, invalidInput("endpoint %s has no alert configuration", endpointID)
	}

	event := s.newEvent(&endpoint, notifier.EventTest, notifier.SeverityLow, s.now(),
		map[string]interface{}{"name": endpoint.Name},
		map[string]interface{}{"triggeredBy": "manual-test"})

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	delivered := s.notifier.Dispatch(ctx, alerts, event)

	s.logger.Info("发送测试通知",
		zap.String("endpointId", endpoint.ID),
		zap.Int("delivered", delivered))
	return delivered, nil
}

// Cleanup 清理闲置超过 TTL 的告警状态，返回清理数量
func (s *NotificationService) Cleanup(now time.Time) int {
	cutoff := now.Add(-s.stateTTL).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.states {
		if st.lastSeen < cutoff {
			delete(s.states, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("清理告警状态", zap.Int("removed", removed), zap.Int("remaining", len(s.states)))
	}
	return removed
}

// Forget 删除端点的告警状态
func (s *NotificationService) Forget(endpointID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, endpointID)
}

// Settings 当前冷却时间设置
func (s *NotificationService) Settings() NotificationSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings 修改冷却时间，为 0 的字段保持不变
func (s *NotificationService) UpdateSettings(settings *NotificationSettings) (NotificationSettings, error) {
	if err := validateStruct(settings); err != nil {
		return NotificationSettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.FailureCooldownMinutes > 0 {
		s.settings.FailureCooldownMinutes = settings.FailureCooldownMinutes
	}
	if settings.SlowResponseCooldownMinutes > 0 {
		s.settings.SlowResponseCooldownMinutes = settings.SlowResponseCooldownMinutes
	}
	if settings.DowntimeCooldownMinutes > 0 {
		s.settings.DowntimeCooldownMinutes = settings.DowntimeCooldownMinutes
	}
	s.logger.Info("更新通知设置",
		zap.Int("failureCooldownMinutes", s.settings.FailureCooldownMinutes),
		zap.Int("slowResponseCooldownMinutes", s.settings.SlowResponseCooldownMinutes),
		zap.Int("downtimeCooldownMinutes", s.settings.DowntimeCooldownMinutes))
	return s.settings, nil
}

// Stats 告警状态统计
func (s *NotificationService) Stats() NotificationStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := NotificationStats{
		TrackedEndpoints: len(s.states),
		EventsEmitted:    s.emitted.Load(),
		Settings:         s.settings,
	}
	for _, st := range s.states {
		if st.failureCount > 0 {
			stats.FailingEndpoints++
		}
	}
	return stats
}

// Severity 根据错误类型和连续失败次数计算告警级别
func Severity(consecutiveFailures int, status models.PingStatus) notifier.Severity {
	switch {
	case status == models.PingStatusDNSError || consecutiveFailures >= 10:
		return notifier.SeverityCritical
	case status == models.PingStatusTimeout || consecutiveFailures >= 5:
		return notifier.SeverityHigh
	case status == models.PingStatusConnectionError || consecutiveFailures >= 3:
		return notifier.SeverityMedium
	default:
		return notifier.SeverityLow
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// formatDuration 格式化为 1h 5m 或 5m
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	hours := total / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, total%60)
	}
	return fmt.Sprintf("%dm", total)
}
