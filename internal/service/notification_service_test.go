package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/notifier"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type stubUptime struct {
	value float64
	calls int
}

func (s *stubUptime) EndpointUptime(ctx context.Context, endpointID string, window time.Duration) (float64, error) {
	s.calls++
	return s.value, nil
}

func newTestNotificationService(t *testing.T, uptime UptimeSource) (*NotificationService, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := NewNotificationService(zap.NewNop(), newTestDB(t), notifier.NewWithChannels(zap.NewNop()), uptime, config.Default().Notification)
	s.now = clock.Now
	s.async = false
	return s, clock
}

func alertingEndpoint(alerts *models.AlertConfig) *models.Endpoint {
	return &models.Endpoint{
		ID:           "e1",
		Name:         "Stripe",
		URL:          "https://status.stripe.com",
		EnableAlerts: true,
		AlertConfig:  datatypes.NewJSONType(alerts),
	}
}

func failed(status models.PingStatus) *models.PingResult {
	return &models.PingResult{Status: status, ResponseTimeMs: 30000, AttemptNumber: 3}
}

func succeeded(responseTime int64) *models.PingResult {
	return &models.PingResult{Status: models.PingStatusSuccess, IsSuccess: true, ResponseTimeMs: responseTime, AttemptNumber: 1}
}

func eventTypes(events []notifier.Event) []notifier.EventType {
	types := make([]notifier.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestFailureAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("每轮连续失败只通知一次", func(t *testing.T) {
		s, clock := newTestNotificationService(t, nil)
		endpoint := alertingEndpoint(&models.AlertConfig{ConsecutiveFailures: 3})

		emitted := 0
		for i := 1; i <= 6; i++ {
			result := failed(models.PingStatusHTTPError)
			events := s.HandleResult(ctx, endpoint, result)
			if i < 3 && len(events) > 0 {
				t.Fatalf("第 %d 次失败未达到阈值，不应该通知", i)
			}
			if i == 3 {
				if len(events) != 1 || events[0].Type != notifier.EventFailure {
					t.Fatalf("达到阈值时应该发送失败通知，实际为 %v", eventTypes(events))
				}
				if !result.AlertSent {
					t.Error("发送通知的结果应该标记 alertSent")
				}
				if events[0].Message != "Stripe is experiencing issues (3 consecutive failures)" {
					t.Errorf("通知消息不正确: %s", events[0].Message)
				}
			}
			emitted += len(events)
			clock.Advance(20 * time.Minute)
		}
		if emitted != 1 {
			t.Errorf("一轮连续失败应该只通知 1 次，实际为 %d", emitted)
		}

		events := s.HandleResult(ctx, endpoint, succeeded(100))
		if len(events) != 1 || events[0].Type != notifier.EventRecovery {
			t.Fatalf("恢复时应该发送恢复通知，实际为 %v", eventTypes(events))
		}
		if events[0].Details["previousFailureCount"] != 6 {
			t.Errorf("恢复通知中的失败次数不正确: %v", events[0].Details["previousFailureCount"])
		}
		if events[0].Details["downDuration"] != "2h 0m" {
			t.Errorf("故障时长不正确: %v", events[0].Details["downDuration"])
		}

		clock.Advance(20 * time.Minute)
		emitted = 0
		for i := 0; i < 3; i++ {
			emitted += len(s.HandleResult(ctx, endpoint, failed(models.PingStatusTimeout)))
		}
		if emitted != 1 {
			t.Errorf("新一轮连续失败应该再次通知，实际为 %d", emitted)
		}
	})

	t.Run("冷却期内新一轮失败不通知", func(t *testing.T) {
		s, clock := newTestNotificationService(t, nil)
		endpoint := alertingEndpoint(&models.AlertConfig{ConsecutiveFailures: 1})

		if events := s.HandleResult(ctx, endpoint, failed(models.PingStatusHTTPError)); len(events) != 1 {
			t.Fatalf("第一次失败应该通知，实际为 %v", eventTypes(events))
		}
		clock.Advance(time.Minute)
		s.HandleResult(ctx, endpoint, succeeded(100))
		clock.Advance(time.Minute)
		if events := s.HandleResult(ctx, endpoint, failed(models.PingStatusHTTPError)); len(events) != 0 {
			t.Errorf("冷却期内不应该再次通知，实际为 %v", eventTypes(events))
		}
		clock.Advance(15 * time.Minute)
		if events := s.HandleResult(ctx, endpoint, failed(models.PingStatusHTTPError)); len(events) != 1 {
			t.Errorf("冷却期结束后本轮失败应该通知，实际为 %v", eventTypes(events))
		}
	})

	t.Run("未开启告警时不处理", func(t *testing.T) {
		s, _ := newTestNotificationService(t, nil)
		endpoint := alertingEndpoint(&models.AlertConfig{ConsecutiveFailures: 1})
		endpoint.EnableAlerts = false
		if events := s.HandleResult(ctx, endpoint, failed(models.PingStatusDNSError)); events != nil {
			t.Errorf("未开启告警时不应该产生事件: %v", eventTypes(events))
		}

		endpoint = alertingEndpoint(nil)
		if events := s.HandleResult(ctx, endpoint, failed(models.PingStatusDNSError)); events != nil {
			t.Errorf("没有告警配置时不应该产生事件: %v", eventTypes(events))
		}
	})
}

func TestRecoveryAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("未达到阈值时不发送恢复通知", func(t *testing.T) {
		s, _ := newTestNotificationService(t, nil)
		endpoint := alertingEndpoint(&models.AlertConfig{ConsecutiveFailures: 3})
		s.HandleResult(ctx, endpoint, failed(models.PingStatusHTTPError))
		s.HandleResult(ctx, endpoint, failed(models.PingStatusHTTPError))
		if events := s.HandleResult(ctx, endpoint, succeeded(100)); len(events) != 0 {
			t.Errorf("失败次数未达到阈值，不应该发送恢复通知: %v", eventTypes(events))
		}
	})

	t.Run("关闭恢复通知", func(t *testing.T) {
		s, _ := newTestNotificationService(t, nil)
		off := false
		endpoint := alertingEndpoint(&models.AlertConfig{ConsecutiveFailures: 1, NotifyOnRecovery: &off})
		s.HandleResult(ctx, endpoint, failed(models.PingStatusHTTPError))
		if events := s.HandleResult(ctx, endpoint, succeeded(100)); len(events) != 0 {
			t.Errorf("关闭恢复通知后不应该发送: %v", eventTypes(events))
		}
	})
}

func TestSlowResponseAlert(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestNotificationService(t, nil)
	endpoint := alertingEndpoint(&models.AlertConfig{ResponseTimeThresholdMs: 1000})

	if events := s.HandleResult(ctx, endpoint, succeeded(1000)); len(events) != 0 {
		t.Errorf("等于阈值时不应该通知: %v", eventTypes(events))
	}
	events := s.HandleResult(ctx, endpoint, succeeded(2500))
	if len(events) != 1 || events[0].Type != notifier.EventSlowResponse || events[0].Severity != notifier.SeverityLow {
		t.Fatalf("超过阈值时应该发送 low 级别慢响应通知: %+v", events)
	}
	clock.Advance(10 * time.Minute)
	if events := s.HandleResult(ctx, endpoint, succeeded(2500)); len(events) != 0 {
		t.Errorf("冷却期内不应该再次通知: %v", eventTypes(events))
	}
	clock.Advance(30 * time.Minute)
	if events := s.HandleResult(ctx, endpoint, succeeded(2500)); len(events) != 1 {
		t.Errorf("冷却期结束后应该再次通知: %v", eventTypes(events))
	}
}

func TestDowntimeAlert(t *testing.T) {
	ctx := context.Background()
	uptime := &stubUptime{value: 90}
	s, clock := newTestNotificationService(t, uptime)
	endpoint := alertingEndpoint(&models.AlertConfig{UptimeThreshold: 95})

	events := s.HandleResult(ctx, endpoint, succeeded(100))
	if len(events) != 1 || events[0].Type != notifier.EventDowntimeAlert {
		t.Fatalf("可用率低于阈值时应该发送可用率告警: %v", eventTypes(events))
	}
	if events[0].Severity != notifier.SeverityHigh {
		t.Errorf("可用率告警应该为 high 级别，实际为 %s", events[0].Severity)
	}
	if events[0].Message != "Stripe uptime is below threshold (90.00% < 95.00%)" {
		t.Errorf("可用率告警消息不正确: %s", events[0].Message)
	}

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Minute)
		if events := s.HandleResult(ctx, endpoint, succeeded(100)); len(events) != 0 {
			t.Fatalf("冷却期内不应该再次发送可用率告警: %v", eventTypes(events))
		}
	}
	if uptime.calls != 1 {
		t.Errorf("冷却期内不应该查询可用率，实际查询 %d 次", uptime.calls)
	}

	clock.Advance(10 * time.Minute)
	if events := s.HandleResult(ctx, endpoint, succeeded(100)); len(events) != 1 {
		t.Errorf("冷却期结束后应该再次发送可用率告警: %v", eventTypes(events))
	}

	uptime.value = 99
	clock.Advance(2 * time.Hour)
	if events := s.HandleResult(ctx, endpoint, succeeded(100)); len(events) != 0 {
		t.Errorf("可用率恢复后不应该告警: %v", eventTypes(events))
	}
}

func TestSeverity(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		status   models.PingStatus
		want     notifier.Severity
	}{
		{"DNS错误", 1, models.PingStatusDNSError, notifier.SeverityCritical},
		{"连续10次", 10, models.PingStatusHTTPError, notifier.SeverityCritical},
		{"超时", 1, models.PingStatusTimeout, notifier.SeverityHigh},
		{"连续5次", 5, models.PingStatusHTTPError, notifier.SeverityHigh},
		{"连接错误", 1, models.PingStatusConnectionError, notifier.SeverityMedium},
		{"连续3次", 3, models.PingStatusHTTPError, notifier.SeverityMedium},
		{"其他", 1, models.PingStatusHTTPError, notifier.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Severity(tt.failures, tt.status); got != tt.want {
				t.Errorf("Severity() = %s, 期望 %s", got, tt.want)
			}
		})
	}
}

func TestNotificationCleanup(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestNotificationService(t, nil)
	s.HandleResult(ctx, alertingEndpoint(&models.AlertConfig{}), failed(models.PingStatusHTTPError))

	if stats := s.Stats(); stats.TrackedEndpoints != 1 || stats.FailingEndpoints != 1 {
		t.Fatalf("统计不正确: %+v", stats)
	}
	if removed := s.Cleanup(clock.Now().Add(time.Hour)); removed != 0 {
		t.Errorf("未过期的状态不应该被清理，实际清理 %d 个", removed)
	}
	if removed := s.Cleanup(clock.Now().Add(25 * time.Hour)); removed != 1 {
		t.Errorf("过期状态应该被清理，实际清理 %d 个", removed)
	}
}

func TestUpdateSettings(t *testing.T) {
	s, _ := newTestNotificationService(t, nil)

	settings, err := s.UpdateSettings(&NotificationSettings{FailureCooldownMinutes: 5})
	if err != nil {
		t.Fatalf("UpdateSettings() 失败: %v", err)
	}
	if settings.FailureCooldownMinutes != 5 || settings.SlowResponseCooldownMinutes != 30 {
		t.Errorf("设置不正确: %+v", settings)
	}

	if _, err := s.UpdateSettings(&NotificationSettings{DowntimeCooldownMinutes: 5000}); err == nil {
		t.Error("超出范围的设置应该返回错误")
	}
}
