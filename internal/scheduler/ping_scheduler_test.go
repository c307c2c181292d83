package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/database"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/notifier"
	"github.com/dushixiang/apiping/internal/prober"
	"github.com/dushixiang/apiping/internal/repo"
	"github.com/dushixiang/apiping/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	endpoints *service.EndpointService
	scheduler *PingScheduler
}

func newFixture(t *testing.T, cfg config.SchedulerConfig) *fixture {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.Open(logger, config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	endpointService := service.NewEndpointService(logger, db)
	analyticsService := service.NewAnalyticsService(logger, db)
	notificationService := service.NewNotificationService(logger, db, notifier.NewWithChannels(logger), analyticsService, config.Default().Notification)
	monitorService := service.NewMonitorService(logger, db, prober.NewProber(config.ProberConfig{}), endpointService, analyticsService, notificationService, nil)

	return &fixture{
		db:        db,
		endpoints: endpointService,
		scheduler: NewPingScheduler(logger, cfg, monitorService, notificationService),
	}
}

func (f *fixture) register(t *testing.T, url string, alerts *models.AlertConfig) *models.Endpoint {
	t.Helper()
	endpoint, err := f.endpoints.Register(context.Background(), &service.EndpointRequest{
		Name:            url,
		URL:             url,
		IntervalSeconds: 300,
		RetryAttempts:   3,
		RetryDelayMs:    100,
		TimeoutMs:       5000,
		AlertConfig:     alerts,
	})
	if err != nil {
		t.Fatalf("注册端点失败: %v", err)
	}
	return endpoint
}

func TestRetryLoop(t *testing.T) {
	ctx := context.Background()

	t.Run("全部失败时保存每次尝试", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		f := newFixture(t, config.SchedulerConfig{})
		endpoint := f.register(t, srv.URL, &models.AlertConfig{ConsecutiveFailures: 3})

		probed, err := f.scheduler.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() 失败: %v", err)
		}
		if probed != 1 {
			t.Fatalf("应该探测 1 个端点，实际为 %d", probed)
		}
		if got := atomic.LoadInt32(&calls); got != 3 {
			t.Errorf("应该请求 3 次，实际为 %d", got)
		}

		results, err := repo.NewPingResultRepo(f.db).FindRecentByEndpoint(ctx, endpoint.ID, 10)
		if err != nil {
			t.Fatalf("查询结果失败: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("应该保存 3 条结果，实际为 %d", len(results))
		}
		attempts := map[int]models.PingResult{}
		for _, r := range results {
			if r.Status != models.PingStatusHTTPError || r.IsSuccess {
				t.Errorf("结果状态应该为 http_error，实际为 %s", r.Status)
			}
			attempts[r.AttemptNumber] = r
		}
		for i := 1; i <= 3; i++ {
			if _, ok := attempts[i]; !ok {
				t.Errorf("缺少第 %d 次尝试的结果", i)
			}
		}
		// 重试也计入连续失败次数，第 3 次尝试达到阈值
		if attempts[1].AlertSent || attempts[2].AlertSent {
			t.Error("未达到阈值的尝试不应该触发告警")
		}
		if !attempts[3].AlertSent {
			t.Error("同一轮重试达到连续失败阈值时应该触发告警")
		}

		updated, err := f.endpoints.Get(ctx, endpoint.ID)
		if err != nil {
			t.Fatalf("查询端点失败: %v", err)
		}
		if updated.LastPingAt == nil || updated.NextPingAt == nil {
			t.Fatal("探测后应该更新调度时间")
		}
		if diff := *updated.NextPingAt - *updated.LastPingAt; diff != 300000 {
			t.Errorf("下次探测时间应该推迟 300 秒，实际为 %dms", diff)
		}

		probed, err = f.scheduler.RunOnce(ctx)
		if err != nil || probed != 0 {
			t.Errorf("未到期的端点不应该被探测: probed=%d err=%v", probed, err)
		}
	})

	t.Run("重试成功后停止", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		f := newFixture(t, config.SchedulerConfig{})
		endpoint := f.register(t, srv.URL, nil)

		if _, err := f.scheduler.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce() 失败: %v", err)
		}
		results, _ := repo.NewPingResultRepo(f.db).FindRecentByEndpoint(ctx, endpoint.ID, 10)
		if len(results) != 2 {
			t.Fatalf("应该保存 2 条结果，实际为 %d", len(results))
		}
		if !results[0].IsSuccess || results[0].AttemptNumber != 2 {
			t.Errorf("最新结果应该是第 2 次尝试且成功: %+v", results[0])
		}
	})
}

func TestBatches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	f := newFixture(t, config.SchedulerConfig{BatchSize: 5, BatchDelayMs: 10})
	for i := 0; i < 7; i++ {
		f.register(t, fmt.Sprintf("%s/health/%d", srv.URL, i), nil)
	}

	probed, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() 失败: %v", err)
	}
	if probed != 7 {
		t.Errorf("应该探测 7 个端点，实际为 %d", probed)
	}
	if got := atomic.LoadInt32(&calls); got != 7 {
		t.Errorf("应该请求 7 次，实际为 %d", got)
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.SchedulerConfig{TickSpec: "@every 1h", CleanupSpec: "@every 1h"})

	if err := f.scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() 失败: %v", err)
	}
	if !f.scheduler.IsRunning() {
		t.Fatal("启动后应该处于运行状态")
	}

	status, err := f.scheduler.Status(ctx)
	if err != nil {
		t.Fatalf("Status() 失败: %v", err)
	}
	if !status.IsRunning || status.Schedule != "@every 1h" || status.BatchSize != 5 {
		t.Errorf("状态不正确: %+v", status)
	}
	if status.NextTickAt == nil {
		t.Error("运行中应该有下次扫描时间")
	}

	if err := f.scheduler.Restart(ctx); err != nil {
		t.Fatalf("Restart() 失败: %v", err)
	}
	if !f.scheduler.IsRunning() {
		t.Error("重启后应该处于运行状态")
	}

	f.scheduler.Stop()
	if f.scheduler.IsRunning() {
		t.Error("停止后不应该处于运行状态")
	}
	f.scheduler.Stop()

	t.Run("无效的表达式", func(t *testing.T) {
		bad := newFixture(t, config.SchedulerConfig{TickSpec: "not a spec"})
		if err := bad.scheduler.Start(ctx); err == nil {
			t.Error("无效的 cron 表达式应该返回错误")
		}
		if bad.scheduler.IsRunning() {
			t.Error("启动失败时不应该处于运行状态")
		}
	})
}
