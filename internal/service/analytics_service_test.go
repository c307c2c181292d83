package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/apiping/internal/metric"
	"github.com/go-errors/errors"
	"go.uber.org/zap"
)

func TestAnalyticsService(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	logger := zap.NewNop()
	endpoints := NewEndpointService(logger, db)
	analytics := NewAnalyticsService(logger, db)

	clock := &fixedClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	analytics.now = clock.Now
	analytics.loc = time.UTC

	flaky, err := endpoints.Register(ctx, &EndpointRequest{Name: "flaky", URL: "https://flaky.example.com"})
	if err != nil {
		t.Fatalf("注册端点失败: %v", err)
	}
	quiet, err := endpoints.Register(ctx, &EndpointRequest{Name: "quiet", URL: "https://quiet.example.com"})
	if err != nil {
		t.Fatalf("注册端点失败: %v", err)
	}
	saveResults(t, db, flaky.ID, clock.Now().Add(-2*time.Hour), true, true, false, true)
	// 窗口之外的结果不参与统计
	saveResults(t, db, flaky.ID, clock.Now().Add(-48*time.Hour), false, false)

	t.Run("可用率", func(t *testing.T) {
		items, err := analytics.Uptime(ctx, flaky.ID, "24h")
		if err != nil {
			t.Fatalf("Uptime() 失败: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("应该返回 1 个端点，实际为 %d", len(items))
		}
		if items[0].TotalChecks != 4 || items[0].UptimePercentage != 75 {
			t.Errorf("可用率统计不正确: total=%d uptime=%v", items[0].TotalChecks, items[0].UptimePercentage)
		}

		items, err = analytics.Uptime(ctx, quiet.ID, "24h")
		if err != nil {
			t.Fatalf("Uptime() 失败: %v", err)
		}
		if items[0].TotalChecks != 0 || items[0].UptimePercentage != 100 {
			t.Errorf("没有数据时可用率应该为 100: %+v", items[0])
		}

		if _, err := analytics.Uptime(ctx, "missing", "24h"); !errors.Is(err, ErrNotFound) {
			t.Errorf("不存在的端点应该返回 ErrNotFound，实际为 %v", err)
		}
	})

	t.Run("可用率窗口", func(t *testing.T) {
		uptime, err := analytics.EndpointUptime(ctx, flaky.ID, 24*time.Hour)
		if err != nil {
			t.Fatalf("EndpointUptime() 失败: %v", err)
		}
		if uptime != 75 {
			t.Errorf("24 小时可用率应该为 75，实际为 %v", uptime)
		}
		uptime, err = analytics.EndpointUptime(ctx, flaky.ID, 72*time.Hour)
		if err != nil {
			t.Fatalf("EndpointUptime() 失败: %v", err)
		}
		if uptime != 50 {
			t.Errorf("72 小时可用率应该为 50，实际为 %v", uptime)
		}
	})

	t.Run("SLA", func(t *testing.T) {
		reports, err := analytics.SLA(ctx, "", 0, "7d")
		if err != nil {
			t.Fatalf("SLA() 失败: %v", err)
		}
		if len(reports) != 2 {
			t.Fatalf("应该返回 2 个报告，实际为 %d", len(reports))
		}
		for _, r := range reports {
			if r.SLATarget != metric.DefaultSLATarget {
				t.Errorf("目标为 0 时应该使用默认值，实际为 %v", r.SLATarget)
			}
			if r.Period != metric.Period30d {
				t.Errorf("不支持的窗口应该按 30d 处理，实际为 %s", r.Period)
			}
			want := metric.SLAMet
			if r.EndpointID == flaky.ID {
				want = metric.SLABreached
			}
			if r.SLAStatus != want {
				t.Errorf("%s 的 SLA 状态应该为 %s，实际为 %s", r.EndpointName, want, r.SLAStatus)
			}
		}

		if _, err := analytics.SLA(ctx, "", 120, "30d"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("超出范围的目标应该返回 ErrInvalidInput，实际为 %v", err)
		}
	})

	t.Run("自定义报告", func(t *testing.T) {
		report, err := analytics.Custom(ctx, &CustomReportRequest{
			StartDate: clock.Now().Add(-24 * time.Hour),
			EndDate:   clock.Now(),
		})
		if err != nil {
			t.Fatalf("Custom() 失败: %v", err)
		}
		if report.GroupBy != GroupByEndpoint || report.TotalResults != 4 {
			t.Errorf("自定义报告不正确: groupBy=%s total=%d", report.GroupBy, report.TotalResults)
		}

		_, err = analytics.Custom(ctx, &CustomReportRequest{
			StartDate: clock.Now(),
			EndDate:   clock.Now().Add(-time.Hour),
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("结束时间早于开始时间应该返回 ErrInvalidInput，实际为 %v", err)
		}
	})
}
