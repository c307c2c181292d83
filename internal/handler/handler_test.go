package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/database"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/notifier"
	"github.com/dushixiang/apiping/internal/prober"
	"github.com/dushixiang/apiping/internal/scheduler"
	"github.com/dushixiang/apiping/internal/service"
	ws "github.com/dushixiang/apiping/internal/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func newTestEcho(t *testing.T) *echo.Echo {
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

	wsManager := ws.NewManager(logger)
	endpointService := service.NewEndpointService(logger, db)
	analyticsService := service.NewAnalyticsService(logger, db)
	notificationService := service.NewNotificationService(logger, db, notifier.NewWithChannels(logger), analyticsService, config.Default().Notification)
	monitorService := service.NewMonitorService(logger, db, prober.NewProber(config.ProberConfig{}), endpointService, analyticsService, notificationService, wsManager)
	pingScheduler := scheduler.NewPingScheduler(logger, config.SchedulerConfig{TickSpec: "@every 1h"}, monitorService, notificationService)
	t.Cleanup(pingScheduler.Stop)

	router := NewRouter(
		NewEndpointHandler(logger, endpointService),
		NewMonitorHandler(logger, monitorService),
		NewAnalyticsHandler(logger, analyticsService),
		NewControlHandler(logger, pingScheduler, monitorService, notificationService, wsManager),
	)
	e := echo.New()
	router.Register(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, BasePath+path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, rec.Body.String())
	}
}

func TestEndpointRoutes(t *testing.T) {
	e := newTestEcho(t)

	rec := do(t, e, http.MethodPost, "/endpoints", `{"name":"Stripe","url":"https://status.stripe.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("注册端点应该返回 201，实际为 %d: %s", rec.Code, rec.Body.String())
	}
	var endpoint models.Endpoint
	decode(t, rec, &endpoint)

	t.Run("URL重复返回409", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/endpoints", `{"name":"Stripe 2","url":"https://status.stripe.com"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("应该返回 409，实际为 %d", rec.Code)
		}
	})

	t.Run("参数错误返回400", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/endpoints", `{"url":"https://a.example.com","intervalSeconds":5}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("应该返回 400，实际为 %d", rec.Code)
		}
		var body struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		decode(t, rec, &body)
		if body.Error == "" || body.Fields["name"] == "" || body.Fields["intervalSeconds"] == "" {
			t.Errorf("应该返回字段级错误: %+v", body)
		}
	})

	t.Run("查询", func(t *testing.T) {
		rec := do(t, e, http.MethodGet, "/endpoints/"+endpoint.ID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("应该返回 200，实际为 %d", rec.Code)
		}
		var view service.EndpointView
		decode(t, rec, &view)
		if view.ID != endpoint.ID || view.Uptime24h != 100 {
			t.Errorf("端点详情不正确: %+v", view)
		}

		if rec := do(t, e, http.MethodGet, "/endpoints/missing", ""); rec.Code != http.StatusNotFound {
			t.Errorf("不存在的端点应该返回 404，实际为 %d", rec.Code)
		}

		rec = do(t, e, http.MethodGet, "/endpoints?provider=custom&limit=10", "")
		var page struct {
			Items []service.EndpointView `json:"items"`
			Total int64                  `json:"total"`
		}
		decode(t, rec, &page)
		if page.Total != 1 || len(page.Items) != 1 {
			t.Errorf("列表结果不正确: %+v", page)
		}
	})

	t.Run("修改状态", func(t *testing.T) {
		rec := do(t, e, http.MethodPatch, "/endpoints/"+endpoint.ID+"/status", `{"status":"paused"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("应该返回 200，实际为 %d: %s", rec.Code, rec.Body.String())
		}
		rec = do(t, e, http.MethodPatch, "/endpoints/"+endpoint.ID+"/status", `{"status":"broken"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("未知状态应该返回 400，实际为 %d", rec.Code)
		}
		rec = do(t, e, http.MethodPatch, "/endpoints/"+endpoint.ID+"/active", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("缺少 isActive 应该返回 400，实际为 %d", rec.Code)
		}
	})

	t.Run("历史", func(t *testing.T) {
		rec := do(t, e, http.MethodGet, "/endpoints/"+endpoint.ID+"/history?days=3", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("应该返回 200，实际为 %d", rec.Code)
		}
		var history service.EndpointHistory
		decode(t, rec, &history)
		if len(history.History) != 3 {
			t.Errorf("应该返回 3 天，实际为 %d", len(history.History))
		}
		if rec := do(t, e, http.MethodGet, "/endpoints/"+endpoint.ID+"/history?days=abc", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("非法天数应该返回 400，实际为 %d", rec.Code)
		}
	})

	t.Run("删除", func(t *testing.T) {
		if rec := do(t, e, http.MethodDelete, "/endpoints/"+endpoint.ID, ""); rec.Code != http.StatusNoContent {
			t.Errorf("删除应该返回 204，实际为 %d", rec.Code)
		}
		if rec := do(t, e, http.MethodDelete, "/endpoints/"+endpoint.ID, ""); rec.Code != http.StatusNotFound {
			t.Errorf("重复删除应该返回 404，实际为 %d", rec.Code)
		}
	})
}

func TestPingRoutes(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	e := newTestEcho(t)
	ids := make([]string, 0, 3)
	for i, url := range []string{ok.URL + "/a", ok.URL + "/b", broken.URL} {
		rec := do(t, e, http.MethodPost, "/endpoints", `{"name":"e`+string(rune('0'+i))+`","url":"`+url+`"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("注册端点失败: %d %s", rec.Code, rec.Body.String())
		}
		var endpoint models.Endpoint
		decode(t, rec, &endpoint)
		ids = append(ids, endpoint.ID)
	}

	t.Run("批量探测", func(t *testing.T) {
		body, _ := json.Marshal(map[string]interface{}{"endpointIds": ids, "saveResult": false})
		rec := do(t, e, http.MethodPost, "/ping/bulk", string(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("应该返回 200，实际为 %d: %s", rec.Code, rec.Body.String())
		}
		var responses []service.PingResponse
		decode(t, rec, &responses)
		if len(responses) != 3 {
			t.Fatalf("应该返回 3 个结果，实际为 %d", len(responses))
		}
		if !responses[0].IsSuccess || !responses[1].IsSuccess || responses[2].IsSuccess || responses[2].Status != models.PingStatusHTTPError {
			t.Errorf("批量探测结果不正确: %+v", responses)
		}

		if rec := do(t, e, http.MethodPost, "/ping/bulk", `{"endpointIds":[]}`); rec.Code != http.StatusBadRequest {
			t.Errorf("空列表应该返回 400，实际为 %d", rec.Code)
		}
	})

	t.Run("手动探测默认保存结果", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/ping/manual/"+ids[0], "")
		if rec.Code != http.StatusOK {
			t.Fatalf("应该返回 200，实际为 %d: %s", rec.Code, rec.Body.String())
		}
		rec = do(t, e, http.MethodGet, "/endpoints/"+ids[0]+"/results", "")
		var page struct {
			Items []models.PingResult `json:"items"`
			Total int64               `json:"total"`
		}
		decode(t, rec, &page)
		if page.Total != 1 {
			t.Errorf("应该保存 1 条结果，实际为 %d", page.Total)
		}

		if rec := do(t, e, http.MethodGet, "/results?isSuccess=maybe", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("非法参数应该返回 400，实际为 %d", rec.Code)
		}
	})

	t.Run("导出CSV", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/export/results", `{"format":"csv"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("应该返回 200，实际为 %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv") {
			t.Errorf("Content-Type 不正确: %s", rec.Header().Get(echo.HeaderContentType))
		}
		if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), ".csv") {
			t.Errorf("Content-Disposition 不正确: %s", rec.Header().Get(echo.HeaderContentDisposition))
		}
		if !strings.HasPrefix(rec.Body.String(), "id,endpointId,status") {
			t.Errorf("CSV 表头不正确: %s", rec.Body.String())
		}
	})
}

func TestControlRoutes(t *testing.T) {
	e := newTestEcho(t)

	rec := do(t, e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("自检应该返回 200，实际为 %d", rec.Code)
	}
	var health struct {
		Status   string          `json:"status"`
		Services map[string]bool `json:"services"`
	}
	decode(t, rec, &health)
	if health.Status != "healthy" || !health.Services["database"] || health.Services["monitoring"] {
		t.Errorf("自检结果不正确: %+v", health)
	}

	if rec := do(t, e, http.MethodPost, "/monitor/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("启动调度器应该返回 200，实际为 %d", rec.Code)
	}
	rec = do(t, e, http.MethodGet, "/monitor/status", "")
	var status scheduler.Status
	decode(t, rec, &status)
	if !status.IsRunning {
		t.Error("启动后状态应该为运行中")
	}
	if rec := do(t, e, http.MethodPost, "/monitor/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("停止调度器应该返回 200，实际为 %d", rec.Code)
	}

	if rec := do(t, e, http.MethodPost, "/notifications/test/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("不存在的端点应该返回 404，实际为 %d", rec.Code)
	}
	if rec := do(t, e, http.MethodPut, "/notifications/settings", `{"failureCooldownMinutes":0,"slowResponseCooldownMinutes":5000}`); rec.Code != http.StatusBadRequest {
		t.Errorf("超出范围的设置应该返回 400，实际为 %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/analytics/sla?target=abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("非法 target 应该返回 400，实际为 %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/analytics/global?period=7d", ""); rec.Code != http.StatusOK {
		t.Errorf("全局统计应该返回 200，实际为 %d", rec.Code)
	}
}
