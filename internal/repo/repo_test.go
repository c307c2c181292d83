package repo

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/database"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(zap.NewNop(), config.DatabaseConfig{Type: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newEndpoint(url string) *models.Endpoint {
	return &models.Endpoint{
		ID:              uuid.NewString(),
		Name:            url,
		URL:             url,
		Method:          "GET",
		Provider:        models.ProviderCustom,
		TimeoutMs:       models.DefaultTimeoutMs,
		IntervalSeconds: models.DefaultIntervalSeconds,
		RetryAttempts:   models.DefaultRetryAttempts,
		RetryDelayMs:    models.DefaultRetryDelayMs,
		Status:          models.EndpointStatusActive,
		IsActive:        true,
	}
}

func saveResult(t *testing.T, r *PingResultRepo, endpointID string, success bool, createdAt int64) {
	t.Helper()
	status := models.PingStatusSuccess
	if !success {
		status = models.PingStatusHTTPError
	}
	err := r.Create(context.Background(), &models.PingResult{
		ID:             uuid.NewString(),
		EndpointID:     endpointID,
		Status:         status,
		IsSuccess:      success,
		ResponseTimeMs: 120,
		AttemptNumber:  1,
		CreatedAt:      createdAt,
	})
	if err != nil {
		t.Fatalf("保存探测结果失败: %v", err)
	}
}

func TestEndpointRepoDuplicateURL(t *testing.T) {
	repo := NewEndpointRepo(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newEndpoint("https://status.example.com")); err != nil {
		t.Fatalf("创建端点失败: %v", err)
	}
	err := repo.Create(ctx, newEndpoint("https://status.example.com"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("重复 URL 应该返回 ErrDuplicateKey，实际为 %v", err)
	}
}

func TestEndpointRepoFindDue(t *testing.T) {
	repo := NewEndpointRepo(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UnixMilli()
	future := now + 60_000
	past := now - 1

	neverPinged := newEndpoint("https://a.example.com")
	due := newEndpoint("https://b.example.com")
	due.NextPingAt = &past
	notDue := newEndpoint("https://c.example.com")
	notDue.NextPingAt = &future
	paused := newEndpoint("https://d.example.com")
	paused.Status = models.EndpointStatusPaused
	inactive := newEndpoint("https://e.example.com")
	inactive.IsActive = false

	for _, e := range []*models.Endpoint{neverPinged, due, notDue, paused, inactive} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("创建端点失败: %v", err)
		}
	}
	endpoints, err := repo.FindDue(ctx, now)
	if err != nil {
		t.Fatalf("FindDue() 失败: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("应该有 2 个到期端点，实际为 %d", len(endpoints))
	}
	ids := map[string]bool{endpoints[0].ID: true, endpoints[1].ID: true}
	if !ids[neverPinged.ID] || !ids[due.ID] {
		t.Errorf("到期端点不正确: %v", ids)
	}

	count, err := repo.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive() 失败: %v", err)
	}
	if count != 3 {
		t.Errorf("满足调度条件的端点应该为 3 个，实际为 %d", count)
	}
}

func TestEndpointRepoFindAll(t *testing.T) {
	repo := NewEndpointRepo(newTestDB(t))
	ctx := context.Background()

	for _, url := range []string{"https://api.github.com/zen", "https://www.google.com/ping", "https://status.stripe.com/api/status.json"} {
		e := newEndpoint(url)
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("创建端点失败: %v", err)
		}
	}

	t.Run("关键字搜索", func(t *testing.T) {
		items, total, err := repo.FindAll(ctx, EndpointQuery{Search: "GITHUB"})
		if err != nil {
			t.Fatalf("FindAll() 失败: %v", err)
		}
		if total != 1 || len(items) != 1 {
			t.Errorf("应该搜索到 1 个端点，实际 total=%d len=%d", total, len(items))
		}
	})

	t.Run("分页", func(t *testing.T) {
		items, total, err := repo.FindAll(ctx, EndpointQuery{SortBy: "url", SortOrder: "ASC", Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("FindAll() 失败: %v", err)
		}
		if total != 3 || len(items) != 1 {
			t.Fatalf("分页结果不正确，total=%d len=%d", total, len(items))
		}
		if items[0].URL != "https://www.google.com/ping" {
			t.Errorf("按 URL 升序第 3 个应该是 google，实际为 %s", items[0].URL)
		}
	})
}

func TestDeleteWithResults(t *testing.T) {
	db := newTestDB(t)
	endpointRepo := NewEndpointRepo(db)
	resultRepo := NewPingResultRepo(db)
	ctx := context.Background()

	e := newEndpoint("https://cascade.example.com")
	if err := endpointRepo.Create(ctx, e); err != nil {
		t.Fatalf("创建端点失败: %v", err)
	}
	now := time.Now().UnixMilli()
	for i := 0; i < 3; i++ {
		saveResult(t, resultRepo, e.ID, i%2 == 0, now+int64(i))
	}

	if err := endpointRepo.DeleteWithResults(ctx, e.ID); err != nil {
		t.Fatalf("删除端点失败: %v", err)
	}

	count, err := resultRepo.CountByEndpoint(ctx, e.ID)
	if err != nil {
		t.Fatalf("CountByEndpoint() 失败: %v", err)
	}
	if count != 0 {
		t.Errorf("删除端点后结果应该被级联删除，实际剩余 %d 条", count)
	}

	if _, err := endpointRepo.FindById(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后查询应该返回 ErrNotFound，实际为 %v", err)
	}
	if err := endpointRepo.DeleteWithResults(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("重复删除应该返回 ErrNotFound，实际为 %v", err)
	}
}

func TestPingResultRepoFindPage(t *testing.T) {
	db := newTestDB(t)
	endpointRepo := NewEndpointRepo(db)
	resultRepo := NewPingResultRepo(db)
	ctx := context.Background()

	e := newEndpoint("https://page.example.com")
	if err := endpointRepo.Create(ctx, e); err != nil {
		t.Fatalf("创建端点失败: %v", err)
	}
	base := time.Now().Add(-time.Hour).UnixMilli()
	for i := 0; i < 10; i++ {
		saveResult(t, resultRepo, e.ID, i < 7, base+int64(i)*1000)
	}

	failed := false
	items, total, err := resultRepo.FindPage(ctx, ResultQuery{EndpointID: e.ID, IsSuccess: &failed, Limit: 2})
	if err != nil {
		t.Fatalf("FindPage() 失败: %v", err)
	}
	if total != 3 {
		t.Errorf("失败结果应该有 3 条，实际为 %d", total)
	}
	if len(items) != 2 {
		t.Errorf("分页大小应该为 2，实际为 %d", len(items))
	}
	if items[0].CreatedAt < items[1].CreatedAt {
		t.Error("默认应该按时间倒序")
	}

	recent, err := resultRepo.FindRecentByEndpoint(ctx, e.ID, 5)
	if err != nil {
		t.Fatalf("FindRecentByEndpoint() 失败: %v", err)
	}
	if len(recent) != 5 || recent[0].CreatedAt != base+9000 {
		t.Errorf("最近结果不正确: len=%d", len(recent))
	}

	since, err := resultRepo.FindByEndpointSince(ctx, e.ID, base+5000)
	if err != nil {
		t.Fatalf("FindByEndpointSince() 失败: %v", err)
	}
	if len(since) != 5 {
		t.Errorf("时间窗口内应该有 5 条结果，实际为 %d", len(since))
	}
}
