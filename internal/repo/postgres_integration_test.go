package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/database"
	"github.com/go-errors/errors"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// 需要 Docker，设置 APIPING_PG_IT=1 时运行
func TestPostgresCascadeAndUnique(t *testing.T) {
	if os.Getenv("APIPING_PG_IT") != "1" {
		t.Skip("未设置 APIPING_PG_IT=1，跳过 Postgres 集成测试")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("apiping"),
		postgres.WithUsername("apiping"),
		postgres.WithPassword("apiping"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("启动 Postgres 容器失败: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("停止 Postgres 容器失败: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("获取连接串失败: %v", err)
	}

	db, err := database.Open(zap.NewNop(), config.DatabaseConfig{Type: "postgres", DSN: dsn})
	if err != nil {
		t.Fatalf("连接 Postgres 失败: %v", err)
	}

	endpointRepo := NewEndpointRepo(db)
	resultRepo := NewPingResultRepo(db)

	e := newEndpoint("https://pg.example.com")
	if err := endpointRepo.Create(ctx, e); err != nil {
		t.Fatalf("创建端点失败: %v", err)
	}
	if err := endpointRepo.Create(ctx, newEndpoint("https://pg.example.com")); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("重复 URL 应该返回 ErrDuplicateKey，实际为 %v", err)
	}

	saveResult(t, resultRepo, e.ID, true, time.Now().UnixMilli())
	saveResult(t, resultRepo, e.ID, false, time.Now().UnixMilli()+1)

	items, total, err := endpointRepo.FindAll(ctx, EndpointQuery{Tags: "none", Search: "pg"})
	if err != nil {
		t.Fatalf("FindAll() 失败: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("标签过滤后不应该有结果，实际 total=%d", total)
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
}
