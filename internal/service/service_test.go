package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/database"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/repo"
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

// fixedClock 可以手动拨动的时钟
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func saveResults(t *testing.T, db *gorm.DB, endpointID string, createdAt time.Time, outcomes ...bool) {
	t.Helper()
	resultRepo := repo.NewPingResultRepo(db)
	for i, ok := range outcomes {
		status := models.PingStatusSuccess
		if !ok {
			status = models.PingStatusHTTPError
		}
		err := resultRepo.Create(context.Background(), &models.PingResult{
			ID:             uuid.NewString(),
			EndpointID:     endpointID,
			Status:         status,
			IsSuccess:      ok,
			ResponseTimeMs: 100,
			AttemptNumber:  1,
			CreatedAt:      createdAt.Add(time.Duration(i) * time.Minute).UnixMilli(),
		})
		if err != nil {
			t.Fatalf("保存探测结果失败: %v", err)
		}
	}
}
