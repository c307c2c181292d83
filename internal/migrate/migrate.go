package migrate

import (
	"github.com/dushixiang/apiping/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 同步表结构并补齐旧数据的默认值
func Migrate(logger *zap.Logger, db *gorm.DB) error {
	logger.Info("开始执行数据库迁移")

	if err := db.AutoMigrate(&models.Endpoint{}, &models.PingResult{}); err != nil {
		logger.Error("同步表结构失败", zap.Error(err))
		return err
	}

	if err := backfillDefaults(logger, db); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// backfillDefaults 将缺失的配置项补齐为默认值，早期导入的端点可能没有这些字段
func backfillDefaults(logger *zap.Logger, db *gorm.DB) error {
	migrator := db.Migrator()
	if !migrator.HasTable(&models.Endpoint{}) {
		logger.Info("未检测到 api_endpoints 表，跳过默认值补齐")
		return nil
	}

	columns := []struct {
		name  string
		value interface{}
	}{
		{"timeout_ms", models.DefaultTimeoutMs},
		{"interval_seconds", models.DefaultIntervalSeconds},
		{"retry_attempts", models.DefaultRetryAttempts},
		{"retry_delay_ms", models.DefaultRetryDelayMs},
	}

	for _, column := range columns {
		result := db.Model(&models.Endpoint{}).
			Where(column.name+" = ? OR "+column.name+" IS NULL", 0).
			Update(column.name, column.value)
		if result.Error != nil {
			logger.Error("补齐端点默认值失败",
				zap.String("column", column.name),
				zap.Error(result.Error))
			return result.Error
		}
		if result.RowsAffected > 0 {
			logger.Info("已补齐端点默认值",
				zap.String("column", column.name),
				zap.Int64("updated", result.RowsAffected))
		}
	}

	result := db.Model(&models.Endpoint{}).
		Where("provider = ? OR provider IS NULL", "").
		Update("provider", models.ProviderCustom)
	if result.Error != nil {
		logger.Error("补齐端点 provider 失败", zap.Error(result.Error))
		return result.Error
	}

	return nil
}
