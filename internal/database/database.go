package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/migrate"
	"github.com/glebarez/sqlite"
	"github.com/go-errors/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 打开数据库连接并执行迁移
func Open(logger *zap.Logger, cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	dbType := strings.ToLower(cfg.Type)

	switch dbType {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DSN)
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "data/apiping.db"
		}
		if !strings.Contains(dsn, ":memory:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, errors.WrapPrefix(err, "创建数据目录失败", 0)
				}
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.Errorf("不支持的数据库类型: %s", cfg.Type)
	}

	logLevel := gormlogger.Silent
	if cfg.Debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true, // 唯一约束冲突转换为 gorm.ErrDuplicatedKey
		Logger:         gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.WrapPrefix(err, "连接数据库失败", 0)
	}

	if dbType != "postgres" && dbType != "postgresql" {
		// sqlite 单连接写入，避免 database is locked，同时保证内存库在连接间共享
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.WrapPrefix(err, "获取数据库连接失败", 0)
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, errors.WrapPrefix(err, "启用外键约束失败", 0)
		}
	}

	if err := migrate.Migrate(logger, db); err != nil {
		return nil, errors.WrapPrefix(err, "数据库迁移失败", 0)
	}

	logger.Info("数据库连接成功", zap.String("type", dialector.Name()))
	return db, nil
}
