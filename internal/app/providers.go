package app

import (
	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/database"
	"github.com/dushixiang/apiping/internal/handler"
	"github.com/dushixiang/apiping/internal/logger"
	"github.com/dushixiang/apiping/internal/notifier"
	"github.com/dushixiang/apiping/internal/prober"
	"github.com/dushixiang/apiping/internal/scheduler"
	"github.com/dushixiang/apiping/internal/server"
	"github.com/dushixiang/apiping/internal/service"
	ws "github.com/dushixiang/apiping/internal/websocket"
	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 组装完成的应用
type App struct {
	Logger    *zap.Logger
	Server    *server.Server
	Scheduler *scheduler.PingScheduler
	Monitor   *service.MonitorService
}

func NewApp(logger *zap.Logger, srv *server.Server, pingScheduler *scheduler.PingScheduler, monitorService *service.MonitorService) *App {
	return &App{
		Logger:    logger,
		Server:    srv,
		Scheduler: pingScheduler,
		Monitor:   monitorService,
	}
}

func provideLogger(cfg *config.AppConfig) (*zap.Logger, func()) {
	l := logger.New(cfg.Log)
	return l, func() {
		_ = l.Sync()
	}
}

func provideDatabase(logger *zap.Logger, cfg *config.AppConfig) (*gorm.DB, func(), error) {
	db, err := database.Open(logger, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func provideNotifier(logger *zap.Logger, cfg *config.AppConfig) *notifier.Notifier {
	return notifier.New(logger.Named("notifier"), cfg.Notification)
}

func provideProber(cfg *config.AppConfig) *prober.Prober {
	return prober.NewProber(cfg.Prober)
}

func provideNotificationService(logger *zap.Logger, db *gorm.DB, n *notifier.Notifier, uptime service.UptimeSource, cfg *config.AppConfig) *service.NotificationService {
	return service.NewNotificationService(logger, db, n, uptime, cfg.Notification)
}

func provideScheduler(logger *zap.Logger, cfg *config.AppConfig, monitorService *service.MonitorService, notificationService *service.NotificationService) *scheduler.PingScheduler {
	return scheduler.NewPingScheduler(logger.Named("scheduler"), cfg.Scheduler, monitorService, notificationService)
}

var infraSet = wire.NewSet(
	provideLogger,
	provideDatabase,
	provideNotifier,
	provideProber,
	ws.NewManager,
)

var serviceSet = wire.NewSet(
	service.NewEndpointService,
	service.NewAnalyticsService,
	wire.Bind(new(service.UptimeSource), new(*service.AnalyticsService)),
	provideNotificationService,
	service.NewMonitorService,
	provideScheduler,
)

var handlerSet = wire.NewSet(
	handler.NewEndpointHandler,
	handler.NewMonitorHandler,
	handler.NewAnalyticsHandler,
	handler.NewControlHandler,
	handler.NewRouter,
	server.NewServer,
)
