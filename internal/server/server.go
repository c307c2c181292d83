package server

import (
	"context"
	"net/http"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/handler"
	"github.com/dushixiang/apiping/internal/scheduler"
	ws "github.com/dushixiang/apiping/internal/websocket"
	"github.com/go-errors/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Server HTTP 服务，负责路由、调度器和实时推送的启停
type Server struct {
	logger    *zap.Logger
	cfg       *config.AppConfig
	echo      *echo.Echo
	scheduler *scheduler.PingScheduler
	wsManager *ws.Manager
}

func NewServer(logger *zap.Logger, cfg *config.AppConfig, router *handler.Router, pingScheduler *scheduler.PingScheduler, wsManager *ws.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("请求失败", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("请求", fields...)
			return nil
		},
	}))

	router.Register(e)

	return &Server{
		logger:    logger,
		cfg:       cfg,
		echo:      e,
		scheduler: pingScheduler,
		wsManager: wsManager,
	}
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run 启动调度器和 HTTP 服务，阻塞直到 ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Scheduler.Enabled {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务启动", zap.String("addr", s.cfg.Server.Addr))
		if err := s.echo.Start(s.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("收到退出信号，正在关闭服务")
	case err := <-errCh:
		if err != nil {
			runErr = errors.WrapPrefix(err, "HTTP 服务异常退出", 0)
		}
	}

	s.shutdown()
	return runErr
}

func (s *Server) shutdown() {
	s.scheduler.Stop()
	s.wsManager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
	}
	s.logger.Info("服务已停止")
}
