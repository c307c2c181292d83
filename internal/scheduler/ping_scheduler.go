package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/service"
	"github.com/go-errors/errors"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Status 调度器状态
type Status struct {
	IsRunning       bool   `json:"isRunning"`
	Schedule        string `json:"schedule"`
	BatchSize       int    `json:"batchSize"`
	BatchDelayMs    int    `json:"batchDelayMs"`
	LastTickAt      *int64 `json:"lastTickAt"`
	NextTickAt      *int64 `json:"nextTickAt"`
	LastTickProbed  int    `json:"lastTickProbed"`
	TotalTicks      int64  `json:"totalTicks"`
	ActiveEndpoints int64  `json:"activeEndpoints"`
	DueEndpoints    int64  `json:"dueEndpoints"`
	TotalPingsToday int64  `json:"totalPingsToday"`
	LastError       string `json:"lastError,omitempty"`
}

// PingScheduler 周期扫描到期端点并分批探测
type PingScheduler struct {
	mu      sync.RWMutex
	tickMu  sync.Mutex // 保证同一时间只有一次扫描
	cron    *cron.Cron
	tickID  cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	cfg                 config.SchedulerConfig
	monitorService      *service.MonitorService
	notificationService *service.NotificationService
	logger              *zap.Logger

	lastTickAt     int64
	lastTickProbed int
	totalTicks     int64
	lastError      string
}

// NewPingScheduler 创建调度器
func NewPingScheduler(logger *zap.Logger, cfg config.SchedulerConfig, monitorService *service.MonitorService, notificationService *service.NotificationService) *PingScheduler {
	if cfg.TickSpec == "" {
		cfg.TickSpec = "@every 30s"
	}
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = "@every 1h"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelayMs < 0 {
		cfg.BatchDelayMs = 0
	}
	return &PingScheduler{
		cfg:                 cfg,
		monitorService:      monitorService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// Start 启动调度器，已经在运行时直接返回
func (s *PingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(s.logger.Named("cron")))
	c := cron.New(
		cron.WithSeconds(), // 支持秒级调度
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	tickID, err := c.AddFunc(s.cfg.TickSpec, s.tick)
	if err != nil {
		return errors.WrapPrefix(err, "添加扫描任务失败", 0)
	}
	if _, err := c.AddFunc(s.cfg.CleanupSpec, s.cleanup); err != nil {
		return errors.WrapPrefix(err, "添加清理任务失败", 0)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	s.tickID = tickID
	s.running = true
	c.Start()

	s.logger.Info("启动探测调度器",
		zap.String("tickSpec", s.cfg.TickSpec),
		zap.String("cleanupSpec", s.cfg.CleanupSpec),
		zap.Int("batchSize", s.cfg.BatchSize))
	return nil
}

// Stop 停止调度器并等待正在执行的扫描结束
func (s *PingScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	cancel := s.cancel
	s.mu.Unlock()

	// 取消正在进行的重试等待和批次间隔
	cancel()
	<-c.Stop().Done()

	s.logger.Info("探测调度器已停止")
}

// Restart 重启调度器
func (s *PingScheduler) Restart(ctx context.Context) error {
	s.Stop()
	return s.Start(ctx)
}

// IsRunning 是否正在运行
func (s *PingScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status 获取调度器状态
func (s *PingScheduler) Status(ctx context.Context) (*Status, error) {
	counters, err := s.monitorService.ScheduleCounters(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &Status{
		IsRunning:       s.running,
		Schedule:        s.cfg.TickSpec,
		BatchSize:       s.cfg.BatchSize,
		BatchDelayMs:    s.cfg.BatchDelayMs,
		LastTickProbed:  s.lastTickProbed,
		TotalTicks:      s.totalTicks,
		ActiveEndpoints: counters.ActiveEndpoints,
		DueEndpoints:    counters.DueEndpoints,
		TotalPingsToday: counters.TotalPingsToday,
		LastError:       s.lastError,
	}
	if s.lastTickAt > 0 {
		last := s.lastTickAt
		status.LastTickAt = &last
	}
	if s.running {
		// 从 cron entry 获取下次执行时间
		if entry := s.cron.Entry(s.tickID); entry.Valid() && !entry.Next.IsZero() {
			next := entry.Next.UnixMilli()
			status.NextTickAt = &next
		}
	}
	return status, nil
}

func (s *PingScheduler) tick() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("扫描到期端点失败", zap.Error(err))
	}
}

func (s *PingScheduler) cleanup() {
	if s.notificationService == nil {
		return
	}
	s.notificationService.Cleanup(time.Now())
}

// RunOnce 同步执行一次扫描，返回本次探测的端点数
func (s *PingScheduler) RunOnce(ctx context.Context) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	endpoints, err := s.monitorService.DueEndpoints(ctx)
	s.recordTick(err)
	if err != nil {
		return 0, err
	}
	if len(endpoints) == 0 {
		s.setProbed(0)
		return 0, nil
	}

	s.logger.Debug("开始探测到期端点", zap.Int("count", len(endpoints)))

	batchSize := s.cfg.BatchSize
	delay := time.Duration(s.cfg.BatchDelayMs) * time.Millisecond
	probed := 0
	for start := 0; start < len(endpoints); start += batchSize {
		end := min(start+batchSize, len(endpoints))

		p := pool.New().WithMaxGoroutines(batchSize)
		for i := start; i < end; i++ {
			endpoint := &endpoints[i]
			p.Go(func() {
				s.checkEndpoint(ctx, endpoint)
			})
		}
		p.Wait()
		probed += end - start

		if end < len(endpoints) && delay > 0 {
			if err := sleep(ctx, delay); err != nil {
				s.setProbed(probed)
				return probed, err
			}
		}
	}

	s.setProbed(probed)
	s.logger.Debug("到期端点探测完成", zap.Int("count", probed))
	return probed, nil
}

func (s *PingScheduler) recordTick(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTickAt = time.Now().UnixMilli()
	s.totalTicks++
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
}

func (s *PingScheduler) setProbed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTickProbed = n
}

// checkEndpoint 带重试地探测端点，每次尝试都会保存并计入连续失败次数
func (s *PingScheduler) checkEndpoint(ctx context.Context, endpoint *models.Endpoint) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("探测端点时发生panic",
				zap.Any("panic", r),
				zap.String("endpointId", endpoint.ID),
				zap.String("endpointName", endpoint.Name))
		}
	}()

	attempts := endpoint.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(endpoint.RetryDelayMs) * time.Millisecond

	for attempt := 1; attempt <= attempts; attempt++ {
		result := s.monitorService.Probe(ctx, endpoint, attempt, false)
		if err := s.monitorService.ProcessResult(ctx, endpoint, &result); err != nil {
			s.logger.Error("处理探测结果失败",
				zap.String("endpointId", endpoint.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		if result.IsSuccess || attempt == attempts {
			break
		}

		s.logger.Debug("探测失败，等待重试",
			zap.String("endpointId", endpoint.ID),
			zap.String("status", string(result.Status)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if err := sleep(ctx, delay); err != nil {
			break
		}
	}

	// 调度器停止时仍然记录本次探测
	if err := s.monitorService.Reschedule(context.WithoutCancel(ctx), endpoint); err != nil {
		s.logger.Error("更新下次探测时间失败",
			zap.String("endpointId", endpoint.ID),
			zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
