// Package daemon 将服务注册为系统服务(systemd、launchd、Windows 服务)
package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"
)

const stopTimeout = 30 * time.Second

// RunFunc 服务主体，ctx 取消后应尽快返回
type RunFunc func(ctx context.Context) error

// program 实现 service.Interface
type program struct {
	logger *zap.Logger
	run    RunFunc
	cancel context.CancelFunc
	done   chan struct{}
}

// Start 非阻塞启动
func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := p.run(ctx); err != nil {
			p.logger.Error("服务运行出错", zap.Error(err))
			// 非正常退出时交给服务管理器按配置重启
			os.Exit(1)
		}
	}()
	return nil
}

// Stop 取消运行并等待退出
func (p *program) Stop(s service.Service) error {
	p.logger.Info("服务停止中...")
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		select {
		case <-p.done:
		case <-time.After(stopTimeout):
			p.logger.Warn("等待服务退出超时")
		}
	}
	p.logger.Info("服务已停止")
	return nil
}

// Manager 系统服务管理器
type Manager struct {
	service service.Service
}

// NewManager 创建服务管理器，configPath 会作为 serve 命令的参数写入服务定义
func NewManager(logger *zap.Logger, configPath string, run RunFunc) (*Manager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}

	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	svcConfig := &service.Config{
		Name:        "apiping",
		DisplayName: "API Ping Monitor",
		Description: "API Ping Monitor - 定时探测第三方 API 的可用性并发送告警",
		Arguments:   args,
		Executable:  execPath,
		Option: service.KeyValue{
			// Linux systemd
			"Restart":            "always",
			"RestartSec":         "10",
			"StartLimitInterval": "0",
			"KillMode":           "process",

			// Windows
			"OnFailure":    "restart",
			"ResetPeriod":  86400,
			"RestartDelay": 10000,

			// upstart/launchd
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	s, err := service.New(&program{logger: logger, run: run}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}
	return &Manager{service: s}, nil
}

// Install 安装服务
func (m *Manager) Install() error {
	return m.service.Install()
}

// Uninstall 卸载服务，先尝试停止
func (m *Manager) Uninstall() error {
	_ = m.service.Stop()
	return m.service.Uninstall()
}

// Start 启动服务
func (m *Manager) Start() error {
	return m.service.Start()
}

// Stop 停止服务
func (m *Manager) Stop() error {
	return m.service.Stop()
}

// Restart 重启服务
func (m *Manager) Restart() error {
	return m.service.Restart()
}

// Status 查看服务状态
func (m *Manager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}
	switch status {
	case service.StatusRunning:
		return "运行中 (Running)", nil
	case service.StatusStopped:
		return "已停止 (Stopped)", nil
	case service.StatusUnknown:
		return "未知 (Unknown)", nil
	default:
		return fmt.Sprintf("状态: %d", status), nil
	}
}

// Run 在服务管理器控制下运行，阻塞直到收到停止信号
func (m *Manager) Run() error {
	return m.service.Run()
}

// Interactive 是否在终端中前台运行
func Interactive() bool {
	return service.Interactive()
}
