package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dushixiang/apiping/internal/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "系统服务管理",
}

func newManager() (*daemon.Manager, error) {
	path := configPath
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		path = abs
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.NewManager(zap.NewNop(), path, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serviceAction(use, short, done string, action func(m *daemon.Manager) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newManager()
			if err != nil {
				return err
			}
			if err := action(m); err != nil {
				return fmt.Errorf("%s失败: %w", short, err)
			}
			fmt.Println("✅ " + done)
			return nil
		},
	}
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看服务状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		status, err := m.Status()
		if err != nil {
			return fmt.Errorf("获取服务状态失败: %w", err)
		}
		fmt.Printf("服务状态: %s\n", status)
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(
		serviceAction("install", "安装服务", "服务已安装，使用 apiping service start 启动", (*daemon.Manager).Install),
		serviceAction("uninstall", "卸载服务", "服务已卸载", (*daemon.Manager).Uninstall),
		serviceAction("start", "启动服务", "服务已启动", (*daemon.Manager).Start),
		serviceAction("stop", "停止服务", "服务已停止", (*daemon.Manager).Stop),
		serviceAction("restart", "重启服务", "服务已重启", (*daemon.Manager).Restart),
		serviceStatusCmd,
	)
}
