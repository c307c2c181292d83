package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dushixiang/apiping/internal/app"
	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/daemon"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务和调度器",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		run := func(ctx context.Context) error {
			return serve(ctx, cfg)
		}

		// 作为系统服务启动时交给服务管理器控制生命周期
		if !daemon.Interactive() {
			manager, err := daemon.NewManager(zap.L(), configPath, run)
			if err != nil {
				return err
			}
			return manager.Run()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "执行一次调度扫描，探测所有到期端点后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, cleanup, err := app.InitializeApp(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := a.Scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("已探测 %d 个到期端点\n", n)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置文件管理",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "生成默认配置文件",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) > 0 {
			path = args[0]
		} else if configPath != "" {
			path = configPath
		}
		fs := afero.NewOsFs()
		if dir := filepath.Dir(path); dir != "." {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		if err := config.WriteDefault(fs, path); err != nil {
			return err
		}
		fmt.Printf("✅ 已生成默认配置: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func loadConfig() (*config.AppConfig, error) {
	return config.Load(afero.NewOsFs(), configPath)
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	a, cleanup, err := app.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	undo := zap.ReplaceGlobals(a.Logger)
	defer undo()

	return a.Server.Run(ctx)
}
