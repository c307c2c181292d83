//go:build wireinject

package app

import (
	"github.com/dushixiang/apiping/internal/config"
	"github.com/google/wire"
)

// InitializeApp 根据配置组装应用，返回的 cleanup 负责关闭数据库和刷新日志
func InitializeApp(cfg *config.AppConfig) (*App, func(), error) {
	wire.Build(infraSet, serviceSet, handlerSet, NewApp)
	return nil, nil, nil
}
