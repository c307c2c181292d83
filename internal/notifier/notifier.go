// Package notifier 负责把告警事件投递到邮件、Slack 和 Webhook
package notifier

import (
	"context"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Channel 通知渠道
type Channel interface {
	Name() string
	// Enabled 端点的告警配置是否配置了该渠道
	Enabled(alerts *models.AlertConfig) bool
	Send(ctx context.Context, alerts *models.AlertConfig, event Event) error
}

// Notifier 将事件并发投递到端点配置的所有渠道
type Notifier struct {
	logger   *zap.Logger
	channels []Channel
}

// New 根据配置创建邮件、Slack、Webhook 三个渠道
func New(logger *zap.Logger, cfg config.NotificationConfig) *Notifier {
	p := newPoster(time.Duration(cfg.HTTPTimeout)*time.Second, cfg.MaxRetries)
	return NewWithChannels(logger,
		NewEmailChannel(cfg.SMTP),
		&SlackChannel{poster: p},
		&WebhookChannel{poster: p},
	)
}

// NewWithChannels 使用指定渠道创建
func NewWithChannels(logger *zap.Logger, channels ...Channel) *Notifier {
	return &Notifier{logger: logger, channels: channels}
}

// Dispatch 并发投递到所有已配置的渠道，单个渠道失败只记录日志，返回投递成功的渠道数
func (n *Notifier) Dispatch(ctx context.Context, alerts *models.AlertConfig, event Event) int {
	var enabled []Channel
	for _, ch := range n.channels {
		if ch.Enabled(alerts) {
			enabled = append(enabled, ch)
		}
	}
	if len(enabled) == 0 {
		return 0
	}

	delivered := make([]bool, len(enabled))
	var wg conc.WaitGroup
	for i, ch := range enabled {
		wg.Go(func() {
			if err := ch.Send(ctx, alerts, event); err != nil {
				n.logger.Error("发送通知失败",
					zap.String("channel", ch.Name()),
					zap.String("endpointId", event.EndpointID),
					zap.String("event", string(event.Type)),
					zap.Error(err))
				return
			}
			delivered[i] = true
			n.logger.Debug("发送通知成功",
				zap.String("channel", ch.Name()),
				zap.String("endpointId", event.EndpointID),
				zap.String("event", string(event.Type)))
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		n.logger.Error("发送通知时发生panic", zap.String("panic", recovered.String()))
	}

	count := 0
	for _, ok := range delivered {
		if ok {
			count++
		}
	}
	return count
}
