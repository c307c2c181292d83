package notifier

import (
	"context"
	"time"

	"github.com/dushixiang/apiping/internal/models"
)

// WebhookChannel 通用 JSON Webhook
type WebhookChannel struct {
	poster *poster
}

// WebhookEndpoint Webhook 消息中的端点信息
type WebhookEndpoint struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// WebhookPayload Webhook 消息体
type WebhookPayload struct {
	Event     EventType              `json:"event"`
	Severity  Severity               `json:"severity"`
	Endpoint  WebhookEndpoint        `json:"endpoint"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	Timestamp string                 `json:"timestamp"`
}

func (c *WebhookChannel) Name() string {
	return "webhook"
}

func (c *WebhookChannel) Enabled(alerts *models.AlertConfig) bool {
	return alerts != nil && alerts.WebhookURL != ""
}

func (c *WebhookChannel) Send(ctx context.Context, alerts *models.AlertConfig, event Event) error {
	payload := WebhookPayload{
		Event:    event.Type,
		Severity: event.Severity,
		Endpoint: WebhookEndpoint{
			ID:   event.EndpointID,
			Name: event.EndpointName,
			URL:  event.EndpointURL,
		},
		Message:   event.Message,
		Details:   event.Details,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	}
	return c.poster.postJSON(ctx, alerts.WebhookURL, payload)
}
