package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/dushixiang/apiping/internal/models"
)

// SlackChannel Slack Incoming Webhook
type SlackChannel struct {
	poster *poster
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer,omitempty"`
}

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (c *SlackChannel) Name() string {
	return "slack"
}

func (c *SlackChannel) Enabled(alerts *models.AlertConfig) bool {
	return alerts != nil && alerts.SlackWebhook != ""
}

func (c *SlackChannel) Send(ctx context.Context, alerts *models.AlertConfig, event Event) error {
	payload := slackPayload{
		Text: event.Message,
		Attachments: []slackAttachment{{
			Color: SeverityColor(event.Severity),
			Fields: []slackField{
				{Title: "Endpoint", Value: fmt.Sprintf("%s (%s)", event.EndpointName, event.EndpointURL)},
				{Title: "Time", Value: event.Timestamp.UTC().Format(time.RFC3339), Short: true},
				{Title: "Type", Value: event.Title(), Short: true},
			},
			Footer: "API Ping Monitor",
		}},
	}
	return c.poster.postJSON(ctx, alerts.SlackWebhook, payload)
}

// SeverityColor 告警级别对应的 Slack 颜色
func SeverityColor(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "#ff0000"
	case SeverityHigh:
		return "#ff8800"
	case SeverityMedium:
		return "#ffcc00"
	case SeverityLow:
		return "#88cc00"
	default:
		return "#cccccc"
	}
}
