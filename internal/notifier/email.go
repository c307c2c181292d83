package notifier

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"gopkg.in/gomail.v2"
)

const emailTemplate = `<html>
<body style="font-family: sans-serif;">
<h2 style="color: {{color}};">[{{severity}}] {{title}}</h2>
<p>{{message}}</p>
<table cellpadding="4">
<tr><td><b>Endpoint</b></td><td>{{name}}</td></tr>
<tr><td><b>URL</b></td><td>{{url}}</td></tr>
<tr><td><b>Time</b></td><td>{{time}}</td></tr>
{{details}}
</table>
<p style="color: #888;">API Ping Monitor</p>
</body>
</html>`

// EmailChannel SMTP 邮件
type EmailChannel struct {
	cfg  config.SMTPConfig
	send func(m *gomail.Message) error
}

func NewEmailChannel(cfg config.SMTPConfig) *EmailChannel {
	c := &EmailChannel{cfg: cfg}
	c.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		return d.DialAndSend(m)
	}
	return c
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Enabled(alerts *models.AlertConfig) bool {
	return alerts != nil && len(alerts.EmailNotifications) > 0 && c.cfg.Host != ""
}

func (c *EmailChannel) Send(ctx context.Context, alerts *models.AlertConfig, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	from := c.cfg.From
	if from == "" {
		from = c.cfg.Username
	}
	m.SetHeader("From", from)
	m.SetHeader("To", alerts.EmailNotifications...)
	m.SetHeader("Subject", EmailSubject(event))
	m.SetBody("text/html", EmailBody(event))

	if err := c.send(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

// EmailSubject 邮件标题
func EmailSubject(event Event) string {
	return fmt.Sprintf("[%s] API Monitor Alert: %s", strings.ToUpper(string(event.Severity)), event.EndpointName)
}

// EmailBody 渲染邮件正文
func EmailBody(event Event) string {
	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&rows, "<tr><td><b>%s</b></td><td>%s</td></tr>\n",
			html.EscapeString(k), html.EscapeString(fmt.Sprint(event.Details[k])))
	}

	return render(emailTemplate, map[string]interface{}{
		"color":    SeverityColor(event.Severity),
		"severity": strings.ToUpper(string(event.Severity)),
		"title":    html.EscapeString(event.Title()),
		"message":  html.EscapeString(event.Message),
		"name":     html.EscapeString(event.EndpointName),
		"url":      html.EscapeString(event.EndpointURL),
		"time":     event.Timestamp.UTC().Format(time.RFC1123),
		"details":  rows.String(),
	})
}
