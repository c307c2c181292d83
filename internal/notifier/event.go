package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"
)

// EventType 通知事件类型
type EventType string

const (
	EventFailure       EventType = "failure"
	EventRecovery      EventType = "recovery"
	EventSlowResponse  EventType = "slow_response"
	EventDowntimeAlert EventType = "downtime_alert"
	EventTest          EventType = "test"
)

// Severity 告警级别
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event 一次通知事件
type Event struct {
	Type         EventType              `json:"type"`
	Severity     Severity               `json:"severity"`
	EndpointID   string                 `json:"endpointId"`
	EndpointName string                 `json:"endpointName"`
	EndpointURL  string                 `json:"endpointUrl"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Title 事件类型的可读名称，如 SLOW RESPONSE
func (e *Event) Title() string {
	return strings.ToUpper(strings.ReplaceAll(string(e.Type), "_", " "))
}

var messageTemplates = map[EventType]string{
	EventFailure:       "{{name}} is experiencing issues ({{failures}} consecutive failures)",
	EventRecovery:      "{{name}} has recovered and is now responding successfully",
	EventSlowResponse:  "{{name}} is responding slowly ({{responseTime}}ms > {{threshold}}ms)",
	EventDowntimeAlert: "{{name}} uptime is below threshold ({{uptime}}% < {{threshold}}%)",
	EventTest:          "Test notification for {{name}}",
}

// Message 按事件类型渲染通知文本，vars 中的值会被格式化为字符串
func Message(eventType EventType, vars map[string]interface{}) string {
	tpl, ok := messageTemplates[eventType]
	if !ok {
		tpl = "{{name}}: " + string(eventType)
	}
	return render(tpl, vars)
}

// render fasttemplate 只接受字符串类型的值
func render(tpl string, vars map[string]interface{}) string {
	values := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		switch v := v.(type) {
		case string:
			values[k] = v
		case float64:
			values[k] = fmt.Sprintf("%.2f", v)
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return fasttemplate.ExecuteStringStd(tpl, "{{", "}}", values)
}
