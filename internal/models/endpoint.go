package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EndpointStatus 端点生命周期状态
type EndpointStatus string

const (
	EndpointStatusActive   EndpointStatus = "active"
	EndpointStatusInactive EndpointStatus = "inactive"
	EndpointStatusPaused   EndpointStatus = "paused"
)

// Provider 第三方服务提供商
type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderTwitter  Provider = "twitter"
	ProviderGitHub   Provider = "github"
	ProviderSlack    Provider = "slack"
	ProviderDiscord  Provider = "discord"
	ProviderZoom     Provider = "zoom"
	ProviderPayPal   Provider = "paypal"
	ProviderAWS      Provider = "aws"
	ProviderAzure    Provider = "azure"
	ProviderMailgun  Provider = "mailgun"
	ProviderSendGrid Provider = "sendgrid"
	ProviderTwilio   Provider = "twilio"
	ProviderCustom   Provider = "custom"
)

// 端点配置默认值
const (
	DefaultTimeoutMs           = 30000
	DefaultIntervalSeconds     = 300
	DefaultRetryAttempts       = 3
	DefaultRetryDelayMs        = 1000
	DefaultConsecutiveFailures = 3
)

// ExpectedResponse 期望的响应断言，未设置的字段不参与校验
type ExpectedResponse struct {
	StatusCode        int    `json:"statusCode,omitempty" validate:"omitempty,min=100,max=599"`
	ContentType       string `json:"contentType,omitempty"`
	BodyContains      string `json:"bodyContains,omitempty"`
	MaxResponseTimeMs int64  `json:"maxResponseTimeMs,omitempty" validate:"omitempty,min=100,max=30000"`
}

// AlertConfig 告警配置
type AlertConfig struct {
	ConsecutiveFailures     int      `json:"consecutiveFailures,omitempty" validate:"omitempty,min=1,max=10"`
	ResponseTimeThresholdMs int64    `json:"responseTimeThresholdMs,omitempty" validate:"omitempty,min=100,max=30000"`
	UptimeThreshold         float64  `json:"uptimeThreshold,omitempty" validate:"omitempty,min=50,max=100"`
	EmailNotifications      []string `json:"emailNotifications,omitempty" validate:"omitempty,dive,email"`
	SlackWebhook            string   `json:"slackWebhook,omitempty" validate:"omitempty,url"`
	WebhookURL              string   `json:"webhookUrl,omitempty" validate:"omitempty,url"`
	NotifyOnRecovery        *bool    `json:"notifyOnRecovery,omitempty"` // 为空时默认发送恢复通知
}

// FailureThreshold 连续失败阈值，未配置时为 3
func (c *AlertConfig) FailureThreshold() int {
	if c == nil || c.ConsecutiveFailures <= 0 {
		return DefaultConsecutiveFailures
	}
	return c.ConsecutiveFailures
}

// RecoveryEnabled 是否发送恢复通知
func (c *AlertConfig) RecoveryEnabled() bool {
	return c == nil || c.NotifyOnRecovery == nil || *c.NotifyOnRecovery
}

// Endpoint 被监控的 API 端点
type Endpoint struct {
	ID               string                                `gorm:"primaryKey" json:"id"`
	Name             string                                `gorm:"size:255;not null" json:"name"`
	Description      string                                `json:"description,omitempty"`
	URL              string                                `gorm:"size:1024;uniqueIndex;not null" json:"url"`
	Method           string                                `gorm:"size:16;default:GET" json:"method"`
	Provider         Provider                              `gorm:"size:32;index;default:custom" json:"provider"`
	Headers          datatypes.JSONType[map[string]string] `json:"headers"`
	Body             string                                `json:"body,omitempty"`
	TimeoutMs        int                                   `json:"timeoutMs"`
	IntervalSeconds  int                                   `json:"intervalSeconds"`
	RetryAttempts    int                                   `json:"retryAttempts"`
	RetryDelayMs     int                                   `json:"retryDelayMs"`
	ExpectedResponse datatypes.JSONType[*ExpectedResponse] `json:"expectedResponse"`
	Status           EndpointStatus                        `gorm:"size:16;index;default:active" json:"status"`
	IsActive         bool                                  `gorm:"index" json:"isActive"`
	EnableAlerts     bool                                  `json:"enableAlerts"`
	AlertConfig      datatypes.JSONType[*AlertConfig]      `json:"alertConfig"`
	Tags             datatypes.JSONSlice[string]           `json:"tags"`
	CreatedBy        string                                `json:"createdBy,omitempty"`
	UpdatedBy        string                                `json:"updatedBy,omitempty"`
	LastPingAt       *int64                                `json:"lastPingAt"`                            // 最后探测时间（毫秒）
	NextPingAt       *int64                                `gorm:"index" json:"nextPingAt"`               // 下次探测时间（毫秒），为空表示立即可探测
	CreatedAt        int64                                 `json:"createdAt"`                             // 创建时间（毫秒）
	UpdatedAt        int64                                 `json:"updatedAt" gorm:"autoUpdateTime:milli"` // 更新时间（毫秒）

	Results []PingResult `gorm:"foreignKey:EndpointID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Endpoint) TableName() string {
	return "api_endpoints"
}

// BeforeCreate GORM钩子：设置创建时间
func (e *Endpoint) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// Schedulable 是否满足调度条件：生命周期为 active 且监控开关打开
func (e *Endpoint) Schedulable() bool {
	return e.IsActive && e.Status == EndpointStatusActive
}

// Expected 返回期望响应配置，可能为 nil
func (e *Endpoint) Expected() *ExpectedResponse {
	return e.ExpectedResponse.Data()
}

// Alerts 返回告警配置，可能为 nil
func (e *Endpoint) Alerts() *AlertConfig {
	return e.AlertConfig.Data()
}

// Interval 探测间隔
func (e *Endpoint) Interval() time.Duration {
	seconds := e.IntervalSeconds
	if seconds <= 0 {
		seconds = DefaultIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}
