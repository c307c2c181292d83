package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PingStatus 探测结果分类
type PingStatus string

const (
	PingStatusSuccess         PingStatus = "success"
	PingStatusTimeout         PingStatus = "timeout"
	PingStatusDNSError        PingStatus = "dns_error"
	PingStatusConnectionError PingStatus = "connection_error"
	PingStatusSSLError        PingStatus = "ssl_error"
	PingStatusHTTPError       PingStatus = "http_error"
	PingStatusValidationError PingStatus = "validation_error"
	PingStatusUnknownError    PingStatus = "unknown_error"
)

// AllPingStatuses 所有探测结果分类，按分类优先级排列
var AllPingStatuses = []PingStatus{
	PingStatusTimeout,
	PingStatusDNSError,
	PingStatusConnectionError,
	PingStatusSSLError,
	PingStatusHTTPError,
	PingStatusValidationError,
	PingStatusSuccess,
	PingStatusUnknownError,
}

// Timings 请求各阶段耗时（毫秒），取决于传输层能提供的信息，可能缺失
type Timings struct {
	DNSLookupMs       *int64 `json:"dnsLookupMs,omitempty"`
	TCPConnectMs      *int64 `json:"tcpConnectMs,omitempty"`
	TLSHandshakeMs    *int64 `json:"tlsHandshakeMs,omitempty"`
	FirstByteMs       *int64 `json:"firstByteMs,omitempty"`
	ContentTransferMs *int64 `json:"contentTransferMs,omitempty"`
}

// ValidationResults 各断言的校验结果，未配置的断言为 nil
type ValidationResults struct {
	StatusCodeValid   *bool    `json:"statusCodeValid,omitempty"`
	ContentTypeValid  *bool    `json:"contentTypeValid,omitempty"`
	BodyValid         *bool    `json:"bodyValid,omitempty"`
	ResponseTimeValid *bool    `json:"responseTimeValid,omitempty"`
	Details           []string `json:"details,omitempty"`
}

// PingResult 单次探测结果，创建后不可修改
type PingResult struct {
	ID                string                                 `gorm:"primaryKey" json:"id"`
	EndpointID        string                                 `gorm:"index;not null" json:"endpointId"`
	Status            PingStatus                             `gorm:"size:32;index" json:"status"`
	IsSuccess         bool                                   `gorm:"index" json:"isSuccess"`
	HTTPStatusCode    *int                                   `json:"httpStatusCode"`
	ResponseTimeMs    int64                                  `json:"responseTimeMs"`
	Timings           datatypes.JSONType[Timings]            `json:"timings"`
	ResponseSize      int64                                  `json:"responseSize"`
	ResponseBody      string                                 `json:"responseBody,omitempty"`
	ResponseHeaders   datatypes.JSONType[map[string]string]  `json:"responseHeaders"`
	ErrorMessage      string                                 `json:"errorMessage,omitempty"`
	ErrorDetails      string                                 `json:"errorDetails,omitempty"`
	IsTimeout         bool                                   `json:"isTimeout"`
	AttemptNumber     int                                    `json:"attemptNumber"`
	ValidationResults datatypes.JSONType[*ValidationResults] `json:"validationResults"`
	Metadata          datatypes.JSONMap                      `json:"metadata"`
	AlertSent         bool                                   `json:"alertSent"`
	PerformanceIssue  bool                                   `json:"performanceIssue"`
	CreatedAt         int64                                  `gorm:"index" json:"createdAt"` // 探测时间（毫秒）
}

func (PingResult) TableName() string {
	return "ping_results"
}

// BeforeCreate GORM钩子：设置创建时间
func (r *PingResult) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// Validation 返回校验结果，可能为 nil
func (r *PingResult) Validation() *ValidationResults {
	return r.ValidationResults.Data()
}

// CreatedTime 探测时间
func (r *PingResult) CreatedTime() time.Time {
	return time.UnixMilli(r.CreatedAt)
}
