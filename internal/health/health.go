// Package health 根据端点最近的探测结果计算派生的健康指标，不依赖存储
package health

import (
	"math"
	"strings"

	"github.com/dushixiang/apiping/internal/models"
)

// Status 端点当前健康状态
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
	StatusUnknown  Status = "unknown"
)

// 计算窗口大小
const (
	HealthyWindow       = 5  // isHealthy 参考最近 5 次结果
	CurrentStatusWindow = 10 // currentStatus 参考最近 10 次结果
	ResponseTimeWindow  = 50 // 平均响应时间参考最近 50 次成功结果
)

// IsHealthy 最近 5 次探测全部成功才算健康，recent 按时间倒序
func IsHealthy(recent []models.PingResult) bool {
	window := head(recent, HealthyWindow)
	if len(window) == 0 {
		return false
	}
	for _, r := range window {
		if !r.IsSuccess {
			return false
		}
	}
	return true
}

// CurrentStatus 根据最近 10 次探测的成功率给出健康状态
func CurrentStatus(recent []models.PingResult) Status {
	window := head(recent, CurrentStatusWindow)
	if len(window) == 0 {
		return StatusUnknown
	}
	success := 0
	for _, r := range window {
		if r.IsSuccess {
			success++
		}
	}
	ratio := float64(success) / float64(len(window))
	switch {
	case ratio >= 0.9:
		return StatusHealthy
	case ratio >= 0.5:
		return StatusDegraded
	default:
		return StatusDown
	}
}

// AverageResponseTime 最近 50 次成功探测的平均响应时间（四舍五入），没有数据时为 0
func AverageResponseTime(recent []models.PingResult) int64 {
	var sum, count int64
	for _, r := range recent {
		if !r.IsSuccess || r.ResponseTimeMs <= 0 {
			continue
		}
		sum += r.ResponseTimeMs
		count++
		if count == ResponseTimeWindow {
			break
		}
	}
	if count == 0 {
		return 0
	}
	return int64(math.Round(float64(sum) / float64(count)))
}

// Uptime 可用率百分比，保留两位小数；没有数据时为 100
func Uptime(results []models.PingResult) float64 {
	if len(results) == 0 {
		return 100
	}
	success := 0
	for _, r := range results {
		if r.IsSuccess {
			success++
		}
	}
	return Round2(float64(success) / float64(len(results)) * 100)
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PerformanceGrade 响应时间等级
func PerformanceGrade(responseTimeMs int64) string {
	switch {
	case responseTimeMs <= 200:
		return "A"
	case responseTimeMs <= 500:
		return "B"
	case responseTimeMs <= 1000:
		return "C"
	case responseTimeMs <= 2000:
		return "D"
	default:
		return "F"
	}
}

// StatusCategory 结果归类：success / client_error / server_error / network_error / unknown
func StatusCategory(r *models.PingResult) string {
	if r.IsSuccess {
		return "success"
	}
	if r.HTTPStatusCode != nil {
		code := *r.HTTPStatusCode
		switch {
		case code >= 400 && code < 500:
			return "client_error"
		case code >= 500:
			return "server_error"
		}
	}
	switch r.Status {
	case models.PingStatusTimeout, models.PingStatusDNSError, models.PingStatusConnectionError, models.PingStatusSSLError:
		return "network_error"
	}
	return "unknown"
}

var defaultErrorMessages = map[models.PingStatus]string{
	models.PingStatusTimeout:         "Request timed out",
	models.PingStatusDNSError:        "DNS resolution failed",
	models.PingStatusConnectionError: "Connection failed",
	models.PingStatusSSLError:        "SSL/TLS error",
	models.PingStatusHTTPError:       "HTTP error",
	models.PingStatusValidationError: "Response validation failed",
}

// ErrorSummary 错误摘要，超过 100 个字符时截断
func ErrorSummary(r *models.PingResult) string {
	if r.IsSuccess {
		return ""
	}
	if msg := strings.TrimSpace(r.ErrorMessage); msg != "" {
		runes := []rune(msg)
		if len(runes) > 100 {
			return string(runes[:100]) + "..."
		}
		return msg
	}
	if msg, ok := defaultErrorMessages[r.Status]; ok {
		return msg
	}
	return "Unknown error"
}

// HasPerformanceIssue 是否超过期望的响应时间上限
func HasPerformanceIssue(r *models.PingResult, expected *models.ExpectedResponse) bool {
	if r.PerformanceIssue {
		return true
	}
	if expected == nil || expected.MaxResponseTimeMs <= 0 {
		return false
	}
	return r.ResponseTimeMs > expected.MaxResponseTimeMs
}

func head(results []models.PingResult, n int) []models.PingResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}
