package metric

import (
	"math"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/models"
)

// UptimeMetrics 端点在时间窗口内的可用率
type UptimeMetrics struct {
	EndpointID          string          `json:"endpointId"`
	EndpointName        string          `json:"endpointName"`
	URL                 string          `json:"url"`
	Provider            models.Provider `json:"provider"`
	UptimePercentage    float64         `json:"uptimePercentage"`    // 没有数据时为 100
	TotalChecks         int             `json:"totalChecks"`
	SuccessfulChecks    int             `json:"successfulChecks"`
	FailedChecks        int             `json:"failedChecks"`
	AverageResponseTime int64           `json:"averageResponseTime"` // 只统计成功结果(ms)
	MinResponseTime     int64           `json:"minResponseTime"`
	MaxResponseTime     int64           `json:"maxResponseTime"`
	LastCheckTime       *int64          `json:"lastCheckTime"`
	LastFailureTime     *int64          `json:"lastFailureTime,omitempty"`
	MeanTimeToRecovery  float64         `json:"meanTimeToRecovery"`      // 分钟
	MeanTimeBetweenFail float64         `json:"meanTimeBetweenFailures"` // 分钟
}

// ErrorRate 失败率百分比
func (m *UptimeMetrics) ErrorRate() float64 {
	if m.TotalChecks == 0 {
		return 0
	}
	return float64(m.FailedChecks) / float64(m.TotalChecks) * 100
}

// ComputeUptime 计算端点的可用率指标，results 按时间升序
func ComputeUptime(endpoint *models.Endpoint, results []models.PingResult, w Window) UptimeMetrics {
	m := UptimeMetrics{
		EndpointID:       endpoint.ID,
		EndpointName:     endpoint.Name,
		URL:              endpoint.URL,
		Provider:         endpoint.Provider,
		UptimePercentage: 100,
		TotalChecks:      len(results),
	}

	var sum, count int64
	for i := range results {
		r := &results[i]
		if m.LastCheckTime == nil || r.CreatedAt > *m.LastCheckTime {
			m.LastCheckTime = &r.CreatedAt
		}
		if !r.IsSuccess {
			m.FailedChecks++
			if m.LastFailureTime == nil || r.CreatedAt > *m.LastFailureTime {
				m.LastFailureTime = &r.CreatedAt
			}
			continue
		}
		m.SuccessfulChecks++
		if r.ResponseTimeMs <= 0 {
			continue
		}
		if count == 0 || r.ResponseTimeMs < m.MinResponseTime {
			m.MinResponseTime = r.ResponseTimeMs
		}
		if r.ResponseTimeMs > m.MaxResponseTime {
			m.MaxResponseTime = r.ResponseTimeMs
		}
		sum += r.ResponseTimeMs
		count++
	}

	if m.TotalChecks > 0 {
		m.UptimePercentage = health.Round2(float64(m.SuccessfulChecks) / float64(m.TotalChecks) * 100)
	}
	if count > 0 {
		m.AverageResponseTime = int64(math.Round(float64(sum) / float64(count)))
	}

	spans := Spans(results, w.End)
	m.MeanTimeToRecovery = MTTR(spans)
	m.MeanTimeBetweenFail = MTBF(spans)
	return m
}

// ComparisonChange 两个窗口的差值，当前减去之前
type ComparisonChange struct {
	UptimePercentage    float64 `json:"uptimePercentage"`
	AverageResponseTime int64   `json:"averageResponseTime"`
	TotalChecks         int     `json:"totalChecks"`
	ErrorRate           float64 `json:"errorRate"`
}

// ComparisonMetrics 当前窗口与之前窗口的对比
type ComparisonMetrics struct {
	Current        UptimeMetrics    `json:"current"`
	Previous       UptimeMetrics    `json:"previous"`
	CurrentPeriod  Period           `json:"currentPeriod"`
	PreviousPeriod Period           `json:"previousPeriod"`
	Change         ComparisonChange `json:"change"`
}

// Compare 计算两个窗口的差值
func Compare(current, previous UptimeMetrics) ComparisonChange {
	return ComparisonChange{
		UptimePercentage:    health.Round2(current.UptimePercentage - previous.UptimePercentage),
		AverageResponseTime: current.AverageResponseTime - previous.AverageResponseTime,
		TotalChecks:         current.TotalChecks - previous.TotalChecks,
		ErrorRate:           health.Round2(current.ErrorRate() - previous.ErrorRate()),
	}
}
