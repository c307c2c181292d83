package metric

import (
	"math"
	"sort"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/models"
)

// ResponseTimeStats 响应时间分布(ms)
type ResponseTimeStats struct {
	Average int64 `json:"average"`
	Min     int64 `json:"min"`
	Max     int64 `json:"max"`
	Median  int64 `json:"median"`
	P95     int64 `json:"p95"`
	P99     int64 `json:"p99"`
}

// Throughput 探测频率
type Throughput struct {
	RequestsPerHour float64 `json:"requestsPerHour"`
	RequestsPerDay  float64 `json:"requestsPerDay"`
}

// PerformanceMetrics 端点在时间窗口内的性能指标
type PerformanceMetrics struct {
	EndpointID   string            `json:"endpointId"`
	EndpointName string            `json:"endpointName"`
	ResponseTime ResponseTimeStats `json:"responseTime"`
	Throughput   Throughput        `json:"throughput"`
	ErrorRate    float64           `json:"errorRate"`
	Availability float64           `json:"availability"`
	SampleSize   int               `json:"sampleSize"` // 参与响应时间统计的成功结果数
}

// ComputePerformance 计算端点的性能指标；响应时间只统计成功结果，吞吐量统计全部结果
func ComputePerformance(endpoint *models.Endpoint, results []models.PingResult, w Window) PerformanceMetrics {
	times := make([]int64, 0, len(results))
	failed := 0
	for _, r := range results {
		if !r.IsSuccess {
			failed++
			continue
		}
		if r.ResponseTimeMs > 0 {
			times = append(times, r.ResponseTimeMs)
		}
	}

	m := PerformanceMetrics{
		EndpointID:   endpoint.ID,
		EndpointName: endpoint.Name,
		ResponseTime: ResponseTimeDistribution(times),
		Availability: 100,
		SampleSize:   len(times),
	}

	if hours := w.Hours(); hours > 0 {
		perHour := float64(len(results)) / hours
		m.Throughput = Throughput{
			RequestsPerHour: health.Round2(perHour),
			RequestsPerDay:  health.Round2(perHour * 24),
		}
	}
	if len(results) > 0 {
		m.ErrorRate = health.Round2(float64(failed) / float64(len(results)) * 100)
		m.Availability = health.Round2(100 - m.ErrorRate)
	}
	return m
}

// ResponseTimeDistribution 计算响应时间分布，分位数取排序后 floor(n*q) 位置的值
func ResponseTimeDistribution(times []int64) ResponseTimeStats {
	n := len(times)
	if n == 0 {
		return ResponseTimeStats{}
	}

	sorted := make([]int64, n)
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, t := range sorted {
		sum += t
	}
	return ResponseTimeStats{
		Average: int64(math.Round(float64(sum) / float64(n))),
		Min:     sorted[0],
		Max:     sorted[n-1],
		Median:  sorted[n/2],
		P95:     percentile(sorted, 0.95),
		P99:     percentile(sorted, 0.99),
	}
}

func percentile(sorted []int64, q float64) int64 {
	idx := int(math.Floor(float64(len(sorted)) * q))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
