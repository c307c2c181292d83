package metric

import (
	"math"
	"sort"

	"github.com/dushixiang/apiping/internal/health"
)

// 全局健康分布阈值，按窗口内可用率划分
const (
	GlobalHealthyUptime  = 99.0
	GlobalDegradedUptime = 95.0
	performersLimit      = 5
)

// GlobalOverview 全局概览
type GlobalOverview struct {
	TotalEndpoints      int     `json:"totalEndpoints"`
	ActiveEndpoints     int     `json:"activeEndpoints"`
	HealthyEndpoints    int     `json:"healthyEndpoints"`
	DegradedEndpoints   int     `json:"degradedEndpoints"`
	DownEndpoints       int     `json:"downEndpoints"`
	AverageUptime       float64 `json:"averageUptime"`
	AverageResponseTime int64   `json:"averageResponseTime"`
	TotalChecksToday    int64   `json:"totalChecksToday"`
	TotalIncidentsToday int64   `json:"totalIncidentsToday"`
}

// GlobalMetrics 全局指标
type GlobalMetrics struct {
	Period          Period          `json:"period"`
	Overview        GlobalOverview  `json:"overview"`
	Trends          []Series        `json:"trends"`
	TopPerformers   []UptimeMetrics `json:"topPerformers"`
	WorstPerformers []UptimeMetrics `json:"worstPerformers"`
	GeneratedAt     int64           `json:"generatedAt"`
}

// Summarize 根据各端点的可用率计算健康分布、平均值和排名
func Summarize(items []UptimeMetrics) (overview GlobalOverview, top []UptimeMetrics, worst []UptimeMetrics) {
	overview.AverageUptime = 100
	if len(items) == 0 {
		return overview, []UptimeMetrics{}, []UptimeMetrics{}
	}

	var uptimeSum float64
	var responseSum int64
	for _, m := range items {
		switch {
		case m.UptimePercentage >= GlobalHealthyUptime:
			overview.HealthyEndpoints++
		case m.UptimePercentage >= GlobalDegradedUptime:
			overview.DegradedEndpoints++
		default:
			overview.DownEndpoints++
		}
		uptimeSum += m.UptimePercentage
		responseSum += m.AverageResponseTime
	}
	overview.AverageUptime = health.Round2(uptimeSum / float64(len(items)))
	overview.AverageResponseTime = int64(math.Round(float64(responseSum) / float64(len(items))))

	sorted := make([]UptimeMetrics, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UptimePercentage > sorted[j].UptimePercentage
	})

	n := performersLimit
	if n > len(sorted) {
		n = len(sorted)
	}
	top = append([]UptimeMetrics{}, sorted[:n]...)
	worst = make([]UptimeMetrics, 0, n)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		worst = append(worst, sorted[i])
	}
	return overview, top, worst
}
