package metric

import (
	"math"

	"github.com/dushixiang/apiping/internal/health"
)

// SLA 状态
const (
	SLAMet      = "met"
	SLAAtRisk   = "at_risk"
	SLABreached = "breached"
)

// DefaultSLATarget 默认 SLA 目标可用率
const DefaultSLATarget = 99.9

// SLAReport 端点的 SLA 报告
type SLAReport struct {
	EndpointID           string  `json:"endpointId"`
	EndpointName         string  `json:"endpointName"`
	Period               Period  `json:"period"`
	SLATarget            float64 `json:"slaTarget"`
	CurrentUptime        float64 `json:"currentUptime"`
	SLAStatus            string  `json:"slaStatus"`
	RemainingErrorBudget float64 `json:"remainingErrorBudget"` // 剩余错误预算百分比
	ProjectedUptime      float64 `json:"projectedUptime"`
	TotalChecks          int     `json:"totalChecks"`
	FailedChecks         int     `json:"failedChecks"`
	DaysUntilSLABreach   *int    `json:"daysUntilSLABreach,omitempty"` // 仅 at_risk 时计算
}

// SLAStatus 当前可用率相对目标的状态，低于目标 0.5 个百分点以内为 at_risk
func SLAStatus(currentUptime, target float64) string {
	switch {
	case currentUptime >= target:
		return SLAMet
	case currentUptime >= target-0.5:
		return SLAAtRisk
	default:
		return SLABreached
	}
}

// RemainingErrorBudget 剩余错误预算百分比，不小于 0
func RemainingErrorBudget(target float64, totalChecks, failedChecks int) float64 {
	if totalChecks <= 0 {
		return 0
	}
	return health.Round2(float64(remainingFailures(target, totalChecks, failedChecks)) / float64(totalChecks) * 100)
}

// remainingFailures 目标下允许的失败次数减去实际失败次数
func remainingFailures(target float64, totalChecks, failedChecks int) int {
	// 1e-9 抵消浮点误差，如 300*(1-0.99) 不应落到 2
	allowed := int(math.Floor(float64(totalChecks)*(1-target/100) + 1e-9))
	if allowed-failedChecks < 0 {
		return 0
	}
	return allowed - failedChecks
}

// exactUptime 未取整的可用率，SLA 状态按它判断
func exactUptime(m UptimeMetrics) float64 {
	if m.TotalChecks <= 0 {
		return m.UptimePercentage
	}
	return float64(m.TotalChecks-m.FailedChecks) / float64(m.TotalChecks) * 100
}

// BuildSLAReport 根据可用率指标生成 SLA 报告，展示字段取整，状态和预算按实际失败次数计算
func BuildSLAReport(m UptimeMetrics, target float64, period Period) SLAReport {
	report := SLAReport{
		EndpointID:      m.EndpointID,
		EndpointName:    m.EndpointName,
		Period:          period,
		SLATarget:       target,
		CurrentUptime:   m.UptimePercentage,
		SLAStatus:       SLAStatus(exactUptime(m), target),
		ProjectedUptime: m.UptimePercentage,
		TotalChecks:     m.TotalChecks,
		FailedChecks:    m.FailedChecks,
	}
	report.RemainingErrorBudget = RemainingErrorBudget(target, m.TotalChecks, m.FailedChecks)

	if report.SLAStatus == SLAAtRisk {
		days := 0
		remaining := remainingFailures(target, m.TotalChecks, m.FailedChecks)
		dailyFailures := float64(m.FailedChecks) / period.Days()
		if remaining > 0 && dailyFailures > 0 {
			days = int(math.Floor(float64(remaining) / dailyFailures))
		}
		report.DaysUntilSLABreach = &days
	}
	return report
}
