package metric

import "time"

// DataPoint 统一的指标数据点结构
type DataPoint struct {
	Timestamp int64   `json:"timestamp"` // 毫秒时间戳，桶的起始时间
	Value     float64 `json:"value"`
}

// Series 指标系列
type Series struct {
	Name   string            `json:"name"`             // 系列名称
	Labels map[string]string `json:"labels,omitempty"` // 额外标签
	Data   []DataPoint       `json:"data"`             // 数据点列表
}

// Period 统计时间窗口
type Period string

const (
	Period1h  Period = "1h"
	Period24h Period = "24h"
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
)

// ParsePeriod 解析时间窗口，未知的值按 24h 处理
func ParsePeriod(s string) Period {
	switch p := Period(s); p {
	case Period1h, Period24h, Period7d, Period30d, Period90d:
		return p
	default:
		return Period24h
	}
}

// Duration 窗口长度
func (p Period) Duration() time.Duration {
	switch p {
	case Period1h:
		return time.Hour
	case Period7d:
		return 7 * 24 * time.Hour
	case Period30d:
		return 30 * 24 * time.Hour
	case Period90d:
		return 90 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Hours 窗口包含的小时数
func (p Period) Hours() float64 {
	return p.Duration().Hours()
}

// Days 窗口包含的天数，不足一天按一天计
func (p Period) Days() float64 {
	days := p.Duration().Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// Start 窗口起始时间
func (p Period) Start(now time.Time) time.Time {
	return now.Add(-p.Duration())
}

// Window 时间范围（毫秒）
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// WindowOf 以 now 为终点的时间窗口
func WindowOf(p Period, now time.Time) Window {
	return Window{Start: p.Start(now).UnixMilli(), End: now.UnixMilli()}
}

// Hours 窗口包含的小时数
func (w Window) Hours() float64 {
	return float64(w.End-w.Start) / float64(time.Hour.Milliseconds())
}
