package metric

import (
	"sort"
	"time"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/models"
)

const dayLayout = "2006-01-02"

// Incident 一次连续失败区间，从第一次失败到之后的第一次成功
type Incident struct {
	StartedAt       int64                     `json:"startedAt"`
	EndedAt         int64                     `json:"endedAt"`
	DurationMinutes float64                   `json:"durationMinutes"`
	FailedChecks    int                       `json:"failedChecks"`
	Statuses        map[models.PingStatus]int `json:"statuses"`
	Ongoing         bool                      `json:"ongoing"` // 窗口结束时仍未恢复
}

// DailyIncidents 按天汇总的失败
type DailyIncidents struct {
	Date     string  `json:"date"`
	Count    int     `json:"count"`
	Downtime float64 `json:"downtime"` // 分钟，按区间开始日期归属
}

// Outage 最长故障
type Outage struct {
	Duration  float64 `json:"duration"` // 分钟
	StartTime int64   `json:"startTime"`
	EndTime   int64   `json:"endTime"`
}

// IncidentMetrics 端点在时间窗口内的故障统计
type IncidentMetrics struct {
	EndpointID              string                    `json:"endpointId"`
	EndpointName            string                    `json:"endpointName"`
	TotalIncidents          int                       `json:"totalIncidents"` // 失败结果数
	TotalDowntime           float64                   `json:"totalDowntime"`  // 分钟
	IncidentsByType         map[models.PingStatus]int `json:"incidentsByType"`
	IncidentsByDay          []DailyIncidents          `json:"incidentsByDay"`
	LongestOutage           Outage                    `json:"longestOutage"`
	AverageIncidentDuration float64                   `json:"averageIncidentDuration"` // 分钟
	Incidents               []Incident                `json:"incidents"`
	MeanTimeToRecovery      float64                   `json:"meanTimeToRecovery"`      // 分钟
	MeanTimeBetweenFailures float64                   `json:"meanTimeBetweenFailures"` // 分钟
}

// Spans 从按时间升序的结果中切分连续失败区间，未恢复的区间在 windowEnd 处截止
func Spans(results []models.PingResult, windowEnd int64) []Incident {
	var spans []Incident
	var open *Incident
	for _, r := range results {
		if r.IsSuccess {
			if open != nil {
				open.EndedAt = r.CreatedAt
				spans = append(spans, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &Incident{StartedAt: r.CreatedAt, Statuses: make(map[models.PingStatus]int)}
		}
		open.FailedChecks++
		open.Statuses[r.Status]++
	}
	if open != nil {
		open.EndedAt = windowEnd
		if open.EndedAt < open.StartedAt {
			open.EndedAt = open.StartedAt
		}
		open.Ongoing = true
		spans = append(spans, *open)
	}
	for i := range spans {
		spans[i].DurationMinutes = minutes(spans[i].EndedAt - spans[i].StartedAt)
	}
	return spans
}

// MTTR 平均恢复时间（分钟）
func MTTR(spans []Incident) float64 {
	if len(spans) == 0 {
		return 0
	}
	var total float64
	for _, s := range spans {
		total += s.DurationMinutes
	}
	return health.Round2(total / float64(len(spans)))
}

// MTBF 平均故障间隔（分钟），即上一次恢复到下一次故障开始的平均时长，少于两个区间时为 0
func MTBF(spans []Incident) float64 {
	if len(spans) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(spans); i++ {
		total += minutes(spans[i].StartedAt - spans[i-1].EndedAt)
	}
	return health.Round2(total / float64(len(spans)-1))
}

// ComputeIncidents 计算端点的故障统计，results 按时间升序且包含成功结果，用于确定区间边界
func ComputeIncidents(endpoint *models.Endpoint, results []models.PingResult, w Window, loc *time.Location) IncidentMetrics {
	m := IncidentMetrics{
		EndpointID:      endpoint.ID,
		EndpointName:    endpoint.Name,
		IncidentsByType: make(map[models.PingStatus]int),
		IncidentsByDay:  []DailyIncidents{},
		Incidents:       []Incident{},
	}
	if loc == nil {
		loc = time.Local
	}

	byDay := make(map[string]*DailyIncidents)
	day := func(ms int64) *DailyIncidents {
		key := time.UnixMilli(ms).In(loc).Format(dayLayout)
		d, ok := byDay[key]
		if !ok {
			d = &DailyIncidents{Date: key}
			byDay[key] = d
		}
		return d
	}

	for _, r := range results {
		if r.IsSuccess {
			continue
		}
		m.TotalIncidents++
		m.IncidentsByType[r.Status]++
		day(r.CreatedAt).Count++
	}

	spans := Spans(results, w.End)
	for _, s := range spans {
		m.TotalDowntime += s.DurationMinutes
		day(s.StartedAt).Downtime += s.DurationMinutes
		if s.DurationMinutes > m.LongestOutage.Duration || m.LongestOutage.StartTime == 0 {
			m.LongestOutage = Outage{Duration: s.DurationMinutes, StartTime: s.StartedAt, EndTime: s.EndedAt}
		}
	}
	if spans != nil {
		m.Incidents = spans
		m.AverageIncidentDuration = health.Round2(m.TotalDowntime / float64(len(spans)))
	}
	m.TotalDowntime = health.Round2(m.TotalDowntime)
	m.MeanTimeToRecovery = MTTR(spans)
	m.MeanTimeBetweenFailures = MTBF(spans)

	for _, d := range byDay {
		d.Downtime = health.Round2(d.Downtime)
		m.IncidentsByDay = append(m.IncidentsByDay, *d)
	}
	sort.Slice(m.IncidentsByDay, func(i, j int) bool {
		return m.IncidentsByDay[i].Date < m.IncidentsByDay[j].Date
	})
	return m
}

func minutes(ms int64) float64 {
	return health.Round2(float64(ms) / float64(time.Minute.Milliseconds()))
}
