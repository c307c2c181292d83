package metric

import (
	"math"
	"sort"
	"time"

	"github.com/dushixiang/apiping/internal/health"
	"github.com/dushixiang/apiping/internal/models"
)

// 趋势系列名称
const (
	SeriesUptime       = "uptime"
	SeriesResponseTime = "avgResponseTime"
	SeriesIncidents    = "incidents"
	SeriesChecks       = "checks"
)

// Bucket 时间桶内的汇总
type Bucket struct {
	Start            int64   `json:"start"`
	TotalChecks      int     `json:"totalChecks"`
	SuccessfulChecks int     `json:"successfulChecks"`
	FailedChecks     int     `json:"failedChecks"`
	Uptime           float64 `json:"uptime"`
	AvgResponseTime  int64   `json:"avgResponseTime"`
	responseSum      int64
	responseCount    int64
}

// BucketSize 趋势的时间粒度，一天以内按小时，更长按天
func BucketSize(p Period) time.Duration {
	if p.Duration() <= 24*time.Hour {
		return time.Hour
	}
	return 24 * time.Hour
}

// TruncateTime 时间向下取整到粒度起点，按天时使用 loc 的零点
func TruncateTime(t time.Time, size time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	if size >= 24*time.Hour {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// Buckets 按粒度切分结果并汇总，返回按时间升序的时间桶
func Buckets(results []models.PingResult, size time.Duration, loc *time.Location) []Bucket {
	index := make(map[int64]*Bucket)
	for _, r := range results {
		start := TruncateTime(r.CreatedTime(), size, loc).UnixMilli()
		b, ok := index[start]
		if !ok {
			b = &Bucket{Start: start}
			index[start] = b
		}
		b.TotalChecks++
		if !r.IsSuccess {
			b.FailedChecks++
			continue
		}
		b.SuccessfulChecks++
		if r.ResponseTimeMs > 0 {
			b.responseSum += r.ResponseTimeMs
			b.responseCount++
		}
	}

	buckets := make([]Bucket, 0, len(index))
	for _, b := range index {
		b.Uptime = 100
		if b.TotalChecks > 0 {
			b.Uptime = health.Round2(float64(b.SuccessfulChecks) / float64(b.TotalChecks) * 100)
		}
		if b.responseCount > 0 {
			b.AvgResponseTime = int64(math.Round(float64(b.responseSum) / float64(b.responseCount)))
		}
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start < buckets[j].Start })
	return buckets
}

// TrendSeries 将时间桶转换为可用率、响应时间、故障数三条系列
func TrendSeries(buckets []Bucket) []Series {
	uptime := Series{Name: SeriesUptime, Data: make([]DataPoint, 0, len(buckets))}
	response := Series{Name: SeriesResponseTime, Data: make([]DataPoint, 0, len(buckets))}
	incidents := Series{Name: SeriesIncidents, Data: make([]DataPoint, 0, len(buckets))}
	for _, b := range buckets {
		uptime.Data = append(uptime.Data, DataPoint{Timestamp: b.Start, Value: b.Uptime})
		response.Data = append(response.Data, DataPoint{Timestamp: b.Start, Value: float64(b.AvgResponseTime)})
		incidents.Data = append(incidents.Data, DataPoint{Timestamp: b.Start, Value: float64(b.FailedChecks)})
	}
	return []Series{uptime, response, incidents}
}

// TrendReport 端点趋势
type TrendReport struct {
	EndpointID   string   `json:"endpointId"`
	EndpointName string   `json:"endpointName"`
	Period       Period   `json:"period"`
	Interval     string   `json:"interval"` // hour 或 day
	Series       []Series `json:"series"`
}
