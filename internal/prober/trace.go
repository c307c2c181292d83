package prober

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/dushixiang/apiping/internal/models"
)

// traceRecorder 通过 httptrace 记录请求各阶段的时间点，回调可能来自不同的 goroutine
type traceRecorder struct {
	mu           sync.Mutex
	dnsStart     time.Time
	dnsDone      time.Time
	connectStart time.Time
	connectDone  time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	firstByte    time.Time
}

func newTraceRecorder() *traceRecorder {
	return &traceRecorder{}
}

func (t *traceRecorder) mark(at *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if at.IsZero() {
		*at = time.Now()
	}
}

func (t *traceRecorder) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:             func(httptrace.DNSStartInfo) { t.mark(&t.dnsStart) },
		DNSDone:              func(httptrace.DNSDoneInfo) { t.mark(&t.dnsDone) },
		ConnectStart:         func(string, string) { t.mark(&t.connectStart) },
		ConnectDone:          func(string, string, error) { t.mark(&t.connectDone) },
		TLSHandshakeStart:    func() { t.mark(&t.tlsStart) },
		TLSHandshakeDone:     func(tls.ConnectionState, error) { t.mark(&t.tlsDone) },
		GotFirstResponseByte: func() { t.mark(&t.firstByte) },
	}
}

// timings 计算各阶段耗时，缺失的阶段保持为空
func (t *traceRecorder) timings(start, end time.Time) models.Timings {
	t.mu.Lock()
	defer t.mu.Unlock()

	return models.Timings{
		DNSLookupMs:       span(t.dnsStart, t.dnsDone),
		TCPConnectMs:      span(t.connectStart, t.connectDone),
		TLSHandshakeMs:    span(t.tlsStart, t.tlsDone),
		FirstByteMs:       span(start, t.firstByte),
		ContentTransferMs: span(t.firstByte, end),
	}
}

func span(from, to time.Time) *int64 {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	ms := to.Sub(from).Milliseconds()
	return &ms
}
