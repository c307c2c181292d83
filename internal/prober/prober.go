package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// maxCapturedBody 保存到结果中的响应体最大字符数
	maxCapturedBody = 1000
	truncatedMarker = "...[truncated]"
	// maxReadBody 读取响应体的上限，避免异常目标耗尽内存
	maxReadBody = 10 << 20
)

var errTooManyRedirects = errors.New("too many redirects")

// Options 单次探测选项
type Options struct {
	IncludeDetails bool // 是否保存响应头、响应体和错误堆栈
}

// Prober 执行单次 HTTP 探测并对结果进行分类
type Prober struct {
	httpClient *http.Client
	userAgent  string
}

// NewProber 创建探测器
func NewProber(cfg config.ProberConfig) *Prober {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, // 监控目标允许自签名证书
			},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.WrapPrefix(errTooManyRedirects, fmt.Sprintf("stopped after %d redirects", maxRedirects), 0)
			}
			return nil
		},
	}

	return &Prober{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

// Probe 对端点执行一次探测。网络层面的失败不会返回错误，而是体现在结果的状态中
func (p *Prober) Probe(ctx context.Context, endpoint *models.Endpoint, attempt int, opts Options) models.PingResult {
	startTime := time.Now()
	method := strings.ToUpper(endpoint.Method)
	if method == "" {
		method = http.MethodGet
	}
	if attempt <= 0 {
		attempt = 1
	}

	result := models.PingResult{
		ID:            uuid.NewString(),
		EndpointID:    endpoint.ID,
		AttemptNumber: attempt,
		CreatedAt:     startTime.UnixMilli(),
		Metadata: datatypes.JSONMap{
			"method": method,
			"url":    endpoint.URL,
		},
	}

	timeout := time.Duration(endpoint.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = models.DefaultTimeoutMs * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	recorder := newTraceRecorder()
	ctx = httptrace.WithClientTrace(ctx, recorder.clientTrace())

	// 只有 POST/PUT/PATCH 发送请求体
	var bodyReader io.Reader
	hasBody := endpoint.Body != "" && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if hasBody {
		bodyReader = strings.NewReader(endpoint.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.URL, bodyReader)
	if err != nil {
		result.ResponseTimeMs = time.Since(startTime).Milliseconds()
		p.fail(&result, models.PingStatusUnknownError, fmt.Sprintf("create request failed: %v", err), err, opts)
		return result
	}

	req.Header.Set("User-Agent", p.userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range endpoint.Headers.Data() {
		req.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		end := time.Now()
		result.ResponseTimeMs = end.Sub(startTime).Milliseconds()
		result.Timings = datatypes.NewJSONType(recorder.timings(startTime, end))
		status := classifyError(err)
		result.IsTimeout = status == models.PingStatusTimeout
		p.fail(&result, status, describeError(status, err, timeout), err, opts)
		return result
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxReadBody))
	end := time.Now()
	result.ResponseTimeMs = end.Sub(startTime).Milliseconds()
	result.Timings = datatypes.NewJSONType(recorder.timings(startTime, end))

	statusCode := resp.StatusCode
	result.HTTPStatusCode = &statusCode
	result.ResponseSize = int64(len(body))
	if len(body) == 0 && resp.ContentLength > 0 {
		result.ResponseSize = resp.ContentLength
	}
	if opts.IncludeDetails {
		result.ResponseBody = truncateBody(string(body))
		result.ResponseHeaders = datatypes.NewJSONType(flattenHeaders(resp.Header))
	}

	if readErr != nil {
		status := classifyError(readErr)
		result.IsTimeout = status == models.PingStatusTimeout
		p.fail(&result, status, describeError(status, readErr, timeout), readErr, opts)
		return result
	}

	outcome := evaluate(statusCode, resp.Header.Get("Content-Type"), string(body), result.ResponseTimeMs, endpoint.Expected())
	result.Status = outcome.status
	result.IsSuccess = outcome.status == models.PingStatusSuccess
	result.PerformanceIssue = outcome.performanceIssue
	result.ErrorMessage = outcome.message
	if outcome.validation != nil {
		result.ValidationResults = datatypes.NewJSONType(outcome.validation)
	}

	return result
}

func (p *Prober) fail(result *models.PingResult, status models.PingStatus, message string, err error, opts Options) {
	result.Status = status
	result.IsSuccess = false
	result.ErrorMessage = message
	if opts.IncludeDetails {
		result.ErrorDetails = errors.Wrap(err, 2).ErrorStack()
	}
}

func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= maxCapturedBody {
		return body
	}
	return string(runes[:maxCapturedBody]) + truncatedMarker
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		out[key] = strings.Join(values, ", ")
	}
	return out
}
