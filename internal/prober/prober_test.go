package prober

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"gorm.io/datatypes"
)

func endpointFor(url string) *models.Endpoint {
	return &models.Endpoint{ID: "e1", Name: "test", URL: url, Method: http.MethodGet, TimeoutMs: 2000}
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	p := NewProber(config.ProberConfig{})

	t.Run("成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != config.DefaultUserAgent {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if r.Header.Get("X-Token") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer srv.Close()

		endpoint := endpointFor(srv.URL)
		endpoint.Headers = datatypes.NewJSONType(map[string]string{"X-Token": "secret"})
		result := p.Probe(ctx, endpoint, 2, Options{IncludeDetails: true})
		if result.Status != models.PingStatusSuccess || !result.IsSuccess {
			t.Fatalf("应该探测成功，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
		if result.HTTPStatusCode == nil || *result.HTTPStatusCode != http.StatusOK {
			t.Errorf("状态码不正确: %v", result.HTTPStatusCode)
		}
		if result.AttemptNumber != 2 || result.ID == "" || result.EndpointID != "e1" {
			t.Errorf("结果基本信息不正确: %+v", result)
		}
		if result.ResponseBody != `{"status":"ok"}` || result.ResponseSize != 15 {
			t.Errorf("响应体不正确: %q %d", result.ResponseBody, result.ResponseSize)
		}
		if result.ResponseHeaders.Data()["Content-Type"] != "application/json" {
			t.Errorf("响应头不正确: %v", result.ResponseHeaders.Data())
		}
	})

	t.Run("不保存详情", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello"))
		}))
		defer srv.Close()

		result := p.Probe(ctx, endpointFor(srv.URL), 1, Options{})
		if result.ResponseBody != "" || result.ResponseSize != 5 {
			t.Errorf("未要求详情时不应该保存响应体: %q %d", result.ResponseBody, result.ResponseSize)
		}
	})

	t.Run("HTTP错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		result := p.Probe(ctx, endpointFor(srv.URL), 1, Options{})
		if result.Status != models.PingStatusHTTPError || result.IsSuccess {
			t.Errorf("应该为 http_error，实际为 %s", result.Status)
		}
		if result.ErrorMessage != "HTTP 503 Service Unavailable" {
			t.Errorf("错误信息不正确: %s", result.ErrorMessage)
		}
	})

	t.Run("超时", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		endpoint := endpointFor(srv.URL)
		endpoint.TimeoutMs = 100
		result := p.Probe(ctx, endpoint, 1, Options{})
		if result.Status != models.PingStatusTimeout || !result.IsTimeout {
			t.Errorf("应该为 timeout，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
		if result.ErrorMessage != "Request timed out after 100ms" {
			t.Errorf("超时信息不正确: %s", result.ErrorMessage)
		}
	})

	t.Run("连接被拒绝", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("监听端口失败: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		result := p.Probe(ctx, endpointFor("http://"+addr), 1, Options{})
		if result.Status != models.PingStatusConnectionError {
			t.Errorf("应该为 connection_error，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
	})

	t.Run("域名解析失败", func(t *testing.T) {
		result := p.Probe(ctx, endpointFor("http://apiping-test.invalid"), 1, Options{})
		if result.Status != models.PingStatusDNSError {
			t.Errorf("应该为 dns_error，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
	})

	t.Run("证书校验失败", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer srv.Close()

		result := p.Probe(ctx, endpointFor(srv.URL), 1, Options{IncludeDetails: true})
		if result.Status != models.PingStatusSSLError {
			t.Errorf("应该为 ssl_error，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
		if result.ErrorDetails == "" {
			t.Error("要求详情时应该保存错误堆栈")
		}

		insecure := NewProber(config.ProberConfig{InsecureSkipVerify: true})
		if result := insecure.Probe(ctx, endpointFor(srv.URL), 1, Options{}); !result.IsSuccess {
			t.Errorf("跳过证书校验时应该成功，实际为 %s", result.Status)
		}
	})

	t.Run("重定向过多", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, r.URL.Path, http.StatusFound)
		}))
		defer srv.Close()

		result := p.Probe(ctx, endpointFor(srv.URL+"/loop"), 1, Options{})
		if result.Status != models.PingStatusHTTPError {
			t.Errorf("重定向循环应该为 http_error，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
	})

	t.Run("发送请求体", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"ping":true}` {
				w.WriteHeader(http.StatusBadRequest)
			}
		}))
		defer srv.Close()

		endpoint := endpointFor(srv.URL)
		endpoint.Method = "post"
		endpoint.Body = `{"ping":true}`
		if result := p.Probe(ctx, endpoint, 1, Options{}); !result.IsSuccess {
			t.Errorf("POST 请求应该成功，实际为 %s: %s", result.Status, result.ErrorMessage)
		}
	})
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		contentType string
		body        string
		elapsed     int64
		expected    *models.ExpectedResponse
		want        models.PingStatus
		performance bool
	}{
		{"没有期望时2xx成功", 204, "", "", 10, nil, models.PingStatusSuccess, false},
		{"没有期望时3xx成功", 304, "", "", 10, nil, models.PingStatusSuccess, false},
		{"没有期望时4xx失败", 404, "", "", 10, nil, models.PingStatusHTTPError, false},
		{"状态码不符", 200, "", "", 10, &models.ExpectedResponse{StatusCode: 201}, models.PingStatusHTTPError, false},
		{"状态码相符", 201, "", "", 10, &models.ExpectedResponse{StatusCode: 201}, models.PingStatusSuccess, false},
		{"内容类型不符", 200, "text/html", "", 10, &models.ExpectedResponse{ContentType: "application/json"}, models.PingStatusValidationError, false},
		{"内容类型忽略大小写", 200, "Application/JSON; charset=utf-8", "", 10, &models.ExpectedResponse{ContentType: "application/json"}, models.PingStatusSuccess, false},
		{"响应体不包含", 200, "", "down", 10, &models.ExpectedResponse{BodyContains: "ok"}, models.PingStatusValidationError, false},
		{"响应慢只记录性能问题", 200, "", "", 500, &models.ExpectedResponse{MaxResponseTimeMs: 100}, models.PingStatusSuccess, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluate(tt.statusCode, tt.contentType, tt.body, tt.elapsed, tt.expected)
			if got.status != tt.want {
				t.Errorf("evaluate() = %s, 期望 %s (%s)", got.status, tt.want, got.message)
			}
			if got.performanceIssue != tt.performance {
				t.Errorf("performanceIssue = %v, 期望 %v", got.performanceIssue, tt.performance)
			}
		})
	}
}

func TestTruncateBody(t *testing.T) {
	short := strings.Repeat("a", maxCapturedBody)
	if got := truncateBody(short); got != short {
		t.Error("未超过上限的响应体不应该被截断")
	}
	long := strings.Repeat("测", maxCapturedBody+1)
	got := truncateBody(long)
	if !strings.HasSuffix(got, truncatedMarker) || len([]rune(got)) != maxCapturedBody+len(truncatedMarker) {
		t.Errorf("超过上限的响应体应该按字符截断，实际长度 %d", len([]rune(got)))
	}
}
