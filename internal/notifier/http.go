package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
)

// poster 发送 JSON 请求，失败时按指数退避重试
type poster struct {
	client     *http.Client
	maxRetries int
	minBackoff time.Duration
	maxBackoff time.Duration
}

func newPoster(timeout time.Duration, maxRetries int) *poster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &poster{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
}

// postJSON 序列化 payload 并 POST 到 url，非 2xx 响应视为失败
func (p *poster) postJSON(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	b := &backoff.Backoff{
		Min:    p.minBackoff,
		Max:    p.maxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		lastErr = p.post(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("发送取消: %w", ctx.Err())
		case <-time.After(b.Duration()):
		}
	}
	return fmt.Errorf("重试 %d 次后仍然失败: %w", p.maxRetries, lastErr)
}

func (p *poster) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP 状态码: %d", resp.StatusCode)
	}
	return nil
}
