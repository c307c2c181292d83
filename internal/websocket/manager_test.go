package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("等待条件超时")
}

func TestBroadcast(t *testing.T) {
	m := NewManager(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.HandleConnection(w, r)
	}))
	defer srv.Close()

	first := dial(t, srv)
	defer first.Close()
	second := dial(t, srv)
	defer second.Close()
	waitFor(t, func() bool { return m.ClientCount() == 2 })

	if delivered := m.Broadcast([]byte(`{"type":"ping_result"}`)); delivered != 2 {
		t.Errorf("应该投递给 2 个订阅端，实际为 %d", delivered)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("读取消息失败: %v", err)
		}
		if string(message) != `{"type":"ping_result"}` {
			t.Errorf("消息内容不正确: %s", message)
		}
	}

	t.Run("订阅端断开后注销", func(t *testing.T) {
		first.Close()
		waitFor(t, func() bool { return m.ClientCount() == 1 })
	})

	t.Run("指定订阅端发送", func(t *testing.T) {
		ids := m.GetAllClients()
		if len(ids) != 1 {
			t.Fatalf("应该剩余 1 个订阅端，实际为 %d", len(ids))
		}
		if err := m.SendToClient(ids[0], []byte("hello")); err != nil {
			t.Fatalf("SendToClient() 失败: %v", err)
		}
		_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, message, err := second.ReadMessage(); err != nil || string(message) != "hello" {
			t.Errorf("应该收到 hello，实际为 %q %v", message, err)
		}
		if err := m.SendToClient("missing", []byte("hello")); err == nil {
			t.Error("不存在的订阅端应该返回错误")
		}
	})

	t.Run("关闭后拒绝新连接", func(t *testing.T) {
		m.Close()
		if m.ClientCount() != 0 {
			t.Errorf("关闭后不应该有订阅端，实际为 %d", m.ClientCount())
		}
		_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := second.ReadMessage(); err == nil {
			t.Error("关闭后订阅端应该收到关闭帧")
		}

		conn := dial(t, srv)
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("关闭后的新连接应该收到 going away，实际为 %v", err)
		}
	})
}
