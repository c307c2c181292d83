// Package websocket 维护实时结果推送的 WebSocket 连接
package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client 一个订阅连接
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	manager   *Manager
	closeOnce sync.Once
}

// Manager 连接管理器，负责注册、注销和广播
type Manager struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]*Client),
	}
}

// HandleConnection 升级 HTTP 连接并开始推送
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		manager: m,
	}
	if !m.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		return conn.Close()
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (m *Manager) register(client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.clients[client.ID] = client
	m.logger.Info("订阅端已连接",
		zap.String("clientId", client.ID),
		zap.String("remoteAddr", client.conn.RemoteAddr().String()),
		zap.Int("clients", len(m.clients)))
	return true
}

func (m *Manager) unregister(client *Client) {
	m.mu.Lock()
	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		m.logger.Info("订阅端已断开",
			zap.String("clientId", client.ID),
			zap.Int("clients", len(m.clients)))
	}
	m.mu.Unlock()
	client.closeSend()
}

// Broadcast 推送给所有订阅端，发送缓冲已满的订阅端会被断开，返回成功投递的数量
func (m *Manager) Broadcast(message []byte) int {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		select {
		case c.send <- message:
			delivered++
		default:
			m.logger.Warn("订阅端处理过慢，断开连接", zap.String("clientId", c.ID))
			m.unregister(c)
		}
	}
	return delivered
}

// SendToClient 推送给指定订阅端
func (m *Manager) SendToClient(clientID string, message []byte) error {
	m.mu.RLock()
	client, ok := m.clients[clientID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("订阅端不存在: %s", clientID)
	}

	select {
	case client.send <- message:
		return nil
	default:
		return fmt.Errorf("订阅端发送缓冲已满: %s", clientID)
	}
}

// GetAllClients 所有订阅端 ID
func (m *Manager) GetAllClients() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	return ids
}

// ClientCount 订阅端数量
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close 断开所有订阅端，之后的连接请求会被拒绝
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}
	m.logger.Info("WebSocket 管理器已关闭", zap.Int("disconnected", len(clients)))
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump 只处理控制帧，订阅端发来的消息直接丢弃
func (c *Client) readPump() {
	defer func() {
		c.manager.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.manager.logger.Debug("读取订阅端消息失败", zap.String("clientId", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
