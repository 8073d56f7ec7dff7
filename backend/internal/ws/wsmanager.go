package ws

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"autoformat-service/backend/internal/collab"
)

const defaultMaxMessageBytes = 1 << 20

// 没配置时只放行本地开发环境
var DefaultAllowedOrigins = []string{
	"http://localhost",
	"http://127.0.0.1",
	"https://localhost",
	"https://127.0.0.1",
}

type ManagerOptions struct {
	// Origin 前缀白名单；"*" 放行所有来源
	AllowedOrigins []string
	// 单条客户端消息上限，replace 会带整篇文档
	MaxMessageBytes int64
}

type Manager struct {
	h        *Hub
	svc      collab.Service
	sem      *collab.SemaphoreControl
	opt      ManagerOptions
	upgrader websocket.Upgrader

	// http.Server.Shutdown 不管已升级的连接，由 Manager 自己跟踪并关闭
	mu       sync.Mutex
	conns    map[*Conn]struct{}
	draining bool
	active   sync.WaitGroup
}

func NewManager(h *Hub, svc collab.Service, sem *collab.SemaphoreControl, opt ManagerOptions) *Manager {
	if len(opt.AllowedOrigins) == 0 {
		opt.AllowedOrigins = DefaultAllowedOrigins
	}
	if opt.MaxMessageBytes <= 0 {
		opt.MaxMessageBytes = defaultMaxMessageBytes
	}
	m := &Manager{h: h, svc: svc, sem: sem, opt: opt, conns: make(map[*Conn]struct{})}
	m.upgrader = websocket.Upgrader{CheckOrigin: m.checkOrigin}
	return m
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" { // 非浏览器客户端不带 Origin
		return true
	}
	for _, p := range m.opt.AllowedOrigins {
		if p == "*" || strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}

// WebSocketConnect 升级连接；带 ?docId= 时连上就打开该文档
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed (origin=%s): %v", c.Request.Header.Get("Origin"), err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(m.opt.MaxMessageBytes)

	wsConn := NewConn(conn, m.h, userID, username, m.svc, m.sem)
	if !m.track(wsConn) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(time.Second))
		return
	}
	defer m.untrack(wsConn)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		wsConn.writeLoop()
	}()

	wsConn.Enqueue(ServerMessage{Type: TypeWelcome, UserID: userID, Content: "welcome " + username})
	if docID := c.Query("docId"); docID != "" {
		wsConn.handleOpen(c.Request.Context(), docID)
	}
	// readLoop 退出时关闭 send，writeLoop 发完剩余消息后结束
	wsConn.readLoop(c.Request.Context())
	<-writerDone
}

func (m *Manager) track(c *Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return false
	}
	m.conns[c] = struct{}{}
	m.active.Add(1)
	return true
}

func (m *Manager) untrack(c *Conn) {
	m.mu.Lock()
	delete(m.conns, c)
	m.mu.Unlock()
	m.active.Done()
}

// Shutdown 拒绝新连接，关闭现有连接并等它们的读循环退出（最多等到 ctx 结束）。
// 要在关闭事件发布之前调用，保证之后不会再有编辑提交。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.draining = true
	conns := make([]*Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.ws.Close()
	}

	done := make(chan struct{})
	go func() {
		m.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
