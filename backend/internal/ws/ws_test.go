package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"autoformat-service/backend/internal/collab"
	"autoformat-service/backend/internal/content"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := collab.NewInMemoryService(nil, nil, nil, nil, collab.Options{})
	hub := NewHub()
	svc.OnCommit(hub.BroadcastCommit)
	manager := NewManager(hub, svc, collab.NewSemaphoreControl(4), ManagerOptions{})

	r := gin.New()
	r.GET("/ws", manager.WebSocketConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func expect(t *testing.T, conn *websocket.Conn, typ string) ServerMessage {
	t.Helper()
	msg := read(t, conn)
	if msg.Type != typ {
		t.Fatalf("got %s (%s), want %s", msg.Type, msg.Content, typ)
	}
	return msg
}

func TestEditIsBroadcastToRoom(t *testing.T) {
	srv := newTestServer(t)

	alice := dial(t, srv, "?docId=d1")
	expect(t, alice, TypeWelcome)
	if msg := expect(t, alice, TypeDocument); msg.Revision != 0 {
		t.Fatalf("initial revision = %d", msg.Revision)
	}

	bob := dial(t, srv, "")
	expect(t, bob, TypeWelcome)
	if err := bob.WriteJSON(ClientMessage{Type: TypeOpen, DocID: "d1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	expect(t, bob, TypeDocument)

	edit := collab.Edit{Kind: collab.EditInsertText, Text: "#"}
	if err := alice.WriteJSON(ClientMessage{Type: TypeEdit, DocID: "d1", Edit: &edit}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		msg := expect(t, conn, TypeDocument)
		if msg.Revision != 1 || msg.Document == nil || msg.Document.Marker != "#" {
			t.Fatalf("%s got %+v", name, msg)
		}
		if msg.Document.Document.Blocks[0].Type != content.BlockHeaderOne {
			t.Fatalf("%s block = %+v", name, msg.Document.Document.Blocks[0])
		}
	}
}

func TestControlMessages(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "?docId=d1")
	expect(t, conn, TypeWelcome)
	expect(t, conn, TypeDocument)

	_ = conn.WriteJSON(ClientMessage{Type: TypeHeartbeat})
	expect(t, conn, TypeFeedback)

	on := true
	_ = conn.WriteJSON(ClientMessage{Type: TypeSetRecording, DocID: "d1", Recording: &on})
	if msg := expect(t, conn, TypeFeedback); msg.Content != "recording on" {
		t.Fatalf("feedback = %q", msg.Content)
	}

	_ = conn.WriteJSON(ClientMessage{Type: TypeUndo, DocID: "d1"})
	expect(t, conn, TypeError)

	_ = conn.WriteJSON(ClientMessage{Type: TypeEdit, DocID: "d1"})
	expect(t, conn, TypeError)

	_ = conn.WriteJSON(ClientMessage{Type: "paint"})
	expect(t, conn, TypeError)

	_ = conn.WriteJSON(ClientMessage{Type: TypeEdit, DocID: "missing", Edit: &collab.Edit{Kind: collab.EditBackspace}})
	expect(t, conn, TypeError)
}

func TestCheckOrigin(t *testing.T) {
	cases := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "", true},
		{nil, "null", true},
		{nil, "http://localhost:5173", true},
		{nil, "https://evil.example", false},
		{[]string{"https://docs.example"}, "https://docs.example", true},
		{[]string{"https://docs.example"}, "http://localhost:5173", false},
		{[]string{"*"}, "https://anything.example", true},
	}
	for _, tc := range cases {
		m := NewManager(NewHub(), nil, nil, ManagerOptions{AllowedOrigins: tc.allowed})
		r := httptest.NewRequest("GET", "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := m.checkOrigin(r); got != tc.want {
			t.Errorf("checkOrigin(%v, %q) = %v, want %v", tc.allowed, tc.origin, got, tc.want)
		}
	}
}

func TestManagerShutdownClosesConnections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := collab.NewInMemoryService(nil, nil, nil, nil, collab.Options{})
	manager := NewManager(NewHub(), svc, collab.NewSemaphoreControl(4), ManagerOptions{})
	r := gin.New()
	r.GET("/ws", manager.WebSocketConnect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn := dial(t, srv, "?docId=d1")
	expect(t, conn, TypeWelcome)
	expect(t, conn, TypeDocument)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := manager.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg ServerMessage
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatalf("connection still open after Shutdown, got %+v", msg)
	}

	// 关闭之后的新连接直接被关掉
	late := dial(t, srv, "")
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := late.ReadJSON(&msg); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("late connection read error = %v, want going-away close", err)
	}
}
