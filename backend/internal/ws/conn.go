package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"autoformat-service/backend/internal/collab"
)

const (
	sendQueueSize = 32
	submitTimeout = 200 * time.Millisecond
)

type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	docID    string
	userID   uint64
	username string

	// 出站队列，writeLoop 独占消费
	send   chan ServerMessage
	mu     sync.Mutex
	closed bool

	svc collab.Service
	// 限制同时处理的编辑数
	sem *collab.SemaphoreControl
}

func NewConn(ws *websocket.Conn, hub *Hub, userID uint64, username string, svc collab.Service, sem *collab.SemaphoreControl) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		userID:   userID,
		username: username,
		send:     make(chan ServerMessage, sendQueueSize),
		svc:      svc,
		sem:      sem,
	}
}

// Enqueue 非阻塞；队列满或连接已关闭时丢弃
func (c *Conn) Enqueue(msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("ws: send queue full, drop %s (user=%d, doc=%s)", msg.Type, c.userID, msg.DocID)
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Conn) sendError(docID string, err error) {
	c.Enqueue(ServerMessage{Type: TypeError, DocID: docID, Content: err.Error()})
}

// join 切换到 docID 的房间，先离开旧房间
func (c *Conn) join(docID string) {
	if c.docID == docID {
		return
	}
	if c.docID != "" {
		c.hub.Leave(c.docID, c)
	}
	c.docID = docID
	c.hub.Join(docID, c)
}

// handleOpen 先进房间再取快照，中间的提交也能通过广播收到
func (c *Conn) handleOpen(ctx context.Context, docID string) {
	c.join(docID)
	commit, err := c.svc.Open(ctx, docID)
	if err != nil {
		c.sendError(docID, err)
		return
	}
	c.Enqueue(documentMessage(commit))
}

// handleEdit 提交成功后的 document 消息由 hub 广播（包括发起者自己）
func (c *Conn) handleEdit(ctx context.Context, docID string, edit *collab.Edit) {
	if edit == nil {
		c.Enqueue(ServerMessage{Type: TypeError, DocID: docID, Content: "edit missing"})
		return
	}
	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	if err := c.sem.Acquire(submitCtx); err != nil {
		c.sendError(docID, err)
		return
	}
	defer c.sem.Release()

	if _, err := c.svc.Submit(submitCtx, docID, *edit); err != nil {
		c.sendError(docID, err)
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		if c.docID != "" {
			c.hub.Leave(c.docID, c)
		}
		c.close()
	}()
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read json error (user=%d, doc=%s): %v", c.userID, c.docID, err)
			}
			return
		}
		docID := msg.DocID
		if docID == "" {
			docID = c.docID
		}

		switch msg.Type {
		case TypeHeartbeat:
			c.Enqueue(ServerMessage{Type: TypeFeedback, Content: "Heartbeat received"})

		case TypeOpen:
			if docID == "" {
				c.Enqueue(ServerMessage{Type: TypeError, Content: "docId missing"})
				continue
			}
			c.handleOpen(ctx, docID)

		case TypeEdit:
			c.handleEdit(ctx, docID, msg.Edit)

		case TypeUndo:
			if _, err := c.svc.Undo(ctx, docID); err != nil {
				c.sendError(docID, err)
			}

		case TypeSetRecording:
			if msg.Recording == nil {
				c.Enqueue(ServerMessage{Type: TypeError, DocID: docID, Content: "recording flag missing"})
				continue
			}
			if err := c.svc.SetRecording(ctx, docID, *msg.Recording); err != nil {
				c.sendError(docID, err)
				continue
			}
			state := "off"
			if *msg.Recording {
				state = "on"
			}
			c.Enqueue(ServerMessage{Type: TypeFeedback, DocID: docID, Content: "recording " + state})

		default:
			c.Enqueue(ServerMessage{Type: TypeError, Content: "Unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	// 持续消费 send，直到 readLoop 退出时关闭
	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			log.Printf("write json error (user=%d, doc=%s): %v", c.userID, msg.DocID, err)
		}
	}
}
