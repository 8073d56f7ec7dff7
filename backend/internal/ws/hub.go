package ws

import (
	"sync"

	"autoformat-service/backend/internal/collab"
)

// room 一个文档的所有连接。按连接而不是按用户存，同一用户可以开多个标签页。
type room map[*Conn]struct{}

// Hub 按 docID 分房间，把提交结果推给房间里的连接
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]room)}
}

func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[docID]
	if !ok {
		r = make(room)
		h.rooms[docID] = r
	}
	r[c] = struct{}{}
}

// Leave 房间空了就删掉
func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[docID]
	delete(r, c)
	if len(r) == 0 {
		delete(h.rooms, docID)
	}
}

func (h *Hub) RoomSize(docID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[docID])
}

// members 拷一份连接列表，发送时不持有 hub 锁
func (h *Hub) members(docID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.rooms[docID]
	out := make([]*Conn, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	return out
}

// BroadcastCommit 作为 collab.Service 的提交回调，HTTP 和 websocket 的编辑都从这里推送。
// Enqueue 不阻塞，所以可以在文档锁内调用。
func (h *Hub) BroadcastCommit(c collab.Commit) {
	conns := h.members(c.DocID)
	if len(conns) == 0 {
		return
	}
	msg := documentMessage(c)
	for _, conn := range conns {
		conn.Enqueue(msg)
	}
}
