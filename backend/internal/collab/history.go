package collab

import (
	"errors"

	"autoformat-service/backend/internal/content"
)

var ErrNothingToUndo = errors.New("NOTHING_TO_UNDO")

const defaultHistoryCap = 1024

// history 已提交文档的有界栈。文档是不可变值，直接存引用即可，不需要逆操作。
// 由 docState.mu 保护，自身不加锁。
type history struct {
	entries []content.Document
	max     int
}

func newHistory(max int) *history {
	if max <= 0 {
		max = defaultHistoryCap
	}
	return &history{max: max}
}

func (h *history) push(doc content.Document) {
	h.entries = append(h.entries, doc)
	// 超过容量丢弃最老的
	if len(h.entries) > h.max {
		excess := len(h.entries) - h.max
		h.entries = append([]content.Document(nil), h.entries[excess:]...)
	}
}

func (h *history) pop() (content.Document, error) {
	if len(h.entries) == 0 {
		return content.Document{}, ErrNothingToUndo
	}
	doc := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return doc, nil
}

func (h *history) len() int { return len(h.entries) }
