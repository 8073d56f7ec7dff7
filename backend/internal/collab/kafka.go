package collab

import "time"

const EventDocCommitted = "DOC_COMMITTED"

// DocCommittedEvent 每次提交后发到 Kafka，下游（索引、审计）按 docId 分区消费
type DocCommittedEvent struct {
	EventType   string    `json:"eventType"` // 固定 "DOC_COMMITTED"
	DocID       string    `json:"docId"`
	Revision    uint64    `json:"revision"`
	EditKind    EditKind  `json:"editKind"`
	Marker      string    `json:"marker,omitempty"` // 本次触发的标记，没触发为空
	Undo        bool      `json:"undo,omitempty"`
	Persisted   bool      `json:"persisted"`
	BlockCount  int       `json:"blockCount"`
	CommittedAt time.Time `json:"committedAt"`
}

func newCommittedEvent(c Commit) DocCommittedEvent {
	evt := DocCommittedEvent{
		EventType:   EventDocCommitted,
		DocID:       c.DocID,
		Revision:    c.Revision,
		EditKind:    c.EditKind,
		Undo:        c.Undo,
		Persisted:   c.Persisted,
		BlockCount:  len(c.Document.Blocks),
		CommittedAt: c.CommittedAt,
	}
	if c.Fired {
		evt.Marker = c.Rule.Marker
	}
	return evt
}
