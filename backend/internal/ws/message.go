package ws

import "autoformat-service/backend/internal/collab"

// 客户端 → 服务端
//
//	{"type":"open","docId":"d1"}
//	{"type":"edit","docId":"d1","edit":{"kind":"insert_text","text":"#"}}
//	{"type":"undo","docId":"d1"}
//	{"type":"set_recording","docId":"d1","recording":true}
//	{"type":"heartbeat"}
type ClientMessage struct {
	Type      string       `json:"type"`
	DocID     string       `json:"docId"`
	Edit      *collab.Edit `json:"edit,omitempty"`
	Recording *bool        `json:"recording,omitempty"`
}

const (
	TypeOpen         = "open"
	TypeEdit         = "edit"
	TypeUndo         = "undo"
	TypeSetRecording = "set_recording"
	TypeHeartbeat    = "heartbeat"

	TypeWelcome  = "welcome"
	TypeDocument = "document"
	TypeError    = "error"
	TypeFeedback = "feedback"
)

// 服务端 → 客户端
type ServerMessage struct {
	Type     string       `json:"type"`
	UserID   uint64       `json:"userId,omitempty"`
	DocID    string       `json:"docId,omitempty"`
	Revision uint64       `json:"revision,omitempty"`
	Document *collab.View `json:"document,omitempty"`
	Content  string       `json:"content,omitempty"`
}

func documentMessage(c collab.Commit) ServerMessage {
	v := c.View()
	return ServerMessage{Type: TypeDocument, DocID: c.DocID, Revision: c.Revision, Document: &v}
}
