package collab

import (
	"autoformat-service/backend/internal/content"
	"autoformat-service/backend/internal/decorate"
	"autoformat-service/backend/internal/persist"
)

// View 对外（HTTP / websocket）输出的已提交文档
type View struct {
	DocID       string                `json:"docId"`
	Revision    uint64                `json:"revision"`
	Document    persist.RawDocument   `json:"document"`
	Decorations []decorate.Decoration `json:"decorations"`
	BlockStyles map[string]string     `json:"blockStyles"`
	InlineStyle content.StyleSet      `json:"inlineStyle"` // 在光标处继续输入会带的样式
	Recording   bool                  `json:"recording"`
	Persisted   bool                  `json:"persisted"`
	Marker      string                `json:"marker,omitempty"`
	Undo        bool                  `json:"undo,omitempty"`
}

func (c Commit) View() View {
	v := View{
		DocID:       c.DocID,
		Revision:    c.Revision,
		Document:    persist.ToRaw(c.Document),
		Decorations: c.Decorations,
		BlockStyles: decorate.BlockStyles(c.Document),
		InlineStyle: content.CurrentInlineStyle(c.Document),
		Recording:   c.Recording,
		Persisted:   c.Persisted,
		Undo:        c.Undo,
	}
	if v.Decorations == nil {
		v.Decorations = []decorate.Decoration{}
	}
	if v.InlineStyle == nil {
		v.InlineStyle = content.StyleSet{}
	}
	if c.Fired {
		v.Marker = c.Rule.Marker
	}
	return v
}
