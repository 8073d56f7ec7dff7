package collab

import (
	"fmt"

	"autoformat-service/backend/internal/content"
	"autoformat-service/backend/internal/ot/delta"
	"autoformat-service/backend/internal/persist"
)

type EditKind string

const (
	EditInsertText  EditKind = "insert_text"  // 输入/粘贴，Text 里可以带换行
	EditBackspace   EditKind = "backspace"
	EditSplitBlock  EditKind = "split_block"  // 回车
	EditSelect      EditKind = "select"       // 只移动选区
	EditToggleStyle EditKind = "toggle_style" // 快捷键（Ctrl+B 之类），不经过标记检测
	EditApplyDelta  EditKind = "apply_delta"  // 对单个块的一串 retain/insert/delete
	EditReplace     EditKind = "replace"      // 客户端直接提交整份候选文档
)

// Edit 客户端提交的一次编辑
type Edit struct {
	Kind      EditKind             `json:"kind"`
	Text      string               `json:"text,omitempty"`
	Selection *content.Selection   `json:"selection,omitempty"`
	Style     content.StyleTag     `json:"style,omitempty"`
	BlockKey  string               `json:"blockKey,omitempty"`
	Ops       delta.Delta          `json:"ops,omitempty"`
	Document  *persist.RawDocument `json:"document,omitempty"`
}

// bypassesEngine 快捷键命令本身就是格式化操作，不做标记检测
func (e Edit) bypassesEngine() bool { return e.Kind == EditToggleStyle }

// candidate 把编辑作用在上一次提交的文档上，得到候选文档
func candidate(prev content.Document, e Edit) (content.Document, error) {
	doc := prev
	// 除了 select/replace，编辑前可以先带一个选区（比如点击后立即输入）
	if e.Selection != nil && e.Kind != EditSelect && e.Kind != EditReplace {
		var err error
		if doc, err = content.Select(doc, *e.Selection); err != nil {
			return prev, err
		}
	}

	switch e.Kind {
	case EditInsertText:
		if e.Text == "" {
			return prev, fmt.Errorf("%w: empty text", ErrInvalidEdit)
		}
		return content.InsertText(doc, e.Text)
	case EditBackspace:
		return content.DeleteBackward(doc)
	case EditSplitBlock:
		return content.SplitBlock(doc)
	case EditSelect:
		if e.Selection == nil {
			return prev, fmt.Errorf("%w: select needs a selection", ErrInvalidEdit)
		}
		return content.Select(doc, *e.Selection)
	case EditToggleStyle:
		if e.Style == "" {
			return prev, fmt.Errorf("%w: toggle_style needs a style", ErrInvalidEdit)
		}
		return content.WithInlineStyleToggledAt(doc, doc.Selection, e.Style)
	case EditApplyDelta:
		key := e.BlockKey
		if key == "" {
			key = doc.Selection.BlockKey
		}
		return content.ApplyDelta(doc, key, e.Ops)
	case EditReplace:
		if e.Document == nil {
			return prev, fmt.Errorf("%w: replace needs a document", ErrInvalidEdit)
		}
		return persist.FromRaw(*e.Document)
	default:
		return prev, fmt.Errorf("%w: %q", ErrUnknownEditKind, e.Kind)
	}
}
