package persist

import (
	"encoding/json"
	"errors"
	"fmt"

	"autoformat-service/backend/internal/content"
)

var ErrMalformedState = errors.New("MALFORMED_PERSISTED_STATE")

// RawDocument 落盘/传输用的结构：有序块列表，每块 = 类型 + 文本 + [{style,start,end}]
type RawDocument struct {
	Blocks    []content.Block    `json:"blocks"`
	Selection *content.Selection `json:"selection,omitempty"`
}

func ToRaw(doc content.Document) RawDocument {
	blocks := make([]content.Block, len(doc.Blocks))
	for i, b := range doc.Blocks {
		if b.InlineStyles == nil {
			// 输出 [] 而不是 null，前端不用判空
			b.InlineStyles = []content.StyleRange{}
		}
		blocks[i] = b
	}
	sel := doc.Selection
	return RawDocument{Blocks: blocks, Selection: &sel}
}

// FromRaw 严格校验区间边界，然后规范化（同样式区间合并），最后整体校验不变量
func FromRaw(raw RawDocument) (content.Document, error) {
	if len(raw.Blocks) == 0 {
		return content.Document{}, fmt.Errorf("%w: no blocks", ErrMalformedState)
	}
	blocks := make([]content.Block, len(raw.Blocks))
	for i, b := range raw.Blocks {
		n := b.Len()
		for _, r := range b.InlineStyles {
			if r.Style == "" || r.Start < 0 || r.Start >= r.End || r.End > n {
				return content.Document{}, fmt.Errorf("%w: block %d: bad range %+v (len %d)", ErrMalformedState, i, r, n)
			}
		}
		if b.Type == "" {
			b.Type = content.BlockUnstyled
		}
		blocks[i] = b
	}
	doc := content.FromBlocks(blocks...)
	if raw.Selection != nil {
		doc.Selection = *raw.Selection
	}
	if err := content.Validate(doc); err != nil {
		return content.Document{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return doc, nil
}

func Encode(doc content.Document) ([]byte, error) {
	return json.Marshal(ToRaw(doc))
}

func Decode(data []byte) (content.Document, error) {
	var raw RawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return content.Document{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	return FromRaw(raw)
}
