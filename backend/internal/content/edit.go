package content

import (
	"fmt"
	"strings"

	"autoformat-service/backend/internal/ot/delta"
)

// 下面这些函数把原始编辑事件（输入、退格、回车、粘贴、delta）变成候选文档，
// 候选文档再交给转换引擎判断是否触发标记规则。

// Select 移动选区；只有选区真的变了才清掉待输入样式。
// 客户端每个事件都会带上当前选区，原地不动时覆盖样式要留给下一个字符。
func Select(doc Document, sel Selection) (Document, error) {
	if _, err := CurrentBlock(doc, sel); err != nil {
		return doc, err
	}
	if sel == doc.Selection {
		return doc, nil
	}
	doc.Selection = sel
	return doc.withoutOverride(), nil
}

// InsertText 在光标处插入文本（展开选区先被替换），按当前行内样式着色。
// 文本里的换行会拆分块，所以粘贴多行文字和逐字输入走同一条路径。
func InsertText(doc Document, text string) (Document, error) {
	if _, err := CurrentBlock(doc, doc.Selection); err != nil {
		return doc, err
	}
	style := CurrentInlineStyle(doc)
	if !doc.Selection.IsCollapsed() {
		if !doc.hasOverride {
			b, _ := CurrentBlock(doc, doc.Selection)
			style = explode(b).styleAt(doc.Selection.Start() + 1)
		}
		doc = removeSelection(doc)
	}

	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			doc = splitAtCursor(doc)
		}
		if line == "" {
			continue
		}
		doc = insertAtCursor(doc, []rune(line), style)
	}
	return doc.withoutOverride(), nil
}

// DeleteBackward 退格：
//   - 展开选区：删除选区
//   - 行内：删除光标前一个字符
//   - 行首且块不是 unstyled：先把块类型还原成 unstyled
//   - 行首：和上一个块合并
func DeleteBackward(doc Document) (Document, error) {
	b, err := CurrentBlock(doc, doc.Selection)
	if err != nil {
		return doc, err
	}
	sel := doc.Selection
	switch {
	case !sel.IsCollapsed():
		doc = removeSelection(doc)
	case sel.FocusOffset > 0:
		doc, err = WithMarkerRemoved(doc, b.Key, Range{Start: sel.FocusOffset - 1, End: sel.FocusOffset})
		if err != nil {
			return doc, err
		}
	case b.Type != BlockUnstyled:
		doc, err = WithBlockType(doc, b.Key, BlockUnstyled)
		if err != nil {
			return doc, err
		}
	default:
		i := doc.indexOf(b.Key)
		if i == 0 {
			return doc.withoutOverride(), nil
		}
		prev := doc.Blocks[i-1]
		merged := explode(prev).concat(explode(b)).implode(prev.Key, prev.Type)
		blocks := make([]Block, 0, len(doc.Blocks)-1)
		blocks = append(blocks, doc.Blocks[:i-1]...)
		blocks = append(blocks, merged)
		blocks = append(blocks, doc.Blocks[i+1:]...)
		doc.Blocks = blocks
		doc.Selection = CollapsedAt(prev.Key, prev.Len())
	}
	return doc.withoutOverride(), nil
}

// SplitBlock 回车：在光标处拆块。光标在块尾时新块是 unstyled，否则沿用原块类型。
func SplitBlock(doc Document) (Document, error) {
	if _, err := CurrentBlock(doc, doc.Selection); err != nil {
		return doc, err
	}
	if !doc.Selection.IsCollapsed() {
		doc = removeSelection(doc)
	}
	return splitAtCursor(doc).withoutOverride(), nil
}

// ApplyDelta 把 delta 应用到指定块，完成后光标停在最后一个 op 结束的位置。
// insert 没带 attrs 时继承插入点的样式（含待输入样式）。
func ApplyDelta(doc Document, blockKey string, d delta.Delta) (Document, error) {
	if err := d.Validate(); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	i := doc.indexOf(blockKey)
	if i < 0 {
		return doc, fmt.Errorf("%w: block %q not found", ErrInvalidSelection, blockKey)
	}
	b := doc.Blocks[i]
	st := explode(b)
	pos := 0
	for n, op := range d {
		switch op.Kind {
		case delta.KindRetain:
			if pos+op.Count > len(st.runes) {
				return doc, fmt.Errorf("%w: op %d retains past end of block", ErrInvalidDelta, n)
			}
			pos += op.Count
		case delta.KindDelete:
			if pos+op.Count > len(st.runes) {
				return doc, fmt.Errorf("%w: op %d deletes past end of block", ErrInvalidDelta, n)
			}
			st = st.remove(pos, pos+op.Count)
		case delta.KindInsert:
			var style StyleSet
			if op.HasAttrs() {
				for _, name := range op.StyleNames() {
					style = style.Add(StyleTag(name))
				}
			} else if doc.hasOverride && doc.Selection == CollapsedAt(blockKey, pos) {
				style = doc.override
			} else {
				style = st.styleAt(pos)
			}
			runes := []rune(op.Text)
			st = st.insert(pos, runes, style)
			pos += len(runes)
		}
	}
	out := doc.replaceBlock(i, st.implode(b.Key, b.Type))
	out.Selection = CollapsedAt(blockKey, pos)
	return out.withoutOverride(), nil
}

func removeSelection(doc Document) Document {
	sel := doc.Selection
	out, err := WithMarkerRemoved(doc, sel.BlockKey, Range{Start: sel.Start(), End: sel.End()})
	if err != nil {
		return doc
	}
	out.Selection = CollapsedAt(sel.BlockKey, sel.Start())
	return out
}

// insertAtCursor 调用方保证选区已折叠且有效
func insertAtCursor(doc Document, text []rune, style StyleSet) Document {
	sel := doc.Selection
	i := doc.indexOf(sel.BlockKey)
	b := doc.Blocks[i]
	st := explode(b).insert(sel.FocusOffset, text, style)
	out := doc.replaceBlock(i, st.implode(b.Key, b.Type))
	out.Selection = CollapsedAt(b.Key, sel.FocusOffset+len(text))
	return out
}

func splitAtCursor(doc Document) Document {
	sel := doc.Selection
	i := doc.indexOf(sel.BlockKey)
	b := doc.Blocks[i]
	st := explode(b)
	at := sel.FocusOffset

	newType := b.Type
	if at == len(st.runes) {
		newType = BlockUnstyled
	}
	left := st.slice(0, at).implode(b.Key, b.Type)
	right := st.slice(at, len(st.runes)).implode(NewKey(), newType)

	blocks := make([]Block, 0, len(doc.Blocks)+1)
	blocks = append(blocks, doc.Blocks[:i]...)
	blocks = append(blocks, left, right)
	blocks = append(blocks, doc.Blocks[i+1:]...)
	doc.Blocks = blocks
	doc.Selection = CollapsedAt(right.Key, 0)
	return doc
}
