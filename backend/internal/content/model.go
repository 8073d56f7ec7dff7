package content

import "fmt"

// CurrentBlock 返回选区所在的块
func CurrentBlock(doc Document, sel Selection) (Block, error) {
	i := doc.indexOf(sel.BlockKey)
	if i < 0 {
		return Block{}, fmt.Errorf("%w: block %q not found", ErrInvalidSelection, sel.BlockKey)
	}
	b := doc.Blocks[i]
	n := b.Len()
	if sel.AnchorOffset < 0 || sel.FocusOffset < 0 || sel.AnchorOffset > n || sel.FocusOffset > n {
		return Block{}, fmt.Errorf("%w: offsets %d/%d outside block %q (len %d)",
			ErrInvalidSelection, sel.AnchorOffset, sel.FocusOffset, sel.BlockKey, n)
	}
	return b, nil
}

// TextOfCurrentBlock 选区无效时返回空串
func TextOfCurrentBlock(doc Document, sel Selection) string {
	b, err := CurrentBlock(doc, sel)
	if err != nil {
		return ""
	}
	return b.Text
}

func WithBlockType(doc Document, blockKey string, typ BlockType) (Document, error) {
	i := doc.indexOf(blockKey)
	if i < 0 {
		return doc, fmt.Errorf("%w: block %q not found", ErrInvalidSelection, blockKey)
	}
	b := doc.Blocks[i]
	b.Type = typ
	return doc.replaceBlock(i, b), nil
}

// WithMarkerRemoved 删除块内 [r.Start, r.End) 的字符，样式区间和选区一起平移
func WithMarkerRemoved(doc Document, blockKey string, r Range) (Document, error) {
	i := doc.indexOf(blockKey)
	if i < 0 {
		return doc, fmt.Errorf("%w: block %q not found", ErrInvalidSelection, blockKey)
	}
	b := doc.Blocks[i]
	if r.Start < 0 || r.Start > r.End || r.End > b.Len() {
		return doc, fmt.Errorf("%w: [%d,%d) in block of len %d", ErrInvalidRange, r.Start, r.End, b.Len())
	}
	st := explode(b).remove(r.Start, r.End)
	out := doc.replaceBlock(i, st.implode(b.Key, b.Type))
	if out.Selection.BlockKey == blockKey {
		out.Selection = MapThroughRemoval(out.Selection, r)
	}
	return out, nil
}

// MapThroughRemoval 把删除 r 之前的选区映射到删除之后的坐标
func MapThroughRemoval(sel Selection, r Range) Selection {
	mapOffset := func(o int) int {
		switch {
		case o <= r.Start:
			return o
		case o < r.End:
			return r.Start
		default:
			return o - (r.End - r.Start)
		}
	}
	sel.AnchorOffset = mapOffset(sel.AnchorOffset)
	sel.FocusOffset = mapOffset(sel.FocusOffset)
	return sel
}

// WithInlineStyleToggled 在当前选区上切换行内样式；选区无效时原样返回
func WithInlineStyleToggled(doc Document, tag StyleTag) Document {
	out, err := WithInlineStyleToggledAt(doc, doc.Selection, tag)
	if err != nil {
		return doc
	}
	return out
}

// WithInlineStyleToggledAt 在指定选区上切换行内样式。
// 折叠选区：只修改待输入样式（override），之后输入的字符带上它；
// 展开选区：区间内所有字符都有该样式则去掉，否则整段加上。
func WithInlineStyleToggledAt(doc Document, sel Selection, tag StyleTag) (Document, error) {
	b, err := CurrentBlock(doc, sel)
	if err != nil {
		return doc, err
	}
	if sel.IsCollapsed() {
		cur := currentStyle(doc, sel)
		doc.Selection = sel
		return doc.WithInlineOverride(cur.Toggle(tag)), nil
	}

	st := explode(b)
	start, end := sel.Start(), sel.End()
	all := true
	for i := start; i < end; i++ {
		if !st.styles[i].Has(tag) {
			all = false
			break
		}
	}
	for i := start; i < end; i++ {
		if all {
			st.styles[i] = st.styles[i].Remove(tag)
		} else {
			st.styles[i] = st.styles[i].Add(tag)
		}
	}
	out := doc.replaceBlock(doc.indexOf(b.Key), st.implode(b.Key, b.Type))
	out.Selection = sel
	return out.withoutOverride(), nil
}

// CurrentInlineStyle 返回在当前光标处输入时会使用的样式
func CurrentInlineStyle(doc Document) StyleSet {
	return currentStyle(doc, doc.Selection)
}

func currentStyle(doc Document, sel Selection) StyleSet {
	if doc.hasOverride && sel == doc.Selection {
		return doc.override
	}
	b, err := CurrentBlock(doc, sel)
	if err != nil {
		return nil
	}
	return explode(b).styleAt(sel.Start())
}

// Equal 比较块和选区；待输入样式属于会话状态，不参与比较
func Equal(a, b Document) bool {
	if a.Selection != b.Selection || len(a.Blocks) != len(b.Blocks) {
		return false
	}
	for i := range a.Blocks {
		x, y := a.Blocks[i], b.Blocks[i]
		if x.Key != y.Key || x.Type != y.Type || x.Text != y.Text || len(x.InlineStyles) != len(y.InlineStyles) {
			return false
		}
		for j := range x.InlineStyles {
			if x.InlineStyles[j] != y.InlineStyles[j] {
				return false
			}
		}
	}
	return true
}

// Validate 检查文档的全部不变量
func Validate(doc Document) error {
	if len(doc.Blocks) == 0 {
		return ErrEmptyDocument
	}
	seen := make(map[string]struct{}, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if b.Key == "" {
			return fmt.Errorf("%w: empty key", ErrDuplicateKey)
		}
		if _, ok := seen[b.Key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, b.Key)
		}
		seen[b.Key] = struct{}{}

		n := b.Len()
		ranges := append([]StyleRange(nil), b.InlineStyles...)
		sortRanges(ranges)
		lastEnd := map[StyleTag]int{}
		for i, r := range ranges {
			if r.Start < 0 || r.Start >= r.End || r.End > n {
				return fmt.Errorf("%w: %s [%d,%d) in block %q (len %d)", ErrInvalidRange, r.Style, r.Start, r.End, b.Key, n)
			}
			// 同一样式的区间既不重叠也不相接，否则存盘再读回来会被合并
			if end, ok := lastEnd[r.Style]; ok && r.Start <= end {
				return fmt.Errorf("%w: overlapping or adjacent %s ranges in block %q", ErrInvalidRange, r.Style, b.Key)
			}
			lastEnd[r.Style] = r.End
			// 必须是 (Start, Style) 规范顺序
			if b.InlineStyles[i] != r {
				return fmt.Errorf("%w: ranges of block %q not in canonical order", ErrInvalidRange, b.Key)
			}
		}
	}
	_, err := CurrentBlock(doc, doc.Selection)
	return err
}
