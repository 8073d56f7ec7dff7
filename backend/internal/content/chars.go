package content

import "sort"

// styledText 把块展开成逐字符的样式表，编辑时按字符操作，结束后再折叠回区间。
// 和 draft 的 CharacterMetadata 是一个思路。
type styledText struct {
	runes  []rune
	styles []StyleSet
}

func explode(b Block) styledText {
	runes := []rune(b.Text)
	styles := make([]StyleSet, len(runes))
	for _, r := range b.InlineStyles {
		start, end := clamp(r.Start, 0, len(runes)), clamp(r.End, 0, len(runes))
		for i := start; i < end; i++ {
			styles[i] = styles[i].Add(r.Style)
		}
	}
	return styledText{runes: runes, styles: styles}
}

// implode 把逐字符样式折叠成规范区间：同一样式的相邻字符合并，按 (Start, Style) 排序
func (st styledText) implode(key string, typ BlockType) Block {
	b := Block{Key: key, Type: typ, Text: string(st.runes)}
	open := map[StyleTag]int{}
	for i := 0; i <= len(st.styles); i++ {
		var cur StyleSet
		if i < len(st.styles) {
			cur = st.styles[i]
		}
		for tag, start := range open {
			if !cur.Has(tag) {
				b.InlineStyles = append(b.InlineStyles, StyleRange{Style: tag, Start: start, End: i})
				delete(open, tag)
			}
		}
		for _, tag := range cur {
			if _, ok := open[tag]; !ok {
				open[tag] = i
			}
		}
	}
	sortRanges(b.InlineStyles)
	return b
}

func (st styledText) slice(start, end int) styledText {
	return styledText{
		runes:  append([]rune(nil), st.runes[start:end]...),
		styles: append([]StyleSet(nil), st.styles[start:end]...),
	}
}

func (st styledText) concat(o styledText) styledText {
	out := styledText{
		runes:  make([]rune, 0, len(st.runes)+len(o.runes)),
		styles: make([]StyleSet, 0, len(st.styles)+len(o.styles)),
	}
	out.runes = append(append(out.runes, st.runes...), o.runes...)
	out.styles = append(append(out.styles, st.styles...), o.styles...)
	return out
}

func (st styledText) remove(start, end int) styledText {
	return st.slice(0, start).concat(st.slice(end, len(st.runes)))
}

func (st styledText) insert(at int, text []rune, style StyleSet) styledText {
	mid := styledText{runes: text, styles: make([]StyleSet, len(text))}
	for i := range mid.styles {
		mid.styles[i] = style
	}
	return st.slice(0, at).concat(mid).concat(st.slice(at, len(st.runes)))
}

// styleAt 返回在 offset 处输入时应继承的样式：光标前一个字符；在行首时取第一个字符
func (st styledText) styleAt(offset int) StyleSet {
	switch {
	case offset > 0 && offset <= len(st.styles):
		return st.styles[offset-1]
	case len(st.styles) > 0:
		return st.styles[0]
	}
	return nil
}

func sortRanges(rs []StyleRange) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Start != rs[j].Start {
			return rs[i].Start < rs[j].Start
		}
		return rs[i].Style < rs[j].Style
	})
}

// Normalize 合并同样式的重叠/相邻区间，越界部分截断
func Normalize(b Block) Block {
	return explode(b).implode(b.Key, b.Type)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
