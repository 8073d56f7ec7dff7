package content

import (
	"errors"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"
)

// BlockType 块类型（可扩展），取值与前端 blockStyleFn 约定一致
type BlockType string

const (
	BlockUnstyled  BlockType = "unstyled"
	BlockHeaderOne BlockType = "header-one"
)

// StyleTag 行内样式名
type StyleTag string

const (
	StyleBold      StyleTag = "BOLD"
	StyleUnderline StyleTag = "UNDERLINE"
	StyleRedColor  StyleTag = "RED_COLOR"
)

var (
	ErrInvalidSelection = errors.New("INVALID_SELECTION")
	ErrInvalidRange     = errors.New("INVALID_RANGE")
	ErrDuplicateKey     = errors.New("DUPLICATE_BLOCK_KEY")
	ErrEmptyDocument    = errors.New("EMPTY_DOCUMENT")
	ErrInvalidDelta     = errors.New("INVALID_DELTA")
)

// StyleRange 半开区间 [Start, End)，单位是 rune
type StyleRange struct {
	Style StyleTag `json:"style"`
	Start int      `json:"start"`
	End   int      `json:"end"`
}

// Range 块内的 rune 区间
type Range struct {
	Start int
	End   int
}

type Block struct {
	Key          string       `json:"key"`
	Type         BlockType    `json:"type"`
	Text         string       `json:"text"`
	InlineStyles []StyleRange `json:"inlineStyleRanges"`
}

// Len 返回块文本的 rune 数
func (b Block) Len() int { return utf8.RuneCountInString(b.Text) }

// Selection 只描述单个块内的选区；Anchor 是起点，Focus 是光标所在位置
type Selection struct {
	BlockKey     string `json:"blockKey"`
	AnchorOffset int    `json:"anchorOffset"`
	FocusOffset  int    `json:"focusOffset"`
}

func CollapsedAt(blockKey string, offset int) Selection {
	return Selection{BlockKey: blockKey, AnchorOffset: offset, FocusOffset: offset}
}

func (s Selection) IsCollapsed() bool { return s.AnchorOffset == s.FocusOffset }

func (s Selection) Start() int {
	if s.AnchorOffset <= s.FocusOffset {
		return s.AnchorOffset
	}
	return s.FocusOffset
}

func (s Selection) End() int {
	if s.AnchorOffset >= s.FocusOffset {
		return s.AnchorOffset
	}
	return s.FocusOffset
}

// StyleSet 有序、去重的样式集合，值语义（所有方法返回新集合）
type StyleSet []StyleTag

func NewStyleSet(tags ...StyleTag) StyleSet {
	var s StyleSet
	for _, t := range tags {
		s = s.Add(t)
	}
	return s
}

func (s StyleSet) Has(tag StyleTag) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= tag })
	return i < len(s) && s[i] == tag
}

func (s StyleSet) Add(tag StyleTag) StyleSet {
	if s.Has(tag) {
		return s
	}
	out := make(StyleSet, 0, len(s)+1)
	out = append(out, s...)
	out = append(out, tag)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s StyleSet) Remove(tag StyleTag) StyleSet {
	if !s.Has(tag) {
		return s
	}
	out := make(StyleSet, 0, len(s)-1)
	for _, t := range s {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

func (s StyleSet) Toggle(tag StyleTag) StyleSet {
	if s.Has(tag) {
		return s.Remove(tag)
	}
	return s.Add(tag)
}

func (s StyleSet) Equal(o StyleSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Document 是不可变值：每次编辑都产生一个新的 Document，旧值可以直接放进历史记录。
type Document struct {
	Blocks    []Block
	Selection Selection

	// 折叠光标处待应用的行内样式（"接下来输入的文字加粗"），只属于编辑会话，不落盘
	override    StyleSet
	hasOverride bool
}

// NewKey 生成块 key
func NewKey() string { return uuid.NewString() }

// NewDocument 返回只含一个空 unstyled 块的文档，光标在 0
func NewDocument() Document {
	key := NewKey()
	return Document{
		Blocks:    []Block{{Key: key, Type: BlockUnstyled}},
		Selection: CollapsedAt(key, 0),
	}
}

// FromBlocks 用给定的块构造文档，光标放在第一个块开头
func FromBlocks(blocks ...Block) Document {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		if b.Type == "" {
			b.Type = BlockUnstyled
		}
		out[i] = Normalize(b)
	}
	d := Document{Blocks: out}
	if len(out) > 0 {
		d.Selection = CollapsedAt(out[0].Key, 0)
	}
	return d
}

// InlineOverride 返回待应用的行内样式；ok=false 表示没有覆盖，按光标前字符的样式继承
func (d Document) InlineOverride() (StyleSet, bool) {
	return d.override, d.hasOverride
}

func (d Document) WithInlineOverride(s StyleSet) Document {
	d.override = s
	d.hasOverride = true
	return d
}

func (d Document) withoutOverride() Document {
	d.override = nil
	d.hasOverride = false
	return d
}

func (d Document) indexOf(key string) int {
	for i, b := range d.Blocks {
		if b.Key == key {
			return i
		}
	}
	return -1
}

// BlockByKey 按 key 查找块
func (d Document) BlockByKey(key string) (Block, bool) {
	i := d.indexOf(key)
	if i < 0 {
		return Block{}, false
	}
	return d.Blocks[i], true
}

// replaceBlock 复制块切片后替换第 i 个，保证旧 Document 不被修改
func (d Document) replaceBlock(i int, b Block) Document {
	blocks := make([]Block, len(d.Blocks))
	copy(blocks, d.Blocks)
	blocks[i] = b
	d.Blocks = blocks
	return d
}
