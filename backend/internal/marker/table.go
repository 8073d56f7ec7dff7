package marker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"autoformat-service/backend/internal/content"
)

var ErrInvalidRule = errors.New("INVALID_MARKER_RULE")

// Rule 行首标记 -> 格式化效果。BlockType / InlineStyle 为空表示没有对应效果。
type Rule struct {
	Marker      string            `json:"marker" mapstructure:"marker"`
	BlockType   content.BlockType `json:"blockType,omitempty" mapstructure:"blockType"`
	InlineStyle content.StyleTag  `json:"inlineStyle,omitempty" mapstructure:"inlineStyle"`
}

// Len 标记长度（rune）
func (r Rule) Len() int { return utf8.RuneCountInString(r.Marker) }

func (r Rule) validate() error {
	if r.Marker == "" {
		return fmt.Errorf("%w: empty marker", ErrInvalidRule)
	}
	if strings.ContainsAny(r.Marker, " \n") {
		return fmt.Errorf("%w: marker %q contains whitespace", ErrInvalidRule, r.Marker)
	}
	if r.BlockType == "" && r.InlineStyle == "" {
		return fmt.Errorf("%w: marker %q has no effect", ErrInvalidRule, r.Marker)
	}
	return nil
}

// Table 按标记长度从长到短排好序的规则表。
// 标记互为前缀时（*、**、***）必须先试最长的，否则 * 永远先命中。
type Table struct {
	rules []Rule
}

// NewTable 校验并排序规则；同一个标记出现多次时后面的覆盖前面的
func NewTable(rules ...Rule) (Table, error) {
	byMarker := make(map[string]int, len(rules))
	var out []Rule
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return Table{}, err
		}
		if i, ok := byMarker[r.Marker]; ok {
			out[i] = r
			continue
		}
		byMarker[r.Marker] = len(out)
		out = append(out, r)
	}
	// 稳定排序：长度相同的规则保持声明顺序
	sort.SliceStable(out, func(i, j int) bool { return out[i].Len() > out[j].Len() })
	return Table{rules: out}, nil
}

// DefaultRules 参考规则集
func DefaultRules() []Rule {
	return []Rule{
		{Marker: "#", BlockType: content.BlockHeaderOne},
		{Marker: "*", BlockType: content.BlockUnstyled, InlineStyle: content.StyleBold},
		{Marker: "**", BlockType: content.BlockUnstyled, InlineStyle: content.StyleRedColor},
		{Marker: "***", BlockType: content.BlockUnstyled, InlineStyle: content.StyleUnderline},
	}
}

func DefaultTable() Table {
	t, _ := NewTable(DefaultRules()...)
	return t
}

// Rules 返回求值顺序下的规则副本
func (t Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Match 返回第一条命中的规则。命中条件：文本以标记开头，并且
// 标记后紧跟一个空格，或者选区起点正好在标记末尾。
func (t Table) Match(text string, selStart int) (Rule, bool) {
	for _, r := range t.rules {
		if !strings.HasPrefix(text, r.Marker) {
			continue
		}
		rest := text[len(r.Marker):]
		if strings.HasPrefix(rest, " ") || selStart == r.Len() {
			return r, true
		}
	}
	return Rule{}, false
}
