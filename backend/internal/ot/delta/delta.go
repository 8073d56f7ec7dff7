package delta

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

var ErrMalformedOp = errors.New("MALFORMED_OP")

// Op 作用在单个块上的一步编辑，长度单位是 rune
type Op struct {
	Kind  Kind           `json:"kind"`            // "retain" / "insert" / "delete"
	Count int            `json:"count,omitempty"` // retain/delete 的长度
	Text  string         `json:"text,omitempty"`  // insert 的文本
	Attrs map[string]any `json:"attrs,omitempty"` // 样式属性，如 {"BOLD": true}
}

// Delta 是对一个块从头到尾的一串操作
// "ops":[{"kind":"retain","count":5},{"kind":"insert","text":"Hello","attrs":{"BOLD":true}}]
type Delta []Op

// Validate 检查每个 op 的字段是否和 Kind 对得上；insert 不能跨块（不允许换行）
func (d Delta) Validate() error {
	for i, op := range d {
		switch op.Kind {
		case KindRetain, KindDelete:
			if op.Count <= 0 {
				return fmt.Errorf("%w: op %d: %s needs a positive count", ErrMalformedOp, i, op.Kind)
			}
		case KindInsert:
			if op.Text == "" {
				return fmt.Errorf("%w: op %d: empty insert", ErrMalformedOp, i)
			}
			if strings.ContainsRune(op.Text, '\n') {
				return fmt.Errorf("%w: op %d: insert spans blocks", ErrMalformedOp, i)
			}
		default:
			return fmt.Errorf("%w: op %d: unknown kind %q", ErrMalformedOp, i, op.Kind)
		}
	}
	return nil
}

// HasAttrs 区分 "没带属性"（继承光标处样式）和 "显式给了空属性"（纯文本）
func (op Op) HasAttrs() bool { return op.Attrs != nil }

// StyleNames 返回值为 true 的属性名，按字典序
func (op Op) StyleNames() []string {
	var names []string
	for k, v := range op.Attrs {
		if on, ok := v.(bool); ok && on {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
