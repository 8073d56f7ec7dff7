package engine

import (
	"log"
	"strings"

	"autoformat-service/backend/internal/content"
	"autoformat-service/backend/internal/marker"
)

// Result 一次转换的结果。Fired=false 时 Document 就是原候选文档。
type Result struct {
	Document content.Document
	Rule     marker.Rule
	Fired    bool
}

// Engine 标记检测 + 状态转换。无状态、纯函数，可被多个文档共享。
type Engine struct {
	rules marker.Table
}

func New(rules marker.Table) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) Rules() marker.Table { return e.rules }

// Transition 每次编辑后调用：previous 是上一次提交的文档，candidate 是编辑产生的候选文档。
//
// 选区所在块的文本以某个标记开头，且标记后是空格或光标正好停在标记末尾时，规则触发：
// 删除标记（连同紧跟的那个空格）、设置块类型、在候选选区上切换行内样式，三步合成一个新文档返回。
// 只移动了光标（块文本和 previous 相同）不会触发。
func (e *Engine) Transition(previous, candidate content.Document) Result {
	sel := candidate.Selection
	block, err := content.CurrentBlock(candidate, sel)
	if err != nil {
		// 编辑层保证选区有效；走到这里说明上游有 bug，保留候选文档
		log.Printf("engine: candidate has invalid selection: %v", err)
		return Result{Document: candidate}
	}
	if prev, ok := previous.BlockByKey(block.Key); ok && prev.Text == block.Text {
		return Result{Document: candidate}
	}

	rule, ok := e.rules.Match(block.Text, sel.Start())
	if !ok {
		return Result{Document: candidate}
	}

	removal := content.Range{Start: 0, End: rule.Len()}
	if strings.HasPrefix(block.Text[len(rule.Marker):], " ") {
		removal.End++
	}

	doc, err := content.WithMarkerRemoved(candidate, block.Key, removal)
	if err != nil {
		log.Printf("engine: remove marker %q: %v", rule.Marker, err)
		return Result{Document: candidate}
	}
	if rule.BlockType != "" {
		if doc, err = content.WithBlockType(doc, block.Key, rule.BlockType); err != nil {
			log.Printf("engine: set block type %q: %v", rule.BlockType, err)
			return Result{Document: candidate}
		}
	}
	if rule.InlineStyle != "" {
		// 样式作用在候选文档的选区上（映射到删除标记之后的坐标），这样紧接着输入的文字会带上样式
		at := content.MapThroughRemoval(sel, removal)
		if doc, err = content.WithInlineStyleToggledAt(doc, at, rule.InlineStyle); err != nil {
			log.Printf("engine: toggle %s: %v", rule.InlineStyle, err)
			return Result{Document: candidate}
		}
	}
	return Result{Document: doc, Rule: rule, Fired: true}
}
