package decorate

import (
	"sort"

	"autoformat-service/backend/internal/content"
)

// Decoration 渲染层用的高亮片段，只读，不回写文档
type Decoration struct {
	BlockKey  string           `json:"blockKey"`
	Start     int              `json:"start"`
	End       int              `json:"end"`
	Tag       content.StyleTag `json:"tag"`
	Component string           `json:"component"`
}

// Strategy 找出带某个样式的区间，交给名为 Component 的渲染组件
type Strategy struct {
	Tag       content.StyleTag
	Component string
}

type Decorator struct {
	strategies []Strategy
}

func New(strategies ...Strategy) *Decorator {
	return &Decorator{strategies: append([]Strategy(nil), strategies...)}
}

// Default 红色高亮
func Default() *Decorator {
	return New(Strategy{Tag: content.StyleRedColor, Component: "red-text"})
}

// Decorate 每次渲染时从当前文档重新计算；同一个文档总是得到同一个序列
// （按块顺序，块内按 start、tag 排序）。
func (d *Decorator) Decorate(doc content.Document) []Decoration {
	var out []Decoration
	for _, b := range doc.Blocks {
		var inBlock []Decoration
		for _, s := range d.strategies {
			for _, r := range b.InlineStyles {
				if r.Style != s.Tag {
					continue
				}
				inBlock = append(inBlock, Decoration{
					BlockKey:  b.Key,
					Start:     r.Start,
					End:       r.End,
					Tag:       r.Style,
					Component: s.Component,
				})
			}
		}
		sort.SliceStable(inBlock, func(i, j int) bool {
			if inBlock[i].Start != inBlock[j].Start {
				return inBlock[i].Start < inBlock[j].Start
			}
			return inBlock[i].Tag < inBlock[j].Tag
		})
		out = append(out, inBlock...)
	}
	return out
}

// BlockStyle 块类型 -> 前端 css class
func BlockStyle(b content.Block) string {
	switch b.Type {
	case content.BlockHeaderOne:
		return "header-one"
	default:
		return ""
	}
}

// BlockStyles 按块 key 汇总非空的 class
func BlockStyles(doc content.Document) map[string]string {
	out := make(map[string]string)
	for _, b := range doc.Blocks {
		if cls := BlockStyle(b); cls != "" {
			out[b.Key] = cls
		}
	}
	return out
}
