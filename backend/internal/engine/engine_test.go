package engine

import (
	"reflect"
	"testing"

	"autoformat-service/backend/internal/content"
	"autoformat-service/backend/internal/marker"
)

func candidate(text string, cursor int) content.Document {
	doc := content.FromBlocks(content.Block{Key: "b1", Text: text})
	doc.Selection = content.CollapsedAt("b1", cursor)
	return doc
}

var empty = content.FromBlocks(content.Block{Key: "b1"})

func TestTransition_NoMarkerReturnsCandidate(t *testing.T) {
	e := New(marker.DefaultTable())
	for _, c := range []content.Document{
		candidate("hello", 5),
		candidate("#abc", 4),
		candidate("a * b", 3),
		candidate("", 0),
	} {
		res := e.Transition(empty, c)
		if res.Fired {
			t.Fatalf("Transition(%q) fired rule %q", c.Blocks[0].Text, res.Rule.Marker)
		}
		if !reflect.DeepEqual(res.Document, c) {
			t.Fatalf("Transition(%q) = %+v, want candidate unchanged", c.Blocks[0].Text, res.Document)
		}
	}
}

func TestTransition_HeaderOne(t *testing.T) {
	e := New(marker.DefaultTable())
	res := e.Transition(empty, candidate("# ", 2))
	if !res.Fired || res.Rule.Marker != "#" {
		t.Fatalf("Transition() fired=%v rule=%q, want #", res.Fired, res.Rule.Marker)
	}
	b := res.Document.Blocks[0]
	if b.Type != content.BlockHeaderOne || b.Text != "" {
		t.Fatalf("block = %+v, want empty header-one", b)
	}
	if res.Document.Selection != content.CollapsedAt("b1", 0) {
		t.Fatalf("selection = %+v, want collapsed at 0", res.Document.Selection)
	}
	if err := content.Validate(res.Document); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestTransition_CursorAtMarkerEnd(t *testing.T) {
	e := New(marker.DefaultTable())
	res := e.Transition(empty, candidate("#", 1))
	if !res.Fired || res.Document.Blocks[0].Type != content.BlockHeaderOne || res.Document.Blocks[0].Text != "" {
		t.Fatalf("Transition(\"#\") = %+v, want empty header-one", res.Document.Blocks[0])
	}
}

func TestTransition_KeepsTrailingText(t *testing.T) {
	e := New(marker.DefaultTable())
	res := e.Transition(empty, candidate("# Title", 7))
	b := res.Document.Blocks[0]
	if b.Text != "Title" || b.Type != content.BlockHeaderOne {
		t.Fatalf("block = %+v, want header-one \"Title\"", b)
	}
	if res.Document.Selection != content.CollapsedAt("b1", 5) {
		t.Fatalf("selection = %+v, want collapsed at 5", res.Document.Selection)
	}
}

func TestTransition_InlineStyles(t *testing.T) {
	e := New(marker.DefaultTable())
	cases := []struct {
		text string
		want content.StyleTag
	}{
		{"* ", content.StyleBold},
		{"** ", content.StyleRedColor},
		{"*** ", content.StyleUnderline},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			start := content.FromBlocks(content.Block{Key: "b1", Type: content.BlockHeaderOne})
			c := candidate(tc.text, len(tc.text))
			c.Blocks[0].Type = content.BlockHeaderOne

			res := e.Transition(start, c)
			if !res.Fired {
				t.Fatalf("Transition(%q) did not fire", tc.text)
			}
			b := res.Document.Blocks[0]
			if b.Text != "" || b.Type != content.BlockUnstyled {
				t.Fatalf("block = %+v, want empty unstyled", b)
			}
			override, ok := res.Document.InlineOverride()
			if !ok || !override.Equal(content.NewStyleSet(tc.want)) {
				t.Fatalf("override = %v (ok=%v), want [%s]", override, ok, tc.want)
			}

			typed, err := content.InsertText(res.Document, "x")
			if err != nil {
				t.Fatalf("InsertText() error = %v", err)
			}
			got := typed.Blocks[0].InlineStyles
			want := []content.StyleRange{{Style: tc.want, Start: 0, End: 1}}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("styles after typing = %+v, want %+v", got, want)
			}
		})
	}
}

func TestTransition_SelectionOnlyChangeDoesNotFire(t *testing.T) {
	e := New(marker.DefaultTable())
	prev := candidate("*abc", 4)
	moved := candidate("*abc", 1)
	res := e.Transition(prev, moved)
	if res.Fired {
		t.Fatalf("cursor move fired rule %q", res.Rule.Marker)
	}
}

func TestTransition_InvalidSelectionIsNoop(t *testing.T) {
	e := New(marker.DefaultTable())
	c := candidate("# ", 2)
	c.Selection = content.CollapsedAt("missing", 0)
	res := e.Transition(empty, c)
	if res.Fired || !reflect.DeepEqual(res.Document, c) {
		t.Fatalf("Transition() with invalid selection = %+v, want candidate", res)
	}
}

func TestTransition_DoesNotMutateCandidate(t *testing.T) {
	e := New(marker.DefaultTable())
	c := candidate("** red", 6)
	before := content.FromBlocks(c.Blocks...)
	before.Selection = c.Selection
	_ = e.Transition(empty, c)
	if !content.Equal(c, before) {
		t.Fatalf("candidate mutated: %+v", c)
	}
}

func TestTransition_CustomRules(t *testing.T) {
	tbl, err := marker.NewTable(marker.Rule{Marker: "!", InlineStyle: content.StyleRedColor})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	res := New(tbl).Transition(empty, candidate("! hi", 4))
	if !res.Fired || res.Document.Blocks[0].Text != "hi" || res.Document.Blocks[0].Type != content.BlockUnstyled {
		t.Fatalf("custom rule result = %+v", res.Document.Blocks[0])
	}
}
