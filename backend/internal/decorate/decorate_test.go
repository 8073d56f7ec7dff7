package decorate

import (
	"reflect"
	"testing"

	"autoformat-service/backend/internal/content"
)

func TestDecorate_RedRange(t *testing.T) {
	doc := content.FromBlocks(content.Block{
		Key:  "b1",
		Text: "hello world",
		InlineStyles: []content.StyleRange{
			{Style: content.StyleBold, Start: 0, End: 4},
			{Style: content.StyleRedColor, Start: 2, End: 5},
		},
	})

	d := Default()
	first := d.Decorate(doc)
	want := []Decoration{{BlockKey: "b1", Start: 2, End: 5, Tag: content.StyleRedColor, Component: "red-text"}}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("Decorate() = %+v, want %+v", first, want)
	}

	second := d.Decorate(doc)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Decorate() not stable: %+v vs %+v", first, second)
	}
}

func TestDecorate_OrderAcrossBlocks(t *testing.T) {
	doc := content.FromBlocks(
		content.Block{Key: "a", Text: "abcdef", InlineStyles: []content.StyleRange{
			{Style: content.StyleRedColor, Start: 4, End: 6},
			{Style: content.StyleRedColor, Start: 0, End: 1},
			{Style: content.StyleUnderline, Start: 0, End: 2},
		}},
		content.Block{Key: "b", Text: "xyz", InlineStyles: []content.StyleRange{
			{Style: content.StyleRedColor, Start: 1, End: 3},
		}},
	)
	d := New(
		Strategy{Tag: content.StyleUnderline, Component: "u"},
		Strategy{Tag: content.StyleRedColor, Component: "red"},
	)
	got := d.Decorate(doc)
	want := []Decoration{
		{BlockKey: "a", Start: 0, End: 1, Tag: content.StyleRedColor, Component: "red"},
		{BlockKey: "a", Start: 0, End: 2, Tag: content.StyleUnderline, Component: "u"},
		{BlockKey: "a", Start: 4, End: 6, Tag: content.StyleRedColor, Component: "red"},
		{BlockKey: "b", Start: 1, End: 3, Tag: content.StyleRedColor, Component: "red"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Decorate() = %+v, want %+v", got, want)
	}
}

func TestDecorate_DoesNotTouchDocument(t *testing.T) {
	doc := content.FromBlocks(content.Block{Key: "b1", Text: "abc", InlineStyles: []content.StyleRange{
		{Style: content.StyleRedColor, Start: 0, End: 3},
	}})
	snapshot := content.FromBlocks(doc.Blocks...)
	_ = Default().Decorate(doc)
	if !content.Equal(doc, snapshot) {
		t.Fatalf("document changed by Decorate")
	}
}

func TestBlockStyle(t *testing.T) {
	if got := BlockStyle(content.Block{Type: content.BlockHeaderOne}); got != "header-one" {
		t.Fatalf("BlockStyle(header-one) = %q", got)
	}
	if got := BlockStyle(content.Block{Type: content.BlockUnstyled}); got != "" {
		t.Fatalf("BlockStyle(unstyled) = %q", got)
	}
	doc := content.FromBlocks(
		content.Block{Key: "h", Type: content.BlockHeaderOne},
		content.Block{Key: "p"},
	)
	if got := BlockStyles(doc); !reflect.DeepEqual(got, map[string]string{"h": "header-one"}) {
		t.Fatalf("BlockStyles() = %v", got)
	}
}
