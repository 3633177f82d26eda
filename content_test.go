package main

import (
	"context"
	"testing"
)

func TestRenderBlockLine(t *testing.T) {
	tests := []struct {
		name string
		in   Block
		want string
	}{
		{"paragraph", Block{Kind: "paragraph", Text: "hello"}, "hello"},
		{"divider", Block{Kind: "divider"}, "---"},
		{"bulleted", Block{Kind: "bulleted_list_item", Text: "one"}, "- one"},
		{"numbered", Block{Kind: "numbered_list_item", Text: "two"}, "- two"},
		{"quote", Block{Kind: "quote", Text: "said"}, "> said"},
		{"todo checked", Block{Kind: "to_do", Text: "[x] ship"}, "[x] ship"},
		{"unsupported kind labelled", Block{Kind: "embed"}, "[embed]"},
		{"empty paragraph dropped", Block{Kind: "paragraph"}, "[paragraph]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderBlockLine(tc.in); got != tc.want {
				t.Errorf("renderBlockLine(%+v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

type blockSource struct {
	// children by parent block id, served in pages of two
	children map[string][]Block
}

func (s *blockSource) SearchDatabases(context.Context, string) ([]SourceDatabase, string, error) {
	return nil, "", nil
}

func (s *blockSource) QueryRecords(context.Context, string, string) ([]SourceRecord, string, error) {
	return nil, "", nil
}

func (s *blockSource) BlockChildren(_ context.Context, blockID, cursor string) ([]Block, string, error) {
	blocks := s.children[blockID]
	var pages [][]Block
	for i := 0; i < len(blocks); i += 2 {
		end := min(i+2, len(blocks))
		pages = append(pages, blocks[i:end])
	}
	if len(pages) == 0 {
		return nil, "", nil
	}
	return pagedFetch(pages)(context.Background(), cursor)
}

func TestExtractContent(t *testing.T) {
	src := &blockSource{children: map[string][]Block{
		"page-1": {
			{ID: "b1", Kind: "heading_1", Text: "Title"},
			{ID: "b2", Kind: "toggle", Text: "Details", HasChildren: true},
			{ID: "b3", Kind: "divider"},
			{ID: "b4", Kind: "bulleted_list_item", Text: "point"},
			{ID: "b5", Kind: "image"},
		},
		"b2": {
			{ID: "b2a", Kind: "paragraph", Text: "inner"},
			{ID: "b2b", Kind: "paragraph", Text: "deep", HasChildren: true},
		},
		// below maxBlockDepth, must not be fetched
		"b2b": {
			{ID: "b2b1", Kind: "paragraph", Text: "too deep"},
		},
	}}

	got, err := extractContent(context.Background(), src, fastLimiter(), 3, "page-1")
	if err != nil {
		t.Fatal(err)
	}
	want := "Title\n" +
		"Details\n" +
		"  inner\n" +
		"  deep\n" +
		"---\n" +
		"- point\n" +
		"[image]"
	if got != want {
		t.Errorf("content =\n%q\nwant\n%q", got, want)
	}
}

func TestExtractContentEmptyPage(t *testing.T) {
	src := &blockSource{children: map[string][]Block{}}

	got, err := extractContent(context.Background(), src, fastLimiter(), 3, "page-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("content = %q, want empty", got)
	}
}
