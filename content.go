package main

import (
	"context"
	"strings"
)

// maxBlockDepth bounds nested block traversal; deeper content is rare and
// one level of children covers toggles and list nesting.
const maxBlockDepth = 2

// extractContent renders a page's block tree into plain text, streaming
// block children through the shared rate limiter. Unsupported block kinds
// render as their kind label; they never fail the extraction.
func extractContent(ctx context.Context, src sourceAPI, rl *rateLimiter, maxRetries int, pageID string) (string, error) {
	lines, err := renderBlocks(ctx, src, rl, maxRetries, pageID, 0)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func renderBlocks(ctx context.Context, src sourceAPI, rl *rateLimiter, maxRetries int, blockID string, depth int) ([]string, error) {
	var lines []string
	fetch := func(ctx context.Context, cursor string) ([]Block, string, error) {
		return src.BlockChildren(ctx, blockID, cursor)
	}
	for blk, err := range paginate(ctx, rl, maxRetries, fetch) {
		if err != nil {
			return nil, err
		}
		if line := renderBlockLine(blk); line != "" {
			lines = append(lines, line)
		}
		if blk.HasChildren && depth+1 < maxBlockDepth {
			children, err := renderBlocks(ctx, src, rl, maxRetries, blk.ID, depth+1)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				lines = append(lines, "  "+child)
			}
		}
	}
	return lines, nil
}

// renderBlockLine reduces one block to a text line. Blocks with no
// renderable payload fall back to their kind label so nothing disappears
// silently.
func renderBlockLine(b Block) string {
	switch b.Kind {
	case "divider":
		return "---"
	case "bulleted_list_item", "numbered_list_item":
		return "- " + b.Text
	case "quote":
		return "> " + b.Text
	default:
		if b.Text != "" {
			return b.Text
		}
		if b.Kind == "" {
			return ""
		}
		return "[" + b.Kind + "]"
	}
}
