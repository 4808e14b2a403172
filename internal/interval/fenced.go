package interval

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

var markdown = goldmark.New()

// fencedCodeCandidates locates fenced code blocks through the goldmark AST.
// The interval runs from the opening fence line through the closing fence
// line when one is present.
func fencedCodeCandidates(text string) []doctree.ProtectedBlock {
	if !strings.Contains(text, "```") && !strings.Contains(text, "~~~") {
		return nil
	}

	src := []byte(text)
	doc := markdown.Parser().Parse(gmtext.NewReader(src))

	var cands []doctree.ProtectedBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var anchor, end int
		lines := fcb.Lines()
		switch {
		case lines.Len() > 0:
			anchor = lines.At(0).Start
			end = lines.At(lines.Len() - 1).Stop
		case fcb.Info != nil:
			anchor = fcb.Info.Segment.Start
			end = anchor
			for end < len(text) && text[end] != '\n' {
				end++
			}
			if end < len(text) {
				end++
			}
		default:
			return ast.WalkSkipChildren, nil
		}

		start := openingFence(text, anchor, lines.Len() > 0)
		end = closingFence(text, end)
		if start < end {
			cands = append(cands, doctree.ProtectedBlock{Start: start, End: end, Kind: doctree.BlockCode})
		}
		return ast.WalkSkipChildren, nil
	})
	return cands
}

// openingFence returns the start of the fence line. For a block with
// content, anchor is the first content line and the fence is the line
// above it; otherwise anchor lies on the fence line itself.
func openingFence(text string, anchor int, hasContent bool) int {
	ls := anchor
	for ls > 0 && text[ls-1] != '\n' {
		ls--
	}
	if !hasContent || ls == 0 {
		return ls
	}
	prev := ls - 1
	for prev > 0 && text[prev-1] != '\n' {
		prev--
	}
	if isFenceLine(text[prev : ls-1]) {
		return prev
	}
	return ls
}

// closingFence extends end over the closing fence line that follows the
// last content line, if there is one.
func closingFence(text string, end int) int {
	if end > len(text) {
		end = len(text)
	}
	if end > 0 && text[end-1] != '\n' {
		// Unclosed block running to the end of the page.
		for end < len(text) && text[end] != '\n' {
			end++
		}
		return end
	}
	le := end
	for le < len(text) && text[le] != '\n' {
		le++
	}
	if isFenceLine(text[end:le]) {
		return le
	}
	return trimNewline(text, end)
}

func trimNewline(text string, end int) int {
	for end > 0 && text[end-1] == '\n' {
		end--
	}
	return end
}

func isFenceLine(line string) bool {
	t := strings.TrimLeft(line, " ")
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}
