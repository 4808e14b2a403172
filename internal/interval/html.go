package interval

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// htmlCandidates tokenizes text and returns the byte ranges of <table>
// elements (outermost only, nesting respected) and <img> tags. Markdown is
// fed to the tokenizer as-is: everything that is not markup comes back as
// text tokens, so offsets stay aligned with the page.
func htmlCandidates(text string) []doctree.ProtectedBlock {
	if !strings.Contains(text, "<") {
		return nil
	}

	var cands []doctree.ProtectedBlock
	z := html.NewTokenizer(strings.NewReader(text))
	offset := 0
	depth := 0
	tableStart := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "table":
				if tt == html.SelfClosingTagToken {
					continue
				}
				if depth == 0 {
					tableStart = start
				}
				depth++
			case "img":
				if depth == 0 {
					cands = append(cands, doctree.ProtectedBlock{Start: start, End: offset, Kind: doctree.BlockImage})
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "table" && depth > 0 {
				depth--
				if depth == 0 {
					cands = append(cands, doctree.ProtectedBlock{Start: tableStart, End: offset, Kind: doctree.BlockTable})
				}
			}
		}
	}

	// An unclosed table runs to the end of the page.
	if depth > 0 {
		cands = append(cands, doctree.ProtectedBlock{Start: tableStart, End: len(text), Kind: doctree.BlockTable})
	}
	return cands
}
