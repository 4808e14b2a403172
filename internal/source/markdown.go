package source

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// pageHeaderRe matches the title of a "# Page N" marker header.
var pageHeaderRe = regexp.MustCompile(`^Page\s+(\d+)\s*$`)

// MarkdownLoader splits a combined markdown file on "# Page N" headers.
// The marker header stays at the top of its page. A file without markers
// is a single page.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	doc := &doctree.Document{Name: docName(filename)}
	markers := pageMarkers(src)
	if len(markers) == 0 {
		doc.Pages = []doctree.Page{{Number: 1, Text: string(src)}}
		return doc, nil
	}

	prev := 0
	for i, m := range markers {
		end := len(src)
		if i+1 < len(markers) {
			end = markers[i+1].offset
		}
		start := m.offset
		if i == 0 {
			// Text before the first marker belongs to the first page.
			start = 0
		}

		n := m.number
		if n <= prev {
			doc.Warnings = append(doc.Warnings,
				fmt.Sprintf("page marker %d out of order after page %d, renumbered %d", n, prev, prev+1))
			n = prev + 1
		}
		prev = n
		doc.Pages = append(doc.Pages, doctree.Page{Number: n, Text: string(src[start:end])})
	}
	return doc, nil
}

type pageMarker struct {
	offset int // start of the header line
	number int
}

// pageMarkers finds top-level level-1 headers titled "Page N". Headers
// inside code blocks are not markers.
func pageMarkers(src []byte) []pageMarker {
	if !bytes.Contains(src, []byte("Page")) {
		return nil
	}
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []pageMarker
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 1 || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		title := strings.TrimSpace(string(seg.Value(src)))
		match := pageHeaderRe.FindStringSubmatch(title)
		if match == nil {
			continue
		}
		num, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		out = append(out, pageMarker{
			offset: bytes.LastIndexByte(src[:seg.Start], '\n') + 1,
			number: num,
		})
	}
	return out
}
