package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// TextLoader handles plain text files. Form feeds separate pages, the way
// pdftotext writes them.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return &doctree.Document{
		Name:  docName(filename),
		Pages: pagesFromTexts(splitFormFeeds(string(data))),
	}, nil
}

// splitFormFeeds splits on '\f'. A trailing form feed does not start an
// extra page.
func splitFormFeeds(s string) []string {
	parts := strings.Split(s, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
