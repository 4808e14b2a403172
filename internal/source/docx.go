package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// DOCXLoader renders a .docx file as markdown. Heading styles become ATX
// headers, tables become pipe tables and explicit page breaks start a new
// page.
type DOCXLoader struct{}

func (l *DOCXLoader) Load(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var pages []string
	var current []string
	newPage := func() {
		pages = append(pages, strings.Join(current, "\n\n"))
		current = nil
	}

	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text, breaks := docxParagraphText(it)
			if text != "" {
				if level := docxHeadingLevel(it); level > 0 {
					text = strings.Repeat("#", level) + " " + text
				}
				current = append(current, text)
			}
			for range breaks {
				newPage()
			}
		case *docx.Table:
			if t := docxTable(it); t != "" {
				current = append(current, t)
			}
		}
	}
	if len(current) > 0 || len(pages) == 0 {
		newPage()
	}

	return &doctree.Document{Name: docName(filename), Pages: pagesFromTexts(pages)}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	switch style {
	case "title":
		return 1
	case "heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
		return int(style[len(style)-1] - '0')
	}
	return 0
}

// docxParagraphText returns the paragraph's text and the number of page
// breaks it contains.
func docxParagraphText(para *docx.Paragraph) (string, int) {
	var buf strings.Builder
	breaks := 0
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch c := rc.(type) {
			case *docx.Text:
				buf.WriteString(c.Text)
			case *docx.Tab:
				buf.WriteByte('\t')
			case *docx.BarterRabbet:
				if c.Type == "page" {
					breaks++
				}
			}
		}
	}
	return strings.TrimSpace(buf.String()), breaks
}

func docxTable(t *docx.Table) string {
	var rows [][]string
	width := 0
	for _, row := range t.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if text, _ := docxParagraphText(p); text != "" {
					parts = append(parts, text)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		width = max(width, len(cells))
		rows = append(rows, cells)
	}
	if len(rows) == 0 || width == 0 {
		return ""
	}
	return pipeTable(rows[0], rows[1:], width)
}

// pipeTable renders a markdown pipe table. Rows are padded to width.
func pipeTable(header []string, rows [][]string, width int) string {
	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := range width {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}
	writeRow(header)
	sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, r := range rows {
		writeRow(r)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
