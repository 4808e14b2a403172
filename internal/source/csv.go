package source

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// CSVLoader renders CSV rows as markdown pipe tables. The header row is
// repeated on every page.
type CSVLoader struct {
	RowsPerPage int // Defaults to 50
}

func (l *CSVLoader) Load(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &doctree.Document{Name: docName(filename)}
	if len(records) == 0 {
		doc.Pages = []doctree.Page{{Number: 1}}
		return doc, nil
	}

	perPage := l.RowsPerPage
	if perPage <= 0 {
		perPage = 50
	}
	headers := records[0]
	dataRows := records[1:]
	width := len(headers)
	for _, row := range dataRows {
		width = max(width, len(row))
	}

	var texts []string
	for i := 0; i < len(dataRows) || i == 0; i += perPage {
		end := min(i+perPage, len(dataRows))
		texts = append(texts, pipeTable(headers, dataRows[i:end], width))
	}
	doc.Pages = pagesFromTexts(texts)
	return doc, nil
}
