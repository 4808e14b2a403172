package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// Metadata is the page index an extractor writes next to its page files.
type Metadata struct {
	Document  string    `json:"document"`
	PageCount int       `json:"page_count"`
	Pages     []PageRef `json:"pages"`
}

// PageRef points at the markdown file of one page. File may be empty, in
// which case page_N.md and page_00N.md are tried.
type PageRef struct {
	Page int    `json:"page"`
	File string `json:"file"`
}

var pageFileRe = regexp.MustCompile(`^page_0*(\d+)\.md$`)

func parseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetadataFile, err)
	}
	if len(m.Pages) == 0 && m.PageCount <= 0 {
		return nil, fmt.Errorf("%w: %s lists no pages", ErrUnsupported, MetadataFile)
	}
	return &m, nil
}

// resolve reads every referenced page through read. A page whose file
// cannot be read is kept as Missing and noted in the document warnings.
func (m *Metadata) resolve(name string, read func(file string) ([]byte, error)) *doctree.Document {
	doc := &doctree.Document{Name: m.Document, Warnings: []string{}}
	if doc.Name == "" {
		doc.Name = name
	}

	refs := slices.Clone(m.Pages)
	if len(refs) == 0 {
		for n := 1; n <= m.PageCount; n++ {
			refs = append(refs, PageRef{Page: n})
		}
	} else if m.PageCount > 0 && m.PageCount != len(refs) {
		doc.Warnings = append(doc.Warnings,
			fmt.Sprintf("page_count %d does not match %d page entries", m.PageCount, len(refs)))
	}
	slices.SortStableFunc(refs, func(a, b PageRef) int { return a.Page - b.Page })

	seen := make(map[int]bool, len(refs))
	for _, ref := range refs {
		if ref.Page <= 0 || seen[ref.Page] {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("page %d: invalid or duplicate page entry ignored", ref.Page))
			continue
		}
		seen[ref.Page] = true

		data, file, err := readPage(ref, read)
		if err != nil {
			doc.Pages = append(doc.Pages, doctree.Page{Number: ref.Page, Missing: true})
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("page %d: %s: %v", ref.Page, file, err))
			continue
		}
		doc.Pages = append(doc.Pages, doctree.Page{Number: ref.Page, Text: string(data)})
	}
	return doc
}

func readPage(ref PageRef, read func(string) ([]byte, error)) ([]byte, string, error) {
	candidates := []string{ref.File}
	if ref.File == "" {
		candidates = []string{fmt.Sprintf("page_%d.md", ref.Page), fmt.Sprintf("page_%03d.md", ref.Page)}
	}
	var err error
	for _, file := range candidates {
		var data []byte
		data, err = read(file)
		if err == nil {
			return data, file, nil
		}
	}
	return nil, candidates[0], fmt.Errorf("page file missing: %w", err)
}

// loadPageDir reads a directory of page files. Without metadata.json the
// page_N.md files present are used in page order.
func loadPageDir(dir string) (*doctree.Document, error) {
	read := func(file string) ([]byte, error) {
		if filepath.IsAbs(file) {
			return os.ReadFile(file)
		}
		return os.ReadFile(filepath.Join(dir, file))
	}

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	switch {
	case err == nil:
		m, err := parseMetadata(data)
		if err != nil {
			return nil, err
		}
		return m.resolve(filepath.Base(dir), read), nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", MetadataFile, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var m Metadata
	for _, e := range entries {
		match := pageFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || match == nil {
			continue
		}
		n, _ := strconv.Atoi(match[1])
		m.Pages = append(m.Pages, PageRef{Page: n, File: e.Name()})
	}
	if len(m.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s has no %s and no page_N.md files", ErrUnsupported, dir, MetadataFile)
	}
	return m.resolve(filepath.Base(dir), read), nil
}
