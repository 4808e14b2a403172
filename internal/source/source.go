// Package source loads documents from disk or from uploads and splits them
// into the ordered pages the chunking pipeline consumes.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// ErrUnsupported is returned for inputs no loader handles.
var ErrUnsupported = errors.New("unsupported source")

// MetadataFile is the name of the page index inside a page directory.
const MetadataFile = "metadata.json"

// Options tunes the loaders.
type Options struct {
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
	CSVRowsPerPage       int  `yaml:"csv_rows_per_page"`
}

// DefaultOptions returns the built-in loader settings.
func DefaultOptions() Options {
	return Options{PDFFallbackPdftotext: true, CSVRowsPerPage: 50}
}

// Loader converts raw document bytes into pages.
type Loader interface {
	Load(r io.Reader, name string) (*doctree.Document, error)
}

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
}

// SupportedExtensions lists file extensions that have a loader.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the loader for a filename.
func ForFile(filename string, opts Options) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".csv":
		return &CSVLoader{RowsPerPage: opts.CSVRowsPerPage}, nil
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".pdf":
		return &PDFLoader{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	default:
		return nil, fmt.Errorf("%w: file extension %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ForPath loads a document from a single file, a page directory holding
// metadata.json, or the metadata.json file itself.
func ForPath(path string, opts Options) (*doctree.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return loadPageDir(path)
	}
	if filepath.Base(path) == MetadataFile {
		return loadPageDir(filepath.Dir(path))
	}

	l, err := ForFile(path, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.Load(f, filepath.Base(path))
}

// FromUpload builds a document from uploaded files. Either one document
// file is given, or a metadata.json together with the page files it names.
// name overrides the document name when non-empty.
func FromUpload(name string, files []File, opts Options) (*doctree.Document, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrUnsupported)
	}

	var doc *doctree.Document
	byName := make(map[string][]byte, len(files))
	var meta []byte
	for _, f := range files {
		base := filepath.Base(f.Name)
		if base == MetadataFile {
			meta = f.Data
			continue
		}
		byName[base] = f.Data
	}

	switch {
	case meta != nil:
		m, err := parseMetadata(meta)
		if err != nil {
			return nil, err
		}
		doc = m.resolve(name, func(file string) ([]byte, error) {
			if data, ok := byName[filepath.Base(file)]; ok {
				return data, nil
			}
			return nil, os.ErrNotExist
		})
	case len(files) == 1:
		l, err := ForFile(files[0].Name, opts)
		if err != nil {
			return nil, err
		}
		doc, err = l.Load(bytes.NewReader(files[0].Data), filepath.Base(files[0].Name))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d files without %s", ErrUnsupported, len(files), MetadataFile)
	}

	if name != "" {
		doc.Name = name
	}
	return doc, nil
}

// docName strips the extension from a file name.
func docName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// pagesFromTexts numbers texts from 1.
func pagesFromTexts(texts []string) []doctree.Page {
	pages := make([]doctree.Page, 0, len(texts))
	for i, t := range texts {
		pages = append(pages, doctree.Page{Number: i + 1, Text: t})
	}
	return pages
}
