package chunker

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// ContentHash returns the hex SHA-256 of NFC-normalized, whitespace-trimmed
// content. Two chunks that render identically hash identically.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(norm.NFC.String(strings.TrimSpace(content))))
	return fmt.Sprintf("%x", h[:])
}

// ChunkID derives a stable 16-hex-digit id from where a chunk was produced
// and what it holds.
func ChunkID(source string, page, ordinal int, content string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(ordinal)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// ContextLine renders a breadcrumb path as "[Section: A > B]". It is empty
// for a chunk outside any header.
func ContextLine(breadcrumbs []string) string {
	if len(breadcrumbs) == 0 {
		return ""
	}
	return "[Section: " + strings.Join(breadcrumbs, " > ") + "]"
}

// Finalize recomputes everything derived from ContentOnly and the
// breadcrumb path: the context-prefixed text, counts, token estimate,
// quality metrics and content hash. Metadata.Quality.AtomicBlocks is kept.
func Finalize(c *doctree.Chunk) {
	if c.Metadata.Breadcrumbs == nil {
		c.Metadata.Breadcrumbs = []string{}
	}
	if line := ContextLine(c.Metadata.Breadcrumbs); line != "" {
		c.Text = line + "\n\n" + c.ContentOnly
	} else {
		c.Text = c.ContentOnly
	}

	atomic := c.Metadata.Quality.AtomicBlocks
	c.Metadata.CharCount = utf8.RuneCountInString(c.ContentOnly)
	c.Metadata.WordCount = len(strings.Fields(c.ContentOnly))
	c.Metadata.EstimatedTokens = EstimateTokens(c.ContentOnly)
	c.Metadata.Quality = Quality(c.ContentOnly)
	c.Metadata.Quality.AtomicBlocks = atomic
	c.Hash = ContentHash(c.ContentOnly)
}

// chunkType names what a buffer holds: "text" when only text and headers,
// the atomic kind when only one atomic kind, "mixed" otherwise.
func chunkType(sections []doctree.Section) string {
	var atomic doctree.SectionKind
	atomicKinds, text := 0, false
	for _, s := range sections {
		if !s.Kind.Atomic() {
			text = true
			continue
		}
		if atomicKinds == 0 || s.Kind != atomic {
			atomicKinds++
			atomic = s.Kind
		}
	}
	switch {
	case atomicKinds == 0:
		return doctree.SectionText.String()
	case atomicKinds == 1 && !text:
		return atomic.String()
	default:
		return "mixed"
	}
}

// MergeTypes returns the type of a chunk made by joining chunks of types a
// and b.
func MergeTypes(a, b string) string {
	if a == b {
		return a
	}
	return "mixed"
}
