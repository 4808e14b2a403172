package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/pagechunk/internal/doctree"
)

// HTMLLoader renders HTML as markdown. Tables are kept as HTML so the
// detector protects them whole. An element styled with
// "page-break-before: always" starts a new page.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	name := docName(filename)
	if title := findTitle(root); title != "" {
		name = title
	}

	w := &htmlWriter{}
	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}
	w.walk(body)
	w.newPage()

	return &doctree.Document{Name: name, Pages: pagesFromTexts(w.pages)}, nil
}

type htmlWriter struct {
	pages  []string
	blocks []string
}

func (w *htmlWriter) add(block string) {
	if block = strings.TrimSpace(block); block != "" {
		w.blocks = append(w.blocks, block)
	}
}

func (w *htmlWriter) newPage() {
	if len(w.blocks) == 0 && len(w.pages) > 0 {
		return
	}
	w.pages = append(w.pages, strings.Join(w.blocks, "\n\n"))
	w.blocks = nil
}

func (w *htmlWriter) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if breaksPage(n) && len(w.blocks) > 0 {
			w.newPage()
		}
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header, atom.Noscript:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level := int(n.Data[1] - '0')
			w.add(strings.Repeat("#", level) + " " + collapse(textContent(n)))
			return
		case atom.P, atom.Blockquote, atom.Figcaption, atom.Dt, atom.Dd:
			prefix := ""
			if n.DataAtom == atom.Blockquote {
				prefix = "> "
			}
			w.add(prefix + inlineMarkdown(n))
			return
		case atom.Ul, atom.Ol:
			w.add(listMarkdown(n))
			return
		case atom.Pre:
			w.add("```\n" + strings.Trim(textContent(n), "\n") + "\n```")
			return
		case atom.Table:
			var buf bytes.Buffer
			if err := html.Render(&buf, n); err == nil {
				w.add(buf.String())
			}
			return
		case atom.Img:
			w.add(imageMarkdown(n))
			return
		}
		if n.DataAtom != atom.Body && !hasBlockChild(n) {
			w.add(inlineMarkdown(n))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			w.add(collapse(c.Data))
			continue
		}
		w.walk(c)
	}
}

var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Figcaption: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Ul: true,
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockAtoms[c.DataAtom] || hasBlockChild(c)) {
			return true
		}
	}
	return false
}

func breaksPage(n *html.Node) bool {
	style := strings.ToLower(strings.ReplaceAll(attr(n, "style"), " ", ""))
	return strings.Contains(style, "page-break-before:always") || strings.Contains(style, "break-before:page")
}

// inlineMarkdown renders text content, keeping images and links readable.
func inlineMarkdown(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
			return
		case n.DataAtom == atom.Img:
			sb.WriteString(imageMarkdown(n))
			return
		case n.DataAtom == atom.Br:
			sb.WriteString("\n")
			return
		case n.DataAtom == atom.A && attr(n, "href") != "":
			fmt.Fprintf(&sb, "[%s](%s)", collapse(textContent(n)), attr(n, "href"))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	lines := strings.Split(sb.String(), "\n")
	for i, l := range lines {
		lines[i] = collapse(l)
	}
	return strings.Join(lines, "\n")
}

func listMarkdown(n *html.Node) string {
	var lines []string
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom != atom.Li {
			continue
		}
		i++
		marker := "-"
		if n.DataAtom == atom.Ol {
			marker = fmt.Sprintf("%d.", i)
		}
		lines = append(lines, marker+" "+collapse(inlineMarkdown(c)))
	}
	return strings.Join(lines, "\n")
}

func imageMarkdown(n *html.Node) string {
	src := attr(n, "src")
	if src == "" {
		return ""
	}
	return fmt.Sprintf("![%s](%s)", attr(n, "alt"), src)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if t := findElement(n, atom.Title); t != nil {
		return collapse(textContent(t))
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
