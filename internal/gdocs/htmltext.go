package gdocs

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlToMarkdown renders the HTML export of a Google Doc as Markdown-style
// text. Headings, emphasis, links, lists and tables are kept; everything
// else is reduced to its text.
func htmlToMarkdown(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	w := &mdWriter{classes: styleClasses(doc)}
	w.walk(doc)
	return tidy(w.sb.String()), nil
}

type mdList struct {
	ordered bool
	n       int
}

type mdWriter struct {
	sb       strings.Builder
	lists    []mdList
	classes  map[string]string
	isInline bool
}

func (w *mdWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
	case html.ElementNode:
		w.element(n)
	default:
		w.children(n)
	}
}

func (w *mdWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *mdWriter) element(n *html.Node) {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title:
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.block()
		w.sb.WriteString(strings.Repeat("#", int(n.Data[1]-'0')) + " ")
		w.children(n)
		w.block()
	case atom.P, atom.Div, atom.Blockquote, atom.Pre:
		w.block()
		w.children(n)
		w.block()
	case atom.Br:
		w.sb.WriteString("\n")
	case atom.Hr:
		w.block()
		w.sb.WriteString("---")
		w.block()
	case atom.B, atom.Strong:
		w.emphasize(n, "**")
	case atom.I, atom.Em:
		w.emphasize(n, "_")
	case atom.Span:
		style := attr(n, "style")
		for _, class := range strings.Fields(attr(n, "class")) {
			style += ";" + w.classes[class]
		}
		mark := emphasisMark(style)
		if mark == "" {
			w.children(n)
			return
		}
		w.emphasize(n, mark)
	case atom.A:
		w.link(n)
	case atom.Ul, atom.Ol:
		w.block()
		w.lists = append(w.lists, mdList{ordered: n.DataAtom == atom.Ol})
		w.children(n)
		w.lists = w.lists[:len(w.lists)-1]
		w.block()
	case atom.Li:
		w.item(n)
	case atom.Table:
		w.block()
		w.children(n)
		w.block()
	case atom.Tr:
		w.row(n)
	default:
		w.children(n)
	}
}

// text writes collapsed whitespace, never starting a line with a space.
func (w *mdWriter) text(s string) {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" && !w.atLineStart() {
			w.space()
		}
		return
	}
	if isSpace(s[0]) && !w.atLineStart() {
		w.space()
	}
	w.sb.WriteString(strings.Join(fields, " "))
	if isSpace(s[len(s)-1]) {
		w.sb.WriteByte(' ')
	}
}

func (w *mdWriter) emphasize(n *html.Node, mark string) {
	inner := w.inline(n)
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" {
		w.text(inner)
		return
	}
	if inner[0] == ' ' && !w.atLineStart() {
		w.space()
	}
	w.sb.WriteString(mark + trimmed + reverse(mark))
	if inner[len(inner)-1] == ' ' {
		w.sb.WriteByte(' ')
	}
}

func (w *mdWriter) link(n *html.Node) {
	inner := strings.TrimSpace(w.inline(n))
	href := unwrapRedirect(attr(n, "href"))
	switch {
	case inner == "":
	case href == "" || strings.HasPrefix(href, "#"):
		w.text(inner)
	default:
		w.sb.WriteString("[" + inner + "](" + href + ")")
	}
}

func (w *mdWriter) item(n *html.Node) {
	w.line()
	depth := len(w.lists)
	marker := "- "
	if depth > 0 {
		l := &w.lists[depth-1]
		if l.ordered {
			l.n++
			marker = fmt.Sprintf("%d. ", l.n)
		}
		w.sb.WriteString(strings.Repeat("  ", depth-1))
	}
	w.sb.WriteString(marker)
	w.children(n)
	w.line()
}

func (w *mdWriter) row(n *html.Node) {
	var cells []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, strings.Join(strings.Fields(w.inline(c)), " "))
	}
	if len(cells) == 0 {
		return
	}
	w.line()
	w.sb.WriteString("| " + strings.Join(cells, " | ") + " |")
	w.line()
}

// inline renders n's children with a fresh writer.
func (w *mdWriter) inline(n *html.Node) string {
	sub := &mdWriter{lists: w.lists, classes: w.classes, isInline: true}
	sub.children(n)
	return sub.sb.String()
}

// atLineStart reports whether a leading space would be dropped. Inline
// writers keep it so the caller can place it outside emphasis marks.
func (w *mdWriter) atLineStart() bool {
	s := w.sb.String()
	if s == "" {
		return !w.isInline
	}
	return s[len(s)-1] == '\n'
}

func (w *mdWriter) space() {
	s := w.sb.String()
	if s == "" || s[len(s)-1] != ' ' {
		w.sb.WriteByte(' ')
	}
}

func (w *mdWriter) line() {
	if !w.atLineStart() {
		w.sb.WriteByte('\n')
	}
}

func (w *mdWriter) block() {
	s := w.sb.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		w.sb.WriteByte('\n')
	default:
		w.sb.WriteString("\n\n")
	}
}

// emphasisMark returns the Markdown marks for the bold and italic
// declarations in a CSS declaration list.
func emphasisMark(style string) string {
	style = strings.ReplaceAll(style, " ", "")
	mark := ""
	if strings.Contains(style, "font-weight:700") || strings.Contains(style, "font-weight:bold") {
		mark += "**"
	}
	if strings.Contains(style, "font-style:italic") {
		mark += "_"
	}
	return mark
}

// styleClasses maps class names to their declarations, read from the
// document's <style> elements. The export styles text runs through plain
// class selectors such as .c3{font-weight:700}; other selectors are ignored.
func styleClasses(doc *html.Node) map[string]string {
	classes := make(map[string]string)
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Style {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					parseClassRules(c.Data, classes)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return classes
}

func parseClassRules(css string, classes map[string]string) {
	for _, rule := range strings.Split(css, "}") {
		selectors, decls, ok := strings.Cut(rule, "{")
		if !ok {
			continue
		}
		for _, sel := range strings.Split(selectors, ",") {
			sel = strings.TrimSpace(sel)
			name, ok := strings.CutPrefix(sel, ".")
			if !ok || name == "" || strings.ContainsAny(name, " .>:#[+~*") {
				continue
			}
			if prev := classes[name]; prev != "" {
				classes[name] = prev + ";" + decls
			} else {
				classes[name] = decls
			}
		}
	}
}

// tidy trims trailing spaces and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// unwrapRedirect strips Google's https://www.google.com/url?q=... wrapper
// from exported links.
func unwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Host != "www.google.com" || u.Path != "/url" {
		return href
	}
	if q := u.Query().Get("q"); q != "" {
		return q
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
