package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
)

var tagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9-]*(?:\s[^<>]*)?/?>`)

// LooksLikeMarkup reports whether s contains at least one HTML tag
func LooksLikeMarkup(s string) bool {
	return strings.Contains(s, "<") && tagPattern.MatchString(s)
}

// PlainText converts an HTML message body to text, one line per block
// element. Text without markup is returned unchanged.
func PlainText(s string) string {
	if !LooksLikeMarkup(s) {
		return s
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return tagPattern.ReplaceAllString(s, " ")
	}
	var b strings.Builder
	writeText(&b, root)
	return tidyLines(b.String())
}

// MarkedBlocks returns the text of every element the markup identifies as
// end-user authored, in document order. Nested marked elements are reported
// once, as part of their outermost marked ancestor.
func MarkedBlocks(s string, m patterns.Markup) []string {
	if !LooksLikeMarkup(s) {
		return nil
	}
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil
	}

	var blocks []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isMarked(n, m) {
			var b strings.Builder
			writeText(&b, n)
			if text := tidyLines(b.String()); text != "" {
				blocks = append(blocks, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return blocks
}

func isMarked(n *html.Node, m patterns.Markup) bool {
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		val := strings.ToLower(strings.TrimSpace(attr.Val))
		if want, ok := m.Attributes[key]; ok && val == want {
			return true
		}
		if key != "class" {
			continue
		}
		for _, class := range strings.Fields(val) {
			for _, want := range m.Classes {
				if class == want {
					return true
				}
			}
		}
	}
	return false
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head:
			return
		case atom.Br:
			b.WriteByte('\n')
			return
		}
	}
	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.Blockquote, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Pre:
		return true
	}
	return false
}

// tidyLines collapses whitespace inside each line and drops empty lines.
func tidyLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
