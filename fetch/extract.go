package fetch

import (
	"bytes"
	stdhtml "html"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// TextExtractor turns a downloaded page into readable plain text.
type TextExtractor interface {
	ExtractText(raw []byte) (string, error)
}

// boilerplate is page chrome that never carries the content we want.
const boilerplate = "script, style, noscript, nav, header, footer, iframe, svg, template"

// blocks start on a new line.
var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"section": true, "article": true, "aside": true, "main": true, "blockquote": true,
	"pre": true, "table": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "title": true,
}

// DOMExtractor parses the page and keeps the text of the remaining nodes,
// one block per line.
type DOMExtractor struct{}

// ExtractText implements TextExtractor.
func (DOMExtractor) ExtractText(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", errors.Wrap(err, "parse html")
	}
	doc.Find(boilerplate).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}
	return normalizeLines(b.String()), nil
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.Map(flattenSpace, n.Data))
		return
	case html.CommentNode:
		return
	}
	block := n.Type == html.ElementNode && blocks[n.Data]
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

func flattenSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}

// RegexExtractor strips markup with regular expressions. It is faster than
// DOMExtractor and tolerates fragments, at the cost of occasionally keeping
// text from malformed markup.
type RegexExtractor struct{}

var (
	reChrome = regexp.MustCompile(`(?is)<(script|style|noscript|nav|header|footer|iframe|svg|template)\b[^>]*>.*?</(script|style|noscript|nav|header|footer|iframe|svg|template)>`)
	reBreak  = regexp.MustCompile(`(?i)</?(p|div|br|li|tr|h[1-6]|section|article|table|ul|ol|blockquote|pre)\b[^>]*>`)
	reTags   = regexp.MustCompile(`<[^>]+>`)
	reSpace  = regexp.MustCompile(`\s+`)
)

// ExtractText implements TextExtractor.
func (RegexExtractor) ExtractText(raw []byte) (string, error) {
	s := reChrome.ReplaceAllString(string(raw), "")
	s = reSpace.ReplaceAllString(s, " ")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reTags.ReplaceAllString(s, " ")
	return normalizeLines(stdhtml.UnescapeString(s)), nil
}

// normalizeLines collapses runs of whitespace within each line and drops
// empty lines.
func normalizeLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
