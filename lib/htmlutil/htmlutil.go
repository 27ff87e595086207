package htmlutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// NodeText concatenates the text nodes below node in document order. Script
// and style contents are skipped, some cells carry inline scripts.
func NodeText(node *html.Node) string {
	var sb strings.Builder
	writeText(node, &sb)
	return sb.String()
}

func writeText(node *html.Node, sb *strings.Builder) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		sb.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.Data == "script" || node.Data == "style" {
			return
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(child, sb)
	}
}

// matches ideographic spaces and nbsp too, legacy pages pad cells with them
var whitespace = regexp.MustCompile(`[\s\x{00a0}\x{3000}]+`)

// CollapseWhitespace replaces every whitespace run with a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// CellTexts returns the collapsed text of every node in sel, in document order.
func CellTexts(sel *goquery.Selection) []string {
	texts := make([]string, 0, sel.Length())
	for _, n := range sel.Nodes {
		texts = append(texts, CollapseWhitespace(NodeText(n)))
	}
	return texts
}
