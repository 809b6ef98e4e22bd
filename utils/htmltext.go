package utils

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText returns the text content of an HTML fragment with all tags
// removed. A fragment that cannot be parsed is returned as-is so the
// caller's emptiness checks stay conservative.
func ExtractText(fragment string) string {
	if fragment == "" {
		return ""
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: 0,
	})
	if err != nil {
		return fragment
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return sb.String()
}

// HasVisibleContent reports whether an HTML body contains either text
// content or an inline image.
func HasVisibleContent(body string) bool {
	if strings.Contains(body, "<img") {
		return true
	}
	return strings.TrimSpace(ExtractText(body)) != ""
}
