package catalog

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageTitle returns the trimmed text of the document's first <title>.
func pageTitle(doc []byte) string {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return ""
	}
	n := find(root, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if n == nil {
		return ""
	}
	return strings.TrimSpace(text(n))
}

// classText returns the text of the first element carrying every class in classes.
func classText(doc []byte, classes ...string) (string, bool) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", false
	}
	n := find(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClasses(n, classes)
	})
	if n == nil {
		return "", false
	}
	return strings.TrimSpace(text(n)), true
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClasses(n *html.Node, want []string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		have := strings.Fields(a.Val)
		for _, w := range want {
			if !contains(have, w) {
				return false
			}
		}
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
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
	walk(n)
	return sb.String()
}
