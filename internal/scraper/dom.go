package scraper

import (
	"strings"

	"golang.org/x/net/html"
)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClasses reports whether n carries every class in classes.
func hasClasses(n *html.Node, classes ...string) bool {
	have := strings.Fields(attr(n, "class"))
	for _, want := range classes {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// findAll returns the descendants of root with the given tag and classes, in
// document order. root itself is not considered.
func findAll(root *html.Node, tag string, classes ...string) []*html.Node {
	var out []*html.Node
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.Data == tag && hasClasses(child, classes...) {
				out = append(out, child)
			}
			traverse(child)
		}
	}
	traverse(root)
	return out
}

func find(root *html.Node, tag string, classes ...string) *html.Node {
	if all := findAll(root, tag, classes...); len(all) > 0 {
		return all[0]
	}
	return nil
}

// textOf returns the concatenated text content of n with runs of whitespace
// collapsed. Inline markup does not split words.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			traverse(child)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// absolute joins a site-relative href onto base.
func absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}

// artistLinks turns anchors into {name, url} entries.
func artistLinks(base string, anchors []*html.Node) []map[string]any {
	out := make([]map[string]any, 0, len(anchors))
	for _, a := range anchors {
		out = append(out, map[string]any{
			"name": textOf(a),
			"url":  absolute(base, attr(a, "href")),
		})
	}
	return out
}
