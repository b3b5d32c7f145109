// internal/browser/dom/htmldoc/xpath.go
package htmldoc

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// NodePath builds an XPath that selects exactly the given element. The nearest
// ancestor with an id anchors the path so it survives unrelated edits above it.
func NodePath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var steps []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode || n.Data == "" {
			continue
		}
		tag := strings.ToLower(n.Data)

		if id := htmlquery.SelectAttr(n, "id"); id != "" && !strings.Contains(id, "'") {
			steps = append(steps, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}
		steps = append(steps, fmt.Sprintf("%s[%d]", tag, siblingPosition(n, tag)))
	}

	if len(steps) == 0 {
		return "/"
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}

	path := strings.Join(steps, "/")
	if !strings.HasPrefix(path, "//") {
		path = "/" + path
	}
	return path
}

// siblingPosition is the 1-based XPath position among same-tag siblings.
func siblingPosition(n *html.Node, tag string) int {
	pos := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			pos++
		}
	}
	return pos
}
