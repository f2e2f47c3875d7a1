// Package markup converts the results table of a Confluence storage-format
// page to structured rows and back.
//
// The page body is parsed with the golang.org/x/net/html tokenizer into a
// light element tree that remembers the byte offsets of every element. All
// queries (which table holds the results, which divisions are opaque
// blocks) are predicates over that tree, while every byte that is not
// deliberately rewritten is copied from the original body. This keeps the
// markup around the table, and any row the merge does not touch,
// byte-for-byte identical.
package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// voidElements never have content or an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// node is an element of the page body located by byte offsets.
//
//	<td class="x">content</td>
//	^start        ^openEnd ^closeStart
//	                             ^end
type node struct {
	tag        string
	attrs      []html.Attribute
	start      int
	openEnd    int
	closeStart int
	end        int
	parent     *node
	children   []*node
}

func (n *node) raw(body string) string   { return body[n.start:n.end] }
func (n *node) open(body string) string  { return body[n.start:n.openEnd] }
func (n *node) inner(body string) string { return body[n.openEnd:n.closeStart] }

func (n *node) attr(key string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func (n *node) walk(fn func(*node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.walk(fn)
	}
}

// within reports whether n has an ancestor with the given tag.
func (n *node) within(tag string) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p.tag == tag {
			return true
		}
	}
	return false
}

// contains reports whether any descendant of n matches fn.
func (n *node) contains(fn func(*node) bool) bool {
	found := false
	for _, c := range n.children {
		c.walk(func(d *node) bool {
			if found {
				return false
			}
			if fn(d) {
				found = true
				return false
			}
			return true
		})
	}
	return found
}

// has reports whether n or any of its descendants matches fn.
func (n *node) has(fn func(*node) bool) bool {
	return fn(n) || n.contains(fn)
}

// newTokenizer returns a tokenizer that keeps CDATA sections (used by
// Confluence plain-text macro bodies) as text.
func newTokenizer(s string) *html.Tokenizer {
	z := html.NewTokenizer(strings.NewReader(s))
	z.AllowCDATA(true)
	return z
}

// parseTree builds the element tree of body. The parser is forgiving: stray
// end tags are ignored, unclosed elements end where their parent ends and
// table cells and rows close implicitly like in HTML.
func parseTree(body string) *node {
	root := &node{tag: "#root", closeStart: len(body), end: len(body)}
	stack := []*node{root}
	z := newTokenizer(body)
	offset := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		pos := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			var attrs []html.Attribute
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs = append(attrs, html.Attribute{Key: string(k), Val: string(v)})
			}

			stack = closeImplied(stack, tag, pos)
			parent := stack[len(stack)-1]
			n := &node{tag: tag, attrs: attrs, start: pos, openEnd: offset, parent: parent}
			parent.children = append(parent.children, n)

			if tt == html.SelfClosingTagToken || voidElements[tag] {
				n.closeStart, n.end = offset, offset
				continue
			}
			stack = append(stack, n)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			i := len(stack) - 1
			for i > 0 && stack[i].tag != tag {
				i--
			}
			if i == 0 {
				continue
			}
			for j := len(stack) - 1; j > i; j-- {
				stack[j].closeStart, stack[j].end = pos, pos
			}
			stack[i].closeStart, stack[i].end = pos, offset
			stack = stack[:i]
		}
	}

	for j := len(stack) - 1; j > 0; j-- {
		stack[j].closeStart, stack[j].end = len(body), len(body)
	}
	return root
}

// closeImplied closes open cells and rows when a new cell or row starts
// without the previous one having been closed.
func closeImplied(stack []*node, tag string, pos int) []*node {
	var closes map[string]bool
	switch tag {
	case "td", "th":
		closes = map[string]bool{"td": true, "th": true}
	case "tr":
		closes = map[string]bool{"td": true, "th": true, "tr": true}
	default:
		return stack
	}
	for len(stack) > 1 && closes[stack[len(stack)-1].tag] {
		top := stack[len(stack)-1]
		top.closeStart, top.end = pos, pos
		stack = stack[:len(stack)-1]
	}
	return stack
}

// textOf returns the unescaped text content of a markup fragment.
func textOf(fragment string) string {
	var sb strings.Builder
	z := newTokenizer(fragment)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return sb.String()
		}
		if tt == html.TextToken {
			sb.Write(z.Text())
		}
	}
}
