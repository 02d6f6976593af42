package annotate

import (
	"iter"
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/tokenize"
)

// Result summarizes one RenderTree call.
type Result struct {
	Spans     int
	Keys      []string
	FlexFixed int
}

// TextNodes yields, in document order, the non-blank text nodes under root
// that may be annotated. Subtrees rooted at excluded elements (links, scripts,
// form controls, existing spans) are skipped, as is everything when root itself
// sits inside one.
func TextNodes(root *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		if root == nil {
			return
		}
		for p := root.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && excludedSel.Match(p) {
				return
			}
		}
		stack := []*html.Node{root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch n.Type {
			case html.TextNode:
				if strings.TrimSpace(n.Data) != "" && !yield(n) {
					return
				}
				continue
			case html.ElementNode:
				if excludedSel.Match(n) {
					continue
				}
			case html.CommentNode, html.DoctypeNode:
				continue
			}
			for c := n.LastChild; c != nil; c = c.PrevSibling {
				stack = append(stack, c)
			}
		}
	}
}

// Text returns the annotatable text under root, one text node per line.
func Text(root *html.Node) string {
	var b strings.Builder
	for n := range TextNodes(root) {
		b.WriteString(n.Data)
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderTree annotates the tree under root in place. Each eligible text node
// that contains a dictionary word is replaced by plain text nodes and spans;
// all other nodes, whitespace-only text included, are left alone.
func RenderTree(root *html.Node, dict Dictionary, opts ...Option) Result {
	var res Result
	m := newMatcher(dict)
	if m.empty() {
		return res
	}
	o := buildOptions(opts)

	// Collect first: the loop below rewrites the tree.
	nodes := slices.Collect(TextNodes(root))
	seen := make(map[string]bool)
	for _, n := range nodes {
		parent := n.Parent
		if parent == nil {
			continue
		}
		marked, t := m.mark(n.Data, nil)
		if t.words == 0 {
			continue
		}
		t.expand(marked,
			func(text string) {
				parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text}, n)
			},
			func(s slot) {
				parent.InsertBefore(spanNode(s.surface, s.key, s.rec), n)
				res.Spans++
				if !seen[s.key] {
					seen[s.key] = true
					res.Keys = append(res.Keys, s.key)
				}
			})
		parent.RemoveChild(n)
		res.FlexFixed += fixFlexAncestors(parent, o.display)
	}
	sort.Strings(res.Keys)
	return res
}

// Spans yields the annotation spans under root in document order. Spans
// without the data-enx marker were not written here and are skipped.
func Spans(root *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		if root == nil {
			return
		}
		for _, n := range spanSel.MatchAll(root) {
			if !yield(n) {
				return
			}
		}
	}
}

// SpanWord returns the folded key a span was generated for.
func SpanWord(n *html.Node) string {
	w, _ := attrValue(n.Attr, attrWord)
	return tokenize.Fold(w)
}

// Restyle recolors every span of rec's word, e.g. after it was marked known.
func Restyle(root *html.Node, rec *familiarity.WordRecord) int {
	if rec == nil {
		return 0
	}
	key := tokenize.Fold(rec.Key)
	style := StyleFor(rec)
	changed := 0
	for n := range Spans(root) {
		if SpanWord(n) != key {
			continue
		}
		if i := attrIndex(n.Attr, "style"); i >= 0 {
			n.Attr[i].Val = style
		} else {
			n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: style})
		}
		changed++
	}
	return changed
}

// StripTree removes the generated spans under root, leaving their text behind, merges
// the text nodes that were split apart and undoes the inline-flex fix on root,
// its descendants and its ancestors. It returns the number of spans removed.
func StripTree(root *html.Node) int {
	if root == nil {
		return 0
	}
	spans := slices.Collect(Spans(root))
	touched := make(map[*html.Node]bool)
	for _, u := range spans {
		parent := u.Parent
		if parent == nil {
			continue
		}
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: textContent(u)}, u)
		parent.RemoveChild(u)
		touched[parent] = true
	}
	for p := range touched {
		mergeText(p)
	}
	for _, n := range flexFixedSel.MatchAll(root) {
		unfixFlex(n)
	}
	for p := root.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			unfixFlex(p)
		}
	}
	return len(spans)
}

func mergeText(parent *html.Node) {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		for next := c.NextSibling; next != nil && next.Type == html.TextNode; next = c.NextSibling {
			c.Data += next.Data
			parent.RemoveChild(next)
		}
	}
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
