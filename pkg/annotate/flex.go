package annotate

import (
	"strings"

	"golang.org/x/net/html"
)

// DisplayFunc reports the effective CSS display value of an element. Without
// a layout engine the default only sees the inline style attribute; callers
// with more knowledge (class-based rules) can supply their own.
type DisplayFunc func(tag string, attrs []html.Attribute) string

const inlineOverride = "display: inline !important"

// inline-flex boxes drop whitespace-only text between their items, which
// visually fuses annotated words.
var inlineFlexValues = map[string]bool{
	"inline-flex":         true,
	"-webkit-inline-flex": true,
	"-ms-inline-flexbox":  true,
	"inline-box":          true,
	"-webkit-inline-box":  true,
	"-moz-inline-box":     true,
}

// InlineStyleDisplay returns the last display declaration of the element's
// style attribute, lower-cased and without !important.
func InlineStyleDisplay(_ string, attrs []html.Attribute) string {
	style, ok := attrValue(attrs, "style")
	if !ok {
		return ""
	}
	display := ""
	for _, decl := range strings.Split(style, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		val = strings.ToLower(strings.TrimSpace(val))
		val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
		display = val
	}
	return display
}

// IsInlineFlex reports whether a display value is one of the inline-flex or
// legacy inline-box variants.
func IsInlineFlex(display string) bool {
	return inlineFlexValues[strings.ToLower(strings.TrimSpace(display))]
}

// forceInline drops display declarations from style and appends the override.
func forceInline(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		prop, _, _ := strings.Cut(decl, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "display") {
			continue
		}
		kept = append(kept, decl)
	}
	kept = append(kept, inlineOverride)
	return strings.Join(kept, "; ")
}

// fixFlexAncestors forces every inline-flex ancestor of n (n included) to
// plain inline display and returns how many elements it changed.
func fixFlexAncestors(n *html.Node, display DisplayFunc) int {
	fixed := 0
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, done := attrValue(n.Attr, attrFlexFix); done {
			continue
		}
		if !IsInlineFlex(display(n.Data, n.Attr)) {
			continue
		}
		if i := attrIndex(n.Attr, "style"); i >= 0 {
			orig := n.Attr[i].Val
			n.Attr[i].Val = forceInline(orig)
			n.Attr = append(n.Attr, html.Attribute{Key: attrOldStyle, Val: orig})
		} else {
			n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: inlineOverride})
		}
		n.Attr = append(n.Attr, html.Attribute{Key: attrFlexFix, Val: "1"})
		fixed++
	}
	return fixed
}

// unfixFlex undoes fixFlexAncestors on one element.
func unfixFlex(n *html.Node) bool {
	if attrIndex(n.Attr, attrFlexFix) < 0 {
		return false
	}
	old, hadStyle := attrValue(n.Attr, attrOldStyle)
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		switch a.Key {
		case attrFlexFix, attrOldStyle:
			continue
		case "style":
			if !hadStyle {
				continue
			}
			a.Val = old
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
	return true
}

// flexTag re-renders a start tag with the display override, keeping the
// original bytes in an attribute so Strip can put them back untouched.
func flexTag(raw string, tok html.Token) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(tok.Data)
	styled := false
	for _, a := range tok.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + key
		}
		val := a.Val
		if a.Key == "style" && a.Namespace == "" {
			val = forceInline(val)
			styled = true
		}
		b.WriteString(" " + key + `="` + html.EscapeString(val) + `"`)
	}
	if !styled {
		b.WriteString(` style="` + inlineOverride + `"`)
	}
	b.WriteString(" " + attrRawTag + `="` + html.EscapeString(raw) + `">`)
	return b.String()
}

func attrIndex(attrs []html.Attribute, key string) int {
	for i, a := range attrs {
		if a.Namespace == "" && a.Key == key {
			return i
		}
	}
	return -1
}

func attrValue(attrs []html.Attribute, key string) (string, bool) {
	if i := attrIndex(attrs, key); i >= 0 {
		return attrs[i].Val, true
	}
	return "", false
}
