package annotate

import (
	"strings"

	"golang.org/x/net/html"
)

// Option adjusts rendering.
type Option func(*options)

type options struct {
	display DisplayFunc
}

// WithDisplay replaces the display resolver used for the inline-flex fix.
func WithDisplay(fn DisplayFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.display = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{display: InlineStyleDisplay}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true,
	"track": true, "wbr": true,
}

type openElement struct {
	name  string
	piece int
	raw   string
	tok   html.Token
	fixed bool
}

// Render annotates markup with spans for every dictionary word it contains.
// Only text outside excluded elements is rewritten; every other byte of the
// input is copied through unchanged, and the input is returned as is when no
// word matched.
func Render(markup string, dict Dictionary, opts ...Option) string {
	m := newMatcher(dict)
	if m.empty() || strings.TrimSpace(markup) == "" {
		return markup
	}
	o := buildOptions(opts)

	z := html.NewTokenizer(strings.NewReader(markup))
	var (
		pieces    []string
		stack     []openElement
		skipTag   string
		skipDepth int
		changed   bool
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())
		switch tt {
		case html.StartTagToken:
			tok := z.Token()
			switch {
			case skipDepth > 0:
				if tok.Data == skipTag {
					skipDepth++
				}
			case excludedNames[tok.Data] || hasSpanClass(tok):
				if !voidElements[tok.Data] {
					skipTag, skipDepth = tok.Data, 1
				}
			case !voidElements[tok.Data]:
				_, fixed := attrValue(tok.Attr, attrRawTag)
				stack = append(stack, openElement{name: tok.Data, piece: len(pieces), raw: raw, tok: tok, fixed: fixed})
			}
			pieces = append(pieces, raw)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipDepth > 0 {
				if tag == skipTag {
					skipDepth--
				}
			} else {
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i].name == tag {
						stack = stack[:i]
						break
					}
				}
			}
			pieces = append(pieces, raw)

		case html.TextToken:
			if skipDepth > 0 {
				pieces = append(pieces, raw)
				continue
			}
			marked, t := m.mark(raw, entityPattern)
			if t.words == 0 {
				pieces = append(pieces, raw)
				continue
			}
			pieces = append(pieces, t.replace(marked))
			changed = true
			for i := range stack {
				el := &stack[i]
				if el.fixed || !IsInlineFlex(o.display(el.name, el.tok.Attr)) {
					continue
				}
				pieces[el.piece] = flexTag(el.raw, el.tok)
				el.fixed = true
			}

		default:
			pieces = append(pieces, raw)
		}
	}
	if !changed {
		return markup
	}
	return strings.Join(pieces, "")
}

// Strip removes every span Render wrote, keeping the text inside it, and
// restores start tags rewritten by the inline-flex fix. It is the
// exact inverse of Render.
func Strip(markup string) string {
	if !strings.Contains(markup, SpanClass) && !strings.Contains(markup, attrRawTag) {
		return markup
	}
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	b.Grow(len(markup))
	depth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		// Copy before TagName or Token, which lower-case the buffer in place.
		raw := string(z.Raw())
		switch tt {
		case html.StartTagToken:
			tok := z.Token()
			if isSpanToken(tok) || (depth > 0 && tok.Data == "u") {
				depth++
				continue
			}
			if orig, ok := attrValue(tok.Attr, attrRawTag); ok {
				b.WriteString(orig)
				continue
			}
			b.WriteString(raw)
		case html.EndTagToken:
			name, _ := z.TagName()
			if depth > 0 && string(name) == "u" {
				depth--
				continue
			}
			b.WriteString(raw)
		default:
			b.WriteString(raw)
		}
	}
	return b.String()
}
