package annotate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/tokenize"
)

var entityPattern = regexp.MustCompile(`&[A-Za-z0-9#]+;`)

type pattern struct {
	entry
	re *regexp.Regexp
}

// matcher finds whole-word, case-insensitive occurrences of dictionary keys.
type matcher struct {
	patterns []pattern
}

func newMatcher(dict Dictionary) *matcher {
	es := entries(dict)
	m := &matcher{patterns: make([]pattern, 0, len(es))}
	for _, e := range es {
		m.patterns = append(m.patterns, pattern{
			entry: e,
			re:    regexp.MustCompile(`(?i)` + regexp.QuoteMeta(e.key)),
		})
	}
	return m
}

func (m *matcher) empty() bool { return len(m.patterns) == 0 }

// slot is what a placeholder stands for: either a matched word or a protected
// run of the input that must come back verbatim.
type slot struct {
	surface string
	key     string
	rec     *familiarity.WordRecord
	raw     bool
}

// table holds the placeholders issued for one piece of text. A placeholder is
// open + decimal index + close, where both sentinels are private-use runes
// absent from the text, so it can neither collide with the input nor match a
// word pattern.
type table struct {
	open, close rune
	slots       []slot
	words       int
}

func newTable(text string) *table {
	open := rune(0xE000)
	for strings.ContainsRune(text, open) || strings.ContainsRune(text, open+1) {
		open += 2
	}
	return &table{open: open, close: open + 1}
}

func (t *table) add(s slot) string {
	t.slots = append(t.slots, s)
	if !s.raw {
		t.words++
	}
	return string(t.open) + strconv.Itoa(len(t.slots)-1) + string(t.close)
}

// mark is the first pass: every whole-word occurrence of every key is
// swapped for a placeholder. No markup is produced yet, so a later key can
// never match inside text generated for an earlier one.
func (m *matcher) mark(text string, protect *regexp.Regexp) (string, *table) {
	t := newTable(text)
	out := text
	if protect != nil {
		out = protect.ReplaceAllStringFunc(out, func(s string) string {
			return t.add(slot{surface: s, raw: true})
		})
	}
	for _, p := range m.patterns {
		locs := p.re.FindAllStringIndex(out, -1)
		if len(locs) == 0 {
			continue
		}
		var b strings.Builder
		last, hit := 0, false
		for _, loc := range locs {
			if !wholeWord(out, loc[0], loc[1]) {
				continue
			}
			b.WriteString(out[last:loc[0]])
			b.WriteString(t.add(slot{surface: out[loc[0]:loc[1]], key: p.key, rec: p.rec}))
			last, hit = loc[1], true
		}
		if !hit {
			continue
		}
		b.WriteString(out[last:])
		out = b.String()
	}
	return out, t
}

// expand is the second pass for tree rendering: it walks the marked text and
// reports plain runs and slots in order.
func (t *table) expand(marked string, text func(string), word func(slot)) {
	for marked != "" {
		i := strings.IndexRune(marked, t.open)
		if i < 0 {
			text(marked)
			return
		}
		if i > 0 {
			text(marked[:i])
		}
		rest := marked[i+utf8.RuneLen(t.open):]
		j := strings.IndexRune(rest, t.close)
		idx, err := strconv.Atoi(rest[:max(j, 0)])
		if j < 0 || err != nil || idx >= len(t.slots) {
			// Not one of ours; cannot happen since the sentinels were absent from the input.
			text(marked[i : i+utf8.RuneLen(t.open)])
			marked = rest
			continue
		}
		s := t.slots[idx]
		if s.raw {
			text(s.surface)
		} else {
			word(s)
		}
		marked = rest[j+utf8.RuneLen(t.close):]
	}
}

// replace is the second pass for string rendering: one left-to-right
// substitution of every placeholder by its final markup.
func (t *table) replace(marked string) string {
	pairs := make([]string, 0, 2*len(t.slots))
	for i, s := range t.slots {
		ph := string(t.open) + strconv.Itoa(i) + string(t.close)
		if s.raw {
			pairs = append(pairs, ph, s.surface)
			continue
		}
		pairs = append(pairs, ph, spanMarkup(s.surface, s.key, s.rec))
	}
	return strings.NewReplacer(pairs...).Replace(marked)
}

// wholeWord reports whether text[i:j] stands on its own: its neighbours are
// not word characters, and an apostrophe or hyphen only glues when a letter
// sits on its far side.
func wholeWord(text string, i, j int) bool {
	if i > 0 {
		r, n := utf8.DecodeLastRuneInString(text[:i])
		if isWordRune(r) {
			return false
		}
		if isJoiner(r) {
			if r2, _ := utf8.DecodeLastRuneInString(text[:i-n]); i-n > 0 && unicode.IsLetter(r2) {
				return false
			}
		}
	}
	if j < len(text) {
		r, n := utf8.DecodeRuneInString(text[j:])
		if isWordRune(r) {
			return false
		}
		if isJoiner(r) {
			if r2, _ := utf8.DecodeRuneInString(text[j+n:]); j+n < len(text) && unicode.IsLetter(r2) {
				return false
			}
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isJoiner(r rune) bool {
	return r == '-' || strings.ContainsRune(tokenize.Apostrophes, r)
}
