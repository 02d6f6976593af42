// Package tokenize turns article text into candidate vocabulary words.
package tokenize

import (
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// MaxWordLen is the longest token, in runes, that is still treated as a word.
const MaxWordLen = 50

// Apostrophes accepted inside a word: ASCII plus the three typographic variants.
const Apostrophes = "'‘’‛"

var (
	wordPattern   = regexp.MustCompile(`\b[A-Za-z](?:[A-Za-z'\x{2018}\x{2019}\x{201B}-]*[A-Za-z])?\b`)
	markupPattern = regexp.MustCompile(`<[^>]*>|&[A-Za-z0-9#]+;`)
	wordOnly      = regexp.MustCompile(`^[A-Za-z](?:[A-Za-z'\x{2018}\x{2019}\x{201B}-]*[A-Za-z])?$`)
)

// StripMarkup replaces tags and entities with a single space so that they never
// fuse the words on either side.
func StripMarkup(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}
	return markupPattern.ReplaceAllString(text, " ")
}

// ExtractWords yields every word of text, case-folded, in order of occurrence.
// The sequence can be ranged over any number of times.
func ExtractWords(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}
		clean := StripMarkup(text)
		folder := cases.Fold()
		for _, loc := range wordPattern.FindAllStringIndex(clean, -1) {
			tok := clean[loc[0]:loc[1]]
			if !acceptable(tok) {
				continue
			}
			if !yield(folder.String(tok)) {
				return
			}
		}
	}
}

func acceptable(tok string) bool {
	if utf8.RuneCountInString(tok) > MaxWordLen {
		return false
	}
	hasLetter, allDigits := false, true
	for _, r := range tok {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}
	return hasLetter && !allDigits
}

// IsWord reports whether s as a whole matches the word grammar.
func IsWord(s string) bool {
	return wordOnly.MatchString(s) && acceptable(s)
}

// Fold returns the lookup identity of a word.
func Fold(word string) string {
	return cases.Fold().String(strings.TrimSpace(word))
}

// Distinct collects words in first-occurrence order without duplicates.
func Distinct(words iter.Seq[string]) []string {
	seen := make(map[string]struct{})
	var out []string
	for w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Chunks splits words into batches of at most maxWords words whose
// space-joined length stays within maxBytes. A single word longer than
// maxBytes still gets a batch of its own. Non-positive limits disable the
// corresponding bound.
func Chunks(words []string, maxWords, maxBytes int) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		var batch []string
		size := 0
		for _, w := range words {
			extra := len(w)
			if len(batch) > 0 {
				extra++
			}
			full := maxWords > 0 && len(batch) >= maxWords
			tooBig := maxBytes > 0 && len(batch) > 0 && size+extra > maxBytes
			if full || tooBig {
				if !yield(batch) {
					return
				}
				batch, size, extra = nil, 0, len(w)
			}
			batch = append(batch, w)
			size += extra
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}
