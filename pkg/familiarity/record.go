package familiarity

import "strings"

// WordClass separates content words from function words. Function words are
// never highlighted.
type WordClass int

const (
	ClassContent    WordClass = 0
	ClassFunctional WordClass = 1
)

func (c WordClass) String() string {
	if c == ClassFunctional {
		return "functional"
	}
	return "content"
}

// WordRecord is what the reader's vocabulary knows about one case-folded word form.
type WordRecord struct {
	Key           string
	SurfaceForm   string
	Translation   string
	Pronunciation string
	LookupCount   int
	Acquainted    bool
	Class         WordClass
}

// Clone returns a copy so cached records are never shared with callers.
func (r *WordRecord) Clone() *WordRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Highlighted reports whether spans of this word carry a visible color.
func (r *WordRecord) Highlighted() bool {
	return !ColorFor(r).Neutral
}

// Merge applies a fresh server response to a cached record and returns the
// result. Acquainted never flips back, the first surface form wins and empty
// fresh fields keep what the cache already had.
func Merge(cached, fresh *WordRecord) *WordRecord {
	switch {
	case fresh == nil:
		return cached.Clone()
	case cached == nil:
		return fresh.Clone()
	}
	out := fresh.Clone()
	if cached.SurfaceForm != "" {
		out.SurfaceForm = cached.SurfaceForm
	}
	if strings.TrimSpace(out.Translation) == "" {
		out.Translation = cached.Translation
	}
	if out.Pronunciation == "" {
		out.Pronunciation = cached.Pronunciation
	}
	if out.Key == "" {
		out.Key = cached.Key
	}
	out.Acquainted = cached.Acquainted || fresh.Acquainted
	return out
}
