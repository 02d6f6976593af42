package tokenize

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractWords(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", " \n\t ", nil},
		{"contractions and hyphens", "their 6-year-old to!", []string{"their", "year-old", "to"}},
		{"smart apostrophes", "Don’t stop, it‘s rock‛n", []string{"don’t", "stop", "it‘s", "rock‛n"}},
		{"single letters", "I saw a cat", []string{"i", "saw", "a", "cat"}},
		{"punctuation", "scientists. (Assassins wove ... doors.) The", []string{"scientists", "assassins", "wove", "doors", "the"}},
		{"tags never fuse words", "hello<br>world", []string{"hello", "world"}},
		{"entities never fuse words", "AT&amp;T rock&nbsp;roll", []string{"at", "t", "rock", "roll"}},
		{"digits reject", "abc123 42 x1", nil},
		{"duplicates kept", "The cat and the hat", []string{"the", "cat", "and", "the", "hat"}},
		{"trailing hyphen", "well- known", []string{"well", "known"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := slices.Collect(ExtractWords(tc.in))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ExtractWords(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestExtractWordsRejectsLongTokens(t *testing.T) {
	long := strings.Repeat("a", MaxWordLen+1)
	exact := strings.Repeat("b", MaxWordLen)
	got := slices.Collect(ExtractWords(long + " " + exact))
	if diff := cmp.Diff([]string{exact}, got); diff != "" {
		t.Fatalf("unexpected words (-want +got):\n%s", diff)
	}
}

func TestExtractWordsIsRestartable(t *testing.T) {
	seq := ExtractWords("one two three")
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second pass differs:\n%s", diff)
	}

	var stopped []string
	for w := range seq {
		stopped = append(stopped, w)
		break
	}
	if len(stopped) != 1 {
		t.Fatalf("early break yielded %v", stopped)
	}
}

func TestIsWord(t *testing.T) {
	for _, w := range []string{"a", "don't", "year-old", "GitHub"} {
		if !IsWord(w) {
			t.Errorf("IsWord(%q) = false", w)
		}
	}
	for _, w := range []string{"", "-a", "a-", "a b", "x1", "café", "'tis"} {
		if IsWord(w) {
			t.Errorf("IsWord(%q) = true", w)
		}
	}
}

func TestDistinctAndChunks(t *testing.T) {
	words := Distinct(ExtractWords("b a b c a d"))
	if diff := cmp.Diff([]string{"b", "a", "c", "d"}, words); diff != "" {
		t.Fatalf("Distinct mismatch:\n%s", diff)
	}

	got := slices.Collect(Chunks(words, 3, 0))
	want := [][]string{{"b", "a", "c"}, {"d"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Chunks by count mismatch:\n%s", diff)
	}

	// "alpha beta" is 10 bytes; adding " gamma" would exceed 12.
	got = slices.Collect(Chunks([]string{"alpha", "beta", "gamma", "verylongword"}, 0, 12))
	want = [][]string{{"alpha", "beta"}, {"gamma"}, {"verylongword"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Chunks by size mismatch:\n%s", diff)
	}

	if n := len(slices.Collect(Chunks(nil, 10, 10))); n != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", n)
	}
}
