// Package dictionary holds the English–Chinese word list the mock backend
// answers from and the local cache is enriched with.
package dictionary

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one headword of the word list.
type Entry struct {
	Word     string  `json:"word"`
	Phonetic string  `json:"phonetic"`
	Senses   []Sense `json:"senses"`
	// Functional marks articles, pronouns, prepositions and the like.
	Functional bool `json:"functional"`
}

type Sense struct {
	PartOfSpeech []string `json:"pos"`
	Gloss        []string `json:"gloss"`
}

//go:embed seed.json
var seedJSON []byte

// Seed returns the built-in word list.
func Seed() []Entry {
	entries, err := Decode(bytes.NewReader(seedJSON))
	if err != nil {
		panic(fmt.Sprintf("dictionary: bad seed list: %v", err))
	}
	return entries
}

// LoadFile reads a word list saved as {"words": [...]} or as a bare array.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode accepts the same two layouts as LoadFile.
func Decode(r io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		Words []Entry `json:"words"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Words) > 0 {
		return wrapped.Words, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse word list as object or array: %w", err)
	}
	return entries, nil
}

// Gloss joins the glosses of all senses with "; ".
func (e Entry) Gloss() string {
	var parts []string
	seen := make(map[string]bool)
	for _, s := range e.Senses {
		for _, g := range s.Gloss {
			g = strings.TrimSpace(g)
			if g != "" && !seen[g] {
				seen[g] = true
				parts = append(parts, g)
			}
		}
	}
	return strings.Join(parts, "; ")
}
