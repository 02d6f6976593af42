package dictionary

import (
	"database/sql"
	"log/slog"
	"sync"

	"github.com/japaniel/enx/pkg/db"
	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/tokenize"
)

// Index looks entries up by case-folded headword.
type Index struct {
	mu    sync.RWMutex
	index map[string]Entry
}

// NewIndex builds an index over the given lists. Later lists win on
// duplicate headwords.
func NewIndex(lists ...[]Entry) *Index {
	ix := &Index{index: make(map[string]Entry)}
	for _, list := range lists {
		for _, e := range list {
			ix.Add(e)
		}
	}
	return ix
}

// Add inserts or replaces an entry. Entries whose headword is not a word are
// ignored.
func (ix *Index) Add(e Entry) {
	key := tokenize.Fold(e.Word)
	if !tokenize.IsWord(key) {
		return
	}
	ix.mu.Lock()
	ix.index[key] = e
	ix.mu.Unlock()
}

func (ix *Index) Lookup(word string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.index[tokenize.Fold(word)]
	return e, ok
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.index)
}

// Record returns a fresh record for word. Unknown words get a record with no
// translation; function words are classified as such.
func (ix *Index) Record(word string) *familiarity.WordRecord {
	key := tokenize.Fold(word)
	rec := &familiarity.WordRecord{Key: key, SurfaceForm: word}
	if e, ok := ix.Lookup(key); ok {
		rec.Translation = e.Gloss()
		rec.Pronunciation = e.Phonetic
		if e.Functional {
			rec.Class = familiarity.ClassFunctional
		}
	}
	return rec
}

// Enrich fills the translation of cached words that have none. It returns
// the number of words updated.
func (ix *Index) Enrich(conn *sql.DB) (int, error) {
	keys, err := db.WordsMissingTranslation(conn)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, key := range keys {
		e, ok := ix.Lookup(key)
		if !ok || e.Gloss() == "" {
			continue
		}
		if err := db.UpdateWordTranslation(conn, key, e.Gloss(), e.Phonetic); err != nil {
			slog.Warn("failed to enrich word", "word", key, "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}
