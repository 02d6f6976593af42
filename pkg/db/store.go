package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/japaniel/enx/pkg/familiarity"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// UpsertWord stores a record. Acquainted never reverts and empty fields do not
// overwrite known ones.
func UpsertWord(db DBExecutor, rec *familiarity.WordRecord) error {
	if rec == nil || strings.TrimSpace(rec.Key) == "" {
		return fmt.Errorf("word key must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO words (key, surface_form, translation, pronunciation, lookup_count, acquainted, word_class)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		  surface_form  = CASE WHEN words.surface_form = '' THEN excluded.surface_form ELSE words.surface_form END,
		  translation   = COALESCE(NULLIF(excluded.translation, ''), words.translation),
		  pronunciation = COALESCE(NULLIF(excluded.pronunciation, ''), words.pronunciation),
		  lookup_count  = excluded.lookup_count,
		  acquainted    = MAX(words.acquainted, excluded.acquainted),
		  word_class    = excluded.word_class,
		  updated_at    = CURRENT_TIMESTAMP`,
		rec.Key, rec.SurfaceForm, rec.Translation, rec.Pronunciation,
		max(rec.LookupCount, 0), boolInt(rec.Acquainted), int(rec.Class))
	if err != nil {
		return fmt.Errorf("upsert word %q: %w", rec.Key, err)
	}
	return nil
}

// GetWord returns the cached record for key, or nil when there is none.
func GetWord(db DBExecutor, key string) (*familiarity.WordRecord, error) {
	var (
		r          familiarity.WordRecord
		acquainted int
		class      int
	)
	err := db.QueryRow(`SELECT key, surface_form, translation, pronunciation, lookup_count, acquainted, word_class
		FROM words WHERE key = ?`, key).
		Scan(&r.Key, &r.SurfaceForm, &r.Translation, &r.Pronunciation, &r.LookupCount, &acquainted, &class)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Acquainted = acquainted != 0
	r.Class = familiarity.WordClass(class)
	return &r, nil
}

// CreateOrGetPage returns the id of the page with url, inserting it if needed.
// Metadata of an existing page is refreshed when new values are non-empty.
func CreateOrGetPage(db DBExecutor, url, title, byline, siteName string) (int64, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return 0, fmt.Errorf("page url must be non-empty")
	}

	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		var id int64
		err := db.QueryRow(`SELECT id FROM pages WHERE url = ?`, trimmed).Scan(&id)
		if err == nil {
			_, err = db.Exec(`UPDATE pages SET
				title = COALESCE(NULLIF(?, ''), title),
				byline = COALESCE(NULLIF(?, ''), byline),
				site_name = COALESCE(NULLIF(?, ''), site_name),
				annotated_at = CURRENT_TIMESTAMP
				WHERE id = ?`, title, byline, siteName, id)
			return id, err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}

		res, err := db.Exec(`INSERT INTO pages (url, title, byline, site_name) VALUES (?, ?, ?, ?)`,
			trimmed, title, byline, siteName)
		if err != nil {
			// A concurrent writer inserted the same page; select again.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}
	return 0, fmt.Errorf("could not create or get page after %d retries", maxRetries)
}

// LinkWordToPage adds occurrences of a word on a page.
func LinkWordToPage(db DBExecutor, pageID int64, key string, occurrences int) error {
	if pageID <= 0 {
		return fmt.Errorf("pageID must be positive")
	}
	if occurrences < 1 {
		return fmt.Errorf("occurrences must be positive, got %d", occurrences)
	}
	_, err := db.Exec(`INSERT INTO page_words (page_id, word_key, occurrences) VALUES (?, ?, ?)
		ON CONFLICT(page_id, word_key) DO UPDATE SET occurrences = page_words.occurrences + excluded.occurrences`,
		pageID, key, occurrences)
	return err
}

// GetPageWords returns the cached records of the words seen on a page.
func GetPageWords(db DBExecutor, pageID int64) ([]familiarity.WordRecord, error) {
	rows, err := db.Query(`SELECT w.key, w.surface_form, w.translation, w.pronunciation, w.lookup_count, w.acquainted, w.word_class
		FROM words w JOIN page_words pw ON pw.word_key = w.key
		WHERE pw.page_id = ? ORDER BY w.key`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []familiarity.WordRecord
	for rows.Next() {
		var (
			r                 familiarity.WordRecord
			acquainted, class int
		)
		if err := rows.Scan(&r.Key, &r.SurfaceForm, &r.Translation, &r.Pronunciation, &r.LookupCount, &acquainted, &class); err != nil {
			return nil, err
		}
		r.Acquainted = acquainted != 0
		r.Class = familiarity.WordClass(class)
		out = append(out, r)
	}
	return out, rows.Err()
}

// WordsMissingTranslation lists cached keys without a translation.
func WordsMissingTranslation(db DBExecutor) ([]string, error) {
	rows, err := db.Query(`SELECT key FROM words WHERE translation = '' ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UpdateWordTranslation sets the translation of a cached word, and its
// pronunciation when it has none.
func UpdateWordTranslation(db DBExecutor, key, translation, pronunciation string) error {
	_, err := db.Exec(`UPDATE words SET
		translation = ?,
		pronunciation = CASE WHEN pronunciation = '' THEN ? ELSE pronunciation END,
		updated_at = CURRENT_TIMESTAMP
		WHERE key = ?`, translation, pronunciation, key)
	return err
}

// GetStats counts cached words and pages.
func GetStats(db DBExecutor) (Stats, error) {
	var s Stats
	err := db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM words),
		(SELECT COUNT(*) FROM words WHERE acquainted = 1),
		(SELECT COUNT(*) FROM pages)`).Scan(&s.Words, &s.Acquainted, &s.Pages)
	return s, err
}

// GetCredential returns the stored credential called name, or "".
func GetCredential(db DBExecutor, name string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM credentials WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetCredential stores value under name.
func SetCredential(db DBExecutor, name, value string) error {
	_, err := db.Exec(`INSERT INTO credentials (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, name, value)
	return err
}

// DeleteCredential removes the credential called name; missing is not an error.
func DeleteCredential(db DBExecutor, name string) error {
	_, err := db.Exec(`DELETE FROM credentials WHERE name = ?`, name)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
