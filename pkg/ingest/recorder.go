// Package ingest persists what the annotator learns: merged word records and
// the words seen on each page, written in batches to the local cache.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/japaniel/enx/pkg/db"
	"github.com/japaniel/enx/pkg/familiarity"
)

// Page identifies an annotated document.
type Page struct {
	URL      string
	Title    string
	Byline   string
	SiteName string
}

// Recorder writes word records and page occurrences through a BatchWriter.
type Recorder struct {
	writer *BatchWriter
	log    *slog.Logger

	words atomic.Int64
	links atomic.Int64
}

type RecorderOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	Logger        *slog.Logger
}

func NewRecorder(conn *sql.DB, opts RecorderOptions) *Recorder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Recorder{
		writer: NewBatchWriter(conn, opts.BatchSize, opts.FlushInterval),
		log:    opts.Logger,
	}
	r.writer.OnError = func(err error) {
		r.log.Error("word cache write failed", "error", err)
	}
	return r
}

// RecordWords queues an upsert per record. Records without a key are skipped.
func (r *Recorder) RecordWords(ctx context.Context, recs []*familiarity.WordRecord) error {
	for _, rec := range recs {
		if rec == nil || strings.TrimSpace(rec.Key) == "" {
			continue
		}
		rec := rec.Clone()
		err := r.writer.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
			if tx == nil {
				return fmt.Errorf("record word %q: no database", rec.Key)
			}
			if err := db.UpsertWord(tx, rec); err != nil {
				return err
			}
			r.words.Add(1)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RecordPage queues the page row and one link per word key.
func (r *Recorder) RecordPage(ctx context.Context, page Page, occurrences map[string]int) error {
	if strings.TrimSpace(page.URL) == "" {
		return fmt.Errorf("record page: url must be non-empty")
	}
	keys := make([]string, 0, len(occurrences))
	for k, n := range occurrences {
		if k != "" && n > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	return r.writer.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if tx == nil {
			return fmt.Errorf("record page %q: no database", page.URL)
		}
		pageID, err := db.CreateOrGetPage(tx, page.URL, page.Title, page.Byline, page.SiteName)
		if err != nil {
			return fmt.Errorf("record page %q: %w", page.URL, err)
		}
		for _, k := range keys {
			if err := db.LinkWordToPage(tx, pageID, k, occurrences[k]); err != nil {
				return fmt.Errorf("link %q to page %d: %w", k, pageID, err)
			}
		}
		r.links.Add(int64(len(keys)))
		return nil
	})
}

// Flush commits everything queued so far.
func (r *Recorder) Flush(ctx context.Context) error {
	return r.writer.Flush(ctx)
}

// Close commits pending writes and stops the writer.
func (r *Recorder) Close() error {
	err := r.writer.Close()
	r.log.Debug("recorder closed", "words", r.words.Load(), "links", r.links.Load())
	return err
}

// Counts reports word upserts and page links applied by the writer.
func (r *Recorder) Counts() (words, links int64) {
	return r.words.Load(), r.links.Load()
}
