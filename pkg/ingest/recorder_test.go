package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/japaniel/enx/pkg/db"
	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/logger"
)

func setupDB(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRecorderPersistsWordsAndPage(t *testing.T) {
	conn := setupDB(t)
	r := NewRecorder(conn, RecorderOptions{BatchSize: 2, Logger: logger.Discard()})
	ctx := context.Background()

	recs := []*familiarity.WordRecord{
		{Key: "github", SurfaceForm: "GitHub", Translation: "代码托管", LookupCount: 3},
		{Key: "the", SurfaceForm: "the", LookupCount: 9, Class: familiarity.ClassFunctional},
		nil,
		{Key: ""},
	}
	if err := r.RecordWords(ctx, recs); err != nil {
		t.Fatalf("RecordWords: %v", err)
	}
	page := Page{URL: "https://example.com/post", Title: "Post"}
	if err := r.RecordPage(ctx, page, map[string]int{"github": 2, "the": 5, "": 1, "none": 0}); err != nil {
		t.Fatalf("RecordPage: %v", err)
	}
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := db.GetWord(conn, "github")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(recs[0], got); diff != "" {
		t.Errorf("github mismatch (-want +got):\n%s", diff)
	}

	pageID, err := db.CreateOrGetPage(conn, page.URL, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	words, err := db.GetPageWords(conn, pageID)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 || words[0].Key != "github" || words[1].Key != "the" {
		t.Errorf("page words = %+v", words)
	}
	if w, l := r.Counts(); w != 2 || l != 2 {
		t.Errorf("counts = %d words, %d links", w, l)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRecorderKeepsAcquaintedSticky(t *testing.T) {
	conn := setupDB(t)
	r := NewRecorder(conn, RecorderOptions{Logger: logger.Discard()})
	ctx := context.Background()

	_ = r.RecordWords(ctx, []*familiarity.WordRecord{{Key: "known", LookupCount: 1, Acquainted: true}})
	_ = r.RecordWords(ctx, []*familiarity.WordRecord{{Key: "known", LookupCount: 4}})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetWord(conn, "known")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Acquainted || got.LookupCount != 4 {
		t.Errorf("got %+v", got)
	}
}

func TestRecorderRejectsPageWithoutURL(t *testing.T) {
	r := NewRecorder(setupDB(t), RecorderOptions{Logger: logger.Discard()})
	defer r.Close()
	if err := r.RecordPage(context.Background(), Page{}, map[string]int{"a": 1}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func BenchmarkRecorder(b *testing.B) {
	recs := make([]*familiarity.WordRecord, 1000)
	for i := range recs {
		recs[i] = &familiarity.WordRecord{Key: fmt.Sprintf("word%d", i), LookupCount: i % 30}
	}
	for _, size := range []int{10, 100, 500} {
		b.Run(fmt.Sprintf("Batch_%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				conn := setupDB(b)
				r := NewRecorder(conn, RecorderOptions{BatchSize: size, Logger: logger.Discard()})
				b.StartTimer()
				if err := r.RecordWords(context.Background(), recs); err != nil {
					b.Fatal(err)
				}
				if err := r.Close(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
