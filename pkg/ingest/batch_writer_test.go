package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func openTestTable(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return db
}

func insert(val string) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO test (val) VALUES (?)", val)
		return err
	}
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM test").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return count
}

func TestBatchWriterTransactions(t *testing.T) {
	db := openTestTable(t)
	bw := NewBatchWriter(db, 2, 0)
	ctx := context.Background()

	if err := bw.Submit(ctx, insert("A")); err != nil {
		t.Fatal(err)
	}
	if err := bw.Submit(ctx, insert("B")); err != nil {
		t.Fatal(err)
	}

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- bw.Close()
	}()
	select {
	case err := <-doneCh:
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for batch commit/close")
	}

	if got := countRows(t, db); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
}

func TestBatchWriterRollback(t *testing.T) {
	db := openTestTable(t)
	bw := NewBatchWriter(db, 2, 0)
	errCh := make(chan error, 1)
	bw.OnError = func(e error) {
		errCh <- e
	}

	// The second write fails, so the whole batch rolls back.
	ctx := context.Background()
	_ = bw.Submit(ctx, insert("C"))
	_ = bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fmt.Errorf("intentional error")
	})

	if err := bw.Close(); err == nil {
		t.Fatal("expected Close to return the commit error")
	}
	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	default:
		t.Fatal("expected OnError to be called")
	}
	if got := countRows(t, db); got != 0 {
		t.Fatalf("expected 0 rows (rollback), got %d", got)
	}
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	bw := NewBatchWriter(nil, 5, 0)
	var mu sync.Mutex
	called := 0
	for i := 0; i < 12; i++ {
		if err := bw.Submit(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
			mu.Lock()
			called++
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if called != 12 {
		t.Fatalf("expected 12 calls, got %d", called)
	}
}

func TestBatchWriterFlushesOnInterval(t *testing.T) {
	bw := NewBatchWriter(nil, 10, 20*time.Millisecond)
	defer bw.Close()
	ran := make(chan struct{})
	if err := bw.Submit(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		close(ran)
		return nil
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("interval flush did not run")
	}
}

func TestBatchWriterFlushWaitsForCommit(t *testing.T) {
	db := openTestTable(t)
	bw := NewBatchWriter(db, 100, 0)
	defer bw.Close()
	ctx := context.Background()

	for _, v := range []string{"x", "y", "z"} {
		if err := bw.Submit(ctx, insert(v)); err != nil {
			t.Fatal(err)
		}
	}
	if err := bw.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := countRows(t, db); got != 3 {
		t.Fatalf("expected 3 rows after flush, got %d", got)
	}

	_ = bw.Submit(ctx, func(ctx context.Context, tx *sql.Tx) error { return errors.New("boom") })
	if err := bw.Flush(ctx); err == nil {
		t.Fatal("expected flush to surface the commit error")
	}
	if err := bw.Flush(ctx); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
}

func TestBatchWriterSubmitHonorsContext(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	blocker := make(chan struct{})
	defer func() {
		close(blocker)
		bw.Close()
	}()
	block := func(ctx context.Context, tx *sql.Tx) error {
		<-blocker
		return nil
	}

	// One batch runs, two more fill the commit queue.
	for range 3 {
		if err := bw.Submit(context.Background(), block); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := bw.Submit(ctx, block); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBatchWriterClosedRejects(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := bw.Submit(context.Background(), func(context.Context, *sql.Tx) error { return nil }); err != ErrBatchWriterClosed {
		t.Fatalf("expected ErrBatchWriterClosed, got %v", err)
	}
	if err := bw.Close(); err != ErrBatchWriterClosed {
		t.Fatalf("expected ErrBatchWriterClosed on second close, got %v", err)
	}
}
