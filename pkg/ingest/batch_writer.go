package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// WriteFunc performs database writes inside a transaction. tx is nil when the
// writer has no database.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

type batch struct {
	writes []WriteFunc
	// done receives the commit result when a caller waits on it.
	done chan error
}

// BatchWriter buffers writes and commits them in batches, one transaction per
// batch, on a single committer goroutine.
type BatchWriter struct {
	db  *sql.DB
	cap int

	mu     sync.Mutex
	buf    []WriteFunc
	closed bool

	commitCh chan batch
	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup

	// OnError receives commit failures of batches nobody waits on.
	OnError func(error)

	errMu   sync.Mutex
	lastErr error
}

// NewBatchWriter starts a writer that flushes when bufferSize writes are
// pending or every flushInterval (0 disables the timer).
func NewBatchWriter(db *sql.DB, bufferSize int, flushInterval time.Duration) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	bw := &BatchWriter{
		db:       db,
		cap:      bufferSize,
		buf:      make([]WriteFunc, 0, bufferSize),
		commitCh: make(chan batch, 2),
		stop:     make(chan struct{}),
	}
	bw.wg.Add(1)
	go bw.committer()

	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.loop()
	}
	return bw
}

// Submit enqueues a write. It blocks while the committer is behind, until ctx
// is done.
func (bw *BatchWriter) Submit(ctx context.Context, w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, w)
	if len(bw.buf) < bw.cap {
		return nil
	}
	return bw.sendLocked(ctx, nil)
}

// Flush commits everything pending and waits for the result.
func (bw *BatchWriter) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	if len(bw.buf) == 0 {
		// An empty batch still waits behind the ones already queued.
		bw.buf = append(bw.buf, func(context.Context, *sql.Tx) error { return nil })
	}
	err := bw.sendLocked(ctx, done)
	bw.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendLocked hands the buffer to the committer. bw.mu must be held.
func (bw *BatchWriter) sendLocked(ctx context.Context, done chan error) error {
	if len(bw.buf) == 0 {
		return nil
	}
	b := batch{writes: bw.buf, done: done}
	select {
	case bw.commitCh <- b:
		bw.buf = make([]WriteFunc, 0, bw.cap)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("batch writer: %d pending writes kept: %w", len(bw.buf), ctx.Err())
	}
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for b := range bw.commitCh {
		err := bw.execute(b.writes)
		if b.done != nil {
			b.done <- err
			continue
		}
		if err != nil {
			bw.record(err)
		}
	}
}

func (bw *BatchWriter) record(err error) {
	bw.errMu.Lock()
	if bw.lastErr == nil {
		bw.lastErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

func (bw *BatchWriter) execute(writes []WriteFunc) error {
	// Commits outlive the submitter's context.
	ctx := context.Background()
	if bw.db == nil {
		for _, w := range writes {
			if err := w(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, w := range writes {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch (%d writes): %w", len(writes), err)
	}
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.stop:
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			if !bw.closed {
				if err := bw.sendLocked(context.Background(), nil); err != nil {
					bw.record(err)
				}
			}
			bw.mu.Unlock()
		}
	}
}

// Close commits what is pending, stops the writer and returns the first
// asynchronous commit error.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	_ = bw.sendLocked(context.Background(), nil)
	bw.mu.Unlock()

	close(bw.stop)
	close(bw.commitCh)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.lastErr
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
