// Package overlay drives annotation of one document: it finds the article,
// classifies its words chunk by chunk, injects spans and removes them again.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/japaniel/enx/pkg/annotate"
	"github.com/japaniel/enx/pkg/apperrors"
	"github.com/japaniel/enx/pkg/familiarity"
	"github.com/japaniel/enx/pkg/ingest"
	"github.com/japaniel/enx/pkg/locate"
	"github.com/japaniel/enx/pkg/metrics"
	"github.com/japaniel/enx/pkg/tokenize"
)

type State int

const (
	Disabled State = iota
	Enabling
	Enabled
	Disabling
)

func (s State) String() string {
	switch s {
	case Enabling:
		return "enabling"
	case Enabled:
		return "enabled"
	case Disabling:
		return "disabling"
	default:
		return "disabled"
	}
}

// API is the part of the translation client the overlay needs.
type API interface {
	ClassifyParagraph(ctx context.Context, text string) (map[string]*familiarity.WordRecord, error)
	TranslateWord(ctx context.Context, word string) (*familiarity.WordRecord, error)
	MarkAcquainted(ctx context.Context, word string) (*familiarity.WordRecord, error)
}

// Sink receives what the overlay learns. ingest.Recorder implements it.
type Sink interface {
	RecordWords(ctx context.Context, recs []*familiarity.WordRecord) error
	RecordPage(ctx context.Context, page ingest.Page, occurrences map[string]int) error
}

type Options struct {
	API  API
	Sink Sink
	// Page identifies the document for the sink; pages without URL are not
	// recorded.
	Page ingest.Page

	ChunkWords int
	ChunkBytes int
	Workers    int
	Display    annotate.DisplayFunc

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

const (
	DefaultChunkWords = 200
	DefaultChunkBytes = 5000
	DefaultWorkers    = 4
)

// Report describes one Enable run.
type Report struct {
	NoArticle    bool
	Words        int
	Chunks       int
	FailedChunks int
	Spans        int
	FlexFixed    int
}

// Overlay owns the annotation state of one parsed document. All tree
// mutation happens under its mutex; network calls run without it.
type Overlay struct {
	doc  *html.Node
	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	state  State
	epoch  uint64
	cancel context.CancelFunc
	root   *html.Node
	cache  map[string]*familiarity.WordRecord
}

func New(doc *html.Node, opts Options) (*Overlay, error) {
	if doc == nil {
		return nil, errors.New("overlay: nil document")
	}
	if opts.API == nil {
		return nil, errors.New("overlay: API is required")
	}
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = DefaultChunkWords
	}
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = DefaultChunkBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Display == nil {
		opts.Display = annotate.InlineStyleDisplay
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Overlay{
		doc:   doc,
		opts:  opts,
		log:   log,
		cache: make(map[string]*familiarity.WordRecord),
	}, nil
}

func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Active reports whether annotations are on or being put on.
func (o *Overlay) Active() bool {
	s := o.State()
	return s == Enabling || s == Enabled
}

// Enable annotates the article. It is a no-op unless the overlay is
// Disabled. Chunks that fail with a network or server error are skipped; an
// expired session stops the run and is returned. A page without article
// ends Enabled with an empty report.
func (o *Overlay) Enable(ctx context.Context) (Report, error) {
	var rep Report

	o.mu.Lock()
	if o.state != Disabled {
		o.mu.Unlock()
		return rep, nil
	}
	o.state = Enabling
	o.epoch++
	epoch := o.epoch
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	root := locate.ArticleRoot(o.doc)
	if root == nil {
		o.state = Enabled
		o.mu.Unlock()
		o.log.Info("no article found")
		rep.NoArticle = true
		return rep, nil
	}
	o.root = root
	text := annotate.Text(root)
	o.mu.Unlock()

	occurrences := make(map[string]int)
	for w := range tokenize.ExtractWords(text) {
		occurrences[w]++
	}
	words := tokenize.Distinct(tokenize.ExtractWords(text))
	rep.Words = len(words)
	o.log.Debug("article located", "words", len(words), "chars", len(text))

	for chunk := range tokenize.Chunks(words, o.opts.ChunkWords, o.opts.ChunkBytes) {
		if ctx.Err() != nil {
			break
		}
		rep.Chunks++
		recs, err := o.opts.API.ClassifyParagraph(ctx, strings.Join(chunk, " "))
		if err != nil {
			if apperrors.IsSessionExpired(err) {
				o.opts.Metrics.Chunk("session_expired")
				o.settle(epoch)
				return rep, err
			}
			if ctx.Err() != nil {
				break
			}
			rep.FailedChunks++
			o.opts.Metrics.Chunk("failed")
			o.log.Warn("classification chunk failed", "chunk", rep.Chunks, "words", len(chunk), "error", err)
			continue
		}

		merged, res, ok := o.apply(epoch, recs)
		if !ok {
			o.opts.Metrics.Chunk("stale")
			return rep, nil
		}
		o.opts.Metrics.Chunk("ok")
		o.opts.Metrics.Spans(res.Spans)
		rep.Spans += res.Spans
		rep.FlexFixed += res.FlexFixed
		o.record(ctx, merged)
	}

	o.settle(epoch)
	if o.opts.Sink != nil && o.opts.Page.URL != "" && ctx.Err() == nil {
		if err := o.opts.Sink.RecordPage(ctx, o.opts.Page, occurrences); err != nil {
			o.log.Warn("failed to record page", "url", o.opts.Page.URL, "error", err)
		}
	}
	o.log.Info("annotation finished", "words", rep.Words, "chunks", rep.Chunks, "failed", rep.FailedChunks, "spans", rep.Spans)
	return rep, nil
}

// apply merges a chunk's records into the cache and renders them, unless the
// run has been superseded.
func (o *Overlay) apply(epoch uint64, recs map[string]*familiarity.WordRecord) ([]*familiarity.WordRecord, annotate.Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch || o.root == nil {
		return nil, annotate.Result{}, false
	}
	dict := make(annotate.Dictionary, len(recs))
	merged := make([]*familiarity.WordRecord, 0, len(recs))
	for key, rec := range recs {
		m := familiarity.Merge(o.cache[key], rec)
		if m.Key == "" {
			m.Key = key
		}
		o.cache[key] = m
		dict[key] = m
		merged = append(merged, m.Clone())
	}
	res := annotate.RenderTree(o.root, dict, annotate.WithDisplay(o.opts.Display))
	return merged, res, true
}

// settle moves a current Enabling run to Enabled.
func (o *Overlay) settle(epoch uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch == epoch && o.state == Enabling {
		o.state = Enabled
	}
}

// Disable removes every annotation and cancels in-flight work. It returns the
// number of spans removed and is a no-op unless the overlay is active.
func (o *Overlay) Disable() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Enabled && o.state != Enabling {
		return 0
	}
	o.state = Disabling
	o.epoch++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	n := annotate.StripTree(o.doc)
	o.root = nil
	o.state = Disabled
	o.log.Debug("annotations removed", "spans", n)
	return n
}

// Cached returns the merged record of word, if one is known.
func (o *Overlay) Cached(word string) (*familiarity.WordRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.cache[tokenize.Fold(word)]
	return rec.Clone(), ok
}

// LookupWord fetches the full record of one word and merges it into the
// cache. It works whether or not annotations are on.
func (o *Overlay) LookupWord(ctx context.Context, word string) (*familiarity.WordRecord, error) {
	rec, err := o.opts.API.TranslateWord(ctx, word)
	if err != nil {
		return nil, err
	}
	merged := o.merge(rec)
	o.record(ctx, []*familiarity.WordRecord{merged})
	return merged, nil
}

// Lookup is the outcome of one word in LookupWords.
type Lookup struct {
	Word   string
	Record *familiarity.WordRecord
	Err    error
}

// LookupWords looks words up concurrently on a worker pool. Results keep the
// input order; failures are reported per word.
func (o *Overlay) LookupWords(ctx context.Context, words []string) []Lookup {
	out := make([]Lookup, len(words))
	pool := ingest.NewWorkerPool(o.opts.Workers, len(words))
	pool.Start(ctx)
	for i, w := range words {
		out[i].Word = w
		err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			out[i].Record, out[i].Err = o.LookupWord(ctx, w)
			return out[i].Err
		})
		if err != nil {
			out[i].Err = fmt.Errorf("lookup %q not started: %w", w, err)
		}
	}
	pool.Close()
	for i := range out {
		if out[i].Record == nil && out[i].Err == nil {
			out[i].Err = fmt.Errorf("lookup %q: %w", out[i].Word, context.Cause(ctx))
		}
	}
	return out
}

// MarkKnown marks word acquainted on the backend and turns every span of it
// neutral. It returns the number of spans restyled.
func (o *Overlay) MarkKnown(ctx context.Context, word string) (int, error) {
	rec, err := o.opts.API.MarkAcquainted(ctx, word)
	if err != nil {
		return 0, err
	}
	rec.Acquainted = true

	o.mu.Lock()
	key := tokenize.Fold(word)
	cached := o.cache[key]
	merged := familiarity.Merge(cached, rec)
	merged.Key = key
	if cached != nil && rec.LookupCount == 0 {
		// A bare acknowledgement carries no count.
		merged.LookupCount = cached.LookupCount
	}
	o.cache[key] = merged
	n := annotate.Restyle(o.doc, merged)
	o.mu.Unlock()

	o.record(ctx, []*familiarity.WordRecord{merged.Clone()})
	o.log.Info("word marked known", "word", key, "spans", n)
	return n, nil
}

func (o *Overlay) merge(rec *familiarity.WordRecord) *familiarity.WordRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := tokenize.Fold(rec.Key)
	merged := familiarity.Merge(o.cache[key], rec)
	o.cache[key] = merged
	return merged.Clone()
}

func (o *Overlay) record(ctx context.Context, recs []*familiarity.WordRecord) {
	if o.opts.Sink == nil || len(recs) == 0 {
		return
	}
	if err := o.opts.Sink.RecordWords(ctx, recs); err != nil {
		o.log.Warn("failed to record words", "count", len(recs), "error", err)
	}
}

// Render writes the document in its current state.
func (o *Overlay) Render(w io.Writer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return html.Render(w, o.doc)
}
