// Package builder produces the complete inverted index from the full corpus:
// a bounded worker pool analyzes books independently, a single aggregator
// folds the per-book results into the global word map, and the index store
// replaces the previous index in one transaction. On success the serving
// snapshot is swapped; on any persistence error the previous index stays
// authoritative.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gutensearch/gutensearch/internal/corpus"
	"github.com/gutensearch/gutensearch/internal/index"
	"github.com/gutensearch/gutensearch/internal/stopword"
	"github.com/gutensearch/gutensearch/internal/tokenizer"
	"github.com/gutensearch/gutensearch/pkg/config"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
	"github.com/gutensearch/gutensearch/pkg/metrics"
)

// analysis is one worker's immutable result for a single book.
type analysis struct {
	bookID    int64
	positions map[string]*index.FieldPositions
}

// Builder runs full index rebuilds.
type Builder struct {
	corpus    *corpus.Store
	store     *index.Store
	memory    *index.Memory
	stopwords *stopword.Provider
	cfg       config.IndexerConfig
	metrics   *metrics.Metrics
	running   atomic.Bool
	logger    *slog.Logger
}

// New creates a Builder. metrics may be nil (rebuilds run uninstrumented).
func New(
	corpusStore *corpus.Store,
	indexStore *index.Store,
	memory *index.Memory,
	stopwords *stopword.Provider,
	cfg config.IndexerConfig,
	m *metrics.Metrics,
) *Builder {
	return &Builder{
		corpus:    corpusStore,
		store:     indexStore,
		memory:    memory,
		stopwords: stopwords,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "index-builder"),
	}
}

// Rebuild indexes the entire corpus and atomically replaces both the
// persisted index and the serving snapshot. Only one rebuild may run at a
// time. Cancelling ctx aborts the run without committing anything.
func (b *Builder) Rebuild(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return apperrors.ErrBuildRunning
	}
	defer b.running.Store(false)

	start := time.Now()
	b.logger.Info("index rebuild starting", "workers", b.cfg.Workers, "batch_size", b.cfg.BatchSize)

	global, analyzed, skipped, err := b.analyzeCorpus(ctx)
	if err != nil {
		b.countBuild("failure")
		return fmt.Errorf("%w: analyzing corpus: %v", apperrors.ErrBuildFailed, err)
	}

	entries := assemble(global)
	if err := b.store.Replace(ctx, entries, b.cfg.BatchSize); err != nil {
		b.countBuild("failure")
		return fmt.Errorf("%w: persisting index: %v", apperrors.ErrBuildFailed, err)
	}

	serving := make(map[string]*index.WordEntry, len(entries))
	for i := range entries {
		serving[entries[i].Word] = &entries[i]
	}
	b.memory.Swap(serving)

	elapsed := time.Since(start)
	if b.metrics != nil {
		b.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
		b.metrics.VocabularySize.Set(float64(len(entries)))
	}
	b.countBuild("success")
	b.logger.Info("index rebuild complete",
		"words", len(entries),
		"books_analyzed", analyzed,
		"books_skipped", skipped,
		"elapsed", elapsed,
	)
	return nil
}

// Running reports whether a rebuild is in progress.
func (b *Builder) Running() bool {
	return b.running.Load()
}

// analyzeCorpus fans book analysis out to a bounded worker pool and folds the
// results in a single aggregator goroutine, so the global map is only ever
// written from one place.
func (b *Builder) analyzeCorpus(ctx context.Context) (map[string]map[int64]*index.FieldPositions, int, int, error) {
	workers := b.cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	books := make(chan corpus.Book, workers)
	results := make(chan analysis, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(books)
		return b.corpus.ForEachBook(gctx, func(book corpus.Book) error {
			select {
			case books <- book:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var analyzed, skipped atomic.Int64
	workerGroup, wctx := errgroup.WithContext(gctx)
	for range workers {
		workerGroup.Go(func() error {
			for book := range books {
				positions, err := b.analyzeBook(book)
				if err != nil {
					// A broken book must not abort the build.
					skipped.Add(1)
					b.countBook("skipped")
					b.logger.Error("book analysis failed, skipping",
						"book_id", book.ID,
						"error", err,
					)
					continue
				}
				analyzed.Add(1)
				b.countBook("ok")
				select {
				case results <- analysis{bookID: book.ID, positions: positions}:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workerGroup.Wait()
		close(results)
	}()

	// Single aggregator: the only writer of the global map.
	global := make(map[string]map[int64]*index.FieldPositions)
	for result := range results {
		for word, fieldPositions := range result.positions {
			perBook, ok := global[word]
			if !ok {
				perBook = make(map[int64]*index.FieldPositions)
				global[word] = perBook
			}
			perBook[result.bookID] = fieldPositions
		}
	}

	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}
	if err := workerGroup.Wait(); err != nil {
		return nil, 0, 0, err
	}
	return global, int(analyzed.Load()), int(skipped.Load()), nil
}

// analyzeBook tokenizes every indexed field of one book, drops stopwords and
// single-character tokens, and assigns each surviving token a sequential
// per-field position. Positions are 0-based ordinals over the filtered
// stream: removing a stopword compresses the position space rather than
// leaving a gap.
func (b *Builder) analyzeBook(book corpus.Book) (map[string]*index.FieldPositions, error) {
	stopwords := b.stopwords.For(book.LanguageTags())
	positions := make(map[string]*index.FieldPositions)
	for _, field := range index.Fields {
		value := book.Field(string(field))
		if value == "" {
			continue
		}
		pos := 0
		for _, token := range tokenizer.Tokenize(value) {
			if len(token) <= 1 {
				continue
			}
			if _, isStop := stopwords[token]; isStop {
				continue
			}
			fp, ok := positions[token]
			if !ok {
				fp = &index.FieldPositions{}
				positions[token] = fp
			}
			fp.Set(field, append(fp.Get(field), pos))
			pos++
		}
	}
	return positions, nil
}

// assemble turns the aggregated global map into sorted, invariant-holding
// word entries ready for persistence.
func assemble(global map[string]map[int64]*index.FieldPositions) []index.WordEntry {
	entries := make([]index.WordEntry, 0, len(global))
	for word, perBook := range global {
		entry := index.WordEntry{Word: word, Postings: make([]index.Posting, 0, len(perBook))}
		for bookID, fieldPositions := range perBook {
			posting := index.Posting{BookID: bookID, Positions: *fieldPositions}
			posting.Normalize()
			entry.Postings = append(entry.Postings, posting)
		}
		sort.Slice(entry.Postings, func(i, j int) bool {
			return entry.Postings[i].BookID < entry.Postings[j].BookID
		})
		entry.Recount()
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Word < entries[j].Word
	})
	return entries
}

func (b *Builder) countBuild(status string) {
	if b.metrics != nil {
		b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	}
}

func (b *Builder) countBook(status string) {
	if b.metrics != nil {
		b.metrics.BooksAnalyzedTotal.WithLabelValues(status).Inc()
	}
}
