// Package indexer связывает Gmail, метаданные и векторную базу
// в один проход индексации.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"mailrag/internal/chunker"
	"mailrag/internal/mail"
	"mailrag/internal/metrics"
	"mailrag/internal/store"
)

// ErrAlreadyIndexed - база уже заполнена, а переиндексация не запрошена
var ErrAlreadyIndexed = errors.New("emails already indexed")

// Fetcher получает письма (mail.Client)
type Fetcher interface {
	FetchMessages(ctx context.Context, opts mail.FetchOptions) ([]*mail.Message, error)
}

// MetaStore сохраняет метаданные писем (metadb.DB)
type MetaStore interface {
	UpsertEmails(ctx context.Context, msgs []*mail.Message, myEmail string) (inserted, updated int, err error)
}

// VectorStore хранит фрагменты (store.Store)
type VectorStore interface {
	Count() int
	Reset() error
	AddFragments(ctx context.Context, frags []chunker.Document, key store.KeyFunc) (int, error)
}

// Options - параметры одного прохода
type Options struct {
	MaxEmails      int
	Query          string
	Force          bool
	PDFAttachments bool
}

// Stats - итог индексации
type Stats struct {
	Emails    int
	Documents int
	Fragments int
	Inserted  int
	Updated   int
	Duration  time.Duration
}

// Indexer - конвейер fetch → metadb → documents → chunks → store
type Indexer struct {
	fetcher   Fetcher
	meta      MetaStore
	vectors   VectorStore
	processor *mail.Processor
	splitter  chunker.Chunker
	workers   int
	metrics   *metrics.Metrics
}

// New создаёт индексатор; m может быть nil
func New(f Fetcher, meta MetaStore, vectors VectorStore, splitter chunker.Chunker, workers int, m *metrics.Metrics) *Indexer {
	return &Indexer{
		fetcher:   f,
		meta:      meta,
		vectors:   vectors,
		processor: mail.NewProcessor(splitter),
		splitter:  splitter,
		workers:   max(workers, 1),
		metrics:   m,
	}
}

// Run выполняет полный проход индексации
func (ix *Indexer) Run(ctx context.Context, opts Options) (*Stats, error) {
	start := time.Now()

	existing := ix.vectors.Count()
	if existing > 0 && !opts.Force {
		return nil, fmt.Errorf("%w: %d fragments in store, use force to reindex", ErrAlreadyIndexed, existing)
	}

	log.Info("📥 Fetching emails", "max", opts.MaxEmails, "query", opts.Query)
	msgs, err := ix.fetcher.FetchMessages(ctx, mail.FetchOptions{
		Query:          opts.Query,
		MaxResults:     opts.MaxEmails,
		PDFAttachments: opts.PDFAttachments,
		Concurrency:    ix.workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch emails: %w", err)
	}
	if len(msgs) == 0 {
		log.Warn("no emails fetched")
		return &Stats{Duration: time.Since(start)}, nil
	}

	stats := &Stats{Emails: len(msgs)}

	if ix.meta != nil {
		stats.Inserted, stats.Updated, err = ix.meta.UpsertEmails(ctx, msgs, "")
		if err != nil {
			return nil, fmt.Errorf("failed to export metadata: %w", err)
		}
	}

	docs := ix.processor.Documents(msgs)
	stats.Documents = len(docs)

	log.Info("✂️  Splitting documents", "documents", len(docs), "splitter", ix.splitter.Name(), "workers", ix.workers)
	fragments, err := SplitParallel(ctx, ix.splitter, docs, ix.workers)
	if err != nil {
		return nil, err
	}

	// Старый индекс чистим только когда новые фрагменты готовы
	if existing > 0 {
		log.Info("♻️  Force reindex, clearing vector store", "fragments", existing)
		if err := ix.vectors.Reset(); err != nil {
			return nil, err
		}
	}

	stored, err := ix.vectors.AddFragments(ctx, fragments, mail.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to store fragments: %w", err)
	}
	stats.Fragments = stored
	stats.Duration = time.Since(start)

	if ix.metrics != nil {
		ix.metrics.EmailsFetched.Add(float64(stats.Emails))
		ix.metrics.DocumentsCreated.Add(float64(stats.Documents))
		ix.metrics.FragmentsStored.Add(float64(stats.Fragments))
		ix.metrics.IndexDuration.Observe(stats.Duration.Seconds())
	}

	log.Info("✅ Indexing complete",
		"emails", stats.Emails,
		"documents", stats.Documents,
		"fragments", stats.Fragments,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, nil
}
