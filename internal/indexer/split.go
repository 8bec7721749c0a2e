package indexer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"mailrag/internal/chunker"
)

// SplitParallel режет документы на фрагменты в workers горутинах.
// Результат в том же порядке, что и при последовательном SplitDocuments.
func SplitParallel(ctx context.Context, splitter chunker.Chunker, docs []chunker.Document, workers int) ([]chunker.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	workers = min(max(workers, 1), len(docs))

	// Фрагменты каждого документа в своём слоте
	parts := make([][]chunker.Document, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i] = splitter.SplitDocuments(docs[i : i+1])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]chunker.Document, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
