package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ventas/internal/adapter/index"
	"ventas/internal/domain"
	"ventas/internal/port"
)

// Refresh rebuilds the vector index from the catalog. Records are append-only
// within one build and the whole index is replaced on the handle, so readers
// see either the previous or the new catalog, never a mix.
type Refresh struct {
	catalog  port.Catalog
	embedder port.Embedder
	handle   *index.Handle
	path     string
	batch    int
}

// NewRefresh creates the refresh use case. path is the persistence base path;
// an empty path skips persisting.
func NewRefresh(catalog port.Catalog, embedder port.Embedder, handle *index.Handle, path string, batchSize int) *Refresh {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Refresh{
		catalog:  catalog,
		embedder: embedder,
		handle:   handle,
		path:     path,
		batch:    batchSize,
	}
}

// RefreshResult summarizes one embedding refresh.
type RefreshResult struct {
	Products int
	Embedded int
	Failed   int
	Errors   []string
}

// Run embeds the full catalog and swaps the rebuilt index in. A failed batch
// is logged and skipped so the rest of the catalog still gets embedded; the
// result carries the per-batch failure counts.
func (r *Refresh) Run(ctx context.Context, progress func(done, total int)) (*RefreshResult, error) {
	products, err := r.catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	result := &RefreshResult{Products: len(products)}
	today := time.Now()

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = domain.BuildEmbeddingText(p, today)
	}

	next := index.NewFlat(r.embedder.Dimension())

	for start := 0; start < len(products); start += r.batch {
		end := start + r.batch
		if end > len(products) {
			end = len(products)
		}

		vectors, err := r.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			result.Failed += end - start
			result.Errors = append(result.Errors,
				fmt.Sprintf("failed to embed products %d-%d: %v", products[start].ID, products[end-1].ID, err))
			slog.Warn("embedding batch failed", "from", start, "to", end, "error", err)
			continue
		}

		records := make([]domain.EmbeddingRecord, end-start)
		for i := range vectors {
			p := products[start+i]
			records[i] = domain.EmbeddingRecord{
				ProductID: p.ID,
				Text:      texts[start+i],
				Vector:    vectors[i],
				Product:   p.DisplayData(),
			}
		}

		if err := next.Add(records); err != nil {
			// Dimension violations are a contract breach, not a partial failure.
			return nil, fmt.Errorf("failed to add records to index: %w", err)
		}
		result.Embedded += len(records)

		if progress != nil {
			progress(end, len(products))
		}
	}

	r.handle.Swap(next)

	if r.path != "" {
		if err := next.Persist(r.path); err != nil {
			return nil, fmt.Errorf("failed to persist index: %w", err)
		}
	}

	slog.Info("embedding refresh complete",
		"products", result.Products,
		"embedded", result.Embedded,
		"failed", result.Failed)
	return result, nil
}
