package port

import (
	"context"

	"ventas/internal/domain"
)

// Catalog supplies product snapshots for embedding refresh and for the
// category/promotion lookups the interest extractor needs.
type Catalog interface {
	// Products returns the active product snapshots with current prices resolved.
	Products(ctx context.Context) ([]domain.Product, error)
}
