package ports

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
)

// CatalogSource produces the raw menu definitions a catalog is built from.
// Sources do not validate; validation happens once when the catalog is built.
type CatalogSource interface {
	LoadMenus(ctx context.Context) ([]domain.MenuNode, error)
}
