package runtime_test

import (
	"github.com/aretw0/callflow/pkg/catalog"
	"github.com/aretw0/callflow/pkg/domain"
)

func catalogsFromNodes(nodes []domain.MenuNode) (*catalog.Catalog, error) {
	return catalog.New(nodes)
}
