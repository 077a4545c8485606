package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/callflow/pkg/domain"
)

// Source implements ports.CatalogSource from in-memory menu definitions.
type Source struct {
	menus map[string]domain.MenuNode
}

// NewSource creates a catalog source from domain objects.
func NewSource(menus ...domain.MenuNode) (*Source, error) {
	data := make(map[string]domain.MenuNode, len(menus))
	for _, m := range menus {
		if m.ID == "" {
			return nil, fmt.Errorf("menu missing ID")
		}
		if _, dup := data[m.ID]; dup {
			return nil, fmt.Errorf("menu %s declared twice", m.ID)
		}
		data[m.ID] = m
	}
	return &Source{menus: data}, nil
}

// LoadMenus returns the menus in ID order.
func (s *Source) LoadMenus(ctx context.Context) ([]domain.MenuNode, error) {
	ids := make([]string, 0, len(s.menus))
	for id := range s.menus {
		ids = append(ids, id)
	}
	sort.Strings(ids) // Deterministic order

	out := make([]domain.MenuNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.menus[id])
	}
	return out, nil
}
