package dsl

import (
	"fmt"

	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/catalog"
	"github.com/aretw0/callflow/pkg/domain"
)

// Builder manages the catalog construction.
type Builder struct {
	menus map[string]*MenuBuilder
	order []string
}

// New creates a new catalog builder.
func New() *Builder {
	return &Builder{
		menus: make(map[string]*MenuBuilder),
	}
}

// Add creates a new menu in the catalog.
// If the menu already exists, it returns the existing builder.
func (b *Builder) Add(id string) *MenuBuilder {
	if mb, ok := b.menus[id]; ok {
		return mb
	}
	mb := &MenuBuilder{
		node: domain.MenuNode{
			ID:      id,
			Options: make(map[string]domain.Option),
		},
	}
	b.menus[id] = mb
	b.order = append(b.order, id)
	return mb
}

// Main is shorthand for Add(domain.RootMenu).
func (b *Builder) Main() *MenuBuilder {
	return b.Add(domain.RootMenu)
}

// Nodes returns the menus in declaration order.
func (b *Builder) Nodes() []domain.MenuNode {
	nodes := make([]domain.MenuNode, 0, len(b.order))
	for _, id := range b.order {
		nodes = append(nodes, b.menus[id].Build())
	}
	return nodes
}

// Build compiles the menus into an in-memory CatalogSource.
func (b *Builder) Build() (*memory.Source, error) {
	src, err := memory.NewSource(b.Nodes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory source: %w", err)
	}
	return src, nil
}

// Catalog compiles and validates the menus.
func (b *Builder) Catalog(opts ...catalog.Option) (*catalog.Catalog, error) {
	return catalog.New(b.Nodes(), opts...)
}
