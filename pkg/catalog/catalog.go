// Package catalog holds the validated menu graph that drives the IVR engine.
package catalog

import (
	"log/slog"
	"sort"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
)

// Catalog is an immutable, validated set of menus rooted at domain.RootMenu.
type Catalog struct {
	nodes    map[string]*domain.MenuNode
	ids      []string
	intents  []intent.Rule
	warnings []string
}

// Option configures a Catalog at construction.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	intents []intent.Rule
}

// WithLogger logs load warnings (unreachable menus and similar).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithIntents attaches a classifier table declared alongside the menus.
func WithIntents(rules []intent.Rule) Option {
	return func(c *config) {
		c.intents = rules
	}
}

// New builds and validates a catalog. All integrity violations are reported
// together as a *ValidationError.
func New(nodes []domain.MenuNode, opts ...Option) (*Catalog, error) {
	cfg := &config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Catalog{
		nodes:   make(map[string]*domain.MenuNode, len(nodes)),
		intents: cfg.intents,
	}

	verr := &ValidationError{}
	for _, n := range nodes {
		if n.ID == "" {
			verr.add("menu with empty id")
			continue
		}
		if _, dup := c.nodes[n.ID]; dup {
			verr.add("menu %q declared more than once", n.ID)
			continue
		}
		node := copyNode(n)
		c.nodes[n.ID] = &node
		c.ids = append(c.ids, n.ID)
	}
	sort.Strings(c.ids)

	c.validate(verr)
	if verr.HasErrors() {
		return nil, verr
	}

	c.warnings = c.lint()
	for _, w := range c.warnings {
		cfg.logger.Warn("catalog warning", "detail", w)
	}
	return c, nil
}

func copyNode(n domain.MenuNode) domain.MenuNode {
	out := domain.MenuNode{ID: n.ID, Prompt: n.Prompt}
	if n.Collect != nil {
		spec := *n.Collect
		if spec.Terminator == "" {
			spec.Terminator = domain.DefaultTerminator
		}
		out.Collect = &spec
	}
	out.Options = make(map[string]domain.Option, len(n.Options))
	for k, v := range n.Options {
		out.Options[k] = v
	}
	if len(n.Aliases) > 0 {
		out.Aliases = make(map[string]string, len(n.Aliases))
		for k, v := range n.Aliases {
			out.Aliases[k] = v
		}
	}
	return out
}

// Resolve returns the menu with the given id. The result must not be modified.
func (c *Catalog) Resolve(menuID string) (*domain.MenuNode, error) {
	n, ok := c.nodes[menuID]
	if !ok {
		return nil, domain.ErrUnknownMenu
	}
	return n, nil
}

// Root returns the entry menu.
func (c *Catalog) Root() *domain.MenuNode {
	return c.nodes[domain.RootMenu]
}

// IDs returns the declared menu ids, sorted.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Nodes returns copies of every menu, sorted by id.
func (c *Catalog) Nodes() []domain.MenuNode {
	out := make([]domain.MenuNode, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, copyNode(*c.nodes[id]))
	}
	return out
}

// Intents returns the classifier table declared with the catalog, or nil.
func (c *Catalog) Intents() []intent.Rule {
	if c.intents == nil {
		return nil
	}
	return append([]intent.Rule(nil), c.intents...)
}

// Warnings lists non-fatal findings from load.
func (c *Catalog) Warnings() []string {
	return append([]string(nil), c.warnings...)
}
