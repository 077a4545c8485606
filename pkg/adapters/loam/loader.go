// Package loam loads a menu catalog from a directory of documents, one menu
// per Markdown (or JSON/YAML) file, through the Loam repository library.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/callflow/pkg/catalog"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/loam"
)

// intentsID names the document holding the classifier table.
const intentsID = "intents"

// Loader adapts the Loam library to the callflow CatalogSource interface.
type Loader struct {
	Repo *loam.TypedRepository[MenuMetadata]
}

var _ ports.CatalogSource = (*Loader)(nil)

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[MenuMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode yields json.Number for numeric front matter, which the
	// catalog decoder accepts for collect lengths.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[MenuMetadata](repo)), nil
}

// LoadMenus implements ports.CatalogSource.
func (l *Loader) LoadMenus(ctx context.Context) ([]domain.MenuNode, error) {
	nodes, _, err := l.load(ctx)
	return nodes, err
}

// LoadCatalog loads and validates the catalog, including the intents document if present.
func (l *Loader) LoadCatalog(ctx context.Context, opts ...catalog.Option) (*catalog.Catalog, error) {
	nodes, rules, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if rules != nil {
		opts = append([]catalog.Option{catalog.WithIntents(rules)}, opts...)
	}
	return catalog.New(nodes, opts...)
}

func (l *Loader) load(ctx context.Context) ([]domain.MenuNode, []intent.Rule, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loam list failed: %w", err)
	}

	raw := make(map[string]any, len(docs))
	seen := make(map[string]string, len(docs))
	for _, doc := range docs {
		// Use the ID from metadata if available, otherwise filename ID
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		// Collision Detection
		if existingPath, ok := seen[id]; ok {
			return nil, nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID

		if id == intentsID {
			raw[id] = doc.Data.Intents
			continue
		}
		raw[id] = menuDocument(doc.Data, doc.Content)
	}

	return catalog.Decode(raw)
}

// menuDocument rebuilds the generic menu shape the catalog decoder expects.
func menuDocument(meta MenuMetadata, content string) map[string]any {
	prompt := meta.Prompt
	if prompt == "" {
		prompt = strings.Join(strings.Fields(content), " ")
	}
	def := map[string]any{
		"prompt":  prompt,
		"options": meta.Options,
	}
	if meta.Collect != nil {
		def["collect"] = meta.Collect
	}
	if len(meta.Aliases) > 0 {
		def["aliases"] = meta.Aliases
	}
	return def
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
