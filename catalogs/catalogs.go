// Package catalogs ships the built-in menu catalogs.
package catalogs

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/callflow/pkg/catalog"
)

//go:embed *.yaml
var files embed.FS

const (
	Airline = "airline"
	Railway = "railway"
)

// Names lists the built-in catalogs.
func Names() []string {
	entries, _ := files.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Raw returns the YAML source of a built-in catalog.
func Raw(name string) ([]byte, error) {
	data, err := files.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown built-in catalog %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Load parses a built-in catalog.
func Load(name string, opts ...catalog.Option) (*catalog.Catalog, error) {
	data, err := Raw(name)
	if err != nil {
		return nil, err
	}
	return catalog.Parse(data, catalog.FormatYAML, opts...)
}

// IsBuiltin reports whether name refers to an embedded catalog.
func IsBuiltin(name string) bool {
	_, err := files.ReadFile(name + ".yaml")
	return err == nil
}
