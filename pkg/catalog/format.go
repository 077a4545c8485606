package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a catalog document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// intentsKey is the reserved top-level key holding the classifier table.
const intentsKey = "intents"

// FormatFromPath picks the format from the file extension; YAML is the default.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// MenuDefinition is the external shape of one menu.
type MenuDefinition struct {
	Prompt  string                      `mapstructure:"prompt"`
	Collect *CollectDefinition          `mapstructure:"collect"`
	Options map[string]OptionDefinition `mapstructure:"options"`
	Aliases map[string]string           `mapstructure:"aliases"`
}

// CollectDefinition is the external shape of a digit collection.
type CollectDefinition struct {
	Length     int    `mapstructure:"length"`
	Terminator string `mapstructure:"terminator"`
}

// OptionDefinition is the external shape of an option.
type OptionDefinition struct {
	Action  string `mapstructure:"action"`
	Message string `mapstructure:"message"`
	Target  string `mapstructure:"target"`
}

// ToNode converts the definition into a domain node.
func (d MenuDefinition) ToNode(id string) (domain.MenuNode, error) {
	node := domain.MenuNode{
		ID:      id,
		Prompt:  strings.TrimSpace(d.Prompt),
		Options: make(map[string]domain.Option, len(d.Options)),
		Aliases: d.Aliases,
	}
	if d.Collect != nil {
		node.Collect = &domain.CollectSpec{Length: d.Collect.Length, Terminator: d.Collect.Terminator}
	}
	for token, o := range d.Options {
		kind, err := domain.ParseActionKind(o.Action)
		if err != nil {
			return domain.MenuNode{}, fmt.Errorf("menu %q option %q: %w", id, token, err)
		}
		node.Options[token] = domain.Option{Action: kind, Message: o.Message, Target: o.Target}
	}
	return node, nil
}

// Parse decodes a catalog document and validates it.
func Parse(data []byte, format Format, opts ...Option) (*Catalog, error) {
	var raw map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse json catalog: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	nodes, rules, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if rules != nil {
		opts = append([]Option{WithIntents(rules)}, opts...)
	}
	return New(nodes, opts...)
}

// Decode converts a generic document into nodes and an optional intent table.
func Decode(raw map[string]any) ([]domain.MenuNode, []intent.Rule, error) {
	var rules []intent.Rule
	if v, ok := raw[intentsKey]; ok {
		if err := decodeStrict(v, &rules); err != nil {
			return nil, nil, fmt.Errorf("failed to decode intents: %w", err)
		}
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		if id != intentsKey {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	nodes := make([]domain.MenuNode, 0, len(ids))
	for _, id := range ids {
		var def MenuDefinition
		if err := decodeStrict(raw[id], &def); err != nil {
			return nil, nil, fmt.Errorf("failed to decode menu %q: %w", id, err)
		}
		node, err := def.ToNode(id)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rules, nil
}

func decodeStrict(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// LoadFile reads and parses a catalog file.
func LoadFile(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data, FormatFromPath(path), opts...)
}
