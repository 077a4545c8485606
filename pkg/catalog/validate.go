package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
)

// ValidationError aggregates every integrity violation found in a catalog.
// errors.Is(err, domain.ErrUnknownMenu) holds when any violation is a dangling menu reference.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Errorf(format, args...))
}

// HasErrors reports whether any problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Problems) > 0
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid catalog: found %d errors:\n- %s", len(msgs), strings.Join(msgs, "\n- "))
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

func (c *Catalog) validate(verr *ValidationError) {
	if len(c.ids) == 0 {
		verr.add("catalog declares no menus")
		return
	}
	if _, ok := c.nodes[domain.RootMenu]; !ok {
		verr.add("root menu %q: %w", domain.RootMenu, domain.ErrUnknownMenu)
	}

	for _, id := range c.ids {
		node := c.nodes[id]

		if node.Collect != nil && node.Collect.Length <= 0 {
			verr.add("menu %q: collect length must be positive, got %d", id, node.Collect.Length)
		}

		for _, token := range sortedKeys(node.Options) {
			opt := node.Options[token]
			if token == "" {
				verr.add("menu %q: option with empty token", id)
			}
			switch opt.Action {
			case domain.ActionGotoMenu:
				if opt.Target == "" {
					verr.add("menu %q option %q: goto_menu requires a target", id, token)
				} else if _, ok := c.nodes[opt.Target]; !ok {
					verr.add("menu %q option %q: target %q: %w", id, token, opt.Target, domain.ErrUnknownMenu)
				}
			case domain.ActionEndCall, domain.ActionTransferAgent, domain.ActionLookupRecord:
				if opt.Target != "" {
					verr.add("menu %q option %q: target is only valid on goto_menu", id, token)
				}
			default:
				verr.add("menu %q option %q: unknown action %q", id, token, opt.Action)
			}
		}

		for _, label := range sortedKeys(node.Aliases) {
			token := node.Aliases[label]
			if _, ok := node.Options[token]; !ok {
				verr.add("menu %q alias %q: token %q is not an option", id, label, token)
			}
		}
	}
}

// lint returns non-fatal findings.
func (c *Catalog) lint() []string {
	var warnings []string

	reachable := c.reachable()
	for _, id := range c.ids {
		if !reachable[id] {
			warnings = append(warnings, fmt.Sprintf("menu %q is unreachable from %q", id, domain.RootMenu))
		}
	}

	for _, id := range c.ids {
		node := c.nodes[id]
		if len(node.Options) == 0 {
			warnings = append(warnings, fmt.Sprintf("menu %q declares no options", id))
		}
		if node.Collects() {
			if _, ok := node.Options[node.Collect.Terminator]; !ok {
				warnings = append(warnings, fmt.Sprintf("menu %q collects digits but has no option for terminator %q", id, node.Collect.Terminator))
			}
		}
		for _, token := range sortedKeys(node.Options) {
			if node.Options[token].Action == domain.ActionLookupRecord && !node.Collects() {
				warnings = append(warnings, fmt.Sprintf("menu %q option %q: lookup_record outside a collecting menu always sees an empty buffer", id, token))
			}
		}
	}
	return warnings
}

// reachable runs a BFS over goto targets from the root menu.
func (c *Catalog) reachable() map[string]bool {
	visited := make(map[string]bool)
	if _, ok := c.nodes[domain.RootMenu]; !ok {
		return visited
	}
	queue := []string{domain.RootMenu}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		node, ok := c.nodes[current]
		if !ok {
			continue
		}
		for _, target := range node.Targets() {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	return visited
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidationError reports whether err carries catalog integrity problems.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
