package domain

import (
	"fmt"
	"sort"
)

// ActionKind enumerates what selecting an option does.
type ActionKind string

const (
	ActionGotoMenu      ActionKind = "goto_menu"
	ActionEndCall       ActionKind = "end_call"
	ActionTransferAgent ActionKind = "transfer_agent"
	ActionLookupRecord  ActionKind = "lookup_record"
)

// ParseActionKind maps a catalog action tag onto an ActionKind.
// "lookup_pnr" is accepted as a legacy spelling of lookup_record.
func ParseActionKind(tag string) (ActionKind, error) {
	switch ActionKind(tag) {
	case ActionGotoMenu, ActionEndCall, ActionTransferAgent, ActionLookupRecord:
		return ActionKind(tag), nil
	}
	if tag == "lookup_pnr" {
		return ActionLookupRecord, nil
	}
	return "", fmt.Errorf("unknown action %q", tag)
}

// Terminates reports whether the action ends the call when it completes.
func (k ActionKind) Terminates() bool {
	return k == ActionEndCall || k == ActionTransferAgent
}

// Option is the outcome bound to an input token within a menu.
type Option struct {
	Action  ActionKind `json:"action" yaml:"action"`
	Message string     `json:"message" yaml:"message"`
	// Target names the next menu. Set iff Action == goto_menu.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// CollectSpec declares that a menu accumulates keypad digits before dispatching options.
type CollectSpec struct {
	Length     int    `json:"length" yaml:"length"`
	Terminator string `json:"terminator" yaml:"terminator"`
}

// MenuNode is a single state of the IVR graph.
type MenuNode struct {
	ID      string            `json:"id" yaml:"id"`
	Prompt  string            `json:"prompt" yaml:"prompt"`
	Collect *CollectSpec      `json:"collect,omitempty" yaml:"collect,omitempty"`
	Options map[string]Option `json:"options" yaml:"options"`

	// Aliases maps intent labels onto option tokens so that speech input
	// shares the keypad option table.
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Collects reports whether the menu runs the digit-collection protocol.
func (n *MenuNode) Collects() bool {
	return n.Collect != nil && n.Collect.Length > 0
}

// Option returns the option bound to token, if any.
func (n *MenuNode) Option(token string) (Option, bool) {
	opt, ok := n.Options[token]
	return opt, ok
}

// ValidTokens returns the accepted tokens in a stable order.
func (n *MenuNode) ValidTokens() []string {
	tokens := make([]string, 0, len(n.Options))
	for t := range n.Options {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

// Targets returns the goto_menu targets of the node, sorted and deduplicated.
func (n *MenuNode) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, opt := range n.Options {
		if opt.Action == ActionGotoMenu && opt.Target != "" && !seen[opt.Target] {
			seen[opt.Target] = true
			out = append(out, opt.Target)
		}
	}
	sort.Strings(out)
	return out
}
