package dsl

import (
	"maps"

	"github.com/aretw0/callflow/pkg/domain"
)

// MenuBuilder provides a fluent API for configuring a menu.
type MenuBuilder struct {
	node domain.MenuNode
}

// Prompt sets the text played when the caller enters the menu.
func (m *MenuBuilder) Prompt(text string) *MenuBuilder {
	m.node.Prompt = text
	return m
}

// Goto binds token to a move into target.
func (m *MenuBuilder) Goto(token, target, message string) *MenuBuilder {
	return m.option(token, domain.Option{Action: domain.ActionGotoMenu, Target: target, Message: message})
}

// End binds token to ending the call with message.
func (m *MenuBuilder) End(token, message string) *MenuBuilder {
	return m.option(token, domain.Option{Action: domain.ActionEndCall, Message: message})
}

// Transfer binds token to a transfer to a live agent.
func (m *MenuBuilder) Transfer(token, message string) *MenuBuilder {
	return m.option(token, domain.Option{Action: domain.ActionTransferAgent, Message: message})
}

// Lookup binds token to resolving the collected digits as a record reference.
// It is normally the terminator of a Collect menu.
func (m *MenuBuilder) Lookup(token, message string) *MenuBuilder {
	return m.option(token, domain.Option{Action: domain.ActionLookupRecord, Message: message})
}

// Collect makes the menu accumulate length digits, closed by terminator.
func (m *MenuBuilder) Collect(length int, terminator string) *MenuBuilder {
	m.node.Collect = &domain.CollectSpec{Length: length, Terminator: terminator}
	return m
}

// Alias routes the intent label to the option bound to token.
func (m *MenuBuilder) Alias(label, token string) *MenuBuilder {
	if m.node.Aliases == nil {
		m.node.Aliases = make(map[string]string)
	}
	m.node.Aliases[label] = token
	return m
}

func (m *MenuBuilder) option(token string, opt domain.Option) *MenuBuilder {
	m.node.Options[token] = opt
	return m
}

// Build returns a copy of the underlying domain.MenuNode.
// This is primarily used by the Builder, but exposed for advanced usage.
func (m *MenuBuilder) Build() domain.MenuNode {
	node := m.node
	node.Options = maps.Clone(m.node.Options)
	node.Aliases = maps.Clone(m.node.Aliases)
	if m.node.Collect != nil {
		c := *m.node.Collect
		node.Collect = &c
	}
	return node
}
