package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flightCatalog() *Builder {
	b := New()

	b.Main().
		Prompt("Press 1 for flight status. Press 9 for an agent. Press 3 to hang up.").
		Goto("1", "flight_status", "Flight Status selected.").
		Transfer("9", "Transferring to agent.").
		End("3", "Goodbye.").
		Alias("check_status", "1")

	b.Add("flight_status").
		Prompt("Enter your 6 digit PNR followed by the hash key. Press 0 to go back.").
		Collect(6, "#").
		Lookup("#", "Looking up your PNR...").
		Goto("0", domain.RootMenu, "Going back.")

	return b
}

func TestBuilder_Nodes(t *testing.T) {
	nodes := flightCatalog().Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, domain.RootMenu, nodes[0].ID, "declaration order is kept")

	main := nodes[0]
	assert.Equal(t, domain.Option{Action: domain.ActionGotoMenu, Target: "flight_status", Message: "Flight Status selected."}, main.Options["1"])
	assert.Equal(t, domain.ActionTransferAgent, main.Options["9"].Action)
	assert.Equal(t, domain.ActionEndCall, main.Options["3"].Action)
	assert.Equal(t, map[string]string{"check_status": "1"}, main.Aliases)
	assert.Nil(t, main.Collect)

	status := nodes[1]
	require.NotNil(t, status.Collect)
	assert.Equal(t, domain.CollectSpec{Length: 6, Terminator: "#"}, *status.Collect)
	assert.Equal(t, domain.ActionLookupRecord, status.Options["#"].Action)
}

func TestBuilder_AddReturnsExisting(t *testing.T) {
	b := New()
	b.Add("main").Prompt("first")
	b.Add("main").End("1", "bye")

	nodes := b.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "first", nodes[0].Prompt)
	assert.Contains(t, nodes[0].Options, "1")
}

func TestBuilder_BuildIsolated(t *testing.T) {
	b := New()
	mb := b.Main().Prompt("x").End("1", "bye")

	built := mb.Build()
	mb.End("2", "later")
	assert.NotContains(t, built.Options, "2", "built nodes do not share maps with the builder")
}

func TestBuilder_Catalog(t *testing.T) {
	c, err := flightCatalog().Catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"flight_status", "main"}, c.IDs())
	assert.False(t, c.Root().Collects())
}

func TestBuilder_CatalogValidation(t *testing.T) {
	b := New()
	b.Main().Prompt("x").Goto("1", "nowhere", "")

	_, err := b.Catalog()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nowhere")
}

func TestBuilder_Build(t *testing.T) {
	src, err := flightCatalog().Build()
	require.NoError(t, err)

	nodes, err := src.LoadMenus(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}
