package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/callflow/catalogs"
	"github.com/aretw0/callflow/pkg/catalog"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gotoOpt(target string) domain.Option {
	return domain.Option{Action: domain.ActionGotoMenu, Target: target}
}

func endOpt(msg string) domain.Option {
	return domain.Option{Action: domain.ActionEndCall, Message: msg}
}

func TestNew_Valid(t *testing.T) {
	c, err := catalog.New([]domain.MenuNode{
		{ID: "main", Prompt: "root", Options: map[string]domain.Option{"1": gotoOpt("sub"), "2": endOpt("bye")}},
		{ID: "sub", Prompt: "sub", Options: map[string]domain.Option{"0": gotoOpt("main")}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"main", "sub"}, c.IDs())
	assert.Empty(t, c.Warnings())

	node, err := c.Resolve("sub")
	require.NoError(t, err)
	assert.Equal(t, "sub", node.Prompt)

	_, err = c.Resolve("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownMenu)
}

func TestNew_DefaultsTerminator(t *testing.T) {
	c, err := catalog.New([]domain.MenuNode{
		{ID: "main", Collect: &domain.CollectSpec{Length: 4}, Options: map[string]domain.Option{
			"#": {Action: domain.ActionLookupRecord},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTerminator, c.Root().Collect.Terminator)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		nodes       []domain.MenuNode
		unknownMenu bool
		contains    string
	}{
		{
			name:     "empty",
			nodes:    nil,
			contains: "no menus",
		},
		{
			name:        "missing root",
			nodes:       []domain.MenuNode{{ID: "other", Options: map[string]domain.Option{"1": endOpt("")}}},
			unknownMenu: true,
			contains:    `root menu "main"`,
		},
		{
			name:        "dangling target",
			nodes:       []domain.MenuNode{{ID: "main", Options: map[string]domain.Option{"1": gotoOpt("ghost")}}},
			unknownMenu: true,
			contains:    `target "ghost"`,
		},
		{
			name:     "goto without target",
			nodes:    []domain.MenuNode{{ID: "main", Options: map[string]domain.Option{"1": gotoOpt("")}}},
			contains: "requires a target",
		},
		{
			name: "target on end_call",
			nodes: []domain.MenuNode{{ID: "main", Options: map[string]domain.Option{
				"1": {Action: domain.ActionEndCall, Target: "main"},
			}}},
			contains: "only valid on goto_menu",
		},
		{
			name:     "unknown action",
			nodes:    []domain.MenuNode{{ID: "main", Options: map[string]domain.Option{"1": {Action: "dance"}}}},
			contains: `unknown action "dance"`,
		},
		{
			name:     "empty token",
			nodes:    []domain.MenuNode{{ID: "main", Options: map[string]domain.Option{"": endOpt("")}}},
			contains: "empty token",
		},
		{
			name:     "bad collect length",
			nodes:    []domain.MenuNode{{ID: "main", Collect: &domain.CollectSpec{Length: 0}, Options: map[string]domain.Option{"#": endOpt("")}}},
			contains: "collect length must be positive",
		},
		{
			name: "alias to undeclared token",
			nodes: []domain.MenuNode{{ID: "main", Options: map[string]domain.Option{"1": endOpt("")},
				Aliases: map[string]string{"refund": "4"}}},
			contains: `alias "refund"`,
		},
		{
			name: "duplicate id",
			nodes: []domain.MenuNode{
				{ID: "main", Options: map[string]domain.Option{"1": endOpt("")}},
				{ID: "main", Options: map[string]domain.Option{"1": endOpt("")}},
			},
			contains: "more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.New(tt.nodes)
			require.Error(t, err)
			assert.True(t, catalog.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, tt.unknownMenu, errors.Is(err, domain.ErrUnknownMenu))
		})
	}
}

func TestNew_AggregatesProblems(t *testing.T) {
	_, err := catalog.New([]domain.MenuNode{
		{ID: "main", Options: map[string]domain.Option{"1": gotoOpt("a"), "2": gotoOpt("b")}},
	})
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}

func TestNew_Warnings(t *testing.T) {
	c, err := catalog.New([]domain.MenuNode{
		{ID: "main", Options: map[string]domain.Option{"1": endOpt("bye")}},
		{ID: "island", Options: map[string]domain.Option{"0": gotoOpt("main")}},
		{ID: "pin", Collect: &domain.CollectSpec{Length: 4, Terminator: "*"}, Options: map[string]domain.Option{"#": {Action: domain.ActionLookupRecord}}},
	})
	require.NoError(t, err, "unreachable menus are not fatal")

	w := c.Warnings()
	assert.Contains(t, w, `menu "island" is unreachable from "main"`)
	assert.Contains(t, w, `menu "pin" is unreachable from "main"`)
	assert.Contains(t, w, `menu "pin" collects digits but has no option for terminator "*"`)
}

func TestNodes_AreCopies(t *testing.T) {
	c, err := catalogs.Load(catalogs.Airline)
	require.NoError(t, err)

	nodes := c.Nodes()
	require.Len(t, nodes, 3)
	require.Equal(t, "booking", nodes[0].ID)
	nodes[0].Options["0"] = endOpt("tampered")

	booking, err := c.Resolve("booking")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionGotoMenu, booking.Options["0"].Action)
}

const sampleYAML = `
intents:
  - label: refund
    keywords: [refund, money]
main:
  prompt: "Press 1 for help. Press 2 for status."
  options:
    "1": { action: transfer_agent, message: "Connecting." }
    "2": { action: goto_menu, target: status, message: "Status." }
  aliases:
    refund: "1"
status:
  prompt: "Enter your 4 digit code."
  collect: { length: 4 }
  options:
    "#": { action: lookup_pnr, message: "Checking." }
`

const sampleJSON = `{
  "main": {
    "prompt": "Press 1 for help. Press 2 for status.",
    "options": {
      "1": {"action": "transfer_agent", "message": "Connecting."},
      "2": {"action": "goto_menu", "target": "status", "message": "Status."}
    },
    "aliases": {"refund": "1"}
  },
  "status": {
    "prompt": "Enter your 4 digit code.",
    "collect": {"length": 4},
    "options": {"#": {"action": "lookup_record", "message": "Checking."}}
  },
  "intents": [{"label": "refund", "keywords": ["refund", "money"]}]
}`

func TestParse_YAMLAndJSONAgree(t *testing.T) {
	fromYAML, err := catalog.Parse([]byte(sampleYAML), catalog.FormatYAML)
	require.NoError(t, err)
	fromJSON, err := catalog.Parse([]byte(sampleJSON), catalog.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, fromYAML.Nodes(), fromJSON.Nodes())
	assert.Equal(t, fromYAML.Intents(), fromJSON.Intents())
	assert.Equal(t, []intent.Rule{{Label: "refund", Keywords: []string{"refund", "money"}}}, fromYAML.Intents())

	status, err := fromYAML.Resolve("status")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionLookupRecord, status.Options["#"].Action, "lookup_pnr is the legacy tag")
	assert.Equal(t, "#", status.Collect.Terminator)
}

func TestParse_Idempotent(t *testing.T) {
	data, err := catalogs.Raw(catalogs.Railway)
	require.NoError(t, err)

	a, err := catalog.Parse(data, catalog.FormatYAML)
	require.NoError(t, err)
	b, err := catalog.Parse(data, catalog.FormatYAML)
	require.NoError(t, err)

	for _, id := range a.IDs() {
		na, err := a.Resolve(id)
		require.NoError(t, err)
		nb, err := b.Resolve(id)
		require.NoError(t, err)
		assert.Equal(t, na, nb, id)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		format   catalog.Format
		contains string
	}{
		{"bad yaml", "main: [", catalog.FormatYAML, "parse yaml"},
		{"bad json", "{", catalog.FormatJSON, "parse json"},
		{"unknown field", "main:\n  promt: typo\n", catalog.FormatYAML, `decode menu "main"`},
		{"unknown action", "main:\n  options:\n    \"1\": {action: fly}\n", catalog.FormatYAML, `unknown action "fly"`},
		{"unsupported format", "", catalog.Format("toml"), "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "menus.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))

	c, err := catalog.LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "status"}, c.IDs())

	_, err = catalog.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read catalog")

	assert.Equal(t, catalog.FormatJSON, catalog.FormatFromPath("x.JSON"))
	assert.Equal(t, catalog.FormatYAML, catalog.FormatFromPath("x.yml"))
}
