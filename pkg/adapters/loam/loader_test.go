package loam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/callflow/internal/testutils"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var airlineDocs = map[string]string{
	"main.md": `---
options:
  "1": { action: goto_menu, target: booking, message: "Booking Enquiry selected." }
  "2": { action: goto_menu, target: flight_status, message: "Flight Status selected." }
  "9": { action: transfer_agent, message: "Transferring to agent." }
aliases:
  check_status: "2"
---
Welcome to Air India Airlines.
Press 1 for Booking Enquiry.`,
	"booking.md": `---
prompt: "Press 0 to go back."
options:
  "0": { action: goto_menu, target: main, message: "Going back to main menu." }
---
ignored body`,
	"flight_status.md": `---
collect: { length: 6, terminator: "#" }
options:
  "#": { action: lookup_pnr, message: "Looking up your PNR..." }
---
Please enter your 6 digit PNR followed by the hash key.`,
}

func TestLoader_LoadCatalog(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, tmpDir, airlineDocs)

	loader := New(loam.NewTypedRepository[MenuMetadata](repo))
	c, err := loader.LoadCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"booking", "flight_status", "main"}, c.IDs())

	root := c.Root()
	assert.Equal(t, "Welcome to Air India Airlines. Press 1 for Booking Enquiry.", root.Prompt)
	assert.Equal(t, "2", root.Aliases["check_status"])
	assert.Equal(t, domain.ActionTransferAgent, root.Options["9"].Action)

	booking, err := c.Resolve("booking")
	require.NoError(t, err)
	assert.Equal(t, "Press 0 to go back.", booking.Prompt, "front matter prompt wins over the body")

	status, err := c.Resolve("flight_status")
	require.NoError(t, err)
	require.True(t, status.Collects())
	assert.Equal(t, 6, status.Collect.Length)
	assert.Equal(t, domain.ActionLookupRecord, status.Options["#"].Action)
}

func TestLoader_IntentsDocument(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	docs := map[string]string{
		"main.md": `---
options:
  "9": { action: transfer_agent, message: "Transferring." }
aliases:
  talk_agent: "9"
---
Press 9.`,
		"intents.md": `---
intents:
  - label: talk_agent
    keywords: [operator]
---`,
	}
	testutils.WriteFiles(t, tmpDir, docs)

	loader := New(loam.NewTypedRepository[MenuMetadata](repo))
	c, err := loader.LoadCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"main"}, c.IDs())
	require.Len(t, c.Intents(), 1)
	assert.Equal(t, intent.TalkAgent, c.Intents()[0].Label)
}

func TestLoader_LoadMenus_InvalidAction(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, tmpDir, map[string]string{
		"main.md": `---
options:
  "1": { action: teleport }
---
Hi`,
	})

	loader := New(loam.NewTypedRepository[MenuMetadata](repo))
	_, err := loader.LoadMenus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestLoader_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, tmpDir, map[string]string{
		"main.md": `---
id: main
---
Explicit ID`,
		"main.json": `{ "id": "main" }`,
	})

	loader := New(loam.NewTypedRepository[MenuMetadata](repo))
	_, err := loader.LoadMenus(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLoader_SavedDocuments(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, core.Document{
		ID: "main.md",
		Content: `---
options:
  "1": { action: end_call, message: "Bye." }
---
Press 1 to hang up.`,
	}))

	loader := New(loam.NewTypedRepository[MenuMetadata](repo))
	nodes, err := loader.LoadMenus(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Press 1 to hang up.", nodes[0].Prompt)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for name, content := range airlineDocs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	loader, err := Open(dir)
	require.NoError(t, err)
	c, err := loader.LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.IDs(), 3)
}
