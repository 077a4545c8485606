package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_LoadMenus(t *testing.T) {
	src, err := memory.NewSource(
		domain.MenuNode{ID: "main", Prompt: "Welcome"},
		domain.MenuNode{ID: "booking", Prompt: "Book"},
	)
	require.NoError(t, err)

	menus, err := src.LoadMenus(context.Background())
	require.NoError(t, err)
	require.Len(t, menus, 2)
	assert.Equal(t, "booking", menus[0].ID)
	assert.Equal(t, "main", menus[1].ID)
}

func TestSource_RejectsBadInput(t *testing.T) {
	_, err := memory.NewSource(domain.MenuNode{Prompt: "no id"})
	assert.Error(t, err)

	_, err = memory.NewSource(domain.MenuNode{ID: "main"}, domain.MenuNode{ID: "main"})
	assert.Error(t, err)
}
