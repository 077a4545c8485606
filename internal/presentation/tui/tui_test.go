package tui_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/aretw0/callflow/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3\n")

	out := buf.String()
	assert.Contains(t, out, "|_|\\___/")
	assert.Contains(t, out, "v1.2.3")
	assert.NotContains(t, out, "\x1b[", "non-terminal writers get no escape codes")
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer()
	out, err := render("> Welcome to the airline")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "Welcome"))
}

func TestIsInteractive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsInteractive(f))
	assert.False(t, tui.IsInteractive(nil))
}
