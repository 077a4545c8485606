package runner

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
)

// IOHandler defines the strategy for interacting with the simulated caller.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a decision to the caller.
	Output(ctx context.Context, d domain.Decision) error

	// Input reads the next line from the caller.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (errors, status updates).
	// This is distinct from decision rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer turns markdown into terminal output.
type ContentRenderer func(string) (string, error)
