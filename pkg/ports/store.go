package ports

import (
	"context"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
)

// SessionStore owns every Session record: the live set and the append-only history log.
// Implementations must be safe for concurrent use and must never hand out references
// to their internal records.
type SessionStore interface {
	// Create adds a live session.
	// Returns domain.ErrSessionExists if the call ID is already live.
	Create(ctx context.Context, s *domain.Session) error

	// Load returns a copy of a live session.
	// Returns domain.ErrSessionNotFound if the session is not live.
	Load(ctx context.Context, callID string) (*domain.Session, error)

	// Save replaces a live session.
	// Returns domain.ErrSessionNotFound if the session is not live.
	Save(ctx context.Context, s *domain.Session) error

	// Terminate stamps the termination time, appends a frozen copy to the history
	// log and removes the session from the live set, as one atomic operation.
	// Returns domain.ErrSessionNotFound if the session is not live.
	Terminate(ctx context.Context, callID string, reason domain.TerminationReason, at time.Time) (*domain.HistoryEntry, error)

	// Count returns the number of live sessions and of history entries.
	Count(ctx context.Context) (domain.Counts, error)

	// List returns the live call IDs in ascending order.
	List(ctx context.Context) ([]string, error)

	// History returns up to limit of the most recent entries, oldest first.
	// A limit <= 0 returns the whole log.
	History(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}
