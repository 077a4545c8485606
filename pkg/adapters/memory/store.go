package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use. The mutex is held only for the map and log mutations.
type Store struct {
	mu      sync.RWMutex
	live    map[string]*domain.Session
	history []domain.HistoryEntry
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		live: make(map[string]*domain.Session),
	}
}

// Create adds a live session.
func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.live[copied.CallID]; exists {
		return domain.ErrSessionExists
	}
	s.live[copied.CallID] = copied
	return nil
}

// Load returns a copy of a live session.
func (s *Store) Load(ctx context.Context, callID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.live[callID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	// Copy on read so callers can't mutate store state by pointer
	return session.Clone(), nil
}

// Save replaces a live session.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	copied := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[copied.CallID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.live[copied.CallID] = copied
	return nil
}

// Terminate moves a live session to the history log.
func (s *Store) Terminate(ctx context.Context, callID string, reason domain.TerminationReason, at time.Time) (*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.live[callID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	entry := domain.NewHistoryEntry(session, reason, at)
	s.history = append(s.history, *entry)
	delete(s.live, callID)

	// The stored entry and the returned one must not share slices.
	ret := *entry
	ret.Session = *entry.Session.Clone()
	return &ret, nil
}

// Count returns live and history sizes.
func (s *Store) Count(ctx context.Context) (domain.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Counts{Live: len(s.live), History: len(s.history)}, nil
}

// List returns live call IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.live))
	for id := range s.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// History returns the tail of the history log.
func (s *Store) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.history) {
		start = len(s.history) - limit
	}
	out := make([]domain.HistoryEntry, 0, len(s.history)-start)
	for _, h := range s.history[start:] {
		h.Session = *h.Session.Clone()
		out = append(out, h)
	}
	return out, nil
}
