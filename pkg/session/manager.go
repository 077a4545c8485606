package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/runtime"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/lookup"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// DefaultCompletionTimeout bounds applying a lookup outcome once the request
// that triggered it has gone away.
const DefaultCompletionTimeout = 5 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store    ports.SessionStore
	engine   *runtime.Engine
	resolver ports.RecordResolver

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker      ports.DistributedLocker // Optional distributed locker
	lockTTL     time.Duration
	idleTimeout time.Duration
	completion  time.Duration
	newID       func() string
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithResolver sets the record resolver used by lookup_record options.
func WithResolver(r ports.RecordResolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// WithIdleTimeout enables expiry of calls without input for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

// WithCompletionTimeout bounds the store work that applies a lookup outcome.
func WithCompletionTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.completion = d
	}
}

// WithIDGenerator overrides UUID call ids.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a new Session Manager over a store and an engine.
func NewManager(store ports.SessionStore, engine *runtime.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		engine:     engine,
		resolver:   lookup.NewMock(0),
		locks:      make(map[string]*lockEntry),
		lockTTL:    DefaultLockTTL,
		completion: DefaultCompletionTimeout,
		newID:      uuid.NewString,
		logger:     logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(callID) after unlocking.
func (m *Manager) acquire(callID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		entry = &lockEntry{}
		m.locks[callID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, callID)
	}
}

// WithLock executes a function while holding the lock for the call.
func (m *Manager) WithLock(ctx context.Context, callID string, fn func(context.Context) error) error {
	entry := m.acquire(callID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(callID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, callID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"call_id", callID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Engine returns the state machine.
func (m *Manager) Engine() *runtime.Engine {
	return m.engine
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// IdleTimeout returns the configured idle expiry, zero when disabled.
func (m *Manager) IdleTimeout() time.Duration {
	return m.idleTimeout
}

// Start opens a session for a new call and returns it with the greeting.
// A call id is generated when ev.CallID is empty.
func (m *Manager) Start(ctx context.Context, ev domain.CallStart) (*domain.Session, domain.Decision, error) {
	callID := ev.CallID
	if callID == "" {
		callID = m.newID()
	}

	s := domain.NewSession(callID, ev.Caller, m.engine.Now())
	greeting, err := m.engine.Start(ctx, s)
	if err != nil {
		return nil, domain.Decision{}, err
	}

	err = m.WithLock(ctx, callID, func(ctx context.Context) error {
		return m.store.Create(ctx, s)
	})
	if err != nil {
		return nil, domain.Decision{}, err
	}

	m.logger.InfoContext(ctx, "call started", "call_id", callID, "caller", ev.Caller)
	if hook := m.engine.Hooks().OnCallStart; hook != nil {
		hook(ctx, &domain.CallEvent{Timestamp: s.CreatedAt, CallID: callID, Caller: ev.Caller, Menu: s.CurrentMenu})
	}
	return s.Clone(), greeting, nil
}

// Handle applies one input event to its call.
func (m *Manager) Handle(ctx context.Context, ev domain.InputEvent) (domain.Decision, error) {
	var (
		decision domain.Decision
		req      *runtime.LookupRequest
	)

	err := m.WithLock(ctx, ev.CallID, func(ctx context.Context) error {
		s, err := m.store.Load(ctx, ev.CallID)
		if err != nil {
			return err
		}
		decision, req, err = m.engine.Step(ctx, s, ev)
		if err != nil {
			return err
		}
		if req != nil {
			// Persist the resolving phase so concurrent input is refused.
			return m.store.Save(ctx, s)
		}
		return m.commit(ctx, s, decision)
	})
	if err != nil {
		m.logStepError(ctx, ev.CallID, err)
		return domain.Decision{}, err
	}
	if req == nil {
		return decision, nil
	}

	rec, resolveErr := m.resolve(ctx, *req)

	// The session is parked in the resolving phase: leave it only through
	// CompleteLookup, even when the caller's context is already done.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.completion)
	defer cancel()

	err = m.WithLock(cctx, ev.CallID, func(ctx context.Context) error {
		s, err := m.store.Load(ctx, ev.CallID)
		if err != nil {
			return err // Hung up or expired while resolving.
		}
		decision, err = m.engine.CompleteLookup(ctx, s, *req, rec, resolveErr)
		if err != nil {
			if saveErr := m.store.Save(ctx, s); saveErr != nil {
				return errors.Join(err, saveErr)
			}
			return err
		}
		return m.commit(ctx, s, decision)
	})
	if err != nil {
		m.logStepError(ctx, ev.CallID, err)
		return domain.Decision{}, err
	}
	return decision, nil
}

func (m *Manager) resolve(ctx context.Context, req runtime.LookupRequest) (*domain.Record, error) {
	start := time.Now()
	var (
		rec *domain.Record
		err error
	)
	if la, ok := m.resolver.(ports.LengthAwareResolver); ok && req.Length > 0 {
		rec, err = la.ResolveLength(ctx, req.Reference, req.Length)
	} else {
		rec, err = m.resolver.Resolve(ctx, req.Reference)
	}

	duration := time.Since(start)
	m.logger.DebugContext(ctx, "record lookup", "call_id", req.CallID, "menu", req.Menu, "duration", duration, "err", err)
	if hook := m.engine.Hooks().OnLookup; hook != nil {
		hook(ctx, &domain.LookupEvent{
			Timestamp: start,
			CallID:    req.CallID,
			Buffer:    req.Reference,
			Duration:  duration,
			Err:       err,
		})
	}
	return rec, err
}

// commit persists s, or moves it to history when the decision terminates the call.
// Must be called with the call lock held.
func (m *Manager) commit(ctx context.Context, s *domain.Session, d domain.Decision) error {
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	reason, ok := d.TerminationReason()
	if !ok || !d.Terminated {
		return nil
	}
	_, err := m.terminate(ctx, s.CallID, reason)
	return err
}

func (m *Manager) terminate(ctx context.Context, callID string, reason domain.TerminationReason) (*domain.HistoryEntry, error) {
	entry, err := m.store.Terminate(ctx, callID, reason, m.engine.Now())
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "call ended", "call_id", callID, "menu", entry.Session.CurrentMenu, "reason", reason)
	if hook := m.engine.Hooks().OnCallEnd; hook != nil {
		hook(ctx, &domain.CallEvent{
			Timestamp: entry.EndedAt,
			CallID:    callID,
			Caller:    entry.Session.Caller,
			Menu:      entry.Session.CurrentMenu,
			Reason:    reason,
		})
	}
	return entry, nil
}

func (m *Manager) logStepError(ctx context.Context, callID string, err error) {
	switch {
	case runtime.IsInternalFault(err):
		m.logger.ErrorContext(ctx, "step aborted", "call_id", callID, "err", err)
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrLookupInFlight):
		m.logger.DebugContext(ctx, "step rejected", "call_id", callID, "err", err)
	default:
		m.logger.WarnContext(ctx, "step failed", "call_id", callID, "err", err)
	}
}

// Hangup terminates a live call on behalf of the caller or the transport.
func (m *Manager) Hangup(ctx context.Context, callID string, reason domain.TerminationReason) (*domain.HistoryEntry, error) {
	var entry *domain.HistoryEntry
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		var err error
		entry, err = m.terminate(ctx, callID, reason)
		return err
	})
	return entry, err
}

// Lookup resolves ref directly, outside any call.
func (m *Manager) Lookup(ctx context.Context, ref string) (*domain.Record, error) {
	rec, err := m.resolver.Resolve(ctx, ref)
	if err == nil && rec == nil {
		err = domain.ErrRecordNotFound
	}
	return rec, err
}

// Get returns a copy of a live session.
func (m *Manager) Get(ctx context.Context, callID string) (*domain.Session, error) {
	return m.store.Load(ctx, callID)
}

// List returns live call ids.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// History returns the last limit terminated calls, all when limit <= 0.
func (m *Manager) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	return m.store.History(ctx, limit)
}

// Counts returns the health surface.
func (m *Manager) Counts(ctx context.Context) (domain.Counts, error) {
	return m.store.Count(ctx)
}
