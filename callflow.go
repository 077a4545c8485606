package callflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/callflow/catalogs"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/runtime"
	loamAdapter "github.com/aretw0/callflow/pkg/adapters/loam"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/catalog"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/callflow/pkg/session"
)

// Engine is the high-level entry point for the callflow library.
// It wires a catalog, an engine and a session manager behind a simplified API.
type Engine struct {
	Name string

	catalog *catalog.Catalog
	manager *session.Manager

	source      ports.CatalogSource
	store       ports.SessionStore
	locker      ports.DistributedLocker
	resolver    ports.RecordResolver
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	idleTimeout time.Duration
	clock       func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSource injects a custom CatalogSource, bypassing catalog reference resolution.
func WithSource(src ports.CatalogSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithStore sets the session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker adds a distributed lock around every session step.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithResolver sets the record resolver used by lookup options.
func WithResolver(r ports.RecordResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIdleTimeout expires sessions that saw no input for d. Zero disables expiry.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.idleTimeout = d
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// New initializes a callflow Engine.
//
// ref names the catalog: a built-in catalog ("airline", "railway"), a YAML or
// JSON catalog file, or a directory of menu documents read through Loam.
// If WithSource is provided, ref is only used as a label and may be empty.
func New(ref string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if ref != "" {
		eng.Name = strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
		eng.logger = eng.logger.With("catalog", eng.Name)
	}

	c, err := eng.loadCatalog(context.Background(), ref)
	if err != nil {
		return nil, err
	}
	eng.catalog = c
	for _, w := range c.Warnings() {
		eng.logger.Warn("catalog warning", "detail", w)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.clock != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(eng.clock))
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	managerOpts := []session.Option{
		session.WithLogger(eng.logger),
		session.WithIdleTimeout(eng.idleTimeout),
	}
	if eng.resolver != nil {
		managerOpts = append(managerOpts, session.WithResolver(eng.resolver))
	}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	eng.manager = session.NewManager(eng.store, runtime.NewEngine(c, runtimeOpts...), managerOpts...)

	return eng, nil
}

type catalogLoader interface {
	LoadCatalog(ctx context.Context, opts ...catalog.Option) (*catalog.Catalog, error)
}

func (e *Engine) loadCatalog(ctx context.Context, ref string) (*catalog.Catalog, error) {
	opts := []catalog.Option{catalog.WithLogger(e.logger)}

	if e.source != nil {
		if l, ok := e.source.(catalogLoader); ok {
			return l.LoadCatalog(ctx, opts...)
		}
		nodes, err := e.source.LoadMenus(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load menus: %w", err)
		}
		return catalog.New(nodes, opts...)
	}

	if ref == "" {
		return nil, fmt.Errorf("catalog reference is required when no custom source is provided")
	}
	if catalogs.IsBuiltin(ref) {
		return catalogs.Load(ref, opts...)
	}

	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("catalog %q is neither built-in nor readable: %w", ref, err)
	}
	if !info.IsDir() {
		return catalog.LoadFile(ref, opts...)
	}

	loader, err := loamAdapter.Open(ref)
	if err != nil {
		return nil, err
	}
	e.source = loader
	return loader.LoadCatalog(ctx, opts...)
}

// Start opens a call and returns the session with its greeting.
func (e *Engine) Start(ctx context.Context, caller, callID string) (*domain.Session, domain.Decision, error) {
	return e.manager.Start(ctx, domain.CallStart{Caller: caller, CallID: callID})
}

// Press feeds a keypad token to a live call.
func (e *Engine) Press(ctx context.Context, callID, token string) (domain.Decision, error) {
	return e.manager.Handle(ctx, domain.InputEvent{CallID: callID, Token: token})
}

// Say feeds an utterance to a live call; it is classified before dispatch.
func (e *Engine) Say(ctx context.Context, callID, utterance string) (domain.Decision, error) {
	return e.manager.Handle(ctx, domain.InputEvent{CallID: callID, Token: utterance, Speech: true})
}

// Hangup removes a live call as abandoned by the caller.
func (e *Engine) Hangup(ctx context.Context, callID string) (*domain.HistoryEntry, error) {
	return e.manager.Hangup(ctx, callID, domain.ReasonAbandoned)
}

// Classify runs the engine's intent classifier without touching any session.
func (e *Engine) Classify(utterance string) intent.Label {
	return e.manager.Engine().Classifier().Classify(utterance)
}

// Catalog returns the validated menu catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Manager exposes the session manager for transport adapters.
func (e *Engine) Manager() *session.Manager {
	return e.manager
}

// Source returns the catalog source, or nil for built-in and file catalogs.
func (e *Engine) Source() ports.CatalogSource {
	return e.source
}
