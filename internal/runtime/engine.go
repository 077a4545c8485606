// Package runtime implements the IVR session state machine.
//
// The engine is pure with respect to storage: it mutates the *domain.Session it is
// given and returns a Decision. Loading, locking and persisting sessions is the
// job of the session manager.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/catalog"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/intent"
)

// Engine is the core state machine runner.
type Engine struct {
	catalog    *catalog.Catalog
	classifier *intent.Classifier
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithClassifier sets the classifier used for speech input.
func WithClassifier(c *intent.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over a validated catalog. When no classifier is
// given, the catalog's intent table is used, falling back to the default table.
func NewEngine(c *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = intent.New(c.Intents())
	}
	return e
}

// Catalog returns the menu catalog driving the engine.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Classifier returns the speech classifier.
func (e *Engine) Classifier() *intent.Classifier {
	return e.classifier
}

// Hooks returns the registered lifecycle hooks.
func (e *Engine) Hooks() domain.LifecycleHooks {
	return e.hooks
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Start positions a fresh session at the root menu and renders its prompt.
func (e *Engine) Start(ctx context.Context, s *domain.Session) (domain.Decision, error) {
	root, err := e.resolve(s, domain.RootMenu)
	if err != nil {
		return domain.Decision{}, err
	}
	s.CurrentMenu = root.ID
	if len(s.Path) == 0 {
		s.Path = []string{root.ID}
	}
	s.Phase = domain.PhaseFor(root)

	e.emitMenuEnter(ctx, s.CallID, root.ID)
	return e.decide(ctx, domain.Decision{
		Kind:        domain.DecisionGreeting,
		CallID:      s.CallID,
		Menu:        root.ID,
		Prompt:      root.Prompt,
		ValidTokens: root.ValidTokens(),
	}), nil
}

func (e *Engine) resolve(s *domain.Session, menuID string) (*domain.MenuNode, error) {
	node, err := e.catalog.Resolve(menuID)
	if err != nil {
		fault := &InternalFault{CallID: s.CallID, Menu: menuID, Detail: "menu is not declared in the catalog"}
		e.logger.Error("internal consistency fault", "call_id", s.CallID, "menu", menuID, "err", err)
		return nil, fault
	}
	return node, nil
}

func (e *Engine) emitMenuEnter(ctx context.Context, callID, menuID string) {
	if e.hooks.OnMenuEnter != nil {
		e.hooks.OnMenuEnter(ctx, &domain.MenuEvent{
			Timestamp: e.now(),
			CallID:    callID,
			MenuID:    menuID,
		})
	}
}

func (e *Engine) decide(ctx context.Context, d domain.Decision) domain.Decision {
	if e.hooks.OnDecision != nil {
		e.hooks.OnDecision(ctx, &d)
	}
	e.logger.DebugContext(ctx, "decision", "call_id", d.CallID, "menu", d.Menu, "decision", d.Kind)
	return d
}
