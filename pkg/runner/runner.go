package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/session"
)

const (
	speechPrefix = "say "
	hangupCmd    = "hangup"
	keypadChars  = "0123456789*#"
)

// Runner plays one simulated call against a session manager.
type Runner struct {
	Manager *session.Manager
	Handler IOHandler
	Logger  *slog.Logger
	Caller  string
	CallID  string
}

// NewRunner creates a runner with a text handler on stdio by default.
func NewRunner(m *session.Manager, opts ...Option) *Runner {
	r := &Runner{
		Manager: m,
		Logger:  logging.NewNop(),
		Caller:  "simulator",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run starts the call and feeds input until the call terminates, the input
// ends, or ctx is done. It returns the last decision.
func (r *Runner) Run(ctx context.Context) (domain.Decision, error) {
	s, last, err := r.Manager.Start(ctx, domain.CallStart{Caller: r.Caller, CallID: r.CallID})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to start call: %w", err)
	}
	callID := s.CallID
	r.Logger.Debug("simulator call started", "call_id", callID)

	if err := r.Handler.Output(ctx, last); err != nil {
		return last, err
	}

	for {
		line, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				r.hangup(callID)
				return last, nil
			}
			return last, err
		}

		events := ParseLine(callID, line)
		if events == nil {
			if strings.EqualFold(strings.TrimSpace(line), hangupCmd) {
				r.hangup(callID)
				_ = r.Handler.SystemOutput(ctx, "call abandoned")
				return last, nil
			}
			continue
		}

		for _, ev := range events {
			d, err := r.Manager.Handle(ctx, ev)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					_ = r.Handler.SystemOutput(ctx, "call is no longer live")
					return last, nil
				}
				_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("error: %v", err))
				break
			}
			last = d
			if err := r.Handler.Output(ctx, d); err != nil {
				return last, err
			}
			if d.Terminated {
				return last, nil
			}
		}
	}
}

func (r *Runner) hangup(callID string) {
	// The caller's context may already be canceled; hang up regardless.
	if _, err := r.Manager.Hangup(context.Background(), callID, domain.ReasonAbandoned); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		r.Logger.Warn("failed to hang up simulated call", "call_id", callID, "err", err)
	}
}

// ParseLine turns one simulator line into input events. A line of keypad
// keys becomes one event per key; anything else is one utterance. Blank lines
// and the hangup command yield nil.
func ParseLine(callID, line string) []domain.InputEvent {
	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, hangupCmd) {
		return nil
	}

	if rest, ok := cutPrefixFold(line, speechPrefix); ok {
		return []domain.InputEvent{{CallID: callID, Token: strings.TrimSpace(rest), Speech: true}}
	}

	if strings.Trim(line, keypadChars) == "" {
		events := make([]domain.InputEvent, 0, len(line))
		for _, c := range line {
			events = append(events, domain.InputEvent{CallID: callID, Token: string(c)})
		}
		return events
	}

	return []domain.InputEvent{{CallID: callID, Token: line, Speech: true}}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
