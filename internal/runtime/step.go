package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
)

const (
	msgInvalidInput   = "Invalid input. Please try again."
	msgInvalidFormat  = "The number you entered is not valid. Please try again."
	msgRecordNotFound = "We could not find a booking with that number. Please try again."
)

// keypadKeys are the tokens that feed a digit collection.
const keypadKeys = "0123456789*"

// LookupRequest asks the caller of Step to resolve a collected reference
// outside of any lock and hand the result back via CompleteLookup.
type LookupRequest struct {
	CallID    string
	Menu      string
	Reference string
	// Length is the reference length declared by the collecting menu, 0 if none.
	Length  int
	Message string
}

// Step applies one input event to s.
//
// Digit collection takes precedence over option dispatch. When the selected
// option is lookup_record, the session enters the resolving phase and a
// LookupRequest is returned alongside a zero Decision.
func (e *Engine) Step(ctx context.Context, s *domain.Session, ev domain.InputEvent) (domain.Decision, *LookupRequest, error) {
	if s.Phase.Kind == domain.PhaseResolving {
		return domain.Decision{}, nil, domain.ErrLookupInFlight
	}

	node, err := e.resolve(s, s.CurrentMenu)
	if err != nil {
		return domain.Decision{}, nil, err
	}

	now := e.now()
	token := strings.TrimSpace(ev.Token)
	s.Inputs = append(s.Inputs, domain.Input{Token: ev.Token, Speech: ev.Speech, At: now})
	s.UpdatedAt = now

	// Sessions persisted before a catalog change may carry a stale phase.
	if node.Collects() && s.Phase.Kind != domain.PhaseCollecting {
		s.Phase = domain.PhaseFor(node)
	}

	var label string
	if ev.Speech {
		label = string(e.classifier.Classify(ev.Token))
		token = label
		if mapped, ok := node.Aliases[label]; ok {
			token = mapped
		}
	} else if e.collects(node, s, token) {
		if len(s.Phase.Buffer) >= s.Phase.Length {
			// Overlong reference: never resolve a prefix of what was keyed.
			s.Phase = domain.PhaseFor(node)
			return e.decide(ctx, domain.Decision{
				Kind:        domain.DecisionLookupFailed,
				CallID:      s.CallID,
				Menu:        node.ID,
				Prompt:      node.Prompt,
				Message:     msgInvalidFormat,
				ValidTokens: node.ValidTokens(),
			}), nil, nil
		}
		s.Phase.Buffer += token
		return e.decide(ctx, domain.Decision{
			Kind:     domain.DecisionCollecting,
			CallID:   s.CallID,
			Menu:     node.ID,
			Buffer:   s.Phase.Buffer,
			Complete: len(s.Phase.Buffer) >= s.Phase.Length,
		}), nil, nil
	}

	opt, ok := node.Option(token)
	if !ok {
		return e.decide(ctx, domain.Decision{
			Kind:        domain.DecisionInvalidInput,
			CallID:      s.CallID,
			Menu:        node.ID,
			Prompt:      node.Prompt,
			Message:     msgInvalidInput,
			Buffer:      s.Phase.Buffer,
			ValidTokens: node.ValidTokens(),
			Intent:      label,
		}), nil, nil
	}
	if ev.Speech {
		s.LastIntent = label
	}

	switch opt.Action {
	case domain.ActionGotoMenu:
		target, err := e.resolve(s, opt.Target)
		if err != nil {
			return domain.Decision{}, nil, err
		}
		s.CurrentMenu = target.ID
		s.Path = append(s.Path, target.ID)
		s.Phase = domain.PhaseFor(target)
		e.emitMenuEnter(ctx, s.CallID, target.ID)
		return e.decide(ctx, domain.Decision{
			Kind:        domain.DecisionMenuChanged,
			CallID:      s.CallID,
			Menu:        target.ID,
			Prompt:      target.Prompt,
			Message:     opt.Message,
			ValidTokens: target.ValidTokens(),
			Intent:      label,
		}), nil, nil

	case domain.ActionEndCall:
		return e.decide(ctx, domain.Decision{
			Kind:       domain.DecisionCallEnded,
			CallID:     s.CallID,
			Menu:       node.ID,
			Message:    opt.Message,
			Intent:     label,
			Terminated: true,
		}), nil, nil

	case domain.ActionTransferAgent:
		return e.decide(ctx, domain.Decision{
			Kind:       domain.DecisionTransferred,
			CallID:     s.CallID,
			Menu:       node.ID,
			Message:    opt.Message,
			Intent:     label,
			Terminated: true,
		}), nil, nil

	case domain.ActionLookupRecord:
		req := &LookupRequest{
			CallID:    s.CallID,
			Menu:      node.ID,
			Reference: s.Phase.Buffer,
			Message:   opt.Message,
		}
		if node.Collects() {
			req.Length = node.Collect.Length
		}
		s.Phase = domain.Phase{
			Kind:       domain.PhaseResolving,
			Buffer:     s.Phase.Buffer,
			Length:     s.Phase.Length,
			Terminator: s.Phase.Terminator,
		}
		return domain.Decision{}, req, nil
	}

	return domain.Decision{}, nil, &InternalFault{
		CallID: s.CallID,
		Menu:   node.ID,
		Detail: fmt.Sprintf("option %q has unknown action %q", token, opt.Action),
	}
}

// collects reports whether token is a keypad key for the digit buffer of the
// current menu. The caller checks the buffer for overflow.
func (e *Engine) collects(node *domain.MenuNode, s *domain.Session, token string) bool {
	if !node.Collects() || s.Phase.Kind != domain.PhaseCollecting {
		return false
	}
	return len(token) == 1 && token != s.Phase.Terminator && strings.Contains(keypadKeys, token)
}

// CompleteLookup applies the resolver outcome of req to s.
//
// A found record terminates the call. ErrInvalidFormat and ErrRecordNotFound
// clear the buffer and keep the call live. Any other error restores the phase
// as it was before the lookup and is returned unchanged.
func (e *Engine) CompleteLookup(ctx context.Context, s *domain.Session, req LookupRequest, rec *domain.Record, resolveErr error) (domain.Decision, error) {
	if s.Phase.Kind != domain.PhaseResolving || s.CurrentMenu != req.Menu || s.Phase.Buffer != req.Reference {
		return domain.Decision{}, errStaleLookup
	}

	node, err := e.resolve(s, s.CurrentMenu)
	if err != nil {
		return domain.Decision{}, err
	}
	s.UpdatedAt = e.now()

	collected := domain.PhaseFor(node)
	collected.Buffer = req.Reference

	switch {
	case resolveErr == nil && rec != nil:
		s.Phase = collected
		return e.decide(ctx, domain.Decision{
			Kind:       domain.DecisionRecordFound,
			CallID:     s.CallID,
			Menu:       node.ID,
			Message:    req.Message,
			Buffer:     req.Reference,
			Record:     rec,
			Terminated: true,
		}), nil

	case resolveErr == nil:
		resolveErr = domain.ErrRecordNotFound
		fallthrough

	case errors.Is(resolveErr, domain.ErrInvalidFormat), errors.Is(resolveErr, domain.ErrRecordNotFound):
		s.Phase = domain.PhaseFor(node)
		msg := msgInvalidFormat
		if errors.Is(resolveErr, domain.ErrRecordNotFound) {
			msg = msgRecordNotFound
		}
		return e.decide(ctx, domain.Decision{
			Kind:        domain.DecisionLookupFailed,
			CallID:      s.CallID,
			Menu:        node.ID,
			Prompt:      node.Prompt,
			Message:     msg,
			ValidTokens: node.ValidTokens(),
		}), nil

	default:
		s.Phase = collected
		return domain.Decision{}, fmt.Errorf("lookup %s for call %s: %w", req.Reference, s.CallID, resolveErr)
	}
}
