package domain

import (
	"context"
	"time"
)

// CallStart is the event that opens a session.
type CallStart struct {
	Caller string `json:"caller"`
	// CallID is optional; the session manager generates one when empty.
	CallID string `json:"call_id,omitempty"`
}

// InputEvent carries a keypad token or an utterance for a live call.
type InputEvent struct {
	CallID string `json:"call_id"`
	Token  string `json:"token"`
	Speech bool   `json:"speech,omitempty"`
}

// CallEvent is emitted when a call starts or ends.
type CallEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	CallID    string            `json:"call_id"`
	Caller    string            `json:"caller"`
	Menu      string            `json:"menu"`
	Reason    TerminationReason `json:"reason,omitempty"`
}

// MenuEvent is emitted when a call enters a menu.
type MenuEvent struct {
	Timestamp time.Time `json:"timestamp"`
	CallID    string    `json:"call_id"`
	MenuID    string    `json:"menu_id"`
}

// LookupEvent is emitted after a record resolver returns.
type LookupEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	CallID    string        `json:"call_id"`
	Buffer    string        `json:"buffer"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnCallStart func(context.Context, *CallEvent)
	OnCallEnd   func(context.Context, *CallEvent)
	OnMenuEnter func(context.Context, *MenuEvent)
	OnDecision  func(context.Context, *Decision)
	OnLookup    func(context.Context, *LookupEvent)
}
