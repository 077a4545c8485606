package domain

import (
	"time"
)

// PhaseKind tags the sub-state a session is in within its current menu.
type PhaseKind string

const (
	// PhaseNavigating is normal option dispatch.
	PhaseNavigating PhaseKind = "navigating"
	// PhaseCollecting accumulates keypad digits into Phase.Buffer.
	PhaseCollecting PhaseKind = "collecting"
	// PhaseResolving means a record lookup for Phase.Buffer is in flight.
	PhaseResolving PhaseKind = "resolving"
)

// Phase is the tagged session sub-state. Buffer, Length and Terminator are
// only meaningful while collecting or resolving.
type Phase struct {
	Kind       PhaseKind `json:"kind"`
	Buffer     string    `json:"buffer,omitempty"`
	Length     int       `json:"length,omitempty"`
	Terminator string    `json:"terminator,omitempty"`
}

// Navigating returns the default phase.
func Navigating() Phase {
	return Phase{Kind: PhaseNavigating}
}

// Collecting returns an empty collection phase for spec.
func Collecting(spec CollectSpec) Phase {
	term := spec.Terminator
	if term == "" {
		term = DefaultTerminator
	}
	return Phase{Kind: PhaseCollecting, Length: spec.Length, Terminator: term}
}

// PhaseFor returns the phase a session enters when arriving at node.
func PhaseFor(node *MenuNode) Phase {
	if node != nil && node.Collects() {
		return Collecting(*node.Collect)
	}
	return Navigating()
}

// Input is a single raw event received by a session.
type Input struct {
	Token  string    `json:"token"`
	Speech bool      `json:"speech,omitempty"`
	At     time.Time `json:"at"`
}

// Session is the live state of one call.
type Session struct {
	CallID      string    `json:"call_id"`
	Caller      string    `json:"caller"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CurrentMenu string    `json:"current_menu"`

	// Path is append-only; Path[0] is always the root menu.
	Path   []string `json:"path"`
	Inputs []Input  `json:"inputs"`
	Phase  Phase    `json:"phase"`

	// LastIntent holds the last classified label that selected an option.
	LastIntent string `json:"last_intent,omitempty"`

	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// NewSession creates a session positioned at the root menu.
func NewSession(callID, caller string, now time.Time) *Session {
	return &Session{
		CallID:      callID,
		Caller:      caller,
		CreatedAt:   now,
		UpdatedAt:   now,
		CurrentMenu: RootMenu,
		Path:        []string{RootMenu},
		Inputs:      []Input{},
		Phase:       Navigating(),
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Path = append([]string(nil), s.Path...)
	c.Inputs = append([]Input(nil), s.Inputs...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// LastActivity is the time of the last input, or creation if none arrived.
func (s *Session) LastActivity() time.Time {
	if len(s.Inputs) > 0 {
		return s.Inputs[len(s.Inputs)-1].At
	}
	return s.CreatedAt
}

// TerminationReason records why a session left the live set.
type TerminationReason string

const (
	ReasonEnded       TerminationReason = "ended"
	ReasonTransferred TerminationReason = "transferred"
	ReasonRecordFound TerminationReason = "record_found"
	ReasonExpired     TerminationReason = "expired"
	ReasonAbandoned   TerminationReason = "abandoned"
)

// HistoryEntry is a frozen copy of a session taken at termination.
type HistoryEntry struct {
	Session Session           `json:"session"`
	EndedAt time.Time         `json:"ended_at"`
	Reason  TerminationReason `json:"reason"`
}

// NewHistoryEntry snapshots s. The entry shares no memory with s.
func NewHistoryEntry(s *Session, reason TerminationReason, at time.Time) *HistoryEntry {
	snap := s.Clone()
	snap.EndedAt = &at
	snap.UpdatedAt = at
	return &HistoryEntry{Session: *snap, EndedAt: at, Reason: reason}
}

// Counts is the health surface of a session store.
type Counts struct {
	Live    int `json:"live_calls"`
	History int `json:"total_calls"`
}
