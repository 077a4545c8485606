package domain

// DecisionKind tags the outcome of a step.
type DecisionKind string

const (
	DecisionMenuChanged  DecisionKind = "menu_changed"
	DecisionCollecting   DecisionKind = "collecting"
	DecisionInvalidInput DecisionKind = "invalid_input"
	DecisionCallEnded    DecisionKind = "call_ended"
	DecisionTransferred  DecisionKind = "transferred"
	DecisionRecordFound  DecisionKind = "record_found"
	DecisionLookupFailed DecisionKind = "lookup_failed"

	// DecisionGreeting is produced on call start, carrying the root prompt.
	DecisionGreeting DecisionKind = "greeting"
)

// Decision is what the transport renders after a step.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	CallID string       `json:"call_id"`

	// Menu is the menu the caller is in after the step.
	Menu   string `json:"menu"`
	Prompt string `json:"prompt,omitempty"`

	// Message is the option message (end, transfer, lookup) or a re-prompt hint.
	Message string `json:"message,omitempty"`

	// Buffer echoes the digit collection buffer.
	Buffer   string `json:"buffer,omitempty"`
	Complete bool   `json:"complete,omitempty"`

	// ValidTokens lists the accepted tokens when Kind == invalid_input.
	ValidTokens []string `json:"valid_tokens,omitempty"`

	Intent string  `json:"intent,omitempty"`
	Record *Record `json:"record,omitempty"`

	// Terminated is set when the decision removed the session from the live set.
	Terminated bool `json:"terminated"`
}

// TerminationReason maps terminating decisions to the history reason.
func (d Decision) TerminationReason() (TerminationReason, bool) {
	switch d.Kind {
	case DecisionCallEnded:
		return ReasonEnded, true
	case DecisionTransferred:
		return ReasonTransferred, true
	case DecisionRecordFound:
		return ReasonRecordFound, true
	}
	return "", false
}
