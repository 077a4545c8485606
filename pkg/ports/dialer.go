package ports

import "context"

// DialRequest asks the telephony provider to call a number and connect it to the IVR.
type DialRequest struct {
	To string `json:"to"`
	// From overrides the configured caller ID.
	From string `json:"from,omitempty"`
	// URL is the webhook the provider fetches once the call is answered.
	URL string `json:"url,omitempty"`
}

// DialResult describes the call the provider created.
type DialResult struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

// Dialer places outbound calls.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (*DialResult, error)
}
