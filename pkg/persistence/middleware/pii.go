package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
)

const (
	mask = "***"
	// callerVisible is how many trailing characters of the caller survive masking.
	callerVisible = 4
)

// DefaultPIIPatterns match digit runs (card, account and phone numbers) and
// e-mail addresses inside speech transcripts.
var DefaultPIIPatterns = []string{
	`\d{3,}`,
	`[\w.+-]+@[\w-]+\.[\w.]+`,
}

type piiMiddleware struct {
	ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the caller address and
// redacts matches of the patterns in speech transcripts before a session is
// written. No patterns means DefaultPIIPatterns.
func NewPIIMiddleware(patternStrings []string) Middleware {
	if len(patternStrings) == 0 {
		patternStrings = DefaultPIIPatterns
	}
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{SessionStore: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Create(ctx context.Context, s *domain.Session) error {
	return m.SessionStore.Create(ctx, m.mask(s))
}

func (m *piiMiddleware) Save(ctx context.Context, s *domain.Session) error {
	return m.SessionStore.Save(ctx, m.mask(s))
}

// mask works on a clone so the session held by the caller is left untouched.
func (m *piiMiddleware) mask(s *domain.Session) *domain.Session {
	cloned := s.Clone()
	cloned.Caller = MaskCaller(s.Caller)
	for i, in := range cloned.Inputs {
		if in.Speech {
			cloned.Inputs[i].Token = m.redact(in.Token)
		}
	}
	return cloned
}

func (m *piiMiddleware) redact(text string) string {
	for _, p := range m.patterns {
		text = p.ReplaceAllString(text, mask)
	}
	return text
}

// MaskCaller hides all but the last four characters of a caller address.
// Already masked values are returned unchanged.
func MaskCaller(caller string) string {
	if caller == "" || strings.HasPrefix(caller, "*") {
		return caller
	}
	runes := []rune(caller)
	if len(runes) <= callerVisible {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-callerVisible) + string(runes[len(runes)-callerVisible:])
}
