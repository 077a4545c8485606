// Package twilio adapts the session manager to Twilio Programmable Voice:
// webhooks rendered as TwiML and an outbound dialer over the REST API.
package twilio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/runner"
	"github.com/aretw0/callflow/pkg/session"
	"github.com/go-chi/chi/v5"
)

const (
	// DefaultVoice is the Polly voice used for <Say>.
	DefaultVoice = "Polly.Aditi"
	// DefaultAgentNumber receives transferred calls.
	DefaultAgentNumber = "+911234567890"

	holdMessage  = "Please hold while we connect you to an available customer service representative."
	waitMessage  = "Please wait while we look that up."
	errorMessage = "We are sorry, something went wrong. Goodbye."
)

// terminalStatuses are CallStatus values after which the call is gone.
var terminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// Handler serves the Twilio voice and status webhooks.
type Handler struct {
	manager     *session.Manager
	publicURL   string
	basePath    string
	voice       string
	agentNumber string
	logger      *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithPublicURL makes action and redirect URLs absolute.
func WithPublicURL(u string) Option {
	return func(h *Handler) {
		h.publicURL = strings.TrimRight(u, "/")
	}
}

// WithBasePath sets the path the handler is mounted at (default "/twilio").
func WithBasePath(p string) Option {
	return func(h *Handler) {
		h.basePath = "/" + strings.Trim(p, "/")
	}
}

// WithVoice sets the <Say> voice.
func WithVoice(v string) Option {
	return func(h *Handler) {
		h.voice = v
	}
}

// WithAgentNumber sets the number transfer_agent dials.
func WithAgentNumber(n string) Option {
	return func(h *Handler) {
		h.agentNumber = n
	}
}

// WithLogger configures a logger for webhook handling.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates the webhook router. Mount it at the base path.
func NewHandler(m *session.Manager, opts ...Option) http.Handler {
	h := &Handler{
		manager:     m,
		basePath:    "/twilio",
		voice:       DefaultVoice,
		agentNumber: DefaultAgentNumber,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Post("/voice", h.Voice)
	r.Post("/status", h.Status)
	return r
}

// VoiceURL is the absolute (or root-relative) URL of the voice webhook.
func (h *Handler) VoiceURL() string {
	return h.publicURL + h.basePath + "/voice"
}

// Voice handles POST /voice. The first webhook of a call opens its session;
// later ones carry Digits (fed one key at a time) or SpeechResult.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	callSID := r.PostForm.Get("CallSid")
	if callSID == "" {
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}

	digits := r.PostForm.Get("Digits") + r.PostForm.Get("FinishedOnKey")
	speech := strings.TrimSpace(r.PostForm.Get("SpeechResult"))

	h.logger.DebugContext(ctx, "voice webhook", "call_id", callSID, "digits", digits, "speech", speech)

	sess, err := h.manager.Get(ctx, callSID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		_, greeting, err := h.manager.Start(ctx, domain.CallStart{CallID: callSID, Caller: r.PostForm.Get("From")})
		if err != nil {
			h.fail(w, r, callSID, err)
			return
		}
		h.write(w, h.render(greeting))
		return
	case err != nil:
		h.fail(w, r, callSID, err)
		return
	}

	if digits == "" && speech == "" {
		// Gather timed out: replay the current menu.
		h.write(w, h.replay(sess))
		return
	}

	var d domain.Decision
	if speech != "" {
		d, err = h.handle(ctx, domain.InputEvent{CallID: callSID, Token: speech, Speech: true})
	} else {
		d, err = h.feedDigits(ctx, callSID, digits)
	}
	switch {
	case errors.Is(err, domain.ErrLookupInFlight):
		h.write(w, new(Response).Add(h.say(waitMessage), h.redirect()))
	case errors.Is(err, domain.ErrSessionNotFound):
		h.write(w, new(Response).Add(Hangup{}))
	case err != nil:
		h.fail(w, r, callSID, err)
	default:
		h.write(w, h.render(d))
	}
}

// feedDigits applies each keypad character as its own token. It stops at the
// first decision the caller must hear, so keys after a rejection are dropped.
func (h *Handler) feedDigits(ctx context.Context, callID, digits string) (domain.Decision, error) {
	var d domain.Decision
	for _, key := range digits {
		var err error
		d, err = h.handle(ctx, domain.InputEvent{CallID: callID, Token: string(key)})
		if err != nil {
			return d, err
		}
		if d.Kind != domain.DecisionCollecting && d.Kind != domain.DecisionMenuChanged {
			break
		}
	}
	return d, nil
}

func (h *Handler) handle(ctx context.Context, ev domain.InputEvent) (domain.Decision, error) {
	ev, err := runner.SanitizeEvent(ev)
	if err != nil {
		return domain.Decision{}, err
	}
	return h.manager.Handle(ctx, ev)
}

// Status handles POST /status, abandoning calls the network has torn down.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	callSID := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")

	if callSID != "" && terminalStatuses[status] {
		_, err := h.manager.Hangup(r.Context(), callSID, domain.ReasonAbandoned)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.WarnContext(r.Context(), "status hangup failed", "call_id", callSID, "status", status, "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// render maps a decision onto TwiML.
func (h *Handler) render(d domain.Decision) *Response {
	resp := new(Response)
	switch d.Kind {
	case domain.DecisionCallEnded:
		return resp.Add(h.say(d.Message), Hangup{})
	case domain.DecisionTransferred:
		if d.Message != "" {
			resp.Add(h.say(d.Message))
		}
		return resp.Add(h.say(holdMessage), Dial{Number: h.agentNumber})
	case domain.DecisionRecordFound:
		if d.Message != "" {
			resp.Add(h.say(d.Message))
		}
		return resp.Add(h.say(d.Record.Summary()), Hangup{})
	case domain.DecisionCollecting:
		// Keep listening without echoing each digit back.
		return resp.Add(h.gather(d.Menu, ""), h.redirect())
	}

	if d.Message != "" {
		resp.Add(h.say(d.Message))
	}
	return resp.Add(h.gather(d.Menu, d.Prompt), h.redirect())
}

// replay re-prompts the caller's current menu.
func (h *Handler) replay(s *domain.Session) *Response {
	prompt := ""
	if node, err := h.manager.Engine().Catalog().Resolve(s.CurrentMenu); err == nil {
		prompt = node.Prompt
	}
	return new(Response).Add(h.gather(s.CurrentMenu, prompt), h.redirect())
}

func (h *Handler) gather(menuID, prompt string) Gather {
	g := Gather{
		Input:     "dtmf speech",
		NumDigits: 1,
		Action:    h.VoiceURL(),
		Method:    http.MethodPost,
	}
	if node, err := h.manager.Engine().Catalog().Resolve(menuID); err == nil && node.Collects() {
		g.Input = "dtmf"
		g.NumDigits = 0
		g.FinishOnKey = node.Collect.Terminator
		g.Timeout = 10
	} else {
		g.SpeechTimeout = "auto"
	}
	if prompt != "" {
		g.Say = []Say{h.say(prompt)}
	}
	return g
}

func (h *Handler) say(text string) Say {
	return Say{Voice: h.voice, Text: text}
}

func (h *Handler) redirect() Redirect {
	return Redirect{Method: http.MethodPost, URL: h.VoiceURL()}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, callID string, err error) {
	h.logger.ErrorContext(r.Context(), "voice webhook failed", "call_id", callID, "err", err)
	h.write(w, new(Response).Add(h.say(errorMessage), Hangup{}))
}

func (h *Handler) write(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/xml")
	if _, err := resp.WriteTo(w); err != nil {
		h.logger.Error("twiml encode failed", "err", err)
	}
}
