package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/aretw0/callflow/internal/runtime"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/callflow/pkg/runner"
	"github.com/aretw0/callflow/pkg/session"
	"github.com/go-chi/chi/v5"
	oapi "github.com/oapi-codegen/runtime"
)

// Server exposes a session manager as a JSON API.
type Server struct {
	Manager *session.Manager
	Dialer  ports.Dialer
	Metrics http.Handler
	Logger  *slog.Logger

	mounts []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithDialer enables POST /call/start.
func WithDialer(d ports.Dialer) Option {
	return func(s *Server) {
		s.Dialer = d
	}
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger configures request logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = l
	}
}

// WithMount attaches a sub-router (e.g. the telephony webhooks) under pattern.
func WithMount(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.mounts = append(s.mounts, mount{pattern, h})
	}
}

// NewHandler creates a new HTTP handler for the manager.
func NewHandler(m *session.Manager, opts ...Option) http.Handler {
	s := &Server{Manager: m, Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		spec, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			s.Logger.Error("Failed to load OpenAPI spec", "err", err)
			return
		}
		w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/calls", func(r chi.Router) {
		r.Get("/", s.ListCalls)
		r.Post("/", s.StartCall)
		r.Get("/{callID}", s.GetCall)
		r.Delete("/{callID}", s.HangupCall)
		r.Post("/{callID}/input", s.SendInput)
	})
	r.Get("/history", s.GetHistory)
	r.Get("/records/{ref}", s.GetRecord)

	r.Get("/catalog", s.GetCatalog)
	r.Get("/catalog/graph", s.GetCatalogGraph)
	r.Get("/intents", s.GetIntents)
	r.Post("/classify", s.Classify)

	r.Post("/call/start", s.DialOut)

	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	for _, mt := range s.mounts {
		r.Mount(mt.pattern, mt.handler)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>callflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// Health is the GET /health payload.
type Health struct {
	Status     string `json:"status"`
	LiveCalls  int    `json:"live_calls"`
	TotalCalls int    `json:"total_calls"`
}

// InputRequest is the POST /calls/{callID}/input body.
type InputRequest struct {
	Token  string `json:"token"`
	Speech bool   `json:"speech,omitempty"`
}

// ClassifyRequest is the POST /classify body.
type ClassifyRequest struct {
	Utterance string `json:"utterance"`
}

// DialRequest is the POST /call/start body.
type DialRequest struct {
	To string `json:"to"`
}

// ErrorResponse is the structured failure payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Manager.Counts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Health{Status: "ok", LiveCalls: counts.Live, TotalCalls: counts.History})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "callflow-http",
		"version":     strings.TrimSpace(callflow.Version),
		"api_version": apiVersion,
	})
}

// StartCall handles the POST /calls request.
func (s *Server) StartCall(w http.ResponseWriter, r *http.Request) {
	var body domain.CallStart
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}

	_, greeting, err := s.Manager.Start(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, greeting)
}

// ListCalls handles the GET /calls request.
func (s *Server) ListCalls(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetCall handles the GET /calls/{callID} request.
func (s *Server) GetCall(w http.ResponseWriter, r *http.Request) {
	callID, ok := s.callID(w, r)
	if !ok {
		return
	}
	sess, err := s.Manager.Get(r.Context(), callID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HangupCall handles the DELETE /calls/{callID} request.
func (s *Server) HangupCall(w http.ResponseWriter, r *http.Request) {
	callID, ok := s.callID(w, r)
	if !ok {
		return
	}
	entry, err := s.Manager.Hangup(r.Context(), callID, domain.ReasonAbandoned)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// SendInput handles the POST /calls/{callID}/input request.
func (s *Server) SendInput(w http.ResponseWriter, r *http.Request) {
	callID, ok := s.callID(w, r)
	if !ok {
		return
	}

	var body InputRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}

	// Sanitize Input (Global Policy)
	ev, err := runner.SanitizeEvent(domain.InputEvent{CallID: callID, Token: body.Token, Speech: body.Speech})
	if err != nil {
		s.badRequest(w, r, fmt.Sprintf("Invalid input: %v", err), err)
		return
	}

	decision, err := s.Manager.Handle(r.Context(), ev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// GetHistory handles the GET /history request.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if err := oapi.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		s.badRequest(w, r, fmt.Sprintf("Invalid format for parameter limit: %s", err), err)
		return
	}
	n := 0
	if limit != nil {
		if *limit < 0 {
			s.badRequest(w, r, "limit must not be negative", nil)
			return
		}
		n = *limit
	}

	entries, err := s.Manager.History(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetRecord handles the GET /records/{ref} request.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	var ref string
	err := oapi.BindStyledParameterWithOptions("simple", "ref", chi.URLParam(r, "ref"), &ref,
		oapi.BindStyledParameterOptions{ParamLocation: oapi.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.badRequest(w, r, fmt.Sprintf("Invalid format for parameter ref: %s", err), err)
		return
	}

	rec, err := s.Manager.Lookup(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetCatalog handles the GET /catalog request.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Manager.Engine().Catalog().Nodes())
}

// GetCatalogGraph handles the GET /catalog/graph request.
func (s *Server) GetCatalogGraph(w http.ResponseWriter, r *http.Request) {
	var callID *string
	if err := oapi.BindQueryParameter("form", true, false, "call_id", r.URL.Query(), &callID); err != nil {
		s.badRequest(w, r, fmt.Sprintf("Invalid format for parameter call_id: %s", err), err)
		return
	}

	var overlay *graph.GraphOverlay
	if callID != nil && *callID != "" {
		sess, err := s.Manager.Get(r.Context(), *callID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = graph.OverlayFor(sess)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(graph.GenerateMermaid(s.Manager.Engine().Catalog().Nodes(), overlay)))
}

// GetIntents handles the GET /intents request.
func (s *Server) GetIntents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Manager.Engine().Classifier().Rules())
}

// Classify handles the POST /classify request.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var body ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}
	label := s.Manager.Engine().Classifier().Classify(body.Utterance)
	writeJSON(w, http.StatusOK, map[string]string{"label": string(label)})
}

// DialOut handles the POST /call/start request. Failures never touch session state.
func (s *Server) DialOut(w http.ResponseWriter, r *http.Request) {
	if s.Dialer == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "outbound dialing is not configured"})
		return
	}

	var body DialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.To == "" {
		s.badRequest(w, r, "Invalid request body: 'to' is required", err)
		return
	}

	res, err := s.Dialer.Dial(r.Context(), ports.DialRequest{To: body.To})
	if err != nil {
		s.Logger.Warn("outbound dial failed", "to", body.To, "err", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// -- Helpers --

func (s *Server) callID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var callID string
	err := oapi.BindStyledParameterWithOptions("simple", "callID", chi.URLParam(r, "callID"), &callID,
		oapi.BindStyledParameterOptions{ParamLocation: oapi.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.badRequest(w, r, fmt.Sprintf("Invalid format for parameter callID: %s", err), err)
		return "", false
	}
	return callID, true
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLookupInFlight), errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8), errors.Is(err, runner.ErrInvalidKeypad),
		errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		level := slog.LevelWarn
		if runtime.IsInternalFault(err) {
			level = slog.LevelError
		}
		s.Logger.Log(r.Context(), level, "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.Logger.Debug("bad request", "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
