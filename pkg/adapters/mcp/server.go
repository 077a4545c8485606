// Package mcp exposes the IVR to Model Context Protocol clients, so an agent
// can place and drive simulated calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/callflow"
	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/internal/presentation/graph"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/runner"
	"github.com/aretw0/callflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	catalogURI = "callflow://catalog"
	graphURI   = "callflow://graph"
)

// StartCallArgs are the start_call tool arguments.
type StartCallArgs struct {
	Caller string `json:"caller"`
	CallID string `json:"call_id,omitempty"`
}

// SendInputArgs are the send_input tool arguments.
type SendInputArgs struct {
	CallID string `json:"call_id"`
	Input  string `json:"input"`
	Speech bool   `json:"speech,omitempty"`
}

// CallArgs identify a live call.
type CallArgs struct {
	CallID string `json:"call_id"`
}

// ClassifyArgs are the classify_utterance tool arguments.
type ClassifyArgs struct {
	Utterance string `json:"utterance"`
}

// StepResponse aligns with the HTTP API and provides a unified structure across adapters.
type StepResponse struct {
	Decision domain.Decision `json:"decision" jsonschema_description:"The outcome of the step"`
	Session  *domain.Session `json:"session,omitempty" jsonschema_description:"The live session after the step, absent once the call ended"`
}

// ClassifyResponse is the classify_utterance result.
type ClassifyResponse struct {
	Label string `json:"label" jsonschema_description:"Intent label, or unknown"`
}

// Server wraps the session manager and exposes it as an MCP Server.
type Server struct {
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(m *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		manager:   m,
		mcpServer: server.NewMCPServer("callflow-mcp", strings.TrimSpace(callflow.Version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_call",
		mcp.WithDescription("Place a simulated call into the IVR. Returns the greeting and the new session."),
		mcp.WithString("caller", mcp.Description("Caller number (optional)")),
		mcp.WithString("call_id", mcp.Description("Call identifier; generated when omitted")),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleStartCall))

	s.mcpServer.AddTool(mcp.NewTool("send_input",
		mcp.WithDescription("Send one keypad key (0-9, *, #) or, with speech=true, an utterance to a live call."),
		mcp.WithString("call_id", mcp.Required(), mcp.Description("Live call identifier")),
		mcp.WithString("input", mcp.Required(), mcp.Description("Keypad token or utterance")),
		mcp.WithBoolean("speech", mcp.Description("Treat input as speech to classify")),
		mcp.WithOutputSchema[StepResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendInput))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the state of a live call: menu, path, inputs and collection buffer."),
		mcp.WithString("call_id", mcp.Required(), mcp.Description("Live call identifier")),
	), mcp.NewStructuredToolHandler(s.handleGetSession))

	s.mcpServer.AddTool(mcp.NewTool("hangup_call",
		mcp.WithDescription("Hang up a live call. It is recorded in history as abandoned."),
		mcp.WithString("call_id", mcp.Required(), mcp.Description("Live call identifier")),
	), mcp.NewStructuredToolHandler(s.handleHangup))

	s.mcpServer.AddTool(mcp.NewTool("classify_utterance",
		mcp.WithDescription("Classify an utterance with the IVR's keyword intent table."),
		mcp.WithString("utterance", mcp.Required(), mcp.Description("Free text")),
		mcp.WithOutputSchema[ClassifyResponse](),
	), mcp.NewStructuredToolHandler(s.handleClassify))
}

// Handler methods for structured tools

func (s *Server) handleStartCall(ctx context.Context, _ mcp.CallToolRequest, args StartCallArgs) (StepResponse, error) {
	sess, greeting, err := s.manager.Start(ctx, domain.CallStart{Caller: args.Caller, CallID: args.CallID})
	if err != nil {
		return StepResponse{}, fmt.Errorf("start call failed: %w", err)
	}
	return StepResponse{Decision: greeting, Session: sess}, nil
}

func (s *Server) handleSendInput(ctx context.Context, _ mcp.CallToolRequest, args SendInputArgs) (StepResponse, error) {
	ev, err := runner.SanitizeEvent(domain.InputEvent{CallID: args.CallID, Token: args.Input, Speech: args.Speech})
	if err != nil {
		s.logger.Warn("MCP send_input: Input rejected", "err", err, "size", len(args.Input))
		return StepResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	d, err := s.manager.Handle(ctx, ev)
	if err != nil {
		return StepResponse{}, fmt.Errorf("send input failed: %w", err)
	}

	resp := StepResponse{Decision: d}
	if !d.Terminated {
		sess, err := s.manager.Get(ctx, args.CallID)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return StepResponse{}, err
		}
		resp.Session = sess
	}
	return resp, nil
}

func (s *Server) handleGetSession(ctx context.Context, _ mcp.CallToolRequest, args CallArgs) (*domain.Session, error) {
	sess, err := s.manager.Get(ctx, args.CallID)
	if err != nil {
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return sess, nil
}

func (s *Server) handleHangup(ctx context.Context, _ mcp.CallToolRequest, args CallArgs) (*domain.HistoryEntry, error) {
	entry, err := s.manager.Hangup(ctx, args.CallID, domain.ReasonAbandoned)
	if err != nil {
		return nil, fmt.Errorf("hangup failed: %w", err)
	}
	return entry, nil
}

func (s *Server) handleClassify(_ context.Context, _ mcp.CallToolRequest, args ClassifyArgs) (ClassifyResponse, error) {
	label := s.manager.Engine().Classifier().Classify(args.Utterance)
	return ClassifyResponse{Label: string(label)}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Menu Catalog",
		mcp.WithResourceDescription("The validated IVR menus"),
		mcp.WithMIMEType("application/json"),
	), s.readCatalog)

	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Menu Graph",
		mcp.WithResourceDescription("Mermaid flowchart of the IVR menus"),
		mcp.WithMIMEType("text/plain"),
	), s.readGraph)
}

func (s *Server) readCatalog(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jsonBytes, err := json.Marshal(s.manager.Engine().Catalog().Nodes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      catalogURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

func (s *Server) readGraph(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      graphURI,
			MIMEType: "text/plain",
			Text:     graph.GenerateMermaid(s.manager.Engine().Catalog().Nodes(), nil),
		},
	}, nil
}
