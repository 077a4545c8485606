package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/callflow/catalogs"
	"github.com/aretw0/callflow/internal/runtime"
	httpAdapter "github.com/aretw0/callflow/pkg/adapters/http"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/callflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	got ports.DialRequest
	err error
}

func (f *fakeDialer) Dial(_ context.Context, req ports.DialRequest) (*ports.DialResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ports.DialResult{SID: "CA1", Status: "queued", To: req.To, From: "+1555"}, nil
}

func newServer(t *testing.T, opts ...httpAdapter.Option) (http.Handler, *session.Manager) {
	t.Helper()
	c, err := catalogs.Load(catalogs.Airline)
	require.NoError(t, err)
	m := session.NewManager(memory.NewStore(), runtime.NewEngine(c))
	return httpAdapter.NewHandler(m, opts...), m
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestGetHealth(t *testing.T) {
	h, m := newServer(t)
	_, _, err := m.Start(context.Background(), domain.CallStart{Caller: "+91"})
	require.NoError(t, err)

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decode[httpAdapter.Health](t, rr)
	assert.Equal(t, httpAdapter.Health{Status: "ok", LiveCalls: 1, TotalCalls: 0}, resp)
}

func TestGetInfo(t *testing.T) {
	h, _ := newServer(t)
	rr := do(t, h, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := decode[map[string]string](t, rr)
	assert.Equal(t, "callflow-http", resp["app"])
	assert.NotEmpty(t, resp["version"])
	assert.Equal(t, "0.1.0", resp["api_version"])
}

func TestOpenAPIDocument(t *testing.T) {
	doc, err := httpAdapter.GetSwagger()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/calls/{callID}/input"))

	h, _ := newServer(t)
	rr := do(t, h, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "openapi: 3.0.3")
}

func TestCallLifecycle(t *testing.T) {
	h, _ := newServer(t)

	rr := do(t, h, http.MethodPost, "/calls", domain.CallStart{Caller: "+911234", CallID: "call-http"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	greeting := decode[domain.Decision](t, rr)
	assert.Equal(t, domain.DecisionGreeting, greeting.Kind)
	assert.Equal(t, "call-http", greeting.CallID)
	assert.Contains(t, greeting.Prompt, "Welcome to Air India")

	rr = do(t, h, http.MethodPost, "/calls", domain.CallStart{CallID: "call-http"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/calls/call-http/input", httpAdapter.InputRequest{Token: "2"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "flight_status", decode[domain.Decision](t, rr).Menu)

	for _, d := range "123456" {
		rr = do(t, h, http.MethodPost, "/calls/call-http/input", httpAdapter.InputRequest{Token: string(d)})
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/calls/call-http", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sess := decode[domain.Session](t, rr)
	assert.Equal(t, "123456", sess.Phase.Buffer)

	rr = do(t, h, http.MethodPost, "/calls/call-http/input", httpAdapter.InputRequest{Token: "#"})
	require.Equal(t, http.StatusOK, rr.Code)
	final := decode[domain.Decision](t, rr)
	assert.Equal(t, domain.DecisionRecordFound, final.Kind)
	assert.True(t, final.Terminated)

	rr = do(t, h, http.MethodGet, "/calls/call-http", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[httpAdapter.ErrorResponse](t, rr).Error, "not found")

	rr = do(t, h, http.MethodGet, "/history?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[[]domain.HistoryEntry](t, rr)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonRecordFound, history[0].Reason)
}

func TestSpeechInput(t *testing.T) {
	h, m := newServer(t)
	_, _, err := m.Start(context.Background(), domain.CallStart{CallID: "speech"})
	require.NoError(t, err)

	rr := do(t, h, http.MethodPost, "/calls/speech/input", httpAdapter.InputRequest{Token: "I want to book a ticket", Speech: true})
	require.Equal(t, http.StatusOK, rr.Code)
	d := decode[domain.Decision](t, rr)
	assert.Equal(t, "booking", d.Menu)
	assert.Equal(t, "book_ticket", d.Intent)
}

func TestHangupAndList(t *testing.T) {
	h, m := newServer(t)
	for _, id := range []string{"a", "b"} {
		_, _, err := m.Start(context.Background(), domain.CallStart{CallID: id})
		require.NoError(t, err)
	}

	rr := do(t, h, http.MethodDelete, "/calls/a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.ReasonAbandoned, decode[domain.HistoryEntry](t, rr).Reason)

	rr = do(t, h, http.MethodGet, "/calls", nil)
	assert.Equal(t, []string{"b"}, decode[[]string](t, rr))

	rr = do(t, h, http.MethodDelete, "/calls/a", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBadRequests(t *testing.T) {
	h, _ := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/calls", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/calls/ghost/input", httpAdapter.InputRequest{Token: "1"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/calls/ghost/input", httpAdapter.InputRequest{Token: strings.Repeat("1", 5000)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/calls/ghost/input", httpAdapter.InputRequest{Token: "1 2"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRecord(t *testing.T) {
	h, m := newServer(t)

	rr := do(t, h, http.MethodGet, "/records/123456", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[domain.Record](t, rr)
	assert.Equal(t, "123456", rec.Reference)
	assert.Equal(t, "Hyderabad", rec.Origin)
	assert.Equal(t, "Delayed", rec.Status)

	rr = do(t, h, http.MethodGet, "/records/12ab", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	counts, err := m.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{}, counts, "record reads never open a call")
}

func TestCatalogEndpoints(t *testing.T) {
	h, m := newServer(t)

	rr := do(t, h, http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	nodes := decode[[]domain.MenuNode](t, rr)
	assert.Len(t, nodes, 3)

	_, _, err := m.Start(context.Background(), domain.CallStart{CallID: "g"})
	require.NoError(t, err)
	_, err = m.Handle(context.Background(), domain.InputEvent{CallID: "g", Token: "1"})
	require.NoError(t, err)

	rr = do(t, h, http.MethodGet, "/catalog/graph?call_id=g", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "graph TD")
	assert.Contains(t, rr.Body.String(), "class booking current;")

	rr = do(t, h, http.MethodGet, "/intents", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cancel_ticket")

	rr = do(t, h, http.MethodPost, "/classify", httpAdapter.ClassifyRequest{Utterance: "where is my flight"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "check_status", decode[map[string]string](t, rr)["label"])
}

func TestDialOut(t *testing.T) {
	t.Run("Not Configured", func(t *testing.T) {
		h, _ := newServer(t)
		rr := do(t, h, http.MethodPost, "/call/start", httpAdapter.DialRequest{To: "+91"})
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("Success", func(t *testing.T) {
		dialer := &fakeDialer{}
		h, _ := newServer(t, httpAdapter.WithDialer(dialer))
		rr := do(t, h, http.MethodPost, "/call/start", httpAdapter.DialRequest{To: "+919999"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "+919999", dialer.got.To)
		assert.Equal(t, "CA1", decode[ports.DialResult](t, rr).SID)
	})

	t.Run("Failure Is Structured And Stateless", func(t *testing.T) {
		dialer := &fakeDialer{err: errors.New("twilio: 401 authenticate")}
		h, m := newServer(t, httpAdapter.WithDialer(dialer))
		rr := do(t, h, http.MethodPost, "/call/start", httpAdapter.DialRequest{To: "+919999"})
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Equal(t, "twilio: 401 authenticate", decode[httpAdapter.ErrorResponse](t, rr).Error)

		counts, err := m.Counts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.Counts{}, counts)
	})

	t.Run("Missing To", func(t *testing.T) {
		h, _ := newServer(t, httpAdapter.WithDialer(&fakeDialer{}))
		rr := do(t, h, http.MethodPost, "/call/start", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCORSAndMounts(t *testing.T) {
	sub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("mounted")) })
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) })
	h, _ := newServer(t, httpAdapter.WithMount("/twilio", sub), httpAdapter.WithMetrics(metrics))

	rr := do(t, h, http.MethodOptions, "/calls", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = do(t, h, http.MethodGet, "/twilio/voice", nil)
	assert.Equal(t, "mounted", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, httpAdapter.StatusFor(domain.ErrSessionNotFound))
	assert.Equal(t, http.StatusConflict, httpAdapter.StatusFor(domain.ErrLookupInFlight))
	assert.Equal(t, http.StatusInternalServerError, httpAdapter.StatusFor(&runtime.InternalFault{CallID: "x"}))
}
