package twilio_test

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aretw0/callflow/catalogs"
	"github.com/aretw0/callflow/internal/runtime"
	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/adapters/twilio"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twiml is a loose decoding of a TwiML document for assertions.
type twiml struct {
	Says []struct {
		Voice string `xml:"voice,attr"`
		Text  string `xml:",chardata"`
	} `xml:"Say"`
	Gather *struct {
		Input       string `xml:"input,attr"`
		NumDigits   int    `xml:"numDigits,attr"`
		FinishOnKey string `xml:"finishOnKey,attr"`
		Action      string `xml:"action,attr"`
		Says        []struct {
			Text string `xml:",chardata"`
		} `xml:"Say"`
	} `xml:"Gather"`
	Redirect string    `xml:"Redirect"`
	Dial     string    `xml:"Dial"`
	Hangup   *struct{} `xml:"Hangup"`
}

func newVoice(t *testing.T, opts ...twilio.Option) (http.Handler, *session.Manager) {
	t.Helper()
	c, err := catalogs.Load(catalogs.Airline)
	require.NoError(t, err)
	m := session.NewManager(memory.NewStore(), runtime.NewEngine(c))
	return twilio.NewHandler(m, opts...), m
}

func post(t *testing.T, h http.Handler, path string, form url.Values) (*httptest.ResponseRecorder, twiml) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var doc twiml
	if rr.Code == http.StatusOK {
		require.NoError(t, xml.Unmarshal(rr.Body.Bytes(), &doc), rr.Body.String())
	}
	return rr, doc
}

func form(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestVoice_FirstContactGreets(t *testing.T) {
	h, m := newVoice(t, twilio.WithPublicURL("https://ivr.example.com/"))

	rr, doc := post(t, h, "/voice", form("CallSid", "CA1", "From", "+911111"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml", rr.Header().Get("Content-Type"))

	require.NotNil(t, doc.Gather)
	assert.Equal(t, "dtmf speech", doc.Gather.Input)
	assert.Equal(t, 1, doc.Gather.NumDigits)
	assert.Equal(t, "https://ivr.example.com/twilio/voice", doc.Gather.Action)
	require.Len(t, doc.Gather.Says, 1)
	assert.Contains(t, doc.Gather.Says[0].Text, "Welcome to Air India")
	assert.Equal(t, "https://ivr.example.com/twilio/voice", doc.Redirect)

	sess, err := m.Get(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, "+911111", sess.Caller)
}

func TestVoice_MissingCallSid(t *testing.T) {
	h, _ := newVoice(t)
	rr, _ := post(t, h, "/voice", form("Digits", "1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVoice_TimeoutReplaysMenu(t *testing.T) {
	h, _ := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA2"))
	post(t, h, "/voice", form("CallSid", "CA2", "Digits", "1"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA2"))
	require.NotNil(t, doc.Gather)
	assert.Contains(t, doc.Gather.Says[0].Text, "Domestic Flights")
}

func TestVoice_EndCall(t *testing.T) {
	h, m := newVoice(t, twilio.WithVoice("alice"))
	post(t, h, "/voice", form("CallSid", "CA3"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA3", "Digits", "3"))
	require.Len(t, doc.Says, 1)
	assert.Equal(t, "alice", doc.Says[0].Voice)
	assert.Contains(t, doc.Says[0].Text, "Baggage Information")
	assert.NotNil(t, doc.Hangup)
	assert.Nil(t, doc.Gather)

	counts, err := m.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Live: 0, History: 1}, counts)
}

func TestVoice_Transfer(t *testing.T) {
	h, _ := newVoice(t, twilio.WithAgentNumber("+915550000"))
	post(t, h, "/voice", form("CallSid", "CA4"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA4", "Digits", "9"))
	assert.Equal(t, "+915550000", strings.TrimSpace(doc.Dial))
	require.NotEmpty(t, doc.Says)
	assert.Contains(t, doc.Says[len(doc.Says)-1].Text, "Please hold")
}

func TestVoice_InvalidInputReprompts(t *testing.T) {
	h, _ := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA5"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA5", "Digits", "", "FinishedOnKey", "#"))
	require.NotEmpty(t, doc.Says)
	assert.Equal(t, "Invalid input. Please try again.", doc.Says[0].Text)
	require.NotNil(t, doc.Gather)
	assert.Contains(t, doc.Gather.Says[0].Text, "Welcome to Air India")
}

func TestVoice_CollectAndLookup(t *testing.T) {
	h, _ := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA6"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA6", "Digits", "2"))
	require.NotNil(t, doc.Gather)
	assert.Equal(t, "dtmf", doc.Gather.Input)
	assert.Equal(t, "#", doc.Gather.FinishOnKey)
	assert.Zero(t, doc.Gather.NumDigits)

	// Partial entry times out: keep collecting silently.
	_, doc = post(t, h, "/voice", form("CallSid", "CA6", "Digits", "123"))
	require.NotNil(t, doc.Gather)
	assert.Empty(t, doc.Gather.Says)

	// Twilio strips the finish key from Digits and reports it separately.
	_, doc = post(t, h, "/voice", form("CallSid", "CA6", "Digits", "456", "FinishedOnKey", "#"))
	require.Len(t, doc.Says, 2)
	assert.Contains(t, doc.Says[1].Text, "123456")
	assert.NotNil(t, doc.Hangup)
}

func TestVoice_OverlongReferenceIsRejected(t *testing.T) {
	h, m := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA9"))
	post(t, h, "/voice", form("CallSid", "CA9", "Digits", "2"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA9", "Digits", "1234567", "FinishedOnKey", "#"))
	require.NotEmpty(t, doc.Says)
	assert.Equal(t, "The number you entered is not valid. Please try again.", doc.Says[0].Text)
	assert.Nil(t, doc.Hangup)
	require.NotNil(t, doc.Gather)
	assert.Equal(t, "#", doc.Gather.FinishOnKey)

	s, err := m.Get(context.Background(), "CA9")
	require.NoError(t, err)
	assert.Equal(t, "flight_status", s.CurrentMenu)
	assert.Equal(t, domain.PhaseCollecting, s.Phase.Kind)
	assert.Empty(t, s.Phase.Buffer)

	counts, err := m.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.History)
}

func TestVoice_InvalidKeyStopsDigitFeed(t *testing.T) {
	h, m := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA10"))

	// "0" is undeclared at the main menu; the trailing "9" must not be applied.
	_, doc := post(t, h, "/voice", form("CallSid", "CA10", "Digits", "09"))
	require.NotEmpty(t, doc.Says)
	assert.Equal(t, "Invalid input. Please try again.", doc.Says[0].Text)

	s, err := m.Get(context.Background(), "CA10")
	require.NoError(t, err)
	assert.Equal(t, domain.RootMenu, s.CurrentMenu)
	assert.Len(t, s.Inputs, 1)
}

func TestVoice_Speech(t *testing.T) {
	h, m := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA7"))

	_, doc := post(t, h, "/voice", form("CallSid", "CA7", "SpeechResult", "I want a refund"))
	assert.Contains(t, doc.Says[0].Text, "Refund policy")

	history, err := m.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "refund", history[0].Session.LastIntent)
}

func TestStatus_AbandonsLiveCall(t *testing.T) {
	h, m := newVoice(t)
	post(t, h, "/voice", form("CallSid", "CA8"))

	rr, _ := post(t, h, "/status", form("CallSid", "CA8", "CallStatus", "ringing"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	_, err := m.Get(context.Background(), "CA8")
	require.NoError(t, err, "non-terminal status keeps the call")

	rr, _ = post(t, h, "/status", form("CallSid", "CA8", "CallStatus", "completed"))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	history, err := m.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonAbandoned, history[0].Reason)

	rr, _ = post(t, h, "/status", form("CallSid", "CA8", "CallStatus", "completed"))
	assert.Equal(t, http.StatusNoContent, rr.Code, "repeated callbacks are harmless")
}
