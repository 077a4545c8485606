package twilio_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/callflow/pkg/adapters/twilio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_Encoding(t *testing.T) {
	resp := new(twilio.Response).Add(
		twilio.Say{Voice: "Polly.Aditi", Text: "Fish & chips <now>"},
		twilio.Gather{Input: "dtmf", NumDigits: 1, Action: "/twilio/voice", Method: "POST",
			Say: []twilio.Say{{Text: "Press 1"}}},
		twilio.Redirect{Method: "POST", URL: "/twilio/voice"},
		twilio.Dial{Number: "+911234567890"},
		twilio.Hangup{},
	)

	var buf bytes.Buffer
	_, err := resp.WriteTo(&buf)
	require.NoError(t, err)

	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<Response>` +
		`<Say voice="Polly.Aditi">Fish &amp; chips &lt;now&gt;</Say>` +
		`<Gather input="dtmf" numDigits="1" action="/twilio/voice" method="POST"><Say>Press 1</Say></Gather>` +
		`<Redirect method="POST">/twilio/voice</Redirect>` +
		`<Dial>+911234567890</Dial>` +
		`<Hangup></Hangup>` +
		`</Response>`
	assert.Equal(t, want, buf.String())
	assert.Equal(t, want, resp.String())
}
