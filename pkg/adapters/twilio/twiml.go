package twilio

import (
	"encoding/xml"
	"io"
)

// Response is the root TwiML document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather collects keypad digits and/or speech, posting them to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	FinishOnKey   string   `xml:"finishOnKey,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Say           []Say
}

// Redirect transfers control to another TwiML URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Dial bridges the call to a number.
type Dial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Add appends verbs in order.
func (r *Response) Add(verbs ...any) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// WriteTo encodes the document with the XML header.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, xml.Header)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(body)
	return int64(n + m), err
}

// String renders the document, used for inline Twiml parameters.
func (r *Response) String() string {
	body, err := xml.Marshal(r)
	if err != nil {
		return ""
	}
	return xml.Header + string(body)
}
