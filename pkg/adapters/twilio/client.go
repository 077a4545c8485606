package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/callflow/pkg/ports"
)

// DefaultBaseURL is the Twilio REST API root.
const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

// Client places outbound calls through the Twilio REST API.
type Client struct {
	accountSID string
	authToken  string
	from       string
	voiceURL   string
	statusURL  string
	baseURL    string
	httpClient *http.Client
}

// Config configures the Twilio client.
type Config struct {
	AccountSID string
	AuthToken  string
	// From is the caller id used when a DialRequest leaves it empty.
	From string
	// VoiceURL is the webhook Twilio fetches once the callee answers.
	VoiceURL string
	// StatusURL receives call status callbacks. Optional.
	StatusURL  string
	BaseURL    string
	HTTPClient *http.Client
}

var _ ports.Dialer = (*Client)(nil)

// NewClient creates a new Twilio client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" {
		return nil, errors.New("twilio account sid is required")
	}
	if cfg.AuthToken == "" {
		return nil, errors.New("twilio auth token is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		voiceURL:   cfg.VoiceURL,
		statusURL:  cfg.StatusURL,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Call represents the subset of a Twilio call resource the dialer reports.
type Call struct {
	SID    string `json:"sid"`
	To     string `json:"to"`
	From   string `json:"from"`
	Status string `json:"status"`
}

// Error represents a Twilio API error.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

// Dial implements ports.Dialer.
func (c *Client) Dial(ctx context.Context, req ports.DialRequest) (*ports.DialResult, error) {
	if req.To == "" {
		return nil, errors.New("missing 'to' number")
	}
	from := req.From
	if from == "" {
		from = c.from
	}
	voiceURL := req.URL
	if voiceURL == "" {
		voiceURL = c.voiceURL
	}
	if from == "" || voiceURL == "" {
		return nil, errors.New("twilio dial requires a caller id and a voice url")
	}

	data := url.Values{}
	data.Set("To", req.To)
	data.Set("From", from)
	data.Set("Url", voiceURL)
	if c.statusURL != "" {
		data.Set("StatusCallback", c.statusURL)
		for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
			data.Add("StatusCallbackEvent", ev)
		}
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return nil, err
	}
	return &ports.DialResult{SID: call.SID, Status: call.Status, To: req.To, From: from}, nil
}

// post performs a POST request with form data.
func (c *Client) post(ctx context.Context, endpoint string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

// do executes a request with authentication.
func (c *Client) do(req *http.Request, result any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr Error
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("twilio error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
