package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
)

// HTTP resolves references against an external reservation service
// exposing GET {base}/records/{ref}.
type HTTP struct {
	baseURL    string
	length     int
	httpClient *http.Client
}

// HTTPOption configures the HTTP resolver.
type HTTPOption func(*HTTP)

// WithHTTPClient overrides the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.httpClient.Timeout = d
	}
}

// NewHTTP creates a resolver for the service at baseURL.
func NewHTTP(baseURL string, length int, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL:    strings.TrimRight(baseURL, "/"),
		length:     length,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Resolve implements ports.RecordResolver.
func (h *HTTP) Resolve(ctx context.Context, ref string) (*domain.Record, error) {
	return h.ResolveLength(ctx, ref, h.length)
}

// ResolveLength validates against an explicit length instead of the configured one.
func (h *HTTP) ResolveLength(ctx context.Context, ref string, length int) (*domain.Record, error) {
	if err := ValidateReference(ref, length); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/records/%s", h.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reservation service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, ref)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("reservation service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rec domain.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if rec.Reference == "" {
		rec.Reference = ref
	}
	return &rec, nil
}
