// Package gateway talks to the quiz backend. Every request is a single attempt: no retries,
// failures surface immediately as *errors.Error carrying the HTTP status (0 on transport failure).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/telemetry"
)

const DefaultBaseURL = "http://localhost:8000/api"

// closedMessage is how older backends report an attempt that was already finished.
const closedMessage = "quiz already completed"

type Config struct {
	BaseURL string
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout   time.Duration
	Transport http.RoundTripper
	Metrics   *telemetry.Metrics
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(c Config) *Client {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   c.Timeout,
			Transport: telemetry.MonitorHTTP(c.Transport, c.Metrics),
		},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Do sends a JSON request to path (relative to the base URL) and decodes the response into out.
// out may be nil when the response body is not needed.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Internal(fmt.Errorf("gateway: encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Internal(fmt.Errorf("gateway: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("Network error"),
			errors.WithCause(err),
		)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.CodeUnavailable,
			errors.WithMessagef("Network error"),
			errors.WithCause(err),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalize(resp.StatusCode, b)
	}

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}

	if err := json.Unmarshal(b, out); err != nil {
		return errors.New(errors.CodeInternal,
			errors.WithMessagef("Invalid response from server"),
			errors.WithStatus(resp.StatusCode),
			errors.WithCause(err),
		)
	}

	return nil
}

// normalize turns a non-2xx response into a typed error. The backend's "error" field is kept
// verbatim as the message. An already-finished attempt is always reported as
// CodeOutOfRange, whatever status the backend used.
func normalize(status int, body []byte) error {
	var eb errorBody
	msg := "Unknown error"
	if err := json.Unmarshal(body, &eb); err == nil {
		msg = eb.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", status)
		}
	}

	code := errors.FromHTTPStatus(status)
	if strings.Contains(strings.ToLower(msg), closedMessage) {
		code = errors.CodeOutOfRange
	}

	return errors.New(code,
		errors.WithMessagef("%s", msg),
		errors.WithStatus(status),
	)
}

// attemptClosed reinterprets a not-found answer of the attempt progression endpoints:
// there it means the attempt has no question left, not that something is missing.
func attemptClosed(err error) error {
	e := errors.Convert(err)
	if e.Code != errors.CodeNotFound {
		return err
	}

	return errors.New(errors.CodeOutOfRange,
		errors.WithMessagef("%s", e.Message),
		errors.WithStatus(e.Status),
		errors.WithCause(e),
	)
}
