package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/routewise/fieldsync/pkg/auth"
	"github.com/routewise/fieldsync/pkg/event"
)

const (
	defaultRequestTimeout       = 15 * time.Second
	responseBodyReadLimit int64 = 4096
)

var errEndpointRequired = errors.New("sync endpoint url is required")

// Pusher delivers one event to the remote authority. The remote contract is
// at-least-once: the server deduplicates by event id, so a resend after a
// lost acknowledgment is safe.
type Pusher interface {
	Push(ctx context.Context, ev event.OperationalEvent) error
}

// HTTPClient pushes events to the remote sync endpoint over HTTPS.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	credential auth.Credential
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the wall clock used for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *HTTPClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewHTTPClient builds the push client for the given endpoint and credential.
func NewHTTPClient(baseURL string, credential auth.Credential, opts ...Option) (*HTTPClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errEndpointRequired
	}

	client := &HTTPClient{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    trimmed,
		credential: credential,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Push delivers one event. A 4xx response is terminal; everything else that
// fails is transient and will be retried by the drain loop.
func (c *HTTPClient) Push(ctx context.Context, ev event.OperationalEvent) error {
	if c.credential.Expired(c.now()) {
		return errors.New("session credential expired, awaiting refresh")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return NewNonRetryableError(fmt.Errorf("serializing event %s: %w", ev.EventID, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.EventID.String())
	if !c.credential.Empty() {
		req.Header.Set("Authorization", "Bearer "+c.credential.Token())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushing event %s: %w", ev.EventID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	pushErr := fmt.Errorf("remote rejected event %s: status %d: %s", ev.EventID, resp.StatusCode, strings.TrimSpace(string(detail)))

	if terminalStatus(resp.StatusCode) {
		return NewNonRetryableError(pushErr)
	}
	return pushErr
}

// terminalStatus reports whether the status can never succeed on retry.
// Timeouts and throttling are transient even though they are 4xx.
func terminalStatus(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return true
}
