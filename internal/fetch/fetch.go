// Package fetch performs retried HTTP GET requests against the JSON APIs the
// bridge depends on, classifying failures into retryable transport errors and
// terminal payload errors.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/yolodolo42/gasbridge/internal/retry"
)

// Kind classifies a request failure.
type Kind string

const (
	KindHTTPStatus Kind = "http_status"
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindPayload    Kind = "payload"
)

// ErrNetwork matches transport-layer failures (status, connection, timeout).
var ErrNetwork = errors.New("network error")

// ErrPayload matches responses whose body could not be decoded.
var ErrPayload = errors.New("payload error")

const maxBodyBytes = 64 << 20

// Error describes a failed request.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrPayload:
		return e.Kind == KindPayload
	case ErrNetwork:
		return e.Kind != KindPayload
	}
	return false
}

// Client issues GET requests through a retry policy.
type Client struct {
	HTTP   *http.Client
	Policy retry.Policy
}

// NewClient creates a client with the given per-request timeout.
func NewClient(timeout time.Duration, policy retry.Policy) *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: timeout},
		Policy: policy,
	}
}

// Get returns the response body of rawURL with query appended.
// Transport failures are retried; the last one is returned wrapped in
// retry.ExhaustedError.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error) {
	target := rawURL
	if len(query) > 0 {
		target = rawURL + "?" + query.Encode()
	}

	return retry.Do(ctx, c.Policy, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, target)
	})
}

// GetJSON decodes the response body into out. A body that does not decode is
// a payload error and is not retried.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	target := rawURL
	if len(query) > 0 {
		target = rawURL + "?" + query.Encode()
	}

	_, err := retry.Do(ctx, c.Policy, func(ctx context.Context) (struct{}, error) {
		body, err := c.get(ctx, target)
		if err != nil {
			return struct{}{}, err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, retry.Permanent(&Error{Kind: KindPayload, URL: target, Err: err})
		}
		return struct{}{}, nil
	})
	return err
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classify(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: KindHTTPStatus, URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(target, err)
	}
	return body, nil
}

func classify(target string, err error) error {
	if errors.Is(err, context.Canceled) {
		return retry.Permanent(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, URL: target, Err: err}
	}
	return &Error{Kind: KindConnection, URL: target, Err: err}
}
