package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize int64 = 16 << 20

// Config defines transport settings. BaseURL is the single backend origin
// every request targets.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Credential Credential
	Logger     *slog.Logger
}

// Client issues authenticated JSON requests and normalizes every response
// into a payload, ErrUnauthorized or a *Failure. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	credential Credential
	logger     *slog.Logger
}

// NewClient validates the configuration and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("api: base url required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", base, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", base)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient,
		credential: cfg.Credential,
		logger:     logger,
	}, nil
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs one call and returns the raw JSON payload. A successful
// response that is empty or not JSON yields a nil payload and no error.
func (c *Client) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Failure{Message: fmt.Sprintf("encode request body: %v", err), Err: err}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &Failure{Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credential != nil {
		c.credential.Apply(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, &Failure{Message: fmt.Sprintf("%s %s: %v", method, path, err), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, ErrUnauthorized
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if err != nil {
			// A partial body is not the server's message.
			failure := failureFromStatus(resp.StatusCode, nil)
			failure.Err = err
			return nil, failure
		}
		return nil, failureFromStatus(resp.StatusCode, data)
	}
	if err != nil {
		return nil, &Failure{StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response body: %v", err), Err: err}
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return nil, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// Do performs a request and decodes the payload into out when there is one.
// out is left untouched for empty or non-JSON successes.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := c.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || payload == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Failure{Message: fmt.Sprintf("decode %s %s response: %v", method, path, err), Err: err}
	}
	return nil
}

// CloseIdleConnections drops pooled connections, e.g. after re-authentication.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
