// Package backend talks to the SIEM assistant HTTP API.
package backend

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

	"go.uber.org/zap"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/logging"
)

const (
	DefaultTimeout = 60 * time.Second
	maxErrorBody   = 64 << 10
)

// UserFacingError is shown in place of a reply when the backend can't be reached.
const UserFacingError = "Sorry, I couldn't reach the assistant backend. Please try again."

var (
	// ErrUnavailable wraps transport failures (refused, timeout, DNS).
	ErrUnavailable = errors.New("assistant backend unavailable")
	// ErrEmptyMessage is returned for blank input; the backend rejects it too.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Detail)
}

// Client sends chat messages to the backend.
type Client struct {
	baseURL    string
	apiKey     string // optional bearer token
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Client from the backend config section.
func New(cfg config.BackendConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.Or(logger).Named("backend"),
	}
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts one user message and returns the assistant reply.
func (c *Client) Send(ctx context.Context, sessionID, message string) (*ChatResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	body, err := json.Marshal(ChatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat", bytes.NewReader(body), &resp); err != nil {
		c.logger.Warn("chat request failed",
			zap.String("session", sessionID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("chat reply",
		zap.String("session", sessionID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Duration("server", resp.ProcessingTime()),
		zap.Int("tool_calls", resp.ToolCallsMade),
		zap.Int("components", len(resp.Components)),
	)
	return &resp, nil
}

// HealthStatus fetches /health.
func (c *Client) HealthStatus(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the backend is fully healthy. A reachable but
// degraded backend returns false with a nil error.
func (c *Client) Health(ctx context.Context) (bool, error) {
	resp, err := c.HealthStatus(ctx)
	if err != nil {
		return false, err
	}
	return resp.Status == "healthy", nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Detail: parseDetail(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// parseDetail extracts FastAPI's {"detail": ...}. Validation errors carry a
// list of objects with a "msg" field.
func parseDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}

	var s string
	if json.Unmarshal(body.Detail, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(body.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(body.Detail)
}
