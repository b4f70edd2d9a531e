package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/samsaffron/wazuh-chat/internal/config"
	"github.com/samsaffron/wazuh-chat/internal/session"
	"github.com/samsaffron/wazuh-chat/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func newClient(t *testing.T, url, apiKey string) *Client {
	t.Helper()
	return New(config.BackendConfig{URL: url + "/", APIKey: apiKey, Timeout: 5 * time.Second}, nil)
}

func TestSend(t *testing.T) {
	mock := testutil.NewMockBackend(t)
	mock.SetComponents(map[string]any{
		"type": "metrics",
		"data": map[string]any{"metrics": map[string]any{"alerts": 3}},
	})
	c := newClient(t, mock.URL(), "")

	resp, err := c.Send(context.Background(), "s-1", "hi")
	require.NoError(t, err)

	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, "echo: hi", resp.Message)
	assert.Equal(t, 1, resp.ToolCallsMade)
	assert.Equal(t, 12500*time.Microsecond, resp.ProcessingTime())
	assert.False(t, resp.Timestamp.IsZero())
	assert.Equal(t, time.UTC, resp.Timestamp.Location())
	require.Len(t, resp.Components, 1)
	assert.Equal(t, "metrics", resp.Components[0].Type)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, testutil.BackendRequest{SessionID: "s-1", Message: "hi"}, reqs[0])
}

func TestSendBearerToken(t *testing.T) {
	mock := testutil.NewMockBackend(t)
	c := newClient(t, mock.URL(), "secret")

	_, err := c.Send(context.Background(), "s-1", "hello")
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer secret", reqs[0].Auth)
}

func TestSendStatusError(t *testing.T) {
	mock := testutil.NewMockBackend(t)
	mock.Fail(http.StatusInternalServerError, "Error processing message: boom")
	c := newClient(t, mock.URL(), "")

	_, err := c.Send(context.Background(), "s-1", "hi")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "Error processing message: boom", se.Detail)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestSendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url, "")
	_, err := c.Send(context.Background(), "s-1", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestSendCanceled(t *testing.T) {
	mock := testutil.NewMockBackend(t)
	c := newClient(t, mock.URL(), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, "s-1", "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestSendEmptyMessage(t *testing.T) {
	mock := testutil.NewMockBackend(t)
	c := newClient(t, mock.URL(), "")

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := c.Send(context.Background(), "s-1", msg)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Empty(t, mock.Requests())
}

func TestHealth(t *testing.T) {
	mock := testutil.NewMockBackend(t)
	c := newClient(t, mock.URL(), "")

	ok, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	mock.SetStatus("degraded")
	ok, err = c.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := c.HealthStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", status.Status)
	assert.False(t, status.MCPConnected)
}

func TestBaseURLTrimsSlash(t *testing.T) {
	c := New(config.BackendConfig{URL: "http://example.test///"}, nil)
	assert.Equal(t, "http://example.test", c.BaseURL())
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"detail":"Session not found"}`, "Session not found"},
		{"validation", `{"detail":[{"loc":["body","message"],"msg":"field required"},{"msg":"too short"}]}`, "field required; too short"},
		{"not json", "Bad Gateway\n", "Bad Gateway"},
		{"no detail", `{"error":"x"}`, `{"error":"x"}`},
		{"object", `{"detail":{"code":7}}`, `{"code":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDetail([]byte(tt.body)))
		})
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2025-01-02T10:00:00.123456"`, time.Date(2025, 1, 2, 10, 0, 0, 123456000, time.UTC)},
		{`"2025-01-02 10:00:00"`, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)},
		{`"2025-01-02T10:00:00Z"`, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var ts Timestamp
		require.NoError(t, ts.UnmarshalJSON([]byte(tt.in)), tt.in)
		assert.True(t, tt.want.Equal(ts.Time), "%s: got %v", tt.in, ts.Time)
	}

	var ts Timestamp
	assert.Error(t, ts.UnmarshalJSON([]byte(`"yesterday"`)))
	assert.Error(t, ts.UnmarshalJSON([]byte(`12`)))
}

func TestToMessage(t *testing.T) {
	ms := 1500.0
	resp := &ChatResponse{
		Message:          "done",
		ToolCallsMade:    2,
		ProcessingTimeMs: &ms,
		Timestamp:        Timestamp{time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	msg := resp.ToMessage("s-9")
	assert.Equal(t, "s-9", msg.SessionID)
	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Equal(t, "done", msg.Content)
	assert.Equal(t, 2, msg.ToolCallsMade)
	assert.Equal(t, int64(1500), msg.ProcessingMs)
	assert.True(t, msg.CreatedAt.Equal(resp.Timestamp.Time))
	assert.Equal(t, -1, msg.Sequence)

	resp.Timestamp = Timestamp{}
	assert.False(t, resp.ToMessage("s-9").CreatedAt.IsZero())
}
