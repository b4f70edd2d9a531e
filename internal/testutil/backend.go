package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// BackendRequest records a single /chat invocation.
type BackendRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Auth      string `json:"-"`
}

// MockBackend is a configurable fake of the assistant API.
// By default /chat echoes the message and /health reports "healthy".
type MockBackend struct {
	Server *httptest.Server

	mu         sync.Mutex
	replyFn    func(req BackendRequest) string
	components []map[string]any
	status     string
	failCode   int
	failDetail string
	requests   []BackendRequest
}

// NewMockBackend starts a fake backend that is closed with the test.
func NewMockBackend(t testing.TB) *MockBackend {
	t.Helper()
	m := &MockBackend{status: "healthy"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", m.handleChat)
	mux.HandleFunc("GET /health", m.handleHealth)
	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

// URL is the base URL of the fake backend.
func (m *MockBackend) URL() string {
	return m.Server.URL
}

// SetReply sets the function producing reply text.
func (m *MockBackend) SetReply(fn func(req BackendRequest) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyFn = fn
}

// SetComponents attaches components to every reply.
func (m *MockBackend) SetComponents(c ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = c
}

// SetStatus sets the status reported by /health.
func (m *MockBackend) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Fail makes /chat answer with code and a FastAPI style detail.
// A zero code restores normal replies.
func (m *MockBackend) Fail(code int, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCode, m.failDetail = code, detail
}

// Requests returns a copy of the recorded /chat requests.
func (m *MockBackend) Requests() []BackendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BackendRequest(nil), m.requests...)
}

func (m *MockBackend) handleChat(w http.ResponseWriter, r *http.Request) {
	var req BackendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "invalid body"}},
		})
		return
	}
	req.Auth = r.Header.Get("Authorization")

	m.mu.Lock()
	m.requests = append(m.requests, req)
	fail, detail, replyFn, comps := m.failCode, m.failDetail, m.replyFn, m.components
	m.mu.Unlock()

	if fail != 0 {
		writeJSON(w, fail, map[string]string{"detail": detail})
		return
	}

	reply := "echo: " + req.Message
	if replyFn != nil {
		reply = replyFn(req)
	}
	if comps == nil {
		comps = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":         req.SessionID,
		"message":            reply,
		"components":         comps,
		"timestamp":          time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
		"tool_calls_made":    1,
		"processing_time_ms": 12.5,
	})
}

func (m *MockBackend) handleHealth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"mcp_connected": status == "healthy",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
