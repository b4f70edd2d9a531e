package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samsaffron/wazuh-chat/internal/components"
	"github.com/samsaffron/wazuh-chat/internal/session"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the assistant reply to a ChatRequest.
type ChatResponse struct {
	SessionID        string                 `json:"session_id"`
	Message          string                 `json:"message"`
	Components       []components.Component `json:"components"`
	Timestamp        Timestamp              `json:"timestamp"`
	ToolCallsMade    int                    `json:"tool_calls_made"`
	ProcessingTimeMs *float64               `json:"processing_time_ms,omitempty"`
}

// ProcessingTime returns the server-side processing time, if reported.
func (r *ChatResponse) ProcessingTime() time.Duration {
	if r.ProcessingTimeMs == nil {
		return 0
	}
	return time.Duration(*r.ProcessingTimeMs * float64(time.Millisecond))
}

// ToMessage converts the reply into an assistant message for sessionID.
// The backend timestamp is used when present.
func (r *ChatResponse) ToMessage(sessionID string) *session.Message {
	msg := session.NewMessage(sessionID, session.RoleAssistant, r.Message)
	msg.Components = r.Components
	msg.ToolCallsMade = r.ToolCallsMade
	msg.ProcessingMs = r.ProcessingTime().Milliseconds()
	if !r.Timestamp.IsZero() {
		msg.CreatedAt = r.Timestamp.Time
	}
	return msg
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string    `json:"status"` // "healthy" or "degraded"
	MCPConnected bool      `json:"mcp_connected"`
	Timestamp    Timestamp `json:"timestamp"`
}

// Timestamp accepts RFC 3339 times as well as the zone-less ISO 8601
// times the backend emits, which are UTC.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = ts
		return nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = ts
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
