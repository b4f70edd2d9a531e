package session

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samsaffron/wazuh-chat/internal/components"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// DefaultTitle is used until the first user message names the session.
const DefaultTitle = "New Chat"

const maxTitleLen = 50

// SessionStatus represents the current state of a session.
type SessionStatus string

const (
	StatusActive   SessionStatus = "active"   // Open, accepting messages
	StatusComplete SessionStatus = "complete" // Closed normally
	StatusError    SessionStatus = "error"    // Last exchange failed
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session represents a conversation stored in the database.
type Session struct {
	ID           string        `json:"id"`
	Number       int64         `json:"number,omitempty"` // Sequential session number (1, 2, 3...)
	Title        string        `json:"title"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Archived     bool          `json:"archived,omitempty"`
	Status       SessionStatus `json:"status,omitempty"`
	MessageCount int           `json:"message_count"`
}

// DisplayTitle returns the title, or DefaultTitle when it is unset.
func (s *Session) DisplayTitle() string {
	if strings.TrimSpace(s.Title) == "" {
		return DefaultTitle
	}
	return s.Title
}

// Message is one turn of a session. Assistant messages keep the raw
// reply text; normalization happens at render time.
type Message struct {
	ID            int64                  `json:"id"`
	SessionID     string                 `json:"session_id"`
	Role          Role                   `json:"role"`
	Content       string                 `json:"content"`
	Components    []components.Component `json:"components,omitempty"`
	ToolCallsMade int                    `json:"tool_calls_made,omitempty"`
	ProcessingMs  int64                  `json:"processing_ms,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	Sequence      int                    `json:"sequence"`
}

// NewMessage creates a message with an auto-allocated sequence.
func NewMessage(sessionID string, role Role, content string) *Message {
	return &Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Sequence:  -1,
	}
}

// ComponentsJSON returns the components serialized for storage.
func (m *Message) ComponentsJSON() (string, error) {
	if len(m.Components) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m.Components)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetComponentsFromJSON deserializes stored components.
func (m *Message) SetComponentsFromJSON(data string) error {
	if data == "" {
		m.Components = nil
		return nil
	}
	return json.Unmarshal([]byte(data), &m.Components)
}

// ListOptions configures session listing.
type ListOptions struct {
	Query    string // Title substring (case-insensitive)
	Limit    int    // Max results (0 = use default)
	Offset   int    // Pagination offset
	Archived bool   // Include archived sessions
}

// SearchResult represents a full-text match inside a message.
type SearchResult struct {
	SessionID     string    `json:"session_id"`
	SessionNumber int64     `json:"session_number"`
	MessageID     int64     `json:"message_id"`
	Title         string    `json:"title"`
	Snippet       string    `json:"snippet"` // Matched text with **highlights**
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// TitleFrom derives a session title from the first user message: its
// first line, cut to 50 characters with "..." appended when longer.
func TitleFrom(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.IndexAny(content, "\r\n"); idx != -1 {
		content = strings.TrimSpace(content[:idx])
	}
	if content == "" {
		return DefaultTitle
	}
	r := []rune(content)
	if len(r) > maxTitleLen {
		return string(r[:maxTitleLen]) + "..."
	}
	return content
}
