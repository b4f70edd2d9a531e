package chat

import (
	"strings"

	"github.com/samsaffron/wazuh-chat/internal/session"
)

// History renders a conversation, reusing cached blocks for messages that
// have already been drawn at the current width.
type History struct {
	opts     Options
	renderer *MessageBlockRenderer
	cache    *BlockCache
}

// NewHistory creates a history renderer. cacheSize bounds the number of
// cached blocks.
func NewHistory(width, cacheSize int, opts Options) *History {
	return &History{
		opts:     opts,
		renderer: NewMessageBlockRenderer(width, opts),
		cache:    NewBlockCache(cacheSize),
	}
}

// SetWidth switches to a new terminal width. Blocks cached at other widths
// stay in the cache until evicted.
func (h *History) SetWidth(width int) {
	if width == h.renderer.Width() {
		return
	}
	h.renderer = NewMessageBlockRenderer(width, h.opts)
}

// Block returns the rendered block for msg. Messages without an ID have
// not been stored yet and are never cached.
func (h *History) Block(msg *session.Message) *MessageBlock {
	if msg.ID == 0 {
		return h.renderer.Render(msg)
	}
	key := BlockKey{MessageID: msg.ID, Width: h.renderer.Width()}
	if b := h.cache.Get(key); b != nil {
		return b
	}
	b := h.renderer.Render(msg)
	h.cache.Put(key, b)
	return b
}

// Render draws messages in order, separated by blank lines.
func (h *History) Render(messages []session.Message) string {
	parts := make([]string, 0, len(messages))
	for i := range messages {
		parts = append(parts, h.Block(&messages[i]).Rendered)
	}
	return strings.Join(parts, "\n\n")
}

// Forget drops cached renderings of a message.
func (h *History) Forget(messageID int64) {
	h.cache.Remove(messageID)
}
