package agent

import (
	"sync"
	"time"

	"github.com/corvid-labs/ago/pkg/types"
)

// DefaultMaxConversation is the conversation log ring size
// (SPEC_FULL.md §4.8 "max_conv").
const DefaultMaxConversation = 200

// DefaultHistoryWindow is how many of the most recent entries Prepare
// feeds to the reasoner (SPEC_FULL.md §4.8 step 1, "last N ... default 20").
const DefaultHistoryWindow = 20

// ConversationLog is a bounded, in-memory ring of a worker's own
// conversation entries. It is never persisted — conversation history does
// not survive a worker restart (SPEC_FULL.md §9 open question, resolved
// "no").
type ConversationLog struct {
	mu      sync.Mutex
	entries []types.ConversationEntry
	cap     int
}

// NewConversationLog creates a log bounded to capacity entries. A
// non-positive capacity falls back to DefaultMaxConversation.
func NewConversationLog(capacity int) *ConversationLog {
	if capacity <= 0 {
		capacity = DefaultMaxConversation
	}
	return &ConversationLog{cap: capacity}
}

// Append records one entry, silently dropping the oldest once the ring is
// full.
func (c *ConversationLog) Append(kind types.MessageKind, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, types.ConversationEntry{
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(c.entries) > c.cap {
		c.entries = c.entries[len(c.entries)-c.cap:]
	}
}

// Last returns the n most recent entries, oldest first. n <= 0 returns
// every retained entry.
func (c *ConversationLog) Last(n int) []types.ConversationEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n >= len(c.entries) {
		out := make([]types.ConversationEntry, len(c.entries))
		copy(out, c.entries)
		return out
	}
	start := len(c.entries) - n
	out := make([]types.ConversationEntry, n)
	copy(out, c.entries[start:])
	return out
}

// Len reports how many entries are currently retained.
func (c *ConversationLog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
