package model

import (
	"context"
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ConversationMessage is one entry in a conversation's ordered history.
// Assistant messages optionally carry the tool invocation trace of the turn
// that produced them.
type ConversationMessage struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	AgentCalls []AgentCall `json:"agentCalls,omitempty"`
}

// ConversationStats aggregates usage across all completed turns.
type ConversationStats struct {
	QueryCount     int      `json:"queryCount"`
	TotalLatencyMs int64    `json:"totalLatencyMs"`
	AgentsUsed     []string `json:"agentsUsed"`
}

// AvgLatencyMs returns the mean per-turn latency, or 0 for an empty conversation.
func (s ConversationStats) AvgLatencyMs() int64 {
	if s.QueryCount == 0 {
		return 0
	}
	return s.TotalLatencyMs / int64(s.QueryCount)
}

type Conversation struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Messages  []ConversationMessage `json:"messages"`
	Stats     ConversationStats     `json:"stats"`
}

// ConversationStore holds bounded, addressable chat history across requests.
// Implementations must be safe for concurrent use; Fiber handlers run on
// parallel goroutines.
type ConversationStore interface {
	// Create allocates a fresh conversation. The title is optional; it is
	// replaced by a title derived from the first user message.
	Create(ctx context.Context, title string) (*Conversation, error)

	// Get fetches a conversation by identifier.
	Get(ctx context.Context, id string) (*Conversation, error)

	// List returns all conversations, most-recently-updated first.
	List(ctx context.Context) ([]*Conversation, error)

	// AppendUserMessage pushes a user message and refreshes the
	// conversation's last-updated timestamp.
	AppendUserMessage(ctx context.Context, id, content string) error

	// AppendAssistantMessage pushes an assistant message and folds the
	// completed turn's latency and agent names into the aggregate stats.
	AppendAssistantMessage(ctx context.Context, id, content string, latencyMs int64, agents []string, calls []AgentCall) error

	// Delete removes a single conversation.
	Delete(ctx context.Context, id string) error

	// Clear removes all conversations.
	Clear(ctx context.Context) error
}
