package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowledge-navigator/server/internal/agent/model"
	errx "github.com/knowledge-navigator/server/internal/core/error"
	logx "github.com/knowledge-navigator/server/pkg/logger"
)

// MemoryStore keeps conversations in a process-wide map. Mutations are
// serialized with a mutex because request handlers run on parallel
// goroutines.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	cfg           model.ConversationConfig
	now           func() time.Time
}

func NewMemoryStore(cfg model.ConversationConfig) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.ConversationMessage{},
		Stats:     model.ConversationStats{AgentsUsed: []string{}},
	}
	s.conversations[conv.ID] = conv
	s.evictLocked()

	logx.Debug().Str("conversation_id", conv.ID).Msg("Conversation created")
	return snapshot(conv), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, errx.NotFound(errx.ConversationNotFoundMessage)
	}
	return snapshot(conv), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, snapshot(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) AppendUserMessage(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return errx.NotFound(errx.ConversationNotFoundMessage)
	}

	now := s.now()
	if len(conv.Messages) == 0 {
		conv.Title = deriveTitle(content, s.cfg.TitleMaxChars)
	}
	conv.Messages = append(conv.Messages, model.ConversationMessage{
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: now,
	})
	conv.UpdatedAt = now
	return nil
}

func (s *MemoryStore) AppendAssistantMessage(ctx context.Context, id, content string, latencyMs int64, agents []string, calls []model.AgentCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return errx.NotFound(errx.ConversationNotFoundMessage)
	}

	now := s.now()
	conv.Messages = append(conv.Messages, model.ConversationMessage{
		Role:       model.RoleAssistant,
		Content:    content,
		Timestamp:  now,
		AgentCalls: calls,
	})
	conv.UpdatedAt = now
	conv.Stats.QueryCount++
	conv.Stats.TotalLatencyMs += latencyMs
	conv.Stats.AgentsUsed = mergeAgents(conv.Stats.AgentsUsed, agents)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return errx.NotFound(errx.ConversationNotFoundMessage)
	}
	delete(s.conversations, id)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(map[string]*model.Conversation)
	return nil
}

// evictLocked removes the least-recently-updated conversations beyond the
// configured maximum. Caller must hold the mutex.
func (s *MemoryStore) evictLocked() {
	max := s.cfg.MaxConversations
	if max <= 0 || len(s.conversations) <= max {
		return
	}

	all := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		all = append(all, conv)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.Before(all[j].UpdatedAt)
	})

	for _, conv := range all[:len(all)-max] {
		delete(s.conversations, conv.ID)
		logx.Debug().Str("conversation_id", conv.ID).Msg("Conversation evicted")
	}
}

// snapshot deep-copies a conversation so callers never alias store-internal
// slices.
func snapshot(conv *model.Conversation) *model.Conversation {
	out := *conv
	out.Messages = make([]model.ConversationMessage, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	out.Stats.AgentsUsed = append([]string{}, conv.Stats.AgentsUsed...)
	return &out
}

var _ model.ConversationStore = (*MemoryStore)(nil)
