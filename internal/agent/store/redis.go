package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/knowledge-navigator/server/internal/agent/model"
	errx "github.com/knowledge-navigator/server/internal/core/error"
	logx "github.com/knowledge-navigator/server/pkg/logger"
)

const indexKey = "conversations:index"

// RedisStore keeps conversations in Redis: a meta hash and a message list per
// conversation, plus an updated-at sorted set used for listing and for
// count-based eviction. Keys also carry a TTL refreshed on touch.
type RedisStore struct {
	rdb redis.Cmdable
	cfg model.ConversationConfig
	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(rdb redis.Cmdable, cfg model.ConversationConfig) (*RedisStore, error) {
	ttl, err := time.ParseDuration(cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation TTL %q: %w", cfg.TTL, err)
	}
	return &RedisStore{rdb: rdb, cfg: cfg, ttl: ttl, now: time.Now}, nil
}

func metaKey(id string) string     { return fmt.Sprintf("conversation:%s:meta", id) }
func messagesKey(id string) string { return fmt.Sprintf("conversation:%s:messages", id) }
func agentsKey(id string) string   { return fmt.Sprintf("conversation:%s:agents", id) }

func (s *RedisStore) Create(ctx context.Context, title string) (*model.Conversation, error) {
	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.ConversationMessage{},
		Stats:     model.ConversationStats{AgentsUsed: []string{}},
	}

	if err := s.rdb.HSet(ctx, metaKey(conv.ID),
		"title", conv.Title,
		"createdAt", now.Format(time.RFC3339Nano),
		"updatedAt", now.Format(time.RFC3339Nano),
		"queryCount", 0,
		"totalLatencyMs", 0,
	).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	if err := s.rdb.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMilli()), Member: conv.ID}).Err(); err != nil {
		return nil, errx.WrapRedis(err)
	}
	s.expire(ctx, conv.ID)

	if err := s.evict(ctx); err != nil {
		logx.Warn().Err(err).Msg("Conversation eviction failed")
	}
	return conv, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	meta, err := s.rdb.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	if len(meta) == 0 {
		return nil, errx.NotFound(errx.ConversationNotFoundMessage)
	}

	conv := &model.Conversation{
		ID:       id,
		Title:    meta["title"],
		Messages: []model.ConversationMessage{},
		Stats:    model.ConversationStats{AgentsUsed: []string{}},
	}
	conv.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["createdAt"])
	conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, meta["updatedAt"])
	conv.Stats.QueryCount, _ = strconv.Atoi(meta["queryCount"])
	conv.Stats.TotalLatencyMs, _ = strconv.ParseInt(meta["totalLatencyMs"], 10, 64)

	rows, err := s.rdb.LRange(ctx, messagesKey(id), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}
	for i, row := range rows {
		var m model.ConversationMessage
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		conv.Messages = append(conv.Messages, m)
	}

	agents, err := s.rdb.SMembers(ctx, agentsKey(id)).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}
	conv.Stats.AgentsUsed = mergeAgents(nil, agents)

	return conv, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*model.Conversation, error) {
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, errx.WrapRedis(err)
	}

	out := make([]*model.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.Get(ctx, id)
		if err != nil {
			// Index entries can outlive expired keys; skip them.
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

func (s *RedisStore) AppendUserMessage(ctx context.Context, id, content string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	now := s.now()
	count, err := s.rdb.LLen(ctx, messagesKey(id)).Result()
	if err != nil && err != redis.Nil {
		return errx.WrapRedis(err)
	}
	if count == 0 {
		if err := s.rdb.HSet(ctx, metaKey(id), "title", deriveTitle(content, s.cfg.TitleMaxChars)).Err(); err != nil {
			return errx.WrapRedis(err)
		}
	}

	msg := model.ConversationMessage{Role: model.RoleUser, Content: content, Timestamp: now}
	return s.push(ctx, id, msg, now)
}

func (s *RedisStore) AppendAssistantMessage(ctx context.Context, id, content string, latencyMs int64, agents []string, calls []model.AgentCall) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	now := s.now()
	msg := model.ConversationMessage{Role: model.RoleAssistant, Content: content, Timestamp: now, AgentCalls: calls}
	if err := s.push(ctx, id, msg, now); err != nil {
		return err
	}

	if err := s.rdb.HIncrBy(ctx, metaKey(id), "queryCount", 1).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := s.rdb.HIncrBy(ctx, metaKey(id), "totalLatencyMs", latencyMs).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if len(agents) > 0 {
		members := make([]interface{}, len(agents))
		for i, a := range agents {
			members[i] = a
		}
		if err := s.rdb.SAdd(ctx, agentsKey(id), members...).Err(); err != nil {
			return errx.WrapRedis(err)
		}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, metaKey(id), messagesKey(id), agentsKey(id)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := s.rdb.ZRem(ctx, indexKey, id).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return errx.WrapRedis(err)
	}
	for _, id := range ids {
		if err := s.rdb.Del(ctx, metaKey(id), messagesKey(id), agentsKey(id)).Err(); err != nil {
			return errx.WrapRedis(err)
		}
	}
	if err := s.rdb.Del(ctx, indexKey).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisStore) exists(ctx context.Context, id string) error {
	n, err := s.rdb.Exists(ctx, metaKey(id)).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	if n == 0 {
		return errx.NotFound(errx.ConversationNotFoundMessage)
	}
	return nil
}

func (s *RedisStore) push(ctx context.Context, id string, msg model.ConversationMessage, now time.Time) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.rdb.RPush(ctx, messagesKey(id), b).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := s.rdb.HSet(ctx, metaKey(id), "updatedAt", now.Format(time.RFC3339Nano)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	if err := s.rdb.ZAdd(ctx, indexKey, redis.Z{Score: float64(now.UnixMilli()), Member: id}).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	s.expire(ctx, id)
	return nil
}

// expire extends the TTL on touch, like the rest of the per-conversation keys.
func (s *RedisStore) expire(ctx context.Context, id string) {
	if s.ttl <= 0 {
		return
	}
	for _, key := range []string{metaKey(id), messagesKey(id), agentsKey(id)} {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("Failed to set TTL")
		}
	}
}

// evict trims the index to the configured maximum, removing the
// least-recently-updated conversations beyond it.
func (s *RedisStore) evict(ctx context.Context) error {
	max := s.cfg.MaxConversations
	if max <= 0 {
		return nil
	}
	count, err := s.rdb.ZCard(ctx, indexKey).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	if count <= int64(max) {
		return nil
	}

	victims, err := s.rdb.ZRange(ctx, indexKey, 0, count-int64(max)-1).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	for _, id := range victims {
		if err := s.rdb.Del(ctx, metaKey(id), messagesKey(id), agentsKey(id)).Err(); err != nil {
			return errx.WrapRedis(err)
		}
		if err := s.rdb.ZRem(ctx, indexKey, id).Err(); err != nil {
			return errx.WrapRedis(err)
		}
		logx.Debug().Str("conversation_id", id).Msg("Conversation evicted")
	}
	return nil
}

var _ model.ConversationStore = (*RedisStore)(nil)
