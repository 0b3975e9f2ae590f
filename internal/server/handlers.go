package server

import (
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gofiber/fiber/v2"

	"github.com/knowledge-navigator/server/internal/agent/model"
	errx "github.com/knowledge-navigator/server/internal/core/error"
	logx "github.com/knowledge-navigator/server/pkg/logger"
)

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func failErr(c *fiber.Ctx, err error) error {
	return fail(c, errx.StatusOf(err), err.Error())
}

type queryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId"`
}

type conversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return fail(c, fiber.StatusBadRequest, "query is required")
	}

	ctx := c.Context()

	var history []*schema.Message
	if req.ConversationID != "" {
		conv, err := s.store.Get(ctx, req.ConversationID)
		if err != nil {
			return failErr(c, err)
		}
		history = toSchemaMessages(conv.Messages)
		if err := s.store.AppendUserMessage(ctx, req.ConversationID, req.Query); err != nil {
			return failErr(c, err)
		}
	}

	resp, err := s.runner.Run(ctx, req.Query, history)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("Query failed")
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	if req.ConversationID != "" {
		if err := s.store.AppendAssistantMessage(ctx, req.ConversationID, resp.Answer,
			resp.LatencyMs, resp.DistinctAgents(), resp.AgentCalls); err != nil {
			// The answer was produced; losing the trace is not fatal.
			logx.Error().Err(err).Str("conversation_id", req.ConversationID).Msg("Failed to persist assistant message")
		}
	}

	return ok(c, resp)
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}
	// Body is optional for conversation creation.
	_ = c.BodyParser(&req)

	conv, err := s.store.Create(c.Context(), req.Title)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.Map{
		"id":        conv.ID,
		"title":     conv.Title,
		"createdAt": conv.CreatedAt,
	})
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.store.List(c.Context())
	if err != nil {
		return failErr(c, err)
	}

	summaries := make([]conversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, conversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
		})
	}
	return ok(c, summaries)
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conv, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, conv)
}

func (s *Server) handleConversationStats(c *fiber.Ctx) error {
	conv, err := s.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.Map{
		"messageCount": len(conv.Messages),
		"avgLatency":   conv.Stats.AvgLatencyMs(),
		"agentsUsed":   conv.Stats.AgentsUsed,
	})
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	if err := s.store.Delete(c.Context(), c.Params("id")); err != nil {
		return failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleClearConversations(c *fiber.Ctx) error {
	if err := s.store.Clear(c.Context()); err != nil {
		return failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// toSchemaMessages converts persisted history into chat messages seeding the
// session context. Tool traces are not replayed; only the role-tagged text.
func toSchemaMessages(msgs []model.ConversationMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
