// Package server exposes the REST surface: query submission, conversation
// management, and a liveness probe.
package server

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/gofiber/fiber/v2"

	"github.com/knowledge-navigator/server/internal/agent/model"
)

// QueryRunner runs one orchestrated query. The production implementation is
// the orchestrator; tests substitute a fake.
type QueryRunner interface {
	Run(ctx context.Context, query string, history []*schema.Message) (*model.QueryResponse, error)
}

// Server wires the orchestrator and the conversation store behind HTTP.
type Server struct {
	app    *fiber.App
	runner QueryRunner
	store  model.ConversationStore
}

func New(runner QueryRunner, store model.ConversationStore) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{app: app, runner: runner, store: store}

	app.Post("/api/query", s.handleQuery)
	app.Post("/api/conversations", s.handleCreateConversation)
	app.Get("/api/conversations", s.handleListConversations)
	app.Get("/api/conversations/:id", s.handleGetConversation)
	app.Get("/api/conversations/:id/stats", s.handleConversationStats)
	app.Delete("/api/conversations/:id", s.handleDeleteConversation)
	app.Delete("/api/conversations", s.handleClearConversations)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	return s
}

// Listen starts serving on the given address, blocking until shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
