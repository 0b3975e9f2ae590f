package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/knowledge-navigator/server/internal/agent/model"
	"github.com/knowledge-navigator/server/internal/agent/orchestrator"
	"github.com/knowledge-navigator/server/internal/agent/prompts"
	"github.com/knowledge-navigator/server/internal/agent/store"
	"github.com/knowledge-navigator/server/internal/agent/tools"
	"github.com/knowledge-navigator/server/internal/core"
	"github.com/knowledge-navigator/server/internal/server"
	logx "github.com/knowledge-navigator/server/pkg/logger"
	pkgredis "github.com/knowledge-navigator/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Server model.ServerConfig
	Redis  pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	ChatModel    model.ChatModelConfig
	Orchestrator model.OrchestratorConfig
	Prompt       model.PromptConfig
	Agents       model.AgentsConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("ENVIRONMENT"))})

	convStore, err := buildStore(cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise conversation store")
	}

	queryTools := tools.NewQueryTools(tools.NewClient(cfg.Agents))
	toolInfos, err := tools.GetToolInfos(ctx, queryTools)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to resolve tool infos")
	}

	chatModel, err := orchestrator.NewGeminiChatModel(ctx, cfg.APIKey, cfg.BaseURL, cfg.ChatModel, toolInfos)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create chat model")
	}

	systemPrompt, err := prompts.RenderSystem(ctx, cfg.Prompt)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to render system prompt")
	}

	orch, err := orchestrator.New(ctx, chatModel, queryTools, systemPrompt, cfg.Orchestrator, cfg.ChatModel.Model)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build orchestrator")
	}

	srv := server.New(orch, convStore)
	logx.Info().
		Str("listen", cfg.Server.Listen).
		Str("store", cfg.Server.StoreBackend).
		Str("model", cfg.ChatModel.Model).
		Msg("Starting server")
	if err := srv.Listen(cfg.Server.Listen); err != nil {
		logx.Fatal().Err(err).Msg("Server stopped")
	}
}

func buildStore(cfg AppConfig) (model.ConversationStore, error) {
	switch cfg.Server.StoreBackend {
	case "memory":
		return store.NewMemoryStore(cfg.Conversation), nil
	case "redis":
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, fmt.Errorf("redis client: %w", err)
		}
		return store.NewRedisStore(rdb, cfg.Conversation)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Server.StoreBackend)
	}
}
