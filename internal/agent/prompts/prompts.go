package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/knowledge-navigator/server/internal/agent/model"
	"github.com/knowledge-navigator/server/internal/agent/tools"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

// RenderSystem renders the orchestrator's system prompt via the eino prompt
// component (Go template) so prompt callbacks fire.
func RenderSystem(ctx context.Context, cfg model.PromptConfig) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemPromptTemplate),
	)
	vars := map[string]any{
		"AssistantName": cfg.AssistantName,
		"WikidataTool":  tools.ToolQueryWikidata,
		"WikipediaTool": tools.ToolWikipediaSummary,
		"GeocodeTool":   tools.ToolGeocodePlace,
		"WeatherTool":   tools.ToolGetWeather,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}
