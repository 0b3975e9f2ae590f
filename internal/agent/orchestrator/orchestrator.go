// Package orchestrator drives the multi-turn function-calling exchange with
// the chat model: execute requested tool invocations, feed results back, and
// repeat until the model produces a final answer or the turn budget runs out.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/knowledge-navigator/server/internal/agent/model"
	"github.com/knowledge-navigator/server/internal/agent/tools"
	"github.com/knowledge-navigator/server/internal/agent/validator"
	logx "github.com/knowledge-navigator/server/pkg/logger"
)

// incompleteAnswer is returned when the turn budget runs out before the model
// converges on a final answer.
const incompleteAnswer = "I couldn't finish researching this question within the allowed number of steps. Please try a narrower question, or ask again."

// ChatModel is the subset of the eino chat model the loop needs. The
// production implementation is the Gemini model with tools bound; tests
// substitute a scripted fake.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

type Orchestrator struct {
	chatModel    ChatModel
	registry     map[string]tool.InvokableTool
	systemPrompt string
	maxTurns     int
	modelName    string
}

// New builds an orchestrator with a dispatch table resolved once from the
// given tools. Operation names the model invents at runtime that are not in
// the table become error results, never silent no-ops.
func New(ctx context.Context, cm ChatModel, queryTools []tool.BaseTool, systemPrompt string, cfg model.OrchestratorConfig, modelName string) (*Orchestrator, error) {
	if cm == nil {
		return nil, fmt.Errorf("chat model is nil")
	}

	registry := make(map[string]tool.InvokableTool, len(queryTools))
	for _, t := range queryTools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, fmt.Errorf("tool %q is not invokable", info.Name)
		}
		registry[info.Name] = inv
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	return &Orchestrator{
		chatModel:    cm,
		registry:     registry,
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
		modelName:    modelName,
	}, nil
}

// Run processes one user query, optionally seeded with prior conversation
// history. Tool-level failures are folded into the response as error results;
// only a failure of the chat transport itself returns an error.
func (o *Orchestrator) Run(ctx context.Context, query string, history []*schema.Message) (*model.QueryResponse, error) {
	start := time.Now()
	resp := &model.QueryResponse{
		Query:      query,
		Thoughts:   []string{},
		AgentCalls: []model.AgentCall{},
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(o.systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(query))

	var callSeq int
	for turn := 0; turn < o.maxTurns; turn++ {
		out, err := o.chatModel.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("chat model: %w", err)
		}
		o.accountUsage(resp, out)

		if len(out.ToolCalls) == 0 {
			resp.Answer = out.Content
			resp.Complete = true
			resp.LatencyMs = time.Since(start).Milliseconds()
			logx.Debug().
				Int("turns", turn+1).
				Int("agent_calls", len(resp.AgentCalls)).
				Int64("latency_ms", resp.LatencyMs).
				Msg("Query completed")
			return resp, nil
		}

		// Some providers omit tool call IDs; synthesize them so results
		// stay paired with their invocations.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				callSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", callSeq)
			}
		}

		if thought := strings.TrimSpace(out.Content); thought != "" {
			resp.Thoughts = append(resp.Thoughts, thought)
		}

		messages = append(messages, out)

		logx.Debug().Int("tool_count", len(out.ToolCalls)).Int("turn", turn+1).Msg("Dispatching tool calls")
		results := o.dispatchAll(ctx, out.ToolCalls)

		for i, tc := range out.ToolCalls {
			res := results[i]
			resp.AgentCalls = append(resp.AgentCalls, model.AgentCall{
				Agent:     tc.Function.Name,
				Arguments: tc.Function.Arguments,
				Result:    res.content,
				IsError:   res.isErr,
			})
			content := res.content
			if res.isErr {
				content = "Error: " + res.content
			}
			messages = append(messages, schema.ToolMessage(content, tc.ID, schema.WithToolName(tc.Function.Name)))
		}
	}

	logx.Warn().
		Int("max_turns", o.maxTurns).
		Int("agent_calls", len(resp.AgentCalls)).
		Msg("Turn budget exhausted before final answer")
	resp.Answer = incompleteAnswer
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

type toolResult struct {
	content string
	isErr   bool
}

// dispatchAll executes all of a turn's tool calls concurrently. Calls within
// one turn are assumed independent; the model sequences dependent calls
// across turns. Results are addressed by index so completion order never
// affects pairing.
func (o *Orchestrator) dispatchAll(ctx context.Context, calls []schema.ToolCall) []toolResult {
	results := make([]toolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call schema.ToolCall) {
			defer wg.Done()
			content, err := o.dispatch(ctx, call)
			if err != nil {
				logx.Warn().
					Str("agent", call.Function.Name).
					Err(err).
					Msg("Tool call failed")
				results[i] = toolResult{content: toolErrorText(err), isErr: true}
				return
			}
			results[i] = toolResult{content: content}
		}(i, call)
	}
	wg.Wait()
	return results
}

// toolErrorText extracts the message fed back to the model when a tool call
// fails. utils.NewTool wraps callback errors with invocation context
// ("[LocalFunc] failed to invoke tool, ..."); the model only needs the
// callback's own message, so that wrapper layer is peeled off.
func toolErrorText(err error) string {
	if inner := errors.Unwrap(err); inner != nil && strings.HasPrefix(err.Error(), "[LocalFunc]") {
		return inner.Error()
	}
	return err.Error()
}

func (o *Orchestrator) dispatch(ctx context.Context, call schema.ToolCall) (string, error) {
	name := call.Function.Name
	t, ok := o.registry[name]
	if !ok {
		return "", fmt.Errorf("unsupported operation %q", name)
	}

	// Graph queries pass the validation gate before any network call.
	if name == tools.ToolQueryWikidata {
		var in struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &in); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %v", name, err)
		}
		if v := validator.Validate(in.Query); !v.OK {
			return "", fmt.Errorf("query rejected: %s", v.Reason)
		}
	}

	return t.InvokableRun(ctx, call.Function.Arguments)
}

func (o *Orchestrator) accountUsage(resp *model.QueryResponse, out *schema.Message) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	pricing := model.ResolvePricing(o.modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)
	resp.CostUSD += totalC
	logx.Debug().
		Str("model", o.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", resp.CostUSD).
		Msg("LLM usage")
}
