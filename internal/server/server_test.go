package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-navigator/server/internal/agent/model"
	"github.com/knowledge-navigator/server/internal/agent/store"
)

// fakeRunner returns a canned response or error.
type fakeRunner struct {
	resp    *model.QueryResponse
	err     error
	history []*schema.Message
}

func (f *fakeRunner) Run(_ context.Context, query string, history []*schema.Message) (*model.QueryResponse, error) {
	f.history = history
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	resp.Query = query
	return &resp, nil
}

func testServer(runner QueryRunner) *Server {
	st := store.NewMemoryStore(model.ConversationConfig{MaxConversations: 10, TitleMaxChars: 50})
	return New(runner, st)
}

func postJSON(t *testing.T, s *Server, path string, body any) (*envelope, int) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return decode(t, resp.Body), resp.StatusCode
}

func do(t *testing.T, s *Server, method, path string) (*envelope, int) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	return decode(t, resp.Body), resp.StatusCode
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, r io.Reader) *envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(r).Decode(&env))
	return &env
}

func TestHealth(t *testing.T) {
	s := testServer(&fakeRunner{})
	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestQueryWithoutConversation(t *testing.T) {
	runner := &fakeRunner{resp: &model.QueryResponse{
		Answer:    "Tokyo has about 14 million people.",
		Complete:  true,
		LatencyMs: 42,
	}}
	s := testServer(runner)

	env, status := postJSON(t, s, "/api/query", map[string]string{"query": "Population of Tokyo?"})
	assert.Equal(t, 200, status)
	assert.True(t, env.Success)

	var data model.QueryResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Population of Tokyo?", data.Query)
	assert.Equal(t, "Tokyo has about 14 million people.", data.Answer)
	assert.Nil(t, runner.history)
}

func TestQueryValidation(t *testing.T) {
	s := testServer(&fakeRunner{})

	env, status := postJSON(t, s, "/api/query", map[string]string{"query": "   "})
	assert.Equal(t, 400, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "query is required")
}

func TestQueryTransportErrorIs500(t *testing.T) {
	s := testServer(&fakeRunner{err: errors.New("chat model: connection reset")})

	env, status := postJSON(t, s, "/api/query", map[string]string{"query": "anything"})
	assert.Equal(t, 500, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "connection reset")
}

func TestQueryUnknownConversationIs404(t *testing.T) {
	s := testServer(&fakeRunner{resp: &model.QueryResponse{Answer: "x"}})

	env, status := postJSON(t, s, "/api/query", map[string]string{
		"query":          "anything",
		"conversationId": "nope",
	})
	assert.Equal(t, 404, status)
	assert.False(t, env.Success)
}

func TestQueryPersistsIntoConversation(t *testing.T) {
	runner := &fakeRunner{resp: &model.QueryResponse{
		Answer:    "It is 21°C in Tokyo.",
		Complete:  true,
		LatencyMs: 100,
		AgentCalls: []model.AgentCall{
			{Agent: "geocode_place", Arguments: `{"place":"Tokyo"}`, Result: "ok"},
			{Agent: "get_weather", Arguments: `{}`, Result: "ok"},
		},
	}}
	s := testServer(runner)

	env, _ := postJSON(t, s, "/api/conversations", map[string]string{})
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	_, status := postJSON(t, s, "/api/query", map[string]string{
		"query":          "Weather in Tokyo?",
		"conversationId": created.ID,
	})
	assert.Equal(t, 200, status)

	env, status = do(t, s, "GET", "/api/conversations/"+created.ID)
	require.Equal(t, 200, status)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(env.Data, &conv))
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Weather in Tokyo?", conv.Title)

	env, status = do(t, s, "GET", "/api/conversations/"+created.ID+"/stats")
	require.Equal(t, 200, status)
	var stats struct {
		MessageCount int      `json:"messageCount"`
		AvgLatency   int64    `json:"avgLatency"`
		AgentsUsed   []string `json:"agentsUsed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.MessageCount)
	assert.Equal(t, int64(100), stats.AvgLatency)
	assert.ElementsMatch(t, []string{"geocode_place", "get_weather"}, stats.AgentsUsed)
}

func TestQuerySeedsHistoryFromConversation(t *testing.T) {
	runner := &fakeRunner{resp: &model.QueryResponse{Answer: "a2", Complete: true}}
	s := testServer(runner)

	env, _ := postJSON(t, s, "/api/conversations", map[string]string{})
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	_, _ = postJSON(t, s, "/api/query", map[string]string{"query": "q1", "conversationId": created.ID})
	_, _ = postJSON(t, s, "/api/query", map[string]string{"query": "q2", "conversationId": created.ID})

	// On the second query the runner sees the first exchange as history.
	require.Len(t, runner.history, 2)
	assert.Equal(t, "q1", runner.history[0].Content)
	assert.Equal(t, schema.Assistant, runner.history[1].Role)
}

func TestConversationLifecycle(t *testing.T) {
	s := testServer(&fakeRunner{})

	env, status := postJSON(t, s, "/api/conversations", map[string]string{"title": "My topic"})
	require.Equal(t, 200, status)
	var created struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "My topic", created.Title)

	env, status = do(t, s, "GET", "/api/conversations")
	require.Equal(t, 200, status)
	var list []conversationSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	_, status = do(t, s, "DELETE", "/api/conversations/"+created.ID)
	assert.Equal(t, 200, status)

	_, status = do(t, s, "GET", "/api/conversations/"+created.ID)
	assert.Equal(t, 404, status)

	_, status = do(t, s, "DELETE", "/api/conversations/"+created.ID)
	assert.Equal(t, 404, status)
}

func TestClearAllConversations(t *testing.T) {
	s := testServer(&fakeRunner{})

	_, _ = postJSON(t, s, "/api/conversations", map[string]string{})
	_, _ = postJSON(t, s, "/api/conversations", map[string]string{})

	_, status := do(t, s, "DELETE", "/api/conversations")
	assert.Equal(t, 200, status)

	env, _ := do(t, s, "GET", "/api/conversations")
	var list []conversationSummary
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)
}
