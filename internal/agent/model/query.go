package model

import "sort"

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	ConversationID string `json:"conversationId,omitempty"`
	Query          string `json:"query"`
}

// AgentCall records one tool invocation executed during a query, paired with
// the result (or error text) that was fed back to the model.
type AgentCall struct {
	Agent     string `json:"agent"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	IsError   bool   `json:"isError,omitempty"`
}

// QueryResponse is the final outcome of one orchestrated query.
type QueryResponse struct {
	Query      string      `json:"query"`
	Thoughts   []string    `json:"thoughts"`
	AgentCalls []AgentCall `json:"agentCalls"`
	Answer     string      `json:"answer"`
	LatencyMs  int64       `json:"latencyMs"`
	// Complete is false when the turn budget ran out before the model
	// produced a final answer.
	Complete bool    `json:"complete"`
	CostUSD  float64 `json:"costUsd,omitempty"`
}

// DistinctAgents returns the sorted set of agent names invoked for this query.
func (r *QueryResponse) DistinctAgents() []string {
	seen := map[string]struct{}{}
	for _, call := range r.AgentCalls {
		seen[call.Agent] = struct{}{}
	}
	agents := make([]string, 0, len(seen))
	for name := range seen {
		agents = append(agents, name)
	}
	sort.Strings(agents)
	return agents
}
