package models

import (
	"encoding/json"
	"time"
)

// Message roles as they appear on the transcript.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// Message is one entry in a conversation transcript. While a response
// streams, the client-side list is optimistic and incrementally appended;
// enrichment fields may exist locally before the authoritative fetch catches
// up (see messages.Merge).
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Enrichments. The server is authoritative for role/content; these may be
	// ahead of the fetched transcript and are preserved across merges.
	ToolCalls     []ToolCall          `json:"tool_calls,omitempty"`
	Citations     []Citation          `json:"citations,omitempty"`
	SubAgents     []SubAgentActivity  `json:"sub_agents,omitempty"`
	Planning      json.RawMessage     `json:"planning,omitempty"`
	Optimization  *OptimizationState  `json:"optimization,omitempty"`
}

// ToolCall records one tool invocation made while producing a message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// Citation links a span of assistant text to a source document.
type Citation struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// SubAgentActivity reports progress of a delegated sub-agent.
type SubAgentActivity struct {
	AgentID string `json:"agent_id"`
	Label   string `json:"label,omitempty"`
	Status  string `json:"status,omitempty"`
}

// OptimizationState is in-progress optimization telemetry streamed alongside
// a message.
type OptimizationState struct {
	Phase    string  `json:"phase,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}
