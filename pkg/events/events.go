// Package events consumes the assistant's streamed tool events and applies
// them to the conversation's session.
package events

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// EventType discriminates stream events.
type EventType string

const (
	EventTurnStarted       EventType = "turn.started"
	EventMessageDelta      EventType = "message.delta"
	EventToolCallStarted   EventType = "tool_call.started"
	EventToolCallCompleted EventType = "tool_call.completed"
	EventTurnCompleted     EventType = "turn.completed"
)

// StreamEvent is one event on the conversation stream. Only the fields for
// the event's type are populated.
type StreamEvent struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	TurnID         string    `json:"turn_id"`
	Timestamp      time.Time `json:"timestamp"`

	// message.delta
	MessageID string `json:"message_id,omitempty"`
	Delta     string `json:"delta,omitempty"`

	// tool_call.*
	ToolCall *ToolCallEvent `json:"tool_call,omitempty"`
}

// ToolCallEvent describes a tool invocation the assistant made during the
// turn. Graph-mutating tools return an updated strategy snapshot in their
// result; read-only tools return none.
type ToolCallEvent struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Result *ToolCallResult `json:"result,omitempty"`
}

// ToolCallResult is the completed tool call's payload.
type ToolCallResult struct {
	SnapshotID string                `json:"snapshot_id,omitempty"`
	Strategy   *models.GraphSnapshot `json:"strategy,omitempty"`
	Raw        json.RawMessage       `json:"raw,omitempty"`
}
