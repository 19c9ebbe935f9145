package events

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/session"
)

// Feed routes stream events into the session manager. It is the only writer
// of stream-driven state; the manager serializes it against HTTP edits and
// re-fetch results for the same conversation.
type Feed struct {
	sessions *session.Manager
	logger   ectologger.Logger
}

// NewFeed creates a feed over the given session manager.
func NewFeed(sessions *session.Manager, logger ectologger.Logger) *Feed {
	return &Feed{sessions: sessions, logger: logger}
}

// Handle applies one stream event to its conversation's session.
func (f *Feed) Handle(ctx context.Context, evt *StreamEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Feed.Handle")
	defer span.End()

	if evt.ConversationID == "" {
		return fmt.Errorf("event %q has no conversation id", evt.Type)
	}

	log := f.logger.WithContext(ctx).WithFields(map[string]any{
		"conversation_id": evt.ConversationID,
		"turn_id":         evt.TurnID,
		"event_type":      evt.Type,
	})

	return f.sessions.With(evt.ConversationID, func(s *session.Session) error {
		switch evt.Type {
		case EventTurnStarted:
			s.BeginTurn(evt.TurnID)

		case EventMessageDelta:
			s.AppendDelta(evt.MessageID, evt.Delta)

		case EventToolCallStarted:
			log.Debug("tool call started")

		case EventToolCallCompleted:
			if evt.ToolCall == nil || evt.ToolCall.Result == nil || evt.ToolCall.Result.Strategy == nil {
				// Read-only tool; nothing to reconcile.
				return nil
			}
			s.ApplySnapshot(evt.ToolCall.Result.SnapshotID, *evt.ToolCall.Result.Strategy)

		case EventTurnCompleted:
			log.Debug("turn completed")

		default:
			log.Warn("unknown event type")
		}
		return nil
	})
}
