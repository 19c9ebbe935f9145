// Package session owns the live editing state for one conversation: the
// strategy being built, node positions, both undo domains, the merged
// transcript, and the interleaving guards between stream-driven
// reconciliation and plain re-fetches.
package session

import (
	"errors"
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/messages"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/plan"
	"github.com/Ramsey-B/fern/pkg/reconcile"
)

var (
	ErrInvalidConnection = errors.New("connection is not valid")
	ErrUnknownStep       = errors.New("unknown step")
	ErrMismatchBlocked   = errors.New("strategy has record type mismatches")
	ErrValidationBlocked = errors.New("strategy has steps with validation errors")
)

// DefaultCombineOperator is assigned when the slotless merge gesture creates
// a combine; the user picks the real operator afterwards.
const DefaultCombineOperator = "and"

// Session is the editing state for one conversation. All mutation methods
// are synchronous and run to completion; the Manager serializes calls per
// session so a reconciliation and a local edit can never overlap
// mid-mutation.
type Session struct {
	logger ectologger.Logger

	conversationID string
	strategy       models.Strategy
	indices        graph.Indices
	mismatches     []graph.MismatchGroup

	positions   history.PositionSet
	posHistory  *history.PositionHistory
	contentUndo *history.ContentUndo

	msgs []models.Message

	// reconciledThisTurn latches when a stream-driven reconciliation lands so
	// an in-flight plain re-fetch cannot clobber it (see ApplyFetchedStrategy).
	reconciledThisTurn bool
	currentTurnID      string

	// epoch invalidates late fetch results after a strategy switch.
	epoch int
}

// New creates a session around an initial strategy.
func New(conversationID string, strategy models.Strategy, logger ectologger.Logger, positionLimit, contentLimit int) *Session {
	s := &Session{
		logger:         logger,
		conversationID: conversationID,
		strategy:       strategy,
		positions:      make(history.PositionSet),
		posHistory:     history.NewPositionHistory(positionLimit),
		contentUndo:    history.NewContentUndo(contentLimit),
	}
	s.recompute(false)
	return s
}

// Strategy returns a copy of the current strategy.
func (s *Session) Strategy() models.Strategy {
	out := s.strategy
	out.Steps = append([]models.Step(nil), s.strategy.Steps...)
	return out
}

// Epoch is the current fetch generation. Fetches started before a strategy
// switch carry a stale epoch and are ignored when they land.
func (s *Session) Epoch() int {
	return s.epoch
}

// Mismatches returns the current record-type mismatch groups. They are
// recomputed eagerly on every structural change.
func (s *Session) Mismatches() []graph.MismatchGroup {
	return s.mismatches
}

// Messages returns the merged transcript.
func (s *Session) Messages() []models.Message {
	return append([]models.Message(nil), s.msgs...)
}

// Connect applies a connect gesture as a single atomic update to the step
// list, guarded by the connection validator. The slotless form creates a new
// combine step joining the two root endpoints.
func (s *Session) Connect(edge graph.Edge) error {
	if !graph.IsValidConnection(edge, s.indices) {
		return fmt.Errorf("%w: %s -> %s (%s)", ErrInvalidConnection, edge.SourceID, edge.TargetID, edge.Slot)
	}

	steps := append([]models.Step(nil), s.strategy.Steps...)

	if edge.Slot == graph.SlotNone {
		steps = append(steps, models.Step{
			ID:                   uuid.New().String(),
			Kind:                 models.StepKindCombine,
			Operator:             DefaultCombineOperator,
			PrimaryInputStepID:   edge.SourceID,
			SecondaryInputStepID: edge.TargetID,
		})
	} else {
		assigned := false
		for i := range steps {
			if steps[i].ID != edge.TargetID {
				continue
			}
			if edge.Slot == graph.SlotPrimary {
				steps[i].PrimaryInputStepID = edge.SourceID
			} else {
				steps[i].SecondaryInputStepID = edge.SourceID
			}
			assigned = true
		}
		if !assigned {
			return fmt.Errorf("%w: %s", ErrUnknownStep, edge.TargetID)
		}
	}

	s.strategy.Steps = steps
	s.recompute(true)
	return nil
}

// Disconnect clears the input slot the edge occupies.
func (s *Session) Disconnect(edge graph.Edge) error {
	steps := append([]models.Step(nil), s.strategy.Steps...)
	for i := range steps {
		if steps[i].ID != edge.TargetID {
			continue
		}
		switch edge.Slot {
		case graph.SlotPrimary:
			if steps[i].PrimaryInputStepID != edge.SourceID {
				return fmt.Errorf("%w: no such edge", ErrInvalidConnection)
			}
			steps[i].PrimaryInputStepID = ""
		case graph.SlotSecondary:
			if steps[i].SecondaryInputStepID != edge.SourceID {
				return fmt.Errorf("%w: no such edge", ErrInvalidConnection)
			}
			steps[i].SecondaryInputStepID = ""
		default:
			return fmt.Errorf("%w: slot required", ErrInvalidConnection)
		}
		s.strategy.Steps = steps
		s.recompute(true)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownStep, edge.TargetID)
}

// AddStep appends a step, assigning an id when absent.
func (s *Session) AddStep(step models.Step) models.Step {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	s.strategy.Steps = append(append([]models.Step(nil), s.strategy.Steps...), step)
	s.recompute(true)
	return step
}

// RemoveStep deletes a step and detaches it from any consumer's input slot.
func (s *Session) RemoveStep(stepID string) error {
	if s.strategy.StepByID(stepID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}

	steps := ectolinq.Filter(s.strategy.Steps, func(step models.Step) bool {
		return step.ID != stepID
	})
	for i := range steps {
		if steps[i].PrimaryInputStepID == stepID {
			steps[i].PrimaryInputStepID = ""
		}
		if steps[i].SecondaryInputStepID == stepID {
			steps[i].SecondaryInputStepID = ""
		}
	}

	s.strategy.Steps = steps
	delete(s.positions, stepID)
	s.recompute(true)
	return nil
}

// UpdateStep replaces a step's payload in place.
func (s *Session) UpdateStep(step models.Step) error {
	for i := range s.strategy.Steps {
		if s.strategy.Steps[i].ID == step.ID {
			s.strategy.Steps[i] = step
			s.recompute(true)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownStep, step.ID)
}

// SetStepValidation attaches a remote validation verdict to a step.
func (s *Session) SetStepValidation(stepID string, verr *models.StepValidationError) error {
	for i := range s.strategy.Steps {
		if s.strategy.Steps[i].ID == stepID {
			s.strategy.Steps[i].ValidationError = verr
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
}

// MoveNodes commits a drag-stop. The pre-drag snapshot is pushed onto the
// position history (de-duplicated there when nothing moved).
func (s *Session) MoveNodes(moves map[string]history.Position) {
	if len(moves) == 0 {
		return
	}
	s.posHistory.Push(s.positions)
	for id, pos := range moves {
		s.positions[id] = pos
	}
}

// UndoPositions reverts the last committed drag. Step content is untouched.
func (s *Session) UndoPositions() bool {
	prev, ok := s.posHistory.Undo(s.positions)
	if !ok {
		return false
	}
	s.positions = prev
	return true
}

// RedoPositions re-applies an undone drag.
func (s *Session) RedoPositions() bool {
	next, ok := s.posHistory.Redo(s.positions)
	if !ok {
		return false
	}
	s.positions = next
	return true
}

// Positions returns the current node positions.
func (s *Session) Positions() history.PositionSet {
	return s.positions.Clone()
}

// BeginTurn marks the start of a new message turn: the reconciliation latch
// resets so this turn's re-fetches are only suppressed by this turn's
// snapshots.
func (s *Session) BeginTurn(turnID string) {
	s.currentTurnID = turnID
	s.reconciledThisTurn = false
}

// ApplySnapshot reconciles a streamed graph snapshot into the session. The
// pre-mutation strategy is recorded once per turn for content undo, and the
// latch is set so a concurrently in-flight plain re-fetch cannot clobber the
// reconciled state.
func (s *Session) ApplySnapshot(snapshotID string, snap models.GraphSnapshot) {
	s.contentUndo.Record(s.currentTurnID, s.strategy)

	existing := s.strategy
	s.strategy = reconcile.BuildStrategyFromSnapshot(reconcile.Params{
		SnapshotID: snapshotID,
		SiteID:     existing.SiteID,
		Snapshot:   snap,
		StepsByID:  s.indices.StepsByID,
		Existing:   &existing,
	})
	s.reconciledThisTurn = true
	s.recompute(false)

	if s.logger != nil {
		s.logger.WithFields(map[string]any{
			"conversation_id": s.conversationID,
			"strategy_id":     s.strategy.ID,
			"step_count":      len(s.strategy.Steps),
		}).Debug("applied graph snapshot")
	}
}

// UndoModelChanges restores the strategy as it was before the given turn's
// first streamed mutation. Node positions are left alone; the two undo
// domains never interact.
func (s *Session) UndoModelChanges(turnID string) bool {
	snap, ok := s.contentUndo.Restore(turnID)
	if !ok {
		return false
	}
	s.strategy = snap
	s.recompute(false)
	return true
}

// ApplyFetchedStrategy installs the result of a plain full re-fetch. The
// result is dropped when it raced a stream-driven reconciliation this turn,
// or when it was started before a strategy switch (stale epoch).
func (s *Session) ApplyFetchedStrategy(epoch int, fetched models.Strategy) bool {
	if epoch != s.epoch {
		return false
	}
	if s.reconciledThisTurn {
		if s.logger != nil {
			s.logger.WithFields(map[string]any{
				"conversation_id": s.conversationID,
				"strategy_id":     fetched.ID,
			}).Debug("suppressed re-fetch after snapshot reconciliation")
		}
		return false
	}
	s.strategy = fetched
	s.recompute(false)
	return true
}

// ApplyFetchedMessages merges a fetched transcript into the local one.
func (s *Session) ApplyFetchedMessages(epoch int, incoming []models.Message) bool {
	if epoch != s.epoch {
		return false
	}
	s.msgs = messages.Merge(s.msgs, incoming)
	return true
}

// AppendMessage adds an optimistic local message while streaming.
func (s *Session) AppendMessage(msg models.Message) {
	s.msgs = append(s.msgs, msg)
}

// AppendDelta extends the content of the identified streaming message,
// appending a new assistant message when it does not exist yet.
func (s *Session) AppendDelta(messageID, delta string) {
	for i := range s.msgs {
		if s.msgs[i].ID == messageID {
			s.msgs[i].Content += delta
			return
		}
	}
	s.msgs = append(s.msgs, models.Message{ID: messageID, Role: models.MessageRoleAssistant, Content: delta})
}

// SwitchStrategy replaces the session's strategy, bumps the fetch epoch so
// late results for the previous strategy are ignored, and flushes both undo
// domains and positions.
func (s *Session) SwitchStrategy(strategy models.Strategy) int {
	s.strategy = strategy
	s.epoch++
	s.reconciledThisTurn = false
	s.posHistory.Flush()
	s.contentUndo.Flush()
	s.positions = make(history.PositionSet)
	s.recompute(false)
	return s.epoch
}

// BuildPlan serializes the current strategy after checking the save
// blockers: record-type mismatches and outstanding step validation errors
// gate saving, never editing.
func (s *Session) BuildPlan() (models.Plan, error) {
	if len(s.mismatches) > 0 {
		return models.Plan{}, fmt.Errorf("%w: %s", ErrMismatchBlocked, s.mismatches[0].Message)
	}
	for _, step := range s.strategy.Steps {
		if step.ValidationError != nil {
			return models.Plan{}, fmt.Errorf("%w: step %q", ErrValidationBlocked, step.ID)
		}
	}
	return plan.Serialize(s.strategy)
}

// InstallPlan replaces the step list with the canonical plan returned by the
// remote normalizer.
func (s *Session) InstallPlan(p models.Plan) {
	s.strategy.Steps = plan.Flatten(p)
	if p.RecordType != "" {
		rt := p.RecordType
		s.strategy.RecordType = &rt
	}
	s.recompute(true)
}

// recompute refreshes the derived indices and mismatch groups. updateRoot
// re-derives RootStepID after local structural edits; reconciliation keeps
// whatever the snapshot decided.
func (s *Session) recompute(updateRoot bool) {
	s.indices = graph.BuildIndices(s.strategy.Steps)
	s.mismatches = graph.DetectMismatches(s.strategy.Steps)

	if updateRoot {
		if roots := s.indices.RootIDs(); len(roots) == 1 {
			root := roots[0]
			s.strategy.RootStepID = &root
		}
	}
}
