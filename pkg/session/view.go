package session

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/models"
)

// NodeView is the renderable projection of one step. Handle visibility is
// derived, never stored: a source handle shows only while the step's output
// is unclaimed, input handles only while the slot is both legal for the
// step's kind and still empty.
type NodeView struct {
	ID          string            `json:"id"`
	Kind        models.StepKind   `json:"kind"`
	DisplayName string            `json:"display_name"`
	Position    history.Position  `json:"position"`
	ResultCount *int              `json:"result_count,omitempty"`

	ShowSourceHandle    bool `json:"show_source_handle"`
	ShowPrimaryHandle   bool `json:"show_primary_handle"`
	ShowSecondaryHandle bool `json:"show_secondary_handle"`

	Mismatch        bool                        `json:"mismatch"`
	MismatchMessage string                      `json:"mismatch_message,omitempty"`
	ValidationError *models.StepValidationError `json:"validation_error,omitempty"`
}

// EdgeView is a transient edge derived from a step's input slots.
type EdgeView struct {
	ID       string     `json:"id"`
	SourceID string     `json:"source_id"`
	TargetID string     `json:"target_id"`
	Slot     graph.Slot `json:"slot"`
}

// EdgeViewID builds the deterministic identity for an edge between two steps.
func EdgeViewID(sourceID, targetID string, slot graph.Slot) string {
	return fmt.Sprintf("%s-%s-%s", sourceID, targetID, slot)
}

// NodeViews projects every step into its renderable form, in step-list order.
func (s *Session) NodeViews() []NodeView {
	mismatchMessage := make(map[string]string)
	for _, group := range s.mismatches {
		for _, id := range group.StepIDs {
			mismatchMessage[id] = group.Message
		}
	}

	views := make([]NodeView, 0, len(s.strategy.Steps))
	for _, step := range s.strategy.Steps {
		kind := graph.Classify(step)
		view := NodeView{
			ID:               step.ID,
			Kind:             kind,
			DisplayName:      step.DisplayName,
			Position:         s.positions[step.ID],
			ResultCount:      step.ResultCount,
			ShowSourceHandle: s.indices.IsRoot(step.ID),
			ValidationError:  step.ValidationError,
		}

		switch kind {
		case models.StepKindCombine:
			view.ShowPrimaryHandle = step.PrimaryInputStepID == ""
			view.ShowSecondaryHandle = step.SecondaryInputStepID == ""
		case models.StepKindTransform:
			view.ShowPrimaryHandle = step.PrimaryInputStepID == ""
		}

		if msg, ok := mismatchMessage[step.ID]; ok {
			view.Mismatch = true
			view.MismatchMessage = msg
		}

		views = append(views, view)
	}
	return views
}

// EdgeViews derives the edge list from the input slots of every step.
func (s *Session) EdgeViews() []EdgeView {
	var edges []EdgeView
	for _, step := range s.strategy.Steps {
		if step.PrimaryInputStepID != "" {
			edges = append(edges, EdgeView{
				ID:       EdgeViewID(step.PrimaryInputStepID, step.ID, graph.SlotPrimary),
				SourceID: step.PrimaryInputStepID,
				TargetID: step.ID,
				Slot:     graph.SlotPrimary,
			})
		}
		if step.SecondaryInputStepID != "" {
			edges = append(edges, EdgeView{
				ID:       EdgeViewID(step.SecondaryInputStepID, step.ID, graph.SlotSecondary),
				SourceID: step.SecondaryInputStepID,
				TargetID: step.ID,
				Slot:     graph.SlotSecondary,
			})
		}
	}
	return edges
}
