package graph

import "github.com/Ramsey-B/fern/pkg/models"

// Slot identifies the input slot a connection targets. An empty slot is the
// "merge two outputs" gesture: the caller wants a new combine step joining
// the two endpoints.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
	SlotNone      Slot = ""
)

// Edge is a candidate connection. Edges are not persisted entities; they are
// derived transiently from the input slots of the step list.
type Edge struct {
	SourceID string
	TargetID string
	Slot     Slot
}

// IsValidConnection is the pure legality predicate for a proposed connection.
// It gates every connect gesture; the mutation itself happens elsewhere as a
// single atomic update to the step list.
//
// Rules, in order: no self-loops; the source's output must still be
// unclaimed (single-consumer); a primary slot accepts combine/transform
// targets, a secondary slot combines only, both requiring an empty slot and
// no upstream cycle; the slotless merge gesture requires more than one root
// and both endpoints to be roots.
func IsValidConnection(edge Edge, ix Indices) bool {
	if edge.SourceID == edge.TargetID {
		return false
	}

	source, ok := ix.StepsByID[edge.SourceID]
	if !ok {
		return false
	}
	if !ix.IsRoot(source.ID) {
		return false
	}

	if edge.Slot == SlotNone {
		return len(ix.RootIDs()) > 1 && ix.IsRoot(edge.TargetID)
	}

	target, ok := ix.StepsByID[edge.TargetID]
	if !ok {
		return false
	}

	kind := Classify(target)
	switch edge.Slot {
	case SlotPrimary:
		if kind != models.StepKindCombine && kind != models.StepKindTransform {
			return false
		}
		if target.PrimaryInputStepID != "" {
			return false
		}
	case SlotSecondary:
		if kind != models.StepKindCombine {
			return false
		}
		if target.SecondaryInputStepID != "" {
			return false
		}
	default:
		return false
	}

	return !reachesUpstream(edge.SourceID, edge.TargetID, ix)
}

// reachesUpstream walks the input references from startID and reports whether
// targetID is reachable. The visited set terminates the walk even on data
// that is already cyclic.
func reachesUpstream(startID, targetID string, ix Indices) bool {
	visited := make(map[string]bool)
	stack := []string{startID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == targetID {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		step, ok := ix.StepsByID[id]
		if !ok {
			continue
		}
		if step.PrimaryInputStepID != "" {
			stack = append(stack, step.PrimaryInputStepID)
		}
		if step.SecondaryInputStepID != "" {
			stack = append(stack, step.SecondaryInputStepID)
		}
	}

	return false
}

// HasCycle reports whether any step is (transitively) its own input.
func HasCycle(ix Indices) bool {
	for id := range ix.StepsByID {
		step := ix.StepsByID[id]
		if step.PrimaryInputStepID != "" && reachesUpstream(step.PrimaryInputStepID, id, ix) {
			return true
		}
		if step.SecondaryInputStepID != "" && reachesUpstream(step.SecondaryInputStepID, id, ix) {
			return true
		}
	}
	return false
}
