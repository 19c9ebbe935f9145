// Package reconcile merges graph snapshots arriving from the streamed event
// feed into locally edited strategy state without losing user intent.
package reconcile

import (
	"github.com/Ramsey-B/fern/pkg/models"
)

// Params carries everything BuildStrategyFromSnapshot needs. StepsByID is the
// caller's current index of local steps; when nil it is derived from
// Existing. Existing may be nil for a strategy first seen via the stream.
type Params struct {
	SnapshotID string
	SiteID     string
	Snapshot   models.GraphSnapshot
	StepsByID  map[string]models.Step
	Existing   *models.Strategy
}

// BuildStrategyFromSnapshot merges a possibly partial graph snapshot into the
// existing strategy. The function is pure and idempotent: no I/O, no clock,
// and applying the same snapshot twice yields the same result.
//
// Three ambiguities are resolved here:
//
//  1. A snapshot without a "steps" key is a metadata-only update and leaves
//     the step list untouched; "steps" present but null or empty is an
//     authoritative wipe. The distinction is key presence, not truthiness.
//  2. Strategy metadata merges per field on key presence: a key carried in
//     the payload wins even when its value is null (an explicit clear), an
//     absent key keeps the local value.
//  3. Fallback-looking display names echoed by the server never overwrite a
//     name the user curated locally (see resolveDisplayName).
func BuildStrategyFromSnapshot(p Params) models.Strategy {
	var out models.Strategy
	if p.Existing != nil {
		out = *p.Existing
	} else {
		out.ID = p.SnapshotID
		out.SiteID = p.SiteID
	}
	if out.ID == "" {
		out.ID = p.SnapshotID
	}
	if out.SiteID == "" {
		out.SiteID = p.SiteID
	}

	snap := p.Snapshot
	if snap.Has("name") {
		if snap.Name != nil {
			out.Name = *snap.Name
		} else {
			out.Name = ""
		}
	}
	if snap.Has("description") {
		out.Description = snap.Description
	}
	if snap.Has("record_type") {
		out.RecordType = snap.RecordType
	}
	if snap.Has("root_step_id") {
		out.RootStepID = snap.RootStepID
	}

	if snap.Has("steps") {
		out.Steps = buildSteps(snap.Steps, stepsIndex(p))
	} else if p.Existing != nil {
		out.Steps = p.Existing.Steps
	}
	if out.Steps == nil {
		out.Steps = []models.Step{}
	}

	return out
}

func stepsIndex(p Params) map[string]models.Step {
	if p.StepsByID != nil {
		return p.StepsByID
	}
	index := make(map[string]models.Step)
	if p.Existing != nil {
		for _, step := range p.Existing.Steps {
			index[step.ID] = step
		}
	}
	return index
}

func buildSteps(incoming []models.SnapshotStep, existingByID map[string]models.Step) []models.Step {
	steps := make([]models.Step, 0, len(incoming))
	for _, ss := range incoming {
		steps = append(steps, buildStep(ss, existingByID))
	}
	return steps
}

func buildStep(ss models.SnapshotStep, existingByID map[string]models.Step) models.Step {
	primary, secondary := resolveInputs(ss)

	step := models.Step{
		ID:                   ss.ID,
		Kind:                 ss.Kind,
		SearchName:           ss.SearchName,
		RecordType:           ss.RecordType,
		Operator:             ss.Operator,
		Parameters:           ss.Parameters,
		PrimaryInputStepID:   primary,
		SecondaryInputStepID: secondary,
	}

	existing, known := existingByID[ss.ID]
	if known {
		// Derived fields are local state the snapshot never carries.
		step.ResultCount = existing.ResultCount
		step.ValidationError = existing.ValidationError
	}

	step.DisplayName = resolveDisplayName(ss.DisplayName, existing.DisplayName, step)
	return step
}

// resolveInputs maps a snapshot step's input references onto the primary and
// secondary slots. Explicit slots win; otherwise the unordered list assigns
// its first string entry to primary and its second to secondary, discarding
// anything that is not a string.
func resolveInputs(ss models.SnapshotStep) (primary, secondary string) {
	primary = ss.PrimaryInputStepID
	secondary = ss.SecondaryInputStepID
	if primary != "" || secondary != "" {
		return primary, secondary
	}

	var ids []string
	for _, entry := range ss.InputStepIDs {
		if id, ok := entry.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		primary = ids[0]
	}
	if len(ids) > 1 {
		secondary = ids[1]
	}
	return primary, secondary
}
