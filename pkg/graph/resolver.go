package graph

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Resolution is the effective output record type of a step. Mismatch is the
// sentinel for a combine whose two branches resolve to different concrete
// types; it is not a type and propagates upward through consumers.
type Resolution struct {
	RecordType string
	Mismatch   bool
}

// Concrete reports whether the resolution carries a usable record type.
func (r Resolution) Concrete() bool {
	return !r.Mismatch && r.RecordType != ""
}

// ResolveRecordType resolves a step's effective output record type: a
// search's own type, a transform's primary input, and for a combine the
// primary input falling back to the secondary. When both combine branches
// resolve to different concrete types the mismatch sentinel is returned.
// Resolution is memoized and terminates on already-cyclic data.
func ResolveRecordType(stepID string, ix Indices) Resolution {
	r := resolver{ix: ix, memo: make(map[string]Resolution), inProgress: make(map[string]bool)}
	return r.resolve(stepID)
}

type resolver struct {
	ix         Indices
	memo       map[string]Resolution
	inProgress map[string]bool
}

func (r *resolver) resolve(stepID string) Resolution {
	if stepID == "" {
		return Resolution{}
	}
	if cached, ok := r.memo[stepID]; ok {
		return cached
	}
	if r.inProgress[stepID] {
		// Already-cyclic data; treat the branch as unresolved.
		return Resolution{}
	}

	step, ok := r.ix.StepsByID[stepID]
	if !ok {
		return Resolution{}
	}

	r.inProgress[stepID] = true
	res := r.resolveStep(step)
	delete(r.inProgress, stepID)
	r.memo[stepID] = res
	return res
}

func (r *resolver) resolveStep(step models.Step) Resolution {
	switch Classify(step) {
	case models.StepKindSearch:
		return Resolution{RecordType: step.RecordType}

	case models.StepKindTransform:
		if inherited := r.resolve(step.PrimaryInputStepID); inherited.Mismatch || inherited.Concrete() {
			return inherited
		}
		return Resolution{RecordType: step.RecordType}

	default: // combine
		primary := r.resolve(step.PrimaryInputStepID)
		secondary := r.resolve(step.SecondaryInputStepID)

		if primary.Mismatch || secondary.Mismatch {
			return Resolution{Mismatch: true}
		}
		if primary.Concrete() && secondary.Concrete() && primary.RecordType != secondary.RecordType {
			return Resolution{Mismatch: true}
		}
		if primary.Concrete() {
			return primary
		}
		if secondary.Concrete() {
			return secondary
		}
		return Resolution{RecordType: step.RecordType}
	}
}

// MismatchGroup flags a combine whose branches resolve to incompatible
// record types. The renderer shows it as a grouped warning overlay and the
// save pipeline treats it as a hard blocker.
type MismatchGroup struct {
	StepIDs []string `json:"step_ids"`
	Message string   `json:"message"`
}

// DetectMismatches resolves both input branches of every combine step and
// collects a group for each pair of concretely-typed branches that disagree.
// It is evaluated eagerly on every structural change so warning state is
// always current, not just at save time.
func DetectMismatches(steps []models.Step) []MismatchGroup {
	ix := BuildIndices(steps)

	var groups []MismatchGroup
	for _, id := range ix.order {
		step := ix.StepsByID[id]
		if Classify(step) != models.StepKindCombine {
			continue
		}
		if step.PrimaryInputStepID == "" || step.SecondaryInputStepID == "" {
			continue
		}

		primary := ResolveRecordType(step.PrimaryInputStepID, ix)
		secondary := ResolveRecordType(step.SecondaryInputStepID, ix)
		if !primary.Concrete() || !secondary.Concrete() || primary.RecordType == secondary.RecordType {
			continue
		}

		members := map[string]bool{step.ID: true}
		collectUpstream(step.PrimaryInputStepID, ix, members)
		collectUpstream(step.SecondaryInputStepID, ix, members)

		ids := make([]string, 0, len(members))
		for member := range members {
			ids = append(ids, member)
		}
		sort.Strings(ids)

		groups = append(groups, MismatchGroup{
			StepIDs: ids,
			Message: fmt.Sprintf("cannot combine %q results with %q results", primary.RecordType, secondary.RecordType),
		})
	}

	return groups
}

func collectUpstream(stepID string, ix Indices, into map[string]bool) {
	if stepID == "" || into[stepID] {
		return
	}
	step, ok := ix.StepsByID[stepID]
	if !ok {
		return
	}
	into[stepID] = true
	collectUpstream(step.PrimaryInputStepID, ix, into)
	collectUpstream(step.SecondaryInputStepID, ix, into)
}
