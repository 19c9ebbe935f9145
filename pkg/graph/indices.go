// Package graph implements the structural layer of a strategy DAG: derived
// indices, connection legality, and record-type resolution.
package graph

import "github.com/Ramsey-B/fern/pkg/models"

// Indices are the derived lookups recomputed from a step list on every
// structural change. Building them is O(n) and side-effect free.
type Indices struct {
	StepsByID        map[string]models.Step
	UsedAsInputCount map[string]int

	order []string
}

// BuildIndices derives the id index and per-step consumer counts from a step
// list. Steps referencing unknown ids still count as consumers; the validator
// and resolver treat dangling references as absent inputs.
func BuildIndices(steps []models.Step) Indices {
	ix := Indices{
		StepsByID:        make(map[string]models.Step, len(steps)),
		UsedAsInputCount: make(map[string]int, len(steps)),
		order:            make([]string, 0, len(steps)),
	}

	for _, step := range steps {
		ix.StepsByID[step.ID] = step
		ix.order = append(ix.order, step.ID)
	}

	for _, step := range steps {
		if step.PrimaryInputStepID != "" {
			ix.UsedAsInputCount[step.PrimaryInputStepID]++
		}
		if step.SecondaryInputStepID != "" {
			ix.UsedAsInputCount[step.SecondaryInputStepID]++
		}
	}

	return ix
}

// IsRoot reports whether the step exists and no downstream step consumes its
// output.
func (ix Indices) IsRoot(stepID string) bool {
	_, ok := ix.StepsByID[stepID]
	return ok && ix.UsedAsInputCount[stepID] == 0
}

// RootIDs returns the ids of all root candidates in step-list order. A
// serializable strategy has exactly one.
func (ix Indices) RootIDs() []string {
	var roots []string
	for _, id := range ix.order {
		if ix.UsedAsInputCount[id] == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Classify infers a step's kind. Structure wins over the stored kind: a step
// with a secondary input can only be a combine, one with only a primary input
// is a transform. For steps whose slots are still empty the operator and the
// stored kind hint decide, so a freshly added combine can legally accept
// connections before its inputs are wired.
func Classify(step models.Step) models.StepKind {
	switch {
	case step.SecondaryInputStepID != "":
		return models.StepKindCombine
	case step.PrimaryInputStepID != "":
		return models.StepKindTransform
	case step.Operator != "":
		return models.StepKindCombine
	case step.Kind != "":
		return step.Kind
	default:
		return models.StepKindSearch
	}
}
