// Package plan converts between the local strategy representation and the
// canonical plan tree. Canonicalization itself is authoritative server-side;
// callers round-trip every constructed plan through the remote normalizer
// before persisting it.
package plan

import (
	"errors"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/google/uuid"
)

// Serialization preconditions. These are terminal, user-visible failures: a
// strategy that cannot serialize is not save-worthy and the caller surfaces
// the error instead of routing around it.
var (
	ErrEmptyStrategy = errors.New("strategy has no steps")
	ErrMultipleRoots = errors.New("strategy has multiple unconsumed steps; join them with a combine before saving")
	ErrCycle         = errors.New("strategy contains a cycle")
	ErrMissingInput  = errors.New("step is missing a required input")
	ErrMissingOperator = errors.New("combine step is missing an operator")
)

// Serialize converts a strategy into a candidate plan tree rooted at its
// single unconsumed step.
func Serialize(strategy models.Strategy) (models.Plan, error) {
	if len(strategy.Steps) == 0 {
		return models.Plan{}, ErrEmptyStrategy
	}

	ix := graph.BuildIndices(strategy.Steps)
	roots := ix.RootIDs()
	switch {
	case len(roots) == 0:
		return models.Plan{}, ErrCycle
	case len(roots) > 1:
		return models.Plan{}, fmt.Errorf("%w (%d roots)", ErrMultipleRoots, len(roots))
	}

	root, err := buildNode(roots[0], ix, make(map[string]bool))
	if err != nil {
		return models.Plan{}, err
	}

	recordType := ""
	if res := graph.ResolveRecordType(roots[0], ix); res.Concrete() {
		recordType = res.RecordType
	}

	return models.Plan{RecordType: recordType, Root: root}, nil
}

func buildNode(stepID string, ix graph.Indices, visiting map[string]bool) (*models.PlanNode, error) {
	if visiting[stepID] {
		return nil, ErrCycle
	}
	visiting[stepID] = true
	defer delete(visiting, stepID)

	step, ok := ix.StepsByID[stepID]
	if !ok {
		return nil, fmt.Errorf("%w: step %q references a missing input", ErrMissingInput, stepID)
	}

	node := &models.PlanNode{
		ID:          step.ID,
		Role:        graph.Classify(step),
		DisplayName: step.DisplayName,
		SearchName:  step.SearchName,
		RecordType:  step.RecordType,
		Operator:    step.Operator,
		Parameters:  step.Parameters,
	}

	switch node.Role {
	case models.StepKindCombine:
		if step.Operator == "" {
			return nil, fmt.Errorf("%w: step %q", ErrMissingOperator, step.ID)
		}
		if step.PrimaryInputStepID == "" || step.SecondaryInputStepID == "" {
			return nil, fmt.Errorf("%w: combine %q needs two inputs", ErrMissingInput, step.ID)
		}
		primary, err := buildNode(step.PrimaryInputStepID, ix, visiting)
		if err != nil {
			return nil, err
		}
		secondary, err := buildNode(step.SecondaryInputStepID, ix, visiting)
		if err != nil {
			return nil, err
		}
		node.Primary, node.Secondary = primary, secondary

	case models.StepKindTransform:
		if step.PrimaryInputStepID == "" {
			return nil, fmt.Errorf("%w: transform %q needs an input", ErrMissingInput, step.ID)
		}
		primary, err := buildNode(step.PrimaryInputStepID, ix, visiting)
		if err != nil {
			return nil, err
		}
		node.Primary = primary
	}

	return node, nil
}

// Flatten converts a plan tree back into a step list in depth-first order
// (inputs before consumers). Nodes without ids are assigned fresh ones so a
// normalizer response missing them still yields addressable steps.
func Flatten(p models.Plan) []models.Step {
	steps := make([]models.Step, 0)
	if p.Root != nil {
		flattenNode(p.Root, &steps)
	}
	return steps
}

func flattenNode(node *models.PlanNode, into *[]models.Step) string {
	id := node.ID
	if id == "" {
		id = uuid.New().String()
	}

	step := models.Step{
		ID:          id,
		Kind:        node.Role,
		DisplayName: node.DisplayName,
		SearchName:  node.SearchName,
		RecordType:  node.RecordType,
		Operator:    node.Operator,
		Parameters:  node.Parameters,
	}

	if node.Primary != nil {
		step.PrimaryInputStepID = flattenNode(node.Primary, into)
	}
	if node.Secondary != nil {
		step.SecondaryInputStepID = flattenNode(node.Secondary, into)
	}

	*into = append(*into, step)
	return id
}
