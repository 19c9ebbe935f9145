package models

import "encoding/json"

// StepKind categorizes a step by how it consumes inputs.
type StepKind string

const (
	// StepKindSearch produces records directly from a named search; it has no inputs.
	StepKindSearch StepKind = "search"

	// StepKindCombine joins the outputs of two upstream steps with an operator.
	StepKindCombine StepKind = "combine"

	// StepKindTransform reshapes the output of a single upstream step.
	StepKindTransform StepKind = "transform"
)

// Step is a node in a strategy DAG. Inputs are references by step id, never
// embedded; a step's output may be consumed by at most one downstream step.
type Step struct {
	ID          string `json:"id" db:"id"`
	// Kind is an optional stored hint. Classification is structural first
	// (see graph.Classify); the stored kind only matters for steps whose
	// input slots are still empty.
	Kind        StepKind        `json:"kind,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	SearchName  string          `json:"search_name,omitempty"`
	RecordType  string          `json:"record_type,omitempty"`
	Operator    string          `json:"operator,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`

	PrimaryInputStepID   string `json:"primary_input_step_id,omitempty"`
	SecondaryInputStepID string `json:"secondary_input_step_id,omitempty"`

	// Derived/ephemeral fields set by external validation. Not authoritative
	// graph structure and never persisted as such.
	ResultCount     *int                 `json:"result_count,omitempty"`
	ValidationError *StepValidationError `json:"validation_error,omitempty"`
}

// HasInput reports whether the step consumes the given step's output in
// either slot.
func (s *Step) HasInput(stepID string) bool {
	return stepID != "" && (s.PrimaryInputStepID == stepID || s.SecondaryInputStepID == stepID)
}

// StepValidationError carries the result of a failed remote parameter
// validation for a single step.
type StepValidationError struct {
	General []string          `json:"general,omitempty"`
	ByKey   map[string]string `json:"by_key,omitempty"`
}

// ValidateStepRequest is the request sent to the remote validation service
// for a single step's parameters.
type ValidateStepRequest struct {
	SiteID     string          `json:"site_id" validate:"required"`
	RecordType string          `json:"record_type" validate:"required"`
	SearchName string          `json:"search_name" validate:"required"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ValidateStepResponse is the remote validation service's verdict.
type ValidateStepResponse struct {
	IsValid bool                `json:"is_valid"`
	Errors  StepValidationError `json:"errors,omitempty"`
}
