package models

import "time"

// Strategy is the aggregate root for a multi-step query graph. It exclusively
// owns its Steps; steps are never shared across strategies.
//
// Invariants (enforced by pkg/graph and pkg/plan, not by this type):
//   - the step reference graph is acyclic
//   - at most one step has zero consumers (the root); more than one
//     unconsumed step blocks plan serialization
//   - each non-root step is consumed by exactly one downstream step
type Strategy struct {
	ID          string  `json:"id" db:"id"`
	SiteID      string  `json:"site_id" db:"site_id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`

	// RecordType is the record type of the final/root step. Nil means not yet
	// determined (or explicitly cleared by a snapshot).
	RecordType *string `json:"record_type,omitempty" db:"record_type"`
	RootStepID *string `json:"root_step_id,omitempty" db:"root_step_id"`

	Steps []Step `json:"steps"`

	IsSaved    bool    `json:"is_saved" db:"is_saved"`
	ExternalID *string `json:"external_id,omitempty" db:"external_id"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// StepByID returns the step with the given id, or nil.
func (s *Strategy) StepByID(id string) *Step {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i]
		}
	}
	return nil
}

// CreateStrategyRequest creates a new strategy for a site.
type CreateStrategyRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	RecordType  *string `json:"record_type,omitempty"`
	Steps       []Step  `json:"steps,omitempty"`
}

// UpdateStrategyRequest applies a partial update. Nil fields are left
// untouched; the remote persistence contract accepts name, plan, saved flag
// and external linkage independently.
type UpdateStrategyRequest struct {
	Name       *string `json:"name,omitempty"`
	Plan       *Plan   `json:"plan,omitempty"`
	IsSaved    *bool   `json:"is_saved,omitempty"`
	ExternalID *string `json:"external_id,omitempty"`
}

// StrategyResponse wraps a single strategy.
type StrategyResponse struct {
	Strategy Strategy `json:"strategy"`
}

// StrategyListResponse is a paged list of strategies.
type StrategyListResponse struct {
	Items      []Strategy `json:"items"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}
