package models

import "encoding/json"

// Plan is the canonical executable form of a strategy: a nested tree rooted
// at the strategy's single unconsumed step, keyed by record type and step
// role. The canonical form is authoritative server-side; the engine only
// constructs candidate plans and always round-trips them through the remote
// normalizer before treating them as save-worthy.
type Plan struct {
	RecordType string    `json:"record_type,omitempty"`
	Root       *PlanNode `json:"root,omitempty"`
}

// PlanNode is one node of a plan tree. Role mirrors the step kind; combine
// nodes carry both children, transforms only the primary.
type PlanNode struct {
	ID          string          `json:"id,omitempty"`
	Role        StepKind        `json:"role"`
	DisplayName string          `json:"display_name,omitempty"`
	SearchName  string          `json:"search_name,omitempty"`
	RecordType  string          `json:"record_type,omitempty"`
	Operator    string          `json:"operator,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`

	Primary   *PlanNode `json:"primary,omitempty"`
	Secondary *PlanNode `json:"secondary,omitempty"`
}

// NormalizeRequest asks the remote normalizer for the canonical form of a
// candidate plan.
type NormalizeRequest struct {
	SiteID string `json:"site_id" validate:"required"`
	Plan   Plan   `json:"plan" validate:"required"`
}

// NormalizeResponse carries the canonical plan and any non-fatal warnings.
type NormalizeResponse struct {
	Plan     Plan     `json:"plan"`
	Warnings []string `json:"warnings,omitempty"`
}
