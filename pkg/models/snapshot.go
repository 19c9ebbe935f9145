package models

import "encoding/json"

// GraphSnapshot is an externally supplied, possibly partial description of a
// strategy, carried inside a streamed tool-call result. It is consumed exactly
// once by the reconciler and then discarded.
//
// Key presence matters: a field that is absent from the payload means "not
// mentioned, keep the local value", while a field that is present with a null
// value means "clear this field". The two intents come from different
// emitters and must not be collapsed, so unmarshalling records which keys the
// payload actually carried. In particular, an absent "steps" key marks a
// metadata-only update while an explicit null/empty "steps" is an
// authoritative wipe of the step list.
type GraphSnapshot struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	RecordType  *string        `json:"record_type,omitempty"`
	RootStepID  *string        `json:"root_step_id,omitempty"`
	Steps       []SnapshotStep `json:"steps,omitempty"`

	present map[string]bool
}

// Has reports whether the given JSON key was present in the payload this
// snapshot was decoded from, regardless of its value.
func (g *GraphSnapshot) Has(key string) bool {
	return g.present[key]
}

// MarkPresent records a key as present. Intended for constructing snapshots
// in code (tests, local tooling) without a JSON round trip.
func (g *GraphSnapshot) MarkPresent(keys ...string) {
	if g.present == nil {
		g.present = make(map[string]bool, len(keys))
	}
	for _, k := range keys {
		g.present[k] = true
	}
}

func (g *GraphSnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	g.present = make(map[string]bool, len(raw))
	for key := range raw {
		g.present[key] = true
	}

	type alias GraphSnapshot
	var out alias
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	out.present = g.present
	*g = GraphSnapshot(out)
	return nil
}

// SnapshotStep describes one step inside a graph snapshot. Input references
// arrive either as explicit slots or as an unordered InputStepIDs list; the
// reconciler maps the first list entry to the primary slot and the second to
// the secondary slot, discarding non-string entries.
type SnapshotStep struct {
	ID          string          `json:"id"`
	Kind        StepKind        `json:"kind,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	SearchName  string          `json:"search_name,omitempty"`
	RecordType  string          `json:"record_type,omitempty"`
	Operator    string          `json:"operator,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`

	PrimaryInputStepID   string `json:"primary_input_step_id,omitempty"`
	SecondaryInputStepID string `json:"secondary_input_step_id,omitempty"`
	InputStepIDs         []any  `json:"input_step_ids,omitempty"`
}
