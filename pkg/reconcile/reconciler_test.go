package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func strPtr(s string) *string { return &s }

func existingStrategy() *models.Strategy {
	return &models.Strategy{
		ID:         "strat-1",
		SiteID:     "site-1",
		Name:       "Quarterly contacts",
		RecordType: strPtr("contact"),
		Steps: []models.Step{
			{ID: "s1", Kind: models.StepKindSearch, SearchName: "saved_contacts", RecordType: "contact", DisplayName: "Curated Name"},
		},
	}
}

func TestBuildStrategyFromSnapshotMetadataOnly(t *testing.T) {
	var snap models.GraphSnapshot
	snap.Name = strPtr("Renamed")
	snap.MarkPresent("name")

	out := BuildStrategyFromSnapshot(Params{
		SnapshotID: "strat-1",
		SiteID:     "site-1",
		Snapshot:   snap,
		Existing:   existingStrategy(),
	})

	assert.Equal(t, "Renamed", out.Name)
	// No "steps" key: the step list is untouched.
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "s1", out.Steps[0].ID)
}

func TestBuildStrategyFromSnapshotStepsKeyPresence(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantSteps int
	}{
		{
			name:      "absent steps key keeps local steps",
			payload:   `{"name": "Renamed"}`,
			wantSteps: 1,
		},
		{
			name:      "null steps is an authoritative wipe",
			payload:   `{"steps": null}`,
			wantSteps: 0,
		},
		{
			name:      "empty steps is an authoritative wipe",
			payload:   `{"steps": []}`,
			wantSteps: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var snap models.GraphSnapshot
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &snap))

			out := BuildStrategyFromSnapshot(Params{
				SnapshotID: "strat-1",
				SiteID:     "site-1",
				Snapshot:   snap,
				Existing:   existingStrategy(),
			})

			assert.Len(t, out.Steps, tt.wantSteps)
			assert.NotNil(t, out.Steps)
		})
	}
}

func TestBuildStrategyFromSnapshotExplicitNullClears(t *testing.T) {
	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(`{"record_type": null, "name": null}`), &snap))

	out := BuildStrategyFromSnapshot(Params{
		SnapshotID: "strat-1",
		Snapshot:   snap,
		Existing:   existingStrategy(),
	})

	assert.Nil(t, out.RecordType)
	assert.Equal(t, "", out.Name)
}

func TestBuildStrategyFromSnapshotPreservesCuratedName(t *testing.T) {
	payload := `{"steps": [
		{"id": "s1", "kind": "search", "search_name": "saved_contacts", "record_type": "contact", "display_name": "https://example.com/query/123"}
	]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	out := BuildStrategyFromSnapshot(Params{
		SnapshotID: "strat-1",
		Snapshot:   snap,
		Existing:   existingStrategy(),
	})

	require.Len(t, out.Steps, 1)
	assert.Equal(t, "Curated Name", out.Steps[0].DisplayName)
}

func TestBuildStrategyFromSnapshotAcceptsCuratedIncomingName(t *testing.T) {
	existing := existingStrategy()
	existing.Steps[0].DisplayName = "saved_contacts" // fallback-like: echoes the search name

	payload := `{"steps": [
		{"id": "s1", "kind": "search", "search_name": "saved_contacts", "record_type": "contact", "display_name": "People I met at the conference"}
	]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	out := BuildStrategyFromSnapshot(Params{SnapshotID: "strat-1", Snapshot: snap, Existing: existing})

	require.Len(t, out.Steps, 1)
	assert.Equal(t, "People I met at the conference", out.Steps[0].DisplayName)
}

func TestBuildStrategyFromSnapshotPreservesDerivedFields(t *testing.T) {
	count := 42
	existing := existingStrategy()
	existing.Steps[0].ResultCount = &count
	existing.Steps[0].ValidationError = &models.StepValidationError{General: []string{"bad parameter"}}

	payload := `{"steps": [
		{"id": "s1", "kind": "search", "search_name": "saved_contacts", "record_type": "contact"}
	]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	out := BuildStrategyFromSnapshot(Params{SnapshotID: "strat-1", Snapshot: snap, Existing: existing})

	require.Len(t, out.Steps, 1)
	require.NotNil(t, out.Steps[0].ResultCount)
	assert.Equal(t, 42, *out.Steps[0].ResultCount)
	require.NotNil(t, out.Steps[0].ValidationError)
}

func TestBuildStrategyFromSnapshotMapsInputList(t *testing.T) {
	payload := `{"steps": [
		{"id": "a", "kind": "search", "search_name": "x", "record_type": "contact"},
		{"id": "b", "kind": "search", "search_name": "y", "record_type": "contact"},
		{"id": "c", "kind": "combine", "operator": "and", "input_step_ids": ["a", 7, "b", null]}
	]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	out := BuildStrategyFromSnapshot(Params{SnapshotID: "strat-1", Snapshot: snap})

	require.Len(t, out.Steps, 3)
	c := out.StepByID("c")
	require.NotNil(t, c)
	assert.Equal(t, "a", c.PrimaryInputStepID)
	assert.Equal(t, "b", c.SecondaryInputStepID)
}

func TestBuildStrategyFromSnapshotExplicitSlotsWin(t *testing.T) {
	payload := `{"steps": [
		{"id": "c", "kind": "combine", "operator": "and", "primary_input_step_id": "p", "input_step_ids": ["x", "y"]}
	]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	out := BuildStrategyFromSnapshot(Params{SnapshotID: "strat-1", Snapshot: snap})

	require.Len(t, out.Steps, 1)
	assert.Equal(t, "p", out.Steps[0].PrimaryInputStepID)
	assert.Equal(t, "", out.Steps[0].SecondaryInputStepID)
}

func TestBuildStrategyFromSnapshotIsIdempotent(t *testing.T) {
	payload := `{"name": "Renamed", "steps": [
		{"id": "s1", "kind": "search", "search_name": "saved_contacts", "record_type": "contact"},
		{"id": "s2", "kind": "search", "search_name": "other", "record_type": "contact"}
	]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	first := BuildStrategyFromSnapshot(Params{SnapshotID: "strat-1", Snapshot: snap, Existing: existingStrategy()})
	second := BuildStrategyFromSnapshot(Params{SnapshotID: "strat-1", Snapshot: snap, Existing: &first})

	assert.Equal(t, first, second)
}

func TestBuildStrategyFromSnapshotNewStrategy(t *testing.T) {
	payload := `{"name": "Fresh", "steps": [{"id": "s1", "kind": "search", "search_name": "x", "record_type": "contact"}]}`

	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))

	out := BuildStrategyFromSnapshot(Params{SnapshotID: "new-id", SiteID: "site-9", Snapshot: snap})

	assert.Equal(t, "new-id", out.ID)
	assert.Equal(t, "site-9", out.SiteID)
	assert.Equal(t, "Fresh", out.Name)
	assert.Len(t, out.Steps, 1)
}
