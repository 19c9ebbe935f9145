package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func search(id, recordType string) models.Step {
	return models.Step{ID: id, Kind: models.StepKindSearch, SearchName: id + "_search", RecordType: recordType}
}

func combine(id, operator, primary, secondary string) models.Step {
	return models.Step{ID: id, Kind: models.StepKindCombine, Operator: operator, PrimaryInputStepID: primary, SecondaryInputStepID: secondary}
}

func transform(id, primary string) models.Step {
	return models.Step{ID: id, Kind: models.StepKindTransform, PrimaryInputStepID: primary}
}

func TestIsValidConnection(t *testing.T) {
	tests := []struct {
		name  string
		steps []models.Step
		edge  Edge
		want  bool
	}{
		{
			name:  "self loop rejected",
			steps: []models.Step{search("a", "contact")},
			edge:  Edge{SourceID: "a", TargetID: "a", Slot: SlotPrimary},
			want:  false,
		},
		{
			name:  "unknown source rejected",
			steps: []models.Step{combine("c", "and", "", "")},
			edge:  Edge{SourceID: "ghost", TargetID: "c", Slot: SlotPrimary},
			want:  false,
		},
		{
			name: "consumed source rejected",
			steps: []models.Step{
				search("a", "contact"),
				transform("t", "a"),
				combine("c", "and", "", ""),
			},
			edge: Edge{SourceID: "a", TargetID: "c", Slot: SlotPrimary},
			want: false,
		},
		{
			name:  "primary slot on combine accepted",
			steps: []models.Step{search("a", "contact"), combine("c", "and", "", "")},
			edge:  Edge{SourceID: "a", TargetID: "c", Slot: SlotPrimary},
			want:  true,
		},
		{
			name:  "secondary slot on combine accepted",
			steps: []models.Step{search("a", "contact"), combine("c", "and", "", "")},
			edge:  Edge{SourceID: "a", TargetID: "c", Slot: SlotSecondary},
			want:  true,
		},
		{
			name:  "secondary slot on transform rejected",
			steps: []models.Step{search("a", "contact"), models.Step{ID: "t", Kind: models.StepKindTransform}},
			edge:  Edge{SourceID: "a", TargetID: "t", Slot: SlotSecondary},
			want:  false,
		},
		{
			name:  "occupied primary slot rejected",
			steps: []models.Step{search("a", "contact"), search("b", "contact"), combine("c", "and", "b", "")},
			edge:  Edge{SourceID: "a", TargetID: "c", Slot: SlotPrimary},
			want:  false,
		},
		{
			name:  "search target rejected",
			steps: []models.Step{search("a", "contact"), search("b", "contact")},
			edge:  Edge{SourceID: "a", TargetID: "b", Slot: SlotPrimary},
			want:  false,
		},
		{
			name:  "slotless merge of two roots accepted",
			steps: []models.Step{search("a", "contact"), search("b", "contact")},
			edge:  Edge{SourceID: "a", TargetID: "b", Slot: SlotNone},
			want:  true,
		},
		{
			name:  "slotless merge with single root rejected",
			steps: []models.Step{search("a", "contact")},
			edge:  Edge{SourceID: "a", TargetID: "ghost", Slot: SlotNone},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := BuildIndices(tt.steps)
			assert.Equal(t, tt.want, IsValidConnection(tt.edge, ix))
		})
	}
}

func TestIsValidConnectionRejectsDeepCycle(t *testing.T) {
	// a feeds c, c feeds t1, t1 feeds t2. Closing t2's output back into c's
	// empty secondary slot would create a cycle three hops long.
	steps := []models.Step{
		search("a", "contact"),
		combine("c", "and", "a", ""),
		transform("t1", "c"),
		transform("t2", "t1"),
	}
	ix := BuildIndices(steps)

	require.True(t, ix.IsRoot("t2"))
	assert.False(t, IsValidConnection(Edge{SourceID: "t2", TargetID: "c", Slot: SlotSecondary}, ix))

	// The same slot accepts a step outside the chain.
	steps = append(steps, search("b", "contact"))
	ix = BuildIndices(steps)
	assert.True(t, IsValidConnection(Edge{SourceID: "b", TargetID: "c", Slot: SlotSecondary}, ix))
}

func TestHasCycle(t *testing.T) {
	acyclic := BuildIndices([]models.Step{
		search("a", "contact"),
		transform("t1", "a"),
		transform("t2", "t1"),
	})
	assert.False(t, HasCycle(acyclic))

	cyclic := BuildIndices([]models.Step{
		{ID: "x", Kind: models.StepKindTransform, PrimaryInputStepID: "z"},
		{ID: "y", Kind: models.StepKindTransform, PrimaryInputStepID: "x"},
		{ID: "z", Kind: models.StepKindTransform, PrimaryInputStepID: "y"},
	})
	assert.True(t, HasCycle(cyclic))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		step models.Step
		want models.StepKind
	}{
		{"secondary input wins", models.Step{ID: "s", Kind: models.StepKindSearch, SecondaryInputStepID: "x"}, models.StepKindCombine},
		{"primary only is transform", models.Step{ID: "s", PrimaryInputStepID: "x"}, models.StepKindTransform},
		{"operator hints combine", models.Step{ID: "s", Operator: "or"}, models.StepKindCombine},
		{"stored kind hint", models.Step{ID: "s", Kind: models.StepKindTransform}, models.StepKindTransform},
		{"bare step defaults to search", models.Step{ID: "s"}, models.StepKindSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.step))
		})
	}
}

func TestRootIDs(t *testing.T) {
	steps := []models.Step{
		search("a", "contact"),
		search("b", "contact"),
		combine("c", "and", "a", "b"),
		search("d", "company"),
	}
	ix := BuildIndices(steps)

	assert.Equal(t, []string{"c", "d"}, ix.RootIDs())
	assert.True(t, ix.IsRoot("c"))
	assert.False(t, ix.IsRoot("a"))
	assert.False(t, ix.IsRoot("ghost"))
}
