package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/history"
	"github.com/Ramsey-B/fern/pkg/models"
)

func search(id, recordType string) models.Step {
	return models.Step{ID: id, Kind: models.StepKindSearch, SearchName: id, RecordType: recordType}
}

func newSession(steps ...models.Step) *Session {
	return New("conv-1", models.Strategy{ID: "strat-1", SiteID: "site-1", Steps: steps}, nil, 10, 10)
}

func snapshotOf(t *testing.T, payload string) models.GraphSnapshot {
	t.Helper()
	var snap models.GraphSnapshot
	require.NoError(t, json.Unmarshal([]byte(payload), &snap))
	return snap
}

func TestConnectAssignsSlot(t *testing.T) {
	s := newSession(
		search("a", "contact"),
		models.Step{ID: "t", Kind: models.StepKindTransform},
	)

	err := s.Connect(graph.Edge{SourceID: "a", TargetID: "t", Slot: graph.SlotPrimary})
	require.NoError(t, err)

	strat := s.Strategy()
	step := strat.StepByID("t")
	require.NotNil(t, step)
	assert.Equal(t, "a", step.PrimaryInputStepID)
}

func TestConnectSlotlessCreatesCombine(t *testing.T) {
	s := newSession(search("a", "contact"), search("b", "contact"))

	err := s.Connect(graph.Edge{SourceID: "a", TargetID: "b", Slot: graph.SlotNone})
	require.NoError(t, err)

	strat := s.Strategy()
	require.Len(t, strat.Steps, 3)

	created := strat.Steps[2]
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StepKindCombine, created.Kind)
	assert.Equal(t, DefaultCombineOperator, created.Operator)
	assert.Equal(t, "a", created.PrimaryInputStepID)
	assert.Equal(t, "b", created.SecondaryInputStepID)

	// The new combine is the sole root.
	require.NotNil(t, strat.RootStepID)
	assert.Equal(t, created.ID, *strat.RootStepID)
}

func TestConnectRejectsInvalidEdge(t *testing.T) {
	s := newSession(
		search("a", "contact"),
		models.Step{ID: "t", Kind: models.StepKindTransform, PrimaryInputStepID: "a"},
	)

	// Primary is already occupied.
	err := s.Connect(graph.Edge{SourceID: "a", TargetID: "t", Slot: graph.SlotPrimary})
	assert.ErrorIs(t, err, ErrInvalidConnection)

	strat := s.Strategy()
	require.Len(t, strat.Steps, 2)
}

func TestRemoveStepDetachesConsumers(t *testing.T) {
	s := newSession(
		search("a", "contact"),
		search("b", "contact"),
		models.Step{ID: "c", Kind: models.StepKindCombine, Operator: "and", PrimaryInputStepID: "a", SecondaryInputStepID: "b"},
	)
	s.MoveNodes(map[string]history.Position{"a": {X: 10, Y: 10}})

	require.NoError(t, s.RemoveStep("a"))

	strat := s.Strategy()
	require.Len(t, strat.Steps, 2)
	c := strat.StepByID("c")
	require.NotNil(t, c)
	assert.Equal(t, "", c.PrimaryInputStepID)
	assert.Equal(t, "b", c.SecondaryInputStepID)
	assert.NotContains(t, s.Positions(), "a")

	assert.ErrorIs(t, s.RemoveStep("ghost"), ErrUnknownStep)
}

func TestApplySnapshotSuppressesPlainRefetch(t *testing.T) {
	s := newSession(search("a", "contact"))
	epoch := s.Epoch()

	s.BeginTurn("turn-1")
	s.ApplySnapshot("strat-1", snapshotOf(t, `{"steps": [
		{"id": "a", "kind": "search", "search_name": "a", "record_type": "contact"},
		{"id": "b", "kind": "search", "search_name": "b", "record_type": "contact"}
	]}`))

	strat := s.Strategy()
	require.Len(t, strat.Steps, 2)

	// A re-fetch that raced the snapshot lands with the old two-step state
	// missing; it must be dropped.
	stale := models.Strategy{ID: "strat-1", Steps: []models.Step{search("a", "contact")}}
	assert.False(t, s.ApplyFetchedStrategy(epoch, stale))
	assert.Len(t, s.Strategy().Steps, 2)

	// The next turn resets the latch.
	s.BeginTurn("turn-2")
	assert.True(t, s.ApplyFetchedStrategy(epoch, stale))
	assert.Len(t, s.Strategy().Steps, 1)
}

func TestSwitchStrategyInvalidatesInFlightFetches(t *testing.T) {
	s := newSession(search("a", "contact"))
	oldEpoch := s.Epoch()
	s.MoveNodes(map[string]history.Position{"a": {X: 5, Y: 5}})

	newEpoch := s.SwitchStrategy(models.Strategy{ID: "strat-2", Steps: []models.Step{search("z", "company")}})
	assert.Equal(t, oldEpoch+1, newEpoch)

	// Results keyed to the previous strategy are ignored.
	assert.False(t, s.ApplyFetchedStrategy(oldEpoch, models.Strategy{ID: "strat-1"}))
	assert.False(t, s.ApplyFetchedMessages(oldEpoch, []models.Message{{Role: models.MessageRoleUser, Content: "hi"}}))
	assert.Equal(t, "strat-2", s.Strategy().ID)

	// Histories and positions belong to the old strategy and are flushed.
	assert.Empty(t, s.Positions())
	assert.False(t, s.UndoPositions())
	assert.False(t, s.UndoModelChanges("turn-1"))

	// Current-epoch results still apply.
	assert.True(t, s.ApplyFetchedStrategy(newEpoch, models.Strategy{ID: "strat-2", Steps: []models.Step{search("z", "company")}}))
}

func TestUndoModelChangesRestoresPreTurnStrategy(t *testing.T) {
	s := newSession(search("a", "contact"))
	s.MoveNodes(map[string]history.Position{"a": {X: 7, Y: 7}})

	s.BeginTurn("turn-1")
	s.ApplySnapshot("strat-1", snapshotOf(t, `{"name": "Rewritten", "steps": [
		{"id": "b", "kind": "search", "search_name": "b", "record_type": "company"}
	]}`))
	s.ApplySnapshot("strat-1", snapshotOf(t, `{"steps": []}`))

	require.True(t, s.UndoModelChanges("turn-1"))

	strat := s.Strategy()
	require.Len(t, strat.Steps, 1)
	assert.Equal(t, "a", strat.Steps[0].ID)

	// Positions are a separate undo domain.
	assert.Equal(t, history.Position{X: 7, Y: 7}, s.Positions()["a"])

	assert.False(t, s.UndoModelChanges("turn-9"))
}

func TestPositionUndoRedo(t *testing.T) {
	s := newSession(search("a", "contact"))

	s.MoveNodes(map[string]history.Position{"a": {X: 1, Y: 1}})
	s.MoveNodes(map[string]history.Position{"a": {X: 2, Y: 2}})

	require.True(t, s.UndoPositions())
	assert.Equal(t, history.Position{X: 1, Y: 1}, s.Positions()["a"])

	require.True(t, s.RedoPositions())
	assert.Equal(t, history.Position{X: 2, Y: 2}, s.Positions()["a"])
}

func TestBuildPlanBlockedByMismatch(t *testing.T) {
	s := newSession(
		search("a", "contact"),
		search("b", "company"),
		models.Step{ID: "c", Kind: models.StepKindCombine, Operator: "and", PrimaryInputStepID: "a", SecondaryInputStepID: "b"},
	)

	require.NotEmpty(t, s.Mismatches())
	_, err := s.BuildPlan()
	assert.ErrorIs(t, err, ErrMismatchBlocked)
}

func TestBuildPlanBlockedByValidationError(t *testing.T) {
	s := newSession(search("a", "contact"))
	require.NoError(t, s.SetStepValidation("a", &models.StepValidationError{General: []string{"bad parameter"}}))

	_, err := s.BuildPlan()
	assert.ErrorIs(t, err, ErrValidationBlocked)

	require.NoError(t, s.SetStepValidation("a", nil))
	p, err := s.BuildPlan()
	require.NoError(t, err)
	assert.Equal(t, "contact", p.RecordType)
}

func TestInstallPlanReplacesSteps(t *testing.T) {
	s := newSession(search("a", "contact"))

	s.InstallPlan(models.Plan{
		RecordType: "contact",
		Root: &models.PlanNode{
			ID: "c", Role: models.StepKindCombine, Operator: "or",
			Primary:   &models.PlanNode{ID: "a", Role: models.StepKindSearch, SearchName: "a", RecordType: "contact"},
			Secondary: &models.PlanNode{ID: "b", Role: models.StepKindSearch, SearchName: "b", RecordType: "contact"},
		},
	})

	strat := s.Strategy()
	assert.Len(t, strat.Steps, 3)
	require.NotNil(t, strat.RecordType)
	assert.Equal(t, "contact", *strat.RecordType)
	require.NotNil(t, strat.RootStepID)
	assert.Equal(t, "c", *strat.RootStepID)
}

func TestAppendDelta(t *testing.T) {
	s := newSession()

	s.AppendDelta("m1", "Search")
	s.AppendDelta("m1", "ing...")

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, models.MessageRoleAssistant, msgs[0].Role)
	assert.Equal(t, "Searching...", msgs[0].Content)
}

func TestApplyFetchedMessagesMerges(t *testing.T) {
	s := newSession()
	s.AppendMessage(models.Message{ID: "m1", Role: models.MessageRoleUser, Content: "find my contacts"})
	s.AppendDelta("m2", "Searching...")

	fetched := []models.Message{
		{ID: "m1", Role: models.MessageRoleUser, Content: "find my contacts"},
		{ID: "m2", Role: models.MessageRoleAssistant, Content: "Searching..."},
		{ID: "m3", Role: models.MessageRoleAssistant, Content: "Done: 12 results."},
	}
	require.True(t, s.ApplyFetchedMessages(s.Epoch(), fetched))

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Done: 12 results.", msgs[2].Content)
}
