package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestPositionHistoryUndoRedo(t *testing.T) {
	h := NewPositionHistory(10)

	first := PositionSet{"a": {X: 0, Y: 0}}
	second := PositionSet{"a": {X: 100, Y: 50}}

	h.Push(first)
	require.Equal(t, 1, h.Len())

	undone, ok := h.Undo(second)
	require.True(t, ok)
	assert.Equal(t, first, undone)

	redone, ok := h.Redo(undone)
	require.True(t, ok)
	assert.Equal(t, second, redone)
}

func TestPositionHistoryDedupesIdenticalPushes(t *testing.T) {
	h := NewPositionHistory(10)

	ps := PositionSet{"a": {X: 1, Y: 2}, "b": {X: 3, Y: 4}}
	h.Push(ps)
	h.Push(ps.Clone())
	h.Push(ps.Clone())

	assert.Equal(t, 1, h.Len())
}

func TestPositionHistoryCap(t *testing.T) {
	h := NewPositionHistory(3)

	for i := 0; i < 5; i++ {
		h.Push(PositionSet{"a": {X: float64(i), Y: 0}})
	}

	assert.Equal(t, 3, h.Len())

	// The oldest snapshots were discarded; the newest survive.
	top, ok := h.Undo(PositionSet{})
	require.True(t, ok)
	assert.Equal(t, 4.0, top["a"].X)
}

func TestPositionHistoryPushClearsRedo(t *testing.T) {
	h := NewPositionHistory(10)

	h.Push(PositionSet{"a": {X: 0, Y: 0}})
	_, ok := h.Undo(PositionSet{"a": {X: 5, Y: 5}})
	require.True(t, ok)

	h.Push(PositionSet{"a": {X: 9, Y: 9}})

	_, ok = h.Redo(PositionSet{})
	assert.False(t, ok)
}

func TestPositionHistoryUndoOnEmpty(t *testing.T) {
	h := NewPositionHistory(10)
	_, ok := h.Undo(PositionSet{})
	assert.False(t, ok)
	_, ok = h.Redo(PositionSet{})
	assert.False(t, ok)
}

func TestPositionHistoryCloneIsolation(t *testing.T) {
	h := NewPositionHistory(10)

	ps := PositionSet{"a": {X: 1, Y: 1}}
	h.Push(ps)
	ps["a"] = Position{X: 99, Y: 99}

	undone, ok := h.Undo(PositionSet{})
	require.True(t, ok)
	assert.Equal(t, Position{X: 1, Y: 1}, undone["a"])
}

func TestContentUndoFirstWritePerTurnWins(t *testing.T) {
	c := NewContentUndo(10)

	before := models.Strategy{ID: "s", Name: "before"}
	mid := models.Strategy{ID: "s", Name: "mid-turn"}

	c.Record("turn-1", before)
	c.Record("turn-1", mid)

	snap, ok := c.Restore("turn-1")
	require.True(t, ok)
	assert.Equal(t, "before", snap.Name)
}

func TestContentUndoEvictsOldestTurn(t *testing.T) {
	c := NewContentUndo(2)

	for i := 1; i <= 3; i++ {
		c.Record(fmt.Sprintf("turn-%d", i), models.Strategy{ID: "s"})
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Restore("turn-1")
	assert.False(t, ok)
	_, ok = c.Restore("turn-3")
	assert.True(t, ok)
}

func TestContentUndoIgnoresEmptyTurnID(t *testing.T) {
	c := NewContentUndo(10)
	c.Record("", models.Strategy{ID: "s"})
	assert.Equal(t, 0, c.Len())
}

func TestContentUndoRestoreClones(t *testing.T) {
	c := NewContentUndo(10)

	c.Record("turn-1", models.Strategy{
		ID:    "s",
		Steps: []models.Step{{ID: "a", DisplayName: "original"}},
	})

	snap, ok := c.Restore("turn-1")
	require.True(t, ok)
	snap.Steps[0].DisplayName = "mutated"

	again, ok := c.Restore("turn-1")
	require.True(t, ok)
	assert.Equal(t, "original", again.Steps[0].DisplayName)
}

func TestContentUndoFlush(t *testing.T) {
	c := NewContentUndo(10)
	c.Record("turn-1", models.Strategy{ID: "s"})
	c.Flush()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Restore("turn-1")
	assert.False(t, ok)
}

func TestDomainsAreIndependent(t *testing.T) {
	// Undoing positions must not touch content snapshots and vice versa.
	h := NewPositionHistory(10)
	c := NewContentUndo(10)

	h.Push(PositionSet{"a": {X: 1, Y: 1}})
	c.Record("turn-1", models.Strategy{ID: "s", Name: "before"})

	_, ok := h.Undo(PositionSet{"a": {X: 2, Y: 2}})
	require.True(t, ok)

	snap, ok := c.Restore("turn-1")
	require.True(t, ok)
	assert.Equal(t, "before", snap.Name)
	assert.Equal(t, 1, c.Len())
}
