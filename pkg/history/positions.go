// Package history holds the two per-session undo domains. They are
// deliberately independent: undoing a drag never reverts a content change and
// undoing a content snapshot never moves a node.
package history

import (
	"fmt"
	"sort"
	"strings"
)

// Position is a node's location on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionSet maps step ids to canvas positions.
type PositionSet map[string]Position

// Clone returns an independent copy.
func (ps PositionSet) Clone() PositionSet {
	out := make(PositionSet, len(ps))
	for id, pos := range ps {
		out[id] = pos
	}
	return out
}

// signature is a stable position-keyed fingerprint used to de-duplicate
// pushes that did not actually move anything.
func (ps PositionSet) signature() string {
	ids := make([]string, 0, len(ps))
	for id := range ps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		pos := ps[id]
		fmt.Fprintf(&b, "%s:%g,%g;", id, pos.X, pos.Y)
	}
	return b.String()
}

const defaultPositionLimit = 50

// PositionHistory is a capped undo/redo stack of node-position snapshots.
// Positions are a cosmetic UI concern; nothing here touches step content or
// talks to the server.
type PositionHistory struct {
	limit int
	undo  []PositionSet
	redo  []PositionSet
}

// NewPositionHistory creates a history bounded to limit snapshots; a
// non-positive limit uses the default cap.
func NewPositionHistory(limit int) *PositionHistory {
	if limit <= 0 {
		limit = defaultPositionLimit
	}
	return &PositionHistory{limit: limit}
}

// Push records a snapshot taken before a position change commits. Pushes that
// match the most recent snapshot are dropped, so only actual movement grows
// the stack. A push invalidates the redo stack and the oldest snapshot is
// discarded past the cap.
func (h *PositionHistory) Push(ps PositionSet) {
	if len(h.undo) > 0 && h.undo[len(h.undo)-1].signature() == ps.signature() {
		return
	}

	h.undo = append(h.undo, ps.Clone())
	if len(h.undo) > h.limit {
		h.undo = h.undo[1:]
	}
	h.redo = nil
}

// Undo returns the most recent snapshot, moving the caller's current
// positions onto the redo stack. The second return is false when there is
// nothing to undo.
func (h *PositionHistory) Undo(current PositionSet) (PositionSet, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current.Clone())
	return top, true
}

// Redo is the inverse of Undo.
func (h *PositionHistory) Redo(current PositionSet) (PositionSet, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current.Clone())
	return top, true
}

// Len reports the number of undoable snapshots.
func (h *PositionHistory) Len() int {
	return len(h.undo)
}

// Flush drops both stacks. Called when the session switches strategies.
func (h *PositionHistory) Flush() {
	h.undo = nil
	h.redo = nil
}
