package history

import "github.com/Ramsey-B/fern/pkg/models"

const defaultContentLimit = 20

// ContentUndo keeps one pre-mutation strategy snapshot per message turn so
// the user can explicitly undo the model changes a streamed tool call made.
// It never records drag-only edits; those belong to PositionHistory.
type ContentUndo struct {
	limit     int
	order     []string
	snapshots map[string]models.Strategy
}

// NewContentUndo creates a content undo store bounded to limit turns.
func NewContentUndo(limit int) *ContentUndo {
	if limit <= 0 {
		limit = defaultContentLimit
	}
	return &ContentUndo{
		limit:     limit,
		snapshots: make(map[string]models.Strategy),
	}
}

// Record stores the strategy state as it was before the turn's first
// mutation. Later writes for the same turn are ignored so mid-turn snapshots
// cannot shadow the restorable state. The oldest turn is evicted past the
// cap.
func (c *ContentUndo) Record(turnID string, strategy models.Strategy) {
	if turnID == "" {
		return
	}
	if _, exists := c.snapshots[turnID]; exists {
		return
	}

	c.snapshots[turnID] = cloneStrategy(strategy)
	c.order = append(c.order, turnID)
	if len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.snapshots, oldest)
	}
}

// Restore returns the pre-turn snapshot for the given turn, if one exists.
func (c *ContentUndo) Restore(turnID string) (models.Strategy, bool) {
	snap, ok := c.snapshots[turnID]
	if !ok {
		return models.Strategy{}, false
	}
	return cloneStrategy(snap), true
}

// Len reports the number of retained turn snapshots.
func (c *ContentUndo) Len() int {
	return len(c.order)
}

// Flush drops all snapshots. Called when the session switches strategies.
func (c *ContentUndo) Flush() {
	c.order = nil
	c.snapshots = make(map[string]models.Strategy)
}

func cloneStrategy(s models.Strategy) models.Strategy {
	out := s
	out.Steps = make([]models.Step, len(s.Steps))
	copy(out.Steps, s.Steps)
	return out
}
