// ABOUTME: Point-in-time read view of the active path, consumed by the context builders.
// ABOUTME: Snapshots copy the path list and fix each turn's message list length at take time.

package engine

// Snapshot is an immutable view of the active path, root to leaf. The path
// list is copied when the snapshot is taken, and each turn's message slice
// header is copied, so tail appends after the snapshot are invisible to the
// holder. Cache maps are shared; tool-initiated cache writes during a
// narrator call are intentionally visible.
type Snapshot struct {
	ActiveTurnsByLevel []*TurnContext
}

// ActiveLeaf returns the turn at the tip of the active path, or nil for an
// empty snapshot.
func (s Snapshot) ActiveLeaf() *TurnContext {
	if len(s.ActiveTurnsByLevel) == 0 {
		return nil
	}
	return s.ActiveTurnsByLevel[len(s.ActiveTurnsByLevel)-1]
}

// IsEmpty reports whether the snapshot covers no turns.
func (s Snapshot) IsEmpty() bool {
	return len(s.ActiveTurnsByLevel) == 0
}
