// ABOUTME: Sentinel errors for turn tree operations.
// ABOUTME: Bad call ordering surfaces as typed errors; agent-level failures never do.

package engine

import "errors"

var (
	// ErrNoActiveTurn is returned when an operation requires an active leaf
	// but the tree is empty or fully closed.
	ErrNoActiveTurn = errors.New("no active turn")

	// ErrNoDeclarations is returned when a turn batch is started with an
	// empty declaration list.
	ErrNoDeclarations = errors.New("no action declarations provided")
)
