package btree

import "errors"

// Sentinel errors, checked with errors.Is and wrapped with fmt.Errorf at
// each call site that adds context — no custom error struct hierarchy.
var (
	// ErrNodeFull is returned by a node's insert when it has no spare
	// slot. It never escapes the tree driver: every caller that can see
	// it reacts by splitting and retrying.
	ErrNodeFull = errors.New("btree: node is full")

	// ErrNoSuchRecord is returned by locate when the exact key is not
	// present. The cursor it leaves behind still points at the correct
	// insertion position.
	ErrNoSuchRecord = errors.New("btree: no such record")

	// ErrEndOfTree is returned by readForward once the cursor has moved
	// past the rightmost leaf.
	ErrEndOfTree = errors.New("btree: end of tree")
)
