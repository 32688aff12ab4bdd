package btree

// Fixed field widths used throughout the node codec. Keys are int32;
// a RecordId is a pair of int32s (pid, sid); a PageId is int32.
const (
	keyWidth = 4
	ridWidth = 8 // pid(4) + sid(4)
	pidWidth = 4

	leafHeaderWidth     = 4 + 4 // keyCount + nextPid
	internalHeaderWidth = 4     // keyCount
)

// MaxKey returns BT_MAX_KEY for a given page size: the largest key count
// a leaf node can hold, given the leaf layout of keyCount+nextPid+keys+rids.
// Internal nodes, which need less room per key, reuse the same constant
// rather than a separately derived (larger) capacity, so a single number
// describes "how full a node can get" across both node kinds.
func MaxKey(pageSize int) int {
	n := (pageSize - leafHeaderWidth) / (keyWidth + ridWidth)
	if n < 3 {
		// A tree needs room for at least a handful of keys per node for
		// the split arithmetic (BT_MAX_KEY/2, (BT_MAX_KEY+1)/2) to behave;
		// pages smaller than this aren't a usable configuration.
		n = 3
	}
	return n
}

// leafSize returns the number of bytes a leaf node occupies for the
// given capacity. It is <= pageSize for any pageSize of at least 44;
// below that, MaxKey's clamp to 3 yields a leaf larger than the page.
func leafSize(maxKey int) int {
	return leafHeaderWidth + maxKey*(keyWidth+ridWidth)
}

// internalSize returns the number of bytes an internal node occupies
// (keys plus maxKey+1 children) for the given capacity.
func internalSize(maxKey int) int {
	return internalHeaderWidth + maxKey*keyWidth + (maxKey+1)*pidWidth
}
