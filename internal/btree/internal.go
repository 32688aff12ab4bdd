package btree

import "github.com/relicdb/relicdb/internal/bx"

// InternalNode is a typed view over a raw page buffer read as an
// internal (non-leaf) node. Layout:
//
//	[0:4]   keyCount int32
//	[4:...] keys[maxKey] int32
//	[...:]  pids[maxKey+1] PageId
//
// pids[i] is the subtree holding all keys < keys[i] (and >= keys[i-1]
// for i >= 1); pids[keyCount] holds everything >= keys[keyCount-1].
type InternalNode struct {
	buf    []byte
	maxKey int
}

func WrapInternal(buf []byte, maxKey int) InternalNode { return InternalNode{buf: buf, maxKey: maxKey} }

func (n InternalNode) keyOffset(i int) int { return 4 + i*keyWidth }
func (n InternalNode) pidOffset(i int) int { return 4 + n.maxKey*keyWidth + i*pidWidth }

func (n InternalNode) KeyCount() int32     { return bx.I32At(n.buf, 0) }
func (n InternalNode) setKeyCount(v int32) { bx.PutI32At(n.buf, 0, v) }
func (n InternalNode) IsFull() bool        { return n.KeyCount() >= int32(n.maxKey) }

func (n InternalNode) Key(i int) int32        { return bx.I32At(n.buf, n.keyOffset(i)) }
func (n InternalNode) setKey(i int, k int32)  { bx.PutI32At(n.buf, n.keyOffset(i), k) }
func (n InternalNode) Pid(i int) PageId       { return bx.I32At(n.buf, n.pidOffset(i)) }
func (n InternalNode) setPid(i int, p PageId) { bx.PutI32At(n.buf, n.pidOffset(i), p) }

// InitRoot atomically wires a brand new root to its two children around
// a single separator key.
func (n InternalNode) InitRoot(left PageId, key int32, right PageId) {
	n.setKey(0, key)
	n.setPid(0, left)
	n.setPid(1, right)
	n.setKeyCount(1)
}

func (n InternalNode) locateIndex(key int32) (idx int, found bool) {
	lo, hi := 0, int(n.KeyCount())
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Key(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < int(n.KeyCount()) && n.Key(lo) == key
}

// LocateChildPtr returns the child subtree to descend into for key. A
// key equal to a separator routes to the right of that separator.
func (n InternalNode) LocateChildPtr(key int32) PageId {
	idx, found := n.locateIndex(key)
	if found {
		idx++
	}
	return n.Pid(idx)
}

// Insert adds a (key, child) pair in sorted position; child is wired in
// immediately to the right of key. Returns ErrNodeFull if there's no
// spare key slot.
func (n InternalNode) Insert(key int32, child PageId) error {
	if n.IsFull() {
		return ErrNodeFull
	}
	count := int(n.KeyCount())
	pos := 0
	for pos < count && n.Key(pos) < key {
		pos++
	}
	for i := count; i > pos; i-- {
		n.setKey(i, n.Key(i-1))
	}
	n.setKey(pos, key)
	for i := count + 1; i > pos+1; i-- {
		n.setPid(i, n.Pid(i-1))
	}
	n.setPid(pos+1, child)
	n.setKeyCount(int32(count + 1))
	return nil
}

// InsertAndSplit inserts (key, child) into a full node via a temporary
// in-memory overflow buffer (maxKey+1 keys, maxKey+2 children) then
// redistributes: the middle key is promoted to the parent rather than
// kept on either side, the left half keeps (maxKey+1)/2 keys and the
// right half keeps maxKey/2. Returns the promoted key.
func (n InternalNode) InsertAndSplit(key int32, child PageId, sibling InternalNode) int32 {
	maxKey := n.maxKey

	keys := make([]int32, maxKey+1)
	pids := make([]PageId, maxKey+2)

	pos := 0
	for pos < maxKey && n.Key(pos) < key {
		pos++
	}
	for i := 0; i < pos; i++ {
		keys[i] = n.Key(i)
	}
	keys[pos] = key
	for i := pos; i < maxKey; i++ {
		keys[i+1] = n.Key(i)
	}

	for i := 0; i <= pos; i++ {
		pids[i] = n.Pid(i)
	}
	pids[pos+1] = child
	for i := pos + 1; i <= maxKey; i++ {
		pids[i+1] = n.Pid(i)
	}

	size := maxKey + 1
	mid := size / 2
	midKey := keys[mid]

	leftCount := mid
	rightCount := maxKey - mid

	for i := 0; i < leftCount; i++ {
		n.setKey(i, keys[i])
	}
	for i := 0; i <= leftCount; i++ {
		n.setPid(i, pids[i])
	}
	n.setKeyCount(int32(leftCount))

	for i := 0; i < rightCount; i++ {
		sibling.setKey(i, keys[mid+1+i])
	}
	for i := 0; i <= rightCount; i++ {
		sibling.setPid(i, pids[mid+1+i])
	}
	sibling.setKeyCount(int32(rightCount))

	return midKey
}
