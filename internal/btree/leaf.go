package btree

import "github.com/relicdb/relicdb/internal/bx"

// LeafNode is a typed view over a raw page buffer, read by the tree
// driver as a leaf. The buffer layout is:
//
//	[0:4]   keyCount int32
//	[4:8]   nextPid  int32 (-1 at the rightmost leaf)
//	[8:...] keys[maxKey] int32
//	[...:]  rids[maxKey] RecordId (pid int32, sid int32)
//
// Node type is never stored in the buffer itself — the tree driver
// knows whether a page is a leaf from the level it was fetched at.
type LeafNode struct {
	buf    []byte
	maxKey int
}

// WrapLeaf views an existing page buffer as a leaf node.
func WrapLeaf(buf []byte, maxKey int) LeafNode { return LeafNode{buf: buf, maxKey: maxKey} }

// InitLeaf zeroes a fresh page buffer into an empty leaf.
func InitLeaf(buf []byte, maxKey int) LeafNode {
	n := LeafNode{buf: buf, maxKey: maxKey}
	n.setKeyCount(0)
	n.SetNextPid(NilPageId)
	return n
}

func (n LeafNode) keyOffset(i int) int { return 8 + i*keyWidth }
func (n LeafNode) ridOffset(i int) int { return 8 + n.maxKey*keyWidth + i*ridWidth }

func (n LeafNode) KeyCount() int32     { return bx.I32At(n.buf, 0) }
func (n LeafNode) setKeyCount(v int32) { bx.PutI32At(n.buf, 0, v) }

func (n LeafNode) NextPid() PageId         { return bx.I32At(n.buf, 4) }
func (n LeafNode) SetNextPid(pid PageId)   { bx.PutI32At(n.buf, 4, pid) }
func (n LeafNode) IsFull() bool            { return n.KeyCount() >= int32(n.maxKey) }
func (n LeafNode) Key(i int) int32         { return bx.I32At(n.buf, n.keyOffset(i)) }
func (n LeafNode) setKey(i int, k int32)   { bx.PutI32At(n.buf, n.keyOffset(i), k) }

// Rid reads the RecordId stored at slot i. This is an unconditional
// read-by-slot: it never compares the stored key against a caller-
// supplied key. An earlier draft of this accessor took the key as an
// input and rejected the read if it didn't match what was stored at
// the slot — that's backwards for a pure accessor and made every
// lookup hostage to an uninitialized comparison; callers that need to
// find a slot by key use Locate first.
func (n LeafNode) Rid(i int) RecordId {
	off := n.ridOffset(i)
	return RecordId{Pid: bx.I32At(n.buf, off), Sid: bx.I32At(n.buf, off+4)}
}

func (n LeafNode) setRid(i int, r RecordId) {
	off := n.ridOffset(i)
	bx.PutI32At(n.buf, off, r.Pid)
	bx.PutI32At(n.buf, off+4, r.Sid)
}

// Locate finds key's slot: the leftmost slot holding key if present, or
// otherwise the smallest slot whose key exceeds the target (possibly
// n.KeyCount(), meaning "not in this leaf, continue at the next one").
func (n LeafNode) Locate(key int32) (eid int, found bool) {
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

// Insert adds (key, rid) in sorted position. Returns ErrNodeFull if the
// leaf has no spare slot; the caller is expected to split and retry.
func (n LeafNode) Insert(key int32, rid RecordId) error {
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
		n.setRid(i, n.Rid(i-1))
	}
	n.setKey(pos, key)
	n.setRid(pos, rid)
	n.setKeyCount(int32(count + 1))
	return nil
}

// InsertAndSplit splits a full leaf, distributing (key, rid) into
// whichever half it belongs to, and returns the separator key the
// parent should adopt (the sibling's first key). The caller must link
// sibling into the page chain by setting this leaf's next pointer to
// the sibling's page id; InsertAndSplit only splices sibling.NextPid to
// what this leaf's next pointer used to be.
func (n LeafNode) InsertAndSplit(key int32, rid RecordId, sibling LeafNode) int32 {
	mid := n.maxKey / 2
	start := mid
	if key >= n.Key(mid) {
		start = (n.maxKey + 1) / 2
	}

	moved := n.maxKey - start
	for i := 0; i < moved; i++ {
		sibling.setKey(i, n.Key(start+i))
		sibling.setRid(i, n.Rid(start+i))
	}
	sibling.setKeyCount(int32(moved))
	sibling.SetNextPid(n.NextPid())
	n.setKeyCount(int32(start))

	if key > n.Key(start-1) {
		sibling.Insert(key, rid)
	} else {
		n.Insert(key, rid)
	}
	return sibling.Key(0)
}

// Forward advances (pid, eid) one slot within this leaf's chain. It
// checks pid<0 before advancing, matching the "end of tree" boundary:
// once the cursor is exhausted, advancing it again is still end-of-tree
// rather than a panic or a silent no-op.
func (n LeafNode) Forward(pid PageId, eid int32) (PageId, int32, error) {
	if pid < 0 {
		return NilPageId, 0, ErrEndOfTree
	}
	eid++
	if eid >= n.KeyCount() {
		return n.NextPid(), 0, nil
	}
	return pid, eid, nil
}
