// Package btree implements the on-disk B+Tree index: fixed-size leaf
// and internal node pages, iterative split propagation up to the root,
// and forward cursor traversal of the leaf chain.
package btree

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/relicdb/relicdb/internal/bufferpool"
	"github.com/relicdb/relicdb/internal/bx"
	"github.com/relicdb/relicdb/internal/pager"
)

const metaPid PageId = 0

// Tree is the B+Tree driver: it owns the index file (through a
// write-through buffer cache) and the meta page fields (root, height),
// and performs root-to-leaf descent and upward split propagation.
type Tree struct {
	p      *pager.Pager
	bp     *bufferpool.Pool
	maxKey int

	mu      sync.Mutex
	rootPid PageId
	height  int32

	closed atomic.Bool
}

// Open opens (ModeWrite: creates if missing) the index file at path. A
// freshly created file gets an empty meta page; an existing one has its
// root/height restored from page 0.
func Open(path string, mode pager.Mode, pageSize int) (*Tree, error) {
	p, err := pager.Open(path, mode, pageSize)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		p:      p,
		bp:     bufferpool.New(p, bufferpool.DefaultCapacity),
		maxKey: MaxKey(p.PageSize()),
	}

	if p.EndPid() == 0 {
		t.rootPid = NilPageId
		t.height = 0
		pid, _, err := t.bp.NewPage()
		if err != nil {
			return nil, err
		}
		if err := t.bp.Unpin(pid, false); err != nil {
			return nil, err
		}
		if err := t.writeMeta(); err != nil {
			return nil, err
		}
		slog.Debug("btree.Open.new", "path", path, "maxKey", t.maxKey)
	} else {
		if err := t.loadMeta(); err != nil {
			return nil, err
		}
		slog.Debug("btree.Open.existing", "path", path, "rootPid", t.rootPid, "height", t.height)
	}

	return t, nil
}

func (t *Tree) ensureOpen() error {
	if t.closed.Load() {
		return errors.New("btree: tree is closed")
	}
	return nil
}

// Close flushes and releases the index file.
func (t *Tree) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.p.Close()
}

func (t *Tree) loadMeta() error {
	buf, err := t.bp.GetPage(metaPid)
	if err != nil {
		return err
	}
	t.rootPid = bx.I32At(buf, 0)
	t.height = bx.I32At(buf, 4)
	return t.bp.Unpin(metaPid, false)
}

func (t *Tree) writeMeta() error {
	buf, err := t.bp.GetPage(metaPid)
	if err != nil {
		return err
	}
	bx.PutI32At(buf, 0, t.rootPid)
	bx.PutI32At(buf, 4, t.height)
	return t.bp.Unpin(metaPid, true)
}

// Insert adds (key, rid) to the tree, splitting and growing the tree
// upward as needed. Split propagation is iterative over the stack of
// internal page ids visited during descent — never recursive — so the
// amount of work is bounded by treeHeight regardless of call-stack
// limits.
func (t *Tree) Insert(key int32, rid RecordId) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPid == NilPageId {
		pid, buf, err := t.bp.NewPage()
		if err != nil {
			return err
		}
		leaf := InitLeaf(buf, t.maxKey)
		if err := leaf.Insert(key, rid); err != nil {
			return err
		}
		if err := t.bp.Unpin(pid, true); err != nil {
			return err
		}
		t.rootPid = pid
		t.height = 1
		return t.writeMeta()
	}

	var path []PageId
	pid := t.rootPid
	for level := int32(0); level < t.height-1; level++ {
		buf, err := t.bp.GetPage(pid)
		if err != nil {
			return err
		}
		node := WrapInternal(buf, t.maxKey)
		next := node.LocateChildPtr(key)
		if err := t.bp.Unpin(pid, false); err != nil {
			return err
		}
		path = append(path, pid)
		pid = next
	}
	leafPid := pid

	buf, err := t.bp.GetPage(leafPid)
	if err != nil {
		return err
	}
	leaf := WrapLeaf(buf, t.maxKey)
	if err := leaf.Insert(key, rid); err == nil {
		return t.bp.Unpin(leafPid, true)
	} else if !errors.Is(err, ErrNodeFull) {
		t.bp.Unpin(leafPid, false)
		return err
	}

	sibPid, sibBuf, err := t.bp.NewPage()
	if err != nil {
		return err
	}
	sibling := InitLeaf(sibBuf, t.maxKey)
	childKey := leaf.InsertAndSplit(key, rid, sibling)
	leaf.SetNextPid(sibPid)
	if err := t.bp.Unpin(leafPid, true); err != nil {
		return err
	}
	if err := t.bp.Unpin(sibPid, true); err != nil {
		return err
	}

	childPid := sibPid
	// parentID starts as the original (now left-half) leaf's page id.
	// If path is empty — the root was that leaf — this is exactly the
	// id the new root's left child must be: the leaf never moved, only
	// its sibling is new.
	parentID := leafPid

	for len(path) > 0 {
		parentID = path[len(path)-1]
		path = path[:len(path)-1]

		pbuf, err := t.bp.GetPage(parentID)
		if err != nil {
			return err
		}
		parent := WrapInternal(pbuf, t.maxKey)

		if err := parent.Insert(childKey, childPid); err == nil {
			return t.bp.Unpin(parentID, true)
		} else if !errors.Is(err, ErrNodeFull) {
			t.bp.Unpin(parentID, false)
			return err
		}

		newSibPid, newSibBuf, err := t.bp.NewPage()
		if err != nil {
			return err
		}
		newSib := WrapInternal(newSibBuf, t.maxKey)
		mid := parent.InsertAndSplit(childKey, childPid, newSib)
		if err := t.bp.Unpin(parentID, true); err != nil {
			return err
		}
		if err := t.bp.Unpin(newSibPid, true); err != nil {
			return err
		}

		childKey = mid
		childPid = newSibPid
	}

	newRootPid, newRootBuf, err := t.bp.NewPage()
	if err != nil {
		return err
	}
	newRoot := WrapInternal(newRootBuf, t.maxKey)
	newRoot.InitRoot(parentID, childKey, childPid)
	if err := t.bp.Unpin(newRootPid, true); err != nil {
		return err
	}

	t.rootPid = newRootPid
	t.height++
	return t.writeMeta()
}

// Locate descends to the leaf that would hold key and returns a cursor
// at its slot. If key is absent, the returned cursor still points at
// the correct insertion position and the error is ErrNoSuchRecord.
func (t *Tree) Locate(key int32) (Cursor, error) {
	if err := t.ensureOpen(); err != nil {
		return Cursor{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPid < 0 {
		return Cursor{Pid: NilPageId}, ErrNoSuchRecord
	}

	pid := t.rootPid
	for level := int32(0); level < t.height-1; level++ {
		buf, err := t.bp.GetPage(pid)
		if err != nil {
			return Cursor{}, err
		}
		node := WrapInternal(buf, t.maxKey)
		next := node.LocateChildPtr(key)
		if err := t.bp.Unpin(pid, false); err != nil {
			return Cursor{}, err
		}
		pid = next
	}

	buf, err := t.bp.GetPage(pid)
	if err != nil {
		return Cursor{}, err
	}
	leaf := WrapLeaf(buf, t.maxKey)
	eid, found := leaf.Locate(key)
	if err := t.bp.Unpin(pid, false); err != nil {
		return Cursor{}, err
	}

	cur := Cursor{Pid: pid, Eid: int32(eid)}
	if !found {
		return cur, ErrNoSuchRecord
	}
	return cur, nil
}

// ReadForward reads the (key, rid) at cur and returns the cursor
// advanced one slot. A cursor produced by Locate can point at
// cur.Eid == leaf.KeyCount() — "not in this leaf, continue at the next
// one" (leaf.go's Locate doc) — so this walks sibling pointers until it
// lands on an in-range slot before reading, rather than reading
// whatever stale key/rid a prior split left behind at that slot.
func (t *Tree) ReadForward(cur Cursor) (int32, RecordId, Cursor, error) {
	if err := t.ensureOpen(); err != nil {
		return 0, RecordId{}, cur, err
	}
	if cur.Pid < 0 {
		return 0, RecordId{}, cur, ErrEndOfTree
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pid, eid := cur.Pid, cur.Eid
	for {
		buf, err := t.bp.GetPage(pid)
		if err != nil {
			return 0, RecordId{}, cur, err
		}
		leaf := WrapLeaf(buf, t.maxKey)

		if eid < leaf.KeyCount() {
			key := leaf.Key(int(eid))
			rid := leaf.Rid(int(eid))
			nextPid, nextEid, ferr := leaf.Forward(pid, eid)
			if err := t.bp.Unpin(pid, false); err != nil {
				return 0, RecordId{}, cur, err
			}
			if ferr != nil {
				return key, rid, Cursor{Pid: pid, Eid: eid}, ferr
			}
			return key, rid, Cursor{Pid: nextPid, Eid: nextEid}, nil
		}

		next := leaf.NextPid()
		if err := t.bp.Unpin(pid, false); err != nil {
			return 0, RecordId{}, cur, err
		}
		if next < 0 {
			return 0, RecordId{}, Cursor{Pid: NilPageId}, ErrEndOfTree
		}
		pid, eid = next, 0
	}
}

// Height and RootPid expose meta state for tests and diagnostics.
func (t *Tree) Height() int32   { return t.height }
func (t *Tree) RootPid() PageId { return t.rootPid }

