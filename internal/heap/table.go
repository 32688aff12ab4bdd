package heap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relicdb/relicdb/internal/btree"
	"github.com/relicdb/relicdb/internal/bufferpool"
	"github.com/relicdb/relicdb/internal/bx"
	"github.com/relicdb/relicdb/internal/pager"
)

// RecordId identifies a tuple inside a Table. It is the same value
// type the B+Tree index stores and returns — the index treats it as
// opaque, but the concrete type lives here since the heap file is what
// assigns it.
type RecordId = btree.RecordId

var ErrNoSuchTuple = errors.New("heap: no such tuple")

// Table is an append-only, slotted-page tuple store for fixed
// (key int32, value string) rows.
type Table struct {
	p        *pager.Pager
	bp       *bufferpool.Pool
	pageSize int

	mu      sync.Mutex
	lastPid int32

	closed atomic.Bool
}

// Open opens (ModeWrite: creates if missing) the heap file at path.
func Open(path string, mode pager.Mode, pageSize int) (*Table, error) {
	p, err := pager.Open(path, mode, pageSize)
	if err != nil {
		return nil, err
	}
	bp := bufferpool.New(p, bufferpool.DefaultCapacity)

	tbl := &Table{p: p, bp: bp, pageSize: pageSize}

	if p.EndPid() == 0 {
		pid, buf, err := bp.NewPage()
		if err != nil {
			return nil, err
		}
		initPage(buf)
		if err := bp.Unpin(pid, true); err != nil {
			return nil, err
		}
		tbl.lastPid = pid
	} else {
		tbl.lastPid = p.EndPid() - 1
	}

	return tbl, nil
}

func (t *Table) ensureOpen() error {
	if t.closed.Load() {
		return errors.New("heap: table is closed")
	}
	return nil
}

func (t *Table) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.p.Close()
}

func encodeTuple(key int32, value string) []byte {
	buf := make([]byte, 4+2+len(value))
	bx.PutI32At(buf, 0, key)
	bx.PutU16At(buf, 4, uint16(len(value)))
	copy(buf[6:], value)
	return buf
}

func decodeTuple(b []byte) (int32, string) {
	key := bx.I32At(b, 0)
	n := int(bx.U16At(b, 4))
	return key, string(b[6 : 6+n])
}

// Append writes a new (key, value) tuple to the end of the file,
// allocating a fresh page when the current last page has no room.
func (t *Table) Append(key int32, value string) (RecordId, error) {
	if err := t.ensureOpen(); err != nil {
		return RecordId{}, err
	}
	tup := encodeTuple(key, value)
	if len(tup)+slotSize+headerSize > t.pageSize {
		return RecordId{}, fmt.Errorf("heap: tuple too large for page size %d", t.pageSize)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	buf, err := t.bp.GetPage(t.lastPid)
	if err != nil {
		return RecordId{}, err
	}
	if slot, ok := insertTuple(buf, tup); ok {
		pid := t.lastPid
		if err := t.bp.Unpin(pid, true); err != nil {
			return RecordId{}, err
		}
		return RecordId{Pid: pid, Sid: int32(slot)}, nil
	}
	if err := t.bp.Unpin(t.lastPid, false); err != nil {
		return RecordId{}, err
	}

	pid, nbuf, err := t.bp.NewPage()
	if err != nil {
		return RecordId{}, err
	}
	initPage(nbuf)
	slot, ok := insertTuple(nbuf, tup)
	if !ok {
		return RecordId{}, fmt.Errorf("heap: tuple too large for page size %d", t.pageSize)
	}
	if err := t.bp.Unpin(pid, true); err != nil {
		return RecordId{}, err
	}
	t.lastPid = pid
	return RecordId{Pid: pid, Sid: int32(slot)}, nil
}

// Read returns the (key, value) tuple at rid.
func (t *Table) Read(rid RecordId) (int32, string, error) {
	if err := t.ensureOpen(); err != nil {
		return 0, "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	buf, err := t.bp.GetPage(rid.Pid)
	if err != nil {
		return 0, "", err
	}
	data, ok := readTuple(buf, int(rid.Sid))
	if uerr := t.bp.Unpin(rid.Pid, false); uerr != nil {
		return 0, "", uerr
	}
	if !ok {
		return 0, "", fmt.Errorf("%w: %+v", ErrNoSuchTuple, rid)
	}
	key, value := decodeTuple(data)
	return key, value, nil
}

// EndRid returns the RecordId one past the last appended tuple — an
// exclusive bound for a full scan.
func (t *Table) EndRid() RecordId {
	t.mu.Lock()
	defer t.mu.Unlock()
	return RecordId{Pid: t.lastPid + 1, Sid: 0}
}

// Scan walks every tuple in insertion order, calling fn for each. A
// non-nil error from fn stops the scan and is returned as-is.
func (t *Table) Scan(fn func(rid RecordId, key int32, value string) error) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	t.mu.Lock()
	last := t.lastPid
	t.mu.Unlock()

	for pid := int32(0); pid <= last; pid++ {
		buf, err := t.bp.GetPage(pid)
		if err != nil {
			return err
		}
		n := numSlots(buf)
		for slot := 0; slot < n; slot++ {
			data, ok := readTuple(buf, slot)
			if !ok {
				continue
			}
			key, value := decodeTuple(data)
			if err := fn(RecordId{Pid: pid, Sid: int32(slot)}, key, value); err != nil {
				t.bp.Unpin(pid, false)
				return err
			}
		}
		if err := t.bp.Unpin(pid, false); err != nil {
			return err
		}
	}
	return nil
}
