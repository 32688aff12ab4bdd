// Package bufferpool caches hot pages in front of a pager.Pager using a
// CLOCK replacement policy. Unlike a typical buffer pool it never defers
// a dirty write: Unpin(page, true) flushes synchronously, so callers can
// rely on every successful node operation having reached disk the moment
// it returns, without giving up the latency win of caching the meta page
// and recently visited leaves.
package bufferpool

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/relicdb/relicdb/internal/pager"
)

const DefaultCapacity = 64

var ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

// Frame holds one cached page and its CLOCK metadata.
type Frame struct {
	Pid  int32
	Buf  []byte
	Pin  int32
	Ref  bool
	Live bool
}

// Pool is a fixed-size, write-through CLOCK cache bound to one pager.
type Pool struct {
	p *pager.Pager

	mu        sync.Mutex
	frames    []Frame
	pageTable map[int32]int
	clockHand int
}

// New creates a pool of the given capacity over p. A non-positive
// capacity falls back to DefaultCapacity.
func New(p *pager.Pager, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		p:         p,
		frames:    make([]Frame, capacity),
		pageTable: make(map[int32]int, capacity),
	}
}

// GetPage returns the (pinned) in-memory buffer for pid, loading it from
// the pager on a miss. The caller must Unpin exactly once per GetPage.
func (pl *Pool) GetPage(pid int32) ([]byte, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if idx, ok := pl.pageTable[pid]; ok {
		f := &pl.frames[idx]
		f.Pin++
		f.Ref = true
		return f.Buf, nil
	}

	idx, err := pl.acquireFrameLocked()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, pl.p.PageSize())
	if err := pl.p.ReadPage(pid, buf); err != nil {
		return nil, err
	}

	pl.frames[idx] = Frame{Pid: pid, Buf: buf, Pin: 1, Ref: true, Live: true}
	pl.pageTable[pid] = idx
	return buf, nil
}

// acquireFrameLocked returns the index of a free or evictable frame.
// Caller holds pl.mu.
func (pl *Pool) acquireFrameLocked() (int, error) {
	for i := range pl.frames {
		if !pl.frames[i].Live {
			return i, nil
		}
	}

	n := len(pl.frames)
	scanned := 0
	for scanned < 2*n {
		idx := pl.clockHand
		f := &pl.frames[idx]
		pl.clockHand = (pl.clockHand + 1) % n
		if f.Pin > 0 {
			scanned++
			continue
		}
		if f.Ref {
			f.Ref = false
			scanned++
			continue
		}
		delete(pl.pageTable, f.Pid)
		slog.Debug("bufferpool.evict", "pid", f.Pid)
		return idx, nil
	}
	return -1, ErrNoFreeFrame
}

// Unpin releases one pin on pid. If dirty, the page is written through
// to the pager synchronously before this call returns.
func (pl *Pool) Unpin(pid int32, dirty bool) error {
	pl.mu.Lock()
	idx, ok := pl.pageTable[pid]
	if !ok {
		pl.mu.Unlock()
		return nil
	}
	f := &pl.frames[idx]
	if f.Pin > 0 {
		f.Pin--
	}
	buf := f.Buf
	pl.mu.Unlock()

	if dirty {
		if err := pl.p.WritePage(pid, buf); err != nil {
			return err
		}
	}
	return nil
}

// NewPage allocates a fresh page at the pager's current end, writes out
// a zeroed buffer for it (so EndPid advances immediately), and returns
// its id together with a pinned, cached copy of the buffer.
func (pl *Pool) NewPage() (int32, []byte, error) {
	pid := pl.p.EndPid()
	buf := make([]byte, pl.p.PageSize())
	if err := pl.p.WritePage(pid, buf); err != nil {
		return -1, nil, err
	}

	pl.mu.Lock()
	idx, err := pl.acquireFrameLocked()
	if err != nil {
		pl.mu.Unlock()
		return -1, nil, err
	}
	pl.frames[idx] = Frame{Pid: pid, Buf: buf, Pin: 1, Ref: true, Live: true}
	pl.pageTable[pid] = idx
	pl.mu.Unlock()

	return pid, buf, nil
}
