// Package pager implements the fixed-size paged file that every on-disk
// structure in relicdb (B+Tree nodes, the heap file) is built on top of.
package pager

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

const DefaultPageSize = 4096

// Mode selects how Open treats a missing file.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

var (
	ErrFileOpenFailed  = errors.New("pager: file open failed")
	ErrFileReadFailed  = errors.New("pager: file read failed")
	ErrFileWriteFailed = errors.New("pager: file write failed")
	ErrBadPageID       = errors.New("pager: page id out of range")
)

// Pager manages one on-disk file as a sequence of fixed-size pages.
// It performs no buffering of its own; internal/bufferpool sits in front
// of it for hot-page caching.
type Pager struct {
	mu       sync.RWMutex
	file     *os.File
	pageSize int
	endPid   int32
}

// Open opens (or, in ModeWrite, creates) name as a paged file.
func Open(name string, mode Mode, pageSize int) (*Pager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	flags := os.O_RDONLY
	if mode == ModeWrite {
		flags = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileOpenFailed, name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrFileOpenFailed, name, err)
	}

	p := &Pager{
		file:     f,
		pageSize: pageSize,
		endPid:   int32(info.Size() / int64(pageSize)),
	}
	slog.Debug("pager.Open", "file", name, "mode", mode, "endPid", p.endPid)
	return p, nil
}

// PageSize returns the fixed page size this pager was opened with.
func (p *Pager) PageSize() int { return p.pageSize }

// EndPid returns the smallest PageId beyond the last written page; this
// is the id a freshly allocated page receives.
func (p *Pager) EndPid() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endPid
}

// ReadPage fills buf (len == PageSize) with the contents of page pid.
func (p *Pager) ReadPage(pid int32, buf []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if pid < 0 || pid >= p.endPid {
		return fmt.Errorf("%w: %d", ErrBadPageID, pid)
	}
	if len(buf) != p.pageSize {
		return fmt.Errorf("%w: buffer size %d != page size %d", ErrFileReadFailed, len(buf), p.pageSize)
	}

	off := int64(pid) * int64(p.pageSize)
	if _, err := p.file.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: pid=%d: %v", ErrFileReadFailed, pid, err)
	}
	return nil
}

// WritePage persists buf (len == PageSize) as page pid, extending the
// file (and EndPid) if pid was not previously allocated.
func (p *Pager) WritePage(pid int32, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pid < 0 {
		return fmt.Errorf("%w: %d", ErrBadPageID, pid)
	}
	if len(buf) != p.pageSize {
		return fmt.Errorf("%w: buffer size %d != page size %d", ErrFileWriteFailed, len(buf), p.pageSize)
	}

	off := int64(pid) * int64(p.pageSize)
	if _, err := p.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: pid=%d: %v", ErrFileWriteFailed, pid, err)
	}
	if pid+1 > p.endPid {
		p.endPid = pid + 1
	}
	return nil
}

// Close flushes and releases the underlying file handle.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrFileWriteFailed, err)
	}
	return p.file.Close()
}
