package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/tidwall/btree"
	"go.uber.org/multierr"
)

var _ File = (*DiskFile)(nil)

// DiskFile is a paged file stored as segments: Base, Base.1, Base.2, ...
// Deleted pages are zeroed on disk and remembered in an ordered free set, so
// AllocatePage hands out the lowest free number first.
type DiskFile struct {
	fs   afero.Fs
	dir  string
	base string

	mu       sync.Mutex
	segs     map[int32]afero.File
	numPages PageID
	free     *btree.BTreeG[PageID]
	closed   bool
}

// OpenDiskFile opens (or creates) the file dir/base on fs. The page count is
// recovered from segment sizes and the free set from zeroed page headers.
func OpenDiskFile(fs afero.Fs, dir, base string) (*DiskFile, error) {
	if err := fs.MkdirAll(dir, FileMode0755); err != nil {
		return nil, fmt.Errorf("open %s: %w", base, err)
	}
	f := &DiskFile{
		fs:   fs,
		dir:  filepath.Clean(dir),
		base: base,
		segs: make(map[int32]afero.File),
		free: btree.NewBTreeG(func(a, b PageID) bool { return a < b }),
	}
	if err := f.recover(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (f *DiskFile) recover() error {
	segs, err := listSegments(f.fs, f.dir, f.base)
	if err != nil {
		return err
	}
	for _, segNo := range segs {
		info, err := f.fs.Stat(filepath.Join(f.dir, SegFileName(f.base, segNo)))
		if err != nil {
			return err
		}
		end := PageID(segNo)*MaxPagePerSegment + PageID(info.Size()/PageSize)
		if end > f.numPages {
			f.numPages = end
		}
	}

	buf := make([]byte, PageSize)
	for pageNo := PageID(0); pageNo < f.numPages; pageNo++ {
		if err := f.readAt(pageNo, buf); err != nil {
			return err
		}
		if (&Page{Buf: buf}).IsUninitialized() {
			f.free.Set(pageNo)
		}
	}
	return nil
}

func (f *DiskFile) Filename() string {
	return filepath.Join(f.dir, f.base)
}

func (f *DiskFile) segment(segNo int32) (afero.File, error) {
	if s, ok := f.segs[segNo]; ok {
		return s, nil
	}
	path := filepath.Join(f.dir, SegFileName(f.base, segNo))
	// RDWR | CREATE (no truncate)
	s, err := f.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, err
	}
	f.segs[segNo] = s
	return s, nil
}

// readAt zero-fills whatever lies past the end of the segment.
func (f *DiskFile) readAt(pageNo PageID, dst []byte) error {
	segNo, off := locate(pageNo)
	s, err := f.segment(segNo)
	if err != nil {
		return err
	}
	n, err := s.ReadAt(dst, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	clear(dst[n:])
	return nil
}

func (f *DiskFile) writeAt(pageNo PageID, src []byte) error {
	segNo, off := locate(pageNo)
	s, err := f.segment(segNo)
	if err != nil {
		return err
	}
	n, err := s.WriteAt(src, off)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// live checks that pageNo is allocated and not on the free set. Caller holds f.mu.
func (f *DiskFile) live(pageNo PageID) error {
	if f.closed {
		return ErrFileClosed
	}
	if pageNo >= f.numPages {
		return fmt.Errorf("%w: %s page %d (file has %d pages)", ErrPageNotFound, f.base, pageNo, f.numPages)
	}
	if _, ok := f.free.Get(pageNo); ok {
		return fmt.Errorf("%w: %s page %d is free", ErrPageNotFound, f.base, pageNo)
	}
	return nil
}

func (f *DiskFile) ReadPage(pageNo PageID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.live(pageNo); err != nil {
		return nil, err
	}
	buf := make([]byte, PageSize)
	if err := f.readAt(pageNo, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (f *DiskFile) WritePage(pageNo PageID, data []byte) error {
	if len(data) != PageSize {
		return ErrWrongSize
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.live(pageNo); err != nil {
		return err
	}
	return f.writeAt(pageNo, data)
}

func (f *DiskFile) AllocatePage() (PageID, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return InvalidPageID, nil, ErrFileClosed
	}

	pageNo, reused := f.free.Min()
	if !reused {
		pageNo = f.numPages
	}

	buf := make([]byte, PageSize)
	if _, err := NewPage(buf, pageNo); err != nil {
		return InvalidPageID, nil, err
	}
	if err := f.writeAt(pageNo, buf); err != nil {
		return InvalidPageID, nil, err
	}

	if reused {
		f.free.Delete(pageNo)
	} else {
		f.numPages++
	}
	return pageNo, buf, nil
}

func (f *DiskFile) DeletePage(pageNo PageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.live(pageNo); err != nil {
		return err
	}
	if err := f.writeAt(pageNo, make([]byte, PageSize)); err != nil {
		return err
	}
	f.free.Set(pageNo)
	return nil
}

// NumPages counts allocated page numbers, free ones included.
func (f *DiskFile) NumPages() PageID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.numPages
}

func (f *DiskFile) NumFree() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.free.Len()
}

func (f *DiskFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for _, s := range f.segs {
		err = multierr.Append(err, s.Sync())
	}
	return err
}

// Close closes every open segment; it is safe to call more than once.
func (f *DiskFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for segNo, s := range f.segs {
		err = multierr.Append(err, s.Close())
		delete(f.segs, segNo)
	}
	f.closed = true
	return err
}

// Remove closes the file and deletes all of its segments.
func (f *DiskFile) Remove() error {
	return multierr.Append(f.Close(), RemoveAllSegments(f.fs, f.dir, f.base))
}
