package bufferpool

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/tuannm99/novabuf/internal/storage"
)

// DefaultCapacity is the frame count used when configuration does not set one.
const DefaultCapacity = 128

// BufStats counts pool traffic since construction or the last ClearStats.
type BufStats struct {
	Accesses   uint64 // ReadPage calls
	Hits       uint64 // ReadPage calls served from a resident frame
	DiskReads  uint64 // pages loaded from a file
	DiskWrites uint64 // dirty pages written back
	Evictions  uint64 // valid frames reused for another page
}

type Option func(*BufMgr)

func WithLogger(l *slog.Logger) Option {
	return func(m *BufMgr) {
		if l != nil {
			m.log = l
		}
	}
}

// BufMgr caches pages of any number of Files in a fixed set of frames and
// replaces them with CLOCK.
//
// All state (descriptors, frame bytes, hash table, clock hand) changes under
// mu, so looking up, evicting, loading and registering a page is one step.
type BufMgr struct {
	mu sync.Mutex

	numBufs int
	descs   []FrameDesc    // len == numBufs
	pool    []storage.Page // frame bytes, one PageSize slice each
	index   *PageIndex     // (file, pageNo) -> frame
	clock   *ClockReplacer
	stats   BufStats
	closed  bool

	log *slog.Logger
}

func NewBufMgr(numBufs int, opts ...Option) (*BufMgr, error) {
	if numBufs <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, numBufs)
	}

	m := &BufMgr{
		numBufs: numBufs,
		descs:   make([]FrameDesc, numBufs),
		pool:    make([]storage.Page, numBufs),
		index:   NewPageIndex(numBufs),
		clock:   NewClockReplacer(numBufs),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	arena := make([]byte, numBufs*storage.PageSize)
	for i := range m.descs {
		m.descs[i].frameNo = FrameID(i)
		m.descs[i].Clear()
		m.pool[i].Buf = arena[i*storage.PageSize : (i+1)*storage.PageSize : (i+1)*storage.PageSize]
	}
	return m, nil
}

func (m *BufMgr) NumBufs() int { return m.numBufs }

// lookup finds the resident frame for (file, pageNo). A hash entry that points
// at an invalid frame means the table and descriptors diverged; that is fatal.
func (m *BufMgr) lookup(file storage.File, pageNo storage.PageID) (*FrameDesc, bool) {
	frameNo, ok := m.index.Lookup(file, pageNo)
	if !ok {
		return nil, false
	}
	d := &m.descs[frameNo]
	if !d.valid {
		panic(fmt.Errorf("%w: file=%s page=%d frame=%d", ErrBadBuffer, file.Filename(), pageNo, frameNo))
	}
	return d, true
}

// register records a freshly loaded page in the hash table and its descriptor.
func (m *BufMgr) register(frameNo FrameID, file storage.File, pageNo storage.PageID) {
	if err := m.index.Insert(file, pageNo, frameNo); err != nil {
		panic(err)
	}
	m.descs[frameNo].Set(file, pageNo)
}

// allocBuf returns an invalid frame ready for a new page, evicting the clock
// victim if needed. A dirty victim is written back first; if that write fails
// the victim stays resident and dirty.
func (m *BufMgr) allocBuf() (FrameID, error) {
	frameNo, err := m.clock.Victim(m.descs)
	if err != nil {
		return 0, err
	}

	d := &m.descs[frameNo]
	if !d.valid {
		return frameNo, nil
	}

	if d.dirty {
		if err := m.writeBack(d); err != nil {
			return 0, err
		}
	}
	if err := m.index.Remove(d.file, d.pageNo); err != nil {
		panic(err)
	}

	m.stats.Evictions++
	m.log.Debug("bufferpool: evict", "frame", frameNo, "file", d.file.Filename(), "page", d.pageNo)
	d.Clear()
	return frameNo, nil
}

// writeBack flushes a dirty frame to its file and clears the dirty bit.
func (m *BufMgr) writeBack(d *FrameDesc) error {
	if err := d.file.WritePage(d.pageNo, m.pool[d.frameNo].Buf); err != nil {
		return fmt.Errorf("bufferpool: write back %s page %d: %w", d.file.Filename(), d.pageNo, err)
	}
	d.dirty = false
	m.stats.DiskWrites++
	m.log.Debug("bufferpool: write back", "frame", d.frameNo, "file", d.file.Filename(), "page", d.pageNo)
	return nil
}

// ReadPage pins (file, pageNo) and returns the frame holding it, loading the
// page from file on a miss. Every successful call must be matched by UnpinPage.
//
// The returned Page aliases pool memory and is only valid while pinned.
func (m *BufMgr) ReadPage(file storage.File, pageNo storage.PageID) (*storage.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	m.stats.Accesses++

	// 1) HIT
	if d, ok := m.lookup(file, pageNo); ok {
		d.refbit = true
		d.pinCnt++
		m.stats.Hits++
		return &m.pool[d.frameNo], nil
	}

	// 2) MISS
	frameNo, err := m.allocBuf()
	if err != nil {
		return nil, fmt.Errorf("read %s page %d: %w", file.Filename(), pageNo, err)
	}

	data, err := file.ReadPage(pageNo)
	if err != nil {
		// frameNo stays invalid and unindexed; the clock takes it next time.
		return nil, err
	}
	if len(data) != storage.PageSize {
		return nil, fmt.Errorf("read %s page %d: %w", file.Filename(), pageNo, storage.ErrWrongSize)
	}
	copy(m.pool[frameNo].Buf, data)
	m.stats.DiskReads++

	m.register(frameNo, file, pageNo)
	return &m.pool[frameNo], nil
}

// UnpinPage drops one pin on (file, pageNo) and, if dirty is set, marks the
// frame for write-back. Unpinning a page that is no longer resident is a no-op.
func (m *BufMgr) UnpinPage(file storage.File, pageNo storage.PageID, dirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	d, ok := m.lookup(file, pageNo)
	if !ok {
		return nil
	}
	if dirty {
		d.dirty = true
	}
	if d.pinCnt == 0 {
		return fmt.Errorf("%w: file=%s page=%d frame=%d", ErrPageNotPinned, file.Filename(), pageNo, d.frameNo)
	}
	d.pinCnt--
	return nil
}

// AllocPage creates a new page in file and returns it pinned in a frame.
func (m *BufMgr) AllocPage(file storage.File) (storage.PageID, *storage.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return storage.InvalidPageID, nil, ErrClosed
	}

	pageNo, data, err := file.AllocatePage()
	if err != nil {
		return storage.InvalidPageID, nil, err
	}
	if len(data) != storage.PageSize {
		return storage.InvalidPageID, nil, fmt.Errorf("alloc %s page %d: %w", file.Filename(), pageNo, storage.ErrWrongSize)
	}

	frameNo, err := m.allocBuf()
	if err != nil {
		// Give the page back so a failed call does not leak a page number.
		err = fmt.Errorf("alloc %s page %d: %w", file.Filename(), pageNo, err)
		return storage.InvalidPageID, nil, multierr.Append(err, file.DeletePage(pageNo))
	}
	copy(m.pool[frameNo].Buf, data)

	m.register(frameNo, file, pageNo)
	return pageNo, &m.pool[frameNo], nil
}

func sameFile(a, b storage.File) bool {
	return a != nil && b != nil && a.Filename() == b.Filename()
}

// pinnedIn reports the first pinned frame belonging to file. Caller holds mu.
func (m *BufMgr) pinnedIn(file storage.File) error {
	for i := range m.descs {
		d := &m.descs[i]
		if d.valid && sameFile(d.file, file) && d.pinCnt > 0 {
			return fmt.Errorf("%w: file=%s page=%d frame=%d pin=%d",
				ErrPagePinned, file.Filename(), d.pageNo, d.frameNo, d.pinCnt)
		}
	}
	return nil
}

// FlushFile writes back every dirty frame of file. Frames stay resident.
// Nothing is written if any page of file is still pinned.
func (m *BufMgr) FlushFile(file storage.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	// First pass: detect pinned
	if err := m.pinnedIn(file); err != nil {
		return err
	}

	// Second pass: flush
	for i := range m.descs {
		d := &m.descs[i]
		if !d.valid || !d.dirty || !sameFile(d.file, file) {
			continue
		}
		if err := m.writeBack(d); err != nil {
			return err
		}
	}
	return nil
}

// EvictFile flushes and then drops every frame of file, e.g. before the file
// is closed or removed. It fails with ErrPagePinned if any page is in use.
func (m *BufMgr) EvictFile(file storage.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if err := m.pinnedIn(file); err != nil {
		return err
	}

	for i := range m.descs {
		d := &m.descs[i]
		if !d.valid || !sameFile(d.file, file) {
			continue
		}
		if d.dirty {
			if err := m.writeBack(d); err != nil {
				return err
			}
		}
		if err := m.index.Remove(d.file, d.pageNo); err != nil {
			panic(err)
		}
		d.Clear()
	}
	return nil
}

// FlushAll writes back every dirty frame regardless of pins. It keeps going
// after a failed write and reports all failures.
func (m *BufMgr) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	return m.flushAll()
}

func (m *BufMgr) flushAll() error {
	var err error
	for i := range m.descs {
		d := &m.descs[i]
		if d.valid && d.dirty {
			err = multierr.Append(err, m.writeBack(d))
		}
	}
	return err
}

// DisposePage discards (file, pageNo) from the pool without writing it back
// and asks file to reclaim the page number.
func (m *BufMgr) DisposePage(file storage.File, pageNo storage.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if d, ok := m.lookup(file, pageNo); ok {
		if d.pinCnt > 0 {
			return fmt.Errorf("%w: file=%s page=%d frame=%d pin=%d",
				ErrPagePinned, file.Filename(), pageNo, d.frameNo, d.pinCnt)
		}
		if err := m.index.Remove(file, pageNo); err != nil {
			panic(err)
		}
		d.Clear()
	}
	return file.DeletePage(pageNo)
}

func (m *BufMgr) Stats() BufStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *BufMgr) ClearStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = BufStats{}
}

// PrintSelf writes one line per frame followed by the number of valid frames.
func (m *BufMgr) PrintSelf(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ew := &storage.ErrWriter{W: w}
	ew.Fprintf("numBufs=%d hand=%d hashed=%d\n", m.numBufs, m.clock.Hand(), m.index.Len())

	valid := 0
	for i := range m.descs {
		d := &m.descs[i]
		ew.Fprintln(d.String())
		if d.valid {
			valid++
		}
	}
	ew.Fprintf("Total Number of Valid Frames: %d\n", valid)
	return ew.Err
}

// Close writes back all dirty frames and tears the pool down. Frames that are
// still pinned are reported as ErrPagePinned; their content is still written.
func (m *BufMgr) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	var err error
	for i := range m.descs {
		d := &m.descs[i]
		if d.valid && d.pinCnt > 0 {
			m.log.Warn("bufferpool: page still pinned at close",
				"file", d.file.Filename(), "page", d.pageNo, "pin", d.pinCnt)
			err = multierr.Append(err, fmt.Errorf("%w: file=%s page=%d pin=%d",
				ErrPagePinned, d.file.Filename(), d.pageNo, d.pinCnt))
		}
	}
	err = multierr.Append(err, m.flushAll())

	for i := range m.descs {
		if m.descs[i].valid {
			_ = m.index.Remove(m.descs[i].file, m.descs[i].pageNo)
		}
		m.descs[i].Clear()
	}
	m.closed = true
	return err
}
