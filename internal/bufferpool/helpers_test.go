package bufferpool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novabuf/internal/storage"
)

// countingFile wraps a DiskFile and records every read and write so tests
// can tell cache hits from disk reads and see write-back ordering.
type countingFile struct {
	*storage.DiskFile

	ReadCnt, WriteCnt atomic.Int64

	mu     sync.Mutex
	events []string
}

func (f *countingFile) ReadPage(pageNo storage.PageID) ([]byte, error) {
	f.ReadCnt.Add(1)
	f.record(fmt.Sprintf("R%d", pageNo))
	return f.DiskFile.ReadPage(pageNo)
}

func (f *countingFile) WritePage(pageNo storage.PageID, data []byte) error {
	f.WriteCnt.Add(1)
	f.record(fmt.Sprintf("W%d", pageNo))
	return f.DiskFile.WritePage(pageNo, data)
}

func (f *countingFile) record(ev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *countingFile) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *countingFile) reset() {
	f.ReadCnt.Store(0)
	f.WriteCnt.Store(0)
	f.mu.Lock()
	f.events = nil
	f.mu.Unlock()
}

// fakeFile is a File that only has a name; its I/O always fails.
type fakeFile struct{ name string }

func (f fakeFile) Filename() string { return f.name }

func (f fakeFile) ReadPage(storage.PageID) ([]byte, error) { return nil, errFakeIO }

func (f fakeFile) WritePage(storage.PageID, []byte) error { return errFakeIO }

func (f fakeFile) AllocatePage() (storage.PageID, []byte, error) {
	return storage.InvalidPageID, nil, errFakeIO
}

func (f fakeFile) DeletePage(storage.PageID) error { return errFakeIO }

var errFakeIO = errors.New("fake: i/o error")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMgr(t *testing.T, numBufs int) *BufMgr {
	t.Helper()

	m, err := NewBufMgr(numBufs, WithLogger(quietLogger()))
	require.NoError(t, err)
	return m
}

// newTestFile creates base on fs with numPages pages; page i holds the record "page-i".
func newTestFile(t *testing.T, fs afero.Fs, base string, numPages int) *countingFile {
	t.Helper()

	df, err := storage.OpenDiskFile(fs, "/data", base)
	require.NoError(t, err)
	t.Cleanup(func() { _ = df.Close() })

	for i := 0; i < numPages; i++ {
		pageNo, buf, err := df.AllocatePage()
		require.NoError(t, err)
		_, err = (&storage.Page{Buf: buf}).InsertRecord([]byte(fmt.Sprintf("page-%d", pageNo)))
		require.NoError(t, err)
		require.NoError(t, df.WritePage(pageNo, buf))
	}
	return &countingFile{DiskFile: df}
}

func recordOf(t *testing.T, p *storage.Page) string {
	t.Helper()
	rec, err := p.ReadRecord(0)
	require.NoError(t, err)
	return string(rec)
}

// checkInvariants asserts that descriptors and the hash table agree.
func checkInvariants(t *testing.T, m *BufMgr) {
	t.Helper()

	valid := 0
	for i := range m.descs {
		d := &m.descs[i]
		require.Equal(t, FrameID(i), d.frameNo)
		if d.pinCnt > 0 {
			require.True(t, d.valid, "pinned frame %d must be valid", i)
		}
		if d.dirty {
			require.True(t, d.valid, "dirty frame %d must be valid", i)
		}
		if !d.valid {
			continue
		}
		valid++
		frameNo, ok := m.index.Lookup(d.file, d.pageNo)
		require.True(t, ok, "valid frame %d missing from hash table", i)
		require.Equal(t, FrameID(i), frameNo)
	}
	require.Equal(t, valid, m.index.Len())
}
