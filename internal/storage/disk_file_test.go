package storage

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T) (*DiskFile, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := OpenDiskFile(fs, "/data", "relation")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, fs
}

func TestDiskFile_AllocateReadWrite(t *testing.T) {
	f, _ := newTestFile(t)
	assert.Equal(t, filepath.Join("/data", "relation"), f.Filename())

	p0, buf, err := f.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(0), p0)
	require.Len(t, buf, PageSize)
	assert.Equal(t, p0, (&Page{Buf: buf}).PageNo())

	p1, _, err := f.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(1), p1)
	assert.Equal(t, PageID(2), f.NumPages())

	pg := &Page{Buf: buf}
	_, err = pg.InsertRecord([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.WritePage(p0, buf))

	got, err := f.ReadPage(p0)
	require.NoError(t, err)
	rec, err := (&Page{Buf: got}).ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), rec)
}

func TestDiskFile_OutOfRange(t *testing.T) {
	f, _ := newTestFile(t)

	_, err := f.ReadPage(0)
	require.ErrorIs(t, err, ErrPageNotFound)

	err = f.WritePage(3, make([]byte, PageSize))
	require.ErrorIs(t, err, ErrPageNotFound)

	require.ErrorIs(t, f.WritePage(0, []byte("short")), ErrWrongSize)
}

func TestDiskFile_DeleteAndReuse(t *testing.T) {
	f, _ := newTestFile(t)

	for i := 0; i < 3; i++ {
		_, _, err := f.AllocatePage()
		require.NoError(t, err)
	}

	require.NoError(t, f.DeletePage(2))
	require.NoError(t, f.DeletePage(1))
	assert.Equal(t, 2, f.NumFree())

	// freed pages are unreadable and cannot be deleted twice
	_, err := f.ReadPage(1)
	require.ErrorIs(t, err, ErrPageNotFound)
	require.ErrorIs(t, f.DeletePage(1), ErrPageNotFound)

	// lowest free page number comes back first
	pageNo, _, err := f.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(1), pageNo)

	pageNo, _, err = f.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(2), pageNo)

	pageNo, _, err = f.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(3), pageNo)
	assert.Equal(t, 0, f.NumFree())
}

func TestDiskFile_ReopenRecoversState(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := OpenDiskFile(fs, "/data", "t")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, _, err := f.AllocatePage()
		require.NoError(t, err)
	}
	require.NoError(t, f.DeletePage(2))
	require.NoError(t, f.Close())

	_, _, err = f.AllocatePage()
	require.ErrorIs(t, err, ErrFileClosed)

	g, err := OpenDiskFile(fs, "/data", "t")
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	assert.Equal(t, PageID(4), g.NumPages())
	assert.Equal(t, 1, g.NumFree())

	pageNo, _, err := g.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, PageID(2), pageNo)
}

func TestDiskFile_Remove(t *testing.T) {
	f, fs := newTestFile(t)

	_, _, err := f.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	ok, err := afero.Exists(fs, "/data/relation")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.Remove())

	ok, err = afero.Exists(fs, "/data/relation")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSegFileNameAndLocate(t *testing.T) {
	assert.Equal(t, "base", SegFileName("base", 0))
	assert.Equal(t, "base.2", SegFileName("base", 2))

	seg, off := locate(MaxPagePerSegment + 3)
	assert.Equal(t, int32(1), seg)
	assert.Equal(t, int64(3*PageSize), off)
}
