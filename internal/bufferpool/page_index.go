package bufferpool

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tuannm99/novabuf/internal/storage"
)

// PageKey uniquely identifies a page across all files sharing the pool.
type PageKey struct {
	File   string
	PageNo storage.PageID
}

func keyOf(file storage.File, pageNo storage.PageID) PageKey {
	return PageKey{File: file.Filename(), PageNo: pageNo}
}

// HashTableSize is the classic sizing for a pool of numBufs frames:
// roughly 1.2x the frame count, forced odd.
func HashTableSize(numBufs int) int {
	return int(float64(numBufs)*1.2)*2/2 + 1
}

// PageIndex maps (file, pageNo) -> frame.
type PageIndex struct {
	m *xsync.MapOf[PageKey, FrameID]
}

func NewPageIndex(numBufs int) *PageIndex {
	return &PageIndex{
		m: xsync.NewMapOf[PageKey, FrameID](xsync.WithPresize(HashTableSize(numBufs))),
	}
}

// Insert registers (file, pageNo) -> frameNo. Registering a pair twice is an error.
func (pi *PageIndex) Insert(file storage.File, pageNo storage.PageID, frameNo FrameID) error {
	key := keyOf(file, pageNo)
	if prev, loaded := pi.m.LoadOrStore(key, frameNo); loaded {
		return fmt.Errorf("%w: file=%s page=%d frame=%d", ErrDuplicateKey, key.File, pageNo, prev)
	}
	return nil
}

// Lookup returns the frame holding (file, pageNo) and whether it was found.
func (pi *PageIndex) Lookup(file storage.File, pageNo storage.PageID) (FrameID, bool) {
	return pi.m.Load(keyOf(file, pageNo))
}

func (pi *PageIndex) Remove(file storage.File, pageNo storage.PageID) error {
	key := keyOf(file, pageNo)
	if _, ok := pi.m.LoadAndDelete(key); !ok {
		return fmt.Errorf("%w: file=%s page=%d", ErrHashNotFound, key.File, pageNo)
	}
	return nil
}

func (pi *PageIndex) Len() int {
	return pi.m.Size()
}
