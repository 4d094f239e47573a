package storage

import (
	"errors"
)

const (
	OneB  = 1 << 0  // 1
	OneKB = 1 << 10 // 1,024
	OneMB = 1 << 20 // 1,048,576
	OneGB = 1 << 30 // 1,073,741,824

	SegmentSize       = 1 << 30                // 1,073,741,824 (1 GiB)
	PageSize          = 1 << 13                // 8,192 (8 KiB)
	MaxPagePerSegment = SegmentSize / PageSize // 131,072 pages/segment
	HeaderSize        = 12                     // flags(2) pageNo(4) lower(2) upper(2) special(2)
	SlotSize          = 6                      // 6 (3 * uint16: offset, length, flags)
)

const (
	FileMode0644 = 0o644
	FileMode0664 = 0o664
	FileMode0755 = 0o755
)

// PageID is the logical page number inside one file.
type PageID uint32

// InvalidPageID marks "no page" in descriptors and dumps.
const InvalidPageID PageID = ^PageID(0)

var (
	ErrPageNotFound = errors.New("storage: page not found")
	ErrFileClosed   = errors.New("storage: file is closed")
	ErrWrongSize    = errors.New("storage: buffer size != PageSize")
)
