package bufferpool

import "errors"

var (
	ErrInvalidCapacity = errors.New("bufferpool: capacity must be positive")
	ErrClosed          = errors.New("bufferpool: buffer manager is closed")

	// ErrHashNotFound means (file, pageNo) has no frame. Internal callers
	// usually treat it as "already evicted".
	ErrHashNotFound = errors.New("bufferpool: page not in hash table")
	// ErrDuplicateKey means (file, pageNo) was registered twice.
	ErrDuplicateKey = errors.New("bufferpool: page already in hash table")

	ErrPageNotPinned  = errors.New("bufferpool: page is not pinned")
	ErrPagePinned     = errors.New("bufferpool: page is pinned")
	ErrBufferExceeded = errors.New("bufferpool: no free frame available (all pinned)")
	// ErrBadBuffer means the hash table points at a frame that is not valid.
	ErrBadBuffer = errors.New("bufferpool: frame is not valid")
)
