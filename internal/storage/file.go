package storage

// File is the disk-resident page store a buffer manager caches.
// Implementations must be safe to key by Filename: two live Files with the
// same name are treated as the same namespace.
type File interface {
	Filename() string
	// ReadPage returns a PageSize copy of the on-disk page.
	ReadPage(pageNo PageID) ([]byte, error)
	WritePage(pageNo PageID, data []byte) error
	// AllocatePage reserves a new logical page and returns its initial content.
	AllocatePage() (PageID, []byte, error)
	// DeletePage hands the page number back to the file for reuse.
	DeletePage(pageNo PageID) error
}
