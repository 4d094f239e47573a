package bufferpool

import "github.com/tuannm99/novabuf/internal/storage"

// FileView binds a BufMgr to one File so page-level code does not have to
// carry the file around.
type FileView struct {
	m    *BufMgr
	file storage.File
}

func (v *FileView) File() storage.File { return v.file }

func (v *FileView) ReadPage(pageNo storage.PageID) (*storage.Page, error) {
	return v.m.ReadPage(v.file, pageNo)
}

func (v *FileView) UnpinPage(pageNo storage.PageID, dirty bool) error {
	return v.m.UnpinPage(v.file, pageNo, dirty)
}

func (v *FileView) AllocPage() (storage.PageID, *storage.Page, error) {
	return v.m.AllocPage(v.file)
}

func (v *FileView) DisposePage(pageNo storage.PageID) error {
	return v.m.DisposePage(v.file, pageNo)
}

// Flush writes back dirty pages for THIS file only.
func (v *FileView) Flush() error {
	return v.m.FlushFile(v.file)
}

// View returns a file-scoped handle backed by the shared BufMgr.
func (m *BufMgr) View(file storage.File) *FileView {
	return &FileView{m: m, file: file}
}
