package bufferpool

import (
	"fmt"

	"github.com/tuannm99/novabuf/internal/storage"
)

// FrameID addresses a slot in the pool; it is stable for the manager's lifetime.
type FrameID uint32

// FrameDesc is the bookkeeping for one frame.
//
// Invariants: pinCnt > 0 implies valid; dirty implies valid.
type FrameDesc struct {
	frameNo FrameID
	valid   bool
	refbit  bool
	dirty   bool
	pinCnt  uint32
	file    storage.File
	pageNo  storage.PageID
}

// Set marks the frame as holding (file, pageNo), pinned once and referenced.
func (d *FrameDesc) Set(file storage.File, pageNo storage.PageID) {
	d.file = file
	d.pageNo = pageNo
	d.pinCnt = 1
	d.dirty = false
	d.valid = true
	d.refbit = true
}

// Clear returns the frame to the invalid state.
func (d *FrameDesc) Clear() {
	d.file = nil
	d.pageNo = storage.InvalidPageID
	d.pinCnt = 0
	d.dirty = false
	d.valid = false
	d.refbit = false
}

func (d *FrameDesc) FrameNo() FrameID { return d.frameNo }
func (d *FrameDesc) Valid() bool { return d.valid }
func (d *FrameDesc) RefBit() bool { return d.refbit }
func (d *FrameDesc) Dirty() bool { return d.dirty }
func (d *FrameDesc) PinCount() uint32 { return d.pinCnt }
func (d *FrameDesc) File() storage.File { return d.file }
func (d *FrameDesc) PageNo() storage.PageID { return d.pageNo }

func (d *FrameDesc) String() string {
	if !d.valid {
		return fmt.Sprintf("frame=%d valid=false", d.frameNo)
	}
	return fmt.Sprintf("frame=%d file=%s page=%d valid=true pin=%d dirty=%t ref=%t",
		d.frameNo, d.file.Filename(), d.pageNo, d.pinCnt, d.dirty, d.refbit)
}
