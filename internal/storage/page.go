package storage

import (
	"encoding/binary"
	"errors"
)

// Header offsets
const (
	offFlags   = 0
	offPageNo  = 2
	offLower   = 6
	offUpper   = 8
	offSpecial = 10
)

// Slot flags
const (
	SlotFlagNormal  uint16 = 0
	SlotFlagDeleted uint16 = 1 << 0
)

var (
	ErrRecordTooLarge = errors.New("page: record too large for inline")
	ErrNoSpace        = errors.New("page: not enough free space")
	ErrBadSlot        = errors.New("page: invalid slot")
	ErrCorruption     = errors.New("page: corrupt slot or record bounds")
)

type Slot struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

// +------------------+ 0
// | PageHeaderData   |
// | LinePointers[]   | <-- lower
// +------------------+
// |   Free space     |
// +------------------+ <-- upper
// |  Record Data     |
// |  (grows down)    |
// +------------------+ PageSize (8192)
//
// The buffer manager never looks inside a Page; the layout belongs to the
// files and to callers holding a pin.
type Page struct {
	Buf []byte // fixed-size 8KB
}

// NewPage formats buf as an empty page numbered pageNo.
func NewPage(buf []byte, pageNo PageID) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	p := &Page{Buf: buf}
	p.init(pageNo)
	return p, nil
}

func (p *Page) flags() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offFlags:])
}

func (p *Page) PageNo() PageID {
	return PageID(binary.LittleEndian.Uint32(p.Buf[offPageNo:]))
}

func (p *Page) setPageNo(v PageID) {
	binary.LittleEndian.PutUint32(p.Buf[offPageNo:], uint32(v))
}

func (p *Page) lower() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offLower:])
}

func (p *Page) setLower(v uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offLower:], v)
}

func (p *Page) upper() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offUpper:])
}

func (p *Page) setUpper(v uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offUpper:], v)
}

func (p *Page) init(pageNo PageID) {
	clear(p.Buf)
	p.setPageNo(pageNo)
	p.setLower(HeaderSize)
	p.setUpper(PageSize)
	binary.LittleEndian.PutUint16(p.Buf[offSpecial:], PageSize)
}

func (p *Page) FreeSpace() int {
	return int(p.upper()) - int(p.lower())
}

func (p *Page) NumSlots() int {
	if p.lower() < HeaderSize {
		return 0
	}
	return int(p.lower()-HeaderSize) / SlotSize
}

// IsUninitialized reports an all-zero header, e.g. a page that was deleted.
func (p *Page) IsUninitialized() bool {
	return p.lower() == 0 && p.upper() == 0
}

func (p *Page) slotOff(idx int) int {
	return HeaderSize + idx*SlotSize
}

func (p *Page) getSlot(i int) (Slot, error) {
	if i < 0 || i >= p.NumSlots() {
		return Slot{}, ErrBadSlot
	}
	o := p.slotOff(i)
	if o+SlotSize > int(p.lower()) {
		return Slot{}, ErrCorruption
	}
	return Slot{
		Offset: binary.LittleEndian.Uint16(p.Buf[o+0:]),
		Length: binary.LittleEndian.Uint16(p.Buf[o+2:]),
		Flags:  binary.LittleEndian.Uint16(p.Buf[o+4:]),
	}, nil
}

func (p *Page) putSlot(idx int, s Slot) {
	off := p.slotOff(idx)
	binary.LittleEndian.PutUint16(p.Buf[off+0:], s.Offset)
	binary.LittleEndian.PutUint16(p.Buf[off+2:], s.Length)
	binary.LittleEndian.PutUint16(p.Buf[off+4:], s.Flags)
}

// InsertRecord copies rec into the page and returns its slot number.
func (p *Page) InsertRecord(rec []byte) (slot int, err error) {
	if p.IsUninitialized() {
		return -1, ErrCorruption
	}
	maxInline := PageSize - HeaderSize - SlotSize
	if len(rec) == 0 || len(rec) > maxInline {
		return -1, ErrRecordTooLarge
	}
	if p.FreeSpace() < len(rec)+SlotSize {
		return -1, ErrNoSpace
	}
	u := int(p.upper()) - len(rec)
	copy(p.Buf[u:], rec)
	p.setUpper(uint16(u))

	slot = p.NumSlots()
	p.putSlot(slot, Slot{Offset: uint16(u), Length: uint16(len(rec)), Flags: SlotFlagNormal})
	p.setLower(p.lower() + SlotSize)
	return slot, nil
}

// ReadRecord returns a view into the page; it is only valid while the page is pinned.
func (p *Page) ReadRecord(slot int) ([]byte, error) {
	s, err := p.getSlot(slot)
	if err != nil {
		return nil, err
	}
	if s.Flags == SlotFlagDeleted {
		return nil, ErrBadSlot
	}
	start, end := int(s.Offset), int(s.Offset)+int(s.Length)
	if s.Length == 0 || start < int(p.upper()) || end > PageSize {
		return nil, ErrCorruption
	}
	return p.Buf[start:end], nil
}

func (p *Page) DeleteRecord(slot int) error {
	if _, err := p.getSlot(slot); err != nil {
		return err
	}
	p.putSlot(slot, Slot{Flags: SlotFlagDeleted})
	return nil
}
