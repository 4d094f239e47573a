package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	defaultPageNo = PageID(7)

	slot1Data = []byte("data string of slot 1")
	slot2Data = []byte("data string of slot 2")
)

func newPage(t *testing.T) *Page {
	t.Helper()
	buf := make([]byte, PageSize)

	p, err := NewPage(buf, defaultPageNo)
	require.NoError(t, err)

	// default after init page
	assert.Equal(t, defaultPageNo, p.PageNo())
	assert.Equal(t, uint16(PageSize), p.upper())
	assert.Equal(t, uint16(HeaderSize), p.lower())
	assert.Equal(t, 0, p.NumSlots())
	assert.False(t, p.IsUninitialized())

	slot, err := p.InsertRecord(slot1Data)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	slot, err = p.InsertRecord(slot2Data)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	// after inserting two records
	assert.Equal(t, uint16(0x1fd6), p.upper())
	assert.Equal(t, uint16(0x18), p.lower())
	assert.Equal(t, 2, p.NumSlots())

	return p
}

func TestNewPage_WrongSize(t *testing.T) {
	_, err := NewPage(make([]byte, 10), 0)
	require.ErrorIs(t, err, ErrWrongSize)
}

func TestPage_Records(t *testing.T) {
	p := newPage(t)

	data, err := p.ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, slot1Data, data)

	data, err = p.ReadRecord(1)
	require.NoError(t, err)
	assert.Equal(t, slot2Data, data)

	// bad slot
	_, err = p.ReadRecord(-1)
	require.ErrorIs(t, err, ErrBadSlot)
	_, err = p.ReadRecord(2)
	require.ErrorIs(t, err, ErrBadSlot)

	// deleted
	require.NoError(t, p.DeleteRecord(0))
	_, err = p.ReadRecord(0)
	require.ErrorIs(t, err, ErrBadSlot)
	require.ErrorIs(t, p.DeleteRecord(5), ErrBadSlot)
}

func TestPage_InsertRecord_Limits(t *testing.T) {
	p := newPage(t)

	_, err := p.InsertRecord(nil)
	require.ErrorIs(t, err, ErrRecordTooLarge)

	_, err = p.InsertRecord(make([]byte, PageSize))
	require.ErrorIs(t, err, ErrRecordTooLarge)

	big := make([]byte, p.FreeSpace()-SlotSize)
	_, err = p.InsertRecord(big)
	require.NoError(t, err)
	assert.Equal(t, 0, p.FreeSpace())

	_, err = p.InsertRecord([]byte("x"))
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestPage_InsertRecord_Uninitialized(t *testing.T) {
	p := &Page{Buf: make([]byte, PageSize)}
	require.True(t, p.IsUninitialized())
	require.Equal(t, 0, p.NumSlots())

	_, err := p.InsertRecord([]byte("x"))
	require.ErrorIs(t, err, ErrCorruption)

	s := p.DebugString()
	assert.Contains(t, s, "numSlots=0")
	assert.NotContains(t, s, "[0]")
}

func TestPage_DebugString(t *testing.T) {
	p := newPage(t)

	s := p.DebugString()
	assert.Contains(t, s, "pageNo=7")
	assert.Contains(t, s, "numSlots=2")
	assert.Contains(t, s, "data string of slot 1")
	assert.Contains(t, s, "=== End Page Debug ===")
}
