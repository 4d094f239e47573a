package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
)

// ErrWriter drops every write after the first failure and remembers it.
type ErrWriter struct {
	W   io.Writer
	Err error
}

func (e *ErrWriter) Fprintf(format string, a ...any) {
	if e.Err != nil {
		return
	}
	_, e.Err = fmt.Fprintf(e.W, format, a...)
}

func (e *ErrWriter) Fprintln(a ...any) {
	if e.Err != nil {
		return
	}
	_, e.Err = fmt.Fprintln(e.W, a...)
}

// ASCII preview: printable -> itself, else '.'
func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if r < unicode.MaxASCII && unicode.IsPrint(r) {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// Debug prints header, line pointers, and record previews to the writer.
func (p *Page) Debug(w io.Writer) error {
	ew := &ErrWriter{W: w}

	ew.Fprintf("=== Page Debug ===\n")
	if len(p.Buf) != PageSize {
		ew.Fprintf("<bad buffer: %d bytes>\n", len(p.Buf))
		return ew.Err
	}
	ew.Fprintf("pageNo=%d flags=0x%04x lower=%d upper=%d freeSpace=%d numSlots=%d\n",
		p.PageNo(), p.flags(), p.lower(), p.upper(), p.FreeSpace(), p.NumSlots())

	const maxPreview = 32
	for i := 0; i < p.NumSlots() && ew.Err == nil; i++ {
		data, err := p.ReadRecord(i)
		if err != nil {
			ew.Fprintf("[%d] %v\n", i, err)
			continue
		}
		preview := data
		if len(preview) > maxPreview {
			preview = preview[:maxPreview]
		}
		ew.Fprintf("[%d] len=%d hex=%s ascii=%q\n",
			i, len(data), hex.EncodeToString(preview), asciiPreview(preview))
	}

	ew.Fprintln("=== End Page Debug ===")
	return ew.Err
}

func (p *Page) DebugString() string {
	var b bytes.Buffer
	if err := p.Debug(&b); err != nil {
		_, _ = b.WriteString("\n<debug write error: " + err.Error() + ">\n")
	}
	return b.String()
}
