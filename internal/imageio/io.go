// Package imageio emits and consumes image streams: a header, the
// chunk payload with alignment padding, and the three fix-up tables.
// It provides two load paths — an owned-buffer copy-load and a
// zero-copy in-place load operating on an already-populated buffer.
package imageio

import (
	"encoding/binary"
	"io"
)

// PaddingByte fills alignment gaps between chunks. It is purely a
// debug marker; loads never read it.
const PaddingByte = 0xCD

// AssetAlignment is the byte alignment each AssetFix record is padded
// to after its variable-length payload.
const AssetAlignment = 4

// Writer sequentially writes to an io.WriterAt, tracking its own
// position.
type Writer struct {
	w   io.WriterAt
	pos int64
}

// NewWriter wraps w starting at position 0.
func NewWriter(w io.WriterAt) *Writer { return &Writer{w: w} }

// Pos returns the current write position.
func (w *Writer) Pos() int64 { return w.pos }

// WriteBytes writes data at the current position and advances it.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint32 writes v in native byte order.
func (w *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	return w.WriteBytes(buf[:])
}

// Pad writes n bytes of PaddingByte.
func (w *Writer) Pad(n uint32) error {
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = PaddingByte
	}
	return w.WriteBytes(buf)
}

// Reader sequentially reads from an io.ReaderAt, tracking its own
// position.
type Reader struct {
	r   io.ReaderAt
	pos int64
}

// NewReader wraps r starting at position 0.
func NewReader(r io.ReaderAt) *Reader { return &Reader{r: r} }

// Pos returns the current read position.
func (r *Reader) Pos() int64 { return r.pos }

// Seek repositions the reader.
func (r *Reader) Seek(pos int64) { r.pos = pos }

// ReadBytes reads exactly n bytes and advances the position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint32 reads one native-byte-order uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buf), nil
}

func alignUp(x, align uint32) uint32 {
	if align <= 1 {
		return x
	}
	rem := x % align
	if rem == 0 {
		return x
	}
	return x + (align - rem)
}
