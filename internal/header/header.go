// Package header implements the fixed-size image header: a session
// fingerprint, the root object's stable type id, and the chunk-region
// payload size, guarded by a corruption checksum. It precedes the
// chunk payload in every image and is never itself addressed by a
// fix-up offset — payload offsets count from the first byte after it.
package header

import (
	"encoding/binary"

	"github.com/polaris-sw/memimage/internal/fingerprint"
)

// Size is the header's fixed on-disk size in bytes.
const Size = 24

// Header is the decoded form of the fixed-size header block.
type Header struct {
	Session     fingerprint.Fingerprint
	RootTypeID  uint32
	PayloadSize uint32
}

// Encode renders h into its wire form, stamping a corruption checksum
// over the preceding bytes into the last 4 bytes of the block.
func Encode(h Header) [Size]byte {
	var buf [Size]byte
	binary.NativeEndian.PutUint64(buf[0:8], uint64(h.Session))
	binary.NativeEndian.PutUint32(buf[8:12], h.RootTypeID)
	binary.NativeEndian.PutUint32(buf[12:16], h.PayloadSize)
	// buf[16:20] reserved, left zero.
	cksum := Lookup3Checksum(buf[:20])
	binary.NativeEndian.PutUint32(buf[20:24], cksum)
	return buf
}

// Decode parses a header block, verifying its checksum first. buf must
// be at least Size bytes; extra trailing bytes are ignored.
func Decode(buf []byte) (Header, error) {
	if len(buf) < Size {
		return Header{}, ErrTruncatedHeader
	}
	got := binary.NativeEndian.Uint32(buf[20:24])
	want := Lookup3Checksum(buf[:20])
	if got != want {
		return Header{}, ErrCorruptHeader
	}
	return Header{
		Session:     fingerprint.Fingerprint(binary.NativeEndian.Uint64(buf[0:8])),
		RootTypeID:  binary.NativeEndian.Uint32(buf[8:12]),
		PayloadSize: binary.NativeEndian.Uint32(buf[12:16]),
	}, nil
}
