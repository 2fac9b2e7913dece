package imageio

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/hashicorp/go-hclog"

	"github.com/polaris-sw/memimage/internal/fingerprint"
	"github.com/polaris-sw/memimage/internal/header"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// Loaded is the result of a copy-load: an owned, aligned buffer holding
// the object, plus a pointer to its start within that buffer. The
// caller must keep Buffer alive for as long as Root is used.
type Loaded struct {
	Buffer []byte
	Root   unsafe.Pointer
}

// ReadImage performs a copy-load: read and validate the header,
// allocate an aligned owned buffer, read the payload into it, apply
// fix-ups, then mark every array/string inside as externally
// allocated.
func ReadImage(r io.ReaderAt, expectedType *typemodel.Type, registry *typemodel.Registry, logger hclog.Logger) (*Loaded, error) {
	hdrBuf := make([]byte, header.Size)
	if _, err := r.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("memimage: read header: %w", err)
	}
	hdr, err := header.Decode(hdrBuf)
	if err != nil {
		return nil, err
	}
	if hdr.Session != fingerprint.Current() {
		return nil, ErrSessionMismatch
	}
	if hdr.RootTypeID != expectedType.TypeID {
		return nil, ErrObjectOfWrongType
	}
	if uintptr(expectedType.Size) > uintptr(hdr.PayloadSize) {
		return nil, ErrBufferTooSmall
	}

	tableReader := NewReader(r)
	tableReader.Seek(int64(header.Size) + int64(hdr.PayloadSize))
	pointerFixes, err := ReadPointerTable(tableReader)
	if err != nil {
		return nil, err
	}
	typeFixes, err := ReadTypeTable(tableReader)
	if err != nil {
		return nil, err
	}
	assetFixes, err := ReadAssetTable(tableReader)
	if err != nil {
		return nil, err
	}

	var assetBytes uint32
	for _, a := range assetFixes {
		assetBytes += uint32(len(a.Bytes))
	}

	raw, base, assetArea, err := alignedAlloc(hdr.PayloadSize, uint32(expectedType.Align), assetBytes)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		baseOffset := uintptr(base) - uintptr(unsafe.Pointer(&raw[0]))
		payload := raw[baseOffset : baseOffset+uintptr(hdr.PayloadSize)]
		if _, err := r.ReadAt(payload, int64(header.Size)); err != nil {
			return nil, fmt.Errorf("memimage: read payload: %w", err)
		}
	}

	// Copy each asset's bytes into assetArea — part of raw's own backing
	// array — before applying fix-ups, so the strings ApplyFixups writes
	// stay reachable for as long as the caller keeps Buffer alive, the
	// same way pointer-fix targets stay valid by pointing back within raw.
	off := 0
	for i := range assetFixes {
		n := len(assetFixes[i].Bytes)
		copy(assetArea[off:off+n], assetFixes[i].Bytes)
		assetFixes[i].Bytes = assetArea[off : off+n : off+n]
		off += n
	}

	logger.Debug("applying fix-ups",
		"pointers", len(pointerFixes), "types", len(typeFixes), "assets", len(assetFixes))
	if err := ApplyFixups(base, pointerFixes, typeFixes, assetFixes, registry); err != nil {
		return nil, err
	}
	MarkExternal(base, expectedType)

	return &Loaded{Buffer: raw, Root: base}, nil
}

// alignedAlloc returns a freshly allocated byte slice containing a
// size-byte region starting at the returned base, aligned to align (a
// power of two), plus a trailing assetArea of at least extra bytes
// carved from that same backing array — so data copied there shares
// the returned slice's lifetime. make([]byte) itself gives no
// alignment guarantee beyond the runtime's size classes, so we
// over-allocate by align-1 extra bytes and round the address up.
func alignedAlloc(size, align, extra uint32) (raw []byte, base unsafe.Pointer, assetArea []byte, err error) {
	if align <= 1 {
		raw = make([]byte, uint64(size)+uint64(extra))
		if len(raw) == 0 {
			return raw, nil, nil, nil
		}
		return raw, unsafe.Pointer(&raw[0]), raw[size:], nil
	}
	raw = make([]byte, uint64(size)+uint64(align)-1+uint64(extra))
	if len(raw) == 0 {
		return raw, nil, nil, nil
	}
	addr := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (addr + uintptr(align) - 1) &^ (uintptr(align) - 1)
	baseOffset := aligned - addr
	return raw, unsafe.Pointer(aligned), raw[baseOffset+uintptr(size):], nil
}
