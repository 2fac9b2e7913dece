package imageio

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/hashicorp/go-hclog"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/fingerprint"
	"github.com/polaris-sw/memimage/internal/header"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// LoadInPlace treats buf as the live image: buf already holds header,
// payload, and fix-up tables, typically via a memory-mapped file. It
// validates the header, applies fix-ups directly against buf, marks
// externally-allocated storage, and returns a pointer to the live
// object inside buf. Nothing is copied; the caller's buffer becomes
// the object's storage.
func LoadInPlace(buf []byte, expectedType *typemodel.Type, registry *typemodel.Registry, logger hclog.Logger) (unsafe.Pointer, error) {
	if len(buf) < header.Size {
		return nil, ErrBufferTooSmall
	}
	hdr, err := header.Decode(buf)
	if err != nil {
		return nil, err
	}
	if hdr.Session != fingerprint.Current() {
		return nil, ErrSessionMismatch
	}
	if hdr.RootTypeID != expectedType.TypeID {
		return nil, ErrObjectOfWrongType
	}

	payloadAligned := alignUp(hdr.PayloadSize, chunk.PayloadAlignment)
	if len(buf) < header.Size+int(payloadAligned)+12 {
		return nil, ErrBufferTooSmall
	}
	if uintptr(expectedType.Size) > uintptr(hdr.PayloadSize) {
		return nil, ErrBufferTooSmall
	}

	objectData := unsafe.Pointer(&buf[header.Size])
	if uintptr(objectData)%expectedType.Align != 0 {
		return nil, ErrInvalidAlignment
	}

	tablesStart := header.Size + int(payloadAligned)
	tableReader := NewReader(bytes.NewReader(buf[tablesStart:]))
	pointerFixes, err := ReadPointerTable(tableReader)
	if err != nil {
		return nil, fmt.Errorf("memimage: read pointer table: %w", err)
	}
	typeFixes, err := ReadTypeTable(tableReader)
	if err != nil {
		return nil, fmt.Errorf("memimage: read type table: %w", err)
	}
	// Asset bytes alias buf itself rather than fresh copies: the
	// string headers ApplyFixups writes live inside buf, which the
	// garbage collector never scans, so a copied backing array would
	// become collectable the moment this function returns.
	assetFixes, _, err := ReadAssetTableAliased(buf, tablesStart+int(tableReader.Pos()))
	if err != nil {
		return nil, fmt.Errorf("memimage: read asset table: %w", err)
	}

	logger.Debug("applying fix-ups in place",
		"pointers", len(pointerFixes), "types", len(typeFixes), "assets", len(assetFixes))
	if err := ApplyFixups(objectData, pointerFixes, typeFixes, assetFixes, registry); err != nil {
		return nil, err
	}
	MarkExternal(objectData, expectedType)

	return objectData, nil
}
