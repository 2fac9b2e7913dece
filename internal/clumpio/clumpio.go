// Package clumpio serializes a clump: a heterogeneous container
// holding typed homogeneous sub-lists, saved and loaded without the
// generic image header — the caller records the payload size out of
// band and passes it back at load time.
package clumpio

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/gather"
	"github.com/polaris-sw/memimage/internal/imageio"
	"github.com/polaris-sw/memimage/internal/typemodel"
	"github.com/polaris-sw/memimage/internal/walker"
)

// indexRecordSize is the on-disk size of one list's index record:
// (typeId, elemCount, dataOffset), each a u32.
const indexRecordSize = 12

// List describes one of a Clump's homogeneous sub-lists: its element
// type, the address of its first element, and its element count. Save
// and Load exchange lists in this form so internal/clumpio never needs
// to know the root package's Clump type (which would be an import
// cycle).
type List struct {
	Name     string
	ElemType *typemodel.Type
	Data     unsafe.Pointer
	Count    int
}

// Save writes lists to w: a clump index chunk (list count plus, per
// list, element type id / count / data offset), the element storage for
// each non-empty list, and the three fix-up tables. There is no image
// header; the returned payload size must be recorded by the caller out
// of band and handed back to Load.
func Save(lists []List, w *imageio.Writer) (payloadSize uint32, err error) {
	g := chunk.New()

	indexBuf := make([]byte, 4+indexRecordSize*len(lists))
	g.AddChunk(unsafe.Pointer(&indexBuf[0]), uint32(len(indexBuf)), 4, "clump-index")

	for _, list := range lists {
		if list.Count == 0 {
			continue
		}
		g.AddChunk(list.Data, uint32(list.Count)*uint32(list.ElemType.Size), uint32(list.ElemType.Align), "clump-list:"+list.Name)
		gp := gather.New(g)
		for i := 0; i < list.Count; i++ {
			elemAddr := unsafe.Add(list.Data, uintptr(i)*list.ElemType.Size)
			walker.Walk(elemAddr, list.ElemType, gp, walker.Context{MemberName: fmt.Sprintf("%s[%d]", list.Name, i)})
		}
	}

	g.ResolveOffsets()
	chunk.AssertValid(g)

	binary.NativeEndian.PutUint32(indexBuf[0:4], uint32(len(lists)))
	off := 4
	for _, list := range lists {
		var dataOffset uint32
		if list.Count > 0 {
			dataOffset, err = g.OffsetOf(list.Data)
			if err != nil {
				return 0, fmt.Errorf("memimage: clump list %q: %w", list.Name, err)
			}
		}
		binary.NativeEndian.PutUint32(indexBuf[off:off+4], list.ElemType.TypeID)
		binary.NativeEndian.PutUint32(indexBuf[off+4:off+8], uint32(list.Count))
		binary.NativeEndian.PutUint32(indexBuf[off+8:off+12], dataOffset)
		off += indexRecordSize
	}

	if _, err := imageio.WriteChunksAndTables(w, g); err != nil {
		return 0, err
	}
	return g.PayloadSize(), nil
}

// Load reads a clump image written by Save: buf must be at least
// payloadSize bytes, and elemTypes must describe the element type of
// each list in the same order Save received them. Every array/string
// reachable from a loaded element is flagged externally allocated, the
// same as Load/LoadInPlace do for a plain image.
//
// The returned assetAnchor backs every asset id reconstructed into buf.
// The string headers ApplyFixups writes live inside buf, which the
// garbage collector never scans, so the caller must keep assetAnchor
// reachable for as long as the loaded elements are used.
func Load(r *imageio.Reader, payloadSize uint32, buf []byte, elemTypes []*typemodel.Type, registry *typemodel.Registry) (lists []List, assetAnchor []byte, err error) {
	if uint32(len(buf)) < payloadSize {
		return nil, nil, imageio.ErrBufferTooSmall
	}

	payloadBytes, err := r.ReadBytes(int(payloadSize))
	if err != nil {
		return nil, nil, fmt.Errorf("memimage: read clump payload: %w", err)
	}
	copy(buf, payloadBytes)
	base := unsafe.Pointer(&buf[0])

	pointerFixes, err := imageio.ReadPointerTable(r)
	if err != nil {
		return nil, nil, err
	}
	typeFixes, err := imageio.ReadTypeTable(r)
	if err != nil {
		return nil, nil, err
	}
	assetFixes, err := imageio.ReadAssetTable(r)
	if err != nil {
		return nil, nil, err
	}

	var assetBytes int
	for _, a := range assetFixes {
		assetBytes += len(a.Bytes)
	}
	assetAnchor = make([]byte, assetBytes)
	off := 0
	for i := range assetFixes {
		n := len(assetFixes[i].Bytes)
		copy(assetAnchor[off:off+n], assetFixes[i].Bytes)
		assetFixes[i].Bytes = assetAnchor[off : off+n : off+n]
		off += n
	}

	if err := imageio.ApplyFixups(base, pointerFixes, typeFixes, assetFixes, registry); err != nil {
		return nil, nil, err
	}

	count := binary.NativeEndian.Uint32(buf[0:4])
	if int(count) != len(elemTypes) {
		return nil, nil, fmt.Errorf("memimage: clump has %d lists, caller described %d", count, len(elemTypes))
	}

	lists = make([]List, count)
	off = 4
	for i := range lists {
		typeID := binary.NativeEndian.Uint32(buf[off : off+4])
		elemCount := binary.NativeEndian.Uint32(buf[off+4 : off+8])
		dataOffset := binary.NativeEndian.Uint32(buf[off+8 : off+12])
		off += indexRecordSize

		et := elemTypes[i]
		if typeID != et.TypeID {
			return nil, nil, fmt.Errorf("%w: clump list %d", imageio.ErrObjectOfWrongType, i)
		}

		var data unsafe.Pointer
		if elemCount > 0 {
			data = unsafe.Add(base, dataOffset)
			for e := 0; e < int(elemCount); e++ {
				imageio.MarkExternal(unsafe.Add(data, uintptr(e)*et.Size), et)
			}
		}
		lists[i] = List{ElemType: et, Data: data, Count: int(elemCount)}
	}
	return lists, assetAnchor, nil
}
