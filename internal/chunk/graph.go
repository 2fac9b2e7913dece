// Package chunk implements the chunk graph: during a reflection walk
// of a root object, it collects every owned memory block (chunk),
// every internal pointer, type-descriptor slot, and asset-id slot
// needed to emit a relocatable image, then assigns each chunk an
// aligned file offset.
package chunk

import (
	"fmt"
	"unsafe"
)

// MinAlignment is the platform minimum every chunk's alignment is
// clamped up to.
const MinAlignment = 8

// PayloadAlignment is the alignment the whole chunk region is padded
// up to before the fix-up tables begin.
const PayloadAlignment = 16

// ChunkHandle identifies a chunk previously added to a ChunkGraph.
type ChunkHandle int

// Chunk is one contiguous memory block scheduled for inclusion in the
// image.
type Chunk struct {
	Name      string
	Start     unsafe.Pointer
	Length    uint32
	Alignment uint32
	Offset    uint32 // unresolved (= unresolvedOffset) until ResolveOffsets runs
}

const unresolvedOffset = ^uint32(0)

type pointerRecord struct {
	slot, target unsafe.Pointer
	name         string
}

type typeRecord struct {
	slot   unsafe.Pointer
	typeID uint32
}

type assetRecord struct {
	slot  unsafe.Pointer
	bytes []byte
}

// Graph collects chunks, pointer fixes, type fixes, and asset fixes
// during one save walk. It is scoped to a single Save call and never
// escapes it.
type Graph struct {
	chunks      []Chunk
	byAddr      map[uintptr]ChunkHandle
	pointers    []pointerRecord
	typeRefs    []typeRecord
	assetRefs   []assetRecord
	resolved    bool
	payloadSize uint32
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{byAddr: make(map[uintptr]ChunkHandle)}
}

// AddChunk appends a chunk and returns its handle. Alignment is clamped
// up to MinAlignment. Revisiting the identical start address returns
// the existing handle instead of adding a duplicate chunk — this is
// how shared/heap objects referenced by more than one pointer end up
// with exactly one chunk.
func (g *Graph) AddChunk(start unsafe.Pointer, length, alignment uint32, name string) ChunkHandle {
	if alignment < MinAlignment {
		alignment = MinAlignment
	}
	key := uintptr(start)
	if h, ok := g.byAddr[key]; ok {
		return h
	}
	h := ChunkHandle(len(g.chunks))
	g.chunks = append(g.chunks, Chunk{
		Name:      name,
		Start:     start,
		Length:    length,
		Alignment: alignment,
		Offset:    unresolvedOffset,
	})
	g.byAddr[key] = h
	return h
}

// HasChunk reports whether a chunk starting at start was already added.
func (g *Graph) HasChunk(start unsafe.Pointer) bool {
	_, ok := g.byAddr[uintptr(start)]
	return ok
}

// Contains reports whether addr lies inside the byte range of any chunk
// already added, not just at one's exact start address. A pointer into
// an embedded (non-first) field of an already-chunked object — most
// commonly the root chunk itself, added before the walk begins — is
// contained this way without ever matching HasChunk, which only ever
// sees the chunk's own start address.
func (g *Graph) Contains(addr unsafe.Pointer) bool {
	a := uintptr(addr)
	for i := range g.chunks {
		c := &g.chunks[i]
		start := uintptr(c.Start)
		if a >= start && a-start < uintptr(c.Length) {
			return true
		}
	}
	return false
}

// AddPointer records a pointer fix from slot to target. The caller must
// ensure target lies inside some present-or-future chunk; this is
// verified lazily, by PointerFixes, after offsets are resolved.
func (g *Graph) AddPointer(slot, target unsafe.Pointer, name string) {
	g.pointers = append(g.pointers, pointerRecord{slot: slot, target: target, name: name})
}

// AddTypeRef records a type-descriptor slot.
func (g *Graph) AddTypeRef(slot unsafe.Pointer, typeID uint32) {
	g.typeRefs = append(g.typeRefs, typeRecord{slot: slot, typeID: typeID})
}

// AddAssetRef records an asset-id slot together with its serialized bytes.
func (g *Graph) AddAssetRef(slot unsafe.Pointer, bytes []byte) {
	g.assetRefs = append(g.assetRefs, assetRecord{slot: slot, bytes: bytes})
}

// Chunks returns the chunks in insertion (depth-first visitation) order.
func (g *Graph) Chunks() []Chunk { return g.chunks }

// ResolveOffsets assigns aligned file offsets to chunks in insertion
// order and returns the total payload size, aligned up to
// PayloadAlignment.
func (g *Graph) ResolveOffsets() uint32 {
	offset := uint32(0)
	for i := range g.chunks {
		c := &g.chunks[i]
		offset = alignUp(offset, c.Alignment)
		c.Offset = offset
		offset += c.Length
	}
	g.payloadSize = alignUp(offset, PayloadAlignment)
	g.resolved = true
	return g.payloadSize
}

// PayloadSize returns the value last computed by ResolveOffsets.
func (g *Graph) PayloadSize() uint32 { return g.payloadSize }

// OffsetOf returns the file offset of addr, which must lie inside
// exactly one chunk's byte range. ResolveOffsets must have run first.
func (g *Graph) OffsetOf(addr unsafe.Pointer) (uint32, error) {
	a := uintptr(addr)
	for i := range g.chunks {
		c := &g.chunks[i]
		start := uintptr(c.Start)
		rel := a - start
		if a >= start && rel < uintptr(c.Length) {
			return c.Offset + uint32(rel), nil
		}
	}
	return 0, fmt.Errorf("%w: 0x%x", ErrBadPointer, a)
}

// PointerFixes resolves every recorded pointer into a (slotOffset,
// targetOffset) pair. ResolveOffsets must have run first.
func (g *Graph) PointerFixes() ([]PointerFix, error) {
	out := make([]PointerFix, 0, len(g.pointers))
	for _, p := range g.pointers {
		slotOff, err := g.OffsetOf(p.slot)
		if err != nil {
			return nil, fmt.Errorf("pointer fix %q: slot: %w", p.name, err)
		}
		targetOff, err := g.OffsetOf(p.target)
		if err != nil {
			return nil, fmt.Errorf("pointer fix %q: target: %w", p.name, err)
		}
		out = append(out, PointerFix{SlotOffset: slotOff, TargetOffset: targetOff})
	}
	return out, nil
}

// TypeFixes resolves every recorded type-id slot. ResolveOffsets must
// have run first.
func (g *Graph) TypeFixes() ([]TypeFix, error) {
	out := make([]TypeFix, 0, len(g.typeRefs))
	for _, t := range g.typeRefs {
		slotOff, err := g.OffsetOf(t.slot)
		if err != nil {
			return nil, fmt.Errorf("type fix: %w", err)
		}
		out = append(out, TypeFix{SlotOffset: slotOff, TypeID: t.typeID})
	}
	return out, nil
}

// AssetFixes resolves every recorded asset-id slot. ResolveOffsets must
// have run first.
func (g *Graph) AssetFixes() ([]AssetFix, error) {
	out := make([]AssetFix, 0, len(g.assetRefs))
	for _, a := range g.assetRefs {
		slotOff, err := g.OffsetOf(a.slot)
		if err != nil {
			return nil, fmt.Errorf("asset fix: %w", err)
		}
		out = append(out, AssetFix{SlotOffset: slotOff, Bytes: a.bytes})
	}
	return out, nil
}

// Validate checks the resolved chunk set: each offset is a multiple of
// its chunk's own alignment, and no two chunks overlap. Used by the
// debug-build assertion pair (see debug_assert.go).
func (g *Graph) Validate() error {
	for i := range g.chunks {
		c := &g.chunks[i]
		if c.Offset == unresolvedOffset {
			return fmt.Errorf("%w: chunk %q has no resolved offset", ErrMisalignedChunk, c.Name)
		}
		if c.Offset%c.Alignment != 0 {
			return fmt.Errorf("%w: chunk %q offset 0x%x not aligned to %d", ErrMisalignedChunk, c.Name, c.Offset, c.Alignment)
		}
	}
	for i := 0; i < len(g.chunks); i++ {
		for j := i + 1; j < len(g.chunks); j++ {
			a, b := &g.chunks[i], &g.chunks[j]
			if a.Offset < b.Offset+b.Length && b.Offset < a.Offset+a.Length {
				return fmt.Errorf("%w: %q [0x%x, len %d] and %q [0x%x, len %d]",
					ErrOverlappingChunks, a.Name, a.Offset, a.Length, b.Name, b.Offset, b.Length)
			}
		}
	}
	return nil
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
