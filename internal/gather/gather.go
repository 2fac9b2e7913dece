// Package gather implements the walker.Callbacks that turns a live
// object graph into a chunk.Graph: one depth-first walk that collects
// every owned memory block plus the pointer, type-id, and asset-id
// fix-ups needed to relocate them, reusing internal/walker for
// traversal and internal/chunk for bookkeeping.
package gather

import (
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/typemodel"
	"github.com/polaris-sw/memimage/internal/walker"
)

// Gatherer collects chunks and fix-ups while walking a root object.
type Gatherer struct {
	graph *chunk.Graph
}

// New returns a Gatherer that records chunks and fix-ups into an
// existing graph, for callers (such as internal/clumpio) that need to
// populate one graph from more than one walk.
func New(g *chunk.Graph) *Gatherer {
	return &Gatherer{graph: g}
}

// Run walks rootAddr (of type t) and returns the populated chunk.Graph,
// with offsets already resolved.
func Run(rootAddr unsafe.Pointer, t *typemodel.Type) *chunk.Graph {
	g := New(chunk.New())
	g.graph.AddChunk(rootAddr, uint32(t.Size), uint32(t.Align), "root")
	walker.Walk(rootAddr, t, g, walker.Context{MemberName: "root"})
	g.graph.ResolveOffsets()
	chunk.AssertValid(g.graph)
	return g.graph
}

// VisitPOD implements walker.Callbacks. Bitwise data lives inside its
// owning chunk already; nothing to record.
func (g *Gatherer) VisitPOD(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {}

// VisitString implements walker.Callbacks. A non-empty string's NUL
// terminated buffer becomes its own chunk, with a pointer fix from the
// buffer slot to it.
func (g *Gatherer) VisitString(s typemodel.StringLike, ctx walker.Context) {
	ptr := s.StrPtr()
	if ptr == nil {
		return
	}
	length := uint32(s.StrLen()) + 1 // include NUL terminator
	g.graph.AddChunk(ptr, length, 1, "string:"+ctx.Path())
	g.graph.AddPointer(s.StrBufferAddr(), ptr, ctx.Path())
}

// VisitAssetID implements walker.Callbacks. Asset ids are written
// inline in the fix-up table, never as a chunk.
func (g *Gatherer) VisitAssetID(a typemodel.AssetIDLike, ctx walker.Context) {
	g.graph.AddAssetRef(slotOf(a), a.AssetBytes())
}

// VisitTypeID implements walker.Callbacks. An unset slot (type id 0)
// records no fix; its zero bytes already load as an unresolved slot.
func (g *Gatherer) VisitTypeID(tr typemodel.TypeIDSlot, ctx walker.Context) {
	id := tr.TypeRefID()
	if id == 0 {
		return
	}
	g.graph.AddTypeRef(slotOf(tr), id)
}

// VisitPointer implements walker.Callbacks. A non-nil target gets its
// own chunk (sized from the pointee's descriptor) and a pointer fix,
// unless target already lies inside a chunk that exists — most often
// the root chunk itself, when target is an embedded field rather than a
// separate heap allocation. Dedup is by containment, not exact start
// address: HasChunk alone would miss a pointer into the middle of an
// already-chunked object and add a second, overlapping chunk for it. The
// walk only recurses into chunks it has not already visited this way,
// so shared and cyclic graphs terminate.
func (g *Gatherer) VisitPointer(slotAddr, target unsafe.Pointer, pointee *typemodel.Type, ctx walker.Context) bool {
	if target == nil {
		return false
	}
	g.graph.AddPointer(slotAddr, target, ctx.Path())
	if g.graph.Contains(target) {
		return false
	}
	g.graph.AddChunk(target, uint32(pointee.Size), uint32(pointee.Align), "ptr:"+ctx.Path())
	return true
}

// VisitArray implements walker.Callbacks. A non-empty dynamic array's
// backing store becomes its own chunk, with a pointer fix from the data
// slot to it, unless that backing store already lies inside a chunk
// that exists (see VisitPointer).
func (g *Gatherer) VisitArray(arr typemodel.DynamicArray, addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	capacity := arr.ArrayCap()
	data := arr.ArrayDataPtr()
	if data == nil || capacity == 0 {
		return false
	}
	g.graph.AddPointer(arr.ArrayDataPtrAddr(), data, ctx.Path())
	if g.graph.Contains(data) {
		return false
	}
	// The chunk spans the full capacity, not just the live count, so
	// the loaded array's capacity field stays truthful about how much
	// backing storage it actually has.
	length := uint32(capacity) * uint32(t.Item.Size)
	g.graph.AddChunk(data, length, uint32(t.Item.Align), "array:"+ctx.Path())
	// Bulk bitwise-copyable elements (primitives/enums/flags) need no
	// per-element walk; their bytes are already part of the chunk.
	return !t.Item.IsBitwiseSerializable()
}

// VisitStaticArray implements walker.Callbacks. An embedded array
// contributes no chunk of its own; recurse into elements only when
// their kind is not bitwise-copyable.
func (g *Gatherer) VisitStaticArray(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	return !t.Item.IsBitwiseSerializable()
}

// VisitClass implements walker.Callbacks; always recurse into fields.
func (g *Gatherer) VisitClass(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	return true
}

// slotOf recovers the address backing an interface value built by
// reflect.NewAt(rt, addr).Interface() — the interface's data word is
// exactly addr, since the concrete type is always a pointer.
func slotOf(v interface{}) unsafe.Pointer {
	return unsafe.Pointer(reflect.ValueOf(v).Pointer())
}
