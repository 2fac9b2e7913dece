// Package idgraph implements the secondary id-graph binary format: it
// replaces every internal pointer with a small integer id instead of a
// file offset, so a saved stream can be loaded into freshly allocated
// objects rather than a single pre-sized, pre-aligned buffer. This is
// the functionally weaker of the two formats — no in-place load, a
// hash table of visited addresses kept for the whole walk — but a
// single memoizing pass that assigns an id to an address the first
// time it is reached as a pointer target, and reuses it on every later
// reference, is what lets it round-trip cyclic and aliased graphs
// without the chunk graph's offset bookkeeping.
package idgraph

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/typemodel"
	"github.com/polaris-sw/memimage/internal/walker"
)

// rootID is reserved for the root object itself, the one address that
// is never allocated fresh on load. nullID is reserved for a nil
// pointer. Ordinary objects are numbered starting at rootID+1.
const (
	nullID uint32 = 0
	rootID uint32 = 1
)

// Save writes root (of type t) to w, substituting a small integer id
// for every internal pointer. Unlike Save in the root package, this
// never builds a chunk graph: fields are written as they are visited,
// depth-first, and a pointer's pointee is only recursed into the first
// time that address is reached.
func Save(w io.Writer, rootAddr unsafe.Pointer, t *typemodel.Type) error {
	var hdr [4]byte
	binary.NativeEndian.PutUint32(hdr[:], t.TypeID)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("memimage/idgraph: write header: %w", err)
	}

	s := &saver{
		w:    w,
		ids:  map[unsafe.Pointer]uint32{rootAddr: rootID},
		next: rootID + 1,
	}
	walker.Walk(rootAddr, t, s, walker.Context{MemberName: "root"})
	return s.err
}

// Load reads a stream written by Save into rootAddr (of type t),
// allocating storage for every pointee the first time its id appears.
// registry resolves ClassId slots, exactly as the root package's Load
// does for the image format.
func Load(r io.Reader, rootAddr unsafe.Pointer, t *typemodel.Type, registry *typemodel.Registry) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("memimage/idgraph: read header: %w", err)
	}
	if got := binary.NativeEndian.Uint32(hdr[:]); got != t.TypeID {
		return ErrWrongType
	}

	l := &loader{
		r:        r,
		byID:     map[uint32]unsafe.Pointer{rootID: rootAddr},
		registry: registry,
	}
	l.walk(rootAddr, t, walker.Context{MemberName: "root"})
	return l.err
}

// saver implements walker.Callbacks, writing each visited value
// directly to the stream.
type saver struct {
	w    io.Writer
	ids  map[unsafe.Pointer]uint32
	next uint32
	err  error
}

func (s *saver) write(b []byte) {
	if s.err != nil || len(b) == 0 {
		return
	}
	if _, err := s.w.Write(b); err != nil {
		s.err = fmt.Errorf("memimage/idgraph: write: %w", err)
	}
}

func (s *saver) writeUint32(v uint32) {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	s.write(buf[:])
}

func (s *saver) VisitPOD(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {
	s.write(unsafe.Slice((*byte)(addr), int(t.Size)))
}

func (s *saver) VisitString(str typemodel.StringLike, ctx walker.Context) {
	n := str.StrLen()
	s.writeUint32(uint32(n))
	if n > 0 {
		s.write(unsafe.Slice((*byte)(str.StrPtr()), n))
	}
}

func (s *saver) VisitAssetID(a typemodel.AssetIDLike, ctx walker.Context) {
	b := a.AssetBytes()
	s.writeUint32(uint32(len(b)))
	s.write(b)
}

func (s *saver) VisitTypeID(tr typemodel.TypeIDSlot, ctx walker.Context) {
	s.writeUint32(tr.TypeRefID())
}

// VisitPointer writes the target's id: 0 for null, the existing id if
// this address was already reached, or a freshly assigned one — in
// which case Walk is asked to recurse into the pointee right after, so
// its fields follow the id directly in the stream.
func (s *saver) VisitPointer(slotAddr, target unsafe.Pointer, pointee *typemodel.Type, ctx walker.Context) bool {
	if s.err != nil {
		return false
	}
	if target == nil {
		s.writeUint32(nullID)
		return false
	}
	if id, ok := s.ids[target]; ok {
		s.writeUint32(id)
		return false
	}
	id := s.next
	s.next++
	s.ids[target] = id
	s.writeUint32(id)
	return true
}

func (s *saver) VisitArray(arr typemodel.DynamicArray, addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	n := arr.ArrayLen()
	s.writeUint32(uint32(n))
	if n == 0 {
		return false
	}
	if t.Item.IsBitwiseSerializable() {
		s.write(unsafe.Slice((*byte)(arr.ArrayDataPtr()), n*int(t.Item.Size)))
		return false
	}
	return true
}

func (s *saver) VisitStaticArray(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	if t.Item.IsBitwiseSerializable() {
		s.write(unsafe.Slice((*byte)(addr), t.Len*int(t.Item.Size)))
		return false
	}
	return true
}

func (s *saver) VisitClass(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	return s.err == nil
}

// loader performs the mirrored read-and-allocate walk. It cannot reuse
// walker.Walk directly: Walk's Pointer dispatch recurses into the
// pointer's value captured before the callback runs, which is always
// nil for a value being populated for the first time, so the loader
// needs to recurse into the address it just allocated instead.
type loader struct {
	r        io.Reader
	byID     map[uint32]unsafe.Pointer
	registry *typemodel.Registry
	err      error
}

func (l *loader) readInto(buf []byte) {
	if l.err != nil || len(buf) == 0 {
		return
	}
	if _, err := io.ReadFull(l.r, buf); err != nil {
		l.err = fmt.Errorf("memimage/idgraph: read: %w", err)
	}
}

func (l *loader) readUint32() uint32 {
	var buf [4]byte
	l.readInto(buf[:])
	return binary.NativeEndian.Uint32(buf[:])
}

func (l *loader) walk(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {
	if l.err != nil {
		return
	}
	switch t.Kind {
	case typemodel.KindInteger, typemodel.KindFloat, typemodel.KindBool,
		typemodel.KindEnum, typemodel.KindFlags, typemodel.KindUserData, typemodel.KindBlob:
		l.readInto(unsafe.Slice((*byte)(addr), int(t.Size)))

	case typemodel.KindString:
		l.readString(addr, t)

	case typemodel.KindAssetID:
		l.readAssetID(addr, t)

	case typemodel.KindClassID:
		l.readTypeID(addr, t)

	case typemodel.KindPointer:
		l.readPointer(addr, t, ctx)

	case typemodel.KindArray:
		if t.IsDynamic {
			l.readDynamicArray(addr, t, ctx)
		} else {
			l.readStaticArray(addr, t, ctx)
		}

	case typemodel.KindClass:
		for _, f := range t.Fields {
			if f.Flags&typemodel.FieldNoSerialize != 0 {
				continue
			}
			l.walk(unsafe.Add(addr, f.Offset), f.Type, ctx.Child(f.Name))
			if l.err != nil {
				return
			}
		}

	default:
		l.readInto(unsafe.Slice((*byte)(addr), int(t.Size)))
	}
}

func (l *loader) readString(addr unsafe.Pointer, t *typemodel.Type) {
	s := walker.AsStringLike(addr, t)
	n := l.readUint32()
	if l.err != nil || n == 0 {
		return
	}
	buf := make([]byte, n)
	l.readInto(buf)
	if l.err != nil {
		return
	}
	s.SetStrBuffer(unsafe.Pointer(&buf[0]), int(n), false)
}

func (l *loader) readAssetID(addr unsafe.Pointer, t *typemodel.Type) {
	a := walker.AsAssetIDLike(addr, t)
	n := l.readUint32()
	if l.err != nil {
		return
	}
	buf := make([]byte, n)
	l.readInto(buf)
	if l.err != nil {
		return
	}
	a.SetAssetBytes(buf)
}

func (l *loader) readTypeID(addr unsafe.Pointer, t *typemodel.Type) {
	tr := walker.AsTypeIDSlot(addr, t)
	id := l.readUint32()
	if l.err != nil || id == 0 {
		return
	}
	desc, ok := l.registry.Lookup(id)
	if !ok {
		l.err = fmt.Errorf("%w: id %d", ErrUnknownType, id)
		return
	}
	tr.SetDescriptor(desc)
}

// readPointer reads the slot's id and either nils the slot, aliases a
// previously allocated address, or allocates a fresh pointee and
// recurses into it — the load-side mirror of saver.VisitPointer's three
// cases.
func (l *loader) readPointer(slotAddr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {
	id := l.readUint32()
	if l.err != nil {
		return
	}
	slot := (*unsafe.Pointer)(slotAddr)
	if id == nullID {
		*slot = nil
		return
	}
	if existing, ok := l.byID[id]; ok {
		*slot = existing
		return
	}
	newVal := reflect.New(t.Pointee.ReflectType())
	newAddr := newVal.UnsafePointer()
	l.byID[id] = newAddr
	*slot = newAddr
	l.walk(newAddr, t.Pointee, ctx.Child(ctx.MemberName))
}

func (l *loader) readDynamicArray(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {
	arr := walker.AsDynamicArray(addr, t)
	n := l.readUint32()
	if l.err != nil || n == 0 {
		return
	}
	sliceVal := reflect.MakeSlice(reflect.SliceOf(t.Item.ReflectType()), int(n), int(n))
	dataAddr := sliceVal.Index(0).Addr().UnsafePointer()
	arr.SetDataPtr(dataAddr, int(n))
	arr.SetArrayLen(int(n))

	if t.Item.IsBitwiseSerializable() {
		l.readInto(unsafe.Slice((*byte)(dataAddr), int(n)*int(t.Item.Size)))
		return
	}
	for i := 0; i < int(n); i++ {
		l.walk(unsafe.Add(dataAddr, uintptr(i)*t.Item.Size), t.Item, ctx.Child(indexName(i)))
		if l.err != nil {
			return
		}
	}
}

func (l *loader) readStaticArray(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {
	if t.Item.IsBitwiseSerializable() {
		l.readInto(unsafe.Slice((*byte)(addr), t.Len*int(t.Item.Size)))
		return
	}
	for i := 0; i < t.Len; i++ {
		l.walk(unsafe.Add(addr, uintptr(i)*t.Item.Size), t.Item, ctx.Child(indexName(i)))
		if l.err != nil {
			return
		}
	}
}

func indexName(i int) string {
	return fmt.Sprintf("[%d]", i)
}
