package memimage

import (
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/typemodel"
)

// storageMode tags whether a DynArray/String's backing bytes are owned
// by the value itself (and must be freed/garbage-collected normally) or
// borrowed from a caller-owned buffer (loaded image payload or mmap
// region), in which case the value must never attempt to free it.
type storageMode uint8

const (
	modeOwned storageMode = iota
	modeBorrowed
)

// DynArray is the serializable dynamic array the image format
// recognizes as Kind Array with IsDynamic=true: a capacity-bearing,
// owning array whose backing store becomes its own chunk when saved.
type DynArray[T any] struct {
	data     *T
	count    uint32
	capacity uint32
	mode     storageMode
}

// NewDynArray builds an owned DynArray holding a copy of items.
func NewDynArray[T any](items ...T) DynArray[T] {
	if len(items) == 0 {
		return DynArray[T]{}
	}
	backing := make([]T, len(items))
	copy(backing, items)
	return DynArray[T]{data: &backing[0], count: uint32(len(items)), capacity: uint32(len(items)), mode: modeOwned}
}

// Len returns the number of live elements.
func (a *DynArray[T]) Len() int { return int(a.count) }

// Cap returns the backing store's capacity in elements.
func (a *DynArray[T]) Cap() int { return int(a.capacity) }

// Slice returns a view over the live elements. The view aliases the
// array's own storage; for a borrowed array that storage is the loaded
// image buffer, so the slice must not outlive it.
func (a *DynArray[T]) Slice() []T {
	if a.data == nil || a.count == 0 {
		return nil
	}
	return unsafe.Slice(a.data, int(a.count))
}

// At returns the element at index i.
func (a *DynArray[T]) At(i int) T { return a.Slice()[i] }

// Borrowed reports whether this array's storage must not be freed.
func (a *DynArray[T]) Borrowed() bool { return a.mode == modeBorrowed }

// ArrayLen implements typemodel.DynamicArray.
func (a *DynArray[T]) ArrayLen() int { return int(a.count) }

// ArrayCap implements typemodel.DynamicArray.
func (a *DynArray[T]) ArrayCap() int { return int(a.capacity) }

// ArrayItemGoType implements typemodel.DynamicArray.
func (a *DynArray[T]) ArrayItemGoType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ArrayDataPtr implements typemodel.DynamicArray.
func (a *DynArray[T]) ArrayDataPtr() unsafe.Pointer { return unsafe.Pointer(a.data) }

// ArrayDataPtrAddr implements typemodel.DynamicArray: the address of
// the data-pointer slot itself, which is what a pointer fix records.
func (a *DynArray[T]) ArrayDataPtrAddr() unsafe.Pointer { return unsafe.Pointer(&a.data) }

// SetArrayLen implements typemodel.DynamicArray.
func (a *DynArray[T]) SetArrayLen(n int) { a.count = uint32(n) }

// SetDataPtr implements typemodel.DynamicArray.
func (a *DynArray[T]) SetDataPtr(p unsafe.Pointer, cap int) {
	a.data = (*T)(p)
	a.capacity = uint32(cap)
}

// SetDontFreeMemory implements typemodel.DynamicArray.
func (a *DynArray[T]) SetDontFreeMemory() { a.mode = modeBorrowed }

// String is the serializable owned/borrowed string the image format
// recognizes as Kind String.
type String struct {
	ptr  *byte
	len  uint32
	mode storageMode
}

// NewString builds an owned String holding a NUL-terminated copy of s.
func NewString(s string) String {
	if s == "" {
		return String{}
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return String{ptr: &buf[0], len: uint32(len(s)), mode: modeOwned}
}

// Get returns the string's content.
func (s *String) Get() string {
	if s.ptr == nil {
		return ""
	}
	return string(unsafe.Slice(s.ptr, int(s.len)))
}

// IsEmpty reports whether the string has zero length.
func (s *String) IsEmpty() bool { return s.len == 0 }

// Borrowed reports whether this string's storage must not be freed.
func (s *String) Borrowed() bool { return s.mode == modeBorrowed }

// StrLen implements typemodel.StringLike.
func (s *String) StrLen() int { return int(s.len) }

// StrBufferAddr implements typemodel.StringLike.
func (s *String) StrBufferAddr() unsafe.Pointer { return unsafe.Pointer(&s.ptr) }

// StrPtr implements typemodel.StringLike.
func (s *String) StrPtr() unsafe.Pointer { return unsafe.Pointer(s.ptr) }

// SetStrBuffer implements typemodel.StringLike.
func (s *String) SetStrBuffer(p unsafe.Pointer, length int, borrowed bool) {
	s.ptr = (*byte)(p)
	s.len = uint32(length)
	if borrowed {
		s.mode = modeBorrowed
	} else {
		s.mode = modeOwned
	}
}

// AssetID is a short owned string identifier naming an external asset.
// Its content is written inline in the AssetFix table, never as a
// chunk.
type AssetID struct {
	id string
}

// NewAssetID wraps id as an AssetID.
func NewAssetID(id string) AssetID { return AssetID{id: id} }

// String returns the asset id's textual form.
func (a *AssetID) String() string { return a.id }

// AssetBytes implements typemodel.AssetIDLike.
func (a *AssetID) AssetBytes() []byte { return []byte(a.id) }

// SetAssetBytes implements typemodel.AssetIDLike.
func (a *AssetID) SetAssetBytes(b []byte) { a.id = string(b) }

// TypeRef is a slot holding a reference to a runtime type descriptor.
// Its Go representation is a single pointer field so that the on-disk
// TypeFix's (slot, typeId) pair can be applied on load with a bare
// pointer write, exactly like a PointerFix — see internal/imageio's
// fix-up application.
type TypeRef struct {
	desc *typemodel.Type
}

// NewTypeRef builds a TypeRef pointing at desc.
func NewTypeRef(desc *typemodel.Type) TypeRef {
	return TypeRef{desc: desc}
}

// ID returns the referenced type's stable id (0 if unset).
func (t *TypeRef) ID() uint32 {
	if t.desc == nil {
		return 0
	}
	return t.desc.TypeID
}

// Resolved reports whether this TypeRef currently points at a descriptor.
func (t *TypeRef) Resolved() bool { return t.desc != nil }

// Descriptor returns the referenced type descriptor, or nil if unresolved.
func (t *TypeRef) Descriptor() *typemodel.Type { return t.desc }

// TypeRefID implements typemodel.TypeIDSlot.
func (t *TypeRef) TypeRefID() uint32 { return t.ID() }

// SetDescriptor implements typemodel.TypeIDSlot.
func (t *TypeRef) SetDescriptor(desc *typemodel.Type) { t.desc = desc }
