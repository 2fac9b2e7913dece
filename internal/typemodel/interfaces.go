package typemodel

import (
	"reflect"
	"unsafe"
)

// DynamicArray is implemented by pointer-receiver methods of any type
// that wants Describe to classify it as a dynamic Array: length and
// capacity accessors, the data pointer and — critically for pointer
// fix-ups — the address of the data-pointer slot itself, plus the
// mutators the load paths need.
type DynamicArray interface {
	ArrayLen() int
	ArrayCap() int
	ArrayItemGoType() reflect.Type
	ArrayDataPtr() unsafe.Pointer
	ArrayDataPtrAddr() unsafe.Pointer
	SetArrayLen(n int)
	SetDataPtr(p unsafe.Pointer, cap int)
	SetDontFreeMemory()
}

// StringLike is implemented by any type Describe should classify as
// Kind String.
type StringLike interface {
	StrLen() int
	StrBufferAddr() unsafe.Pointer // address of the pointer-to-buffer slot
	StrPtr() unsafe.Pointer        // current buffer pointer (nil if empty)
	SetStrBuffer(p unsafe.Pointer, length int, borrowed bool)
}

// AssetIDLike is implemented by any type Describe should classify as
// Kind AssetId.
type AssetIDLike interface {
	AssetBytes() []byte
	SetAssetBytes(b []byte)
}

// TypeIDSlot is implemented by any type Describe should classify as
// Kind ClassId (a slot holding a reference to a runtime type
// descriptor). Unlike the other accessor interfaces, a TypeIDSlot's
// underlying Go representation must be exactly one pointer-sized
// field, so that the fix-up table's (slot, typeId) pair resolves with
// a bare pointer write at load.
type TypeIDSlot interface {
	TypeRefID() uint32
	SetDescriptor(desc *Type)
}

var (
	dynamicArrayType = reflectTypeOf((*DynamicArray)(nil))
	stringLikeType   = reflectTypeOf((*StringLike)(nil))
	assetIDLikeType  = reflectTypeOf((*AssetIDLike)(nil))
	typeIDSlotType   = reflectTypeOf((*TypeIDSlot)(nil))
)
