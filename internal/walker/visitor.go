package walker

import (
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/typemodel"
)

// Callbacks is the dispatch table a walk invokes per type.Kind. Each
// traversal concern (gathering chunks, marking loaded storage) supplies
// its own implementation; Walk itself stays a pure traversal skeleton.
type Callbacks interface {
	// VisitPOD handles Integer/Float/Bool/Enum/Flags and any other
	// bitwise-copyable leaf kind (UserData/Blob).
	VisitPOD(addr unsafe.Pointer, t *typemodel.Type, ctx Context)

	// VisitString handles a Kind String field.
	VisitString(s typemodel.StringLike, ctx Context)

	// VisitAssetID handles a Kind AssetId field.
	VisitAssetID(a typemodel.AssetIDLike, ctx Context)

	// VisitTypeID handles a Kind ClassId field (a slot referencing a
	// runtime type descriptor).
	VisitTypeID(tr typemodel.TypeIDSlot, ctx Context)

	// VisitPointer handles a Kind Pointer field. slotAddr is the
	// address of the pointer slot itself; target is its current value
	// (nil if the pointer is null). The return value decides whether
	// the walk recurses into the pointee.
	VisitPointer(slotAddr unsafe.Pointer, target unsafe.Pointer, pointee *typemodel.Type, ctx Context) bool

	// VisitArray handles a dynamic (owning, capacity-bearing) array.
	// The return value decides whether the walk iterates elements.
	VisitArray(arr typemodel.DynamicArray, addr unsafe.Pointer, t *typemodel.Type, ctx Context) bool

	// VisitStaticArray handles an in-place (embedded, fixed-size)
	// array, which contributes no new chunk. The return value decides
	// whether the walk iterates elements.
	VisitStaticArray(addr unsafe.Pointer, t *typemodel.Type, ctx Context) bool

	// VisitClass handles a struct. The return value decides whether
	// the walk iterates fields; returning false skips the subtree.
	VisitClass(addr unsafe.Pointer, t *typemodel.Type, ctx Context) bool
}

// Walk dispatches on t.Kind and recurses as needed. addr must point at
// a live value of the Go type t was built from (typemodel.Describe(rt)).
func Walk(addr unsafe.Pointer, t *typemodel.Type, cb Callbacks, ctx Context) {
	switch t.Kind {
	case typemodel.KindInteger, typemodel.KindFloat, typemodel.KindBool,
		typemodel.KindEnum, typemodel.KindFlags, typemodel.KindUserData, typemodel.KindBlob:
		cb.VisitPOD(addr, t, ctx)

	case typemodel.KindString:
		cb.VisitString(asStringLike(addr, t), ctx)

	case typemodel.KindAssetID:
		cb.VisitAssetID(asAssetIDLike(addr, t), ctx)

	case typemodel.KindClassID:
		cb.VisitTypeID(asTypeIDSlot(addr, t), ctx)

	case typemodel.KindPointer:
		target := *(*unsafe.Pointer)(addr)
		recurse := cb.VisitPointer(addr, target, t.Pointee, ctx)
		if recurse && target != nil {
			Walk(target, t.Pointee, cb, ctx.Child(ctx.MemberName))
		}

	case typemodel.KindArray:
		walkArray(addr, t, cb, ctx)

	case typemodel.KindClass:
		if cb.VisitClass(addr, t, ctx) {
			for _, f := range t.Fields {
				if f.Flags&typemodel.FieldNoSerialize != 0 {
					continue
				}
				fieldAddr := unsafe.Add(addr, f.Offset)
				Walk(fieldAddr, f.Type, cb, ctx.Child(f.Name))
			}
		}

	default:
		cb.VisitPOD(addr, t, ctx)
	}
}

func walkArray(addr unsafe.Pointer, t *typemodel.Type, cb Callbacks, ctx Context) {
	if t.IsDynamic {
		arr := asDynamicArray(addr, t)
		if !cb.VisitArray(arr, addr, t, ctx) {
			return
		}
		n := arr.ArrayLen()
		data := arr.ArrayDataPtr()
		if data == nil || n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			elemAddr := unsafe.Add(data, uintptr(i)*t.Item.Size)
			Walk(elemAddr, t.Item, cb, ctx.Child(indexName(ctx.MemberName, i)))
		}
		return
	}

	if !cb.VisitStaticArray(addr, t, ctx) {
		return
	}
	for i := 0; i < t.Len; i++ {
		elemAddr := unsafe.Add(addr, uintptr(i)*t.Item.Size)
		Walk(elemAddr, t.Item, cb, ctx.Child(indexName(ctx.MemberName, i)))
	}
}

func indexName(member string, i int) string {
	return member + "[" + itoa(i) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// AsDynamicArray, AsStringLike, AsAssetIDLike, and AsTypeIDSlot expose
// the accessor views Walk uses internally, for callers that must
// recurse by hand instead of through Walk — internal/idgraph's load
// path, which allocates pointee storage on the fly and so cannot rely
// on Walk's read-only pointer dereference.
func AsDynamicArray(addr unsafe.Pointer, t *typemodel.Type) typemodel.DynamicArray {
	return asDynamicArray(addr, t)
}

// AsStringLike is the exported form of asStringLike; see AsDynamicArray.
func AsStringLike(addr unsafe.Pointer, t *typemodel.Type) typemodel.StringLike {
	return asStringLike(addr, t)
}

// AsAssetIDLike is the exported form of asAssetIDLike; see AsDynamicArray.
func AsAssetIDLike(addr unsafe.Pointer, t *typemodel.Type) typemodel.AssetIDLike {
	return asAssetIDLike(addr, t)
}

// AsTypeIDSlot is the exported form of asTypeIDSlot; see AsDynamicArray.
func AsTypeIDSlot(addr unsafe.Pointer, t *typemodel.Type) typemodel.TypeIDSlot {
	return asTypeIDSlot(addr, t)
}

func asDynamicArray(addr unsafe.Pointer, t *typemodel.Type) typemodel.DynamicArray {
	return reflect.NewAt(t.ReflectType(), addr).Interface().(typemodel.DynamicArray)
}

func asStringLike(addr unsafe.Pointer, t *typemodel.Type) typemodel.StringLike {
	return reflect.NewAt(t.ReflectType(), addr).Interface().(typemodel.StringLike)
}

func asAssetIDLike(addr unsafe.Pointer, t *typemodel.Type) typemodel.AssetIDLike {
	return reflect.NewAt(t.ReflectType(), addr).Interface().(typemodel.AssetIDLike)
}

func asTypeIDSlot(addr unsafe.Pointer, t *typemodel.Type) typemodel.TypeIDSlot {
	return reflect.NewAt(t.ReflectType(), addr).Interface().(typemodel.TypeIDSlot)
}
