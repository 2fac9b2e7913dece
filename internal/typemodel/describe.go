package typemodel

import (
	"reflect"
	"sync"
)

// TagKey is the struct tag Describe inspects for serialization flags.
const TagKey = "memimage"

var (
	mu    sync.Mutex
	cache = map[reflect.Type]*Type{}
)

// Describe builds (or returns the cached) descriptor for rt, recursing
// through fields, array elements, and pointees so that one call yields
// the full descriptor graph a walk needs.
func Describe(rt reflect.Type) *Type {
	mu.Lock()
	defer mu.Unlock()
	return describeLocked(rt)
}

func describeLocked(rt reflect.Type) *Type {
	if t, ok := cache[rt]; ok {
		return t
	}

	t := &Type{
		reflectType: rt,
		Name:        rt.String(),
		Size:        rt.Size(),
		Align:       uintptr(rt.Align()),
	}
	// Insert before recursing so self-referential (pointer-to-self)
	// struct graphs terminate instead of looping forever.
	cache[rt] = t

	ptrRT := reflect.PointerTo(rt)
	switch {
	case ptrRT.Implements(typeIDSlotType):
		t.Kind = KindClassID

	case ptrRT.Implements(assetIDLikeType):
		t.Kind = KindAssetID

	case ptrRT.Implements(stringLikeType):
		t.Kind = KindString

	case ptrRT.Implements(dynamicArrayType):
		t.Kind = KindArray
		t.IsDynamic = true
		zero := reflect.New(ptrRT.Elem()).Interface().(DynamicArray)
		t.Item = describeLocked(zero.ArrayItemGoType())

	case rt.Kind() == reflect.Pointer:
		t.Kind = KindPointer
		t.Pointee = describeLocked(rt.Elem())

	case rt.Kind() == reflect.Array:
		t.Kind = KindArray
		t.IsDynamic = false
		t.Len = rt.Len()
		t.Item = describeLocked(rt.Elem())

	case rt.Kind() == reflect.Struct:
		t.Kind = KindClass
		t.Fields = describeFields(rt)

	case rt.Kind() == reflect.Bool:
		t.Kind = KindBool

	case rt.Kind() == reflect.Float32, rt.Kind() == reflect.Float64:
		t.Kind = KindFloat

	case isIntegerKind(rt.Kind()):
		t.Kind = classifyInteger(rt)

	default:
		t.Kind = KindUserData
	}

	t.TypeID = globalRegistry.idFor(rt)
	globalRegistry.register(rt, t)

	return t
}

func describeFields(rt reflect.Type) []Field {
	fields := make([]Field, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue // unexported, not reflectable
		}
		flags := FieldDefaultFlags
		if tag, ok := sf.Tag.Lookup(TagKey); ok && hasOption(tag, "noserialize") {
			flags |= FieldNoSerialize
		}
		fields = append(fields, Field{
			Name:   sf.Name,
			Type:   describeLocked(sf.Type),
			Offset: sf.Offset,
			Flags:  flags,
		})
	}
	return fields
}

func hasOption(tag, opt string) bool {
	for _, part := range splitComma(tag) {
		if part == opt {
			return true
		}
	}
	return false
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func classifyInteger(rt reflect.Type) Kind {
	if rt.Implements(flagsMarkerType) {
		return KindFlags
	}
	if rt.PkgPath() != "" && rt.Implements(stringerType) {
		return KindEnum
	}
	return KindInteger
}
