// Package typemodel provides the runtime type descriptors the image
// serializer core consumes: kind, size, alignment, fields, array
// accessors, and a stable type id. This is the "TypeModel" the
// specification treats as an external subsystem; Go has no built-in
// analogue, so this package builds one on top of reflect.
package typemodel

import (
	"reflect"
)

// Kind classifies a type the way the core's visitor dispatches on it.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindFloat
	KindBool
	KindEnum
	KindFlags
	KindString
	KindClass
	KindPointer
	KindAssetID
	KindClassID
	KindUserData
	KindBlob
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindEnum:
		return "Enum"
	case KindFlags:
		return "Flags"
	case KindString:
		return "String"
	case KindClass:
		return "Class"
	case KindPointer:
		return "Pointer"
	case KindAssetID:
		return "AssetId"
	case KindClassID:
		return "ClassId"
	case KindUserData:
		return "UserData"
	case KindBlob:
		return "Blob"
	case KindArray:
		return "Array"
	default:
		return "Void"
	}
}

// FieldFlags carries per-field serialization behavior.
type FieldFlags uint32

const (
	FieldDefaultFlags FieldFlags = 0
	// FieldNoSerialize excludes a field from the binary image walk.
	// Set via the `memimage:"noserialize"` struct tag.
	FieldNoSerialize FieldFlags = 1 << 0
)

// Field describes one struct field in declaration order.
type Field struct {
	Name   string
	Type   *Type
	Offset uintptr
	Flags  FieldFlags
}

// Type is a runtime descriptor for one Go type participating in the
// image format. Instances are built once by Describe and cached.
type Type struct {
	Kind   Kind
	Size   uintptr
	Align  uintptr
	TypeID uint32
	Name   string

	// Class
	Fields []Field

	// Array
	Item      *Type
	IsDynamic bool
	Len       int // element count, static arrays only

	// Pointer
	Pointee *Type

	reflectType reflect.Type
}

// ReflectType returns the reflect.Type this descriptor was built from.
func (t *Type) ReflectType() reflect.Type { return t.reflectType }

// IsBitwiseSerializable reports whether elements of this type can be
// copied as raw bytes without per-element field-level recursion
// (primitives, enums, flags).
func (t *Type) IsBitwiseSerializable() bool {
	switch t.Kind {
	case KindInteger, KindFloat, KindBool, KindEnum, KindFlags:
		return true
	default:
		return false
	}
}
