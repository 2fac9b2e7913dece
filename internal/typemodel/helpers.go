package typemodel

import "reflect"

// FlagsType is implemented by named bitmask types that should be
// classified as Kind Flags rather than plain Kind Integer.
type FlagsType interface {
	IsFlagsType()
}

var (
	flagsMarkerType = reflectTypeOf((*FlagsType)(nil))
	stringerType    = reflect.TypeOf((*interface{ String() string })(nil)).Elem()
)

func reflectTypeOf(ifacePtr interface{}) reflect.Type {
	return reflect.TypeOf(ifacePtr).Elem()
}
