package memimage

import (
	"reflect"

	"github.com/polaris-sw/memimage/internal/typemodel"
)

// Registry maps stable type ids to descriptors. A loading process must
// populate one (or use the default, process-wide registry) with every
// type it expects to resolve a TypeFix against before calling Load or
// LoadInPlace; the registry is treated as read-only during loads.
type Registry = typemodel.Registry

// GlobalRegistry returns the process-wide registry that Save and Load
// use by default.
func GlobalRegistry() *Registry { return typemodel.GlobalRegistry() }

// RegisterType forces T's descriptor to be built and registered without
// requiring a value of T to appear inside a saved object graph first.
// Useful for a loading process that must recognize a polymorphic
// ClassId it will never itself construct.
func RegisterType[T any]() uint32 {
	var zero T
	return typemodel.Register(reflect.TypeOf(zero))
}
