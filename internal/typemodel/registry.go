package typemodel

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Registry maps stable 32-bit type ids to descriptors. One
// process-wide registry (globalRegistry) backs Describe; embedders can
// also build their own for a loading process with a different set of
// registered types. A registry must be populated before any load call
// and is treated as read-only during loads.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint32]*Type
	idByRT map[reflect.Type]uint32
}

func newRegistry() *Registry {
	return &Registry{
		byID:   map[uint32]*Type{},
		idByRT: map[reflect.Type]uint32{},
	}
}

var globalRegistry = newRegistry()

// GlobalRegistry returns the process-wide registry Describe populates.
func GlobalRegistry() *Registry { return globalRegistry }

// idFor derives a stable type id from a type's fully-qualified name.
// Collisions are possible in principle (32-bit hash of an unbounded
// name space) but are not defended against.
func (r *Registry) idFor(rt reflect.Type) uint32 {
	r.mu.RLock()
	if id, ok := r.idByRT[rt]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	name := fmt.Sprintf("%s.%s", rt.PkgPath(), rt.Name())
	if rt.Name() == "" {
		name = rt.String()
	}
	sum := xxhash.Sum64String(name)
	id := uint32(sum) ^ uint32(sum>>32)
	if id == 0 {
		id = 1 // 0 is reserved to mean "no type" (null TypeRef)
	}
	return id
}

func (r *Registry) register(rt reflect.Type, t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idByRT[rt] = t.TypeID
	r.byID[t.TypeID] = t
}

// Lookup resolves a stable type id to its descriptor, or reports
// found=false if the id has never been registered in this process.
func (r *Registry) Lookup(id uint32) (t *Type, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, found = r.byID[id]
	return t, found
}

// Register forces rt's descriptor to be built and registered, without
// requiring it to appear inside an object graph first. Useful for a
// loading process that must recognize a ClassId it will never itself
// construct directly.
func Register(rt reflect.Type) uint32 {
	t := Describe(rt)
	return t.TypeID
}
