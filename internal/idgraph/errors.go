package idgraph

import "errors"

// ErrWrongType is returned when a stream's root type id does not match
// the caller's expected type.
var ErrWrongType = errors.New("memimage/idgraph: object is of the wrong type")

// ErrUnknownType is returned when a ClassId slot references a type id
// absent from the loading process's registry.
var ErrUnknownType = errors.New("memimage/idgraph: unknown type id")
