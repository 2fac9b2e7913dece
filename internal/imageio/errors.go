package imageio

import "errors"

// ErrSessionMismatch is returned when a header's session fingerprint
// does not match the current process.
var ErrSessionMismatch = errors.New("memimage: incompatible session")

// ErrObjectOfWrongType is returned when a header's root type id does
// not match the caller's expected type.
var ErrObjectOfWrongType = errors.New("memimage: object is of the wrong type")

// ErrBufferTooSmall is returned when a supplied buffer cannot hold the
// declared payload, or an in-place buffer is shorter than its header
// claims.
var ErrBufferTooSmall = errors.New("memimage: buffer too small")

// ErrInvalidAlignment is returned when a buffer's address cannot
// satisfy the root type's required alignment.
var ErrInvalidAlignment = errors.New("memimage: buffer misaligned for type")

// ErrUnknownType is returned when a TypeFix references a type id absent
// from the loading process's registry.
var ErrUnknownType = errors.New("memimage: unknown type id")
