package chunk

import "errors"

// ErrBadPointer is returned when an address recorded as a pointer
// source/target, or a chunk/asset slot address, does not lie inside
// any chunk the graph has collected — a dangling reference in the
// object graph being saved.
var ErrBadPointer = errors.New("memimage: dangling reference: address outside every chunk")

// ErrOverlappingChunks is returned by Validate when two resolved
// chunks overlap.
var ErrOverlappingChunks = errors.New("memimage: overlapping chunks")

// ErrMisalignedChunk is returned by Validate when a resolved chunk's
// offset is not a multiple of its own alignment.
var ErrMisalignedChunk = errors.New("memimage: misaligned chunk offset")
