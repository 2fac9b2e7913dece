package chunk

// PointerFix records an internal pointer that must be relocated on
// load: the byte offset of the pointer slot itself, and the byte offset
// of whatever it currently points at. Both offsets are relative to the
// start of the payload; chunk 0's offset is always zero.
type PointerFix struct {
	SlotOffset   uint32
	TargetOffset uint32
}

// TypeFix records a slot holding a reference to a runtime type
// descriptor: the slot's byte offset and the stable type id to resolve
// against the loading process's type registry.
type TypeFix struct {
	SlotOffset uint32
	TypeID     uint32
}

// AssetFix records a slot holding an asset identifier. Bytes is the
// asset id's raw UTF-8 content; the asset table writes it inline in
// the fix-up table rather than as a chunk, preceded by its length and
// padded to AssetAlignment.
type AssetFix struct {
	SlotOffset uint32
	Bytes      []byte
}
