package imageio

import (
	"fmt"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// ApplyFixups relocates a loaded payload starting at base: every
// recorded pointer slot is rewritten to base+target, every type-id slot
// is resolved against registry, and every asset id is reconstructed
// from its inline bytes. This is the whole of what a load has to do to
// the payload; no traversal of the object graph is involved.
func ApplyFixups(base unsafe.Pointer, pointerFixes []chunk.PointerFix, typeFixes []chunk.TypeFix, assetFixes []chunk.AssetFix, registry *typemodel.Registry) error {
	for _, p := range pointerFixes {
		slot := (*unsafe.Pointer)(unsafe.Add(base, p.SlotOffset))
		*slot = unsafe.Add(base, p.TargetOffset)
	}

	for _, t := range typeFixes {
		desc, ok := registry.Lookup(t.TypeID)
		if !ok {
			return fmt.Errorf("%w: id %d", ErrUnknownType, t.TypeID)
		}
		slot := (**typemodel.Type)(unsafe.Add(base, t.SlotOffset))
		*slot = desc
	}

	for _, a := range assetFixes {
		// AssetID's sole field is a string; its slot is therefore
		// layout-identical to a bare string header, so a direct
		// store reconstructs it without reflection. a.Bytes must
		// already alias memory the caller keeps alive at least as
		// long as base is in use (the loaded buffer itself) — a
		// fresh, locally-owned copy here would leave the resulting
		// string's backing array reachable only through this
		// unscanned raw pointer write, making it eligible for GC as
		// soon as this function returns.
		slot := (*string)(unsafe.Add(base, a.SlotOffset))
		if len(a.Bytes) == 0 {
			*slot = ""
			continue
		}
		*slot = unsafe.String(&a.Bytes[0], len(a.Bytes))
	}

	return nil
}
