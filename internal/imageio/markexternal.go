package imageio

import (
	"unsafe"

	"github.com/polaris-sw/memimage/internal/typemodel"
	"github.com/polaris-sw/memimage/internal/walker"
)

// MarkExternal walks the loaded object at (base, t) and flags every
// String/DynamicArray it finds as externally allocated, so that none of
// them ever attempts to free storage that actually belongs to the
// loaded buffer. It runs once, after fix-ups, and is the one
// structural re-walk the load paths perform — the fix-up tables
// themselves are applied without any traversal.
func MarkExternal(base unsafe.Pointer, t *typemodel.Type) {
	m := &externalMarker{visited: make(map[unsafe.Pointer]bool)}
	walker.Walk(base, t, m, walker.Context{MemberName: "root"})
}

type externalMarker struct {
	visited map[unsafe.Pointer]bool
}

func (m *externalMarker) VisitPOD(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) {}

func (m *externalMarker) VisitString(s typemodel.StringLike, ctx walker.Context) {
	s.SetStrBuffer(s.StrPtr(), s.StrLen(), true)
}

func (m *externalMarker) VisitAssetID(a typemodel.AssetIDLike, ctx walker.Context) {}

func (m *externalMarker) VisitTypeID(tr typemodel.TypeIDSlot, ctx walker.Context) {}

func (m *externalMarker) VisitPointer(slotAddr, target unsafe.Pointer, pointee *typemodel.Type, ctx walker.Context) bool {
	if target == nil || m.visited[target] {
		return false
	}
	m.visited[target] = true
	return true
}

func (m *externalMarker) VisitArray(arr typemodel.DynamicArray, addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	arr.SetDontFreeMemory()
	if data := arr.ArrayDataPtr(); data != nil {
		if m.visited[data] {
			return false
		}
		m.visited[data] = true
	}
	return true
}

func (m *externalMarker) VisitStaticArray(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	return true
}

func (m *externalMarker) VisitClass(addr unsafe.Pointer, t *typemodel.Type, ctx walker.Context) bool {
	return true
}
