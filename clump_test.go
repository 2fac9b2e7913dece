package memimage

import (
	"reflect"
	"testing"
	"unsafe"
)

type clumpElem struct {
	ID    int32
	Label String
}

func TestSaveLoadClump(t *testing.T) {
	c := NewClump()
	AddList(c, "nums", []int32{10, 20, 30})
	AddList(c, "things", []clumpElem{
		{ID: 1, Label: NewString("first")},
		{ID: 2, Label: NewString("second")},
	})

	w := newBytesWriterAt(0)
	payloadSize, err := SaveClump(c, w)
	if err != nil {
		t.Fatalf("SaveClump: %v", err)
	}

	buf := make([]byte, payloadSize)
	elemTypes := []reflect.Type{
		reflect.TypeOf(int32(0)),
		reflect.TypeOf(clumpElem{}),
	}
	lists, err := LoadClump(w.ReaderAt(), payloadSize, buf, elemTypes)
	if err != nil {
		t.Fatalf("LoadClump: %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("got %d lists, want 2", len(lists))
	}

	nums := unsafe.Slice((*int32)(lists[0].Data), lists[0].Count)
	if lists[0].Count != 3 || nums[0] != 10 || nums[1] != 20 || nums[2] != 30 {
		t.Errorf("nums list: got %v", nums)
	}

	things := unsafe.Slice((*clumpElem)(lists[1].Data), lists[1].Count)
	if lists[1].Count != 2 {
		t.Fatalf("things list: got %d elements, want 2", lists[1].Count)
	}
	if things[0].ID != 1 || things[0].Label.Get() != "first" {
		t.Errorf("things[0]: got %+v, %q", things[0].ID, things[0].Label.Get())
	}
	if things[1].ID != 2 || things[1].Label.Get() != "second" {
		t.Errorf("things[1]: got %+v, %q", things[1].ID, things[1].Label.Get())
	}
}

// Asset ids inside clump elements travel through the inline fix-up
// table; the returned lists keep their reconstructed backing alive.
type clumpAssetElem struct {
	Ref AssetID
}

func TestSaveLoadClumpAssetIDs(t *testing.T) {
	c := NewClump()
	AddList(c, "refs", []clumpAssetElem{
		{Ref: NewAssetID("textures/stone")},
		{Ref: NewAssetID("textures/moss")},
	})

	w := newBytesWriterAt(0)
	payloadSize, err := SaveClump(c, w)
	if err != nil {
		t.Fatalf("SaveClump: %v", err)
	}

	buf := make([]byte, payloadSize)
	lists, err := LoadClump(w.ReaderAt(), payloadSize, buf, []reflect.Type{reflect.TypeOf(clumpAssetElem{})})
	if err != nil {
		t.Fatalf("LoadClump: %v", err)
	}
	refs := unsafe.Slice((*clumpAssetElem)(lists[0].Data), lists[0].Count)
	if len(refs) != 2 {
		t.Fatalf("got %d elements, want 2", len(refs))
	}
	if refs[0].Ref.String() != "textures/stone" || refs[1].Ref.String() != "textures/moss" {
		t.Errorf("got %q, %q", refs[0].Ref.String(), refs[1].Ref.String())
	}
}

func TestSaveLoadClumpWrongElemType(t *testing.T) {
	c := NewClump()
	AddList(c, "nums", []int32{1, 2})

	w := newBytesWriterAt(0)
	payloadSize, err := SaveClump(c, w)
	if err != nil {
		t.Fatalf("SaveClump: %v", err)
	}

	buf := make([]byte, payloadSize)
	_, err = LoadClump(w.ReaderAt(), payloadSize, buf, []reflect.Type{reflect.TypeOf(float64(0))})
	if err == nil {
		t.Error("LoadClump should reject a mismatched element type")
	}
}
