package chunk

import (
	"errors"
	"testing"
	"unsafe"
)

func addrOf(b *[32]byte) unsafe.Pointer { return unsafe.Pointer(&b[0]) }

func TestGraphAddChunkDeduplicates(t *testing.T) {
	g := New()
	var buf [32]byte
	h1 := g.AddChunk(addrOf(&buf), 16, 8, "first")
	h2 := g.AddChunk(addrOf(&buf), 16, 8, "revisit")
	if h1 != h2 {
		t.Errorf("revisiting the same address should return the same handle, got %d and %d", h1, h2)
	}
	if len(g.Chunks()) != 1 {
		t.Errorf("got %d chunks, want 1", len(g.Chunks()))
	}
	if !g.HasChunk(addrOf(&buf)) {
		t.Error("HasChunk should report the added start address")
	}
}

func TestGraphAddChunkClampsAlignment(t *testing.T) {
	g := New()
	var buf [32]byte
	g.AddChunk(addrOf(&buf), 4, 1, "tiny")
	if g.Chunks()[0].Alignment != MinAlignment {
		t.Errorf("alignment: got %d, want %d", g.Chunks()[0].Alignment, MinAlignment)
	}
}

// OffsetOf resolves any address inside a chunk's byte range to the
// right payload offset, not just a chunk's start address.
func TestOffsetOf(t *testing.T) {
	g := New()
	var a, b [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "a")
	g.AddChunk(addrOf(&b), 16, 8, "b")
	g.ResolveOffsets()

	offA, err := g.OffsetOf(addrOf(&a))
	if err != nil {
		t.Fatalf("OffsetOf(a): %v", err)
	}
	if offA != 0 {
		t.Errorf("OffsetOf(a): got %d, want 0", offA)
	}

	mid := unsafe.Pointer(uintptr(addrOf(&a)) + 4)
	offMid, err := g.OffsetOf(mid)
	if err != nil {
		t.Fatalf("OffsetOf(mid): %v", err)
	}
	if offMid != 4 {
		t.Errorf("OffsetOf(mid): got %d, want 4", offMid)
	}

	offB, err := g.OffsetOf(addrOf(&b))
	if err != nil {
		t.Fatalf("OffsetOf(b): %v", err)
	}
	if offB != 16 {
		t.Errorf("OffsetOf(b): got %d, want 16", offB)
	}
}

func TestOffsetOfUnknownAddress(t *testing.T) {
	g := New()
	var a, stray [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "a")
	g.ResolveOffsets()

	if _, err := g.OffsetOf(addrOf(&stray)); !errors.Is(err, ErrBadPointer) {
		t.Fatalf("got %v, want ErrBadPointer", err)
	}
}

// ResolveOffsets assigns every chunk an offset aligned to its own
// alignment, with no overlap, and Validate confirms it.
func TestResolveOffsetsAlignsAndValidates(t *testing.T) {
	g := New()
	var a, b, c [32]byte
	g.AddChunk(addrOf(&a), 3, 8, "a") // forces padding before b
	g.AddChunk(addrOf(&b), 16, 16, "b")
	g.AddChunk(addrOf(&c), 5, 8, "c")
	size := g.ResolveOffsets()

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if size%PayloadAlignment != 0 {
		t.Errorf("payload size %d is not a multiple of %d", size, PayloadAlignment)
	}

	chunks := g.Chunks()
	if chunks[1].Offset%chunks[1].Alignment != 0 {
		t.Errorf("chunk b offset 0x%x not aligned to %d", chunks[1].Offset, chunks[1].Alignment)
	}
}

// Chunk 0 (first chunk added, always the root body) is always at offset 0.
func TestFirstChunkIsOffsetZero(t *testing.T) {
	g := New()
	var a, b [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "root")
	g.AddChunk(addrOf(&b), 16, 8, "child")
	g.ResolveOffsets()

	if g.Chunks()[0].Offset != 0 {
		t.Errorf("first chunk offset: got 0x%x, want 0", g.Chunks()[0].Offset)
	}
}

func TestPointerFixesResolveOffsets(t *testing.T) {
	g := New()
	var a, b [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "a")
	g.AddChunk(addrOf(&b), 16, 8, "b")
	slot := unsafe.Pointer(uintptr(addrOf(&a)) + 8)
	g.AddPointer(slot, addrOf(&b), "a.ptr")
	g.ResolveOffsets()

	fixes, err := g.PointerFixes()
	if err != nil {
		t.Fatalf("PointerFixes: %v", err)
	}
	if len(fixes) != 1 {
		t.Fatalf("got %d fixes, want 1", len(fixes))
	}
	if fixes[0].SlotOffset != 8 {
		t.Errorf("SlotOffset: got %d, want 8", fixes[0].SlotOffset)
	}
	if fixes[0].TargetOffset != 16 {
		t.Errorf("TargetOffset: got %d, want 16", fixes[0].TargetOffset)
	}
}

func TestPointerFixesBadPointer(t *testing.T) {
	g := New()
	var a, stray [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "a")
	g.AddPointer(addrOf(&a), addrOf(&stray), "a.ptr")
	g.ResolveOffsets()

	if _, err := g.PointerFixes(); !errors.Is(err, ErrBadPointer) {
		t.Fatalf("got %v, want ErrBadPointer", err)
	}
}

func TestValidateDetectsOverlap(t *testing.T) {
	g := New()
	var a [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "a")
	g.ResolveOffsets()
	// Force a second, overlapping chunk directly, since ResolveOffsets
	// itself never produces one — this exercises Validate in isolation.
	g.chunks = append(g.chunks, Chunk{Name: "overlap", Start: addrOf(&a), Length: 16, Alignment: 8, Offset: 8})

	if err := g.Validate(); !errors.Is(err, ErrOverlappingChunks) {
		t.Fatalf("got %v, want ErrOverlappingChunks", err)
	}
}

func TestValidateDetectsMisalignment(t *testing.T) {
	g := New()
	var a [32]byte
	g.AddChunk(addrOf(&a), 16, 8, "a")
	g.chunks[0].Offset = 3

	if err := g.Validate(); !errors.Is(err, ErrMisalignedChunk) {
		t.Fatalf("got %v, want ErrMisalignedChunk", err)
	}
}
