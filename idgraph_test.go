package memimage

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

type idGraphNode struct {
	Value int32
	Next  *idGraphNode
	Asset AssetID
}

func TestSaveLoadIDGraphChain(t *testing.T) {
	assetID := uuid.NewString()
	tail := &idGraphNode{Value: 2, Asset: NewAssetID(assetID)}
	root := &idGraphNode{Value: 1, Next: tail}

	var buf bytes.Buffer
	if err := SaveIDGraph(root, &buf); err != nil {
		t.Fatalf("SaveIDGraph: %v", err)
	}

	loaded, err := LoadIDGraph[idGraphNode](&buf)
	if err != nil {
		t.Fatalf("LoadIDGraph: %v", err)
	}
	if loaded.Value != 1 || loaded.Next == nil || loaded.Next.Value != 2 {
		t.Fatalf("got %+v", loaded)
	}
	if loaded.Next.Asset.String() != assetID {
		t.Errorf("asset id: got %q, want %q", loaded.Next.Asset.String(), assetID)
	}
}

// A cyclic graph (node points back at itself) must round-trip without
// the loader recursing forever — the id-graph format's reason to exist
// alongside the chunk-offset format.
func TestSaveLoadIDGraphCycle(t *testing.T) {
	root := &idGraphNode{Value: 7}
	root.Next = root

	var buf bytes.Buffer
	if err := SaveIDGraph(root, &buf); err != nil {
		t.Fatalf("SaveIDGraph: %v", err)
	}

	loaded, err := LoadIDGraph[idGraphNode](&buf)
	if err != nil {
		t.Fatalf("LoadIDGraph: %v", err)
	}
	if loaded.Next != loaded {
		t.Errorf("Next should alias the root itself, got %p vs %p", loaded.Next, loaded)
	}
	if loaded.Value != 7 {
		t.Errorf("Value: got %d, want 7", loaded.Value)
	}
}

// Two fields pointing at the same shared node must load to the same
// address rather than two independent copies.
type idGraphSharedRoot struct {
	Shared idGraphNode
	A      *idGraphNode
	B      *idGraphNode
}

func TestSaveLoadIDGraphSharedPointer(t *testing.T) {
	root := &idGraphSharedRoot{Shared: idGraphNode{Value: 5}}
	root.A = &root.Shared
	root.B = &root.Shared

	var buf bytes.Buffer
	if err := SaveIDGraph(root, &buf); err != nil {
		t.Fatalf("SaveIDGraph: %v", err)
	}

	loaded, err := LoadIDGraph[idGraphSharedRoot](&buf)
	if err != nil {
		t.Fatalf("LoadIDGraph: %v", err)
	}
	if loaded.A != loaded.B {
		t.Errorf("A and B should alias the same address, got %p and %p", loaded.A, loaded.B)
	}
	if loaded.A.Value != 5 {
		t.Errorf("Value: got %d, want 5", loaded.A.Value)
	}
}
