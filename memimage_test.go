package memimage

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/polaris-sw/memimage/internal/header"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// bytesWriterAt implements io.WriterAt for testing, growing its backing
// buffer as needed.
type bytesWriterAt struct {
	buf []byte
}

func newBytesWriterAt(size int) *bytesWriterAt {
	return &bytesWriterAt{buf: make([]byte, size)}
}

func (b *bytesWriterAt) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if int(off)+len(p) > len(b.buf) {
		newBuf := make([]byte, int(off)+len(p))
		copy(newBuf, b.buf)
		b.buf = newBuf
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

func (b *bytesWriterAt) Bytes() []byte { return b.buf }

func (b *bytesWriterAt) ReaderAt() io.ReaderAt { return bytesReaderAt(b.buf) }

// bytesReaderAt implements io.ReaderAt over a plain byte slice.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n = copy(p, b[off:])
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}

// A flat struct with no pointers round-trips field-for-field.
type FlatStruct struct {
	A int32
	B float64
	C bool
}

func TestSaveLoadFlatStruct(t *testing.T) {
	root := &FlatStruct{A: -7, B: 3.5, C: true}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, buf, err := Load[FlatStruct](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf == nil {
		t.Fatal("Load returned a nil buffer")
	}
	if *loaded != *root {
		t.Errorf("got %+v, want %+v", *loaded, *root)
	}
}

// A dynamic array of primitives round-trips its contents and length.
type ArrayHolder struct {
	XS DynArray[uint32]
}

func TestSaveLoadDynArray(t *testing.T) {
	root := &ArrayHolder{XS: NewDynArray[uint32](10, 20, 30)}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[ArrayHolder](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.XS.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", loaded.XS.Len())
	}
	got := loaded.XS.Slice()
	want := []uint32{10, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if !loaded.XS.Borrowed() {
		t.Error("loaded array should be flagged as externally allocated")
	}
}

func TestSaveLoadDynArrayEmpty(t *testing.T) {
	root := &ArrayHolder{XS: NewDynArray[uint32]()}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[ArrayHolder](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.XS.Len() != 0 {
		t.Errorf("Len: got %d, want 0", loaded.XS.Len())
	}
}

// A string round-trips its bytes.
type StringHolder struct {
	S String
}

func TestSaveLoadString(t *testing.T) {
	root := &StringHolder{S: NewString("hello, memimage")}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[StringHolder](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.S.Get(); got != "hello, memimage" {
		t.Errorf("Get: got %q, want %q", got, "hello, memimage")
	}
	if !loaded.S.Borrowed() {
		t.Error("loaded string should be flagged as externally allocated")
	}
}

func TestSaveLoadStringEmpty(t *testing.T) {
	root := &StringHolder{S: NewString("")}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[StringHolder](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.S.Get(); got != "" {
		t.Errorf("Get: got %q, want empty", got)
	}
	if !loaded.S.IsEmpty() {
		t.Error("IsEmpty should report true")
	}
}

// Two pointers aliasing the same embedded object resolve to the
// same loaded address, not two independent copies.
type AliasNode struct {
	Value int32
}

type AliasRoot struct {
	Node AliasNode
	P    *AliasNode
	Q    *AliasNode
}

func TestSaveLoadAliasing(t *testing.T) {
	root := &AliasRoot{Node: AliasNode{Value: 42}}
	root.P = &root.Node
	root.Q = &root.Node

	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[AliasRoot](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.P.Value != 42 || loaded.Q.Value != 42 {
		t.Fatalf("P.Value=%d Q.Value=%d, want both 42", loaded.P.Value, loaded.Q.Value)
	}
	if loaded.P != loaded.Q {
		t.Errorf("P and Q should alias the same address, got %p and %p", loaded.P, loaded.Q)
	}
	if loaded.P != &loaded.Node {
		t.Errorf("P should point at the embedded Node, got %p want %p", loaded.P, &loaded.Node)
	}
}

func TestSaveLoadNilPointer(t *testing.T) {
	root := &AliasRoot{Node: AliasNode{Value: 1}}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[AliasRoot](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.P != nil || loaded.Q != nil {
		t.Errorf("P and Q should be nil, got %p and %p", loaded.P, loaded.Q)
	}
}

// An asset id travels through the inline fix-up table rather than a
// chunk, on both load paths, and an empty asset id stays empty.
type AssetHolder struct {
	Primary  AssetID
	Fallback AssetID
}

func TestSaveLoadAssetID(t *testing.T) {
	id := uuid.NewString()
	root := &AssetHolder{Primary: NewAssetID(id)}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[AssetHolder](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Primary.String(); got != id {
		t.Errorf("Primary: got %q, want %q", got, id)
	}
	if got := loaded.Fallback.String(); got != "" {
		t.Errorf("Fallback: got %q, want empty", got)
	}

	buf := append([]byte(nil), w.Bytes()...)
	inPlace, err := LoadInPlace[AssetHolder](buf)
	if err != nil {
		t.Fatalf("LoadInPlace: %v", err)
	}
	if got := inPlace.Primary.String(); got != id {
		t.Errorf("in-place Primary: got %q, want %q", got, id)
	}
	if got := inPlace.Fallback.String(); got != "" {
		t.Errorf("in-place Fallback: got %q, want empty", got)
	}
}

// A type-id slot resolves against the registry, and reports
// UnknownType when the loading registry doesn't have it.
type ReferencedThing struct {
	X int32
}

type TypeHolder struct {
	T TypeRef
}

func TestSaveLoadTypeRef(t *testing.T) {
	desc := typemodel.Describe(reflect.TypeOf(ReferencedThing{}))
	root := &TypeHolder{T: NewTypeRef(desc)}

	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _, err := Load[TypeHolder](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.T.Resolved() {
		t.Fatal("loaded TypeRef should be resolved")
	}
	if loaded.T.ID() != desc.TypeID {
		t.Errorf("ID: got %d, want %d", loaded.T.ID(), desc.TypeID)
	}
}

func TestSaveLoadTypeRefUnknownType(t *testing.T) {
	desc := typemodel.Describe(reflect.TypeOf(ReferencedThing{}))
	root := &TypeHolder{T: NewTypeRef(desc)}

	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var empty typemodel.Registry
	_, _, err := Load[TypeHolder](w.ReaderAt(), WithRegistry(&empty))
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("got %v, want ErrUnknownType", err)
	}
}

// LoadInPlace against the saved bytes reconstructs the same values
// as the copy-loading Load.
func TestLoadInPlaceMatchesLoad(t *testing.T) {
	root := &AliasRoot{Node: AliasNode{Value: 99}}
	root.P = &root.Node

	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	copyLoaded, _, err := Load[AliasRoot](w.ReaderAt())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	buf := make([]byte, len(w.Bytes()))
	copy(buf, w.Bytes())
	inPlace, err := LoadInPlace[AliasRoot](buf)
	if err != nil {
		t.Fatalf("LoadInPlace: %v", err)
	}

	if inPlace.Node.Value != copyLoaded.Node.Value {
		t.Errorf("Node.Value: got %d, want %d", inPlace.Node.Value, copyLoaded.Node.Value)
	}
	if inPlace.P.Value != 99 {
		t.Errorf("P.Value: got %d, want 99", inPlace.P.Value)
	}
	if inPlace.P != &inPlace.Node {
		t.Error("in-place P should alias the in-place Node")
	}
}

// Saving the same value twice produces byte-identical images (the
// header's session fingerprint and every offset are deterministic given
// the same layout and build).
func TestSaveIsIdempotent(t *testing.T) {
	root := &FlatStruct{A: 1, B: 2, C: false}

	w1 := newBytesWriterAt(0)
	if err := Save(root, w1); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	w2 := newBytesWriterAt(0)
	if err := Save(root, w2); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	if !reflect.DeepEqual(w1.Bytes(), w2.Bytes()) {
		t.Error("two saves of the same value produced different bytes")
	}
}

// A header with a foreign session fingerprint is rejected, and
// the destination is never touched.
func TestLoadSessionMismatch(t *testing.T) {
	root := &FlatStruct{A: 1, B: 2, C: true}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	corrupt := append([]byte(nil), w.Bytes()...)
	hdr, err := header.Decode(corrupt[:header.Size])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	hdr.Session ^= 0xdeadbeefcafebabe
	encoded := header.Encode(hdr)
	copy(corrupt[:header.Size], encoded[:])

	_, _, err = Load[FlatStruct](bytesReaderAt(corrupt))
	if !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("copy-load: got %v, want ErrSessionMismatch", err)
	}

	before := append([]byte(nil), corrupt...)
	if _, err := LoadInPlace[FlatStruct](corrupt); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("in-place load: got %v, want ErrSessionMismatch", err)
	}
	if !reflect.DeepEqual(before, corrupt) {
		t.Error("LoadInPlace mutated its buffer despite rejecting the session")
	}
}

// Loading with the wrong root type is rejected.
func TestLoadWrongType(t *testing.T) {
	root := &FlatStruct{A: 1, B: 2, C: true}
	w := newBytesWriterAt(0)
	if err := Save(root, w); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, _, err := Load[StringHolder](w.ReaderAt())
	if !errors.Is(err, ErrObjectOfWrongType) {
		t.Fatalf("got %v, want ErrObjectOfWrongType", err)
	}
}

func TestSaveRejectsNonPointer(t *testing.T) {
	w := newBytesWriterAt(0)
	if err := Save(FlatStruct{}, w); err == nil {
		t.Error("Save should reject a non-pointer root")
	}
}
