package memimage

import (
	"io"
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/clumpio"
	"github.com/polaris-sw/memimage/internal/imageio"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// Clump is a heterogeneous container holding typed homogeneous
// sub-lists. Build one with NewClump and AddList, then pass it to
// SaveClump.
type Clump struct {
	lists []clumpio.List
}

// NewClump returns an empty Clump.
func NewClump() *Clump { return &Clump{} }

// AddList appends a named, homogeneous sub-list of items to c. items is
// copied into an owned backing array the Clump keeps alive.
func AddList[T any](c *Clump, name string, items []T) {
	et := typemodel.Describe(reflect.TypeOf((*T)(nil)).Elem())
	if len(items) == 0 {
		c.lists = append(c.lists, clumpio.List{Name: name, ElemType: et})
		return
	}
	backing := make([]T, len(items))
	copy(backing, items)
	c.lists = append(c.lists, clumpio.List{
		Name:     name,
		ElemType: et,
		Data:     unsafe.Pointer(&backing[0]),
		Count:    len(items),
	})
}

// SaveClump writes c to w and returns the payload size the caller must
// record out of band to pass to LoadClump; a clump image carries no
// header of its own.
func SaveClump(c *Clump, w io.WriterAt, opts ...SaveOption) (payloadSize uint32, err error) {
	o := defaultSaveOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.logger.Debug("saving clump", "lists", len(c.lists))
	n, err := clumpio.Save(c.lists, imageio.NewWriter(w))
	if err != nil {
		o.logger.Error("save clump failed", "error", err)
		return 0, err
	}
	return n, nil
}

// LoadedList is one list recovered by LoadClump: its element type, a
// pointer to its first element inside the load buffer, and its count.
// A LoadedList also anchors the storage backing any asset ids
// reconstructed into the buffer, so at least one of the returned lists
// must stay reachable for as long as the loaded elements are used —
// the same lifetime rule as the buffer itself.
type LoadedList struct {
	ElemType *typemodel.Type
	Data     unsafe.Pointer
	Count    int

	assetAnchor []byte
}

// LoadClump reads a clump written by SaveClump. elemTypes must describe
// each list's element type, in the same order AddList was called with
// at save time. buf must be at least payloadSize bytes; the fix-up
// tables that follow the payload are read from r, not into buf. buf
// must be kept alive for as long as the returned lists are used.
func LoadClump(r io.ReaderAt, payloadSize uint32, buf []byte, elemTypes []reflect.Type, opts ...LoadOption) ([]LoadedList, error) {
	o := defaultLoadOptions()
	for _, opt := range opts {
		opt(o)
	}

	described := make([]*typemodel.Type, len(elemTypes))
	for i, rt := range elemTypes {
		described[i] = typemodel.Describe(rt)
	}

	o.logger.Debug("loading clump", "lists", len(elemTypes))
	lists, anchor, err := clumpio.Load(imageio.NewReader(r), payloadSize, buf, described, o.registry)
	if err != nil {
		o.logger.Error("load clump failed", "error", err)
		return nil, err
	}

	out := make([]LoadedList, len(lists))
	for i, l := range lists {
		out[i] = LoadedList{ElemType: l.ElemType, Data: l.Data, Count: l.Count, assetAnchor: anchor}
	}
	return out, nil
}
