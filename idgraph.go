package memimage

import (
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/idgraph"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// SaveIDGraph writes root using the secondary id-graph format:
// pointers are replaced with small integer ids instead of file
// offsets, so LoadIDGraph can reconstruct the graph into freshly
// allocated objects rather than one pre-sized buffer. Prefer Save/Load
// for new code; this exists for embedders whose load site cannot
// accept image layout.
func SaveIDGraph(root any, w io.Writer, opts ...SaveOption) error {
	o := defaultSaveOptions()
	for _, opt := range opts {
		opt(o)
	}

	rv := reflect.ValueOf(root)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("memimage: SaveIDGraph requires a non-nil pointer, got %T", root)
	}
	t := typemodel.Describe(rv.Type().Elem())
	addr := unsafe.Pointer(rv.Pointer())

	o.logger.Debug("saving id-graph", "type", t.Name, "type_id", t.TypeID)
	if err := idgraph.Save(w, addr, t); err != nil {
		o.logger.Error("id-graph save failed", "type", t.Name, "error", err)
		return err
	}
	return nil
}

// LoadIDGraph reads a stream written by SaveIDGraph into a freshly
// allocated *T, allocating storage for every pointee as it is reached.
func LoadIDGraph[T any](r io.Reader, opts ...LoadOption) (*T, error) {
	o := defaultLoadOptions()
	for _, opt := range opts {
		opt(o)
	}

	root := new(T)
	t := typemodel.Describe(reflect.TypeOf(*root))
	addr := unsafe.Pointer(root)

	o.logger.Debug("loading id-graph", "type", t.Name, "type_id", t.TypeID)
	if err := idgraph.Load(r, addr, t, o.registry); err != nil {
		o.logger.Error("id-graph load failed", "type", t.Name, "error", err)
		return nil, err
	}
	return root, nil
}
