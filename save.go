package memimage

import (
	"fmt"
	"io"
	"reflect"
	"unsafe"

	"github.com/polaris-sw/memimage/internal/imageio"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// Save writes a relocatable image of *root to w: the object's body and
// every owned sub-block become chunks, followed by the pointer, type,
// and asset fix-up tables that make the image self-describing enough to
// relocate at load time. root must be a non-nil pointer to the value
// being serialized, and the value must not be mutated until Save
// returns.
func Save(root any, w io.WriterAt, opts ...SaveOption) error {
	o := defaultSaveOptions()
	for _, opt := range opts {
		opt(o)
	}

	rv := reflect.ValueOf(root)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("memimage: Save requires a non-nil pointer, got %T", root)
	}
	t := typemodel.Describe(rv.Type().Elem())
	addr := unsafe.Pointer(rv.Pointer())

	o.logger.Debug("saving image", "type", t.Name, "type_id", t.TypeID)
	if err := imageio.WriteImage(w, addr, t, o.logger); err != nil {
		o.logger.Error("save failed", "type", t.Name, "error", err)
		return err
	}
	o.logger.Debug("saved image", "type", t.Name)
	return nil
}
