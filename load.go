package memimage

import (
	"io"
	"reflect"

	"github.com/polaris-sw/memimage/internal/imageio"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// Load reads and validates an image of T from r, returning a pointer
// to the reconstructed root plus the owned buffer backing it. The
// buffer must be kept alive for as long as the returned pointer is
// used; every array and string inside it is flagged as externally
// allocated, so none of them will attempt to free storage owned by the
// buffer.
func Load[T any](r io.ReaderAt, opts ...LoadOption) (*T, []byte, error) {
	o := defaultLoadOptions()
	for _, opt := range opts {
		opt(o)
	}

	var zero T
	t := typemodel.Describe(reflect.TypeOf(zero))

	o.logger.Debug("loading image", "type", t.Name, "type_id", t.TypeID)
	loaded, err := imageio.ReadImage(r, t, o.registry, o.logger)
	if err != nil {
		o.logger.Error("load failed", "type", t.Name, "error", err)
		return nil, nil, err
	}
	o.logger.Debug("loaded image", "type", t.Name)
	return (*T)(loaded.Root), loaded.Buffer, nil
}

// LoadInPlace treats buf as the image itself: buf already holds header,
// payload, and tables, typically via a memory-mapped file. Fix-ups are
// applied directly against buf and the returned pointer aliases it;
// buf must outlive every use of the returned pointer.
func LoadInPlace[T any](buf []byte, opts ...LoadOption) (*T, error) {
	o := defaultLoadOptions()
	for _, opt := range opts {
		opt(o)
	}

	var zero T
	t := typemodel.Describe(reflect.TypeOf(zero))

	o.logger.Debug("loading image in place", "type", t.Name, "type_id", t.TypeID)
	ptr, err := imageio.LoadInPlace(buf, t, o.registry, o.logger)
	if err != nil {
		o.logger.Error("in-place load failed", "type", t.Name, "error", err)
		return nil, err
	}
	return (*T)(ptr), nil
}
