package imageio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/polaris-sw/memimage/internal/chunk"
)

// WritePointerTable writes a u32 count followed by (slotOffset,
// targetOffset) pairs.
func WritePointerTable(w *Writer, fixes []chunk.PointerFix) error {
	if err := w.WriteUint32(uint32(len(fixes))); err != nil {
		return err
	}
	for _, f := range fixes {
		if err := w.WriteUint32(f.SlotOffset); err != nil {
			return err
		}
		if err := w.WriteUint32(f.TargetOffset); err != nil {
			return err
		}
	}
	return nil
}

// WriteTypeTable writes a u32 count followed by (slotOffset, typeId) pairs.
func WriteTypeTable(w *Writer, fixes []chunk.TypeFix) error {
	if err := w.WriteUint32(uint32(len(fixes))); err != nil {
		return err
	}
	for _, f := range fixes {
		if err := w.WriteUint32(f.SlotOffset); err != nil {
			return err
		}
		if err := w.WriteUint32(f.TypeID); err != nil {
			return err
		}
	}
	return nil
}

// WriteAssetTable writes a u32 count followed by (slotOffset, length,
// bytes, padding) records, each padded up to AssetAlignment.
func WriteAssetTable(w *Writer, fixes []chunk.AssetFix) error {
	if err := w.WriteUint32(uint32(len(fixes))); err != nil {
		return err
	}
	for _, f := range fixes {
		if err := w.WriteUint32(f.SlotOffset); err != nil {
			return err
		}
		if err := w.WriteUint32(uint32(len(f.Bytes))); err != nil {
			return err
		}
		if err := w.WriteBytes(f.Bytes); err != nil {
			return err
		}
		padded := alignUp(uint32(len(f.Bytes)), AssetAlignment)
		if err := w.Pad(padded - uint32(len(f.Bytes))); err != nil {
			return err
		}
	}
	return nil
}

// ReadPointerTable reads back what WritePointerTable wrote.
func ReadPointerTable(r *Reader) ([]chunk.PointerFix, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("memimage: read pointer table count: %w", err)
	}
	out := make([]chunk.PointerFix, count)
	for i := range out {
		slot, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("memimage: read pointer fix %d: %w", i, err)
		}
		target, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("memimage: read pointer fix %d: %w", i, err)
		}
		out[i] = chunk.PointerFix{SlotOffset: slot, TargetOffset: target}
	}
	return out, nil
}

// ReadTypeTable reads back what WriteTypeTable wrote.
func ReadTypeTable(r *Reader) ([]chunk.TypeFix, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("memimage: read type table count: %w", err)
	}
	out := make([]chunk.TypeFix, count)
	for i := range out {
		slot, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("memimage: read type fix %d: %w", i, err)
		}
		id, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("memimage: read type fix %d: %w", i, err)
		}
		out[i] = chunk.TypeFix{SlotOffset: slot, TypeID: id}
	}
	return out, nil
}

// ReadAssetTable reads back what WriteAssetTable wrote.
func ReadAssetTable(r *Reader) ([]chunk.AssetFix, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("memimage: read asset table count: %w", err)
	}
	out := make([]chunk.AssetFix, count)
	for i := range out {
		slot, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("memimage: read asset fix %d: %w", i, err)
		}
		length, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("memimage: read asset fix %d: %w", i, err)
		}
		bytes, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("memimage: read asset fix %d: %w", i, err)
		}
		padded := alignUp(length, AssetAlignment)
		if padded > length {
			if _, err := r.ReadBytes(int(padded - length)); err != nil {
				return nil, fmt.Errorf("memimage: read asset fix %d padding: %w", i, err)
			}
		}
		out[i] = chunk.AssetFix{SlotOffset: slot, Bytes: bytes}
	}
	return out, nil
}

// ReadAssetTableAliased reads an asset fix-up table the same way
// ReadAssetTable does, but directly out of buf at byte offset pos
// instead of through a Reader — so each fix's Bytes aliases buf's own
// backing array instead of a freshly copied one. Used by the in-place
// load path, where buf already outlives the object ApplyFixups builds
// inside it, so a slice of buf needs no separate anchor to stay alive.
func ReadAssetTableAliased(buf []byte, pos int) ([]chunk.AssetFix, int, error) {
	if pos+4 > len(buf) {
		return nil, 0, fmt.Errorf("memimage: read asset table count: %w", io.ErrUnexpectedEOF)
	}
	count := binary.NativeEndian.Uint32(buf[pos : pos+4])
	pos += 4
	out := make([]chunk.AssetFix, count)
	for i := range out {
		if pos+8 > len(buf) {
			return nil, 0, fmt.Errorf("memimage: read asset fix %d: %w", i, io.ErrUnexpectedEOF)
		}
		slot := binary.NativeEndian.Uint32(buf[pos : pos+4])
		length := binary.NativeEndian.Uint32(buf[pos+4 : pos+8])
		pos += 8
		if pos+int(length) > len(buf) {
			return nil, 0, fmt.Errorf("memimage: read asset fix %d: %w", i, io.ErrUnexpectedEOF)
		}
		out[i] = chunk.AssetFix{SlotOffset: slot, Bytes: buf[pos : pos+int(length) : pos+int(length)]}
		pos += int(length)
		padded := alignUp(length, AssetAlignment)
		pos += int(padded - length)
	}
	return out, pos, nil
}
