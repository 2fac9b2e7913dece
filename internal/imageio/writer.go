package imageio

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/hashicorp/go-hclog"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/fingerprint"
	"github.com/polaris-sw/memimage/internal/gather"
	"github.com/polaris-sw/memimage/internal/header"
	"github.com/polaris-sw/memimage/internal/typemodel"
)

// WriteImage gathers the chunk graph rooted at rootAddr, resolves
// offsets, then writes header + chunk payload + fix-up tables to w.
func WriteImage(w io.WriterAt, rootAddr unsafe.Pointer, t *typemodel.Type, logger hclog.Logger) error {
	g := gather.Run(rootAddr, t)
	logger.Debug("gathered chunk graph",
		"chunks", len(g.Chunks()), "payload_bytes", g.PayloadSize())

	hdr := header.Encode(header.Header{
		Session:     fingerprint.Current(),
		RootTypeID:  t.TypeID,
		PayloadSize: g.PayloadSize(),
	})
	iw := NewWriter(w)
	if err := iw.WriteBytes(hdr[:]); err != nil {
		return fmt.Errorf("memimage: write header: %w", err)
	}

	tableStart, err := WriteChunksAndTables(iw, g)
	if err != nil {
		return err
	}
	logger.Debug("wrote image", "table_start", tableStart, "total_bytes", iw.Pos())
	return nil
}

// WriteChunksAndTables writes a graph's resolved chunk region (with
// alignment padding) followed by its three fix-up tables, starting at
// iw's current position. It returns the stream position at which the
// tables began, for diagnostics only. Used both by WriteImage (after
// the header) and by internal/clumpio (which has no header of its own).
func WriteChunksAndTables(iw *Writer, g *chunk.Graph) (tableStart int64, err error) {
	total := g.PayloadSize()

	cursor := uint32(0)
	for _, c := range g.Chunks() {
		if c.Offset > cursor {
			if err := iw.Pad(c.Offset - cursor); err != nil {
				return 0, fmt.Errorf("memimage: pad before chunk %q: %w", c.Name, err)
			}
		}
		data := unsafe.Slice((*byte)(c.Start), int(c.Length))
		if err := iw.WriteBytes(data); err != nil {
			return 0, fmt.Errorf("memimage: write chunk %q: %w", c.Name, err)
		}
		cursor = c.Offset + c.Length
	}
	if total > cursor {
		if err := iw.Pad(total - cursor); err != nil {
			return 0, fmt.Errorf("memimage: pad payload tail: %w", err)
		}
	}
	tableStart = iw.Pos()

	pointerFixes, err := g.PointerFixes()
	if err != nil {
		return 0, err
	}
	typeFixes, err := g.TypeFixes()
	if err != nil {
		return 0, err
	}
	assetFixes, err := g.AssetFixes()
	if err != nil {
		return 0, err
	}

	if err := WritePointerTable(iw, pointerFixes); err != nil {
		return 0, fmt.Errorf("memimage: write pointer table: %w", err)
	}
	if err := WriteTypeTable(iw, typeFixes); err != nil {
		return 0, fmt.Errorf("memimage: write type table: %w", err)
	}
	if err := WriteAssetTable(iw, assetFixes); err != nil {
		return 0, fmt.Errorf("memimage: write asset table: %w", err)
	}
	return tableStart, nil
}
