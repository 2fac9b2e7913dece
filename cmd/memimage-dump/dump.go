package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/header"
	"github.com/polaris-sw/memimage/internal/imageio"
)

func newDumpCmd(logger hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Print an image's header and fix-up table summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(logger, args[0])
		},
	}
}

func runDump(logger hclog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	loaded, err := readImageTables(f)
	if err != nil {
		return err
	}

	fmt.Printf("file:         %s\n", path)
	fmt.Printf("session:      0x%016x\n", uint64(loaded.hdr.Session))
	fmt.Printf("root type id: 0x%08x\n", loaded.hdr.RootTypeID)
	fmt.Printf("payload size: %d bytes (aligned %d)\n", loaded.hdr.PayloadSize, loaded.payloadAligned)
	fmt.Printf("pointer fixes: %d\n", len(loaded.pointers))
	for i, p := range loaded.pointers {
		if i >= 10 {
			fmt.Printf("  ... %d more\n", len(loaded.pointers)-i)
			break
		}
		fmt.Printf("  [%d] slot=0x%x -> target=0x%x\n", i, p.SlotOffset, p.TargetOffset)
	}
	fmt.Printf("type fixes: %d\n", len(loaded.types))
	for i, t := range loaded.types {
		if i >= 10 {
			fmt.Printf("  ... %d more\n", len(loaded.types)-i)
			break
		}
		fmt.Printf("  [%d] slot=0x%x -> type_id=0x%08x\n", i, t.SlotOffset, t.TypeID)
	}
	fmt.Printf("asset fixes: %d\n", len(loaded.assets))
	for i, a := range loaded.assets {
		if i >= 10 {
			fmt.Printf("  ... %d more\n", len(loaded.assets)-i)
			break
		}
		fmt.Printf("  [%d] slot=0x%x -> %q\n", i, a.SlotOffset, string(a.Bytes))
	}
	return nil
}

// imageTables holds everything dump and verify both need from a file,
// read once.
type imageTables struct {
	hdr            header.Header
	payloadAligned uint32
	fileSize       int64
	pointers       []chunk.PointerFix
	types          []chunk.TypeFix
	assets         []chunk.AssetFix
}

func readImageTables(f *os.File) (*imageTables, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	hdrBuf := make([]byte, header.Size)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	hdr, err := header.Decode(hdrBuf)
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	payloadAligned := alignUp(hdr.PayloadSize, chunk.PayloadAlignment)
	r := imageio.NewReader(f)
	r.Seek(int64(header.Size) + int64(payloadAligned))

	pointers, err := imageio.ReadPointerTable(r)
	if err != nil {
		return nil, fmt.Errorf("read pointer table: %w", err)
	}
	types, err := imageio.ReadTypeTable(r)
	if err != nil {
		return nil, fmt.Errorf("read type table: %w", err)
	}
	assets, err := imageio.ReadAssetTable(r)
	if err != nil {
		return nil, fmt.Errorf("read asset table: %w", err)
	}

	return &imageTables{
		hdr:            hdr,
		payloadAligned: payloadAligned,
		fileSize:       info.Size(),
		pointers:       pointers,
		types:          types,
		assets:         assets,
	}, nil
}

func alignUp(x, align uint32) uint32 {
	if align <= 1 {
		return x
	}
	rem := x % align
	if rem == 0 {
		return x
	}
	return x + (align - rem)
}
