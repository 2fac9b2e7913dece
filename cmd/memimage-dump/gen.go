package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/polaris-sw/memimage"
)

// demoFixture is a small graph exercising every kind dump/verify care
// about: a primitive field, a dynamic array, a string, and an asset id,
// so a freshly-cloned checkout has something to point dump/verify at
// without needing a real embedder's object graph on hand.
type demoFixture struct {
	Counter int32
	Tags    memimage.DynArray[int32]
	Label   memimage.String
	Source  memimage.AssetID
}

func newGenCmd(logger hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "gen <file>",
		Short: "Write a small demo image file for dump/verify to inspect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(logger, args[0])
		},
	}
}

func runGen(logger hclog.Logger, path string) error {
	fixture := &demoFixture{
		Counter: 42,
		Tags:    memimage.NewDynArray[int32](1, 2, 3),
		Label:   memimage.NewString("memimage demo fixture"),
		Source:  memimage.NewAssetID(uuid.NewString()),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := memimage.Save(fixture, f, memimage.WithLogger(logger)); err != nil {
		return fmt.Errorf("save demo fixture: %w", err)
	}
	fmt.Printf("wrote demo fixture to %s (asset id %s)\n", path, fixture.Source.String())
	return nil
}
