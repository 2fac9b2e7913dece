package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/polaris-sw/memimage/internal/header"
)

func newVerifyCmd(logger hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check an image file's fix-up tables for structural consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(logger, args[0])
		},
	}
}

// runVerify checks a file on disk without performing a round-trip: it
// does not know the root type's Go shape, so it can only validate the
// structural properties the fix-up tables and header expose on their
// own — every fix-up offset in range, and the file exactly the size
// its header implies when there are no fix-ups at all.
func runVerify(logger hclog.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	loaded, err := readImageTables(f)
	if err != nil {
		return err
	}

	var problems []string

	// Every slot/target offset must lie in [0, payloadAligned).
	for i, p := range loaded.pointers {
		if p.SlotOffset >= loaded.payloadAligned {
			problems = append(problems, fmt.Sprintf("pointer fix %d: slot offset 0x%x out of range", i, p.SlotOffset))
		}
		if p.TargetOffset >= loaded.payloadAligned {
			problems = append(problems, fmt.Sprintf("pointer fix %d: target offset 0x%x out of range", i, p.TargetOffset))
		}
	}
	for i, t := range loaded.types {
		if t.SlotOffset >= loaded.payloadAligned {
			problems = append(problems, fmt.Sprintf("type fix %d: slot offset 0x%x out of range", i, t.SlotOffset))
		}
	}
	for i, a := range loaded.assets {
		if a.SlotOffset >= loaded.payloadAligned {
			problems = append(problems, fmt.Sprintf("asset fix %d: slot offset 0x%x out of range", i, a.SlotOffset))
		}
	}

	// With no fix-ups at all, file size is exactly
	// header + aligned payload + 12 (three u32 counts).
	if len(loaded.pointers) == 0 && len(loaded.types) == 0 && len(loaded.assets) == 0 {
		want := int64(header.Size) + int64(loaded.payloadAligned) + 12
		if loaded.fileSize != want {
			problems = append(problems, fmt.Sprintf("empty-fixups file size is %d, want %d", loaded.fileSize, want))
		}
	}

	if len(problems) == 0 {
		fmt.Printf("%s: OK (%d pointer, %d type, %d asset fixes)\n", path, len(loaded.pointers), len(loaded.types), len(loaded.assets))
		return nil
	}

	for _, p := range problems {
		fmt.Println(p)
	}
	return fmt.Errorf("%s: %d invariant violation(s)", path, len(problems))
}
