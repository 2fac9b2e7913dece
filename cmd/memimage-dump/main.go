// Command memimage-dump is a small diagnostic binary for inspecting
// image files produced by the memimage package: a header summary and a
// structural check of the fix-up tables.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "memimage-dump",
		Level: hclog.Warn,
	})

	root := &cobra.Command{
		Use:   "memimage-dump",
		Short: "Inspect memimage image files",
	}
	root.AddCommand(newDumpCmd(logger), newVerifyCmd(logger), newGenCmd(logger))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
