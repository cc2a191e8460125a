// Command arborctl is a thin inspection CLI for Arbors storage files: it
// prints a stored arbor's compiled schema tree and its engine-wide decode
// and cache counters. storage.Engine keeps its arbor table and counters
// in memory only, so against a freshly opened file describe finds no
// stored arbor and stats prints zero counters. It is not part of the
// library's core scope; it
// exists as the corpus convention of shipping a small cmd/ front-end
// alongside the library (modeled on the teacher's cmd/schemagen and
// cmd/jschemagen layout: one main.go wiring cobra, one file per
// subcommand's logic).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "arborctl",
		Short:         "Inspect Arbors storage files",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newDescribeCmd())
	root.AddCommand(newStatsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "arborctl: %v\n", err)
		os.Exit(1)
	}
}
