package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arbors/arbors/storage"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <db-path>",
		Short: "Print a freshly opened engine's decode and batch-cache counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runStats(args[0])
		},
	}
}

func runStats(dbPath string) error {
	e, err := storage.NewEngine(dbPath, storage.DefaultEngineOptions(), nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer e.Close()

	s := e.Stats()
	fmt.Printf("pools_decoded:      %d\n", s.PoolsDecoded)
	fmt.Printf("pools_skipped:      %d\n", s.PoolsSkipped)
	fmt.Printf("batch_cache_hits:   %d\n", s.BatchCacheHits)
	fmt.Printf("batch_cache_misses: %d\n", s.BatchCacheMisses)
	return nil
}
