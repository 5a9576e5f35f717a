package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the embedding cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		cache, err := svc.Cache()
		if err != nil {
			return err
		}

		entries := cache.Entries()
		if jsonOut {
			return printJSON(map[string]any{
				"entries": len(entries),
			})
		}
		fmt.Printf("entries: %d\n", len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  %s  %s\n",
				e.Fingerprint, e.Timestamp.Format("2006-01-02 15:04:05"), e.Filename)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached embeddings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		cache, err := svc.Cache()
		if err != nil {
			return err
		}
		n := cache.Len()
		cache.Clear()
		fmt.Printf("cleared %d entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
