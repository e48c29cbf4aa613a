package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print embedding cache statistics",
	Long:  `Reports the on-disk embedding cache's entry count and size, without touching any upstream image host.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.cache.Stats()
	fmt.Printf("Cache directory:    %s\n", s.CacheDir)
	fmt.Printf("Total entries:      %d\n", s.TotalEntries)
	fmt.Printf("Entries on disk:    %d\n", s.ExistingFiles)
	fmt.Printf("Entries missing:    %d\n", s.MissingFiles)
	fmt.Printf("Total size:         %d bytes\n", s.TotalSizeBytes)
	return nil
}
