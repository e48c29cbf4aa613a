// Package cli implements matchctl, the operator-facing command line
// for ingesting a catalog fixture and querying the recommender without
// standing up the full upstream stack.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	cacheDir  string
	storePath string
)

var rootCmd = &cobra.Command{
	Use:   "matchctl",
	Short: "Operate the portfolio matching recommender",
	Long: `matchctl drives the portfolio matching recommender directly: it
ingests a catalog fixture, builds the embedding index, and answers
recommend queries from the command line — no upstream catalog service
or HTTP façade required.

Example usage:
  matchctl ingest fixtures/artists.json   # build the embedding index
  matchctl recommend -t "brand mural"     # rank illustrators for a brief
  matchctl serve                          # start the debug HTTP surface`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file layered under environment variables")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the local bbolt catalog fixture store (default: <cache-dir>/catalog.db)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "override the embedding cache directory")
}
