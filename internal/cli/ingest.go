package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/atelierlab/portfoliomatch/internal/catalog"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [fixture.json]",
	Short: "Load a catalog fixture and build the embedding index",
	Long: `Reads a JSON array of artist profiles from the given file (or stdin
if omitted), persists them to the local fixture store, fetches and
embeds every portfolio image, and reports how many artists made it
into the ready index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var r *os.File
	if len(args) == 1 {
		r, err = os.Open(args[0])
		if err != nil {
			return fmt.Errorf("matchctl: failed to open fixture file: %w", err)
		}
		defer r.Close()
	} else {
		r = os.Stdin
	}

	var profiles []catalog.ArtistProfile
	if err := json.NewDecoder(r).Decode(&profiles); err != nil {
		return fmt.Errorf("matchctl: failed to parse fixture JSON: %w", err)
	}

	for _, p := range profiles {
		if err := a.store.Put(p); err != nil {
			return fmt.Errorf("matchctl: failed to persist artist %d: %w", p.ID, err)
		}
	}

	fmt.Printf("Ingesting %d artist profiles...\n", len(profiles))
	bar := progressbar.NewOptions(len(profiles),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	start := time.Now()
	if err := a.rec.Ingest(context.Background(), profiles); err != nil {
		return fmt.Errorf("matchctl: ingestion failed: %w", err)
	}
	_ = bar.Set(len(profiles))

	snap := a.rec.Stats()
	fmt.Printf("\nIndex ready in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Artists indexed:  %d\n", snap.IndexSize)
	fmt.Printf("  Artists excluded: %d (no images embedded successfully)\n", snap.ArtistsExcluded)
	fmt.Printf("  Images embedded:  %d ok, %d failed\n", snap.ImagesProcessedSuccess, snap.ImagesProcessedFailure)
	return nil
}
