package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atelierlab/portfoliomatch/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the debug HTTP surface",
	Long: `Loads the current fixture store into the index and starts a minimal
HTTP server exposing /recommend, /reload, /stats, and /metrics for
interactive use during development. This is not the production-facing
catalog API.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reload := func() error {
		profiles, err := a.store.All()
		if err != nil {
			return fmt.Errorf("matchctl: failed to read fixture store: %w", err)
		}
		return a.rec.Ingest(context.Background(), profiles)
	}

	if err := reload(); err != nil {
		a.log.Warn().Err(err).Msg("initial index build failed, starting with an empty index")
	}

	srv := httpapi.NewServer(a.log, a.rec, a.met, reload)
	return srv.Run(serveAddr)
}
