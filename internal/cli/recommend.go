package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atelierlab/portfoliomatch/internal/catalog"
)

var (
	briefTitle        string
	briefDescription  string
	briefModality     string
	briefContract     string
	briefSpecialty    string
	briefRequirements string
	briefImageURL     string
	briefTopK         int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank illustrators against a project brief",
	Long: `Builds a query embedding from the given brief fields (optionally
blended with a reference image) and prints the top-ranked illustrators
from the currently ingested index.`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVarP(&briefTitle, "title", "t", "", "project title")
	recommendCmd.Flags().StringVarP(&briefDescription, "description", "d", "", "project description")
	recommendCmd.Flags().StringVar(&briefModality, "modality", "", "project modality")
	recommendCmd.Flags().StringVar(&briefContract, "contract", "", "contract type")
	recommendCmd.Flags().StringVar(&briefSpecialty, "specialty", "", "requested specialty")
	recommendCmd.Flags().StringVar(&briefRequirements, "requirements", "", "additional requirements")
	recommendCmd.Flags().StringVar(&briefImageURL, "image-url", "", "reference image URL to blend into the query")
	recommendCmd.Flags().IntVarP(&briefTopK, "top", "k", 10, "number of results to return")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	profiles, err := a.store.All()
	if err != nil {
		return fmt.Errorf("matchctl: failed to read fixture store: %w", err)
	}
	if err := a.rec.Ingest(context.Background(), profiles); err != nil {
		return fmt.Errorf("matchctl: failed to build index from stored fixtures: %w", err)
	}

	brief := catalog.Brief{
		Title:        briefTitle,
		Description:  briefDescription,
		Modality:     briefModality,
		Contract:     briefContract,
		Specialty:    briefSpecialty,
		Requirements: briefRequirements,
		ImageURL:     briefImageURL,
	}

	var results []catalog.RecommendationResult
	if brief.ImageURL != "" {
		results, err = a.rec.RecommendWithImage(context.Background(), brief, briefTopK, a.cfg.ImageQueryAlpha)
	} else {
		results, err = a.rec.Recommend(context.Background(), brief, briefTopK)
	}
	if err != nil {
		return fmt.Errorf("matchctl: recommend failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching artists found.")
		return nil
	}
	fmt.Printf("%-4s %-10s %-24s %-8s %-5s %s\n", "rank", "artist id", "name", "score", "imgs", "top illustration")
	for i, r := range results {
		fmt.Printf("%-4d %-10d %-24s %-8.4f %-5d %s\n", i+1, r.ArtistID, r.Name, r.Score, r.NumIllustrations, r.BestURL)
	}
	return nil
}
