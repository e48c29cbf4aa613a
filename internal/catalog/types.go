// Package catalog holds the domain types the recommender ranks over —
// artist portfolios and briefs — plus a local fixture store and a
// filesystem watcher used when there is no live upstream catalog
// service to ingest from.
package catalog

import "strings"

// ArtistProfile is one illustrator's catalog entry: their identity
// and the portfolio image URLs the recommender will fetch and embed.
// ID is the stable integer identity assigned by the upstream catalog
// service, per spec's id: integer entity field. JSON tags match the
// upstream catalog service's wire field names (id, name, image_urls)
// verbatim so a real catalog response or matchctl fixture decodes
// directly into this type.
type ArtistProfile struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	ImageURLs []string `json:"image_urls"`
}

// Brief is a project brief to match illustrators against, generalizing
// the fields original_source/app/main.py's ProjectInput carried.
type Brief struct {
	Title        string
	Description  string
	Modality     string
	Contract     string
	Specialty    string
	Requirements string
	// ImageURL optionally points at a reference image whose embedding
	// blends into the query per the RecommendWithImage supplement.
	ImageURL string
}

// FlattenBrief concatenates a Brief's fields into the single semantic
// query string the text encoder embeds, matching the field order and
// underscore-to-space normalization in
// original_source/app/main.py's full_semantic_query construction.
func FlattenBrief(b Brief) string {
	var sb strings.Builder
	sb.WriteString("Project titled: ")
	sb.WriteString(b.Title)
	sb.WriteString(". ")
	if b.Specialty != "" {
		sb.WriteString("Looking for a specialist in ")
		sb.WriteString(spaceUnderscores(b.Specialty))
		sb.WriteString(". ")
	}
	sb.WriteString("Job description: ")
	sb.WriteString(b.Description)
	sb.WriteString(". ")
	if b.Requirements != "" {
		sb.WriteString("Technical requirements and skills: ")
		sb.WriteString(b.Requirements)
		sb.WriteString(". ")
	}
	if b.Modality != "" {
		sb.WriteString("Work modality: ")
		sb.WriteString(b.Modality)
		sb.WriteString(". ")
	}
	if b.Contract != "" {
		sb.WriteString("Contract type: ")
		sb.WriteString(spaceUnderscores(b.Contract))
		sb.WriteString(".")
	}
	return strings.TrimSpace(sb.String())
}

func spaceUnderscores(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// RecommendationResult is one ranked entry in a query response. ties
// are broken by ascending ArtistID, a numeric comparison so id 2 sorts
// before id 10 (a plain string compare would not).
type RecommendationResult struct {
	ArtistID            int64   `json:"artist_id"`
	Name                string  `json:"name"`
	Score               float64 `json:"score"`
	BestURL             string  `json:"top_illustration_url"`
	NumIllustrations    int     `json:"num_illustrations"`
	AggregationStrategy string  `json:"aggregation_strategy"`
}
