// Package recommender orchestrates portfolio ingestion and query-time
// scoring: it owns the artist index, drives the fetch → encode →
// cache-write pipeline during ingestion, and ranks artists against a
// brief at query time.
package recommender

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierlab/portfoliomatch/internal/cache"
	"github.com/atelierlab/portfoliomatch/internal/catalog"
	"github.com/atelierlab/portfoliomatch/internal/encoder"
	"github.com/atelierlab/portfoliomatch/internal/imaging"
	"github.com/atelierlab/portfoliomatch/internal/matcherr"
	"github.com/atelierlab/portfoliomatch/internal/metrics"
	"github.com/atelierlab/portfoliomatch/internal/scoring"
	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

// State is the recommender's three-state lifecycle.
type State int32

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

// artistEntry is one artist's index-time state: the embeddings
// successfully produced from its portfolio. Artists with zero
// embeddings are excluded from ranking entirely.
type artistEntry struct {
	ID     int64
	Name   string
	Images []indexedImage
}

// indexedImage pairs a successfully embedded portfolio image with its
// source URL, so a query can report which image drove an artist's
// score (RecommendationResult.BestURL).
type indexedImage struct {
	url string
	emb vecmath.Embedding
}

// Config bundles the tunables an ingestion run and query need.
type Config struct {
	ImageBatchSize       int
	ImageDownloadWorkers int
	ImageQueryAlpha      float64
}

// Recommender is the query-facing entry point of the matching engine.
type Recommender struct {
	log     zerolog.Logger
	fetcher *imaging.Fetcher
	enc     encoder.Encoder
	cache   *cache.Cache
	agg     *scoring.Aggregator
	met     *metrics.Collector
	cfg     Config

	state atomic.Int32
	index atomic.Pointer[map[int64]*artistEntry]
}

// New builds a Recommender in the Empty state.
func New(log zerolog.Logger, fetcher *imaging.Fetcher, enc encoder.Encoder, c *cache.Cache, agg *scoring.Aggregator, met *metrics.Collector, cfg Config) *Recommender {
	if cfg.ImageBatchSize <= 0 {
		cfg.ImageBatchSize = 10
	}
	if cfg.ImageDownloadWorkers <= 0 {
		cfg.ImageDownloadWorkers = 4
	}
	if cfg.ImageQueryAlpha <= 0 {
		cfg.ImageQueryAlpha = 0.5
	}
	r := &Recommender{log: log, fetcher: fetcher, enc: enc, cache: c, agg: agg, met: met, cfg: cfg}
	empty := make(map[int64]*artistEntry)
	r.index.Store(&empty)
	return r
}

// State returns the recommender's current lifecycle state.
func (r *Recommender) State() State { return State(r.state.Load()) }

// fetchedImage is one artist image after a successful fetch, pending
// encoding.
type fetchedImage struct {
	artistID int64
	url      string
	img      image.Image
}

// encodedImage is one image's embedding after encoding, pending a
// cache write.
type encodedImage struct {
	artistID int64
	url      string
	emb      vecmath.Embedding
}

// Ingest fetches and embeds every artist's portfolio, replacing the
// active index on success. The cache is consulted before any network
// fetch, so a warm cache dir issues zero HTTP requests on a repeat
// run; only cache misses are queued for the fetcher. Per-image
// failures are logged and excluded; an artist with zero usable images
// is excluded from the resulting index entirely, per the
// total-failure exclusion rule.
func (r *Recommender) Ingest(ctx context.Context, profiles []catalog.ArtistProfile) error {
	r.state.Store(int32(StateLoading))
	r.log.Info().Int("artists", len(profiles)).Msg("starting portfolio ingestion")

	fetchOut := make(chan fetchedImage, r.cfg.ImageBatchSize*2)
	encodeOut := make(chan encodedImage, r.cfg.ImageBatchSize*2)

	results := make(map[int64]*artistEntry, len(profiles))
	var resultsMu sync.Mutex
	for _, p := range profiles {
		results[p.ID] = &artistEntry{ID: p.ID, Name: p.Name}
	}

	addImage := func(artistID int64, url string, emb vecmath.Embedding) {
		resultsMu.Lock()
		if entry, ok := results[artistID]; ok {
			entry.Images = append(entry.Images, indexedImage{url: url, emb: emb})
		}
		resultsMu.Unlock()
	}

	var fetchWG sync.WaitGroup
	sem := make(chan struct{}, r.cfg.ImageDownloadWorkers)
	for _, artist := range profiles {
		for _, url := range artist.ImageURLs {
			if cached, ok := r.cache.Get(url); ok {
				r.met.RecordCacheHit()
				r.met.RecordImageProcessed(true)
				addImage(artist.ID, url, cached)
				continue
			}
			r.met.RecordCacheMiss()
			fetchWG.Add(1)
			sem <- struct{}{}
			go func(artistID int64, url string) {
				defer fetchWG.Done()
				defer func() { <-sem }()
				img, err := r.fetcher.Fetch(ctx, url)
				if err != nil {
					r.met.RecordImageProcessed(false)
					r.log.Warn().Int64("artist_id", artistID).Str("url", url).Err(err).Msg("failed to fetch portfolio image")
					return
				}
				fetchOut <- fetchedImage{artistID: artistID, url: url, img: img}
			}(artist.ID, url)
		}
	}
	go func() {
		fetchWG.Wait()
		close(fetchOut)
	}()

	// Single encoder goroutine: the CLIP model behind Encoder is an
	// expensive, non-thread-safe resource, so every image is batched
	// through one caller rather than fanned out across workers.
	var encodeWG sync.WaitGroup
	encodeWG.Add(1)
	go func() {
		defer encodeWG.Done()
		defer close(encodeOut)
		r.runEncodeStage(ctx, fetchOut, encodeOut)
	}()

	var cacheWG sync.WaitGroup
	cacheWG.Add(1)
	go func() {
		defer cacheWG.Done()
		for e := range encodeOut {
			if err := r.cache.Set(e.url, e.emb, time.Now().UTC().Format(time.RFC3339)); err != nil {
				r.log.Warn().Str("url", e.url).Err(err).Msg("failed to persist embedding to cache")
			}
			addImage(e.artistID, e.url, e.emb)
			r.met.RecordImageProcessed(true)
		}
	}()

	cacheWG.Wait()
	encodeWG.Wait()

	final := make(map[int64]*artistEntry, len(results))
	excluded := 0
	for id, entry := range results {
		if len(entry.Images) == 0 {
			excluded++
			r.met.RecordArtistExcluded()
			continue
		}
		final[id] = entry
	}
	if excluded > 0 {
		r.log.Warn().Int("excluded", excluded).Msg("excluded artists with zero usable portfolio images")
	}

	r.index.Store(&final)
	r.met.SetIndexSize(len(final))
	r.state.Store(int32(StateReady))
	r.log.Info().Int("indexed_artists", len(final)).Msg("portfolio ingestion complete")
	return nil
}

// runEncodeStage reads fetched images (every one already known to be a
// cache miss, checked by the caller before the fetch was even
// dispatched), batches them at ImageBatchSize, and pushes every
// resulting embedding downstream for a cache write.
func (r *Recommender) runEncodeStage(ctx context.Context, in <-chan fetchedImage, out chan<- encodedImage) {
	batch := make([]fetchedImage, 0, r.cfg.ImageBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		imgs := make([]image.Image, len(batch))
		for i, b := range batch {
			imgs[i] = b.img
		}
		embs, err := r.enc.EncodeImages(ctx, imgs)
		if err != nil {
			r.log.Warn().Int("batch_size", len(batch)).Err(err).Msg("failed to encode image batch")
			for range batch {
				r.met.RecordImageProcessed(false)
			}
			batch = batch[:0]
			return
		}
		for i, b := range batch {
			out <- encodedImage{artistID: b.artistID, url: b.url, emb: embs[i]}
		}
		batch = batch[:0]
	}

	for fi := range in {
		batch = append(batch, fi)
		if len(batch) >= r.cfg.ImageBatchSize {
			flush()
		}
	}
	flush()
}

// Recommend ranks the current index against brief's flattened text,
// returning at most topK results sorted by descending score with ties
// broken by ascending artist ID.
func (r *Recommender) Recommend(ctx context.Context, brief catalog.Brief, topK int) ([]catalog.RecommendationResult, error) {
	if r.State() != StateReady {
		return nil, matcherr.New(matcherr.KindNotReady, fmt.Sprintf("recommender is %s, not ready", r.State()), nil)
	}

	query, err := r.buildQueryEmbedding(ctx, brief)
	if err != nil {
		return nil, err
	}

	return r.rank(query, topK)
}

// RecommendWithImage blends the brief's text embedding with a
// reference image's embedding before ranking, per the supplemented
// multimodal query feature. alpha weights the text component; when
// alpha<=0 the configured default is used.
func (r *Recommender) RecommendWithImage(ctx context.Context, brief catalog.Brief, topK int, alpha float64) ([]catalog.RecommendationResult, error) {
	if r.State() != StateReady {
		return nil, matcherr.New(matcherr.KindNotReady, fmt.Sprintf("recommender is %s, not ready", r.State()), nil)
	}
	if alpha <= 0 {
		alpha = r.cfg.ImageQueryAlpha
	}
	if brief.ImageURL == "" {
		return r.Recommend(ctx, brief, topK)
	}

	textEmb, err := r.buildQueryEmbedding(ctx, brief)
	if err != nil {
		return nil, err
	}

	img, err := r.fetcher.Fetch(ctx, brief.ImageURL)
	if err != nil {
		return nil, matcherr.NewForURL(matcherr.KindInvalidImage, brief.ImageURL, "failed to fetch reference image for query", err)
	}
	imgEmbs, err := r.enc.EncodeImages(ctx, []image.Image{img})
	if err != nil {
		return nil, fmt.Errorf("recommender: failed to encode reference image: %w", err)
	}

	blended := make(vecmath.Embedding, len(textEmb))
	for i := range blended {
		blended[i] = float32(alpha*float64(textEmb[i]) + (1-alpha)*float64(imgEmbs[0][i]))
	}
	blended = vecmath.Normalize(blended)

	return r.rank(blended, topK)
}

func (r *Recommender) buildQueryEmbedding(ctx context.Context, brief catalog.Brief) (vecmath.Embedding, error) {
	text := catalog.FlattenBrief(brief)
	vecs, err := r.enc.EncodeText(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("recommender: failed to encode query text: %w", err)
	}
	return vecs[0], nil
}

func (r *Recommender) rank(query vecmath.Embedding, topK int) ([]catalog.RecommendationResult, error) {
	snapshot := *r.index.Load()
	if len(snapshot) == 0 {
		return nil, nil
	}

	strategy := string(r.agg.Strategy())
	start := time.Now()
	results := make([]catalog.RecommendationResult, 0, len(snapshot))
	for _, entry := range snapshot {
		scores := make([]float64, len(entry.Images))
		bestURL := ""
		bestScore := -1.0
		for i, img := range entry.Images {
			s := vecmath.SimilarityScore(vecmath.Cosine(query, img.emb))
			scores[i] = s
			if s > bestScore {
				bestScore = s
				bestURL = img.url
			}
		}
		score, err := r.agg.Aggregate(scores)
		if err != nil {
			continue
		}
		r.met.RecordScore(score)
		results = append(results, catalog.RecommendationResult{
			ArtistID:            entry.ID,
			Name:                entry.Name,
			Score:               score,
			BestURL:             bestURL,
			NumIllustrations:    len(entry.Images),
			AggregationStrategy: strategy,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ArtistID < results[j].ArtistID
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	r.met.RecordRecommendation(time.Since(start))
	return results, nil
}

// Stats returns the recommender's current metrics snapshot.
func (r *Recommender) Stats() metrics.Snapshot { return r.met.Snapshot() }

// CacheStats returns the current embedding cache's stats.
func (r *Recommender) CacheStats() cache.Stats { return r.cache.Stats() }
