package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierlab/portfoliomatch/internal/cache"
	"github.com/atelierlab/portfoliomatch/internal/catalog"
	"github.com/atelierlab/portfoliomatch/internal/config"
	"github.com/atelierlab/portfoliomatch/internal/encoder"
	"github.com/atelierlab/portfoliomatch/internal/imaging"
	"github.com/atelierlab/portfoliomatch/internal/metrics"
	"github.com/atelierlab/portfoliomatch/internal/recommender"
	"github.com/atelierlab/portfoliomatch/internal/scoring"
	"github.com/atelierlab/portfoliomatch/internal/telemetry"
)

// app bundles the components matchctl's subcommands share.
type app struct {
	log   zerolog.Logger
	cfg   *config.Config
	rec   *recommender.Recommender
	cache *cache.Cache
	store *catalog.Store
	met   *metrics.Collector
}

func newApp() (*app, error) {
	log := telemetry.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"))
	cfg := config.Load(log, cfgFile)

	if cacheDir != "" {
		cfg.EmbeddingCacheDir = cacheDir
	}

	c, err := cache.Open(log, cfg.EmbeddingCacheDir, cfg.CLIPModelName)
	if err != nil {
		return nil, fmt.Errorf("matchctl: failed to open embedding cache: %w", err)
	}

	sp := storePath
	if sp == "" {
		sp = filepath.Join(cfg.EmbeddingCacheDir, "catalog.db")
	}
	st, err := catalog.OpenStore(sp)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("matchctl: failed to open catalog fixture store: %w", err)
	}

	enc, err := encoder.NewFactory(log, cfg).Create(encoder.Backend(os.Getenv("ENCODER_BACKEND")), os.Getenv("ENCODER_SERVER_URL"))
	if err != nil {
		c.Close()
		st.Close()
		return nil, fmt.Errorf("matchctl: failed to build encoder: %w", err)
	}

	f := imaging.New(log, imaging.Config{
		Timeout:    time.Duration(cfg.ImageDownloadTimeout) * time.Second,
		MaxRetries: 3,
		MaxBytes:   cfg.MaxImageDownloadBytes,
	})
	agg := scoring.New(log, scoring.Strategy(cfg.AggregationStrategy), cfg.TopKIllustrations)
	met := metrics.NewCollector()

	rec := recommender.New(log, f, enc, c, agg, met, recommender.Config{
		ImageBatchSize:       cfg.ImageBatchSize,
		ImageDownloadWorkers: cfg.ImageDownloadWorkers,
		ImageQueryAlpha:      cfg.ImageQueryAlpha,
	})

	return &app{log: log, cfg: cfg, rec: rec, cache: c, store: st, met: met}, nil
}

func (a *app) Close() {
	a.cache.Close()
	a.store.Close()
}
