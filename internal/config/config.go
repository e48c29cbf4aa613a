// Package config loads the recommender's runtime configuration from
// environment variables, with an optional YAML layer for the matchctl
// CLI. Unlike the strict fail-fast validation of a provider config,
// every key here degrades to a documented default: an invalid value is
// logged at Warn and replaced rather than treated as fatal.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// AggregationStrategy names one of the four artist-score aggregation
// functions in internal/scoring.
type AggregationStrategy string

const (
	StrategyMax          AggregationStrategy = "max"
	StrategyMean         AggregationStrategy = "mean"
	StrategyWeightedMean AggregationStrategy = "weighted_mean"
	StrategyTopKMean     AggregationStrategy = "top_k_mean"
)

var validStrategies = map[AggregationStrategy]bool{
	StrategyMax:          true,
	StrategyMean:         true,
	StrategyWeightedMean: true,
	StrategyTopKMean:     true,
}

// knownCLIPModels is the set CLIP_MODEL_NAME is validated against, per
// spec.md §6 ("any value not in the known set falls back to default").
// clip-ViT-B-32 is original_source's own default (recommender/model.py,
// embedding_cache.py); the openai/... variant is the identifier the
// huggingface encoder backend actually calls. Only 512-dim models are
// listed: spec.md §1's shared embedding space is hard-fixed at 512
// dimensions (vecmath.Dim), so a 768-dim model (clip-ViT-L-14,
// openai/clip-vit-large-patch14) is not an accepted value here even
// though encoder.DimensionsFor knows its width — accepting it would
// let an operator configure a dimension mismatch against every 512-dim
// vector already on disk.
var knownCLIPModels = map[string]bool{
	"clip-ViT-B-32":                true,
	"clip-ViT-B-16":                true,
	"openai/clip-vit-base-patch32": true,
	"openai/clip-vit-base-patch16": true,
}

// Config holds every tunable named in spec.md §6, plus the ambient
// deployment knobs (log level, cache dir, HF credentials) needed to
// build the rest of the module's components.
type Config struct {
	MaxImageSizePx       int   // max of width/height after resize (px)
	ImageBatchSize       int
	ImageDownloadTimeout int // seconds
	ImageDownloadWorkers int
	EmbeddingCacheDir    string
	AggregationStrategy  AggregationStrategy
	TopKIllustrations    int // used by top_k_mean; distinct from a request's requested top_k results
	CLIPModelName        string

	// MaxImageDownloadBytes caps the fetcher's response body size. This
	// is not one of spec.md §6's enumerated keys (which sizes the
	// post-resize pixel dimensions, not the wire transfer) but a
	// defensive guard against a misbehaving host serving an unbounded
	// body; it is not configurable via the spec's config surface.
	MaxImageDownloadBytes int64

	LogLevel   string
	HFAPIToken string
	HFModelID  string

	// ImageQueryAlpha weights the text component when a brief is
	// accompanied by a reference image (RecommendWithImage). Defaults
	// to 0.5, matching original_source's recommender/model.py.
	ImageQueryAlpha float64
}

const (
	defaultMaxImageSizePx        = 512
	defaultImageBatchSize        = 32
	defaultImageDownloadTimeout  = 10
	defaultImageDownloadWorkers  = 10
	defaultEmbeddingCacheDir     = "./cache/embeddings"
	defaultAggregationStrategy   = StrategyMax
	defaultTopKIllustrations     = 3
	defaultCLIPModelName         = "clip-ViT-B-32"
	defaultLogLevel              = "info"
	defaultImageQueryAlpha       = 0.5
	defaultMaxImageDownloadBytes = 10 << 20 // 10 MiB
)

// Load reads the environment (and, if path is non-empty, a YAML file
// layered under it via viper) into a Config. It never returns an
// error: unparseable or out-of-range values are logged at Warn on log
// and replaced with their default, the way spec.md §6 requires.
func Load(log zerolog.Logger, yamlPath string) *Config {
	v := viper.New()
	v.SetEnvPrefix("PORTFOLIOMATCH")
	v.AutomaticEnv()
	if yamlPath != "" {
		v.SetConfigFile(yamlPath)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", yamlPath).Msg("could not read config file, continuing with env/defaults")
		}
	}

	cfg := &Config{
		MaxImageSizePx:        defaultMaxImageSizePx,
		ImageBatchSize:        defaultImageBatchSize,
		ImageDownloadTimeout:  defaultImageDownloadTimeout,
		ImageDownloadWorkers:  defaultImageDownloadWorkers,
		EmbeddingCacheDir:     defaultEmbeddingCacheDir,
		AggregationStrategy:   defaultAggregationStrategy,
		TopKIllustrations:     defaultTopKIllustrations,
		CLIPModelName:         defaultCLIPModelName,
		MaxImageDownloadBytes: defaultMaxImageDownloadBytes,
		LogLevel:              defaultLogLevel,
		ImageQueryAlpha:       defaultImageQueryAlpha,
	}

	cfg.MaxImageSizePx = intOrDefault(log, v, "MAX_IMAGE_SIZE", cfg.MaxImageSizePx, 1, 2048)
	cfg.ImageBatchSize = intOrDefault(log, v, "IMAGE_BATCH_SIZE", cfg.ImageBatchSize, 1, 128)
	cfg.ImageDownloadTimeout = intOrDefault(log, v, "IMAGE_DOWNLOAD_TIMEOUT", cfg.ImageDownloadTimeout, 1, 60)
	cfg.ImageDownloadWorkers = intOrDefault(log, v, "IMAGE_DOWNLOAD_WORKERS", cfg.ImageDownloadWorkers, 1, 50)
	cfg.TopKIllustrations = intOrDefault(log, v, "TOP_K_ILLUSTRATIONS", cfg.TopKIllustrations, 1, 20)
	cfg.ImageQueryAlpha = floatOrDefault(log, v, "IMAGE_QUERY_ALPHA", cfg.ImageQueryAlpha, 0, 1)
	cfg.MaxImageDownloadBytes = int64OrDefault(log, v, "IMAGE_MAX_DOWNLOAD_BYTES", cfg.MaxImageDownloadBytes, 1)

	if dir := strings.TrimSpace(envOrViper(v, "EMBEDDING_CACHE_DIR")); dir != "" {
		cfg.EmbeddingCacheDir = dir
	}
	if lvl := strings.TrimSpace(envOrViper(v, "LOG_LEVEL")); lvl != "" {
		cfg.LogLevel = lvl
	}
	if token := strings.TrimSpace(envOrViper(v, "HUGGINGFACE_API_TOKEN")); token != "" {
		cfg.HFAPIToken = token
	}
	if model := strings.TrimSpace(envOrViper(v, "HUGGINGFACE_MODEL_ID")); model != "" {
		cfg.HFModelID = model
	}

	if model := strings.TrimSpace(envOrViper(v, "CLIP_MODEL_NAME")); model != "" {
		if knownCLIPModels[model] {
			cfg.CLIPModelName = model
		} else {
			log.Warn().Str("value", model).Str("default", defaultCLIPModelName).
				Msg("unknown CLIP_MODEL_NAME, falling back to default")
		}
	}

	if strat := strings.TrimSpace(envOrViper(v, "AGGREGATION_STRATEGY")); strat != "" {
		s := AggregationStrategy(strings.ToLower(strat))
		if validStrategies[s] {
			cfg.AggregationStrategy = s
		} else {
			log.Warn().Str("value", strat).Str("default", string(defaultAggregationStrategy)).
				Msg("invalid AGGREGATION_STRATEGY, falling back to default")
		}
	}

	return cfg
}

func envOrViper(v *viper.Viper, key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return v.GetString(key)
}

func intOrDefault(log zerolog.Logger, v *viper.Viper, key string, def, min, max int) int {
	raw := envOrViper(v, key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		log.Warn().Str("key", key).Str("value", raw).Int("default", def).
			Msg("invalid or out-of-range value, falling back to default")
		return def
	}
	return n
}

func int64OrDefault(log zerolog.Logger, v *viper.Viper, key string, def int64, min int64) int64 {
	raw := envOrViper(v, key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < min {
		log.Warn().Str("key", key).Str("value", raw).Int64("default", def).
			Msg("invalid or out-of-range value, falling back to default")
		return def
	}
	return n
}

func floatOrDefault(log zerolog.Logger, v *viper.Viper, key string, def, min, max float64) float64 {
	raw := envOrViper(v, key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < min || f > max {
		log.Warn().Str("key", key).Str("value", raw).Float64("default", def).
			Msg("invalid or out-of-range value, falling back to default")
		return def
	}
	return f
}
