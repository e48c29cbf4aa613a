package config

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(zerolog.Nop(), "")
	assert.Equal(t, defaultImageBatchSize, cfg.ImageBatchSize)
	assert.Equal(t, defaultAggregationStrategy, cfg.AggregationStrategy)
	assert.Equal(t, defaultCLIPModelName, cfg.CLIPModelName)
}

func TestLoadInvalidStrategyFallsBackToDefault(t *testing.T) {
	os.Setenv("AGGREGATION_STRATEGY", "not-a-real-strategy")
	defer os.Unsetenv("AGGREGATION_STRATEGY")

	cfg := Load(zerolog.Nop(), "")
	assert.Equal(t, defaultAggregationStrategy, cfg.AggregationStrategy)
}

func TestLoadValidStrategyIsHonored(t *testing.T) {
	os.Setenv("AGGREGATION_STRATEGY", "top_k_mean")
	defer os.Unsetenv("AGGREGATION_STRATEGY")

	cfg := Load(zerolog.Nop(), "")
	assert.Equal(t, StrategyTopKMean, cfg.AggregationStrategy)
}

func TestLoadOutOfRangeIntFallsBackToDefault(t *testing.T) {
	os.Setenv("IMAGE_BATCH_SIZE", "-5")
	defer os.Unsetenv("IMAGE_BATCH_SIZE")

	cfg := Load(zerolog.Nop(), "")
	assert.Equal(t, defaultImageBatchSize, cfg.ImageBatchSize)
}
