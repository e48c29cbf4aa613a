package scoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateStrategies(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.7, 0.1}

	cases := []struct {
		strategy Strategy
		topK     int
		want     float64
	}{
		{Max, 3, 0.9},
		{Mean, 3, 0.625},
		{TopKMean, 3, 0.8},
		{WeightedMean, 3, 0.78},
	}

	for _, tc := range cases {
		t.Run(string(tc.strategy), func(t *testing.T) {
			agg := New(zerolog.Nop(), tc.strategy, tc.topK)
			got, err := agg.Aggregate(scores)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestAggregateEmptyReturnsError(t *testing.T) {
	agg := New(zerolog.Nop(), Mean, 3)
	_, err := agg.Aggregate(nil)
	assert.Error(t, err)
}

func TestWeightedMeanAllZero(t *testing.T) {
	agg := New(zerolog.Nop(), WeightedMean, 3)
	got, err := agg.Aggregate([]float64{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestTopKMeanFewerThanK(t *testing.T) {
	agg := New(zerolog.Nop(), TopKMean, 5)
	got, err := agg.Aggregate([]float64{0.4, 0.6})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestUnknownStrategyFallsBackToMax(t *testing.T) {
	agg := New(zerolog.Nop(), Strategy("bogus"), 3)
	assert.Equal(t, Max, agg.Strategy())
	got, err := agg.Aggregate([]float64{0.2, 0.9, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.9, got)
}
