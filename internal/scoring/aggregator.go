// Package scoring implements the artist-level score aggregation
// strategies used to collapse a multi-image portfolio's per-image
// similarity scores into a single ranking score.
package scoring

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Strategy names one of the four aggregation functions.
type Strategy string

const (
	Max          Strategy = "max"
	Mean         Strategy = "mean"
	WeightedMean Strategy = "weighted_mean"
	TopKMean     Strategy = "top_k_mean"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Max, Mean, WeightedMean, TopKMean:
		return true
	}
	return false
}

// Aggregator collapses a slice of per-image similarity scores into a
// single artist-level score using its configured strategy.
type Aggregator struct {
	strategy Strategy
	topK     int
	log      zerolog.Logger
}

// New builds an Aggregator. It falls back to Max and logs a warning if
// strategy is not one of the four recognized names.
func New(log zerolog.Logger, strategy Strategy, topK int) *Aggregator {
	if !strategy.Valid() {
		log.Warn().Str("strategy", string(strategy)).Msg("unknown aggregation strategy, falling back to max")
		strategy = Max
	}
	if topK <= 0 {
		topK = 3
	}
	return &Aggregator{strategy: strategy, topK: topK, log: log}
}

// Strategy returns the aggregator's configured strategy.
func (a *Aggregator) Strategy() Strategy { return a.strategy }

// Aggregate combines scores into a single value per the aggregator's
// strategy. It returns an error for an empty input; callers should
// treat that as "exclude this artist" per spec §7's total-failure case,
// not as a system error.
func (a *Aggregator) Aggregate(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, fmt.Errorf("scoring: cannot aggregate empty score list")
	}
	switch a.strategy {
	case Mean:
		return mean(scores), nil
	case WeightedMean:
		return weightedMean(scores), nil
	case TopKMean:
		return topKMean(scores, a.topK), nil
	default:
		return max(scores), nil
	}
}

func max(scores []float64) float64 {
	m := scores[0]
	for _, s := range scores[1:] {
		if s > m {
			m = s
		}
	}
	return m
}

func mean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// weightedMean implements Σ(sᵢ²)/Σ(sᵢ), returning 0 when every score
// is zero to avoid dividing by zero.
func weightedMean(scores []float64) float64 {
	var weightedSum, weightSum float64
	for _, s := range scores {
		weightedSum += s * s
		weightSum += s
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

func topKMean(scores []float64, k int) float64 {
	if k > len(scores) {
		k = len(scores)
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return mean(sorted[:k])
}
