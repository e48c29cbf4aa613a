package recommender

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierlab/portfoliomatch/internal/cache"
	"github.com/atelierlab/portfoliomatch/internal/catalog"
	"github.com/atelierlab/portfoliomatch/internal/encoder"
	"github.com/atelierlab/portfoliomatch/internal/imaging"
	"github.com/atelierlab/portfoliomatch/internal/matcherr"
	"github.com/atelierlab/portfoliomatch/internal/metrics"
	"github.com/atelierlab/portfoliomatch/internal/scoring"
)

// countingServer wraps httptest.Server with a request counter, so
// tests can assert a warm cache issues zero further HTTP requests.
type countingServer struct {
	*httptest.Server
	requests atomic.Int64
}

func (s *countingServer) requestCount() int64 { return s.requests.Load() }

func testImageServer(t *testing.T, fail bool) *countingServer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{G: 255, A: 255})
		}
	}
	buf := &appendWriter{}
	require.NoError(t, png.Encode(buf, img))

	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.requests.Add(1)
		if fail && r.URL.Path == "/broken.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.b)
	}))
	return cs
}

type appendWriter struct{ b []byte }

func (a *appendWriter) Write(p []byte) (int, error) {
	a.b = append(a.b, p...)
	return len(p), nil
}

func newTestRecommender(t *testing.T, strategy scoring.Strategy) (*Recommender, *countingServer) {
	t.Helper()
	log := zerolog.Nop()
	srv := testImageServer(t, true)

	f := imaging.New(log, imaging.Config{Timeout: 2 * time.Second, MaxRetries: 1, MaxBytes: 1 << 20})
	enc := encoder.NewSynthetic()
	c, err := cache.Open(log, t.TempDir(), "synthetic-test-model")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	agg := scoring.New(log, strategy, 3)
	met := metrics.NewCollector()

	r := New(log, f, enc, c, agg, met, Config{ImageBatchSize: 4, ImageDownloadWorkers: 2})
	return r, srv
}

func TestIngestAndRecommendWarmIndex(t *testing.T) {
	r, srv := newTestRecommender(t, scoring.Mean)
	defer srv.Close()

	profiles := []catalog.ArtistProfile{
		{ID: 1, Name: "Ada", ImageURLs: []string{srv.URL + "/a.png", srv.URL + "/b.png"}},
		{ID: 2, Name: "Bea", ImageURLs: []string{srv.URL + "/c.png"}},
	}
	require.NoError(t, r.Ingest(context.Background(), profiles))
	assert.Equal(t, StateReady, r.State())

	results, err := r.Recommend(context.Background(), catalog.Brief{Title: "t", Description: "d"}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIngestSecondRunHitsWarmCacheWithZeroRequests(t *testing.T) {
	r, srv := newTestRecommender(t, scoring.Mean)
	defer srv.Close()

	profiles := []catalog.ArtistProfile{
		{ID: 1, Name: "Ada", ImageURLs: []string{srv.URL + "/a.png", srv.URL + "/b.png"}},
	}
	require.NoError(t, r.Ingest(context.Background(), profiles))
	firstRunRequests := srv.requestCount()
	assert.Positive(t, firstRunRequests)

	require.NoError(t, r.Ingest(context.Background(), profiles))
	assert.Equal(t, firstRunRequests, srv.requestCount(), "second ingest against a warm cache must not issue new HTTP requests")

	results, err := r.Recommend(context.Background(), catalog.Brief{Title: "t", Description: "d"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].NumIllustrations)
}

func TestIngestExcludesArtistWithAllImagesFailing(t *testing.T) {
	r, srv := newTestRecommender(t, scoring.Mean)
	defer srv.Close()

	profiles := []catalog.ArtistProfile{
		{ID: 1, Name: "Ada", ImageURLs: []string{srv.URL + "/a.png"}},
		{ID: 2, Name: "Bea", ImageURLs: []string{srv.URL + "/broken.png"}},
	}
	require.NoError(t, r.Ingest(context.Background(), profiles))

	results, err := r.Recommend(context.Background(), catalog.Brief{Title: "t", Description: "d"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ArtistID)
}

func TestRecommendBeforeReadyReturnsNotReady(t *testing.T) {
	r, srv := newTestRecommender(t, scoring.Mean)
	defer srv.Close()

	_, err := r.Recommend(context.Background(), catalog.Brief{Title: "t"}, 5)
	require.Error(t, err)
	kind, ok := matcherr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, matcherr.KindNotReady, kind)
}

func TestRecommendEmptyIndexReturnsEmptySlice(t *testing.T) {
	r, srv := newTestRecommender(t, scoring.Mean)
	defer srv.Close()

	require.NoError(t, r.Ingest(context.Background(), nil))
	results, err := r.Recommend(context.Background(), catalog.Brief{Title: "t"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRankTieBreaksByAscendingArtistID(t *testing.T) {
	r, srv := newTestRecommender(t, scoring.Mean)
	defer srv.Close()

	// Ids 10 and 2, per spec's own S5 scenario: a plain string compare
	// would rank "10" before "2" (since '1' < '2'), the wrong order.
	// Same image content for every artist means identical scores, so
	// only the numeric tie-break decides the order.
	profiles := []catalog.ArtistProfile{
		{ID: 10, Name: "Ten", ImageURLs: []string{srv.URL + "/a.png"}},
		{ID: 2, Name: "Two", ImageURLs: []string{srv.URL + "/a.png"}},
	}
	require.NoError(t, r.Ingest(context.Background(), profiles))

	results, err := r.Recommend(context.Background(), catalog.Brief{Title: "t", Description: "d"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ArtistID)
	assert.Equal(t, int64(10), results[1].ArtistID)
}
