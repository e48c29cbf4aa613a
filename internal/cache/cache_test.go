package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

func testEmbedding(seed float32) vecmath.Embedding {
	v := make(vecmath.Embedding, vecmath.Dim)
	v[0] = seed
	return vecmath.Normalize(v)
}

func TestSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c.Close()

	emb := testEmbedding(1)
	require.NoError(t, c.Set("http://example.com/a.png", emb, "2026-01-01T00:00:00Z"))

	got, ok := c.Get("http://example.com/a.png")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32(emb), []float32(got), 1e-6)
}

func TestGetMissReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("http://example.com/missing.png")
	assert.False(t, ok)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	require.NoError(t, c1.Set("http://example.com/a.png", testEmbedding(2), "2026-01-01T00:00:00Z"))
	require.NoError(t, c1.Close())

	c2, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c2.Close()

	got, ok := c2.Get("http://example.com/a.png")
	require.True(t, ok)
	assert.Len(t, got, vecmath.Dim)
}

func TestModelChangeShadowsOldEntries(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	require.NoError(t, c1.Set("http://example.com/a.png", testEmbedding(3), "2026-01-01T00:00:00Z"))
	require.NoError(t, c1.Close())

	c2, err := Open(zerolog.Nop(), dir, "model-b")
	require.NoError(t, err)
	defer c2.Close()

	_, ok := c2.Get("http://example.com/a.png")
	assert.False(t, ok, "entries from a different model must be shadowed, not visible")
}

func TestInvalidate(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("http://example.com/a.png", testEmbedding(4), "2026-01-01T00:00:00Z"))
	existed, err := c.Invalidate("http://example.com/a.png")
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok := c.Get("http://example.com/a.png")
	assert.False(t, ok)
}

func TestCorruptVecFileRecoveredAsDroppedEntry(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	require.NoError(t, c1.Set("http://example.com/a.png", testEmbedding(5), "2026-01-01T00:00:00Z"))
	require.NoError(t, c1.Close())

	hash := hashURL("http://example.com/a.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash+".vec"), []byte("short"), 0o644))

	c2, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c2.Close()

	_, ok := c2.Get("http://example.com/a.png")
	assert.False(t, ok, "a corrupt-sized vec file must be dropped at recovery")
}

func TestStatsAndCleanupOrphaned(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("http://example.com/a.png", testEmbedding(6), "2026-01-01T00:00:00Z"))
	hash := hashURL("http://example.com/a.png")
	require.NoError(t, os.Remove(filepath.Join(dir, hash+".vec")))

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 0, stats.ExistingFiles)
	assert.Equal(t, 1, stats.MissingFiles)

	cleaned, err := c.CleanupOrphaned()
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestOpenTwiceFailsOnLock(t *testing.T) {
	dir := t.TempDir()
	c1, err := Open(zerolog.Nop(), dir, "model-a")
	require.NoError(t, err)
	defer c1.Close()

	_, err = Open(zerolog.Nop(), dir, "model-a")
	assert.Error(t, err)
}
