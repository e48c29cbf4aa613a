package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppWiresCacheAndStoreUnderCacheDir(t *testing.T) {
	dir := t.TempDir()
	origCacheDir, origStorePath := cacheDir, storePath
	cacheDir = dir
	storePath = ""
	defer func() { cacheDir, storePath = origCacheDir, origStorePath }()

	a, err := newApp()
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, dir, a.cfg.EmbeddingCacheDir)
	_, err = os.Stat(filepath.Join(dir, "catalog.db"))
	assert.NoError(t, err)
}

func TestNewAppHonorsExplicitStorePath(t *testing.T) {
	dir := t.TempDir()
	origCacheDir, origStorePath := cacheDir, storePath
	cacheDir = dir
	storePath = filepath.Join(dir, "custom.db")
	defer func() { cacheDir, storePath = origCacheDir, origStorePath }()

	a, err := newApp()
	require.NoError(t, err)
	defer a.Close()

	_, err = os.Stat(storePath)
	assert.NoError(t, err)
}
