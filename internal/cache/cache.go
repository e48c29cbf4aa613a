// Package cache implements the disk-backed embedding cache: a
// metadata.json index mapping URL hashes to <hash>.vec raw float32
// files, with an in-memory read-through layer over it. Writes are
// tmp-file-then-rename to survive a crash mid-write, and startup
// verifies every entry's .vec file actually has the right size before
// trusting it.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/atelierlab/portfoliomatch/internal/matcherr"
	"github.com/atelierlab/portfoliomatch/internal/vecmath"
)

const metadataVersion = "1"

// vecFileBytes is the fixed on-disk size of one embedding: 512
// float32 lanes at 4 bytes each.
const vecFileBytes = vecmath.Dim * 4

// entry is one metadata.json record.
type entry struct {
	URL       string `json:"url"`
	FilePath  string `json:"file_path"`
	CreatedAt string `json:"created_at"`
	ModelName string `json:"model_name"`
}

type metadataFile struct {
	Version    string           `json:"version"`
	ModelName  string           `json:"model_name"`
	Embeddings map[string]entry `json:"embeddings"`
}

// Cache is the disk+memory embedding cache for one model. Its zero
// value is not usable; construct with Open.
type Cache struct {
	dir       string
	modelName string
	log       zerolog.Logger

	mu       sync.RWMutex
	meta     map[string]entry
	inMemory map[string]vecmath.Embedding

	lockPath string
}

// Open initializes a Cache rooted at dir for modelName, recovering
// whatever valid entries survive from a prior run and shadowing (not
// deleting) entries generated under a different model name.
func Open(log zerolog.Logger, dir, modelName string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, matcherr.New(matcherr.KindCacheDirUnusable, fmt.Sprintf("cannot create cache dir %s", dir), err)
	}

	c := &Cache{
		dir:       dir,
		modelName: modelName,
		log:       log,
		meta:      make(map[string]entry),
		inMemory:  make(map[string]vecmath.Embedding),
		lockPath:  filepath.Join(dir, ".lock"),
	}

	if err := c.acquireLock(); err != nil {
		return nil, err
	}

	c.recover()
	return c, nil
}

// acquireLock claims an advisory lock on the cache directory via
// exclusive file creation, refusing to open a directory another
// process (or an unclean prior run) is already holding.
func (c *Cache) acquireLock() error {
	f, err := os.OpenFile(c.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return matcherr.New(matcherr.KindCacheDirUnusable, fmt.Sprintf("cache dir %s is locked by another process", c.dir), err)
		}
		return matcherr.New(matcherr.KindCacheDirUnusable, "failed to acquire cache lock", err)
	}
	return f.Close()
}

// Close releases the directory lock. It does not flush anything since
// every mutation is already durable on return.
func (c *Cache) Close() error {
	if err := os.Remove(c.lockPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Cache) metadataPath() string { return filepath.Join(c.dir, "metadata.json") }

// recover loads metadata.json (rebuilding empty if it is unreadable),
// verifies every referenced .vec file is exactly the right size, drops
// mismatched entries, and prunes .vec files with no metadata entry.
// Entries generated under a different model name are shadowed: kept on
// disk, but not loaded into the active in-memory index.
func (c *Cache) recover() {
	raw, err := os.ReadFile(c.metadataPath())
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn().Err(err).Msg("cache metadata unreadable, starting empty")
		}
		c.pruneOrphanedFiles()
		return
	}

	var mf metadataFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		c.log.Warn().Err(err).Msg("cache metadata corrupt, starting empty")
		c.pruneOrphanedFiles()
		return
	}

	validCount, shadowedCount, droppedCount := 0, 0, 0
	for hash, e := range mf.Embeddings {
		if e.ModelName != c.modelName {
			shadowedCount++
			continue
		}
		vecPath := filepath.Join(c.dir, hash+".vec")
		info, statErr := os.Stat(vecPath)
		if statErr != nil || info.Size() != vecFileBytes {
			droppedCount++
			continue
		}
		c.meta[hash] = e
		validCount++
	}

	if droppedCount > 0 {
		c.log.Warn().Int("dropped", droppedCount).Msg("dropped cache entries with missing or corrupt .vec files")
	}
	if shadowedCount > 0 {
		c.log.Info().Int("shadowed", shadowedCount).Str("model", c.modelName).Msg("shadowed cache entries generated under a different model")
	}
	c.log.Info().Int("entries", validCount).Msg("embedding cache recovered")

	c.pruneOrphanedFiles()
}

func (c *Cache) pruneOrphanedFiles() {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.vec"))
	if err != nil {
		return
	}
	for _, f := range files {
		hash := filepath.Base(f)
		hash = hash[:len(hash)-len(".vec")]
		if _, ok := c.meta[hash]; !ok {
			if rmErr := os.Remove(f); rmErr == nil {
				c.log.Debug().Str("file", f).Msg("removed orphaned vec file")
			}
		}
	}
}

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached embedding for url, if present under the
// cache's bound model name.
func (c *Cache) Get(url string) (vecmath.Embedding, bool) {
	hash := hashURL(url)

	c.mu.RLock()
	if v, ok := c.inMemory[hash]; ok {
		c.mu.RUnlock()
		return append(vecmath.Embedding(nil), v...), true
	}
	_, ok := c.meta[hash]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(c.dir, hash+".vec"))
	if err != nil {
		c.log.Warn().Str("url", url).Err(err).Msg("cache metadata present but vec file missing, dropping entry")
		c.mu.Lock()
		delete(c.meta, hash)
		c.mu.Unlock()
		c.persistMetadataLocked()
		return nil, false
	}

	v, err := vecmath.FromBytes(data)
	if err != nil {
		c.log.Warn().Str("url", url).Err(err).Msg("corrupt vec file, dropping entry")
		c.mu.Lock()
		delete(c.meta, hash)
		c.mu.Unlock()
		_ = os.Remove(filepath.Join(c.dir, hash+".vec"))
		c.persistMetadataLocked()
		return nil, false
	}

	c.mu.Lock()
	c.inMemory[hash] = v
	c.mu.Unlock()
	return append(vecmath.Embedding(nil), v...), true
}

// Set stores embedding for url, durably: the .vec file is written to a
// temp path, fsynced, and renamed into place before metadata.json is
// rewritten the same way.
func (c *Cache) Set(url string, embedding vecmath.Embedding, createdAt string) error {
	hash := hashURL(url)
	vecPath := filepath.Join(c.dir, hash+".vec")
	if err := writeFileAtomic(vecPath, vecmath.Bytes(embedding)); err != nil {
		return matcherr.New(matcherr.KindIOFailure, fmt.Sprintf("failed to write vec file for %s", url), err)
	}

	c.mu.Lock()
	c.meta[hash] = entry{URL: url, FilePath: hash + ".vec", CreatedAt: createdAt, ModelName: c.modelName}
	c.inMemory[hash] = append(vecmath.Embedding(nil), embedding...)
	c.mu.Unlock()

	return c.persistMetadataLocked()
}

// Invalidate removes url's cache entry, if any. It reports whether an
// entry existed.
func (c *Cache) Invalidate(url string) (bool, error) {
	hash := hashURL(url)
	c.mu.Lock()
	_, existed := c.meta[hash]
	delete(c.meta, hash)
	delete(c.inMemory, hash)
	c.mu.Unlock()

	if !existed {
		return false, nil
	}
	_ = os.Remove(filepath.Join(c.dir, hash+".vec"))
	return true, c.persistMetadataLocked()
}

// InvalidateAll clears every entry from the cache and returns the
// number removed.
func (c *Cache) InvalidateAll() (int, error) {
	c.mu.Lock()
	count := len(c.meta)
	for hash := range c.meta {
		_ = os.Remove(filepath.Join(c.dir, hash+".vec"))
	}
	c.meta = make(map[string]entry)
	c.inMemory = make(map[string]vecmath.Embedding)
	c.mu.Unlock()
	return count, c.persistMetadataLocked()
}

// Stats reports the cache's current shape, per the richer
// existing/missing accounting original_source/app/embedding_cache.py
// exposed.
type Stats struct {
	TotalEntries   int
	ExistingFiles  int
	MissingFiles   int
	TotalSizeBytes int64
	CacheDir       string
}

// Stats gathers a point-in-time view of the cache's on-disk shape.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{TotalEntries: len(c.meta), CacheDir: c.dir}
	for hash := range c.meta {
		info, err := os.Stat(filepath.Join(c.dir, hash+".vec"))
		if err != nil {
			s.MissingFiles++
			continue
		}
		s.ExistingFiles++
		s.TotalSizeBytes += info.Size()
	}
	return s
}

// CleanupOrphaned removes metadata entries whose .vec file is missing
// and .vec files with no corresponding metadata entry, returning the
// number of items cleaned.
func (c *Cache) CleanupOrphaned() (int, error) {
	c.mu.Lock()
	cleaned := 0
	for hash := range c.meta {
		if _, err := os.Stat(filepath.Join(c.dir, hash+".vec")); err != nil {
			delete(c.meta, hash)
			delete(c.inMemory, hash)
			cleaned++
		}
	}
	c.mu.Unlock()

	c.pruneOrphanedFiles()

	if cleaned > 0 {
		if err := c.persistMetadataLocked(); err != nil {
			return cleaned, err
		}
	}
	return cleaned, nil
}

func (c *Cache) persistMetadataLocked() error {
	c.mu.RLock()
	mf := metadataFile{Version: metadataVersion, ModelName: c.modelName, Embeddings: make(map[string]entry, len(c.meta))}
	for k, v := range c.meta {
		mf.Embeddings[k] = v
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return matcherr.New(matcherr.KindIOFailure, "failed to marshal cache metadata", err)
	}
	if err := writeFileAtomic(c.metadataPath(), data); err != nil {
		return matcherr.New(matcherr.KindIOFailure, "failed to persist cache metadata", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory as
// path, fsyncs it, then renames it into place — surviving a crash
// mid-write without ever leaving path partially written.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
