// Package cache implements the content-addressed, context-aware research
// result store (C4 Cache Engine): a two-level cache pairing an in-memory
// index with an on-disk JSON tree, generalized from the teacher's
// Redis+Postgres two-tier shape to a single process's in-memory-index +
// on-disk-JSON pair.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fortitude-core/fortitude/internal/model"
	"github.com/fortitude-core/fortitude/pkg/observability"
)

// Cache is the process-local content-addressed store. All public methods
// are safe for concurrent use.
type Cache struct {
	basePath string
	ttl      time.Duration

	mu    sync.RWMutex
	index map[string]model.CacheEntry

	logger  observability.Logger
	metrics observability.MetricsClient
}

// New creates a Cache rooted at basePath with the given default TTL for
// newly stored entries.
func New(basePath string, ttl time.Duration, logger observability.Logger, metrics observability.MetricsClient) *Cache {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Cache{
		basePath: basePath,
		ttl:      ttl,
		index:    make(map[string]model.CacheEntry),
		logger:   logger.WithPrefix("cache"),
		metrics:  metrics,
	}
}

// ErrCorrupted wraps a deserialization failure so callers can distinguish
// "file unreadable" from "file contains invalid JSON".
type ErrCorrupted struct {
	Path string
	Err  error
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("cache: corrupted entry at %s: %v", e.Path, e.Err)
}

func (e *ErrCorrupted) Unwrap() error { return e.Err }

// Store writes result to disk and inserts it into the in-memory index,
// returning the key the entry was stored under. It implements the store
// protocol in full: key selection, path computation, atomic write,
// content hashing, and index insertion that is immediately observable by
// a subsequent Retrieve in the same process (I3).
func (c *Cache) Store(ctx context.Context, result *model.ResearchResult) (string, error) {
	start := time.Now()

	key := result.Metadata.CacheKey()
	if key == "" {
		key = ComputeKey(result.Request)
		result.Metadata.SetCacheKeyOnce(key)
	}

	path := c.filePathFor(result.Request, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cache: creating parent directories for %s: %w", path, err)
	}

	serialized, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cache: serializing result for key %s: %w", key, err)
	}

	if err := writeAtomic(path, serialized); err != nil {
		_ = os.Remove(path + ".tmp")
		return "", fmt.Errorf("cache: writing %s: %w", path, err)
	}

	now := time.Now()
	entry := model.CacheEntry{
		Key:           key,
		FilePath:      path,
		ResearchType:  result.Request.ResearchType(),
		OriginalQuery: result.Request.OriginalQuery(),
		SizeBytes:     int64(len(serialized)),
		ContentHash:   ContentHash(serialized),
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.ttl),
	}

	c.mu.Lock()
	c.index[key] = entry
	c.mu.Unlock()

	c.metrics.RecordCacheOperation("store", true, time.Since(start).Seconds())
	c.logger.Debug("cache store", map[string]interface{}{"key": key, "path": path, "size_bytes": entry.SizeBytes})

	return key, nil
}

// Retrieve implements the optimized retrieve protocol: an in-memory index
// hit avoids touching the filesystem probe path entirely (I3/P4); an
// index miss falls back to a bounded scan (a correctness net, not the hot
// path). A present-but-expired entry returns a miss without deleting it
// (I4); cleanup is a separate operation.
func (c *Cache) Retrieve(ctx context.Context, key string) (*model.ResearchResult, bool, error) {
	start := time.Now()

	c.mu.RLock()
	entry, ok := c.index[key]
	c.mu.RUnlock()

	if ok {
		if entry.IsExpired(time.Now()) {
			c.metrics.RecordCacheOperation("retrieve", false, time.Since(start).Seconds())
			c.logger.Debug("cache expired", map[string]interface{}{"key": key})
			return nil, false, nil
		}
		result, err := readResult(entry.FilePath)
		if err != nil {
			return nil, false, err
		}
		c.metrics.RecordCacheOperation("retrieve", true, time.Since(start).Seconds())
		c.logger.Debug("cache hit", map[string]interface{}{"key": key, "path": "index"})
		return result, true, nil
	}

	result, path, found, err := c.probeFilesystem(key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		c.metrics.RecordCacheOperation("retrieve", false, time.Since(start).Seconds())
		c.logger.Debug("cache miss", map[string]interface{}{"key": key})
		return nil, false, nil
	}

	c.logger.Debug("cache hit", map[string]interface{}{"key": key, "path": "filesystem_probe"})
	c.metrics.RecordCacheOperation("retrieve", true, time.Since(start).Seconds())
	_ = path
	return result, true, nil
}

// probeFilesystem performs the bounded fallback scan described in §4.4:
// for each research type in priority order, check the direct path, then
// recursively scan the context-aware subtree for a matching filename.
func (c *Cache) probeFilesystem(key string) (*model.ResearchResult, string, bool, error) {
	name := resultFileName(key)
	for _, rt := range researchTypePriority {
		direct := c.directPath(rt, key)
		if result, err := tryRead(direct); err != nil {
			return nil, "", false, err
		} else if result != nil {
			return result, direct, true, nil
		}

		root := c.contextAwareRoot(rt)
		found, path, err := findInTree(root, name)
		if err != nil {
			return nil, "", false, err
		}
		if found {
			result, err := readResult(path)
			if err != nil {
				return nil, "", false, err
			}
			return result, path, true, nil
		}
	}
	return nil, "", false, nil
}

func tryRead(path string) (*model.ResearchResult, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: stat %s: %w", path, err)
	}
	return readResult(path)
}

func findInTree(root, filename string) (bool, string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("cache: stat %s: %w", root, err)
	}

	var match string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.Name() == filename {
			match = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, "", fmt.Errorf("cache: scanning %s: %w", root, err)
	}
	if match == "" {
		return false, "", nil
	}
	return true, match, nil
}

// Delete removes the on-disk file first, then the index entry, matching
// the delete protocol's ordering.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.RLock()
	entry, ok := c.index[key]
	c.mu.RUnlock()

	path := ""
	if ok {
		path = entry.FilePath
	} else {
		_, probedPath, found, err := c.probeFilesystem(key)
		if err != nil {
			return err
		}
		if found {
			path = probedPath
		}
	}

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache: deleting %s: %w", path, err)
		}
	}

	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()

	c.logger.Debug("cache delete", map[string]interface{}{"key": key})
	return nil
}

// CleanupExpired walks the index, deletes every expired entry's file,
// and removes it from the index. It is eventually consistent with
// concurrent stores/retrieves that race it.
func (c *Cache) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now()

	c.mu.RLock()
	var expired []model.CacheEntry
	for _, entry := range c.index {
		if entry.IsExpired(now) {
			expired = append(expired, entry)
		}
	}
	c.mu.RUnlock()

	removed := 0
	for _, entry := range expired {
		if err := os.Remove(entry.FilePath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("cleanup failed to remove file", map[string]interface{}{"key": entry.Key, "error": err.Error()})
			continue
		}
		c.mu.Lock()
		delete(c.index, entry.Key)
		c.mu.Unlock()
		removed++
	}

	c.logger.Info("cache cleanup complete", map[string]interface{}{"removed": removed})
	return removed, nil
}

// ReconcileIndex reconciles the in-memory index against the on-disk tree:
// files present on disk but missing from the index are added, index
// entries whose file no longer exists are removed. This is the "bounded
// repair scan" §4.4 names for CacheIndex consistency, callable by a host
// application at startup; nothing in the core schedules it automatically.
func (c *Cache) ReconcileIndex(ctx context.Context) (added, removed int, err error) {
	root := filepath.Join(c.basePath, "research_results")
	onDisk := make(map[string]string) // key -> path

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		key := stripExt(filepath.Base(path))
		onDisk[key] = path
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return 0, 0, fmt.Errorf("cache: reconcile scan: %w", walkErr)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.index {
		if _, ok := onDisk[key]; !ok {
			delete(c.index, key)
			removed++
		}
	}

	for key, path := range onDisk {
		if _, ok := c.index[key]; ok {
			continue
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			c.logger.Warn("reconcile skipping unreadable file", map[string]interface{}{"path": path, "error": readErr.Error()})
			continue
		}
		var result model.ResearchResult
		if err := json.Unmarshal(raw, &result); err != nil {
			c.logger.Warn("reconcile skipping corrupted file", map[string]interface{}{"path": path, "error": err.Error()})
			continue
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		c.index[key] = model.CacheEntry{
			Key:           key,
			FilePath:      path,
			ResearchType:  result.Request.ResearchType(),
			OriginalQuery: result.Request.OriginalQuery(),
			SizeBytes:     info.Size(),
			ContentHash:   ContentHash(raw),
			CreatedAt:     info.ModTime(),
			ExpiresAt:     info.ModTime().Add(c.ttl),
		}
		added++
	}

	c.logger.Info("index reconciled", map[string]interface{}{"added": added, "removed": removed})
	return added, removed, nil
}

// PersistIndex writes the in-memory index to index/cache_index.json as
// pretty JSON via the same atomic-rename path Store uses, so a process
// restart can rehydrate it with LoadIndex instead of paying for a full
// ReconcileIndex scan (§6's "persisted mirror of the in-memory index").
func (c *Cache) PersistIndex() error {
	c.mu.RLock()
	snapshot := make(map[string]model.CacheEntry, len(c.index))
	for k, v := range c.index {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	path := c.indexPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: creating index directory for %s: %w", path, err)
	}

	serialized, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: serializing index: %w", err)
	}

	if err := writeAtomic(path, serialized); err != nil {
		_ = os.Remove(path + ".tmp")
		return fmt.Errorf("cache: writing index %s: %w", path, err)
	}

	c.logger.Debug("index persisted", map[string]interface{}{"path": path, "entries": len(snapshot)})
	return nil
}

// LoadIndex replaces the in-memory index with the contents of
// index/cache_index.json. A missing file is not an error: a fresh Cache
// has nothing to rehydrate from yet, so the caller falls back to an empty
// index (or a ReconcileIndex scan if it wants the on-disk tree re-walked).
func (c *Cache) LoadIndex() error {
	path := c.indexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: reading index %s: %w", path, err)
	}

	var loaded map[string]model.CacheEntry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return &ErrCorrupted{Path: path, Err: err}
	}

	c.mu.Lock()
	c.index = loaded
	c.mu.Unlock()

	c.logger.Debug("index loaded", map[string]interface{}{"path": path, "entries": len(loaded)})
	return nil
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func readResult(path string) (*model.ResearchResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cache: reading %s: %w", path, err)
	}
	var result model.ResearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &ErrCorrupted{Path: path, Err: err}
	}
	return &result, nil
}

// writeAtomic writes data to a temp file in the same directory as path
// then renames it into place, so any observer sees either the old file
// or a fully-written new one, never a torn write.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
