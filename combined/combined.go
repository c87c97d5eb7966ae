// Package combined maintains the root-level materialized union of all
// folder caches: one compressed columnar dataset file plus a JSON
// manifest of folder-cache modification times used to detect staleness.
//
// Per-folder caches mutate far less often than the combined view is
// read; the two-tier design amortizes expensive re-scans while keeping a
// cheap correctness check against drift. The stored dataset/manifest
// pair assumes a single writer at a time; genuinely concurrent writers
// need external mutual exclusion around Rebuild and ForceInvalidate.
package combined

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/photomap/foldercache"
	"github.com/hupe1980/photomap/internal/fs"
	"github.com/hupe1980/photomap/model"
)

const (
	// DatasetFileName is the combined dataset file at the root.
	DatasetFileName = "combined_dataset.bin"

	// ManifestFileName is the staleness manifest at the root.
	ManifestFileName = "cache_manifest.json"
)

// Manifest maps absolute folder-cache file paths to their last observed
// modification time in Unix nanoseconds.
type Manifest map[string]int64

// IsStale reports whether the stored manifest no longer matches the
// observed one. Any addition, removal or modification-time change
// invalidates; only exact equality is fresh.
func IsStale(stored, observed Manifest) bool {
	if len(stored) != len(observed) {
		return true
	}
	for path, mtime := range observed {
		if stored[path] != mtime {
			return true
		}
	}
	return false
}

// Cache materializes and serves the combined dataset.
type Cache struct {
	fs      fs.FileSystem
	folders *foldercache.Cache
	logger  *slog.Logger
}

// New creates a Cache. Nil arguments fall back to the local filesystem
// and a discarding logger.
func New(fsys fs.FileSystem, logger *slog.Logger) *Cache {
	if fsys == nil {
		fsys = fs.Default
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{
		fs:      fsys,
		folders: foldercache.New(fsys, logger),
		logger:  logger,
	}
}

// Discover walks root and records every folder-cache file's absolute
// path and modification time: the observed manifest.
func (c *Cache) Discover(root string) Manifest {
	m := make(Manifest)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	c.discover(root, m)
	return m
}

func (c *Cache) discover(dir string, m Manifest) {
	entries, err := c.fs.ReadDir(dir)
	if err != nil {
		c.logger.Warn("discover read dir failed", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			c.discover(path, m)
			continue
		}
		if e.Name() != foldercache.FileName {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		m[path] = info.ModTime().UnixNano()
	}
}

// Rebuild loads every discovered folder cache, tags rows with their
// source folder relative to root, normalizes types and persists the
// dataset together with the observed manifest as the new stored pair.
//
// Persistence failures degrade to a warning; the in-memory dataset is
// still returned and the next Load simply rebuilds again.
func (c *Cache) Rebuild(ctx context.Context, root string) ([]model.Row, error) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	observed := c.Discover(root)
	cachePaths := make([]string, 0, len(observed))
	for p := range observed {
		cachePaths = append(cachePaths, p)
	}
	sort.Strings(cachePaths)

	rows := make([]model.Row, 0)
	for _, cachePath := range cachePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Dir(cachePath)
		src, err := filepath.Rel(root, dir)
		if err != nil {
			src = dir
		}

		table := c.folders.Load(cachePath)
		for _, rel := range sortedTablePaths(table) {
			rec := table[rel]
			rows = append(rows, model.Row{
				SourceFolder: src,
				Path:         filepath.Join(dir, rec.Path),
				Coord:        rec.Coord,
				Country:      rec.Country,
				City:         rec.City,
				TakenAt:      model.ParseTakenAt(rec.TakenAt),
			})
		}
	}

	if err := c.persist(root, rows, observed); err != nil {
		c.logger.Warn("combined cache persist failed", "root", root, "error", err)
	}

	return rows, nil
}

// Load returns the stored dataset if present and not stale; otherwise it
// rebuilds. A fresh Load never rewrites the stored pair.
func (c *Cache) Load(ctx context.Context, root string) ([]model.Row, error) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	// The pair is atomic: a missing or corrupt half means both are
	// treated as absent.
	if stored, ok := c.readManifest(filepath.Join(root, ManifestFileName)); ok {
		if !IsStale(stored, c.Discover(root)) {
			if rows, ok := c.readDataset(filepath.Join(root, DatasetFileName)); ok {
				return rows, nil
			}
		}
	}

	return c.Rebuild(ctx, root)
}

// ForceInvalidate deletes the stored dataset and manifest, forcing the
// next Load to rebuild.
func (c *Cache) ForceInvalidate(root string) error {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	var firstErr error
	for _, name := range []string{DatasetFileName, ManifestFileName} {
		if err := c.fs.Remove(filepath.Join(root, name)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Cache) persist(root string, rows []model.Row, observed Manifest) error {
	data, err := encodeDataset(rows)
	if err != nil {
		return err
	}
	if err := c.writeAtomic(filepath.Join(root, DatasetFileName), data); err != nil {
		return err
	}

	manifestData, err := json.MarshalIndent(observed, "", "  ")
	if err != nil {
		return err
	}
	return c.writeAtomic(filepath.Join(root, ManifestFileName), manifestData)
}

// writeAtomic writes data with write-then-replace semantics.
func (c *Cache) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := c.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		c.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		c.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		c.fs.Remove(tmp)
		return err
	}

	if err := c.fs.Rename(tmp, path); err != nil {
		c.fs.Remove(tmp)
		return err
	}
	return nil
}

func (c *Cache) readManifest(path string) (Manifest, bool) {
	data, err := c.readFile(path)
	if err != nil {
		return nil, false
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		// Corrupt manifest forces a full rebuild.
		c.logger.Warn("manifest malformed, forcing rebuild", "path", path, "error", err)
		return nil, false
	}
	return m, true
}

func (c *Cache) readDataset(path string) ([]model.Row, bool) {
	data, err := c.readFile(path)
	if err != nil {
		return nil, false
	}
	rows, err := decodeDataset(data)
	if err != nil {
		c.logger.Warn("dataset unreadable, forcing rebuild", "path", path, "error", err)
		return nil, false
	}
	return rows, true
}

func (c *Cache) readFile(path string) ([]byte, error) {
	f, err := c.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func sortedTablePaths(t foldercache.Table) []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
