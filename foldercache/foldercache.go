// Package foldercache maintains the persisted per-directory table of
// resolved photo metadata.
//
// Each scanned directory carries one cache file mapping relative photo
// paths to coordinates, country/city names and capture timestamps. The
// table is incrementally updated and never destructively overwritten:
// fields only fill, rows are never auto-deleted, and a cancelled scan
// persists nothing.
package foldercache

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	gofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/hupe1980/photomap/exifmeta"
	"github.com/hupe1980/photomap/internal/fs"
	"github.com/hupe1980/photomap/model"
)

const (
	// FileName is the per-directory cache file name.
	FileName = ".photomap_cache.csv"

	// versionComment marks the current schema. Readers skip it as a CSV
	// comment, so files written without it (v1) still load.
	versionComment = "# photomap folder cache v2"
)

var header = []string{"filepath", "latitude", "longitude", "country", "city", "datetime_original"}

// Table is the full mapping of relative photo path to record for one
// directory.
type Table map[string]model.PhotoRecord

func (t Table) clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Extractor yields per-file metadata. Implementations degrade to a zero
// Meta on failure instead of returning errors.
type Extractor interface {
	Extract(path string) exifmeta.Meta
}

// Resolver reverse-geocodes a coordinate. Implementations never fail the
// caller; unknown results are empty strings.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (country, city string)
	ResetSession()
}

// ProgressFunc receives scan progress. done counts processed files out of
// total; path is the file currently being processed, empty on completion.
type ProgressFunc func(done, total int, path string)

// Cache reads, updates and persists folder cache tables.
type Cache struct {
	fs     fs.FileSystem
	logger *slog.Logger
}

// New creates a Cache. A nil filesystem or logger falls back to the local
// filesystem and a discarding logger.
func New(fsys fs.FileSystem, logger *slog.Logger) *Cache {
	if fsys == nil {
		fsys = fs.Default
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{fs: fsys, logger: logger}
}

// Load parses the persisted table at path. An absent file yields an empty
// table; malformed rows are skipped with a warning, never fatal.
func (c *Cache) Load(path string) Table {
	t := make(Table)

	f, err := c.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return t
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.Comment = '#'
	rd.FieldsPerRecord = -1

	skipped := 0
	for {
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(row) > 0 && row[0] == header[0] {
			continue // header row
		}
		if len(row) < 5 || row[0] == "" {
			skipped++
			continue
		}

		rec := model.PhotoRecord{
			Path:    row[0],
			Country: row[3],
			City:    row[4],
		}
		if len(row) > 5 {
			// Legacy v1 files lack the datetime_original column; its
			// absence means null, not a load failure.
			rec.TakenAt = row[5]
		}
		if row[1] != "" && row[2] != "" {
			lat, errLat := strconv.ParseFloat(row[1], 64)
			lon, errLon := strconv.ParseFloat(row[2], 64)
			if errLat == nil && errLon == nil {
				rec.Coord = &model.Coordinate{Lat: lat, Lon: lon}
			}
		}

		t[rec.Path] = rec
	}

	if skipped > 0 {
		c.logger.Warn("skipped malformed cache rows", "path", path, "rows", skipped)
	}

	return t
}

// Save persists the full table to path with write-then-replace semantics:
// an interrupted write never corrupts an existing good file.
func (c *Cache) Save(path string, t Table) error {
	tmp := path + ".tmp"

	f, err := c.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	fail := func(err error) error {
		f.Close()
		c.fs.Remove(tmp)
		return err
	}

	if _, err := f.Write([]byte(versionComment + "\n")); err != nil {
		return fail(err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fail(err)
	}
	for _, rel := range sortedPaths(t) {
		rec := t[rel]
		row := []string{rec.Path, "", "", rec.Country, rec.City, rec.TakenAt}
		if rec.Coord != nil {
			row[1] = strconv.FormatFloat(rec.Coord.Lat, 'f', -1, 64)
			row[2] = strconv.FormatFloat(rec.Coord.Lon, 'f', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return fail(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(err)
	}

	if err := f.Sync(); err != nil {
		return fail(err)
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

// Scan recursively enumerates supported image files under folder and
// updates its cache table: fully resolved records are skipped, missing
// fields are filled from extraction, and coordinates without a known
// country are reverse-geocoded through resolver.
//
// Cancellation is polled at each file boundary. A cancelled scan returns
// ctx.Err() and persists nothing; work is all-or-nothing per invocation.
// Per-file failures degrade to null fields and never abort the scan.
func (c *Cache) Scan(ctx context.Context, folder string, ex Extractor, res Resolver, progress ProgressFunc) (Table, error) {
	cachePath := filepath.Join(folder, FileName)
	work := c.Load(cachePath).clone()

	res.ResetSession()

	files := c.listImages(folder)
	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(i, len(files), rel)
		}

		rec, ok := work[rel]
		if ok && rec.Resolved() {
			continue
		}
		rec.Path = rel

		meta := ex.Extract(filepath.Join(folder, rel))
		if rec.Coord == nil && meta.Coord != nil {
			rec.Coord = meta.Coord
		}
		if rec.TakenAt == "" && meta.TakenAt != "" {
			rec.TakenAt = meta.TakenAt
		}

		// Geocode only when there is a coordinate and the country is
		// still unknown; a known country is never re-resolved.
		if rec.Coord != nil && rec.Country == "" {
			country, city := res.Resolve(ctx, rec.Coord.Lat, rec.Coord.Lon)
			if country != "" {
				rec.Country = country
			}
			if rec.City == "" && city != "" {
				rec.City = city
			}
		}

		work[rel] = rec
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(len(files), len(files), "")
	}

	if err := c.Save(cachePath, work); err != nil {
		// Persistence failure degrades to absent data: the scan result is
		// still usable and a later scan will redo the work.
		c.logger.Warn("folder cache save failed", "path", cachePath, "error", err)
	}

	return work, nil
}

// listImages returns the sorted relative paths of supported image files
// under folder. Walk errors skip the affected entry and continue.
func (c *Cache) listImages(folder string) []string {
	var files []string

	err := filepath.WalkDir(folder, func(path string, d gofs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("scan walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !exifmeta.Supported(path) {
			return nil
		}
		rel, relErr := filepath.Rel(folder, path)
		if relErr != nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		c.logger.Warn("scan walk aborted", "folder", folder, "error", err)
	}

	sort.Strings(files)
	return files
}

func sortedPaths(t Table) []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
