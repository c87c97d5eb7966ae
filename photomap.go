package photomap

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/photomap/cluster"
	"github.com/hupe1980/photomap/combined"
	"github.com/hupe1980/photomap/exifmeta"
	"github.com/hupe1980/photomap/foldercache"
	"github.com/hupe1980/photomap/geocode"
	"github.com/hupe1980/photomap/grouping"
	"github.com/hupe1980/photomap/internal/fs"
	"github.com/hupe1980/photomap/model"
)

// Version is the photomap library version.
const Version = "0.1.0"

// Session holds the explicit state previously ambient in a hosting
// application: the selected photo root, the clustering distance and the
// shared resolver. All operations are synchronous and callable from any
// dispatch model; blocking ones take a context for cooperative
// cancellation.
type Session struct {
	root            string
	fsys            fs.FileSystem
	logger          *Logger
	resolver        foldercache.Resolver
	extractor       foldercache.Extractor
	folders         *foldercache.Cache
	combined        *combined.Cache
	grouper         *grouping.Grouper
	clusterDistance float64
}

// Open creates a Session rooted at the given photo directory. An empty
// root is the FatalConfiguration case and yields ErrNoRoot; a root that
// does not exist is an error.
func Open(root string, opts ...Option) (*Session, error) {
	if root == "" {
		return nil, ErrNoRoot
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if _, err := o.fsys.Stat(root); err != nil {
		return nil, fmt.Errorf("photo root: %w", err)
	}

	resolver := o.resolver
	if resolver == nil {
		r, err := geocode.New(o.userAgent, geocode.WithLogger(o.logger.Logger))
		if err != nil {
			return nil, err
		}
		resolver = r
	}

	extractor := o.extractor
	if extractor == nil {
		extractor = exifmeta.Extractor{}
	}

	logger := o.logger.WithRoot(root)

	return &Session{
		root:            root,
		fsys:            o.fsys,
		logger:          logger,
		resolver:        resolver,
		extractor:       extractor,
		folders:         foldercache.New(o.fsys, logger.Logger),
		combined:        combined.New(o.fsys, logger.Logger),
		grouper:         grouping.New(logger.Logger),
		clusterDistance: o.clusterDistance,
	}, nil
}

// Root returns the selected photo root.
func (s *Session) Root() string { return s.root }

// ClusterDistance returns the session's clustering threshold in meters.
func (s *Session) ClusterDistance() float64 { return s.clusterDistance }

func (s *Session) guard() error {
	if s == nil || s.root == "" {
		return ErrNoRoot
	}
	return nil
}

// ScanFolder scans one directory inside the root: extracts metadata,
// resolves geocoding for unresolved coordinates and persists the folder
// cache. Returns the number of records in the resulting table.
//
// Cancellation via ctx discards all work of this invocation; nothing
// partial is persisted. progress may be nil.
func (s *Session) ScanFolder(ctx context.Context, dir string, progress foldercache.ProgressFunc) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}

	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	rel, err := filepath.Rel(s.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return 0, &ErrOutsideRoot{Root: s.root, Dir: dir}
	}

	table, err := s.folders.Scan(ctx, dir, s.extractor, s.resolver, progress)
	s.logger.LogScan(ctx, dir, len(table), err)
	if err != nil {
		return 0, err
	}

	return len(table), nil
}

// UnscannedFolders returns the root's immediate subdirectories that
// contain supported images but no folder cache file yet.
func (s *Session) UnscannedFolders() ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	entries, err := s.fsys.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var unscanned []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, e.Name())
		if _, err := s.fsys.Stat(filepath.Join(dir, foldercache.FileName)); err == nil {
			continue
		}
		if s.hasImages(dir) {
			unscanned = append(unscanned, dir)
		}
	}

	sort.Strings(unscanned)
	return unscanned, nil
}

func (s *Session) hasImages(dir string) bool {
	entries, err := s.fsys.ReadDir(dir)
	if err != nil {
		s.logger.Warn("image probe failed", "dir", dir, "error", err)
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			if s.hasImages(filepath.Join(dir, e.Name())) {
				return true
			}
			continue
		}
		if exifmeta.Supported(e.Name()) {
			return true
		}
	}
	return false
}

// Dataset returns the combined dataset, rebuilding it only when stale.
func (s *Session) Dataset(ctx context.Context) ([]model.Row, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.combined.Load(ctx, s.root)
	s.logger.LogDataset(ctx, len(rows), err)
	return rows, err
}

// RebuildDataset rebuilds the combined dataset unconditionally.
func (s *Session) RebuildDataset(ctx context.Context) ([]model.Row, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	rows, err := s.combined.Rebuild(ctx, s.root)
	s.logger.LogDataset(ctx, len(rows), err)
	return rows, err
}

// ForceInvalidate deletes the stored combined dataset and manifest; the
// next Dataset call rebuilds from the folder caches.
func (s *Session) ForceInvalidate() error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.combined.ForceInvalidate(s.root)
}

// Groups buckets the combined dataset by mode. Warnings report rows that
// lacked a capture timestamp in time-based modes.
func (s *Session) Groups(ctx context.Context, mode model.GroupMode) ([]grouping.Group, []grouping.Warning, error) {
	rows, err := s.Dataset(ctx)
	if err != nil {
		return nil, nil, err
	}
	groups, warnings := s.grouper.Group(rows, mode)
	return groups, warnings, nil
}

// Clusters geographically clusters the geotagged photos of one group
// using the session's cluster distance.
func (s *Session) Clusters(ctx context.Context, mode model.GroupMode, label string) ([]cluster.Cluster, error) {
	groups, _, err := s.Groups(ctx, mode)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Label == label {
			return cluster.Sweep(g.Members, s.clusterDistance), nil
		}
	}
	return nil, &ErrUnknownGroup{Label: label}
}
