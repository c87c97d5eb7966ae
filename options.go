package photomap

import (
	"github.com/hupe1980/photomap/foldercache"
	"github.com/hupe1980/photomap/internal/fs"
)

// DefaultClusterDistance is the default clustering threshold in meters.
const DefaultClusterDistance = 1000.0

type options struct {
	logger          *Logger
	fsys            fs.FileSystem
	userAgent       string
	clusterDistance float64
	resolver        foldercache.Resolver
	extractor       foldercache.Extractor
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logging sink for all components. If nil, logging
// is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithFileSystem replaces the filesystem used for cache I/O. Intended
// for tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithUserAgent sets the caller-identity string sent to the geocoding
// service. Ignored when WithResolver is also given.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithClusterDistance sets the clustering threshold in meters.
func WithClusterDistance(meters float64) Option {
	return func(o *options) {
		if meters > 0 {
			o.clusterDistance = meters
		}
	}
}

// WithResolver replaces the geocode resolver, e.g. one built with
// geocode.WithBaseURL for tests.
func WithResolver(r foldercache.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithExtractor replaces the metadata extractor. Intended for tests.
func WithExtractor(ex foldercache.Extractor) Option {
	return func(o *options) {
		if ex != nil {
			o.extractor = ex
		}
	}
}

func defaultOptions() *options {
	return &options{
		logger:          NoopLogger(),
		fsys:            fs.Default,
		userAgent:       "photomap/" + Version + " (+https://github.com/hupe1980/photomap)",
		clusterDistance: DefaultClusterDistance,
	}
}
