// Package geocode reverse-geocodes coordinates into country and city
// names via an HTTP lookup service with a Nominatim-style contract.
//
// The resolver enforces the service's usage policy: a caller-identity
// User-Agent header, a 10 second timeout budget and a minimum 1.1 second
// interval between live lookups. Concurrent callers sharing one resolver
// serialize through a single rate limiter; lookups are never issued in
// parallel against the same service instance.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Nominatim reverse endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org/reverse"

	// UnknownPlace is the sentinel city used when the address carries
	// neither a locality nor an administrative region name.
	UnknownPlace = "Unknown place"

	requestTimeout = 10 * time.Second

	// minInterval is the mandatory spacing between live lookups. A hard
	// external-service constraint, not tunable per call.
	minInterval = 1100 * time.Millisecond
)

// ErrMissingUserAgent is returned when a resolver is constructed without
// the caller-identity string the lookup service requires.
var ErrMissingUserAgent = errors.New("geocode: user agent is required")

// localityFields is the ordered fallback over address keys used to pick
// a city name.
var localityFields = []string{
	"city", "town", "village", "hamlet", "municipality", "county", "state_district",
}

// cellKey is a coordinate quantized to 2 decimal places (~1.1 km grid),
// used as the session-local dedupe key.
type cellKey struct {
	lat float64
	lon float64
}

func quantize(lat, lon float64) cellKey {
	return cellKey{
		lat: math.Round(lat*100) / 100,
		lon: math.Round(lon*100) / 100,
	}
}

type place struct {
	country string
	city    string
}

// Resolver reverse-geocodes coordinates with session-scoped deduplication
// and mandatory request spacing. Safe for concurrent use; concurrent
// lookups serialize rather than parallelize.
type Resolver struct {
	userAgent string
	baseURL   string
	client    *http.Client
	logger    *slog.Logger

	limiter *rate.Limiter
	sem     *semaphore.Weighted
	session map[cellKey]place
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL points the resolver at a different endpoint implementing
// the same contract. Tests point it at an httptest server.
func WithBaseURL(u string) Option {
	return func(r *Resolver) { r.baseURL = u }
}

// WithHTTPClient replaces the HTTP client. The caller keeps the 10 s
// timeout budget responsibility.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the logger used for lookup warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver. userAgent identifies the caller to the lookup
// service and must not be empty.
func New(userAgent string, opts ...Option) (*Resolver, error) {
	if userAgent == "" {
		return nil, ErrMissingUserAgent
	}

	r := &Resolver{
		userAgent: userAgent,
		baseURL:   DefaultBaseURL,
		client:    &http.Client{Timeout: requestTimeout},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
		sem:       semaphore.NewWeighted(1),
		session:   make(map[cellKey]place),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Resolve reverse-geocodes a coordinate to (country, city). It never
// returns an error: timeouts, non-success responses and malformed
// payloads all degrade to empty strings. Failed cells are negative-cached
// for the session, so a bad lookup is not retried within the same scan.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (country, city string) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return "", ""
	}
	defer r.sem.Release(1)

	key := quantize(lat, lon)
	if p, ok := r.session[key]; ok {
		return p.country, p.city
	}

	p := r.lookup(ctx, lat, lon)
	r.session[key] = p

	return p.country, p.city
}

// ResetSession clears the dedupe cache. Called at the start of every
// folder scan to bound memory and prevent stale cross-folder bleed.
func (r *Resolver) ResetSession() {
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer r.sem.Release(1)

	r.session = make(map[cellKey]place)
}

// lookup performs one live request. Callers hold the semaphore.
func (r *Resolver) lookup(ctx context.Context, lat, lon float64) place {
	if err := r.limiter.Wait(ctx); err != nil {
		return place{}
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		r.logger.Warn("geocode request build failed", "error", err)
		return place{}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("geocode lookup failed", "lat", lat, "lon", lon, "error", err)
		return place{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("geocode lookup rejected", "lat", lat, "lon", lon, "status", resp.StatusCode)
		return place{}
	}

	var payload struct {
		Address map[string]string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		r.logger.Warn("geocode payload malformed", "lat", lat, "lon", lon, "error", err)
		return place{}
	}
	if len(payload.Address) == 0 {
		return place{}
	}

	p := place{country: payload.Address["country"]}
	for _, field := range localityFields {
		if v := payload.Address[field]; v != "" {
			p.city = v
			break
		}
	}
	if p.city == "" {
		if v := payload.Address["state"]; v != "" {
			p.city = v
		} else {
			p.city = UnknownPlace
		}
	}

	return p
}
