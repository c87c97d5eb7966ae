package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// unlimited removes the request spacing so tests exercising multiple
// live lookups do not sleep. The spacing contract itself is asserted in
// TestNew_SpacingConfigured.
func unlimited(r *Resolver) {
	r.limiter = rate.NewLimiter(rate.Inf, 1)
}

func addressServer(t *testing.T, requests *atomic.Int64, address map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		assert.Equal(t, "jsonv2", req.URL.Query().Get("format"))
		assert.Equal(t, "1", req.URL.Query().Get("addressdetails"))

		_ = json.NewEncoder(w).Encode(map[string]any{"address": address})
	}))
}

func TestNew_RequiresUserAgent(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrMissingUserAgent)

	r, err := New("phototest/1.0")
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestNew_SpacingConfigured(t *testing.T) {
	r, err := New("phototest/1.0")
	require.NoError(t, err)

	// 1.1 s minimum between live lookups, no burst beyond one.
	assert.Equal(t, rate.Every(1100*time.Millisecond), r.limiter.Limit())
	assert.Equal(t, 1, r.limiter.Burst())
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, quantize(48.1372, 11.5756), quantize(48.1401, 11.5799))
	assert.NotEqual(t, quantize(48.1372, 11.5756), quantize(48.15, 11.5756))
	assert.Equal(t, cellKey{lat: -33.87, lon: 151.21}, quantize(-33.8688, 151.2093))
}

func TestResolve_CityFallback(t *testing.T) {
	tests := []struct {
		name            string
		address         map[string]string
		expectedCountry string
		expectedCity    string
	}{
		{
			"City",
			map[string]string{"country": "Germany", "city": "Munich", "town": "ignored"},
			"Germany", "Munich",
		},
		{
			"Town",
			map[string]string{"country": "Germany", "town": "Dachau"},
			"Germany", "Dachau",
		},
		{
			"Village",
			map[string]string{"country": "Austria", "village": "Alpbach"},
			"Austria", "Alpbach",
		},
		{
			"Hamlet",
			map[string]string{"country": "France", "hamlet": "Le Petit Lieu"},
			"France", "Le Petit Lieu",
		},
		{
			"Municipality",
			map[string]string{"country": "Italy", "municipality": "Bolzano"},
			"Italy", "Bolzano",
		},
		{
			"County",
			map[string]string{"country": "Ireland", "county": "Kerry"},
			"Ireland", "Kerry",
		},
		{
			"StateDistrict",
			map[string]string{"country": "Germany", "state_district": "Oberbayern"},
			"Germany", "Oberbayern",
		},
		{
			"StateFallback",
			map[string]string{"country": "Germany", "state": "Bayern"},
			"Germany", "Bayern",
		},
		{
			"UnknownSentinel",
			map[string]string{"country": "Germany"},
			"Germany", UnknownPlace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := addressServer(t, nil, tt.address)
			defer srv.Close()

			r, err := New("phototest/1.0", WithBaseURL(srv.URL))
			require.NoError(t, err)

			country, city := r.Resolve(context.Background(), 48.1, 11.5)
			assert.Equal(t, tt.expectedCountry, country)
			assert.Equal(t, tt.expectedCity, city)
		})
	}
}

func TestResolve_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotUA = req.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(map[string]any{"address": map[string]string{"country": "Germany"}})
	}))
	defer srv.Close()

	r, err := New("phototest/1.0 (unit test)", WithBaseURL(srv.URL))
	require.NoError(t, err)

	r.Resolve(context.Background(), 48.1, 11.5)
	assert.Equal(t, "phototest/1.0 (unit test)", gotUA)
}

func TestResolve_DedupesQuantizedCell(t *testing.T) {
	var requests atomic.Int64
	srv := addressServer(t, &requests, map[string]string{"country": "Germany", "city": "Munich"})
	defer srv.Close()

	r, err := New("phototest/1.0", WithBaseURL(srv.URL))
	require.NoError(t, err)
	unlimited(r)

	// Two coordinates in the same ~1.1 km cell: one live lookup.
	c1, city1 := r.Resolve(context.Background(), 48.1372, 11.5756)
	c2, city2 := r.Resolve(context.Background(), 48.1401, 11.5799)

	assert.Equal(t, int64(1), requests.Load())
	assert.Equal(t, c1, c2)
	assert.Equal(t, city1, city2)
}

func TestResolve_FailureDegrades(t *testing.T) {
	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		r, err := New("phototest/1.0", WithBaseURL(srv.URL))
		require.NoError(t, err)

		country, city := r.Resolve(context.Background(), 48.1, 11.5)
		assert.Empty(t, country)
		assert.Empty(t, city)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		r, err := New("phototest/1.0", WithBaseURL(srv.URL))
		require.NoError(t, err)

		country, city := r.Resolve(context.Background(), 48.1, 11.5)
		assert.Empty(t, country)
		assert.Empty(t, city)
	})

	t.Run("Unreachable", func(t *testing.T) {
		r, err := New("phototest/1.0", WithBaseURL("http://127.0.0.1:1"))
		require.NoError(t, err)

		country, city := r.Resolve(context.Background(), 48.1, 11.5)
		assert.Empty(t, country)
		assert.Empty(t, city)
	})
}

// A failed cell is not retried within the same session; a reset clears
// the way for a later scan to retry naturally.
func TestResolve_NegativeCacheAndReset(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := New("phototest/1.0", WithBaseURL(srv.URL))
	require.NoError(t, err)
	unlimited(r)

	r.Resolve(context.Background(), 48.1, 11.5)
	r.Resolve(context.Background(), 48.1, 11.5)
	assert.Equal(t, int64(1), requests.Load())

	r.ResetSession()
	r.Resolve(context.Background(), 48.1, 11.5)
	assert.Equal(t, int64(2), requests.Load())
}

func TestResolve_CancelledContext(t *testing.T) {
	srv := addressServer(t, nil, map[string]string{"country": "Germany"})
	defer srv.Close()

	r, err := New("phototest/1.0", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	country, city := r.Resolve(ctx, 48.1, 11.5)
	assert.Empty(t, country)
	assert.Empty(t, city)
}
