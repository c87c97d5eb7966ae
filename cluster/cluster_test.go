package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/photomap/model"
)

func coordRow(path string, lat, lon float64) model.Row {
	return model.Row{Path: path, Coord: &model.Coordinate{Lat: lat, Lon: lon}}
}

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     model.Coordinate
		expected float64
		delta    float64
	}{
		{"Identity", model.Coordinate{Lat: 48.1, Lon: 11.5}, model.Coordinate{Lat: 48.1, Lon: 11.5}, 0, 1e-9},
		{"IdentityEquator", model.Coordinate{}, model.Coordinate{}, 0, 1e-9},
		// 0.008° of longitude on the equator is R * 0.008 * pi/180.
		{"EquatorArc", model.Coordinate{}, model.Coordinate{Lon: 0.008}, 889.56, 0.5},
		// Munich to Berlin, roughly 504 km.
		{"MunichBerlin", model.Coordinate{Lat: 48.1372, Lon: 11.5756}, model.Coordinate{Lat: 52.5200, Lon: 13.4050}, 504000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Haversine(tt.a, tt.b), tt.delta)
		})
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	pairs := []struct {
		a, b model.Coordinate
	}{
		{model.Coordinate{Lat: 48.1, Lon: 11.5}, model.Coordinate{Lat: 52.52, Lon: 13.405}},
		{model.Coordinate{Lat: -33.8688, Lon: 151.2093}, model.Coordinate{Lat: 40.7128, Lon: -74.006}},
		{model.Coordinate{}, model.Coordinate{Lat: 0.001, Lon: 0.001}},
	}

	for _, p := range pairs {
		assert.InDelta(t, Haversine(p.a, p.b), Haversine(p.b, p.a), 1e-9)
	}
}

func TestSweep_ZeroThresholdSingletons(t *testing.T) {
	rows := []model.Row{
		coordRow("a.jpg", 48.1, 11.5),
		coordRow("b.jpg", 48.2, 11.5),
		coordRow("c.jpg", 48.3, 11.5),
	}

	clusters := Sweep(rows, 0)

	require.Len(t, clusters, 3)
	for i, c := range clusters {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, 1, c.Count)
		assert.Equal(t, rows[i].Path, c.Members[0].Path)
		assert.Equal(t, *rows[i].Coord, c.Centroid)
	}
}

// Three points in a chain: P1-P2 and P2-P3 are each within the
// threshold, P1-P3 is not. The sweep is seeded by P1, so P2 joins P1 and
// P3 opens its own cluster. Preserved non-transitive contract.
func TestSweep_NonTransitiveChain(t *testing.T) {
	const threshold = 1000.0

	p1 := coordRow("p1.jpg", 0, 0)
	p2 := coordRow("p2.jpg", 0, 0.008) // ~890 m from p1
	p3 := coordRow("p3.jpg", 0, 0.016) // ~890 m from p2, ~1779 m from p1

	require.LessOrEqual(t, Haversine(*p1.Coord, *p2.Coord), threshold)
	require.LessOrEqual(t, Haversine(*p2.Coord, *p3.Coord), threshold)
	require.Greater(t, Haversine(*p1.Coord, *p3.Coord), threshold)

	clusters := Sweep([]model.Row{p1, p2, p3}, threshold)

	require.Len(t, clusters, 2)
	assert.Equal(t, 0, clusters[0].ID)
	assert.Equal(t, 2, clusters[0].Count)
	assert.Equal(t, "p1.jpg", clusters[0].Members[0].Path)
	assert.Equal(t, "p2.jpg", clusters[0].Members[1].Path)
	assert.Equal(t, 1, clusters[1].ID)
	assert.Equal(t, "p3.jpg", clusters[1].Members[0].Path)
}

// Two photos within 500 m of each other and one 5 km away, clustered at
// 1000 m: one cluster of two with the mean centroid, one singleton.
func TestSweep_NearPairAndOutlier(t *testing.T) {
	near1 := coordRow("near1.jpg", 48.1, 11.5)
	near2 := coordRow("near2.jpg", 48.103, 11.5) // ~334 m
	far := coordRow("far.jpg", 48.145, 11.5)     // ~5 km

	require.Less(t, Haversine(*near1.Coord, *near2.Coord), 500.0)
	require.Greater(t, Haversine(*near1.Coord, *far.Coord), 4500.0)

	clusters := Sweep([]model.Row{near1, near2, far}, 1000)

	require.Len(t, clusters, 2)

	assert.Equal(t, 2, clusters[0].Count)
	assert.InDelta(t, (48.1+48.103)/2, clusters[0].Centroid.Lat, 1e-9)
	assert.InDelta(t, 11.5, clusters[0].Centroid.Lon, 1e-9)

	assert.Equal(t, 1, clusters[1].Count)
	assert.Equal(t, *far.Coord, clusters[1].Centroid)
}

func TestSweep_IgnoresRowsWithoutCoordinates(t *testing.T) {
	rows := []model.Row{
		{Path: "nogps.jpg"},
		coordRow("a.jpg", 48.1, 11.5),
		{Path: "nogps2.jpg"},
	}

	clusters := Sweep(rows, 1000)

	require.Len(t, clusters, 1)
	assert.Equal(t, 1, clusters[0].Count)
	assert.Equal(t, "a.jpg", clusters[0].Members[0].Path)
}

func TestSweep_Empty(t *testing.T) {
	assert.Empty(t, Sweep(nil, 1000))
	assert.Empty(t, Sweep([]model.Row{{Path: "nogps.jpg"}}, 1000))
}
