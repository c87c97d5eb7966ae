// Package cluster partitions geotagged photos into geographic clusters
// using a greedy seed-based distance sweep.
//
// The sweep is intentionally non-transitive: members join a cluster by
// their distance to the seed point, never to the evolving centroid or to
// other members, so two points each within threshold of a shared third
// point but over threshold from each other may land in different
// clusters depending on iteration order. This is a behavioral contract;
// changing it to transitive clustering is a breaking decision.
package cluster

import (
	"math"

	"github.com/hupe1980/photomap/model"
)

// EarthRadiusMeters is the spherical-earth radius used for great-circle
// distances.
const EarthRadiusMeters = 6371000

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b model.Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Member is one clustered photo: a weak reference by path plus its
// coordinate. Clusters never own photo records.
type Member struct {
	Path  string
	Coord model.Coordinate
}

// Cluster is one geographic bucket of photos.
type Cluster struct {
	ID       int // 0-based, assignment order
	Members  []Member
	Centroid model.Coordinate // arithmetic mean of member coordinates
	Count    int
}

// Sweep partitions the geotagged rows into clusters. Rows without
// coordinates are ignored. The sweep iterates rows in input order: each
// unvisited row opens a new cluster as its seed, then absorbs every
// subsequent unvisited row whose haversine distance to the seed point is
// at most thresholdMeters. O(n²) in the number of geotagged rows.
func Sweep(rows []model.Row, thresholdMeters float64) []Cluster {
	points := make([]Member, 0, len(rows))
	for _, r := range rows {
		if r.Coord == nil {
			continue
		}
		points = append(points, Member{Path: r.Path, Coord: *r.Coord})
	}

	visited := make([]bool, len(points))
	var clusters []Cluster

	for i := range points {
		if visited[i] {
			continue
		}
		visited[i] = true

		seed := points[i].Coord
		members := []Member{points[i]}
		sumLat, sumLon := seed.Lat, seed.Lon

		for j := i + 1; j < len(points); j++ {
			if visited[j] {
				continue
			}
			if Haversine(seed, points[j].Coord) <= thresholdMeters {
				visited[j] = true
				members = append(members, points[j])
				sumLat += points[j].Coord.Lat
				sumLon += points[j].Coord.Lon
			}
		}

		n := float64(len(members))
		clusters = append(clusters, Cluster{
			ID:      len(clusters),
			Members: members,
			Centroid: model.Coordinate{
				Lat: sumLat / n,
				Lon: sumLon / n,
			},
			Count: len(members),
		})
	}

	return clusters
}
