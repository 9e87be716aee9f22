package geo

import (
	"sort"

	"github.com/mmcloughlin/geohash"
)

// DefaultPrecision is the geohash length used when none is configured.
// Six characters is a cell of roughly 1.2 km × 0.6 km.
const DefaultPrecision uint = 6

// Point is one incident location.
type Point struct {
	Lat    float64
	Lon    float64
	Murder bool
}

// Cell is a geohash bucket of points.
type Cell struct {
	Hash    string  `json:"hash"`
	Count   int     `json:"count"`
	Murders int     `json:"murders"`
	Lat     float64 `json:"lat"` // centroid of the member points
	Lon     float64 `json:"lon"`
}

// Cluster buckets points by geohash prefix. Cells are ordered by count
// (largest first), then hash.
func Cluster(points []Point, precision uint) []Cell {
	if precision == 0 || precision > 12 {
		precision = DefaultPrecision
	}

	cells := make(map[string]*Cell)
	for _, p := range points {
		h := geohash.EncodeWithPrecision(p.Lat, p.Lon, precision)
		c, ok := cells[h]
		if !ok {
			c = &Cell{Hash: h}
			cells[h] = c
		}
		c.Count++
		c.Lat += p.Lat
		c.Lon += p.Lon
		if p.Murder {
			c.Murders++
		}
	}

	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		c.Lat /= float64(c.Count)
		c.Lon /= float64(c.Count)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Hash < out[j].Hash
	})
	return out
}

// Limit keeps the n largest cells. n <= 0 keeps all.
func Limit(cells []Cell, n int) []Cell {
	if n <= 0 || len(cells) <= n {
		return cells
	}
	return cells[:n]
}
