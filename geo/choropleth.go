package geo

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gonum.org/v1/gonum/stat"
)

// ClassColors shade choropleth classes from low to high (ColorBrewer YlOrRd).
var ClassColors = []string{"#ffffb2", "#fecc5c", "#fd8d3c", "#f03b20", "#bd0026"}

// NoDataColor fills boroughs without a count.
const NoDataColor = "#d9d9d9"

// BoroughStat is one choropleth cell.
type BoroughStat struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Share float64 `json:"share"` // percent of all located incidents
	Class int     `json:"class"` // index into ClassColors
	Color string  `json:"color"`
}

// ChoroplethData is the per-borough breakdown behind the map.
type ChoroplethData struct {
	Stats  []BoroughStat
	Breaks []float64 // upper bounds of classes 0 … n-2
	Total  int

	// Unmatched are count keys with no borough polygon.
	Unmatched map[string]int
}

// Stat returns the entry for name, case-insensitively.
func (c *ChoroplethData) Stat(name string) (BoroughStat, bool) {
	key := Key(name)
	for _, s := range c.Stats {
		if Key(s.Name) == key {
			return s, true
		}
	}
	return BoroughStat{}, false
}

// Choropleth joins counts (keyed by borough name in any case) onto the
// boroughs and assigns quantile classes.
func Choropleth(b *Boroughs, counts map[string]int) *ChoroplethData {
	byKey := make(map[string]int, len(counts))
	for name, n := range counts {
		byKey[Key(name)] += n
	}

	out := &ChoroplethData{Unmatched: make(map[string]int)}
	for name, n := range counts {
		if _, ok := b.Lookup(name); !ok {
			out.Unmatched[name] += n
		}
	}

	values := make([]float64, 0, len(b.Items))
	for _, item := range b.Items {
		n := byKey[Key(item.Name)]
		out.Total += n
		out.Stats = append(out.Stats, BoroughStat{Name: item.Name, Count: n})
		values = append(values, float64(n))
	}
	sort.Float64s(values)

	classes := len(ClassColors)
	if len(values) < classes {
		classes = len(values)
	}
	for k := 1; k < classes; k++ {
		out.Breaks = append(out.Breaks, stat.Quantile(float64(k)/float64(classes), stat.Empirical, values, nil))
	}

	for i := range out.Stats {
		s := &out.Stats[i]
		if out.Total > 0 {
			s.Share = float64(s.Count) / float64(out.Total) * 100
		}
		s.Class = classOf(float64(s.Count), out.Breaks)
		s.Color = ClassColors[s.Class]
		if s.Count == 0 {
			s.Color = NoDataColor
		}
	}
	return out
}

func classOf(v float64, breaks []float64) int {
	class := 0
	for _, b := range breaks {
		if v > b {
			class++
		}
	}
	return class
}

// FeatureCollection re-encodes the boroughs as GeoJSON with the choropleth
// numbers attached as properties (name, count, share, class, color).
func FeatureCollection(b *Boroughs, data *ChoroplethData) ([]byte, error) {
	fc := &geojson.FeatureCollection{}
	for _, item := range b.Items {
		st, _ := data.Stat(item.Name)

		var g geom.T
		if len(item.Polygons) == 1 {
			g = item.Polygons[0]
		} else {
			mp := geom.NewMultiPolygon(item.Polygons[0].Layout())
			for _, p := range item.Polygons {
				if err := mp.Push(p); err != nil {
					return nil, fmt.Errorf("borough %s: %w", item.Name, err)
				}
			}
			g = mp
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: g,
			Properties: map[string]interface{}{
				"name":  item.Name,
				"count": st.Count,
				"share": st.Share,
				"class": st.Class,
				"color": st.Color,
			},
		})
	}
	return json.Marshal(fc)
}
