// Package geo decodes borough boundaries and prepares the data behind the
// incident map: per-borough counts for the choropleth and geohash clusters
// for the point layer.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// ErrNoBoroughs means the boundary file held no usable polygon feature.
var ErrNoBoroughs = errors.New("no borough polygons in boundary file")

// nameProperties are tried in order when no name property is configured.
var nameProperties = []string{"boro_name", "BoroName", "borough", "name"}

// Borough is one named administrative area.
type Borough struct {
	Name       string
	Polygons   []*geom.Polygon
	Bounds     *geom.Bounds
	Properties map[string]interface{}
}

// Contains reports whether (lon, lat) lies inside the borough: inside an
// outer ring and outside that polygon's holes.
func (b *Borough) Contains(lon, lat float64) bool {
	pt := geom.Coord{lon, lat}
	if !b.Bounds.OverlapsPoint(geom.XY, pt) {
		return false
	}
	for _, poly := range b.Polygons {
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < poly.NumLinearRings(); i++ {
			if xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// Centroid returns the area centroid as (lon, lat).
func (b *Borough) Centroid() (lon, lat float64) {
	if len(b.Polygons) == 0 {
		return 0, 0
	}
	c := xy.PolygonsCentroid(b.Polygons[0], b.Polygons[1:]...)
	return c.X(), c.Y()
}

// Boroughs is a decoded boundary file.
type Boroughs struct {
	Items []*Borough
	byKey map[string]*Borough
}

// DecodeBoroughs parses a GeoJSON FeatureCollection. Each Polygon or
// MultiPolygon feature becomes a Borough named by nameProperty; features
// sharing a name are merged. Other geometry types are ignored.
func DecodeBoroughs(data []byte, nameProperty string) (*Boroughs, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode borough geojson: %w", err)
	}

	b := &Boroughs{byKey: make(map[string]*Borough)}
	for i, f := range fc.Features {
		var polys []*geom.Polygon
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			polys = []*geom.Polygon{g}
		case *geom.MultiPolygon:
			for j := 0; j < g.NumPolygons(); j++ {
				polys = append(polys, g.Polygon(j))
			}
		default:
			continue
		}

		name := featureName(f, nameProperty)
		if name == "" {
			return nil, fmt.Errorf("feature %d: no %q property", i, propertyLabel(nameProperty))
		}

		key := Key(name)
		existing, ok := b.byKey[key]
		if !ok {
			existing = &Borough{Name: name, Properties: f.Properties, Bounds: geom.NewBounds(geom.XY)}
			b.byKey[key] = existing
			b.Items = append(b.Items, existing)
		}
		for _, p := range polys {
			existing.Polygons = append(existing.Polygons, p)
			existing.Bounds.Extend(p)
		}
	}

	if len(b.Items) == 0 {
		return nil, ErrNoBoroughs
	}
	sort.Slice(b.Items, func(i, j int) bool { return b.Items[i].Name < b.Items[j].Name })
	return b, nil
}

func featureName(f *geojson.Feature, prop string) string {
	props := []string{prop}
	if prop == "" {
		props = nameProperties
	}
	for _, p := range props {
		if v, ok := f.Properties[p]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func propertyLabel(prop string) string {
	if prop == "" {
		return strings.Join(nameProperties, "|")
	}
	return prop
}

// Key folds a borough name for matching: "Staten Island", "STATEN ISLAND"
// and " staten  island " are the same borough.
func Key(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}

// Names returns the borough names in display order.
func (b *Boroughs) Names() []string {
	out := make([]string, len(b.Items))
	for i, item := range b.Items {
		out[i] = item.Name
	}
	return out
}

// Lookup finds a borough by name, case-insensitively.
func (b *Boroughs) Lookup(name string) (*Borough, bool) {
	item, ok := b.byKey[Key(name)]
	return item, ok
}

// Locate returns the borough containing (lon, lat).
func (b *Boroughs) Locate(lon, lat float64) (string, bool) {
	for _, item := range b.Items {
		if item.Contains(lon, lat) {
			return item.Name, true
		}
	}
	return "", false
}

// Bounds is the extent of every borough.
func (b *Boroughs) Bounds() *geom.Bounds {
	out := geom.NewBounds(geom.XY)
	for _, item := range b.Items {
		for _, p := range item.Polygons {
			out.Extend(p)
		}
	}
	return out
}
