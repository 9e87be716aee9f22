package render

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/spektr-org/incidents/geo"
)

// ChoroplethPNG draws the boroughs filled by their choropleth class with
// the incident points scattered on top and the borough names at their
// centroids.
func ChoroplethPNG(title string, b *geo.Boroughs, data *geo.ChoroplethData, points []geo.Point, opts Options) ([]byte, error) {
	if b == nil || len(b.Items) == 0 {
		return nil, errors.New("choropleth: no boroughs")
	}
	opts = opts.withDefaults()

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	var (
		labels   []string
		labelXYs plotter.XYs
	)
	for _, item := range b.Items {
		fill := hexColor(geo.NoDataColor)
		if data != nil {
			if st, ok := data.Stat(item.Name); ok {
				fill = hexColor(st.Color)
			}
		}
		for _, poly := range item.Polygons {
			rings := make([]plotter.XYer, 0, poly.NumLinearRings())
			for r := 0; r < poly.NumLinearRings(); r++ {
				rings = append(rings, ringXYs(poly.LinearRing(r).FlatCoords(), poly.Stride()))
			}
			shape, err := plotter.NewPolygon(rings...)
			if err != nil {
				return nil, fmt.Errorf("borough %s: %w", item.Name, err)
			}
			shape.Color = fill
			shape.LineStyle.Color = color.Gray{Y: 90}
			shape.LineStyle.Width = vg.Points(0.6)
			p.Add(shape)
		}

		lon, lat := item.Centroid()
		labels = append(labels, item.Name)
		labelXYs = append(labelXYs, plotter.XY{X: lon, Y: lat})
	}

	if len(points) > 0 {
		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i] = plotter.XY{X: pt.Lon, Y: pt.Lat}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("incident points: %w", err)
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 30, G: 30, B: 30, A: 110}
		scatter.GlyphStyle.Radius = vg.Points(1.2)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
	}

	names, err := plotter.NewLabels(plotter.XYLabels{XYs: labelXYs, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("borough labels: %w", err)
	}
	for i := range names.TextStyle {
		names.TextStyle[i].XAlign = draw.XCenter
		names.TextStyle[i].Font.Size = vg.Points(9)
	}
	p.Add(names)

	bounds := b.Bounds()
	p.X.Min, p.X.Max = bounds.Min(0), bounds.Max(0)
	p.Y.Min, p.Y.Max = bounds.Min(1), bounds.Max(1)

	return encodePlot(p, opts)
}

func ringXYs(flat []float64, stride int) plotter.XYs {
	xys := make(plotter.XYs, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		xys = append(xys, plotter.XY{X: flat[i], Y: flat[i+1]})
	}
	return xys
}
