package render

import (
	"bytes"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/spektr-org/incidents/engine"
)

// BarChart renders cfg as vertical bars. Multiple series are drawn as
// grouped bars side by side at each label.
func BarChart(cfg *engine.ChartConfig, opts Options) ([]byte, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	labels := cfg.Labels()

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XAxis
	p.Y.Label.Text = cfg.YAxis
	p.Y.Min = 0
	if cfg.ShowGrid {
		grid := plotter.NewGrid()
		grid.Vertical.Color = nil
		p.Add(grid)
	}

	// Leave a quarter of each slot empty between label groups.
	n := len(cfg.Series)
	slot := pixels(opts.Width) * 0.8 / vg.Length(max(len(labels), 1))
	width := slot * 0.75 / vg.Length(n)
	if width <= 0 {
		width = vg.Points(1)
	}

	for i, s := range cfg.Series {
		values := make(plotter.Values, len(labels))
		for j := range labels {
			if j < len(s.Data) {
				values[j] = s.Data[j].Value
			}
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return nil, fmt.Errorf("bar series %q: %w", s.Name, err)
		}
		bars.Color = hexColor(seriesColor(cfg, i))
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = vg.Length(float64(i)-float64(n-1)/2) * width
		p.Add(bars)
		if cfg.ShowLegend && n > 1 {
			p.Legend.Add(s.Name, bars)
		}
	}

	p.NominalX(labels...)
	if len(labels) > 12 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	p.Legend.Top = true

	return encodePlot(p, opts)
}

func encodePlot(p *plot.Plot, opts Options) ([]byte, error) {
	wt, err := p.WriterTo(pixels(opts.Width), pixels(opts.Height), "png")
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
