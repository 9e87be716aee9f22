package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/spektr-org/incidents/engine"
)

// forecastColor is the overlay colour of predicted values.
const forecastColor = "#6B7280"

// LineChart renders cfg as one line per series over categorical x labels.
// opts.Forecast, when set, continues the first series with a dashed line
// and its confidence bounds.
func LineChart(cfg *engine.ChartConfig, opts Options) ([]byte, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	labels := cfg.Labels()
	ticks := make([]chart.Tick, 0, len(labels)+len(opts.Forecast))
	for i, l := range labels {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: l})
	}

	yMax := 0.0
	var series []chart.Series
	for i, s := range cfg.Series {
		xs := make([]float64, len(s.Data))
		ys := make([]float64, len(s.Data))
		for j, pt := range s.Data {
			xs[j] = float64(j)
			ys[j] = pt.Value
			yMax = math.Max(yMax, pt.Value)
		}
		if len(xs) == 1 {
			// A lone year is drawn as a short flat segment over its tick.
			xs = []float64{xs[0] - 0.25, xs[0] + 0.25}
			ys = []float64{ys[0], ys[0]}
		}
		col := drawing.ColorFromHex(seriesColor(cfg, i))
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}

	if len(opts.Forecast) > 0 && len(cfg.Series[0].Data) > 0 {
		first := cfg.Series[0].Data
		lastX := float64(len(first) - 1)
		lastY := first[len(first)-1].Value

		xs := []float64{lastX}
		mid, lo, hi := []float64{lastY}, []float64{lastY}, []float64{lastY}
		for k, f := range opts.Forecast {
			x := float64(len(labels) + k)
			ticks = append(ticks, chart.Tick{Value: x, Label: f.Label})
			xs = append(xs, x)
			mid = append(mid, f.Value)
			lo = append(lo, f.Lower)
			hi = append(hi, f.Upper)
			yMax = math.Max(yMax, f.Upper)
		}

		col := drawing.ColorFromHex(forecastColor)
		dashed := chart.Style{StrokeColor: col, StrokeWidth: 2, StrokeDashArray: []float64{6, 4}, DotColor: col, DotWidth: 3}
		bound := chart.Style{StrokeColor: col.WithAlpha(140), StrokeWidth: 1, StrokeDashArray: []float64{2, 3}}
		series = append(series,
			chart.ContinuousSeries{Name: "Forecast", XValues: xs, YValues: mid, Style: dashed},
			chart.ContinuousSeries{Name: "95% lower", XValues: xs, YValues: lo, Style: bound},
			chart.ContinuousSeries{Name: "95% upper", XValues: xs, YValues: hi, Style: bound},
		)
	}

	// go-chart spans the x axis from the first to the last tick, so unlabelled
	// edge ticks keep a single label renderable. The explicit y range does
	// the same for a flat series.
	n := float64(len(ticks))
	ticks = append([]chart.Tick{{Value: -0.5}}, ticks...)
	ticks = append(ticks, chart.Tick{Value: n - 0.5})
	if yMax <= 0 {
		yMax = 1
	}
	graph := chart.Chart{
		Title:  cfg.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:  cfg.XAxis,
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: -0.5, Max: n - 0.5},
		},
		YAxis: chart.YAxis{
			Name:  cfg.YAxis,
			Range: &chart.ContinuousRange{Min: 0, Max: yMax * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return engine.FormatNumber(f, 0)
				}
				return ""
			},
		},
		Series: series,
	}
	if cfg.ShowLegend || len(opts.Forecast) > 0 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render line chart %q: %w", cfg.Title, err)
	}
	return buf.Bytes(), nil
}
