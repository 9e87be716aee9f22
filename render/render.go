// Package render draws engine charts and the borough map as PNG images.
//
// Bar charts and the static map use gonum/plot; line charts use go-chart.
// Every renderer returns the encoded PNG bytes so callers can write them to
// disk or embed them in a document.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot/vg"

	"github.com/spektr-org/incidents/engine"
)

var (
	// ErrEmptyChart means the chart config has no series or no points.
	ErrEmptyChart = errors.New("chart has no data")
	// ErrUnsupportedChart means no renderer handles the chart type.
	ErrUnsupportedChart = errors.New("unsupported chart type")
)

// Options sizes the output image.
type Options struct {
	Width  int // pixels
	Height int // pixels

	// Forecast points are appended to line charts as a dashed series with
	// confidence bounds. Ignored by other chart types.
	Forecast []ForecastPoint
}

// ForecastPoint is one predicted value drawn after the observed labels.
type ForecastPoint struct {
	Label string
	Value float64
	Lower float64
	Upper float64
}

// DefaultOptions returns a 900×450 canvas.
func DefaultOptions() Options {
	return Options{Width: 900, Height: 450}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	return o
}

// Render dispatches on cfg.ChartType: "bar" to BarChart, "line" to
// LineChart.
func Render(cfg *engine.ChartConfig, opts Options) ([]byte, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.ChartType) {
	case "bar", "":
		return BarChart(cfg, opts)
	case "line":
		return LineChart(cfg, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChart, cfg.ChartType)
	}
}

func validate(cfg *engine.ChartConfig) error {
	if cfg == nil || len(cfg.Series) == 0 {
		return ErrEmptyChart
	}
	for _, s := range cfg.Series {
		if len(s.Data) > 0 {
			return nil
		}
	}
	return ErrEmptyChart
}

// seriesColor picks the colour of series i: its own, then the config's,
// then the engine palette.
func seriesColor(cfg *engine.ChartConfig, i int) string {
	if c := cfg.Series[i].Color; c != "" {
		return c
	}
	if i < len(cfg.Colors) && cfg.Colors[i] != "" {
		return cfg.Colors[i]
	}
	p := engine.Palette()
	return p[i%len(p)]
}

// hexColor converts "#RRGGBB" for gonum/plot.
func hexColor(hex string) color.Color {
	c := drawing.ColorFromHex(hex)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// pixels converts an image size to gonum's length unit at its PNG DPI.
func pixels(px int) vg.Length {
	return vg.Length(px) * vg.Inch / 96
}
