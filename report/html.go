package report

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spektr-org/incidents/engine"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"int":  engine.FormatInt,
	"num":  func(v float64) string { return engine.FormatNumber(v, 0) },
	"pct":  func(v float64) string { return engine.FormatNumber(v, 1) + "%" },
	"join": strings.Join,
	// pct100 formats a fraction (-0.05) as a signed percentage (-5.0%).
	"pct100": func(v float64) string {
		sign := ""
		if v > 0 {
			sign = "+"
		}
		return sign + engine.FormatNumber(v*100, 1) + "%"
	},
	"png": func(b []byte) template.URL {
		return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(b))
	},
	// geojson embeds already-encoded GeoJSON. encoding/json escapes <, >
	// and &, so the bytes are safe inside a script element.
	"geojson": func(b []byte) template.JS {
		if len(b) == 0 {
			return template.JS("null")
		}
		return template.JS(b)
	},
	"css": func(s string) template.CSS { return template.CSS(s) },
}

var page = template.Must(template.New("report.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/report.html.tmpl"))

// WriteHTML renders r as a single self-contained HTML document. Charts are
// embedded as data URIs; only the interactive map loads Leaflet and tiles
// from the network.
func WriteHTML(w io.Writer, r *Report) error {
	if err := page.Execute(w, r); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// Output file names inside the report directory.
const (
	HTMLFile     = "report.html"
	MapFile      = "map.png"
	ForecastFile = "forecast.png"
	GeoJSONFile  = "boroughs.geojson"
	WorkbookFile = "summary.xlsx"
)

// WriteFiles writes the HTML report, every chart PNG, the static map and
// the annotated borough GeoJSON into dir, creating it if needed. It
// returns the paths written.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		if len(data) == 0 {
			return nil
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for _, s := range r.Sections {
		if err := write(s.File(), s.PNG); err != nil {
			return written, err
		}
	}
	if err := write(ForecastFile, r.Forecast.PNG); err != nil {
		return written, err
	}
	if err := write(MapFile, r.Map.PNG); err != nil {
		return written, err
	}
	if err := write(GeoJSONFile, r.Map.GeoJSON); err != nil {
		return written, err
	}

	path := filepath.Join(dir, HTMLFile)
	f, err := os.Create(path)
	if err != nil {
		return written, fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteHTML(f, r); err != nil {
		f.Close()
		return written, err
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", path, err)
	}
	return append(written, path), nil
}
