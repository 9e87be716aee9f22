// Package report assembles one exploratory report run: it executes the
// analyses through the engine, renders their charts, fits the yearly
// forecast, prepares the borough map and records the data checks. Writers
// then turn the Report into an HTML document, an XLSX workbook or
// terminal tables.
package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spektr-org/incidents/dataset"
	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/forecast"
	"github.com/spektr-org/incidents/geo"
	"github.com/spektr-org/incidents/logging"
	"github.com/spektr-org/incidents/render"
)

// ============================================================================
// INPUTS
// ============================================================================

// Inputs is everything Build needs. Frame, Incidents and Boroughs come from
// the fetch → load → clean steps.
type Inputs struct {
	Title  string
	Source Source

	Frame     *dataset.Frame
	Incidents []dataset.Incident
	Clean     dataset.CleanStats
	Boroughs  *geo.Boroughs

	Analyses []engine.QuerySpec
	Chart    render.Options
	Forecast ForecastOptions
	Map      MapOptions

	Logger *logging.Logger
	Now    func() time.Time
}

// Source records where the inputs were fetched from.
type Source struct {
	IncidentsURL string
	BoroughsURL  string
}

// ForecastOptions controls the yearly extrapolation.
type ForecastOptions struct {
	Horizon         int
	ExcludeLastYear bool
}

// MapOptions controls the map section.
type MapOptions struct {
	TilesURL  string
	Precision uint
	MaxPoints int
}

// ============================================================================
// REPORT
// ============================================================================

// Report is the assembled, render-ready result of one run.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Source      Source

	Summary  Summary
	Audit    dataset.AuditReport
	Sections []Section
	Forecast ForecastSection
	Map      MapSection
}

// Summary holds headline numbers about the cleaned dataset.
type Summary struct {
	Rows            int
	Incidents       int
	Murders         int
	MissingDate     int
	MissingTime     int
	MissingLocation int
	Mapped          int
	FirstYear       int
	LastYear        int
	Period          string
	Dropped         []string
	NotFound        []string

	// Recorded borough vs the polygon containing the coordinates.
	LocatedChecked  int
	LocatedMatched  int
	LocatedOutside  int
	LocatedMismatch int
}

// Section is one executed analysis.
type Section struct {
	Name   string
	Title  string
	Type   string // chart, table, text
	Reply  string
	Result *engine.Result
	PNG    []byte
}

// File is the image file name of the section's chart.
// Only the last path element of Name is used, so the file always lands in
// the output directory.
func (s Section) File() string {
	name := filepath.Base(filepath.Clean("/" + filepath.ToSlash(s.Name)))
	if name == "/" || name == string(filepath.Separator) || name == "." {
		name = "section"
	}
	return name + ".png"
}

// ForecastSection is the Poisson extrapolation of yearly counts.
type ForecastSection struct {
	Observed    []forecast.YearCount
	Excluded    int // year left out of the fit, 0 when none
	Result      *forecast.Result
	ByBorough   []forecast.GroupResult
	PNG         []byte
	Unavailable string // why no forecast was fitted
}

// MapSection carries the choropleth numbers, point clusters and images.
type MapSection struct {
	Choropleth *geo.ChoroplethData
	Clusters   []geo.Cell
	GeoJSON    []byte
	PNG        []byte
	TilesURL   string
	CenterLat  float64
	CenterLon  float64
}

// Build runs every step after cleaning. Any analysis, render or encoding
// failure aborts the build; too few years for a forecast does not.
func Build(ctx context.Context, in Inputs) (*Report, error) {
	if len(in.Incidents) == 0 {
		return nil, dataset.ErrNoRows
	}
	if in.Frame == nil {
		return nil, errors.New("report: no frame")
	}
	if in.Boroughs == nil {
		return nil, geo.ErrNoBoroughs
	}
	log := in.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}

	r := &Report{
		Title:       in.Title,
		GeneratedAt: now(),
		Source:      in.Source,
	}
	view := dataset.View(in.Incidents)
	mapped := dataset.Mapped(in.Incidents)

	r.Summary = summarize(in, mapped)

	// ── Audit ──
	months := engine.GroupAndAggregate(view, []string{dataset.DimMonth}, dataset.MeasureIncidents, "count", "calendar", 0)
	r.Audit = dataset.Audit(in.Frame, in.Incidents, months, mapped)
	for _, c := range r.Audit.Failed() {
		log.Phase("audit").Warn("check failed", "check", c.Name, "detail", c.Detail)
	}

	// ── Analyses ──
	alog := log.Phase("analyze")
	for _, spec := range in.Analyses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := engine.Execute(spec, view, engine.WithLogger(alog), engine.WithDefaultMeasure(dataset.MeasureIncidents))
		if err != nil {
			return nil, fmt.Errorf("analysis %s: %w", spec.Name, err)
		}
		sec := Section{Name: spec.Name, Title: spec.Title, Type: res.Type, Reply: res.Reply, Result: res}
		if res.ChartConfig != nil {
			png, err := render.Render(res.ChartConfig, in.Chart)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", spec.Name, err)
			}
			sec.PNG = png
		}
		r.Sections = append(r.Sections, sec)
	}

	// ── Forecast ──
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fc, err := buildForecast(view, in.Forecast, in.Chart, log.Phase("forecast"))
	if err != nil {
		return nil, err
	}
	r.Forecast = fc

	// ── Map ──
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := buildMap(r.Title, view, mapped, in, &r.Summary)
	if err != nil {
		return nil, err
	}
	r.Map = m
	log.Phase("map").Info("map prepared",
		"boroughs", len(in.Boroughs.Items),
		"clusters", len(m.Clusters),
		"mapped", len(mapped))

	return r, nil
}

func summarize(in Inputs, mapped []dataset.Incident) Summary {
	s := Summary{
		Rows:            in.Clean.Rows,
		Incidents:       len(in.Incidents),
		Murders:         in.Clean.Murders,
		MissingDate:     in.Clean.MissingDate,
		MissingTime:     in.Clean.MissingTime,
		MissingLocation: in.Clean.MissingLocation,
		Mapped:          len(mapped),
		Dropped:         in.Frame.Dropped,
		NotFound:        in.Frame.NotFound,
	}
	if s.Rows == 0 {
		s.Rows = in.Frame.Nrow()
	}
	s.FirstYear, s.LastYear, _ = dataset.YearRange(in.Incidents)
	s.Period = engine.DerivePeriod(dataset.View(in.Incidents))
	return s
}

func buildForecast(view engine.RecordView, opts ForecastOptions, chartOpts render.Options, log *logging.Logger) (ForecastSection, error) {
	var fs ForecastSection

	years := engine.GroupAndAggregate(view, []string{dataset.DimYear}, dataset.MeasureIncidents, "count", "chronological", 0)
	points, err := forecast.FromGroups(years)
	if err != nil {
		return fs, err
	}
	fs.Observed = points

	fit := points
	if opts.ExcludeLastYear && len(points) > 0 {
		fs.Excluded = points[len(points)-1].Year
		fit = forecast.DropLastYear(points)
	}

	res, err := forecast.Forecast(fit, opts.Horizon)
	if forecast.IsInsufficient(err) {
		fs.Unavailable = "At least two years of data are needed to fit a trend."
		log.Warn("forecast skipped", "years", len(fit))
		return fs, nil
	}
	if err != nil {
		return fs, fmt.Errorf("forecast: %w", err)
	}
	fs.Result = res

	nested := engine.GroupAndAggregate(view, []string{dataset.DimYear, dataset.DimBorough}, dataset.MeasureIncidents, "count", "chronological", 0)
	byBorough, err := forecast.FromNestedGroups(nested)
	if err != nil {
		return fs, fmt.Errorf("forecast by borough: %w", err)
	}
	if fs.Excluded != 0 {
		for name, pts := range byBorough {
			byBorough[name] = forecast.DropLastYear(pts)
		}
	}
	fs.ByBorough = forecast.ForecastBy(byBorough, opts.Horizon)

	next := res.Next()
	log.Info("forecast fitted",
		"years", res.Model.N,
		"slope", res.Model.Slope,
		"next_year", next.Year,
		"expected", next.Expected)

	cfg := observedChart(fit)
	chartOpts.Forecast = make([]render.ForecastPoint, len(res.Predictions))
	for i, p := range res.Predictions {
		chartOpts.Forecast[i] = render.ForecastPoint{
			Label: fmt.Sprint(p.Year),
			Value: p.Expected,
			Lower: p.Lower,
			Upper: p.Upper,
		}
	}
	png, err := render.LineChart(cfg, chartOpts)
	if err != nil {
		return fs, fmt.Errorf("render forecast: %w", err)
	}
	fs.PNG = png
	return fs, nil
}

func observedChart(points []forecast.YearCount) *engine.ChartConfig {
	s := engine.ChartSeries{Name: "Observed"}
	for _, p := range points {
		s.Data = append(s.Data, engine.ChartPoint{Label: fmt.Sprint(p.Year), Value: p.Count})
	}
	return &engine.ChartConfig{
		ChartType:  "line",
		Title:      "Incidents per year with Poisson forecast",
		XAxis:      "Year",
		YAxis:      "Incidents",
		Series:     []engine.ChartSeries{s},
		Colors:     engine.Palette()[:1],
		ShowLegend: true,
		ShowGrid:   true,
	}
}

func buildMap(title string, view engine.RecordView, mapped []dataset.Incident, in Inputs, s *Summary) (MapSection, error) {
	ms := MapSection{TilesURL: in.Map.TilesURL}

	counts := make(map[string]int)
	for _, g := range engine.GroupAndAggregate(view, []string{dataset.DimBorough}, dataset.MeasureIncidents, "count", "label_asc", 0) {
		counts[g.Key] = g.Count
	}
	ms.Choropleth = geo.Choropleth(in.Boroughs, counts)

	points := make([]geo.Point, len(mapped))
	for i, inc := range mapped {
		points[i] = geo.Point{Lat: inc.Latitude, Lon: inc.Longitude, Murder: inc.Murder}

		s.LocatedChecked++
		name, ok := in.Boroughs.Locate(inc.Longitude, inc.Latitude)
		switch {
		case !ok:
			s.LocatedOutside++
		case geo.Key(name) == geo.Key(inc.Borough):
			s.LocatedMatched++
		default:
			s.LocatedMismatch++
		}
		ms.CenterLat += inc.Latitude
		ms.CenterLon += inc.Longitude
	}
	if len(mapped) > 0 {
		ms.CenterLat /= float64(len(mapped))
		ms.CenterLon /= float64(len(mapped))
	} else {
		b := in.Boroughs.Bounds()
		ms.CenterLon = (b.Min(0) + b.Max(0)) / 2
		ms.CenterLat = (b.Min(1) + b.Max(1)) / 2
	}
	ms.Clusters = geo.Limit(geo.Cluster(points, in.Map.Precision), in.Map.MaxPoints)

	gj, err := geo.FeatureCollection(in.Boroughs, ms.Choropleth)
	if err != nil {
		return ms, fmt.Errorf("encode boroughs: %w", err)
	}
	ms.GeoJSON = gj

	mapOpts := in.Chart
	mapOpts.Height = mapOpts.Width
	png, err := render.ChoroplethPNG(strings.TrimSpace(title+" by borough"), in.Boroughs, ms.Choropleth, points, mapOpts)
	if err != nil {
		return ms, fmt.Errorf("render map: %w", err)
	}
	ms.PNG = png
	return ms, nil
}
