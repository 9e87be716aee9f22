package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/incidents/dataset"
	"github.com/spektr-org/incidents/geo"
	"github.com/spektr-org/incidents/render"
	"github.com/spektr-org/incidents/translator"
)

// No Staten Island polygon: its incidents fall outside every boundary.
const boundaries = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"boro_name": "Bronx"},
     "geometry": {"type": "Polygon", "coordinates": [[[-73.95,40.79],[-73.85,40.79],[-73.85,40.90],[-73.95,40.90],[-73.95,40.79]]]}},
    {"type": "Feature", "properties": {"boro_name": "Brooklyn"},
     "geometry": {"type": "Polygon", "coordinates": [[[-74.00,40.60],[-73.85,40.60],[-73.85,40.70],[-74.00,40.70],[-74.00,40.60]]]}},
    {"type": "Feature", "properties": {"boro_name": "Queens"},
     "geometry": {"type": "Polygon", "coordinates": [[[-73.84,40.68],[-73.70,40.68],[-73.70,40.78],[-73.84,40.78],[-73.84,40.68]]]}}
  ]
}`

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func inputs(t *testing.T) Inputs {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "dataset", "testdata", "incidents.csv"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	f, err := dataset.Load(data, dataset.LoadOptions{DropColumns: []string{"LOC_OF_OCCUR_DESC", "Lon_Lat", "NOT_THERE"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	incidents, stats, err := dataset.Clean(f)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	b, err := geo.DecodeBoroughs([]byte(boundaries), "boro_name")
	if err != nil {
		t.Fatalf("DecodeBoroughs: %v", err)
	}
	opts := render.DefaultOptions()
	opts.Width, opts.Height = 400, 240
	return Inputs{
		Title:     "Shooting Incidents",
		Source:    Source{IncidentsURL: "file://incidents.csv", BoroughsURL: "file://boroughs.geojson"},
		Frame:     f,
		Incidents: incidents,
		Clean:     stats,
		Boroughs:  b,
		Analyses:  translator.DefaultAnalyses(),
		Chart:     opts,
		Forecast:  ForecastOptions{Horizon: 1},
		Map:       MapOptions{TilesURL: "https://tiles.example/{z}/{x}/{y}.png", Precision: 5},
		Now:       func() time.Time { return fixedNow },
	}
}

func build(t *testing.T, in Inputs) *Report {
	t.Helper()
	r, err := Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}

// ── Build ──

func TestBuild_Summary(t *testing.T) {
	r := build(t, inputs(t))

	s := r.Summary
	if s.Rows != 12 || s.Incidents != 12 || s.Murders != 6 {
		t.Errorf("rows/incidents/murders = %d/%d/%d", s.Rows, s.Incidents, s.Murders)
	}
	if s.Mapped != 11 || s.MissingLocation != 1 {
		t.Errorf("mapped/missing = %d/%d", s.Mapped, s.MissingLocation)
	}
	if s.FirstYear != 2019 || s.LastYear != 2021 {
		t.Errorf("years = %d-%d", s.FirstYear, s.LastYear)
	}
	if len(s.Dropped) != 2 || len(s.NotFound) != 1 || s.NotFound[0] != "NOT_THERE" {
		t.Errorf("dropped = %v, not found = %v", s.Dropped, s.NotFound)
	}
	if s.LocatedChecked != 11 || s.LocatedMatched != 10 || s.LocatedOutside != 1 || s.LocatedMismatch != 0 {
		t.Errorf("located = %d checked, %d matched, %d outside, %d mismatched",
			s.LocatedChecked, s.LocatedMatched, s.LocatedOutside, s.LocatedMismatch)
	}
	if !r.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v", r.GeneratedAt)
	}
	if !r.Audit.Passed() {
		t.Errorf("audit failed: %+v", r.Audit.Failed())
	}
}

func TestBuild_Sections(t *testing.T) {
	in := inputs(t)
	r := build(t, in)

	if len(r.Sections) != len(in.Analyses) {
		t.Fatalf("sections = %d, want %d", len(r.Sections), len(in.Analyses))
	}
	byName := make(map[string]Section)
	for _, s := range r.Sections {
		byName[s.Name] = s
	}

	month := byName["by_month"]
	if month.Type != "chart" || !bytes.HasPrefix(month.PNG, []byte("\x89PNG")) {
		t.Errorf("by_month type = %q, png = %d bytes", month.Type, len(month.PNG))
	}
	if n := len(month.Result.Groups); n != 12 {
		t.Errorf("by_month groups = %d, want 12", n)
	}

	year := byName["by_year"]
	if len(year.Result.Groups) != 3 {
		t.Errorf("by_year groups = %d", len(year.Result.Groups))
	}
	for _, g := range year.Result.Groups {
		if g.Count != 4 {
			t.Errorf("year %s count = %d, want 4", g.Key, g.Count)
		}
	}

	share := byName["murder_share"]
	if share.Type != "text" || share.PNG != nil {
		t.Errorf("murder_share type = %q, png = %d bytes", share.Type, len(share.PNG))
	}
	if !strings.Contains(share.Reply, "50") {
		t.Errorf("murder_share reply = %q", share.Reply)
	}
	if month.File() != "by_month.png" {
		t.Errorf("File() = %q", month.File())
	}
}

func TestBuild_Forecast(t *testing.T) {
	r := build(t, inputs(t))

	fc := r.Forecast
	if fc.Result == nil {
		t.Fatalf("no forecast: %s", fc.Unavailable)
	}
	if len(fc.Observed) != 3 || fc.Excluded != 0 {
		t.Errorf("observed = %v, excluded = %d", fc.Observed, fc.Excluded)
	}
	next := fc.Result.Next()
	if next.Year != 2022 {
		t.Errorf("next year = %d", next.Year)
	}
	// Flat 4/4/4 counts extrapolate to 4.
	if next.Expected < 3.99 || next.Expected > 4.01 {
		t.Errorf("expected = %v, want 4", next.Expected)
	}
	if !(next.Lower < next.Expected && next.Expected < next.Upper) {
		t.Errorf("interval = [%v, %v]", next.Lower, next.Upper)
	}
	if len(fc.ByBorough) != 4 {
		t.Errorf("by borough = %d groups", len(fc.ByBorough))
	}
	if !bytes.HasPrefix(fc.PNG, []byte("\x89PNG")) {
		t.Error("forecast chart is not a PNG")
	}
}

func TestBuild_ForecastExcludeLastYear(t *testing.T) {
	in := inputs(t)
	in.Forecast.ExcludeLastYear = true
	r := build(t, in)

	if r.Forecast.Excluded != 2021 {
		t.Fatalf("excluded = %d", r.Forecast.Excluded)
	}
	if got := r.Forecast.Result.Model.LastYear; got != 2020 {
		t.Errorf("fit last year = %d", got)
	}
	if got := r.Forecast.Result.Next().Year; got != 2021 {
		t.Errorf("next year = %d", got)
	}
}

func TestBuild_ForecastUnavailable(t *testing.T) {
	in := inputs(t)
	var single []dataset.Incident
	for _, inc := range in.Incidents {
		if inc.Year == 2020 {
			single = append(single, inc)
		}
	}
	in.Incidents = single
	in.Clean = dataset.CleanStats{}

	r := build(t, in)
	if r.Forecast.Result != nil || r.Forecast.Unavailable == "" {
		t.Errorf("forecast = %+v", r.Forecast)
	}
	if r.Audit.Passed() {
		t.Error("audit should flag the dropped rows")
	}
}

func TestBuild_SingleYear(t *testing.T) {
	in := inputs(t)
	var single []dataset.Incident
	for _, inc := range in.Incidents {
		if inc.Year == 2020 {
			single = append(single, inc)
		}
	}
	in.Incidents = single

	r, err := Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build with one year: %v", err)
	}
	for _, name := range []string{"by_year", "by_year_vic_sex"} {
		var found bool
		for _, s := range r.Sections {
			if s.Name != name {
				continue
			}
			found = true
			if !bytes.HasPrefix(s.PNG, []byte("\x89PNG")) {
				t.Errorf("%s: png = %d bytes", name, len(s.PNG))
			}
			if n := len(s.Result.Groups); n != 1 {
				t.Errorf("%s: groups = %d, want 1", name, n)
			}
		}
		if !found {
			t.Errorf("section %s missing", name)
		}
	}
}

func TestBuild_Map(t *testing.T) {
	r := build(t, inputs(t))

	ch := r.Map.Choropleth
	if ch.Total != 10 {
		t.Errorf("choropleth total = %d, want 10", ch.Total)
	}
	if ch.Unmatched["STATEN ISLAND"] != 2 {
		t.Errorf("unmatched = %v", ch.Unmatched)
	}
	if bx, ok := ch.Stat("BRONX"); !ok || bx.Count != 4 {
		t.Errorf("Bronx = %+v, %v", bx, ok)
	}
	total := 0
	for _, c := range r.Map.Clusters {
		total += c.Count
	}
	if total != 11 {
		t.Errorf("clustered points = %d, want 11", total)
	}
	if !bytes.Contains(r.Map.GeoJSON, []byte(`"FeatureCollection"`)) {
		t.Errorf("geojson = %s", r.Map.GeoJSON)
	}
	if !bytes.HasPrefix(r.Map.PNG, []byte("\x89PNG")) {
		t.Error("map is not a PNG")
	}
	if r.Map.CenterLat < 40.6 || r.Map.CenterLat > 40.9 {
		t.Errorf("center lat = %v", r.Map.CenterLat)
	}
}

func TestBuild_MaxPoints(t *testing.T) {
	in := inputs(t)
	in.Map.MaxPoints = 2
	r := build(t, in)
	if len(r.Map.Clusters) != 2 {
		t.Errorf("clusters = %d, want 2", len(r.Map.Clusters))
	}
}

func TestBuild_Errors(t *testing.T) {
	in := inputs(t)
	in.Incidents = nil
	if _, err := Build(context.Background(), in); !errors.Is(err, dataset.ErrNoRows) {
		t.Errorf("no incidents: err = %v", err)
	}

	in = inputs(t)
	in.Boroughs = nil
	if _, err := Build(context.Background(), in); !errors.Is(err, geo.ErrNoBoroughs) {
		t.Errorf("no boroughs: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, inputs(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v", err)
	}

	in = inputs(t)
	in.Analyses[0].GroupBy = nil
	if _, err := Build(context.Background(), in); err == nil || !strings.Contains(err.Error(), "by_month") {
		t.Errorf("bad analysis: err = %v", err)
	}
}

// ── Writers ──

func TestWriteHTML(t *testing.T) {
	r := build(t, inputs(t))

	var buf bytes.Buffer
	if err := WriteHTML(&buf, r); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		"<title>Shooting Incidents</title>",
		`id="by_month"`,
		`id="by_vic_sex"`,
		"data:image/png;base64,",
		"leaflet.js",
		`"type":"FeatureCollection"`,
		"Coordinates fall inside the recorded borough",
		"10 of 11",
		"2022",
		"By borough",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(html, "ZgotmplZ") {
		t.Error("html contains a sanitised value")
	}
}

func TestWriteFiles(t *testing.T) {
	r := build(t, inputs(t))
	dir := filepath.Join(t.TempDir(), "out")

	written, err := WriteFiles(dir, r)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	for _, name := range []string{HTMLFile, MapFile, ForecastFile, GeoJSONFile, "by_year.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "murder_share.png")); !os.IsNotExist(err) {
		t.Errorf("text section wrote a chart: %v", err)
	}
	if last := written[len(written)-1]; filepath.Base(last) != HTMLFile {
		t.Errorf("last written = %s", last)
	}
}

func TestSectionFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"by_year", "by_year.png"},
		{"../../x", "x.png"},
		{"a/b", "b.png"},
		{"", "section.png"},
		{"..", "section.png"},
	}
	for _, tt := range tests {
		if got := (Section{Name: tt.name}).File(); got != tt.want {
			t.Errorf("File(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestWriteFiles_StaysInDirectory(t *testing.T) {
	r := build(t, inputs(t))
	r.Sections[0].Name = "../escaped"
	root := t.TempDir()
	dir := filepath.Join(root, "out")

	if _, err := WriteFiles(dir, r); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escaped.png")); !os.IsNotExist(err) {
		t.Errorf("chart written outside the output directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escaped.png")); err != nil {
		t.Errorf("escaped.png: %v", err)
	}
}

func TestWriteWorkbook(t *testing.T) {
	r := build(t, inputs(t))

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, r, WorkbookOptions{Pictures: true}); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := strings.Join(f.GetSheetList(), ",")
	for _, want := range []string{"Summary", "by_month", "by_year_vic_sex", "Forecast", "Boroughs"} {
		if !strings.Contains(sheets, want) {
			t.Errorf("sheets %s missing %s", sheets, want)
		}
	}
	if strings.Contains(sheets, "murder_share") {
		t.Errorf("text section got a sheet: %s", sheets)
	}

	v, err := f.GetCellValue("Summary", "B8")
	if err != nil || v != "12" {
		t.Errorf("Summary!B8 = %q, %v", v, err)
	}
	v, _ = f.GetCellValue("Forecast", "A2")
	if v != "2019" {
		t.Errorf("Forecast!A2 = %q", v)
	}
	pics, err := f.GetPictures("by_month", "E2")
	if err != nil || len(pics) != 1 {
		t.Errorf("by_month pictures = %d, %v", len(pics), err)
	}
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"Summary": true}
	if got := sheetName("Summary", used); got != "Summary_2" {
		t.Errorf("duplicate = %q", got)
	}
	long := strings.Repeat("x", 40)
	if got := sheetName(long, used); len(got) != maxSheetName {
		t.Errorf("long = %q", got)
	}
	if got := sheetName(long, used); got != strings.Repeat("x", 29)+"_2" {
		t.Errorf("long duplicate = %q", got)
	}
	if got := sheetName("a/b:c", used); got != "a_b_c" {
		t.Errorf("invalid chars = %q", got)
	}
}

func TestPrintSummary(t *testing.T) {
	r := build(t, inputs(t))

	var buf bytes.Buffer
	if err := PrintSummary(&buf, r); err != nil {
		t.Fatalf("PrintSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Shooting Incidents", "Data checks", "row_count", "Incidents by month of year", "BRONX", "Forecast", "2022"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}
