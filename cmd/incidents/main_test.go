package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spektr-org/incidents/config"
	"github.com/spektr-org/incidents/dataset"
	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/logging"
	"github.com/spektr-org/incidents/report"
)

const boroughsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"boro_name":"Bronx"},"geometry":{"type":"Polygon","coordinates":[[[-73.95,40.79],[-73.85,40.79],[-73.85,40.90],[-73.95,40.90],[-73.95,40.79]]]}},
 {"type":"Feature","properties":{"boro_name":"Brooklyn"},"geometry":{"type":"Polygon","coordinates":[[[-74.00,40.60],[-73.85,40.60],[-73.85,40.70],[-74.00,40.70],[-74.00,40.60]]]}}
]}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	gj := filepath.Join(dir, "boroughs.geojson")
	if err := os.WriteFile(gj, []byte(boroughsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Source.IncidentsURL = filepath.Join("..", "..", "dataset", "testdata", "incidents.csv")
	cfg.Source.BoroughsURL = gj
	cfg.Report.OutDir = filepath.Join(dir, "out")
	cfg.Report.ChartWidth, cfg.Report.ChartHeight = 400, 240
	return cfg
}

func TestPrepareAndBuild(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	in, err := prepare(ctx, cfg, logging.NopLogger())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(in.Incidents) != 12 || len(in.Boroughs.Items) != 2 {
		t.Fatalf("incidents = %d, boroughs = %d", len(in.Incidents), len(in.Boroughs.Items))
	}
	// Lon_Lat is among the default excluded columns and present upstream.
	if in.Frame.Has("Lon_Lat") {
		t.Error("Lon_Lat was not dropped")
	}

	r, err := report.Build(ctx, in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := report.WriteFiles(cfg.Report.OutDir, r); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	path := filepath.Join(cfg.Report.OutDir, report.WorkbookFile)
	if err := writeWorkbook(path, r); err != nil {
		t.Fatalf("writeWorkbook: %v", err)
	}
	for _, name := range []string{report.HTMLFile, report.WorkbookFile} {
		if _, err := os.Stat(filepath.Join(cfg.Report.OutDir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestPrepareFetchError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.BoroughsURL = filepath.Join(t.TempDir(), "missing.geojson")

	if _, err := prepare(context.Background(), cfg, logging.NopLogger()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestLoadAnalyses(t *testing.T) {
	specs, err := loadAnalyses("")
	if err != nil || len(specs) == 0 || specs[0].Name != "by_month" {
		t.Fatalf("built-in analyses = %v, %v", specs, err)
	}

	path := filepath.Join(t.TempDir(), "analyses.yaml")
	doc := "analyses:\n  - title: Incidents by precinct\n    groupBy: [precinct]\n    limit: 5\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	specs, err = loadAnalyses(path)
	if err != nil {
		t.Fatalf("loadAnalyses: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "incidents_by_precinct" || specs[0].Limit != 5 {
		t.Errorf("specs = %+v", specs)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("- groupBy: [shoe_size]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadAnalyses(bad); err == nil || !strings.Contains(err.Error(), "shoe_size") {
		t.Errorf("unknown dimension: err = %v", err)
	}
}

func TestQuerySpec(t *testing.T) {
	spec, err := querySpec([]string{"borough"}, []string{"murder=true", "vic_sex=M"})
	if err != nil {
		t.Fatalf("querySpec: %v", err)
	}
	if spec.Intent != "chart" || spec.Aggregation != "count" || spec.SortBy != "value_desc" {
		t.Errorf("spec = %+v", spec)
	}
	if got := spec.Filters.Dimensions["murder"]; len(got) != 1 || got[0] != "true" {
		t.Errorf("filters = %v", spec.Filters.Dimensions)
	}

	if spec, err := querySpec(nil, nil); err != nil || spec.Intent != "text" {
		t.Errorf("no group-by: %+v, %v", spec, err)
	}
	if _, err := querySpec(nil, []string{"borough"}); err == nil {
		t.Error("malformed filter accepted")
	}
	if _, err := querySpec([]string{"a", "b", "c"}, nil); err == nil {
		t.Error("three group-by dimensions accepted")
	}
}

func queryResult(t *testing.T, groupBy ...string) (engine.QuerySpec, *engine.Result) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "dataset", "testdata", "incidents.csv"))
	if err != nil {
		t.Fatal(err)
	}
	f, err := dataset.Load(data, dataset.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	incidents, _, err := dataset.Clean(f)
	if err != nil {
		t.Fatal(err)
	}
	spec, err := querySpec(groupBy, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.Execute(spec, dataset.View(incidents), engine.WithDefaultMeasure(dataset.MeasureIncidents))
	if err != nil {
		t.Fatal(err)
	}
	return spec, res
}

func TestWriteResult(t *testing.T) {
	spec, res := queryResult(t, "borough")

	var buf bytes.Buffer
	if err := writeResult(&buf, spec, res, "csv"); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("csv lines = %q", lines)
	}
	if !strings.HasPrefix(lines[1], "BRONX,4") && !strings.HasPrefix(lines[1], "BROOKLYN,4") {
		t.Errorf("first row = %q", lines[1])
	}

	buf.Reset()
	if err := writeResult(&buf, spec, res, "pretty"); err != nil {
		t.Fatalf("pretty: %v", err)
	}
	if !strings.Contains(buf.String(), `"querySpec"`) || !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("pretty = %s", buf.String())
	}

	buf.Reset()
	if err := writeResult(&buf, spec, res, "text"); err != nil {
		t.Fatalf("text: %v", err)
	}
	if !strings.Contains(buf.String(), "QUEENS\t2") {
		t.Errorf("text = %q", buf.String())
	}
}

func TestWriteResultText(t *testing.T) {
	spec, res := queryResult(t)

	var buf bytes.Buffer
	if err := writeResult(&buf, spec, res, "csv"); err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Summary\n") {
		t.Errorf("csv = %q", buf.String())
	}
}

func TestFmtNum(t *testing.T) {
	if got := fmtNum(12); got != "12" {
		t.Errorf("fmtNum(12) = %q", got)
	}
	if got := fmtNum(1.5); got != "1.50" {
		t.Errorf("fmtNum(1.5) = %q", got)
	}
}
