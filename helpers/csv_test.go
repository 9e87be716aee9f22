package helpers

import (
	"os"
	"testing"

	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/schema"
)

func TestParseCSVAuto_Incidents(t *testing.T) {
	data, err := os.ReadFile("../dataset/testdata/incidents.csv")
	if err != nil {
		t.Fatal(err)
	}

	records, sch, err := ParseCSVAuto(data)
	if err != nil {
		t.Fatalf("ParseCSVAuto() error = %v", err)
	}
	if len(records) != 12 {
		t.Fatalf("records = %d, want 12", len(records))
	}
	if !sch.HasKey("precinct") {
		t.Error("discovered schema should contain precinct")
	}

	first := records[0]
	if first.Dimensions["boro"] != "BRONX" {
		t.Errorf("boro = %q", first.Dimensions["boro"])
	}
	if first.Dimensions[DateKey] != "2021-05-27" {
		t.Errorf("date = %q, want 2021-05-27", first.Dimensions[DateKey])
	}
	if first.Measures["record_count"] != 1 {
		t.Errorf("record_count = %v", first.Measures["record_count"])
	}
	if first.Measures["latitude"] != 40.81 {
		t.Errorf("latitude = %v", first.Measures["latitude"])
	}

	// The normalised date dimension lets the engine group by year.
	view := engine.NewSliceView(records)
	groups := engine.GroupAndAggregate(view, []string{"year"}, "record_count", "count", "chronological", 0)
	if len(groups) != 3 || groups[0].Key != "2019" || groups[0].Count != 4 {
		t.Errorf("year groups = %+v", groups)
	}
}

func TestParseCSV_WithSchema(t *testing.T) {
	data := []byte("Team,Points,Ignored\nred,10,x\nblue,2.5,y\nred,bad,z\n")
	sch := schema.Config{
		Dimensions: []schema.DimensionMeta{schema.DefaultDimension("team", "Team", nil)},
		Measures: []schema.MeasureMeta{
			schema.DefaultMeasure("points", "Points"),
			{Key: "record_count", IsSynthetic: true, DefaultAggregation: "count"},
		},
	}

	view, err := ParseCSVView(data, sch)
	if err != nil {
		t.Fatal(err)
	}
	if view.Len() != 3 {
		t.Fatalf("len = %d", view.Len())
	}
	if got := engine.SumMeasure(view, "points"); got != 12.5 {
		t.Errorf("sum points = %v, want 12.5 (unparseable values count as 0)", got)
	}
	if view.Dimension(0, "ignored") != "" {
		t.Error("unmapped column should be skipped")
	}
	if engine.SumMeasure(view, "record_count") != 3 {
		t.Error("record_count should be 1 per row")
	}
}

func TestParseCSV_BadHeader(t *testing.T) {
	if _, err := ParseCSV(nil, schema.Config{}); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestIsDateLayout(t *testing.T) {
	tests := map[string]bool{
		"01/02/2006":  true,
		"2006-01-02":  true,
		"Jan 2, 2006": true,
		"Jan-2006":    false,
		"2006-01":     false,
		"15:04:05":    false,
	}
	for layout, want := range tests {
		if got := isDateLayout(layout); got != want {
			t.Errorf("isDateLayout(%q) = %v, want %v", layout, got, want)
		}
	}
}
