package engine

import (
	"strings"
	"testing"
)

func rec(date, boro, sex string, murder float64) Record {
	return Record{
		Dimensions: map[string]string{"date": date, "boro": boro, "vic_sex": sex},
		Measures:   map[string]float64{"incidents": 1, "murders": murder},
	}
}

func sampleView() RecordView {
	return NewSliceView([]Record{
		rec("2019-01-05", "BRONX", "M", 1),
		rec("2019-03-11", "BROOKLYN", "F", 0),
		rec("2019-03-20", "BRONX", "M", 0),
		rec("2020-01-02", "QUEENS", "M", 1),
		rec("2020-07-04", "BRONX", "F", 0),
		rec("2020-12-31", "BROOKLYN", "M", 0),
		rec("2021-07-15", "BRONX", "", 1),
	})
}

func TestApplyFilters(t *testing.T) {
	view := sampleView()

	tests := []struct {
		name    string
		filters Filters
		want    int
	}{
		{"empty", Filters{}, 7},
		{"single value", Filters{Dimensions: map[string][]string{"boro": {"BRONX"}}}, 4},
		{"case insensitive", Filters{Dimensions: map[string][]string{"boro": {"bronx"}}}, 4},
		{"or within dimension", Filters{Dimensions: map[string][]string{"boro": {"BRONX", "QUEENS"}}}, 5},
		{"and across dimensions", Filters{Dimensions: map[string][]string{"boro": {"BRONX"}, "vic_sex": {"M"}}}, 2},
		{"virtual year", Filters{Dimensions: map[string][]string{"year": {"2020"}}}, 3},
		{"no match", Filters{Dimensions: map[string][]string{"boro": {"STATEN ISLAND"}}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyFilters(view, tt.filters).Len(); got != tt.want {
				t.Errorf("ApplyFilters() len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFilterArgs(t *testing.T) {
	f, bad := ParseFilterArgs([]string{"boro=BRONX", "oops", "boro= QUEENS", "=x"})
	if len(bad) != 2 || bad[0] != 1 || bad[1] != 3 {
		t.Errorf("bad indices = %v, want [1 3]", bad)
	}
	got := f.Dimensions["boro"]
	if len(got) != 2 || got[0] != "BRONX" || got[1] != "QUEENS" {
		t.Errorf("boro values = %v", got)
	}
}

func TestGroupCountsSumToTotal(t *testing.T) {
	view := sampleView()
	for _, dim := range []string{"month", "year", "vic_sex", "boro"} {
		groups := GroupAndAggregate(view, []string{dim}, "incidents", "count", "label_asc", 0)
		sum := 0
		for _, g := range groups {
			sum += g.Count
			if g.Value != float64(g.Count) {
				t.Errorf("%s group %q: value %v != count %d", dim, g.Key, g.Value, g.Count)
			}
		}
		if sum != view.Len() {
			t.Errorf("%s: grouped counts sum to %d, want %d", dim, sum, view.Len())
		}
	}
}

func TestGroupAndAggregate_CalendarSort(t *testing.T) {
	groups := GroupAndAggregate(sampleView(), []string{"month"}, "incidents", "count", "calendar", 0)

	var keys []string
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	if got, want := strings.Join(keys, ","), "Jan,Mar,Jul,Dec"; got != want {
		t.Errorf("calendar order = %s, want %s", got, want)
	}
	if groups[0].Value != 2 || groups[2].Value != 2 {
		t.Errorf("Jan/Jul counts = %v/%v, want 2/2", groups[0].Value, groups[2].Value)
	}
}

func TestGroupAndAggregate_ShareAndLimit(t *testing.T) {
	groups := GroupAndAggregate(sampleView(), []string{"boro"}, "incidents", "share", "value_desc", 2)
	if len(groups) != 2 {
		t.Fatalf("len = %d, want 2", len(groups))
	}
	if groups[0].Key != "BRONX" {
		t.Errorf("top = %s, want BRONX", groups[0].Key)
	}
	if want := 4.0 / 7.0 * 100; RoundTo2(groups[0].Value) != RoundTo2(want) {
		t.Errorf("BRONX share = %v, want %v", groups[0].Value, want)
	}
}

func TestGroupAndAggregate_BlankLabel(t *testing.T) {
	groups := GroupAndAggregate(sampleView(), []string{"vic_sex"}, "incidents", "count", "label_asc", 0)
	if groups[0].Key != "" || groups[0].Label != "(blank)" {
		t.Errorf("first group = %q/%q, want blank key labelled (blank)", groups[0].Key, groups[0].Label)
	}
}

func TestCalendarLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Jan", "Feb", true},
		{"December", "jan", false},
		{"2", "10", true},
		{"Mar", "10", true},
		{"10", "apple", true},
		{"apple", "banana", true},
		{"Mon", "Tue", true},
		{"Sun", "Mon", false},
		{"", "Mon", false},
		{"23", "", true},
	}
	for _, tt := range tests {
		if got := calendarLess(tt.a, tt.b); got != tt.want {
			t.Errorf("calendarLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    float64
		agg  string
		want string
	}{
		{1234567, "count", "1,234,567"},
		{12.5, "share", "12.5%"},
		{3.14159, "avg", "3.14"},
		{1234.5, "sum", "1,234.50"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v, tt.agg); got != tt.want {
			t.Errorf("FormatValue(%v, %s) = %q, want %q", tt.v, tt.agg, got, tt.want)
		}
	}
}

func TestBuildChart_MultiSeriesAligned(t *testing.T) {
	spec := QuerySpec{Intent: "chart", Visualize: "line", GroupBy: []string{"year", "vic_sex"}, Aggregation: "count"}
	groups := GroupAndAggregate(sampleView(), spec.GroupBy, "incidents", "count", "chronological", 0)
	cfg := BuildChart(spec, groups)
	if cfg == nil {
		t.Fatal("BuildChart returned nil")
	}

	names := make([]string, 0, len(cfg.Series))
	for _, s := range cfg.Series {
		names = append(names, s.Name)
		if len(s.Data) != len(groups) {
			t.Errorf("series %s has %d points, want %d", s.Name, len(s.Data), len(groups))
		}
	}
	if got := strings.Join(names, ","); got != "F,M,(blank)" {
		t.Errorf("series = %s, want F,M,(blank)", got)
	}
	if cfg.Series[2].Color != mutedColor || cfg.Colors[0] != defaultColors[0] || cfg.Colors[1] != defaultColors[1] {
		t.Errorf("colors = %v", cfg.Colors)
	}
	if got := strings.Join(cfg.Labels(), ","); got != "2019,2020,2021" {
		t.Errorf("labels = %s", got)
	}
	// 2021 has no male victims in the sample.
	if m := cfg.Series[1].Values(); m[0] != 2 || m[1] != 2 || m[2] != 0 {
		t.Errorf("M values = %v, want [2 2 0]", m)
	}
}

func TestExecute_Chart(t *testing.T) {
	spec := QuerySpec{
		Name:        "by_year",
		Intent:      "chart",
		Visualize:   "line",
		GroupBy:     []string{"year"},
		Aggregation: "count",
		SortBy:      "chronological",
		Reply:       "{total} incidents, {period}. Peak: {top_group} ({top_value}).",
	}
	res, err := Execute(spec, sampleView())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != "chart" || res.ChartConfig == nil || res.TableData == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Count != 7 || len(res.Groups) != 3 {
		t.Errorf("count/groups = %d/%d", res.Count, len(res.Groups))
	}
	want := "7 incidents, 2019 – 2021. Peak: 2019 (3)."
	if res.Reply != want {
		t.Errorf("reply = %q, want %q", res.Reply, want)
	}
}

func TestExecute_ChartWithoutGroupBy(t *testing.T) {
	_, err := Execute(QuerySpec{Name: "bad", Intent: "chart"}, sampleView())
	if err == nil {
		t.Fatal("expected error for chart without groupBy")
	}
}

func TestExecute_Share(t *testing.T) {
	spec := QuerySpec{
		Name:           "murder_share",
		Intent:         "text",
		Aggregation:    "share",
		CompareFilters: &Filters{Dimensions: map[string][]string{"murder": {"true"}}},
		Measure:        "incidents",
	}
	view := NewSliceView([]Record{
		{Dimensions: map[string]string{"murder": "true", "date": "2020-01-01"}, Measures: map[string]float64{"incidents": 1}},
		{Dimensions: map[string]string{"murder": "false", "date": "2020-02-01"}, Measures: map[string]float64{"incidents": 1}},
		{Dimensions: map[string]string{"murder": "false", "date": "2021-02-01"}, Measures: map[string]float64{"incidents": 1}},
		{Dimensions: map[string]string{"murder": "false", "date": "2021-03-01"}, Measures: map[string]float64{"incidents": 1}},
	})
	res, err := Execute(spec, view)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Data == nil || res.Data.Share == nil {
		t.Fatalf("missing share data: %+v", res)
	}
	if res.Data.Share.Percentage != 25 {
		t.Errorf("percentage = %v, want 25", res.Data.Share.Percentage)
	}
	if res.Data.Value != "25.0%" {
		t.Errorf("value = %q", res.Data.Value)
	}
	if !strings.Contains(res.Reply, "25.0%") || strings.Contains(res.Reply, "{") {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestExecute_Growth(t *testing.T) {
	spec := QuerySpec{Intent: "text", Aggregation: "growth"}
	res, err := Execute(spec, sampleView())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	g := res.Data.Growth
	if g == nil {
		t.Fatal("missing growth")
	}
	if g.EarliestPeriod != "2019" || g.LatestPeriod != "2021" || g.Direction != "decreased" {
		t.Errorf("growth = %+v", g)
	}
}

func TestExecute_EmptyAfterFilter(t *testing.T) {
	spec := QuerySpec{Intent: "text", Aggregation: "count", Filters: Filters{Dimensions: map[string][]string{"boro": {"NOWHERE"}}}}
	res, err := Execute(spec, sampleView())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != "text" || res.Count != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestNormalizeQuerySpec(t *testing.T) {
	tests := []struct {
		name       string
		in         QuerySpec
		wantIntent string
		wantViz    string
	}{
		{"list becomes table", QuerySpec{Intent: "chart", Aggregation: "list", GroupBy: []string{"boro"}}, "table", "table"},
		{"chart without groupBy", QuerySpec{Intent: "chart", Aggregation: "count"}, "text", "text"},
		{"share with compare", QuerySpec{Intent: "chart", Aggregation: "share", GroupBy: []string{"boro"}, CompareFilters: &Filters{}}, "text", "text"},
		{"chart defaults to bar", QuerySpec{Intent: "chart", Aggregation: "count", GroupBy: []string{"boro"}}, "chart", "bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeQuerySpec(tt.in)
			if got.Intent != tt.wantIntent || got.Visualize != tt.wantViz {
				t.Errorf("got intent=%s visualize=%s, want %s/%s", got.Intent, got.Visualize, tt.wantIntent, tt.wantViz)
			}
		})
	}
}

func TestDomainAdapter(t *testing.T) {
	type row struct {
		Boro string
		N    float64
	}
	view := NewDomainAdapter[row]().
		Dimension("boro", func(r row) string { return r.Boro }).
		Measure("n", func(r row) float64 { return r.N }).
		Bind([]row{{"BRONX", 2}, {"QUEENS", 3}})

	if view.Len() != 2 || view.Dimension(1, "boro") != "QUEENS" || view.Measure(0, "n") != 2 {
		t.Errorf("unexpected view contents")
	}
	if view.Dimension(5, "boro") != "" || view.Measure(0, "missing") != 0 {
		t.Errorf("out-of-range or unknown key should be zero value")
	}
	if got := SumMeasure(view, "n"); got != 5 {
		t.Errorf("SumMeasure = %v, want 5", got)
	}
}

func TestGroupAndAggregate_DeclaredCategories(t *testing.T) {
	type row struct{ Day, Sex string }
	view := NewDomainAdapter[row]().
		Dimension("weekday", func(r row) string { return r.Day }).
		Dimension("vic_sex", func(r row) string { return r.Sex }).
		Categories("weekday", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun").
		Measure("incidents", func(row) float64 { return 1 }).
		Bind([]row{{"Sun", "M"}, {"Tue", "F"}, {"Sun", ""}, {"", "M"}})

	groups := GroupAndAggregate(view, []string{"weekday"}, "incidents", "count", "calendar", 0)
	var got []string
	for _, g := range groups {
		got = append(got, g.Label+"="+FormatInt(g.Count))
	}
	want := "Mon=0,Tue=1,Wed=0,Thu=0,Fri=0,Sat=0,Sun=2,(blank)=1"
	if strings.Join(got, ",") != want {
		t.Errorf("groups = %s, want %s", strings.Join(got, ","), want)
	}

	// Filtered subsets keep the full axis.
	sub := ApplyFilters(view, Filters{Dimensions: map[string][]string{"vic_sex": {"M"}}})
	if n := len(GroupAndAggregate(sub, []string{"weekday"}, "incidents", "count", "calendar", 0)); n != 8 {
		t.Errorf("filtered groups = %d, want 8", n)
	}
}

func TestBuildTable_Aggregated(t *testing.T) {
	spec := QuerySpec{Title: "By borough", GroupBy: []string{"boro"}, Aggregation: "count"}
	groups := GroupAndAggregate(sampleView(), spec.GroupBy, "incidents", "count", "value_desc", 0)
	td := BuildTable(spec, groups, sampleView(), "incidents")

	if len(td.Columns) != 4 || td.Columns[3].Key != "share" {
		t.Fatalf("columns = %+v", td.Columns)
	}
	if got := strings.Join(td.Rows[0], "|"); got != "BRONX|4|4|57.1%" {
		t.Errorf("first row = %s", got)
	}
	if td.Summary.Values["count"] != "7" || td.Summary.Values["share"] != "100.0%" {
		t.Errorf("summary = %+v", td.Summary.Values)
	}
}

func TestBuildTable_Pivot(t *testing.T) {
	spec := QuerySpec{GroupBy: []string{"year", "vic_sex"}, Aggregation: "count"}
	groups := GroupAndAggregate(sampleView(), spec.GroupBy, "incidents", "count", "chronological", 0)
	td := BuildTable(spec, groups, sampleView(), "incidents")

	var labels []string
	for _, c := range td.Columns {
		labels = append(labels, c.Label)
	}
	if got := strings.Join(labels, ","); got != "Year,F,M,(blank),Incidents" {
		t.Errorf("columns = %s", got)
	}
	if got := strings.Join(td.Rows[2], "|"); got != "2021|0|0|1|1" {
		t.Errorf("2021 row = %s", got)
	}
	if td.Summary.Values["sub:M"] != "4" || td.Summary.Values["count"] != "7" {
		t.Errorf("summary = %+v", td.Summary.Values)
	}
}

func TestBuildTable_ListBlankCells(t *testing.T) {
	spec := QuerySpec{Aggregation: "list", Limit: 10}
	view := sampleView()
	td := BuildTable(spec, nil, view, "incidents")

	// Keys are sorted: boro, date, vic_sex, then the measure.
	if got := td.Columns[2].Key; got != "vic_sex" {
		t.Fatalf("column 2 = %s", got)
	}
	if got := td.Rows[6][2]; got != BlankLabel {
		t.Errorf("blank cell = %q, want %q", got, BlankLabel)
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, k := range []string{"", "UNKNOWN", "unknown", "(null)"} {
		if !IsPlaceholder(k) {
			t.Errorf("IsPlaceholder(%q) = false", k)
		}
	}
	if IsPlaceholder("M") {
		t.Error(`IsPlaceholder("M") = true`)
	}
}
