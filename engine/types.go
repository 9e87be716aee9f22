package engine

// ============================================================================
// ENGINE TYPES — Generic grouping and aggregation over incident-like rows
// ============================================================================
// Record is the generic row (dimension/measure maps). Typed rows such as
// dataset.Incident reach the engine through DomainAdapter instead.
// QuerySpec describes one analysis; Result is its render-ready output.
// ============================================================================

// ============================================================================
// RECORD — Generic data row
// ============================================================================

// Record is a single data row with string dimensions and numeric measures.
//
// Record{Dimensions["boro"]="BRONX", Measures["record_count"]=1}
type Record struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// ============================================================================
// QUERYSPEC — One analysis
// ============================================================================

// QuerySpec defines what the engine should compute.
// The report's built-in analyses and user analysis files both produce these.
type QuerySpec struct {
	Name           string   `json:"name" yaml:"name"`                                         // Stable identifier, used for file names
	Intent         string   `json:"intent" yaml:"intent"`                                     // "text", "table", "chart"
	Filters        Filters  `json:"filters" yaml:"filters"`                                   // Which records to include
	CompareFilters *Filters `json:"compareFilters,omitempty" yaml:"compareFilters,omitempty"` // For share: numerator filters
	Aggregation    string   `json:"aggregation" yaml:"aggregation"`                           // "count", "sum", "avg", "max", "min", "share", "list", "growth"
	Measure        string   `json:"measure" yaml:"measure"`                                   // Which measure to aggregate (empty → use default)
	GroupBy        []string `json:"groupBy" yaml:"groupBy"`                                   // Dimension keys: ["month"], ["year", "vic_sex"]
	SortBy         string   `json:"sortBy" yaml:"sortBy"`                                     // "value_desc", "calendar", "chronological", "label_asc", ...
	Limit          int      `json:"limit" yaml:"limit"`                                       // 0 = all
	Visualize      string   `json:"visualize" yaml:"visualize"`                               // "bar", "line", "table", "text"
	Title          string   `json:"title" yaml:"title"`                                       // Chart/table title
	Reply          string   `json:"reply" yaml:"reply"`                                       // Template: "{total} incidents between {period}."
}

// Filters define which records to include.
// Keys are dimension names. Values are allowed values.
// OR within a dimension, AND across dimensions. Empty = all.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions" yaml:"dimensions"`
}

// HasFilter returns true if a specific dimension filter is set.
func (f Filters) HasFilter(dimension string) bool {
	if f.Dimensions == nil {
		return false
	}
	vals, ok := f.Dimensions[dimension]
	return ok && len(vals) > 0
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	if f.Dimensions == nil {
		return true
	}
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// ============================================================================
// RESULT — Render-ready output
// ============================================================================

// Result is the engine's render-ready output.
type Result struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"` // "chart", "table", "text"
	Reply   string `json:"reply"`
	Title   string `json:"title"`

	// Exactly one of these is populated based on Type:
	ChartConfig *ChartConfig `json:"chartConfig,omitempty"`
	TableData   *TableData   `json:"tableData,omitempty"`
	Data        *TextData    `json:"data,omitempty"`

	// Groups are the aggregated groups behind the chart or table.
	Groups []Group `json:"groups,omitempty"`

	// Count is the number of records after filtering.
	Count int `json:"count"`

	Errors []string `json:"errors,omitempty"`
}

// ============================================================================
// GROUP — Intermediate computation result
// ============================================================================

// Group represents a grouped/aggregated result.
// Builders convert these into ChartConfig, TableData, or TextData.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"` // Sub-view for records in this group (zero-copy)
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// Labels returns the x-axis labels of the first series.
func (c *ChartConfig) Labels() []string {
	if c == nil || len(c.Series) == 0 {
		return nil
	}
	labels := make([]string, len(c.Series[0].Data))
	for i, p := range c.Series[0].Data {
		labels[i] = p.Label
	}
	return labels
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// Values returns the y values of the series in label order.
func (s ChartSeries) Values() []float64 {
	vals := make([]float64, len(s.Data))
	for i, p := range s.Data {
		vals[i] = p.Value
	}
	return vals
}

// ChartPoint represents a single data point.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "percent"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// TEXT TYPES
// ============================================================================

// TextData is structured data for simple query answers (type="text").
type TextData struct {
	Value    string      `json:"value"`
	RawValue float64     `json:"rawValue"`
	Period   string      `json:"period"`
	Count    int         `json:"count"`
	Growth   *GrowthData `json:"growth,omitempty"`
	Share    *ShareData  `json:"share,omitempty"`
}

// GrowthData contains change-over-time metrics between the first and last year.
type GrowthData struct {
	EarliestValue  float64 `json:"earliestValue"`
	LatestValue    float64 `json:"latestValue"`
	EarliestPeriod string  `json:"earliestPeriod"`
	LatestPeriod   string  `json:"latestPeriod"`
	ChangeAmount   float64 `json:"changeAmount"`
	ChangePercent  float64 `json:"changePercent"`
	Direction      string  `json:"direction"` // "increased", "decreased", "unchanged", "insufficient data"
}

// ShareData contains a numerator/denominator percentage.
type ShareData struct {
	NumeratorTotal   float64 `json:"numeratorTotal"`
	DenominatorTotal float64 `json:"denominatorTotal"`
	Percentage       float64 `json:"percentage"`
	NumeratorLabel   string  `json:"numeratorLabel"`
	DenominatorLabel string  `json:"denominatorLabel"`
}
