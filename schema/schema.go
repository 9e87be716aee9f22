package schema

import (
	"fmt"
	"strings"
)

// ============================================================================
// SCHEMA — Describes the shape of a dataset for the engine and the loader
// ============================================================================
// Auto-discovered from CSV (discover.go) or declared in code (IncidentSchema).
// The loader checks upstream headers against it before cleaning; the query
// command uses it to resolve measure/dimension keys for ad-hoc CSV analysis.
// ============================================================================

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`

	// Auto-discovery metadata
	DiscoveredFrom string `json:"discoveredFrom,omitempty"`
	DiscoveredAt   string `json:"discoveredAt,omitempty"`
	RowsSampled    int    `json:"rowsSampled,omitempty"`

	// Columns skipped during auto-discovery
	SkippedColumns []SkippedColumn `json:"skippedColumns,omitempty"`
}

// DimensionMeta describes a string field used for grouping/filtering.
type DimensionMeta struct {
	Key             string   `json:"key"`
	Column          string   `json:"column,omitempty"` // Upstream header, when it differs from Key
	DisplayName     string   `json:"displayName"`
	Description     string   `json:"description,omitempty"`
	SampleValues    []string `json:"sampleValues"`
	Groupable       bool     `json:"groupable"`
	Filterable      bool     `json:"filterable"`
	Parent          string   `json:"parent,omitempty"` // Parent dimension key for hierarchies
	IsTemporal      bool     `json:"isTemporal,omitempty"`
	TemporalFormat  string   `json:"temporalFormat,omitempty"` // Go layout, e.g. "01/02/2006" or "15:04:05"
	IsTimeOfDay     bool     `json:"isTimeOfDay,omitempty"`
	CardinalityHint string   `json:"cardinalityHint,omitempty"` // "low", "medium", "high"
	NullCount       int      `json:"nullCount,omitempty"`
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key                string   `json:"key"`
	Column             string   `json:"column,omitempty"`
	DisplayName        string   `json:"displayName"`
	Description        string   `json:"description,omitempty"`
	Unit               string   `json:"unit,omitempty"` // "incidents", "degrees", "units"
	IsSynthetic        bool     `json:"isSynthetic,omitempty"`
	Aggregations       []string `json:"aggregations,omitempty"`
	DefaultAggregation string   `json:"defaultAggregation,omitempty"`
}

// SkippedColumn records why a column was excluded during auto-discovery.
type SkippedColumn struct {
	Column      string `json:"column"`
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"` // Can be restored with DiscoverOptions.RecoverColumns
}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName string, samples []string) DimensionMeta {
	return DimensionMeta{
		Key:          key,
		DisplayName:  displayName,
		SampleValues: samples,
		Groupable:    true,
		Filterable:   true,
	}
}

// DefaultMeasure creates a MeasureMeta with sensible defaults.
func DefaultMeasure(key, displayName string) MeasureMeta {
	return MeasureMeta{
		Key:                key,
		DisplayName:        displayName,
		Aggregations:       []string{"sum", "avg", "min", "max", "count"},
		DefaultAggregation: "sum",
	}
}

// GetDefaultMeasure returns the first measure's key, or "record_count" as fallback.
func (c Config) GetDefaultMeasure() string {
	if len(c.Measures) > 0 {
		return c.Measures[0].Key
	}
	return "record_count"
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// Dimension looks up a dimension by key.
func (c Config) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// HasKey reports whether key names a dimension or a measure.
func (c Config) HasKey(key string) bool {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return true
		}
	}
	for _, m := range c.Measures {
		if m.Key == key {
			return true
		}
	}
	return false
}

// Columns returns the upstream column names the schema reads.
func (c Config) Columns() []string {
	cols := make([]string, 0, len(c.Dimensions)+len(c.Measures))
	for _, d := range c.Dimensions {
		if d.Column != "" {
			cols = append(cols, d.Column)
		}
	}
	for _, m := range c.Measures {
		if m.Column != "" {
			cols = append(cols, m.Column)
		}
	}
	return cols
}

// ============================================================================
// REQUIRED KEYS
// ============================================================================

// MissingColumnsError lists keys a dataset was required to have but did not.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Require checks that every key is a dimension or measure of c.
// Keys are compared after snake_case normalisation, so "OCCUR_DATE" and
// "occur_date" are the same key.
func (c Config) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !c.HasKey(toSnakeCase(k)) && !c.HasKey(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}
	return nil
}

// ============================================================================
// INCIDENT SCHEMA
// ============================================================================

// IncidentSchema is the expected shape of the shooting incident dataset after
// cleaning: the dimensions and measures dataset.View exposes, each mapped back
// to the upstream column it is derived from.
func IncidentSchema() *Config {
	dim := func(key, column, name string) DimensionMeta {
		d := DefaultDimension(key, name, nil)
		d.Column = column
		return d
	}

	year := dim("year", "OCCUR_DATE", "Year")
	year.IsTemporal = true
	year.TemporalFormat = "2006"

	month := dim("month", "OCCUR_DATE", "Month")
	month.IsTemporal = true
	month.TemporalFormat = "Jan"

	hour := dim("hour", "OCCUR_TIME", "Hour of Day")
	hour.IsTimeOfDay = true
	hour.TemporalFormat = "15"

	precinct := dim("precinct", "PRECINCT", "Precinct")
	precinct.Parent = "borough"

	return &Config{
		Name:        "NYPD Shooting Incidents",
		Version:     "1.0",
		Description: "One row per shooting incident with date, time, location and victim/perpetrator demographics.",
		Dimensions: []DimensionMeta{
			dim("borough", "BORO", "Borough"),
			precinct,
			year,
			month,
			hour,
			dim("weekday", "OCCUR_DATE", "Weekday"),
			dim("vic_sex", "VIC_SEX", "Victim Sex"),
			dim("vic_age_group", "VIC_AGE_GROUP", "Victim Age Group"),
			dim("vic_race", "VIC_RACE", "Victim Race"),
			dim("perp_sex", "PERP_SEX", "Perpetrator Sex"),
			dim("perp_age_group", "PERP_AGE_GROUP", "Perpetrator Age Group"),
			dim("perp_race", "PERP_RACE", "Perpetrator Race"),
			dim("murder", "STATISTICAL_MURDER_FLAG", "Murder"),
		},
		Measures: []MeasureMeta{
			{
				Key:                "incidents",
				DisplayName:        "Incidents",
				Unit:               "incidents",
				IsSynthetic:        true,
				Aggregations:       []string{"count", "sum", "share"},
				DefaultAggregation: "count",
			},
			{
				Key:                "murders",
				Column:             "STATISTICAL_MURDER_FLAG",
				DisplayName:        "Murders",
				Unit:               "incidents",
				Aggregations:       []string{"sum", "avg", "share"},
				DefaultAggregation: "sum",
			},
		},
	}
}
