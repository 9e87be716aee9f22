package translator

import (
	"fmt"
	"strings"

	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/schema"
)

// ============================================================================
// BUILT-IN ANALYSES
// ============================================================================

// DefaultAnalyses returns the report's built-in analyses. The first three
// are the core groupings (month, year, victim sex); the rest add context.
func DefaultAnalyses() []engine.QuerySpec {
	specs := []engine.QuerySpec{
		{
			Name:      "by_month",
			Title:     "Incidents by month of year",
			Intent:    "chart",
			Visualize: "bar",
			GroupBy:   []string{"month"},
			SortBy:    "calendar",
			Reply:     "{top_group} has the most incidents ({top_value}) across {period}.",
		},
		{
			Name:      "by_year",
			Title:     "Incidents per year",
			Intent:    "chart",
			Visualize: "line",
			GroupBy:   []string{"year"},
			SortBy:    "chronological",
			Reply:     "{total} incidents between {period}; the peak year was {top_group} with {top_value}.",
		},
		{
			Name:      "by_vic_sex",
			Title:     "Incidents by victim sex",
			Intent:    "chart",
			Visualize: "bar",
			GroupBy:   []string{"vic_sex"},
			SortBy:    "value_desc",
			Reply:     "{top_value} of {total} incidents had a victim recorded as {top_group}.",
		},
		{
			Name:      "by_year_vic_sex",
			Title:     "Incidents per year by victim sex",
			Intent:    "chart",
			Visualize: "line",
			GroupBy:   []string{"year", "vic_sex"},
			SortBy:    "chronological",
		},
		{
			Name:      "by_borough",
			Title:     "Incidents by borough",
			Intent:    "chart",
			Visualize: "bar",
			GroupBy:   []string{"borough"},
			SortBy:    "value_desc",
			Reply:     "{top_group} recorded the most incidents ({top_value} of {total}).",
		},
		{
			Name:      "by_hour",
			Title:     "Incidents by hour of day",
			Intent:    "chart",
			Visualize: "bar",
			GroupBy:   []string{"hour"},
			SortBy:    "calendar",
		},
		{
			Name:           "murder_share",
			Title:          "Share of incidents flagged as murder",
			Intent:         "text",
			Aggregation:    "share",
			CompareFilters: &engine.Filters{Dimensions: map[string][]string{"murder": {"true"}}},
			Reply:          "{share_percent} of incidents ({numerator_total} of {denominator_total}) were flagged as murders, {period}.",
		},
	}

	for i := range specs {
		specs[i] = engine.NormalizeQuerySpec(applyDefaults(specs[i], i))
	}
	return specs
}

// ============================================================================
// SCHEMA DESCRIPTION
// ============================================================================

// Describe renders a plain-text overview of a schema: the keys an analyses
// document may use, with samples, hierarchies and measures.
func Describe(sch schema.Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", sch.Name)

	b.WriteString("DIMENSIONS (groupBy / filters):\n")
	for _, d := range sch.Dimensions {
		fmt.Fprintf(&b, "- %s", d.Key)
		if d.DisplayName != "" && d.DisplayName != d.Key {
			fmt.Fprintf(&b, " (%s)", d.DisplayName)
		}
		if len(d.SampleValues) > 0 {
			fmt.Fprintf(&b, " — values: [%s]", strings.Join(d.SampleValues, ", "))
		}
		switch {
		case d.IsTemporal:
			fmt.Fprintf(&b, " [date %s]", d.TemporalFormat)
		case d.IsTimeOfDay:
			fmt.Fprintf(&b, " [time %s]", d.TemporalFormat)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nMEASURES:\n")
	for _, m := range sch.Measures {
		fmt.Fprintf(&b, "- %s", m.Key)
		if m.Unit != "" {
			fmt.Fprintf(&b, " [unit: %s]", m.Unit)
		}
		if len(m.Aggregations) > 0 {
			fmt.Fprintf(&b, " — aggregations: [%s]", strings.Join(m.Aggregations, ", "))
		}
		if m.IsSynthetic {
			b.WriteString(" [auto-generated]")
		}
		b.WriteString("\n")
	}

	var hier []string
	for _, d := range sch.Dimensions {
		if d.Parent != "" {
			hier = append(hier, fmt.Sprintf("- %s is a child of %s", d.Key, d.Parent))
		}
	}
	if len(hier) > 0 {
		b.WriteString("\nHIERARCHIES:\n")
		b.WriteString(strings.Join(hier, "\n"))
		b.WriteString("\n")
	}

	if len(sch.SkippedColumns) > 0 {
		b.WriteString("\nSKIPPED:\n")
		for _, s := range sch.SkippedColumns {
			fmt.Fprintf(&b, "- %s: %s\n", s.Column, s.Reason)
		}
	}

	return b.String()
}
