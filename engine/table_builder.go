package engine

import (
	"fmt"
	"sort"
)

// ============================================================================
// TABLE BUILDER — TableData from a QuerySpec and its groups
// ============================================================================
// Aggregated tables carry each group's share of all incidents. With two
// groupBy dimensions the second one is pivoted into columns, matching the
// series of the chart built from the same groups.
// ============================================================================

// BuildTable produces a TableData from a QuerySpec, groups and the filtered view.
func BuildTable(spec QuerySpec, groups []Group, view RecordView, measure string) *TableData {
	if spec.Aggregation == "list" {
		return buildListTable(spec, view, measure)
	}
	if len(spec.GroupBy) >= 2 && hasSubGroups(groups) {
		return buildPivotTable(spec, groups)
	}
	return buildAggregatedTable(spec, groups)
}

func emptyTable(spec QuerySpec) *TableData {
	return &TableData{Title: spec.Title, Columns: []Column{}, Rows: [][]string{}}
}

// ── List ──

func buildListTable(spec QuerySpec, view RecordView, measure string) *TableData {
	if view.Len() == 0 {
		return emptyTable(spec)
	}

	dimKeys := view.DimensionKeys()
	columns := make([]Column, 0, len(dimKeys)+1)
	for _, key := range dimKeys {
		columns = append(columns, Column{Key: key, Label: LabelForDimension(key), Type: "text", Align: "left"})
	}
	columns = append(columns, Column{Key: measure, Label: LabelForDimension(measure), Type: "number", Align: "right"})

	n := view.Len()
	if spec.Limit > 0 && n > spec.Limit {
		n = spec.Limit
	}

	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(columns))
		for _, key := range dimKeys {
			row = append(row, DisplayLabel(view.Dimension(i, key)))
		}
		row = append(row, FormatValue(view.Measure(i, measure), "sum"))
		rows = append(rows, row)
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: fmt.Sprintf("Total (%s records)", FormatInt(view.Len())),
			Values: map[string]string{
				measure: FormatValue(SumMeasure(view, measure), "sum"),
			},
		},
	}
}

// ── Aggregated ──

func buildAggregatedTable(spec QuerySpec, groups []Group) *TableData {
	if len(groups) == 0 {
		return emptyTable(spec)
	}

	columns := []Column{
		{Key: "group", Label: groupColumnLabel(spec), Type: "text", Align: "left"},
		{Key: "value", Label: LabelForAggregation(spec.Aggregation), Type: "number", Align: "right"},
		{Key: "count", Label: "Incidents", Type: "number", Align: "right"},
		{Key: "share", Label: "Share", Type: "percent", Align: "right"},
	}

	var totalValue float64
	var totalCount int
	for _, g := range groups {
		totalValue += g.Value
		totalCount += g.Count
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			DisplayLabel(g.Label),
			FormatValue(g.Value, spec.Aggregation),
			FormatInt(g.Count),
			countShare(g.Count, totalCount),
		})
	}

	// Totals of averages and extremes mean nothing.
	summaryValue := FormatValue(totalValue, spec.Aggregation)
	switch spec.Aggregation {
	case "avg", "max", "min", "share":
		summaryValue = ""
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label: "Total",
			Values: map[string]string{
				"value": summaryValue,
				"count": FormatInt(totalCount),
				"share": countShare(totalCount, totalCount),
			},
		},
	}
}

// ── Pivot ──

// buildPivotTable lays groups out as rows and sub-group keys as columns,
// e.g. one row per year and one column per victim sex.
func buildPivotTable(spec QuerySpec, groups []Group) *TableData {
	seen := make(map[string]bool)
	var keys []string
	for _, g := range groups {
		for _, sg := range g.SubGroups {
			if !seen[sg.Key] {
				seen[sg.Key] = true
				keys = append(keys, sg.Key)
			}
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := IsPlaceholder(keys[i]), IsPlaceholder(keys[j])
		if pi != pj {
			return pj
		}
		return calendarLess(keys[i], keys[j])
	})

	columns := make([]Column, 0, len(keys)+2)
	columns = append(columns, Column{Key: "group", Label: groupColumnLabel(spec), Type: "text", Align: "left"})
	for _, k := range keys {
		columns = append(columns, Column{Key: "sub:" + k, Label: DisplayLabel(k), Type: "number", Align: "right"})
	}
	columns = append(columns, Column{Key: "count", Label: "Incidents", Type: "number", Align: "right"})

	colTotals := make(map[string]float64, len(keys))
	var totalCount int
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		values := make(map[string]float64, len(g.SubGroups))
		for _, sg := range g.SubGroups {
			values[sg.Key] = sg.Value
		}
		row := make([]string, 0, len(columns))
		row = append(row, DisplayLabel(g.Label))
		for _, k := range keys {
			row = append(row, FormatValue(values[k], spec.Aggregation))
			colTotals[k] += values[k]
		}
		row = append(row, FormatInt(g.Count))
		rows = append(rows, row)
		totalCount += g.Count
	}

	summary := &Summary{Label: "Total", Values: map[string]string{"count": FormatInt(totalCount)}}
	if spec.Aggregation == "count" || spec.Aggregation == "sum" || spec.Aggregation == "" {
		for _, k := range keys {
			summary.Values["sub:"+k] = FormatValue(colTotals[k], spec.Aggregation)
		}
	}

	return &TableData{Title: spec.Title, Columns: columns, Rows: rows, Summary: summary}
}

func groupColumnLabel(spec QuerySpec) string {
	if len(spec.GroupBy) == 0 {
		return "Group"
	}
	return LabelForDimension(spec.GroupBy[0])
}

func countShare(n, total int) string {
	if total == 0 {
		return FormatValue(0, "share")
	}
	return FormatValue(float64(n)/float64(total)*100, "share")
}
