package engine

import (
	"sort"
	"strings"
)

// ============================================================================
// CHART BUILDER — ChartConfig from a QuerySpec and its groups
// ============================================================================

// Series colours. Blank and placeholder categories always get mutedColor so
// they read as "not recorded" rather than as a real category.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

const mutedColor = "#9CA3AF"

// placeholderKeys are category values that stand for missing data after
// cleaning.
var placeholderKeys = map[string]bool{"": true, "UNKNOWN": true, "(NULL)": true}

// IsPlaceholder reports whether key stands for an unrecorded value.
func IsPlaceholder(key string) bool {
	return placeholderKeys[strings.ToUpper(strings.TrimSpace(key))]
}

// Palette returns the default series colors.
func Palette() []string {
	out := make([]string, len(defaultColors))
	copy(out, defaultColors)
	return out
}

// BuildChart produces a ChartConfig from a QuerySpec and aggregated groups.
// With two groupBy dimensions the second one becomes the series.
func BuildChart(spec QuerySpec, groups []Group) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	chartType := spec.Visualize
	if chartType == "" {
		chartType = "bar"
	}

	config := &ChartConfig{
		ChartType:  chartType,
		Title:      spec.Title,
		ShowLegend: true,
		ShowGrid:   true,
		YAxis:      LabelForAggregation(spec.Aggregation),
	}
	if len(spec.GroupBy) > 0 {
		config.XAxis = LabelForDimension(spec.GroupBy[0])
	}

	if len(spec.GroupBy) >= 2 && hasSubGroups(groups) {
		config.Series = buildMultiSeries(groups)
	} else {
		config.Series = buildSingleSeries(groups, config.YAxis)
		config.ShowLegend = false
	}

	config.Colors = make([]string, len(config.Series))
	for i, s := range config.Series {
		config.Colors[i] = s.Color
	}
	return config
}

// ── Series ──

func buildSingleSeries(groups []Group, seriesName string) []ChartSeries {
	if seriesName == "" {
		seriesName = "Value"
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{
			Label: DisplayLabel(g.Label),
			Value: RoundTo2(g.Value),
		})
	}

	return []ChartSeries{{
		Name:  seriesName,
		Data:  points,
		Color: defaultColors[0],
	}}
}

// buildMultiSeries pivots primary groups × sub-groups into one series per
// sub-group key. Every series has one point per primary group, in primary
// group order; missing combinations are zero. Placeholder series go last.
func buildMultiSeries(groups []Group) []ChartSeries {
	seen := make(map[string]bool)
	var subKeys []string
	for _, g := range groups {
		for _, sg := range g.SubGroups {
			if !seen[sg.Key] {
				seen[sg.Key] = true
				subKeys = append(subKeys, sg.Key)
			}
		}
	}
	sort.SliceStable(subKeys, func(i, j int) bool {
		pi, pj := IsPlaceholder(subKeys[i]), IsPlaceholder(subKeys[j])
		if pi != pj {
			return pj
		}
		return calendarLess(subKeys[i], subKeys[j])
	})

	series := make([]ChartSeries, len(subKeys))
	color := 0
	for i, key := range subKeys {
		series[i] = ChartSeries{
			Name: DisplayLabel(key),
			Data: make([]ChartPoint, 0, len(groups)),
		}
		if IsPlaceholder(key) {
			series[i].Color = mutedColor
		} else {
			series[i].Color = defaultColors[color%len(defaultColors)]
			color++
		}
	}

	for _, g := range groups {
		values := make(map[string]float64, len(g.SubGroups))
		for _, sg := range g.SubGroups {
			values[sg.Key] = sg.Value
		}
		for i, key := range subKeys {
			series[i].Data = append(series[i].Data, ChartPoint{
				Label: g.Label,
				Value: RoundTo2(values[key]),
			})
		}
	}

	return series
}

func hasSubGroups(groups []Group) bool {
	for _, g := range groups {
		if len(g.SubGroups) > 0 {
			return true
		}
	}
	return false
}
