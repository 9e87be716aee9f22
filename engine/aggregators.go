package engine

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ============================================================================
// AGGREGATORS — Grouping, Aggregation, and Sorting via RecordView
// ============================================================================
// All functions operate on RecordView — zero-copy access to any data source.
// Grouping produces SubViews (index lists into parent view).
// ============================================================================

// GroupAndAggregate is the main entry point for the aggregation pipeline.
// Pipeline: group → aggregate → sort → limit.
func GroupAndAggregate(
	view RecordView,
	groupBy []string,
	measure string,
	aggregation string,
	sortBy string,
	limit int,
) []Group {
	if view.Len() == 0 {
		return nil
	}

	// 1. Group
	var groups []Group
	if len(groupBy) == 0 {
		groups = []Group{{
			Key:   "all",
			Label: "Total",
			View:  view,
		}}
	} else if len(groupBy) == 1 {
		groups = groupBySingle(view, groupBy[0], true)
	} else {
		groups = groupByMulti(view, groupBy)
	}

	// 2. Aggregate
	total := SumMeasure(view, measure)
	for i := range groups {
		aggregateGroup(&groups[i], measure, aggregation, total)
		subTotal := SumMeasure(groups[i].View, measure)
		for j := range groups[i].SubGroups {
			aggregateGroup(&groups[i].SubGroups[j], measure, aggregation, subTotal)
		}
		SortGroups(groups[i].SubGroups, "label_asc")
	}

	// 3. Sort
	SortGroups(groups, sortBy)

	// 4. Limit
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	return groups
}

// ============================================================================
// GROUPING
// ============================================================================

func groupBySingle(view RecordView, dimension string, fill bool) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := getDimensionValue(view, i, dimension)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	// Declared categories come first and in their own order, empty ones
	// included. Anything else follows in first-seen order.
	if cats := categoriesOf(view, dimension); fill && len(cats) > 0 {
		declared := make(map[string]bool, len(cats))
		keys := make([]string, 0, len(cats)+len(order))
		for _, c := range cats {
			declared[c] = true
			keys = append(keys, c)
		}
		for _, k := range order {
			if !declared[k] {
				keys = append(keys, k)
			}
		}
		order = keys
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:   key,
			Label: DisplayLabel(key),
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

func groupByMulti(view RecordView, dimensions []string) []Group {
	if len(dimensions) < 2 {
		return groupBySingle(view, dimensions[0], true)
	}

	primaryGroups := groupBySingle(view, dimensions[0], true)
	for i := range primaryGroups {
		primaryGroups[i].SubGroups = groupBySingle(primaryGroups[i].View, dimensions[1], false)
	}
	return primaryGroups
}

// getDimensionValue extracts a dimension value from a view at index.
// "year" and "month" fall back to a "date" dimension (2006-01-02 or
// 01/02/2006) when the view does not carry them directly.
func getDimensionValue(view RecordView, i int, dimension string) string {
	val := view.Dimension(i, dimension)
	if val != "" || (dimension != "year" && dimension != "month") {
		return val
	}

	t, ok := parseDate(view.Dimension(i, "date"))
	if !ok {
		t, ok = parseDate(view.Dimension(i, "occur_date"))
	}
	if !ok {
		return ""
	}
	if dimension == "year" {
		return strconv.Itoa(t.Year())
	}
	return t.Format("Jan")
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006-01-02T15:04:05"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregateGroup(group *Group, measure string, aggregation string, total float64) {
	group.Count = group.View.Len()
	if group.Count == 0 {
		return
	}

	switch aggregation {
	case "sum":
		group.Value = SumMeasure(group.View, measure)
	case "count":
		group.Value = float64(group.Count)
	case "avg":
		group.Value = AvgMeasure(group.View, measure)
	case "max":
		group.Value = MaxMeasure(group.View, measure)
	case "min":
		group.Value = MinMeasure(group.View, measure)
	case "share":
		if total != 0 {
			group.Value = SumMeasure(group.View, measure) / total * 100
		}
	case "list":
		group.Value = SumMeasure(group.View, measure) // for sorting
	case "none":
		// pass through
	default:
		group.Value = float64(group.Count)
	}
}

// SumMeasure sums a named measure across a view.
func SumMeasure(view RecordView, measure string) float64 {
	var total float64
	for i := 0; i < view.Len(); i++ {
		total += view.Measure(i, measure)
	}
	return total
}

// AvgMeasure computes average of a named measure.
func AvgMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	return SumMeasure(view, measure) / float64(n)
}

// MaxMeasure returns the largest value of a named measure.
func MaxMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	m := math.Inf(-1)
	for i := 0; i < n; i++ {
		if v := view.Measure(i, measure); v > m {
			m = v
		}
	}
	return m
}

// MinMeasure returns the smallest value of a named measure.
func MinMeasure(view RecordView, measure string) float64 {
	n := view.Len()
	if n == 0 {
		return 0
	}
	m := math.Inf(1)
	for i := 0; i < n; i++ {
		if v := view.Measure(i, measure); v < m {
			m = v
		}
	}
	return m
}

// CountTotal sums Group.Count across groups.
func CountTotal(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += g.Count
	}
	return n
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts aggregate groups by the specified sort mode.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case "value_asc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case "chronological", "date_asc":
		sort.SliceStable(groups, func(i, j int) bool { return parseSortableDate(groups[i].Key) < parseSortableDate(groups[j].Key) })
	case "reverse_chronological", "date_desc":
		sort.SliceStable(groups, func(i, j int) bool { return parseSortableDate(groups[i].Key) > parseSortableDate(groups[j].Key) })
	case "calendar":
		sort.SliceStable(groups, func(i, j int) bool { return calendarLess(groups[i].Key, groups[j].Key) })
	case "label_asc", "alpha_asc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) < strings.ToLower(groups[j].Key) })
	case "label_desc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) > strings.ToLower(groups[j].Key) })
	default:
		// preserve grouping order
	}
}

// calendarLess orders month names Jan..Dec, weekday names Mon..Sun,
// then numbers ascending, then everything else alphabetically. Blank
// keys sort last.
func calendarLess(a, b string) bool {
	if a == "" || b == "" {
		return a != "" && b == ""
	}
	if wa, wb := WeekdayIndex(a), WeekdayIndex(b); wa > 0 && wb > 0 {
		return wa < wb
	}
	ma, mb := MonthIndex(a), MonthIndex(b)
	if ma > 0 && mb > 0 {
		return ma < mb
	}
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case ma > 0 || errA == nil:
		return true
	case mb > 0 || errB == nil:
		return false
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

var monthIndex = func() map[string]int {
	m := make(map[string]int, 24)
	for mo := time.January; mo <= time.December; mo++ {
		m[strings.ToLower(mo.String())] = int(mo)
		m[strings.ToLower(mo.String()[:3])] = int(mo)
	}
	return m
}()

// MonthIndex returns 1..12 for "Jan"/"January" (any case), 0 otherwise.
func MonthIndex(s string) int {
	return monthIndex[strings.ToLower(strings.TrimSpace(s))]
}

var weekdayIndex = func() map[string]int {
	m := make(map[string]int, 14)
	for d := time.Sunday; d <= time.Saturday; d++ {
		idx := int(d)
		if d == time.Sunday {
			idx = 7
		}
		m[strings.ToLower(d.String())] = idx
		m[strings.ToLower(d.String()[:3])] = idx
	}
	return m
}()

// WeekdayIndex returns 1 (Monday) .. 7 (Sunday) for weekday names, 0 otherwise.
func WeekdayIndex(s string) int {
	return weekdayIndex[strings.ToLower(strings.TrimSpace(s))]
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// ParseMonthOrder converts "Jan-2026" or "2026-01" to a sortable int (202601).
func ParseMonthOrder(monthStr string) int {
	for _, layout := range []string{"Jan-2006", "2006-01"} {
		if t, err := time.Parse(layout, monthStr); err == nil {
			return t.Year()*100 + int(t.Month())
		}
	}
	return 0
}

func parseSortableDate(key string) int {
	if v := ParseMonthOrder(key); v > 0 {
		return v
	}
	t, err := time.Parse("2006", key)
	if err == nil {
		return t.Year() * 100
	}
	return 0
}

// FormatNumber formats a value with thousands separators and the given
// number of decimals: FormatNumber(12345.678, 1) → "12,345.7".
func FormatNumber(v float64, decimals int) string {
	p := message.NewPrinter(language.English)
	if decimals <= 0 {
		return p.Sprintf("%d", int64(math.Round(v)))
	}
	return p.Sprintf("%."+strconv.Itoa(decimals)+"f", v)
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// FormatValue formats an aggregated value for display: whole numbers
// without decimals, percentages with one decimal and a % sign.
func FormatValue(v float64, aggregation string) string {
	switch aggregation {
	case "share":
		return FormatNumber(v, 1) + "%"
	case "avg":
		return FormatNumber(v, 2)
	}
	if v == math.Trunc(v) {
		return FormatNumber(v, 0)
	}
	return FormatNumber(v, 2)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UniqueValues returns distinct values for a dimension across a view.
func UniqueValues(view RecordView, dimension string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := getDimensionValue(view, i, dimension)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

var dimensionLabels = map[string]string{
	"boro":           "Borough",
	"borough":        "Borough",
	"vic_sex":        "Victim sex",
	"vic_age_group":  "Victim age group",
	"vic_race":       "Victim race",
	"perp_sex":       "Perpetrator sex",
	"perp_age_group": "Perpetrator age group",
	"perp_race":      "Perpetrator race",
	"hour":           "Hour of day",
}

// LabelForDimension returns a human-readable label for a dimension key.
func LabelForDimension(dimension string) string {
	if label, ok := dimensionLabels[dimension]; ok {
		return label
	}
	if len(dimension) == 0 {
		return ""
	}
	s := strings.ReplaceAll(dimension, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// LabelForAggregation returns a human-readable label for an aggregation type.
func LabelForAggregation(aggregation string) string {
	switch aggregation {
	case "sum":
		return "Total"
	case "count":
		return "Incidents"
	case "avg":
		return "Average"
	case "max":
		return "Maximum"
	case "min":
		return "Minimum"
	case "share":
		return "Share (%)"
	default:
		return "Value"
	}
}
