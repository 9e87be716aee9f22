package engine

import (
	"fmt"
	"sort"
	"strconv"
)

// ============================================================================
// TEXT BUILDER — Produces TextData for single-value answers
// ============================================================================

// BuildText produces text response data from filtered records.
func BuildText(spec QuerySpec, view RecordView, measure string) *TextData {
	if view.Len() == 0 {
		return &TextData{
			Value:  "0",
			Period: DerivePeriod(view),
		}
	}

	var value float64
	switch spec.Aggregation {
	case "sum":
		value = SumMeasure(view, measure)
	case "count":
		value = float64(view.Len())
	case "avg":
		value = AvgMeasure(view, measure)
	case "max":
		value = MaxMeasure(view, measure)
	case "min":
		value = MinMeasure(view, measure)
	case "growth":
		return BuildGrowthText(view, measure)
	default:
		value = float64(view.Len())
	}

	return &TextData{
		Value:    FormatValue(value, spec.Aggregation),
		RawValue: value,
		Period:   DerivePeriod(view),
		Count:    view.Len(),
	}
}

// ============================================================================
// GROWTH BUILDER
// ============================================================================

// BuildGrowthText compares the measure total of the first and last year in the view.
func BuildGrowthText(view RecordView, measure string) *TextData {
	if view.Len() == 0 {
		return &TextData{
			Value:  "No data",
			Period: "No data",
		}
	}

	yearTotals := make(map[int]float64)
	for i := 0; i < view.Len(); i++ {
		y, err := strconv.Atoi(getDimensionValue(view, i, "year"))
		if err != nil {
			continue
		}
		yearTotals[y] += view.Measure(i, measure)
	}

	// Need at least 2 distinct years
	if len(yearTotals) < 2 {
		total := SumMeasure(view, measure)
		period := DerivePeriod(view)
		return &TextData{
			Value:    FormatValue(total, "sum"),
			RawValue: total,
			Period:   period,
			Count:    view.Len(),
			Growth: &GrowthData{
				EarliestValue:  total,
				LatestValue:    total,
				EarliestPeriod: period,
				LatestPeriod:   period,
				Direction:      "insufficient data",
			},
		}
	}

	years := make([]int, 0, len(yearTotals))
	for y := range yearTotals {
		years = append(years, y)
	}
	sort.Ints(years)

	earliest, latest := years[0], years[len(years)-1]
	earliestTotal, latestTotal := yearTotals[earliest], yearTotals[latest]

	changeAmount := latestTotal - earliestTotal
	var changePercent float64
	if earliestTotal != 0 {
		changePercent = (changeAmount / earliestTotal) * 100
	}

	direction := "unchanged"
	if changePercent > 0.5 {
		direction = "increased"
	} else if changePercent < -0.5 {
		direction = "decreased"
	}

	absPercent := changePercent
	if absPercent < 0 {
		absPercent = -absPercent
	}
	var displayValue string
	switch direction {
	case "increased":
		displayValue = fmt.Sprintf("↑ %.1f%%", absPercent)
	case "decreased":
		displayValue = fmt.Sprintf("↓ %.1f%%", absPercent)
	default:
		displayValue = "→ No change"
	}

	return &TextData{
		Value:    displayValue,
		RawValue: changePercent,
		Period:   fmt.Sprintf("%d – %d", earliest, latest),
		Count:    view.Len(),
		Growth: &GrowthData{
			EarliestValue:  earliestTotal,
			LatestValue:    latestTotal,
			EarliestPeriod: strconv.Itoa(earliest),
			LatestPeriod:   strconv.Itoa(latest),
			ChangeAmount:   changeAmount,
			ChangePercent:  changePercent,
			Direction:      direction,
		},
	}
}

// ============================================================================
// PERIOD HELPER
// ============================================================================

// DerivePeriod builds a human-readable year range from a view.
func DerivePeriod(view RecordView) string {
	if view.Len() == 0 {
		return "No data"
	}

	first := true
	var lo, hi int
	for i := 0; i < view.Len(); i++ {
		y, err := strconv.Atoi(getDimensionValue(view, i, "year"))
		if err != nil {
			continue
		}
		if first || y < lo {
			lo = y
		}
		if first || y > hi {
			hi = y
		}
		first = false
	}

	if first {
		return "All time"
	}
	if lo == hi {
		return strconv.Itoa(lo)
	}
	return fmt.Sprintf("%d – %d", lo, hi)
}
