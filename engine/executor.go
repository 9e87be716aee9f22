package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ============================================================================
// EXECUTOR — Dispatcher + Placeholder Resolution
// ============================================================================
// Entry point: Execute(spec, view, opts...)
//
// Pipeline:
//   1. Apply filters from QuerySpec → SubView
//   2. Group and aggregate
//   3. Dispatch to builder (chart / table / text)
//   4. Resolve reply template placeholders
//   5. Return Result
//
// Zero data copy — the engine reads consumer data through RecordView.
// ============================================================================

// Execute runs a QuerySpec against a RecordView and returns a render-ready Result.
//
// Options:
//   - WithDefaultMeasure(key) — sets the measure when QuerySpec.Measure is empty
//   - WithLogger(l) — progress logging
func Execute(spec QuerySpec, view RecordView, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	log := cfg.Logger.With("analysis", spec.Name)

	// Resolve which measure to aggregate
	measure := spec.Measure
	if measure == "" {
		measure = cfg.DefaultMeasure
	}

	if spec.Intent == "chart" && len(spec.GroupBy) == 0 {
		return nil, fmt.Errorf("analysis %q: chart needs at least one groupBy dimension", spec.Name)
	}

	if view.Len() == 0 {
		return &Result{
			Success: true,
			Name:    spec.Name,
			Title:   spec.Title,
			Type:    "text",
			Reply:   "No data available to analyze.",
		}, nil
	}

	log.Debug("executing analysis",
		"records", view.Len(),
		"intent", spec.Intent,
		"visualize", spec.Visualize,
		"aggregation", spec.Aggregation,
		"measure", measure)

	// ── SHARE WITH COMPARE FILTERS (early return) ────────────────────────
	if spec.Aggregation == "share" && spec.CompareFilters != nil {
		return executeShare(spec, view, measure, cfg)
	}

	// 1. Apply filters → SubView (zero-copy)
	filtered := ApplyFilters(view, spec.Filters)

	if filtered.Len() == 0 {
		return &Result{
			Success: true,
			Name:    spec.Name,
			Title:   spec.Title,
			Type:    "text",
			Reply:   "No records match the analysis filters.",
		}, nil
	}

	log.Debug("filtered", "kept", filtered.Len(), "from", view.Len())

	// 2. Group and aggregate
	groups := GroupAndAggregate(filtered, spec.GroupBy, measure, spec.Aggregation, spec.SortBy, spec.Limit)

	// 3. Dispatch to builder
	result := &Result{
		Success: true,
		Name:    spec.Name,
		Title:   spec.Title,
		Groups:  groups,
		Count:   filtered.Len(),
	}

	switch spec.Intent {
	case "chart":
		result.Type = "chart"
		result.ChartConfig = BuildChart(spec, groups)
		if result.ChartConfig == nil {
			result.Type = "text"
			result.Reply = "Not enough data to generate a chart."
			return result, nil
		}
		result.TableData = BuildTable(spec, groups, filtered, measure)

	case "table":
		result.Type = "table"
		result.TableData = BuildTable(spec, groups, filtered, measure)

	default:
		result.Type = "text"
		result.Data = BuildText(spec, filtered, measure)
		if spec.Aggregation == "growth" && result.Data.Growth != nil && result.Data.Growth.Direction == "insufficient data" {
			result.Reply = fmt.Sprintf("%s incidents in %s. At least 2 years of data are needed to show a trend.",
				result.Data.Value, result.Data.Period)
			return result, nil
		}
	}

	// 4. Resolve reply template placeholders
	result.Reply = ResolvePlaceholders(spec.Reply, groups, filtered, measure, spec.Aggregation)

	log.Info("analysis complete", "type", result.Type, "groups", len(groups), "records", result.Count)
	return result, nil
}

// ============================================================================
// SHARE EXECUTION (early return path)
// ============================================================================

// executeShare computes numerator (Filters ∧ CompareFilters) over
// denominator (Filters) as a percentage.
func executeShare(spec QuerySpec, view RecordView, measure string, cfg *config) (*Result, error) {
	denominator := ApplyFilters(view, spec.Filters)
	numerator := ApplyFilters(denominator, *spec.CompareFilters)

	denomSum := SumMeasure(denominator, measure)
	numSum := SumMeasure(numerator, measure)

	var pct float64
	if denomSum > 0 {
		pct = (numSum / denomSum) * 100
	}

	numLabel := buildFilterLabel(spec.CompareFilters)
	denomLabel := buildFilterLabel(&spec.Filters)

	displayValue := FormatValue(pct, "share")
	period := DerivePeriod(denominator)

	textData := &TextData{
		Value:    displayValue,
		RawValue: pct,
		Period:   period,
		Count:    denominator.Len(),
		Share: &ShareData{
			NumeratorTotal:   numSum,
			DenominatorTotal: denomSum,
			Percentage:       pct,
			NumeratorLabel:   numLabel,
			DenominatorLabel: denomLabel,
		},
	}

	reply := spec.Reply
	if reply == "" {
		reply = "{share_percent} of incidents match {numerator_label} ({numerator_total} of {denominator_total}), {period}."
	}
	replacements := map[string]string{
		"{share_percent}":     displayValue,
		"{numerator_total}":   FormatValue(numSum, "sum"),
		"{denominator_total}": FormatValue(denomSum, "sum"),
		"{numerator_label}":   numLabel,
		"{denominator_label}": denomLabel,
		"{period}":            period,
		"{total}":             FormatValue(numSum, "sum"),
		"{count}":             FormatInt(denominator.Len()),
	}
	for k, v := range replacements {
		reply = strings.ReplaceAll(reply, k, v)
	}

	cfg.Logger.Debug("share computed", "analysis", spec.Name, "numerator", numSum, "denominator", denomSum, "percent", RoundTo2(pct))

	return &Result{
		Success: true,
		Name:    spec.Name,
		Title:   spec.Title,
		Type:    "text",
		Reply:   stripUnresolvedPlaceholders(reply),
		Data:    textData,
		Count:   denominator.Len(),
	}, nil
}

// ============================================================================
// PLACEHOLDER RESOLUTION
// ============================================================================

// ResolvePlaceholders substitutes computed values into the reply template.
func ResolvePlaceholders(template string, groups []Group, view RecordView, measure string, aggregation string) string {
	if template == "" {
		return buildDefaultReply(view, measure)
	}

	total := SumMeasure(view, measure)
	count := view.Len()

	replacements := map[string]string{
		"{total}":  FormatValue(total, "sum"),
		"{count}":  FormatInt(count),
		"{period}": DerivePeriod(view),
		"{groups}": FormatInt(len(groups)),
	}

	// Top group (highest value)
	if len(groups) > 0 {
		topGroup := groups[0]
		for _, g := range groups[1:] {
			if g.Value > topGroup.Value {
				topGroup = g
			}
		}
		replacements["{top_group}"] = topGroup.Label
		replacements["{top_value}"] = FormatValue(topGroup.Value, aggregation)
	}

	if count > 0 {
		replacements["{avg}"] = FormatValue(total/float64(count), "avg")
		replacements["{max}"] = FormatValue(MaxMeasure(view, measure), "max")
		replacements["{min}"] = FormatValue(MinMeasure(view, measure), "min")
	}

	// Growth placeholders
	if strings.Contains(template, "{growth_percent}") || strings.Contains(template, "{direction}") ||
		strings.Contains(template, "_period}") || strings.Contains(template, "_value}") || strings.Contains(template, "{change_amount}") {
		growthData := BuildGrowthText(view, measure)
		if growthData.Growth != nil {
			g := growthData.Growth
			replacements["{growth_percent}"] = fmt.Sprintf("%.1f%%", g.ChangePercent)
			replacements["{change_amount}"] = FormatValue(g.ChangeAmount, "sum")
			replacements["{earliest_value}"] = FormatValue(g.EarliestValue, "sum")
			replacements["{latest_value}"] = FormatValue(g.LatestValue, "sum")
			replacements["{earliest_period}"] = g.EarliestPeriod
			replacements["{latest_period}"] = g.LatestPeriod
			replacements["{direction}"] = g.Direction
		}
	}

	// Longest keys first so "{top_group}" is never shadowed by a shorter key.
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	result := template
	for _, k := range keys {
		result = strings.ReplaceAll(result, k, replacements[k])
	}

	// Safety net: strip unresolved placeholders
	return stripUnresolvedPlaceholders(result)
}

// ============================================================================
// QUERYSPEC NORMALIZATION
// ============================================================================

// NormalizeQuerySpec applies deterministic rules to hand-written analyses.
func NormalizeQuerySpec(spec QuerySpec) QuerySpec {
	// Rule 1: "list" aggregation must be a table
	if spec.Aggregation == "list" && spec.Intent != "table" {
		spec.Intent = "table"
		spec.Visualize = "table"
	}

	// Rule 2: Charts must have a groupBy dimension
	if spec.Intent == "chart" && len(spec.GroupBy) == 0 {
		spec.Intent = "text"
		spec.Visualize = "text"
	}

	// Rule 3: max/min/growth with no groupBy → text
	if (spec.Aggregation == "max" || spec.Aggregation == "min" || spec.Aggregation == "growth") && len(spec.GroupBy) == 0 {
		spec.Intent = "text"
		spec.Visualize = "text"
	}

	// Rule 4: share with compare filters is a single number
	if spec.Aggregation == "share" && spec.CompareFilters != nil {
		spec.Intent = "text"
		spec.Visualize = "text"
	}

	// Rule 5: a chart intent without a chart type draws bars
	if spec.Intent == "chart" && (spec.Visualize == "" || spec.Visualize == "text" || spec.Visualize == "table") {
		spec.Visualize = "bar"
	}

	return spec
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func buildDefaultReply(view RecordView, measure string) string {
	if view.Len() == 0 {
		return "No matching records found."
	}
	return fmt.Sprintf("%s records, %s total, %s.",
		FormatInt(view.Len()), FormatValue(SumMeasure(view, measure), "sum"), DerivePeriod(view))
}

// buildFilterLabel creates a human-readable label from Filters.
func buildFilterLabel(f *Filters) string {
	if f == nil || f.IsEmpty() {
		return "All"
	}

	dims := make([]string, 0, len(f.Dimensions))
	for dim := range f.Dimensions {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	parts := []string{}
	for _, dim := range dims {
		if vals := f.Dimensions[dim]; len(vals) > 0 {
			parts = append(parts, LabelForDimension(dim)+" = "+strings.Join(vals, ", "))
		}
	}

	if len(parts) == 0 {
		return "All records"
	}
	return strings.Join(parts, "; ")
}

var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

func stripUnresolvedPlaceholders(text string) string {
	cleaned := placeholderRegex.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, " ,—-–")
	if cleaned == "" {
		return text
	}
	return cleaned
}
