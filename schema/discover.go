package schema

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ============================================================================
// AUTO-DISCOVERY — Heuristic column classification
// ============================================================================
// Inspects raw CSV and generates a schema.Config.
//
// Classification pipeline per column:
//   1. Sample values → detect type (numeric, date, time of day, bool, string)
//   2. Type + cardinality → classify role (dimension, measure, skip)
//   3. Pattern matching → temporal layouts, coded numeric dimensions
//   4. Synthetic record_count measure
//   5. Parent/child hierarchy detection (precinct → borough)
// ============================================================================

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize     int      // Max rows to inspect (0 = all, capped). Default: 1000
	RecoverColumns []string // Force-include columns that were auto-skipped
	Name           string   // Dataset name override
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		SampleSize: 1000,
	}
}

// maxSampleRows bounds SampleSize=0 so a multi-hundred-MB download is not
// fully materialised just to classify columns.
const maxSampleRows = 100000

// DiscoverFromCSV generates a schema.Config by inspecting CSV data.
func DiscoverFromCSV(data []byte, opts ...DiscoverOptions) (*Config, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV headers: %w", err)
	}
	if len(headers) == 0 || (len(headers) == 1 && strings.TrimSpace(headers[0]) == "") {
		return nil, errors.New("CSV has no columns")
	}
	headers[0] = strings.TrimPrefix(headers[0], "\ufeff")

	limit := opt.SampleSize
	if limit <= 0 || limit > maxSampleRows {
		limit = maxSampleRows
	}

	rows := make([][]string, 0, min(limit, 4096))
	for len(rows) < limit {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // malformed rows do not influence classification
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("CSV has no data rows")
	}

	columns := make([]columnAnalysis, len(headers))
	for i, header := range headers {
		columns[i] = analyzeColumn(header, i, rows)
	}

	recoverSet := make(map[string]bool, len(opt.RecoverColumns))
	for _, col := range opt.RecoverColumns {
		recoverSet[toSnakeCase(col)] = true
	}

	config := &Config{
		Name:           opt.Name,
		Version:        "1.0",
		DiscoveredFrom: "CSV",
		DiscoveredAt:   time.Now().UTC().Format(time.RFC3339),
		RowsSampled:    len(rows),
	}
	if config.Name == "" {
		config.Name = "Auto-discovered Dataset"
	}

	for i := range columns {
		col := &columns[i]
		switch {
		case col.role == roleDimension:
			config.Dimensions = append(config.Dimensions, col.toDimension())
		case col.role == roleMeasure:
			config.Measures = append(config.Measures, col.toMeasure())
		case recoverSet[col.key]:
			col.role = roleDimension
			config.Dimensions = append(config.Dimensions, col.toDimension())
		default:
			config.SkippedColumns = append(config.SkippedColumns, SkippedColumn{
				Column:      col.header,
				Reason:      col.skipReason,
				Recoverable: col.recoverable,
			})
		}
	}

	config.Measures = append(config.Measures, MeasureMeta{
		Key:                "record_count",
		DisplayName:        "Record Count",
		Description:        "Number of records",
		IsSynthetic:        true,
		Aggregations:       []string{"count"},
		DefaultAggregation: "count",
	})

	detectHierarchies(config.Dimensions, rows, columns)

	return config, nil
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnRole int

const (
	roleDimension columnRole = iota
	roleMeasure
	roleSkipped
)

type columnType int

const (
	typeString columnType = iota
	typeNumeric
	typeDate
	typeTime
	typeBool
)

type columnAnalysis struct {
	header      string
	key         string
	index       int
	colType     columnType
	role        columnRole
	skipReason  string
	recoverable bool

	uniqueCount int
	totalCount  int
	nullCount   int
	sampleVals  []string

	temporalFormat  string
	hasDecimals     bool
	cardinalityHint string
}

// nullTokens are values treated as missing during discovery.
var nullTokens = map[string]bool{
	"": true, "null": true, "(null)": true, "n/a": true, "na": true, "nan": true,
}

func isNull(v string) bool {
	return nullTokens[strings.ToLower(v)]
}

func analyzeColumn(header string, index int, rows [][]string) columnAnalysis {
	col := columnAnalysis{
		header:     header,
		key:        toSnakeCase(header),
		index:      index,
		totalCount: len(rows),
	}

	values := make([]string, 0, len(rows))
	uniqueSet := make(map[string]bool)
	for _, row := range rows {
		if index >= len(row) {
			col.nullCount++
			continue
		}
		val := strings.TrimSpace(row[index])
		if isNull(val) {
			col.nullCount++
			continue
		}
		values = append(values, val)
		uniqueSet[val] = true
	}
	col.uniqueCount = len(uniqueSet)

	if len(values) == 0 {
		col.role = roleSkipped
		col.skipReason = "All values are empty/null"
		return col
	}

	col.sampleVals = collectSamples(uniqueSet, 10)
	col.colType, col.temporalFormat = detectType(values)

	if col.colType == typeNumeric {
		for _, v := range values {
			if strings.Contains(v, ".") {
				col.hasDecimals = true
				break
			}
		}
	}
	if col.colType == typeString {
		col.temporalFormat = detectTemporalPattern(col.sampleVals)
	}

	col.classifyRole()

	switch {
	case col.uniqueCount <= 10:
		col.cardinalityHint = "low"
	case col.uniqueCount <= 100:
		col.cardinalityHint = "medium"
	default:
		col.cardinalityHint = "high"
	}

	return col
}

// codedHeaderHints mark integer columns that are categories, not quantities.
var codedHeaderHints = []string{"precinct", "code", "zip", "district", "ward", "sector"}

func looksCoded(key string) bool {
	for _, h := range codedHeaderHints {
		if strings.Contains(key, h) {
			return true
		}
	}
	return false
}

func (col *columnAnalysis) classifyRole() {
	total := col.totalCount

	switch col.colType {
	case typeNumeric:
		if col.uniqueCount == total && total > 10 && !col.hasDecimals {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an ID column"
			return
		}
		if col.hasDecimals {
			col.role = roleMeasure
			return
		}
		if looksCoded(col.key) && col.uniqueCount <= 500 {
			col.role = roleDimension
			return
		}
		// Few unique values at a low ratio → coded dimension (e.g. priority 1-5).
		ratio := float64(col.uniqueCount) / float64(total)
		if col.uniqueCount < 20 && ratio < 0.3 {
			col.role = roleDimension
			return
		}
		col.role = roleMeasure

	case typeDate, typeTime, typeBool:
		col.role = roleDimension

	default:
		if col.temporalFormat != "" {
			col.role = roleDimension
			return
		}
		if col.uniqueCount == total && total > 10 {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an identifier"
			return
		}
		if col.uniqueCount > total/2 && col.uniqueCount > 50 {
			col.role = roleSkipped
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values) — not useful for grouping", col.uniqueCount)
			col.recoverable = true
			return
		}
		col.role = roleDimension
	}
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

// dateLayouts are tried in order; the first layout matching 80% of values wins.
var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var timeLayouts = []string{"15:04:05", "15:04"}

// detectType inspects values to determine column type. At least 80% of
// non-null values must match for bool, date, time or numeric. For dates and
// times the matching layout is returned.
func detectType(values []string) (columnType, string) {
	if len(values) == 0 {
		return typeString, ""
	}
	threshold := int(float64(len(values)) * 0.8)
	if threshold == 0 {
		threshold = 1
	}

	boolCount := 0
	numCount := 0
	for _, v := range values {
		if isBool(v) {
			boolCount++
		}
		if isNumeric(v) {
			numCount++
		}
	}
	if boolCount >= threshold {
		return typeBool, ""
	}
	if layout := matchLayout(values, dateLayouts, threshold); layout != "" {
		return typeDate, layout
	}
	if layout := matchLayout(values, timeLayouts, threshold); layout != "" {
		return typeTime, layout
	}
	if numCount >= threshold {
		return typeNumeric, ""
	}
	return typeString, ""
}

func matchLayout(values []string, layouts []string, threshold int) string {
	for _, layout := range layouts {
		n := 0
		for _, v := range values {
			if _, err := time.Parse(layout, v); err == nil {
				n++
			}
		}
		if n >= threshold {
			return layout
		}
	}
	return ""
}

func isNumeric(s string) bool {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "yes", "no", "y", "n":
		return true
	}
	return false
}

var temporalPatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`), "Jan-2006"},
	{regexp.MustCompile(`^\d{4}-\d{2}$`), "2006-01"},
	{regexp.MustCompile(`^Q[1-4][- ]\d{4}$`), "Q-2006"},
	{regexp.MustCompile(`^[A-Z][a-z]+ \d{4}$`), "January 2006"},
}

// detectTemporalPattern recognises month and quarter labels stored as strings.
func detectTemporalPattern(samples []string) string {
	if len(samples) == 0 {
		return ""
	}
	for _, p := range temporalPatterns {
		matches := 0
		for _, s := range samples {
			if p.re.MatchString(strings.TrimSpace(s)) {
				matches++
			}
		}
		if float64(matches)/float64(len(samples)) >= 0.8 {
			return p.layout
		}
	}
	return ""
}

// ============================================================================
// HIERARCHY DETECTION
// ============================================================================

// detectHierarchies finds parent/child relationships between dimensions.
// A is parent of B when every value of B maps to exactly one value of A and
// A has fewer unique values. Among several valid parents the closest (highest
// cardinality) wins.
func detectHierarchies(dimensions []DimensionMeta, rows [][]string, columns []columnAnalysis) {
	index := make(map[string]int)
	uniques := make(map[string]int)
	for _, col := range columns {
		if col.role == roleDimension && col.colType != typeDate && col.colType != typeTime {
			index[col.key] = col.index
			uniques[col.key] = col.uniqueCount
		}
	}

	for i := range dimensions {
		childKey := dimensions[i].Key
		childIdx, ok := index[childKey]
		if !ok {
			continue
		}

		best, bestUniques := "", 0
		for j := range dimensions {
			if i == j {
				continue
			}
			parentKey := dimensions[j].Key
			parentIdx, ok := index[parentKey]
			if !ok || uniques[parentKey] >= uniques[childKey] || uniques[parentKey] < 2 {
				continue
			}
			if functionallyDependent(rows, childIdx, parentIdx) && uniques[parentKey] > bestUniques {
				best, bestUniques = parentKey, uniques[parentKey]
			}
		}
		if best != "" {
			dimensions[i].Parent = best
		}
	}
}

// functionallyDependent reports whether each child value maps to one parent value.
func functionallyDependent(rows [][]string, childIdx, parentIdx int) bool {
	seen := make(map[string]string)
	for _, row := range rows {
		if childIdx >= len(row) || parentIdx >= len(row) {
			continue
		}
		child, parent := strings.TrimSpace(row[childIdx]), strings.TrimSpace(row[parentIdx])
		if isNull(child) || isNull(parent) {
			continue
		}
		if prev, ok := seen[child]; ok && prev != parent {
			return false
		}
		seen[child] = parent
	}
	return len(seen) > 1
}

// ============================================================================
// CONVERSION HELPERS
// ============================================================================

func (col *columnAnalysis) toDimension() DimensionMeta {
	d := DefaultDimension(col.key, toDisplayName(col.header), col.sampleVals)
	d.Column = col.header
	d.TemporalFormat = col.temporalFormat
	d.IsTemporal = col.colType == typeDate || (col.colType == typeString && col.temporalFormat != "")
	d.IsTimeOfDay = col.colType == typeTime
	d.CardinalityHint = col.cardinalityHint
	d.NullCount = col.nullCount
	return d
}

func (col *columnAnalysis) toMeasure() MeasureMeta {
	m := DefaultMeasure(col.key, toDisplayName(col.header))
	m.Column = col.header
	switch {
	case col.key == "latitude" || col.key == "longitude" || strings.HasSuffix(col.key, "_lat") || strings.HasSuffix(col.key, "_lon"):
		m.Unit = "degrees"
		m.DefaultAggregation = "avg"
	default:
		m.Unit = "units"
	}
	return m
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name", "columnName" or "OCCUR_DATE" → snake_case.
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(r)
	}

	out := strings.ToLower(b.String())
	out = strings.NewReplacer(" ", "_", "-", "_").Replace(out)
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// ToSnakeCase is the exported form used to turn upstream headers into keys.
func ToSnakeCase(s string) string { return toSnakeCase(s) }

// toDisplayName cleans a header for human display.
// "VIC_AGE_GROUP" → "Vic Age Group", "story_points" → "Story Points".
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// collectSamples picks up to maxSamples values in sorted order.
func collectSamples(uniqueSet map[string]bool, maxSamples int) []string {
	samples := make([]string, 0, len(uniqueSet))
	for v := range uniqueSet {
		samples = append(samples, v)
	}
	sort.Strings(samples)
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}
