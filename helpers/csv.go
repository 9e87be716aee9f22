package helpers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/incidents/engine"
	"github.com/spektr-org/incidents/schema"
)

// ============================================================================
// CSV HELPER — Parses CSV data into []engine.Record
// ============================================================================
// Used by the query command for ad-hoc grouping on any upstream column,
// including the ones the incident cleaner drops. The caller fetches the
// bytes; this helper converts them into generic Records using a schema.
// ============================================================================

// DateKey is the dimension that receives the first temporal column,
// normalised to 2006-01-02, so the engine can derive year and month.
const DateKey = "date"

// ParseCSV parses CSV bytes into Records using schema for classification.
// Each row becomes a Record with dimensions (string) and measures (numeric).
func ParseCSV(data []byte, sch schema.Config) ([]engine.Record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV headers: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	type colMapping struct {
		key         string
		isDimension bool
		isMeasure   bool
		dateLayout  string // set on the column copied into DateKey
	}

	dateTaken := sch.HasKey(DateKey)
	mappings := make([]colMapping, len(headers))
	for i, h := range headers {
		key := schema.ToSnakeCase(h)
		if d, ok := sch.Dimension(key); ok {
			mappings[i] = colMapping{key: key, isDimension: true}
			if !dateTaken && d.IsTemporal && isDateLayout(d.TemporalFormat) {
				mappings[i].dateLayout = d.TemporalFormat
				dateTaken = true
			}
			continue
		}
		for _, m := range sch.Measures {
			if m.Key == key && !m.IsSynthetic {
				mappings[i] = colMapping{key: key, isMeasure: true}
				break
			}
		}
		// Unmapped columns are skipped
	}

	var records []engine.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		rec := engine.Record{
			Dimensions: make(map[string]string),
			Measures:   make(map[string]float64),
		}

		for i, val := range row {
			if i >= len(mappings) {
				break
			}
			m := mappings[i]
			val = strings.TrimSpace(val)

			switch {
			case m.isDimension:
				rec.Dimensions[m.key] = val
				if m.dateLayout != "" {
					if t, err := time.Parse(m.dateLayout, val); err == nil {
						rec.Dimensions[DateKey] = t.Format("2006-01-02")
					}
				}
			case m.isMeasure:
				if f, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", ""), 64); err == nil {
					rec.Measures[m.key] = f
				}
			}
		}

		// Synthetic count measures
		for _, m := range sch.Measures {
			if m.IsSynthetic && m.DefaultAggregation == "count" {
				rec.Measures[m.Key] = 1
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// ParseCSVAuto discovers a schema from the data and parses with it.
// Returns the records together with the discovered schema so callers can
// validate user-supplied dimension and measure keys.
func ParseCSVAuto(data []byte) ([]engine.Record, *schema.Config, error) {
	sch, err := schema.DiscoverFromCSV(data)
	if err != nil {
		return nil, nil, fmt.Errorf("discover schema: %w", err)
	}
	records, err := ParseCSV(data, *sch)
	if err != nil {
		return nil, nil, err
	}
	return records, sch, nil
}

// ParseCSVView parses CSV into a RecordView (convenience wrapper).
func ParseCSVView(data []byte, sch schema.Config) (engine.RecordView, error) {
	records, err := ParseCSV(data, sch)
	if err != nil {
		return nil, err
	}
	return engine.NewSliceView(records), nil
}

// ParseCSVAutoView parses CSV without a schema and returns a RecordView.
func ParseCSVAutoView(data []byte) (engine.RecordView, *schema.Config, error) {
	records, sch, err := ParseCSVAuto(data)
	if err != nil {
		return nil, nil, err
	}
	return engine.NewSliceView(records), sch, nil
}

// isDateLayout reports whether a Go layout carries year, month and day.
func isDateLayout(layout string) bool {
	return strings.Contains(layout, "2006") &&
		(strings.Contains(layout, "01") || strings.Contains(layout, "Jan")) &&
		(strings.Contains(layout, "02") || strings.Contains(layout, "2,") || strings.HasPrefix(layout, "2 "))
}
