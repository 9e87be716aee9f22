// Package dataset turns the upstream shooting incident CSV into typed,
// read-only Incident records and binds them to the analysis engine.
//
// The pipeline is Fetch → Load → Clean. Load reads the CSV into a gota
// dataframe and drops the excluded columns; Clean converts each row into an
// Incident, parsing dates and times and deriving the year. Audit re-checks
// the data-hygiene properties the report relies on.
package dataset

import (
	"errors"
	"strings"
	"time"
)

// Upstream column names.
const (
	ColKey          = "INCIDENT_KEY"
	ColDate         = "OCCUR_DATE"
	ColTime         = "OCCUR_TIME"
	ColBorough      = "BORO"
	ColPrecinct     = "PRECINCT"
	ColMurder       = "STATISTICAL_MURDER_FLAG"
	ColPerpAgeGroup = "PERP_AGE_GROUP"
	ColPerpSex      = "PERP_SEX"
	ColPerpRace     = "PERP_RACE"
	ColVicAgeGroup  = "VIC_AGE_GROUP"
	ColVicSex       = "VIC_SEX"
	ColVicRace      = "VIC_RACE"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
)

// Layouts of OCCUR_DATE and OCCUR_TIME.
const (
	DateLayout = "01/02/2006"
	TimeLayout = "15:04:05"
)

// Unknown replaces empty and placeholder demographic values.
const Unknown = "UNKNOWN"

// RequiredColumns must be present in the upstream header.
var RequiredColumns = []string{
	ColKey, ColDate, ColTime, ColBorough,
	ColVicSex, ColVicAgeGroup, ColVicRace,
	ColLatitude, ColLongitude,
}

// Sentinel errors. A run aborts on any of them.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrBadDate       = errors.New("unparseable date")
	ErrNoRows        = errors.New("dataset has no rows")
	ErrFetch         = errors.New("fetch failed")
)

// Incident is one recorded shooting event.
type Incident struct {
	Key      string
	Date     time.Time
	Year     int // derived from Date
	HasTime  bool
	Hour     int
	Minute   int
	Borough  string
	Precinct string

	Latitude    float64
	Longitude   float64
	HasLocation bool

	Murder bool

	PerpAgeGroup string
	PerpSex      string
	PerpRace     string
	VicAgeGroup  string
	VicSex       string
	VicRace      string
}

// Month returns the month of the incident date.
func (i Incident) Month() time.Month { return i.Date.Month() }

// MonthLabel returns the three-letter month name ("Jan").
func (i Incident) MonthLabel() string { return i.Date.Format("Jan") }

// Weekday returns the three-letter weekday name ("Mon").
func (i Incident) Weekday() string { return i.Date.Format("Mon") }

// Mapped returns the incidents that carry coordinates. Rows with a missing
// latitude or longitude never reach the map.
func Mapped(incidents []Incident) []Incident {
	out := make([]Incident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.HasLocation {
			out = append(out, inc)
		}
	}
	return out
}

// YearRange returns the first and last year present. ok is false for an
// empty slice.
func YearRange(incidents []Incident) (first, last int, ok bool) {
	for i, inc := range incidents {
		if i == 0 || inc.Year < first {
			first = inc.Year
		}
		if i == 0 || inc.Year > last {
			last = inc.Year
		}
	}
	return first, last, len(incidents) > 0
}

var placeholders = map[string]bool{
	"":        true,
	"(null)":  true,
	"null":    true,
	"unknown": true,
	"n/a":     true,
}

// normalizeCategory upper-cases a demographic value and folds placeholders
// into Unknown.
func normalizeCategory(v string) string {
	v = strings.TrimSpace(v)
	if placeholders[strings.ToLower(v)] {
		return Unknown
	}
	return strings.ToUpper(v)
}

// normalizeSex also folds the single-letter "U" into Unknown.
func normalizeSex(v string) string {
	v = normalizeCategory(v)
	if v == "U" {
		return Unknown
	}
	return v
}

// isNullToken reports whether a date, time or coordinate cell is missing.
func isNullToken(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "(null)", "null", "n/a", "na", "nan":
		return true
	}
	return false
}
