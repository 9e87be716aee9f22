package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CleanStats summarises what Clean did to the frame.
type CleanStats struct {
	Rows            int // rows in the frame
	Incidents       int // incidents produced
	MissingDate     int // rows skipped because OCCUR_DATE was empty
	MissingTime     int // incidents without a usable OCCUR_TIME
	MissingLocation int // incidents without coordinates
	Murders         int
}

var timeLayouts = []string{TimeLayout, "15:04"}

// Clean converts each frame row into an Incident. A non-empty OCCUR_DATE
// that does not parse aborts with ErrBadDate; an empty one skips the row.
// Unparseable times and coordinates only clear HasTime / HasLocation.
func Clean(f *Frame) ([]Incident, CleanStats, error) {
	stats := CleanStats{Rows: f.Nrow()}
	if stats.Rows == 0 {
		return nil, stats, ErrNoRows
	}

	col := func(name string) []string {
		if c := f.Column(name); c != nil {
			return c
		}
		return make([]string, stats.Rows)
	}

	var (
		keys      = col(ColKey)
		dates     = col(ColDate)
		times     = col(ColTime)
		boros     = col(ColBorough)
		precincts = col(ColPrecinct)
		murders   = col(ColMurder)
		perpAge   = col(ColPerpAgeGroup)
		perpSex   = col(ColPerpSex)
		perpRace  = col(ColPerpRace)
		vicAge    = col(ColVicAgeGroup)
		vicSex    = col(ColVicSex)
		vicRace   = col(ColVicRace)
		lats      = col(ColLatitude)
		lons      = col(ColLongitude)
	)

	incidents := make([]Incident, 0, stats.Rows)
	for i := 0; i < stats.Rows; i++ {
		if isNullToken(dates[i]) {
			stats.MissingDate++
			continue
		}
		date, err := time.Parse(DateLayout, strings.TrimSpace(dates[i]))
		if err != nil {
			// Row numbers are 1-based and count the header line.
			return nil, stats, fmt.Errorf("%w: row %d: %q", ErrBadDate, i+2, dates[i])
		}

		inc := Incident{
			Key:          strings.TrimSpace(keys[i]),
			Date:         date,
			Year:         date.Year(),
			Borough:      normalizeCategory(boros[i]),
			Precinct:     strings.TrimSpace(precincts[i]),
			Murder:       parseFlag(murders[i]),
			PerpAgeGroup: normalizeCategory(perpAge[i]),
			PerpSex:      normalizeSex(perpSex[i]),
			PerpRace:     normalizeCategory(perpRace[i]),
			VicAgeGroup:  normalizeCategory(vicAge[i]),
			VicSex:       normalizeSex(vicSex[i]),
			VicRace:      normalizeCategory(vicRace[i]),
		}

		if h, m, ok := parseClock(times[i]); ok {
			inc.HasTime, inc.Hour, inc.Minute = true, h, m
		} else {
			stats.MissingTime++
		}

		if lat, lon, ok := parseCoords(lats[i], lons[i]); ok {
			inc.Latitude, inc.Longitude, inc.HasLocation = lat, lon, true
		} else {
			stats.MissingLocation++
		}

		if inc.Murder {
			stats.Murders++
		}
		incidents = append(incidents, inc)
	}

	stats.Incidents = len(incidents)
	if stats.Incidents == 0 {
		return nil, stats, ErrNoRows
	}
	return incidents, stats, nil
}

func parseClock(v string) (hour, minute int, ok bool) {
	if isNullToken(v) {
		return 0, 0, false
	}
	v = strings.TrimSpace(v)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

// parseCoords accepts a latitude/longitude pair when both parse and the
// pair is not the (0, 0) placeholder some exports use for "unknown".
func parseCoords(latStr, lonStr string) (lat, lon float64, ok bool) {
	if isNullToken(latStr) || isNullToken(lonStr) {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	if lat == 0 && lon == 0 {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// parseFlag reads STATISTICAL_MURDER_FLAG: "true"/"false" in the historic
// export, "Y"/"N" in the year-to-date one.
func parseFlag(v string) bool {
	v = strings.TrimSpace(v)
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return strings.EqualFold(v, "y") || strings.EqualFold(v, "yes")
}
