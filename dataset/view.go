package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spektr-org/incidents/engine"
)

// Engine dimension and measure keys.
const (
	DimBorough      = "borough"
	DimPrecinct     = "precinct"
	DimDate         = "date"
	DimYear         = "year"
	DimMonth        = "month"
	DimHour         = "hour"
	DimWeekday      = "weekday"
	DimVicSex       = "vic_sex"
	DimVicAgeGroup  = "vic_age_group"
	DimVicRace      = "vic_race"
	DimPerpSex      = "perp_sex"
	DimPerpAgeGroup = "perp_age_group"
	DimPerpRace     = "perp_race"
	DimMurder       = "murder"

	MeasureIncidents = "incidents"
	MeasureMurders   = "murders"
)

var adapter = engine.NewDomainAdapter[Incident]().
	Dimension(DimBorough, func(i Incident) string { return i.Borough }).
	Dimension(DimPrecinct, func(i Incident) string { return i.Precinct }).
	Dimension(DimDate, func(i Incident) string { return i.Date.Format("2006-01-02") }).
	Dimension(DimYear, func(i Incident) string { return strconv.Itoa(i.Year) }).
	Dimension(DimMonth, func(i Incident) string { return i.MonthLabel() }).
	Dimension(DimHour, func(i Incident) string {
		if !i.HasTime {
			return ""
		}
		return fmt.Sprintf("%02d", i.Hour)
	}).
	Dimension(DimWeekday, func(i Incident) string { return i.Weekday() }).
	Categories(DimMonth, calendarNames(12, func(k int) string { return time.Month(k + 1).String()[:3] })...).
	Categories(DimWeekday, calendarNames(7, func(k int) string { return time.Weekday((k + 1) % 7).String()[:3] })...).
	Categories(DimHour, calendarNames(24, func(k int) string { return fmt.Sprintf("%02d", k) })...).
	Dimension(DimVicSex, func(i Incident) string { return i.VicSex }).
	Dimension(DimVicAgeGroup, func(i Incident) string { return i.VicAgeGroup }).
	Dimension(DimVicRace, func(i Incident) string { return i.VicRace }).
	Dimension(DimPerpSex, func(i Incident) string { return i.PerpSex }).
	Dimension(DimPerpAgeGroup, func(i Incident) string { return i.PerpAgeGroup }).
	Dimension(DimPerpRace, func(i Incident) string { return i.PerpRace }).
	Dimension(DimMurder, func(i Incident) string { return strconv.FormatBool(i.Murder) }).
	Measure(MeasureIncidents, func(Incident) float64 { return 1 }).
	Measure(MeasureMurders, func(i Incident) float64 {
		if i.Murder {
			return 1
		}
		return 0
	})

// calendarNames lists n category labels in axis order.
func calendarNames(n int, name func(int) string) []string {
	out := make([]string, n)
	for k := range out {
		out[k] = name(k)
	}
	return out
}

// Adapter returns the engine binding for Incident.
func Adapter() *engine.DomainAdapter[Incident] { return adapter }

// View binds incidents to the engine without copying.
func View(incidents []Incident) engine.RecordView { return adapter.Bind(incidents) }
