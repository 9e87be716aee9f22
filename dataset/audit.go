package dataset

import (
	"fmt"

	"github.com/spektr-org/incidents/engine"
)

// Check is one data-hygiene assertion shown in the report.
type Check struct {
	Name        string
	Description string
	Passed      bool
	Detail      string
}

// AuditReport collects the checks of one run.
type AuditReport struct {
	Checks []Check
}

// Passed reports whether every check passed.
func (r AuditReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass.
func (r AuditReport) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Audit re-derives the four properties the report relies on from the
// pipeline's intermediate results:
//
//	row_count     dropping columns kept every row
//	dates_parsed  every non-null OCCUR_DATE became an incident
//	month_totals  month group counts sum to the dated incident count
//	mapped_subset the mapped subset is exactly the incidents with coordinates
func Audit(f *Frame, incidents []Incident, monthGroups []engine.Group, mapped []Incident) AuditReport {
	var r AuditReport

	r.Checks = append(r.Checks, Check{
		Name:        "row_count",
		Description: "Row count after dropping excluded columns equals the original row count",
		Passed:      f.RowsBefore == f.RowsAfter,
		Detail:      fmt.Sprintf("%d rows before, %d after; dropped %d columns", f.RowsBefore, f.RowsAfter, len(f.Dropped)),
	})

	nonNull := 0
	for _, v := range f.Column(ColDate) {
		if !isNullToken(v) {
			nonNull++
		}
	}
	r.Checks = append(r.Checks, Check{
		Name:        "dates_parsed",
		Description: "Every non-null input date was parsed",
		Passed:      nonNull == len(incidents),
		Detail:      fmt.Sprintf("%d non-null dates, %d parsed incidents", nonNull, len(incidents)),
	})

	monthTotal := 0
	for _, g := range monthGroups {
		monthTotal += g.Count
	}
	// Rows without a date never become incidents, so they are reported
	// here but not expected in any month.
	undated := f.RowsAfter - len(incidents)
	r.Checks = append(r.Checks, Check{
		Name:        "month_totals",
		Description: "Incident counts grouped by month sum to the dated incident count",
		Passed:      monthTotal == len(incidents),
		Detail: fmt.Sprintf("%d across %d months, %d dated incidents, %d undated rows",
			monthTotal, len(monthGroups), len(incidents), undated),
	})

	withLocation := 0
	for _, inc := range incidents {
		if inc.HasLocation {
			withLocation++
		}
	}
	leaked := 0
	for _, inc := range mapped {
		if !inc.HasLocation {
			leaked++
		}
	}
	r.Checks = append(r.Checks, Check{
		Name:        "mapped_subset",
		Description: "Rows with missing coordinates are excluded from the map",
		Passed:      leaked == 0 && len(mapped) == withLocation,
		Detail: fmt.Sprintf("%d mapped, %d with coordinates, %d without",
			len(mapped), withLocation, len(incidents)-withLocation),
	})

	return r
}
