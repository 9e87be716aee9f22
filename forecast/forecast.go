package forecast

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spektr-org/incidents/engine"
)

// Result is a fitted model plus its forward predictions.
type Result struct {
	Model       *PoissonModel
	Observed    []YearCount
	Predictions []Prediction
}

// Forecast fits points and predicts lastYear+1 … lastYear+horizon.
// A horizon below 1 is treated as 1.
func Forecast(points []YearCount, horizon int) (*Result, error) {
	if horizon < 1 {
		horizon = 1
	}
	model, err := FitPoisson(points)
	if err != nil {
		return nil, err
	}
	res := &Result{Model: model, Observed: sorted(points)}
	for h := 1; h <= horizon; h++ {
		res.Predictions = append(res.Predictions, model.Predict(model.LastYear+h))
	}
	return res, nil
}

// Next returns the first forward prediction.
func (r *Result) Next() Prediction { return r.Predictions[0] }

// GroupResult is the forecast of one group. Err is set instead of Result
// when the group could not be fitted.
type GroupResult struct {
	Group  string
	Result *Result
	Err    error
}

// ForecastBy fits one model per group. Groups without enough data carry
// ErrInsufficientData rather than failing the whole call.
func ForecastBy(points map[string][]YearCount, horizon int) []GroupResult {
	names := make([]string, 0, len(points))
	for name := range points {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]GroupResult, 0, len(names))
	for _, name := range names {
		res, err := Forecast(points[name], horizon)
		out = append(out, GroupResult{Group: name, Result: res, Err: err})
	}
	return out
}

// FromGroups converts an engine grouping by year into observations. Each
// group key must be a year; the group value is the count.
func FromGroups(groups []engine.Group) ([]YearCount, error) {
	out := make([]YearCount, 0, len(groups))
	for _, g := range groups {
		year, err := strconv.Atoi(strings.TrimSpace(g.Key))
		if err != nil {
			return nil, fmt.Errorf("group %q is not a year: %w", g.Key, err)
		}
		out = append(out, YearCount{Year: year, Count: g.Value})
	}
	return sorted(out), nil
}

// FromNestedGroups converts a [year, group] engine grouping into per-group
// observations, e.g. yearly counts per borough. A group absent from a year
// gets a zero count for it.
func FromNestedGroups(groups []engine.Group) (map[string][]YearCount, error) {
	counts := make(map[string]map[int]float64)
	years := make([]int, 0, len(groups))
	for _, g := range groups {
		year, err := strconv.Atoi(strings.TrimSpace(g.Key))
		if err != nil {
			return nil, fmt.Errorf("group %q is not a year: %w", g.Key, err)
		}
		years = append(years, year)
		for _, sub := range g.SubGroups {
			if counts[sub.Label] == nil {
				counts[sub.Label] = make(map[int]float64)
			}
			counts[sub.Label][year] += sub.Value
		}
	}
	sort.Ints(years)

	out := make(map[string][]YearCount, len(counts))
	for name, byYear := range counts {
		pts := make([]YearCount, 0, len(years))
		for _, y := range years {
			pts = append(pts, YearCount{Year: y, Count: byYear[y]})
		}
		out[name] = pts
	}
	return out, nil
}

// DropLastYear removes the latest year, typically a partial one.
func DropLastYear(points []YearCount) []YearCount {
	pts := sorted(points)
	if len(pts) == 0 {
		return pts
	}
	last := pts[len(pts)-1].Year
	out := pts[:0]
	for _, p := range pts {
		if p.Year != last {
			out = append(out, p)
		}
	}
	return out
}

// IsInsufficient reports whether err is ErrInsufficientData.
func IsInsufficient(err error) bool { return errors.Is(err, ErrInsufficientData) }

func sorted(points []YearCount) []YearCount {
	out := append([]YearCount(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
