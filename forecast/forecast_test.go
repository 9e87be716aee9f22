package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/spektr-org/incidents/engine"
)

func exponential(first, last int, base, rate float64) []YearCount {
	mid := float64(first+last) / 2
	var out []YearCount
	for y := first; y <= last; y++ {
		out = append(out, YearCount{Year: y, Count: base * math.Exp(rate*(float64(y)-mid))})
	}
	return out
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestFitPoisson_RecoversTrend(t *testing.T) {
	pts := exponential(2010, 2019, 1000, -0.05)
	m, err := FitPoisson(pts)
	if err != nil {
		t.Fatalf("FitPoisson: %v", err)
	}
	if !near(m.Slope, -0.05, 1e-4) {
		t.Errorf("Slope = %v, want -0.05", m.Slope)
	}
	if !near(m.Intercept, math.Log(1000), 1e-4) {
		t.Errorf("Intercept = %v, want %v", m.Intercept, math.Log(1000))
	}
	if m.MeanYear != 2014.5 || m.FirstYear != 2010 || m.LastYear != 2019 || m.N != 10 {
		t.Errorf("model = %+v", m)
	}
	if m.Deviance > 1e-6 {
		t.Errorf("Deviance = %v, want ~0 for exact data", m.Deviance)
	}
	if !near(m.AnnualChange(), math.Exp(-0.05)-1, 1e-4) {
		t.Errorf("AnnualChange = %v", m.AnnualChange())
	}
}

func TestFitPoisson_ConstantCounts(t *testing.T) {
	m, err := FitPoisson([]YearCount{{2019, 100}, {2020, 100}, {2021, 100}})
	if err != nil {
		t.Fatalf("FitPoisson: %v", err)
	}
	if !near(m.Slope, 0, 1e-6) {
		t.Errorf("Slope = %v, want 0", m.Slope)
	}
	// Information is diag(300, 200) at μ = 100 with x = -1, 0, 1.
	seB0, seB1 := m.SE()
	if !near(seB0, math.Sqrt(1.0/300), 1e-6) || !near(seB1, math.Sqrt(1.0/200), 1e-6) {
		t.Errorf("SE = %v, %v", seB0, seB1)
	}

	p := m.Predict(2022)
	if !near(p.Expected, 100, 1e-3) {
		t.Errorf("Expected = %v, want 100", p.Expected)
	}
	if !(p.Lower < p.Expected && p.Expected < p.Upper) {
		t.Errorf("interval %v..%v does not contain %v", p.Lower, p.Upper, p.Expected)
	}
}

func TestFitPoisson_DuplicateYearsSummed(t *testing.T) {
	a, err := FitPoisson([]YearCount{{2020, 40}, {2020, 60}, {2021, 100}})
	if err != nil {
		t.Fatalf("FitPoisson: %v", err)
	}
	if a.N != 2 || !near(a.Slope, 0, 1e-6) {
		t.Errorf("model = %+v", a)
	}
}

func TestFitPoisson_ZeroYear(t *testing.T) {
	m, err := FitPoisson([]YearCount{{2018, 5}, {2019, 0}, {2020, 5}})
	if err != nil {
		t.Fatalf("FitPoisson: %v", err)
	}
	if !near(m.Slope, 0, 1e-6) || !near(math.Exp(m.Intercept), 10.0/3, 1e-4) {
		t.Errorf("model = %+v", m)
	}
	if math.IsNaN(m.LogLike) || m.LogLike >= 0 {
		t.Errorf("LogLike = %v", m.LogLike)
	}
	if m.Deviance <= 0 {
		t.Errorf("Deviance = %v, want > 0 for scattered counts", m.Deviance)
	}
}

func TestFitPoisson_LargeCounts(t *testing.T) {
	// Yearly totals of the size the full dataset produces.
	pts := exponential(2006, 2022, 1500, -0.0227)
	m, err := FitPoisson(pts)
	if err != nil {
		t.Fatalf("FitPoisson: %v", err)
	}
	if !near(m.Slope, -0.0227, 1e-5) || !near(m.Intercept, math.Log(1500), 1e-5) {
		t.Errorf("Intercept, Slope = %v, %v", m.Intercept, m.Slope)
	}
}

func TestFitPoisson_Errors(t *testing.T) {
	tests := []struct {
		name string
		pts  []YearCount
	}{
		{"empty", nil},
		{"single year", []YearCount{{2020, 10}}},
		{"all zero", []YearCount{{2020, 0}, {2021, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FitPoisson(tt.pts); !errors.Is(err, ErrInsufficientData) {
				t.Errorf("error = %v, want ErrInsufficientData", err)
			}
		})
	}

	if _, err := FitPoisson([]YearCount{{2020, -1}, {2021, 3}}); err == nil {
		t.Error("negative count should fail")
	}
}

func TestForecast_Horizon(t *testing.T) {
	pts := exponential(2015, 2020, 500, 0.1)
	res, err := Forecast(pts, 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(res.Predictions) != 3 {
		t.Fatalf("predictions = %d, want 3", len(res.Predictions))
	}
	for i, p := range res.Predictions {
		if p.Year != 2021+i {
			t.Errorf("prediction %d year = %d", i, p.Year)
		}
	}
	want := 500 * math.Exp(0.1*(2021-2017.5))
	if !near(res.Next().Expected, want, want*1e-3) {
		t.Errorf("Next = %v, want %v", res.Next().Expected, want)
	}
	// Intervals widen with distance from the data.
	w1 := res.Predictions[0].Upper - res.Predictions[0].Lower
	w3 := res.Predictions[2].Upper - res.Predictions[2].Lower
	if w3 <= w1 {
		t.Errorf("interval width %v at +3 should exceed %v at +1", w3, w1)
	}

	res, err = Forecast(pts, 0)
	if err != nil || len(res.Predictions) != 1 {
		t.Errorf("horizon 0 should give one prediction, got %v %v", res, err)
	}
	if got := len(res.Model.Fitted()); got != 6 {
		t.Errorf("Fitted = %d values, want 6", got)
	}
}

func TestForecastBy(t *testing.T) {
	results := ForecastBy(map[string][]YearCount{
		"QUEENS": {{2019, 10}, {2020, 12}},
		"BRONX":  {{2019, 30}, {2020, 25}, {2021, 20}},
		"EMPTY":  {{2020, 5}},
	}, 1)

	if len(results) != 3 || results[0].Group != "BRONX" || results[2].Group != "QUEENS" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Err != nil || results[0].Result.Next().Year != 2022 {
		t.Errorf("BRONX = %+v", results[0])
	}
	if !IsInsufficient(results[1].Err) || results[1].Result != nil {
		t.Errorf("EMPTY = %+v", results[1])
	}
}

func TestFromGroups(t *testing.T) {
	pts, err := FromGroups([]engine.Group{
		{Key: "2021", Value: 3},
		{Key: "2019", Value: 5},
	})
	if err != nil {
		t.Fatalf("FromGroups: %v", err)
	}
	if len(pts) != 2 || pts[0].Year != 2019 || pts[1].Count != 3 {
		t.Errorf("pts = %+v", pts)
	}
	if _, err := FromGroups([]engine.Group{{Key: "Jan"}}); err == nil {
		t.Error("non-year key should fail")
	}
}

func TestFromNestedGroups_FillsMissingYears(t *testing.T) {
	out, err := FromNestedGroups([]engine.Group{
		{Key: "2019", SubGroups: []engine.Group{{Label: "BRONX", Value: 2}, {Label: "QUEENS", Value: 1}}},
		{Key: "2020", SubGroups: []engine.Group{{Label: "BRONX", Value: 4}}},
	})
	if err != nil {
		t.Fatalf("FromNestedGroups: %v", err)
	}
	q := out["QUEENS"]
	if len(q) != 2 || q[1].Year != 2020 || q[1].Count != 0 {
		t.Errorf("QUEENS = %+v", q)
	}
	if b := out["BRONX"]; len(b) != 2 || b[1].Count != 4 {
		t.Errorf("BRONX = %+v", b)
	}
}

func TestDropLastYear(t *testing.T) {
	got := DropLastYear([]YearCount{{2021, 1}, {2019, 2}, {2020, 3}})
	if len(got) != 2 || got[1].Year != 2020 {
		t.Errorf("DropLastYear = %+v", got)
	}
	if len(DropLastYear(nil)) != 0 {
		t.Error("nil input")
	}
}
