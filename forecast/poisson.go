// Package forecast fits a Poisson regression to yearly incident counts and
// extrapolates it forward.
//
// The model is a log-link GLM on centred years:
//
//	log μ(year) = β0 + β1·(year − meanYear)
//
// Fitting is done by statmodel's GLM (IRLS, Poisson family). Standard errors
// come from the covariance it reports.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData means fewer than two distinct years carry counts.
var ErrInsufficientData = errors.New("need at least two years of counts")

// YearCount is one observation: the number of incidents in a year.
type YearCount struct {
	Year  int
	Count float64
}

// PoissonModel is a fitted log-linear trend.
type PoissonModel struct {
	Intercept float64 // β0, log of the expected count at MeanYear
	Slope     float64 // β1, change in log count per year
	MeanYear  float64

	// Covariance of (β0, β1).
	Cov [2][2]float64

	Deviance  float64
	LogLike   float64
	N         int
	FirstYear int
	LastYear  int
}

// Prediction is the expected count for one year with a 95% confidence
// interval for the mean.
type Prediction struct {
	Year     int
	Expected float64
	Lower    float64
	Upper    float64
}

// ConfidenceLevel of every Prediction interval.
const ConfidenceLevel = 0.95

const (
	colCount     = "count"
	colIntercept = "icept"
	colYear      = "year"
)

// FitPoisson fits the model to points. Duplicate years are summed.
func FitPoisson(points []YearCount) (*PoissonModel, error) {
	pts, err := normalise(points)
	if err != nil {
		return nil, err
	}

	n := len(pts)
	xs := make([]float64, n)
	ys := make([]float64, n)
	icept := make([]float64, n)
	mean := 0.0
	for _, p := range pts {
		mean += float64(p.Year)
	}
	mean /= float64(n)
	for i, p := range pts {
		xs[i] = float64(p.Year) - mean
		ys[i] = p.Count
		icept[i] = 1
	}

	// IRLS seeds its first linear predictor from the start values, so an
	// OLS fit on log counts is needed for large counts to converge.
	logs := make([]float64, n)
	for i, y := range ys {
		logs[i] = math.Log(y + 0.5)
	}
	a, b := stat.LinearRegression(xs, logs, nil, false)

	fam := glm.NewFamily(glm.PoissonFamily)
	cfg := glm.DefaultConfig()
	cfg.Family = fam
	cfg.Start = []float64{a, b}

	data := statmodel.NewDataset(
		[][]float64{ys, icept, xs},
		[]string{colCount, colIntercept, colYear},
	)
	res, err := fitGLM(data, cfg)
	if err != nil {
		return nil, err
	}

	params, vcov := res.Params(), res.VCov()
	if len(params) != 2 || len(vcov) != 4 {
		return nil, fmt.Errorf("fit poisson: unexpected result shape %d/%d", len(params), len(vcov))
	}
	for _, v := range append(append([]float64(nil), params...), vcov...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("fit poisson: did not converge")
		}
	}

	m := &PoissonModel{
		Intercept: params[0],
		Slope:     params[1],
		MeanYear:  mean,
		Cov:       [2][2]float64{{vcov[0], vcov[1]}, {vcov[2], vcov[3]}},
		Deviance:  fam.Deviance(ys, res.Mean(), nil, 1),
		LogLike:   res.LogLike(),
		N:         n,
		FirstYear: pts[0].Year,
		LastYear:  pts[n-1].Year,
	}
	return m, nil
}

// fitGLM runs the fit, turning the library's panics on singular systems
// into errors.
func fitGLM(data statmodel.Dataset, cfg *glm.Config) (res *glm.GLMResults, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("fit poisson: %v", r)
		}
	}()
	model, err := glm.NewGLM(data, colCount, []string{colIntercept, colYear}, cfg)
	if err != nil {
		return nil, fmt.Errorf("fit poisson: %w", err)
	}
	return model.Fit(), nil
}

func normalise(points []YearCount) ([]YearCount, error) {
	byYear := make(map[int]float64, len(points))
	total := 0.0
	for _, p := range points {
		if p.Count < 0 || math.IsNaN(p.Count) || math.IsInf(p.Count, 0) {
			return nil, fmt.Errorf("invalid count %v for year %d", p.Count, p.Year)
		}
		byYear[p.Year] += p.Count
		total += p.Count
	}
	if len(byYear) < 2 || total == 0 {
		return nil, ErrInsufficientData
	}
	out := make([]YearCount, 0, len(byYear))
	for y, c := range byYear {
		out = append(out, YearCount{Year: y, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// SE returns the standard errors of (β0, β1).
func (m *PoissonModel) SE() (intercept, slope float64) {
	return math.Sqrt(m.Cov[0][0]), math.Sqrt(m.Cov[1][1])
}

// AnnualChange is the fitted multiplicative change per year minus one,
// e.g. -0.05 for a 5% yearly decline.
func (m *PoissonModel) AnnualChange() float64 {
	return math.Exp(m.Slope) - 1
}

// Predict returns the expected count for year. The interval is computed on
// the linear predictor and mapped through exp, so it is never negative.
func (m *PoissonModel) Predict(year int) Prediction {
	x := float64(year) - m.MeanYear
	eta := m.Intercept + m.Slope*x
	v := m.Cov[0][0] + 2*x*m.Cov[0][1] + x*x*m.Cov[1][1]
	se := math.Sqrt(math.Max(v, 0))
	z := distuv.UnitNormal.Quantile(1 - (1-ConfidenceLevel)/2)
	return Prediction{
		Year:     year,
		Expected: math.Exp(eta),
		Lower:    math.Exp(eta - z*se),
		Upper:    math.Exp(eta + z*se),
	}
}

// Fitted returns the model's expected count for each observed year.
func (m *PoissonModel) Fitted() []Prediction {
	out := make([]Prediction, 0, m.LastYear-m.FirstYear+1)
	for y := m.FirstYear; y <= m.LastYear; y++ {
		out = append(out, m.Predict(y))
	}
	return out
}
