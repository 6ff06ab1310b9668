/*
Package elasticnet implements linear regression with combined L1 and L2 penalties
fitted by coordinate descent.

The minimized objective is

	1/(2n) * ||y - Xw - b||^2 + alpha * l1_ratio * ||w||_1 + 0.5 * alpha * (1 - l1_ratio) * ||w||^2

with the intercept b fitted on centered data. With alpha = 0 it's ordinary least squares.
*/
package elasticnet

import (
	"encoding/json"
	"fmt"
	"go-ml.dev/pkg/dvcflow/fu"
	"go-ml.dev/pkg/dvcflow/model"
	"go-ml.dev/pkg/zorros"
	"go-ml.dev/pkg/zorros/zlog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"io"
	"math"
)

// Flavor identifies elastic net models
const Flavor = "dvcflow.elasticnet"

const (
	DefaultMaxIter = 1000
	DefaultTol     = 1e-4
	DefaultSeed    = 42
)

func init() {
	model.RegisterFlavor(Flavor, func(rd io.Reader) (model.Model, error) {
		m := &Model{}
		if err := json.NewDecoder(rd).Decode(m); err != nil {
			return nil, zorros.Trace(err)
		}
		return m, nil
	})
}

/*
Selection is the order coordinates are updated in
*/
type Selection int

const (
	Cyclic Selection = iota // features in order
	Random                  // a random feature each step, seeded by Seed
)

/*
ElasticNet is the elastic net regressor
*/
type ElasticNet struct {
	MaxIter   int       // maximum count of passes over features, 1000 by default
	Tol       float64   // duality gap tolerance relative to ||y||^2, 1e-4 by default
	Selection Selection // coordinate order
	Seed      uint64    // random seed for Random selection
	Verbose   func(string)
}

/*
New returns the regressor with default solver settings
*/
func New() *ElasticNet {
	return &ElasticNet{MaxIter: DefaultMaxIter, Tol: DefaultTol, Seed: DefaultSeed}
}

/*
Model is a fitted elastic net
*/
type Model struct {
	Names     []string  `json:"features"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	Alpha     float64   `json:"alpha"`
	L1Ratio   float64   `json:"l1_ratio"`
	NIter     int       `json:"n_iter"`
	DualGap   float64   `json:"dual_gap"`
}

func (m *Model) Features() []string { return m.Names }
func (m *Model) Flavor() string     { return Flavor }

/*
Predict returns b + x·w for every row of x
*/
func (m *Model) Predict(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != len(m.Coef) {
		return nil, zorros.Errorf("model expects %d features, got %d", len(m.Coef), cols)
	}
	r := make([]float64, rows)
	if rows == 0 {
		return r, nil
	}
	v := mat.NewVecDense(rows, r)
	v.MulVec(x, mat.NewVecDense(cols, append([]float64(nil), m.Coef...)))
	for i := range r {
		r[i] += m.Intercept
	}
	return r, nil
}

/*
Fit implements model.Regressor
*/
func (e *ElasticNet) Fit(x *mat.Dense, y []float64, features []string, hp model.HyperParams) (model.Model, error) {
	if err := hp.Validate(); err != nil {
		return nil, &model.FitError{Err: err}
	}
	n, p := x.Dims()
	if n != len(y) {
		return nil, &model.FitError{Err: zorros.Errorf("features have %d rows but target has %d", n, len(y))}
	}
	if p != len(features) {
		return nil, &model.FitError{Err: zorros.Errorf("features have %d columns but %d names", p, len(features))}
	}
	if n == 0 || p == 0 {
		return nil, &model.FitError{Err: zorros.Errorf("empty training set")}
	}
	if !fu.Finite(y) {
		return nil, &model.FitError{Err: zorros.Errorf("target contains NaN or infinite values")}
	}

	cols := make([][]float64, p)
	xmean := make([]float64, p)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
		if !fu.Finite(cols[j]) {
			return nil, &model.FitError{Err: zorros.Errorf("feature `%v` contains NaN or infinite values", features[j])}
		}
		xmean[j] = fu.Mean(cols[j])
		floats.AddConst(-xmean[j], cols[j])
	}
	ymean := fu.Mean(y)
	yc := append([]float64(nil), y...)
	floats.AddConst(-ymean, yc)

	var (
		w    []float64
		gap  float64
		iter int
	)
	if hp.Alpha == 0 || hp.L1Ratio == 0 {
		w, gap = leastSquares(cols, yc, hp.Alpha*float64(n))
	}
	if w == nil {
		w, gap, iter = e.descent(cols, yc, hp)
	}

	return &Model{
		Names:     append([]string(nil), features...),
		Coef:      w,
		Intercept: ymean - floats.Dot(xmean, w),
		Alpha:     hp.Alpha,
		L1Ratio:   hp.L1Ratio,
		NIter:     iter,
		DualGap:   gap,
	}, nil
}

// descent minimizes the objective on centered columns, returns weights, duality gap and count of passes
func (e *ElasticNet) descent(cols [][]float64, y []float64, hp model.HyperParams) ([]float64, float64, int) {
	n, p := len(y), len(cols)
	l1 := hp.Alpha * hp.L1Ratio * float64(n)
	l2 := hp.Alpha * (1 - hp.L1Ratio) * float64(n)
	maxIter := fu.Fnzi(e.MaxIter, DefaultMaxIter)
	tol := fu.Fnz(e.Tol, DefaultTol) * floats.Dot(y, y)

	var rng *rand.Rand
	if e.Selection == Random {
		rng = rand.New(rand.NewSource(e.Seed))
	}

	norm2 := make([]float64, p)
	for j, c := range cols {
		norm2[j] = floats.Dot(c, c)
	}
	w := make([]float64, p)
	r := append([]float64(nil), y...) // residuals y - Xw

	relTol := fu.Fnz(e.Tol, DefaultTol)
	gradTol := relTol * math.Sqrt(floats.Dot(y, y)*floats.Max(norm2))
	gap := math.Inf(1)
	converged := false
	iter := 0
	for ; iter < maxIter; iter++ {
		wMax, dwMax := 0.0, 0.0
		for k := 0; k < p; k++ {
			j := k
			if rng != nil {
				j = rng.Intn(p)
			}
			if norm2[j] == 0 {
				continue
			}
			w0 := w[j]
			if w0 != 0 {
				floats.AddScaled(r, w0, cols[j])
			}
			tmp := floats.Dot(cols[j], r)
			w[j] = softThreshold(tmp, l1) / (norm2[j] + l2)
			if w[j] != 0 {
				floats.AddScaled(r, -w[j], cols[j])
			}
			dwMax = math.Max(dwMax, math.Abs(w[j]-w0))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}
		if wMax == 0 || dwMax/wMax < relTol || iter == maxIter-1 {
			gap = dualGap(cols, y, r, w, l1, l2)
			// without L1 penalty the gap does not vanish at the optimum, the gradient does
			if l1 == 0 && gradNorm(cols, r, w, l2) <= gradTol || l1 != 0 && gap < tol {
				converged = true
				iter++
				break
			}
		}
	}
	if !converged {
		zlog.Warning(fmt.Sprintf("elastic net did not converge after %d iterations, duality gap %g, tolerance %g", iter, gap, tol))
	}
	e.verbose(fmt.Sprintf("elastic net: %d iterations, duality gap %g", iter, gap))
	return w, gap, iter
}

// design matrices worse conditioned than this are left to coordinate descent
const maxCond = 1e10

/*
leastSquares solves min ||y - Xw||^2 + l2*||w||^2 on centered columns through QR of X stacked
over sqrt(l2)*I, it returns nil weights when X is rank deficient
*/
func leastSquares(cols [][]float64, y []float64, l2 float64) ([]float64, float64) {
	n, p := len(y), len(cols)
	rows := n
	if l2 > 0 {
		rows += p
	}
	if rows < p {
		return nil, 0
	}
	a := mat.NewDense(rows, p, nil)
	for j, c := range cols {
		for i, v := range c {
			a.Set(i, j, v)
		}
		if l2 > 0 {
			a.Set(n+j, j, math.Sqrt(l2))
		}
	}
	b := mat.NewVecDense(rows, nil)
	for i, v := range y {
		b.SetVec(i, v)
	}
	var qr mat.QR
	qr.Factorize(a)
	if qr.Cond() > maxCond {
		return nil, 0
	}
	var v mat.VecDense
	if err := v.SolveVec(a, b); err != nil {
		return nil, 0
	}
	w := append([]float64(nil), v.RawVector().Data...)
	if !fu.Finite(w) {
		return nil, 0
	}
	r := append([]float64(nil), y...)
	for j, c := range cols {
		floats.AddScaled(r, -w[j], c)
	}
	return w, dualGap(cols, y, r, w, 0, l2)
}

// gradNorm is the largest partial derivative of the smooth part of the objective
func gradNorm(cols [][]float64, r, w []float64, l2 float64) float64 {
	g := 0.0
	for j, c := range cols {
		g = math.Max(g, math.Abs(floats.Dot(c, r)-l2*w[j]))
	}
	return g
}

func softThreshold(v, l float64) float64 {
	if v > l {
		return v - l
	}
	if v < -l {
		return v + l
	}
	return 0
}

// dualGap is the elastic net duality gap for weights w and residuals r
func dualGap(cols [][]float64, y, r, w []float64, l1, l2 float64) float64 {
	dualNorm := 0.0
	for j, c := range cols {
		dualNorm = math.Max(dualNorm, math.Abs(floats.Dot(c, r)-l2*w[j]))
	}
	rNorm2 := floats.Dot(r, r)
	wNorm2 := floats.Dot(w, w)
	var gap, cnst float64
	if dualNorm > l1 {
		cnst = l1 / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*cnst*cnst)
	} else {
		cnst = 1
		gap = rNorm2
	}
	gap += l1*floats.Norm(w, 1) - cnst*floats.Dot(r, y) + 0.5*l2*(1+cnst*cnst)*wNorm2
	return gap
}

func (e *ElasticNet) verbose(s string) {
	if e.Verbose != nil {
		e.Verbose(s)
	}
}
