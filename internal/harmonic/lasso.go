package harmonic

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Lasso solves min over (b, w) of
//
//	1/(2n)·||y − b − Xw||² + Alpha·||w||₁
//
// by cyclic coordinate descent on centered data, with the intercept left
// unpenalized. A fit that has not converged when MaxIter is reached is
// returned as-is: the caller asked for a bounded amount of work and gets
// the best coefficients available, never an error.
type Lasso struct {
	Alpha   float64
	MaxIter int
	Tol     float64
}

// Fit regresses y against the rows of x and returns the intercept followed
// by one coefficient per column of x. Rank deficiency (fewer observations
// than columns, constant columns) is not rejected; the penalty is what
// keeps such fits bounded.
func (l Lasso) Fit(x *mat.Dense, y []float64) (intercept float64, coefs []float64) {
	n, p := x.Dims()
	coefs = make([]float64, p)
	if n == 0 {
		return math.NaN(), coefs
	}

	maxIter := l.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}
	tol := l.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	// Center y and each column of X so the intercept drops out of the
	// penalized problem.
	ymean := 0.0
	for _, v := range y {
		ymean += v
	}
	ymean /= float64(n)

	xc := make([][]float64, p)
	xmean := make([]float64, p)
	colSq := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		m := 0.0
		for i := 0; i < n; i++ {
			col[i] = x.At(i, j)
			m += col[i]
		}
		m /= float64(n)
		sq := 0.0
		for i := range col {
			col[i] -= m
			sq += col[i] * col[i]
		}
		xc[j] = col
		xmean[j] = m
		colSq[j] = sq / float64(n)
	}

	// Residual of the centered problem; starts at centered y since all
	// coefficients start at zero.
	resid := make([]float64, n)
	for i := range y {
		resid[i] = y[i] - ymean
	}

	for iter := 0; iter < maxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if colSq[j] == 0 {
				continue // constant column carries no signal after centering
			}
			old := coefs[j]
			rho := 0.0
			for i, xv := range xc[j] {
				rho += xv * (resid[i] + xv*old)
			}
			rho /= float64(n)
			w := softThreshold(rho, l.Alpha) / colSq[j]
			if w != old {
				d := w - old
				for i, xv := range xc[j] {
					resid[i] -= d * xv
				}
				coefs[j] = w
				if ad := math.Abs(d); ad > maxDelta {
					maxDelta = ad
				}
			}
		}
		if maxDelta < tol {
			break
		}
	}

	intercept = ymean
	for j := 0; j < p; j++ {
		intercept -= coefs[j] * xmean[j]
	}
	return intercept, coefs
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}
