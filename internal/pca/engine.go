package pca

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/eventpca/internal/events"
)

// eigenvectorEpsilon bounds the raw (unnormalised) eigenvector length,
// relative to the matrix trace, below which the direction is considered
// undefined. Rounding in the discriminant of an isotropic matrix leaves
// raw vectors around 1e-8 of the trace, so the bound sits well above that.
const eigenvectorEpsilon = 1e-6

// fallbackBasis is substituted when the orientation is undefined. The axes
// are swapped when Y carries more variance so Vectors[0] stays the major one.
var fallbackBasis = [2]Vec2{{1, 0}, {0, 1}}

func fallbackFor(c CovarianceMatrix) [2]Vec2 {
	if c.YY > c.XX {
		return [2]Vec2{fallbackBasis[1], fallbackBasis[0]}
	}
	return fallbackBasis
}

// Classify reports whether a batch of n samples supports a sample
// covariance: ErrEmptyBatch for n == 0, ErrDegenerateBatch for n == 1 and
// nil otherwise.
func Classify(n int) error {
	switch {
	case n <= 0:
		return ErrEmptyBatch
	case n == 1:
		return ErrDegenerateBatch
	default:
		return nil
	}
}

// Summarize computes centroid, median timestamp, covariance and principal
// axes of a batch.
//
// A single-sample batch has its covariance defined as zero; the summary is
// marked Degenerate and carries the fallback basis. An empty batch returns
// ErrEmptyBatch.
func Summarize(batch events.Batch) (BatchSummary, error) {
	n := len(batch)
	if n == 0 {
		return BatchSummary{}, ErrEmptyBatch
	}

	xs, ys := batch.Xs(), batch.Ys()
	cov := Covariance(xs, ys)

	return BatchSummary{
		MedianTimestamp: MedianTimestamp(batch.Timestamps()),
		CentroidX:       stat.Mean(xs, nil),
		CentroidY:       stat.Mean(ys, nil),
		Count:           n,
		Covariance:      cov,
		Eigen:           Decompose(cov),
	}, nil
}

// Covariance returns the Bessel-corrected covariance of paired
// coordinates. Fewer than two samples yield the zero matrix. xs and ys must
// have equal length.
func Covariance(xs, ys []float64) CovarianceMatrix {
	if len(xs) < 2 {
		return CovarianceMatrix{}
	}
	return CovarianceMatrix{
		XX: stat.Variance(xs, nil),
		YY: stat.Variance(ys, nil),
		XY: stat.Covariance(xs, ys, nil),
	}
}

// Decompose solves the characteristic equation λ² + bλ + c = 0 of a
// symmetric 2x2 matrix in closed form and derives unit eigenvectors.
func Decompose(c CovarianceMatrix) Eigen {
	var e Eigen

	b := -(c.XX + c.YY)
	det := c.XX*c.YY - c.XY*c.XY
	disc := b*b - 4*det
	if disc < 0 {
		// Mathematically non-negative for a real symmetric matrix.
		disc = 0
		e.Clamped = true
	}
	root := math.Sqrt(disc)
	e.Values[0] = (-b + root) / 2
	e.Values[1] = (-b - root) / 2

	tol := eigenvectorEpsilon * math.Abs(c.XX+c.YY)
	for i, lambda := range e.Values {
		v, ok := eigenvector(c, lambda, tol)
		if !ok {
			e.Degenerate = true
			break
		}
		e.Vectors[i] = v
	}
	if e.Degenerate {
		e.Vectors = fallbackFor(c)
	}
	return e
}

// eigenvector returns the unit eigenvector for lambda. The textbook form
// [λ-YY, XY] vanishes for axis-aligned clouds whose major axis is Y, so the
// equivalent form [XY, λ-XX] is used when it is longer. ok is false when
// both forms are within tol of zero.
func eigenvector(c CovarianceMatrix, lambda, tol float64) (v Vec2, ok bool) {
	v = Vec2{lambda - c.YY, c.XY}
	alt := Vec2{c.XY, lambda - c.XX}
	norm, altNorm := v.Norm(), alt.Norm()
	if altNorm > norm {
		v, norm = alt, altNorm
	}
	if norm <= tol {
		return Vec2{}, false
	}
	return v.Scale(1 / norm), true
}

// MedianTimestamp returns the median of ts; for an even count it is the
// mean of the two middle values. An empty slice yields 0.
func MedianTimestamp(ts []int64) float64 {
	if len(ts) == 0 {
		return 0
	}
	sorted := slices.Clone(ts)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	lo, hi := sorted[mid-1], sorted[mid]
	return float64(lo) + float64(hi-lo)/2
}
