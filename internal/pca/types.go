package pca

import (
	"errors"
	"math"
)

var (
	// ErrEmptyBatch is returned by Summarize for a batch with no samples.
	// Callers are expected to skip empty batches rather than rely on it.
	ErrEmptyBatch = errors.New("pca: empty batch")

	// ErrDegenerateBatch classifies a batch too small for a sample
	// covariance (n <= 1). Summarize zero-fills instead of returning it.
	ErrDegenerateBatch = errors.New("pca: degenerate batch")
)

// Vec2 is a 2D vector.
type Vec2 struct {
	X, Y float64
}

// Norm returns the Euclidean length.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Dot returns the dot product with w.
func (v Vec2) Dot(w Vec2) float64 { return v.X*w.X + v.Y*w.Y }

// Scale returns v multiplied by k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

// CovarianceMatrix is a symmetric 2x2 sample covariance (divisor n-1).
//
//	[XX XY]
//	[XY YY]
type CovarianceMatrix struct {
	XX, YY, XY float64
}

// Trace returns XX+YY.
func (c CovarianceMatrix) Trace() float64 { return c.XX + c.YY }

// Det returns XX*YY - XY².
func (c CovarianceMatrix) Det() float64 { return c.XX*c.YY - c.XY*c.XY }

// Apply returns the matrix-vector product c·v.
func (c CovarianceMatrix) Apply(v Vec2) Vec2 {
	return Vec2{c.XX*v.X + c.XY*v.Y, c.XY*v.X + c.YY*v.Y}
}

// Eigen holds the eigen-decomposition of a CovarianceMatrix.
// Values[0] >= Values[1]; Vectors are unit length.
type Eigen struct {
	Values  [2]float64
	Vectors [2]Vec2

	// Degenerate is set when the orientation is undefined (isotropic or
	// zero spread) and Vectors hold the fallback basis.
	Degenerate bool

	// Clamped is set when a marginally negative discriminant was clamped
	// to zero.
	Clamped bool
}

// BatchSummary is the per-batch result handed to the accumulator.
type BatchSummary struct {
	MedianTimestamp float64
	CentroidX       float64
	CentroidY       float64
	Count           int
	Covariance      CovarianceMatrix
	Eigen
}

// Principal returns the dominant-variance axis.
func (s BatchSummary) Principal() Vec2 { return s.Vectors[0] }

// Minor returns the secondary axis.
func (s BatchSummary) Minor() Vec2 { return s.Vectors[1] }

// Heading returns the angle of the principal axis in radians, in [-π, π].
func (s BatchSummary) Heading() float64 {
	return math.Atan2(s.Vectors[0].Y, s.Vectors[0].X)
}

// Anisotropy returns 1 - λ2/λ1: 0 for a circular cloud, 1 for a line.
// It is 0 when λ1 is not positive.
func (s BatchSummary) Anisotropy() float64 {
	if !(s.Values[0] > 0) {
		return 0
	}
	return 1 - s.Values[1]/s.Values[0]
}
