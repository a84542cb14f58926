// Package series accumulates per-batch PCA summaries and raw samples from an
// event source into a time-aligned Series.
package series

import (
	"errors"
	"fmt"

	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/pca"
)

// ErrFinalized is returned when appending to a Series that has already been
// rebased and handed off.
var ErrFinalized = errors.New("series: already finalized")

// Series is the output of a run. Per-batch slices are indexed by batch
// arrival order and share one length; the All* slices hold every raw sample
// in arrival order.
//
// Times and AllTimestamps are rebased once by Finalize, each on its own first
// element. Summaries keep the engine output as produced, before rebasing.
type Series struct {
	Times      []float64 // median timestamp per batch (µs)
	XCenters   []float64
	YCenters   []float64
	Principal1 []pca.Vec2
	Principal2 []pca.Vec2
	Summaries  []pca.BatchSummary

	AllTimestamps []int64 // µs
	AllX          []float64
	AllY          []float64

	// TimeOrigin and RawOrigin are the values subtracted by Finalize.
	TimeOrigin float64
	RawOrigin  int64

	finalized bool
}

// New returns an empty Series.
func New() *Series {
	return &Series{}
}

// Len returns the number of batches accumulated.
func (s *Series) Len() int { return len(s.Times) }

// SampleCount returns the number of raw samples accumulated.
func (s *Series) SampleCount() int { return len(s.AllTimestamps) }

// Finalized reports whether Finalize has run.
func (s *Series) Finalized() bool { return s.finalized }

// Append records one batch summary and the batch's raw samples.
func (s *Series) Append(sum pca.BatchSummary, batch events.Batch) error {
	if s.finalized {
		return ErrFinalized
	}
	s.Times = append(s.Times, sum.MedianTimestamp)
	s.XCenters = append(s.XCenters, sum.CentroidX)
	s.YCenters = append(s.YCenters, sum.CentroidY)
	s.Principal1 = append(s.Principal1, sum.Vectors[0])
	s.Principal2 = append(s.Principal2, sum.Vectors[1])
	s.Summaries = append(s.Summaries, sum)

	for _, sample := range batch {
		s.AllTimestamps = append(s.AllTimestamps, sample.Timestamp)
		s.AllX = append(s.AllX, sample.X)
		s.AllY = append(s.AllY, sample.Y)
	}
	return nil
}

// Finalize rebases the per-batch times on the first median timestamp and the
// raw timestamps on the first raw timestamp. It runs once; later calls and
// calls on an empty Series do nothing.
func (s *Series) Finalize() {
	if s.finalized {
		return
	}
	s.finalized = true
	s.TimeOrigin = rebase(s.Times)
	s.RawOrigin = rebase(s.AllTimestamps)
}

// rebase subtracts the first element from every element in place and
// returns it. An empty slice is left untouched.
func rebase[T ~int64 | ~float64](values []T) (origin T) {
	if len(values) == 0 {
		return origin
	}
	origin = values[0]
	for i := range values {
		values[i] -= origin
	}
	return origin
}

// Validate checks the length invariants between the parallel slices.
func (s *Series) Validate() error {
	n := len(s.Times)
	lengths := []struct {
		name string
		n    int
	}{
		{"x centers", len(s.XCenters)},
		{"y centers", len(s.YCenters)},
		{"principal 1", len(s.Principal1)},
		{"principal 2", len(s.Principal2)},
		{"summaries", len(s.Summaries)},
	}
	for _, f := range lengths {
		if f.n != n {
			return fmt.Errorf("series: %s has %d entries, want %d", f.name, f.n, n)
		}
	}
	m := len(s.AllTimestamps)
	if len(s.AllX) != m || len(s.AllY) != m {
		return fmt.Errorf("series: raw lengths differ (t=%d x=%d y=%d)", m, len(s.AllX), len(s.AllY))
	}
	total := 0
	for _, sum := range s.Summaries {
		total += sum.Count
	}
	if total != m {
		return fmt.Errorf("series: summaries cover %d samples, raw has %d", total, m)
	}
	return nil
}

// Seal marks a Series rebuilt from storage as finalized without rebasing
// it again.
func (s *Series) Seal() { s.finalized = true }
