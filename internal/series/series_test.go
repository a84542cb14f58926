package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/pca"
)

func mustSummarize(t *testing.T, b events.Batch) pca.BatchSummary {
	t.Helper()
	sum, err := pca.Summarize(b)
	require.NoError(t, err)
	return sum
}

func TestSeries_AppendAndFinalize(t *testing.T) {
	s := New()
	b1 := events.Batch{{Timestamp: 1000, X: 0, Y: 0}, {Timestamp: 1010, X: 4, Y: 0}}
	b2 := events.Batch{{Timestamp: 1100, X: 1, Y: 1}, {Timestamp: 1110, X: 1, Y: 5}, {Timestamp: 1120, X: 1, Y: 9}}

	require.NoError(t, s.Append(mustSummarize(t, b1), b1))
	require.NoError(t, s.Append(mustSummarize(t, b2), b2))
	require.NoError(t, s.Validate())

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 5, s.SampleCount())
	assert.Equal(t, []float64{1005, 1110}, s.Times)

	s.Finalize()
	assert.True(t, s.Finalized())
	assert.Equal(t, []float64{0, 105}, s.Times)
	assert.Equal(t, []int64{0, 10, 100, 110, 120}, s.AllTimestamps)
	assert.Equal(t, 1005.0, s.TimeOrigin)
	assert.Equal(t, int64(1000), s.RawOrigin)

	// Summaries are not rebased.
	assert.Equal(t, 1005.0, s.Summaries[0].MedianTimestamp)
}

func TestSeries_RebasesAreIndependent(t *testing.T) {
	s := New()
	b := events.Batch{{Timestamp: 10}, {Timestamp: 20}, {Timestamp: 90}}
	require.NoError(t, s.Append(mustSummarize(t, b), b))
	s.Finalize()

	// The first median (20) and the first raw timestamp (10) differ.
	assert.Equal(t, []float64{0}, s.Times)
	assert.Equal(t, []int64{0, 10, 80}, s.AllTimestamps)
}

func TestSeries_FinalizeOnce(t *testing.T) {
	s := New()
	b := events.Batch{{Timestamp: 50, X: 1}, {Timestamp: 70, X: 2}}
	require.NoError(t, s.Append(mustSummarize(t, b), b))

	s.Finalize()
	s.Finalize()
	assert.Equal(t, []int64{0, 20}, s.AllTimestamps)

	assert.ErrorIs(t, s.Append(mustSummarize(t, b), b), ErrFinalized)
	assert.Equal(t, 1, s.Len())
}

func TestSeries_FinalizeEmpty(t *testing.T) {
	s := New()
	assert.NotPanics(t, s.Finalize)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.SampleCount())
	assert.NoError(t, s.Validate())
}

func TestSeries_ValidateDetectsMismatch(t *testing.T) {
	s := New()
	b := events.Batch{{Timestamp: 1}, {Timestamp: 2}}
	require.NoError(t, s.Append(mustSummarize(t, b), b))

	s.XCenters = append(s.XCenters, 1)
	assert.Error(t, s.Validate())

	s.XCenters = s.XCenters[:1]
	s.AllX = s.AllX[:1]
	assert.Error(t, s.Validate())

	s.AllX = append(s.AllX, 0)
	s.Summaries[0].Count = 3
	assert.Error(t, s.Validate())
}

func TestSeries_ValidateReportsFirstMismatch(t *testing.T) {
	s := New()
	b := events.Batch{{Timestamp: 1}, {Timestamp: 2}}
	require.NoError(t, s.Append(mustSummarize(t, b), b))

	s.YCenters = nil
	s.Principal2 = nil
	s.Summaries = nil
	for range 20 {
		err := s.Validate()
		require.Error(t, err)
		assert.Equal(t, "series: y centers has 0 entries, want 1", err.Error())
	}
}

func TestSeal(t *testing.T) {
	s := &Series{Times: []float64{5}}
	s.Seal()
	s.Finalize()
	assert.Equal(t, []float64{5}, s.Times, "sealed series must not be rebased")
}
