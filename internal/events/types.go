package events

// Sample is one timestamped 2D activation reported by an event camera.
// Timestamp is in microseconds. Polarity is nil when the source does not
// report it.
type Sample struct {
	Timestamp int64
	X         float64
	Y         float64
	Polarity  *bool
}

// Batch is a group of samples delivered together in one poll.
type Batch []Sample

// Len returns the number of samples in the batch.
func (b Batch) Len() int { return len(b) }

// Xs returns the x coordinates in arrival order.
func (b Batch) Xs() []float64 {
	xs := make([]float64, len(b))
	for i, s := range b {
		xs[i] = s.X
	}
	return xs
}

// Ys returns the y coordinates in arrival order.
func (b Batch) Ys() []float64 {
	ys := make([]float64, len(b))
	for i, s := range b {
		ys[i] = s.Y
	}
	return ys
}

// Timestamps returns the sample timestamps in arrival order.
func (b Batch) Timestamps() []int64 {
	ts := make([]int64, len(b))
	for i, s := range b {
		ts[i] = s.Timestamp
	}
	return ts
}

// Source is the capability set exposed by a device or recording reader.
//
// NextBatch returns nil or an empty batch when there is no data for this
// poll; that is distinct from the end of the stream, which is reported by
// IsRunning returning false.
type Source interface {
	IsRunning() bool
	IsBatchAvailable() bool
	NextBatch() Batch
}

// Positive returns a polarity pointer for true.
func Positive() *bool { v := true; return &v }

// Negative returns a polarity pointer for false.
func Negative() *bool { v := false; return &v }
