package events

// SliceSource replays an in-memory list of batches, one per poll. A nil
// entry is delivered as "no data this poll". The source stops running once
// every entry has been delivered.
//
// SliceSource is not safe for concurrent use; sources are polled from a
// single goroutine.
type SliceSource struct {
	batches []Batch
	next    int
}

// NewSliceSource creates a source that yields the given batches in order.
func NewSliceSource(batches ...Batch) *SliceSource {
	return &SliceSource{batches: batches}
}

func (s *SliceSource) IsRunning() bool { return s.next < len(s.batches) }

func (s *SliceSource) IsBatchAvailable() bool { return s.next < len(s.batches) }

func (s *SliceSource) NextBatch() Batch {
	if s.next >= len(s.batches) {
		return nil
	}
	b := s.batches[s.next]
	s.next++
	return b
}

// Remaining reports how many entries have not been delivered yet.
func (s *SliceSource) Remaining() int { return len(s.batches) - s.next }
