package events

import "fmt"

// SliceMode selects how a Slicer cuts the upstream stream.
type SliceMode int

const (
	// SliceByCount emits a batch every N samples.
	SliceByCount SliceMode = iota
	// SliceByInterval emits a batch for every fixed span of sample time.
	SliceByInterval
)

func (m SliceMode) String() string {
	switch m {
	case SliceByCount:
		return "count"
	case SliceByInterval:
		return "time"
	default:
		return fmt.Sprintf("SliceMode(%d)", int(m))
	}
}

// Slicer re-batches an upstream Source into fixed-size or fixed-duration
// batches and is itself a Source. Samples are never reordered or dropped;
// a trailing partial slice is flushed once upstream stops running.
type Slicer struct {
	upstream Source
	mode     SliceMode
	count    int
	interval int64

	pending     Batch
	ready       []Batch
	windowStart int64
	windowSet   bool
}

// NewCountSlicer emits a batch every n samples.
func NewCountSlicer(upstream Source, n int) (*Slicer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("slice count must be positive, got %d", n)
	}
	return &Slicer{upstream: upstream, mode: SliceByCount, count: n}, nil
}

// NewIntervalSlicer emits a batch for every intervalUS microseconds of
// sample time. Intervals with no samples produce no batch.
func NewIntervalSlicer(upstream Source, intervalUS int64) (*Slicer, error) {
	if intervalUS <= 0 {
		return nil, fmt.Errorf("slice interval must be positive, got %d", intervalUS)
	}
	return &Slicer{upstream: upstream, mode: SliceByInterval, interval: intervalUS}, nil
}

// Mode reports the slicing mode.
func (s *Slicer) Mode() SliceMode { return s.mode }

func (s *Slicer) IsRunning() bool {
	return s.upstream.IsRunning() || len(s.ready) > 0 || len(s.pending) > 0
}

// IsBatchAvailable pulls at most one upstream batch per call and reports
// whether a complete slice is ready.
func (s *Slicer) IsBatchAvailable() bool {
	if len(s.ready) > 0 {
		return true
	}
	if s.upstream.IsRunning() {
		if s.upstream.IsBatchAvailable() {
			s.accept(s.upstream.NextBatch())
		}
	} else if len(s.pending) > 0 {
		s.flush()
	}
	return len(s.ready) > 0
}

func (s *Slicer) NextBatch() Batch {
	if len(s.ready) == 0 {
		return nil
	}
	b := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	return b
}

func (s *Slicer) accept(b Batch) {
	for _, sample := range b {
		switch s.mode {
		case SliceByCount:
			s.pending = append(s.pending, sample)
			if len(s.pending) == s.count {
				s.flush()
			}
		case SliceByInterval:
			if !s.windowSet {
				s.windowStart = sample.Timestamp
				s.windowSet = true
			}
			if sample.Timestamp >= s.windowStart+s.interval {
				s.flush()
				skipped := (sample.Timestamp - s.windowStart) / s.interval
				s.windowStart += skipped * s.interval
			}
			s.pending = append(s.pending, sample)
		}
	}
}

func (s *Slicer) flush() {
	if len(s.pending) == 0 {
		return
	}
	s.ready = append(s.ready, s.pending)
	s.pending = nil
}
