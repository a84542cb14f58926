package series

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/pca"
	"github.com/banshee-data/eventpca/internal/timeutil"
)

// Observer is called with each summary right after it is appended.
type Observer func(index int, sum pca.BatchSummary)

// Options configures an Accumulator.
type Options struct {
	// PollInterval is how long to wait when the source has no batch ready.
	// Zero re-polls immediately.
	PollInterval time.Duration

	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock

	// Observer is optional.
	Observer Observer
}

// Stats counts what happened during the last run.
type Stats struct {
	Polls             int
	IdlePolls         int
	EmptyBatches      int
	Batches           int
	Samples           int
	DegenerateBatches int
	ClampedBatches    int
}

// Accumulator drives the ingestion loop: it pulls batches from a source,
// summarises each one and appends the results to a Series.
type Accumulator struct {
	opts  Options
	stats Stats
}

// NewAccumulator creates an Accumulator.
func NewAccumulator(opts Options) *Accumulator {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Accumulator{opts: opts}
}

// Stats returns the counters from the most recent run.
func (a *Accumulator) Stats() Stats { return a.stats }

// Run polls src until it stops running, then finalizes and returns the
// Series. Fetching and summarising happen on the calling goroutine, one
// batch at a time.
//
// Cancelling ctx ends the loop early; the partial Series is still finalized
// and returned together with ctx.Err().
func (a *Accumulator) Run(ctx context.Context, src events.Source) (*Series, error) {
	a.stats = Stats{}
	s := New()
	start := a.opts.Clock.Now()

	var err error
	for src.IsRunning() {
		if err = ctx.Err(); err != nil {
			break
		}
		batch, ok := a.poll(src)
		if !ok {
			continue
		}
		if err = a.ingest(s, batch); err != nil {
			break
		}
	}

	s.Finalize()
	a.logDone(s, start)
	return s, err
}

// RunPipelined behaves like Run but fetches on a separate goroutine that
// stays up to depth batches ahead of summarisation. Batches are summarised
// in arrival order, so the resulting Series equals the one Run produces.
func (a *Accumulator) RunPipelined(ctx context.Context, src events.Source, depth int) (*Series, error) {
	if depth < 1 {
		return nil, fmt.Errorf("pipeline depth must be at least 1, got %d", depth)
	}
	a.stats = Stats{}
	s := New()
	start := a.opts.Clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan events.Batch, depth)

	g.Go(func() error {
		defer close(queue)
		for src.IsRunning() {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch, ok := a.poll(src)
			if !ok {
				continue
			}
			select {
			case queue <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for batch := range queue {
			if err := a.ingest(s, batch); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	s.Finalize()
	a.logDone(s, start)
	return s, err
}

// poll performs one availability check and fetch. ok is false when there
// was nothing to summarise this poll.
func (a *Accumulator) poll(src events.Source) (events.Batch, bool) {
	a.stats.Polls++
	if !src.IsBatchAvailable() {
		a.stats.IdlePolls++
		if a.opts.PollInterval > 0 {
			a.opts.Clock.Sleep(a.opts.PollInterval)
		}
		return nil, false
	}
	batch := src.NextBatch()
	if len(batch) == 0 {
		a.stats.EmptyBatches++
		return nil, false
	}
	return batch, true
}

func (a *Accumulator) ingest(s *Series, batch events.Batch) error {
	sum, err := pca.Summarize(batch)
	if err != nil {
		return fmt.Errorf("summarize batch %d: %w", s.Len(), err)
	}
	if err := s.Append(sum, batch); err != nil {
		return err
	}

	a.stats.Batches++
	a.stats.Samples += len(batch)
	if sum.Degenerate {
		a.stats.DegenerateBatches++
	}
	if sum.Clamped {
		a.stats.ClampedBatches++
	}

	idx := s.Len() - 1
	monitoring.Debugf("batch %d: n=%d t=%.0f centroid=(%.2f, %.2f) λ=(%.3f, %.3f) heading=%.3f degenerate=%v",
		idx, sum.Count, sum.MedianTimestamp, sum.CentroidX, sum.CentroidY,
		sum.Values[0], sum.Values[1], sum.Heading(), sum.Degenerate)

	if a.opts.Observer != nil {
		a.opts.Observer(idx, sum)
	}
	return nil
}

func (a *Accumulator) logDone(s *Series, start time.Time) {
	monitoring.Logf("accumulated %d batches (%d samples, %d degenerate, %d empty discarded) in %v",
		s.Len(), s.SampleCount(), a.stats.DegenerateBatches, a.stats.EmptyBatches,
		a.opts.Clock.Since(start))
}
