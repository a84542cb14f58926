// Package freqdetect finds pixels that blink at a target frequency, such as
// LED markers seen by an event camera.
package freqdetect

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/eventpca/internal/events"
)

// MinPeriodUS is the shortest inter-event period considered. Shorter gaps
// are hardware noise bursts and neither match nor reset a streak.
const MinPeriodUS = 1000

// ErrInvalidConfig is returned by New for unusable parameters.
var ErrInvalidConfig = errors.New("freqdetect: invalid config")

// Config parameterises a Detector.
type Config struct {
	Width, Height   int     // sensor resolution (pixels)
	TargetHz        float64 // blink frequency to detect
	ToleranceHz     float64 // accepted absolute deviation from TargetHz
	RequiredMatches int     // consecutive matching cycles to confirm a pixel
}

// Pixel is a sensor coordinate.
type Pixel struct {
	X, Y int
}

type pixelState struct {
	last    int64
	seen    bool
	matches int
}

// Detector tracks per-pixel periods of positive-polarity events. Only
// OFF to ON transitions are measured so each period spans a full cycle.
// A Detector is not safe for concurrent use.
type Detector struct {
	cfg    Config
	states []pixelState
}

// New creates a detector for the given configuration.
func New(cfg Config) (*Detector, error) {
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0:
		return nil, fmt.Errorf("%w: resolution %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	case cfg.TargetHz <= 0:
		return nil, fmt.Errorf("%w: target %.3f Hz", ErrInvalidConfig, cfg.TargetHz)
	case cfg.ToleranceHz < 0:
		return nil, fmt.Errorf("%w: tolerance %.3f Hz", ErrInvalidConfig, cfg.ToleranceHz)
	case cfg.RequiredMatches < 1:
		return nil, fmt.Errorf("%w: required matches %d", ErrInvalidConfig, cfg.RequiredMatches)
	}
	return &Detector{cfg: cfg, states: make([]pixelState, cfg.Width*cfg.Height)}, nil
}

// TargetHz returns the frequency this detector looks for.
func (d *Detector) TargetHz() float64 { return d.cfg.TargetHz }

// Accept updates pixel state from a batch. Samples without polarity,
// negative samples and samples outside the sensor are ignored.
func (d *Detector) Accept(batch events.Batch) {
	for _, s := range batch {
		if s.Polarity == nil || !*s.Polarity {
			continue
		}
		idx, ok := d.index(s.X, s.Y)
		if !ok {
			continue
		}
		st := &d.states[idx]
		period := s.Timestamp - st.last
		first := !st.seen
		st.last, st.seen = s.Timestamp, true
		if first || period < MinPeriodUS {
			continue
		}

		hz := 1e6 / float64(period)
		if math.Abs(hz-d.cfg.TargetHz) <= d.cfg.ToleranceHz {
			st.matches++
		} else {
			st.matches = 0
		}
	}
}

// Detected returns pixels whose match streak has reached RequiredMatches,
// in row-major order.
func (d *Detector) Detected() []Pixel {
	var out []Pixel
	for i, st := range d.states {
		if st.matches >= d.cfg.RequiredMatches {
			out = append(out, Pixel{X: i % d.cfg.Width, Y: i / d.cfg.Width})
		}
	}
	return out
}

// Reset clears all pixel state.
func (d *Detector) Reset() {
	clear(d.states)
}

func (d *Detector) index(x, y float64) (int, bool) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	px, py := int(math.Floor(x)), int(math.Floor(y))
	if px < 0 || py < 0 || px >= d.cfg.Width || py >= d.cfg.Height {
		return 0, false
	}
	return py*d.cfg.Width + px, true
}

// Detection is the detected pixel set for one target frequency.
type Detection struct {
	TargetHz float64
	Pixels   []Pixel
}

// Bank runs several detectors over the same stream.
type Bank struct {
	detectors []*Detector
}

// NewBank groups detectors. They are reported in ascending target order.
func NewBank(dets ...*Detector) *Bank {
	ds := append([]*Detector(nil), dets...)
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].cfg.TargetHz < ds[j].cfg.TargetHz })
	return &Bank{detectors: ds}
}

// Len returns the number of detectors in the bank.
func (b *Bank) Len() int { return len(b.detectors) }

// Accept feeds a batch to every detector.
func (b *Bank) Accept(batch events.Batch) {
	for _, d := range b.detectors {
		d.Accept(batch)
	}
}

// Detections returns one entry per detector, including those with no
// confirmed pixels.
func (b *Bank) Detections() []Detection {
	out := make([]Detection, len(b.detectors))
	for i, d := range b.detectors {
		out[i] = Detection{TargetHz: d.cfg.TargetHz, Pixels: d.Detected()}
	}
	return out
}
