package events

import (
	"math"
	"math/rand/v2"
)

// SyntheticConfig parameterises SyntheticSource. Zero geometry, size and
// duration fields take the values from DefaultSyntheticConfig; a zero
// AngularVelocity or Noise is honoured as given.
type SyntheticConfig struct {
	Width, Height   int     // sensor resolution (pixels)
	BatchSize       int     // samples per batch
	Batches         int     // batches before the stream stops; <= 0 runs forever
	BatchDurationUS int64   // timestamp span covered by one batch
	StartUS         int64   // timestamp of the first sample
	AngularVelocity float64 // bar rotation (rad/s)
	BarLength       float64 // bar length (pixels)
	Noise           float64 // std dev of perpendicular jitter (pixels)
	Seed            uint64
}

// DefaultSyntheticConfig mirrors a DVXplorer-sized sensor watching a ruler
// rotate at a quarter turn per second.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Width:           640,
		Height:          480,
		BatchSize:       2500,
		Batches:         100,
		BatchDurationUS: 10_000,
		AngularVelocity: math.Pi / 2,
		BarLength:       300,
		Noise:           2,
		Seed:            1,
	}
}

func (c SyntheticConfig) withDefaults() SyntheticConfig {
	d := DefaultSyntheticConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchDurationUS <= 0 {
		c.BatchDurationUS = d.BatchDurationUS
	}
	if c.BarLength <= 0 {
		c.BarLength = d.BarLength
	}
	if c.Noise < 0 {
		c.Noise = 0
	}
	return c
}

// SyntheticSource generates events along a bar rotating about the sensor
// centre, standing in for a live camera. Output is deterministic for a
// given seed.
type SyntheticSource struct {
	cfg     SyntheticConfig
	rng     *rand.Rand
	emitted int
}

// NewSyntheticSource creates a generator from cfg.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	cfg = cfg.withDefaults()
	return &SyntheticSource{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

func (s *SyntheticSource) IsRunning() bool {
	return s.cfg.Batches <= 0 || s.emitted < s.cfg.Batches
}

func (s *SyntheticSource) IsBatchAvailable() bool { return s.IsRunning() }

// AngleAt returns the bar orientation (radians) at timestamp ts.
func (s *SyntheticSource) AngleAt(ts int64) float64 {
	return s.cfg.AngularVelocity * float64(ts-s.cfg.StartUS) / 1e6
}

func (s *SyntheticSource) NextBatch() Batch {
	if !s.IsRunning() {
		return nil
	}
	cfg := s.cfg
	cx, cy := float64(cfg.Width)/2, float64(cfg.Height)/2
	start := cfg.StartUS + int64(s.emitted)*cfg.BatchDurationUS
	step := float64(cfg.BatchDurationUS) / float64(cfg.BatchSize)

	batch := make(Batch, cfg.BatchSize)
	for i := range batch {
		ts := start + int64(float64(i)*step)
		theta := s.AngleAt(ts)
		along := (s.rng.Float64() - 0.5) * cfg.BarLength
		across := s.rng.NormFloat64() * cfg.Noise
		x := cx + along*math.Cos(theta) - across*math.Sin(theta)
		y := cy + along*math.Sin(theta) + across*math.Cos(theta)

		pol := s.rng.IntN(2) == 1
		batch[i] = Sample{
			Timestamp: ts,
			X:         clampPixel(x, cfg.Width),
			Y:         clampPixel(y, cfg.Height),
			Polarity:  &pol,
		}
	}
	s.emitted++
	return batch
}

// Emitted reports how many batches have been generated.
func (s *SyntheticSource) Emitted() int { return s.emitted }

// clampPixel rounds v to the pixel grid and keeps it on the sensor.
func clampPixel(v float64, size int) float64 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if limit := float64(size - 1); v > limit {
		return limit
	}
	return v
}
