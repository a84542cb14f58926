package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/freqdetect"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024

// Slice modes accepted by slice_mode.
const (
	SliceNone  = "none"
	SliceCount = "count"
	SliceTime  = "time"
)

// PipelineConfig holds the ingestion, rendering and storage parameters.
// Every field is optional; the Get* methods supply defaults for unset ones,
// so partial files are safe. The same keys are accepted from JSON and YAML.
type PipelineConfig struct {
	// Accumulator
	PollInterval  *string `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"` // duration string like "1ms"
	PipelineDepth *int    `json:"pipeline_depth,omitempty" yaml:"pipeline_depth,omitempty"`

	// Re-batching
	SliceMode     *string `json:"slice_mode,omitempty" yaml:"slice_mode,omitempty"`
	SliceCount    *int    `json:"slice_count,omitempty" yaml:"slice_count,omitempty"`
	SliceInterval *string `json:"slice_interval,omitempty" yaml:"slice_interval,omitempty"` // duration string like "10ms"

	// Rendering
	PlotStride   *int     `json:"plot_stride,omitempty" yaml:"plot_stride,omitempty"`
	VectorLength *float64 `json:"vector_length,omitempty" yaml:"vector_length,omitempty"`

	// Storage
	DBPath *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// Synthetic source
	SyntheticWidth           *int     `json:"synthetic_width,omitempty" yaml:"synthetic_width,omitempty"`
	SyntheticHeight          *int     `json:"synthetic_height,omitempty" yaml:"synthetic_height,omitempty"`
	SyntheticBatchSize       *int     `json:"synthetic_batch_size,omitempty" yaml:"synthetic_batch_size,omitempty"`
	SyntheticBatches         *int     `json:"synthetic_batches,omitempty" yaml:"synthetic_batches,omitempty"`
	SyntheticBatchDuration   *string  `json:"synthetic_batch_duration,omitempty" yaml:"synthetic_batch_duration,omitempty"`
	SyntheticAngularVelocity *float64 `json:"synthetic_angular_velocity,omitempty" yaml:"synthetic_angular_velocity,omitempty"`
	SyntheticBarLength       *float64 `json:"synthetic_bar_length,omitempty" yaml:"synthetic_bar_length,omitempty"`
	SyntheticNoise           *float64 `json:"synthetic_noise,omitempty" yaml:"synthetic_noise,omitempty"`
	SyntheticSeed            *uint64  `json:"synthetic_seed,omitempty" yaml:"synthetic_seed,omitempty"`

	// Blink frequency detection
	FreqTargets         []FreqTarget `json:"freq_targets,omitempty" yaml:"freq_targets,omitempty"`
	FreqRequiredMatches *int         `json:"freq_required_matches,omitempty" yaml:"freq_required_matches,omitempty"`
}

// FreqTarget is one blink frequency to detect.
type FreqTarget struct {
	Hz        float64 `json:"hz" yaml:"hz"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field populated with
// its default, matching config/pipeline.defaults.json.
func DefaultPipelineConfig() *PipelineConfig {
	e := EmptyPipelineConfig()
	syn := events.DefaultSyntheticConfig()
	return &PipelineConfig{
		PollInterval:             ptrString(e.GetPollInterval().String()),
		PipelineDepth:            ptrInt(e.GetPipelineDepth()),
		SliceMode:                ptrString(e.GetSliceMode()),
		SliceCount:               ptrInt(e.GetSliceCount()),
		SliceInterval:            ptrString(e.GetSliceInterval().String()),
		PlotStride:               ptrInt(e.GetPlotStride()),
		VectorLength:             ptrFloat64(e.GetVectorLength()),
		DBPath:                   ptrString(e.GetDBPath()),
		SyntheticWidth:           ptrInt(syn.Width),
		SyntheticHeight:          ptrInt(syn.Height),
		SyntheticBatchSize:       ptrInt(syn.BatchSize),
		SyntheticBatches:         ptrInt(syn.Batches),
		SyntheticBatchDuration:   ptrString((time.Duration(syn.BatchDurationUS) * time.Microsecond).String()),
		SyntheticAngularVelocity: ptrFloat64(syn.AngularVelocity),
		SyntheticBarLength:       ptrFloat64(syn.BarLength),
		SyntheticNoise:           ptrFloat64(syn.Noise),
		SyntheticSeed:            ptrUint64(syn.Seed),
		FreqTargets:              e.GetFreqTargets(),
		FreqRequiredMatches:      ptrInt(e.GetFreqRequiredMatches()),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a .json, .yaml or .yml file.
// The file must be under 1MB. Fields omitted from the file stay unset.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	durations := []struct {
		name string
		v    *string
		min  time.Duration
	}{
		{"poll_interval", c.PollInterval, 0},
		// Sample timestamps are in microseconds.
		{"slice_interval", c.SliceInterval, time.Microsecond},
		{"synthetic_batch_duration", c.SyntheticBatchDuration, time.Microsecond},
	}
	for _, f := range durations {
		if f.v == nil || *f.v == "" {
			continue
		}
		d, err := time.ParseDuration(*f.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", f.name, *f.v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", f.name, *f.v)
		}
		if d < f.min {
			return fmt.Errorf("%s must be at least %s, got %s", f.name, f.min, *f.v)
		}
	}

	if c.SliceMode != nil {
		switch *c.SliceMode {
		case SliceNone, SliceCount, SliceTime:
		default:
			return fmt.Errorf("slice_mode must be one of none, count, time; got %q", *c.SliceMode)
		}
	}

	ints := []struct {
		name string
		v    *int
	}{
		{"pipeline_depth", c.PipelineDepth},
		{"slice_count", c.SliceCount},
		{"plot_stride", c.PlotStride},
		{"synthetic_batch_size", c.SyntheticBatchSize},
	}
	for _, f := range ints {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, *f.v)
		}
	}

	if c.SyntheticNoise != nil && *c.SyntheticNoise < 0 {
		return fmt.Errorf("synthetic_noise must be non-negative, got %f", *c.SyntheticNoise)
	}

	for i, ft := range c.FreqTargets {
		if ft.Hz <= 0 {
			return fmt.Errorf("freq_targets[%d].hz must be positive, got %f", i, ft.Hz)
		}
		if ft.Tolerance < 0 {
			return fmt.Errorf("freq_targets[%d].tolerance must be non-negative, got %f", i, ft.Tolerance)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetPollInterval returns the poll_interval value or the default.
func (c *PipelineConfig) GetPollInterval() time.Duration {
	return durationOr(c.PollInterval, time.Millisecond)
}

// GetPipelineDepth returns the pipeline_depth value or the default (0:
// fetch and summarise on one goroutine).
func (c *PipelineConfig) GetPipelineDepth() int {
	if c.PipelineDepth == nil {
		return 0
	}
	return *c.PipelineDepth
}

// GetSliceMode returns the slice_mode value or the default.
func (c *PipelineConfig) GetSliceMode() string {
	if c.SliceMode == nil || *c.SliceMode == "" {
		return SliceNone
	}
	return *c.SliceMode
}

// GetSliceCount returns the slice_count value or the default.
func (c *PipelineConfig) GetSliceCount() int {
	if c.SliceCount == nil || *c.SliceCount == 0 {
		return 2500
	}
	return *c.SliceCount
}

// GetSliceInterval returns the slice_interval value or the default.
func (c *PipelineConfig) GetSliceInterval() time.Duration {
	return durationOr(c.SliceInterval, 10*time.Millisecond)
}

// GetPlotStride returns the plot_stride value or the default.
func (c *PipelineConfig) GetPlotStride() int {
	if c.PlotStride == nil || *c.PlotStride == 0 {
		return 1000
	}
	return *c.PlotStride
}

// GetVectorLength returns the vector_length value or the default.
func (c *PipelineConfig) GetVectorLength() float64 {
	if c.VectorLength == nil {
		return 50
	}
	return *c.VectorLength
}

// GetDBPath returns the db_path value or the default.
func (c *PipelineConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "eventpca.db"
	}
	return *c.DBPath
}

// GetFreqTargets returns freq_targets or the default 100/200/300/400 Hz bank
// with a 10% tolerance.
func (c *PipelineConfig) GetFreqTargets() []FreqTarget {
	if len(c.FreqTargets) > 0 {
		return c.FreqTargets
	}
	return []FreqTarget{
		{Hz: 100, Tolerance: 10},
		{Hz: 200, Tolerance: 20},
		{Hz: 300, Tolerance: 30},
		{Hz: 400, Tolerance: 40},
	}
}

// GetFreqRequiredMatches returns freq_required_matches or the default.
func (c *PipelineConfig) GetFreqRequiredMatches() int {
	if c.FreqRequiredMatches == nil || *c.FreqRequiredMatches <= 0 {
		return 3
	}
	return *c.FreqRequiredMatches
}

// SyntheticConfig builds the generator configuration. Unset fields fall
// back to events.DefaultSyntheticConfig.
func (c *PipelineConfig) SyntheticConfig() events.SyntheticConfig {
	cfg := events.DefaultSyntheticConfig()
	if c.SyntheticWidth != nil {
		cfg.Width = *c.SyntheticWidth
	}
	if c.SyntheticHeight != nil {
		cfg.Height = *c.SyntheticHeight
	}
	if c.SyntheticBatchSize != nil {
		cfg.BatchSize = *c.SyntheticBatchSize
	}
	if c.SyntheticBatches != nil {
		cfg.Batches = *c.SyntheticBatches
	}
	if d := durationOr(c.SyntheticBatchDuration, 0); d > 0 {
		cfg.BatchDurationUS = d.Microseconds()
	}
	if c.SyntheticAngularVelocity != nil {
		cfg.AngularVelocity = *c.SyntheticAngularVelocity
	}
	if c.SyntheticBarLength != nil {
		cfg.BarLength = *c.SyntheticBarLength
	}
	if c.SyntheticNoise != nil {
		cfg.Noise = *c.SyntheticNoise
	}
	if c.SyntheticSeed != nil {
		cfg.Seed = *c.SyntheticSeed
	}
	return cfg
}

// DetectorBank builds the blink frequency detectors for a sensor of the
// given resolution.
func (c *PipelineConfig) DetectorBank(width, height int) (*freqdetect.Bank, error) {
	targets := c.GetFreqTargets()
	dets := make([]*freqdetect.Detector, 0, len(targets))
	for _, t := range targets {
		d, err := freqdetect.New(freqdetect.Config{
			Width:           width,
			Height:          height,
			TargetHz:        t.Hz,
			ToleranceHz:     t.Tolerance,
			RequiredMatches: c.GetFreqRequiredMatches(),
		})
		if err != nil {
			return nil, fmt.Errorf("detector %.0fHz: %w", t.Hz, err)
		}
		dets = append(dets, d)
	}
	return freqdetect.NewBank(dets...), nil
}
