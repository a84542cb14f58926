package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/eventpca/internal/config"
	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/store"
)

func init() {
	monitoring.SetLogger(nil)
}

// setFlag sets a command-line flag for the duration of the test.
func setFlag(t *testing.T, name, value string) {
	t.Helper()
	f := flag.Lookup(name)
	require.NotNil(t, f, "flag %s not defined", name)
	old := f.Value.String()
	require.NoError(t, flag.Set(name, value))
	t.Cleanup(func() { _ = flag.Set(name, old) })
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configPath)
	assert.Equal(t, 0, *batches)
	assert.Equal(t, -1, *pipelined, "negative depth defers to config")
	assert.Equal(t, time.Duration(0), *sliceInterval)
	assert.False(t, *freq)
	assert.Empty(t, *listen)
}

func TestApplyFlags(t *testing.T) {
	setFlag(t, "batches", "7")
	setFlag(t, "slice-count", "300")
	setFlag(t, "pipelined", "0")

	cfg := config.EmptyPipelineConfig()
	applyFlags(cfg)

	assert.Equal(t, 7, cfg.SyntheticConfig().Batches)
	assert.Equal(t, config.SliceCount, cfg.GetSliceMode())
	assert.Equal(t, 300, cfg.GetSliceCount())
	assert.Equal(t, 0, cfg.GetPipelineDepth())
	require.NotNil(t, cfg.PipelineDepth, "explicit 0 overrides a config depth")
}

func TestApplyFlags_SliceInterval(t *testing.T) {
	setFlag(t, "slice-interval", "5ms")
	cfg := config.EmptyPipelineConfig()
	applyFlags(cfg)
	assert.Equal(t, config.SliceTime, cfg.GetSliceMode())
	assert.Equal(t, 5*time.Millisecond, cfg.GetSliceInterval())
}

func TestBuildSource(t *testing.T) {
	cfg := config.EmptyPipelineConfig()
	src, err := buildSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &events.SyntheticSource{}, src)

	mode := config.SliceCount
	cfg.SliceMode = &mode
	src, err = buildSource(cfg)
	require.NoError(t, err)
	slicer, ok := src.(*events.Slicer)
	require.True(t, ok)
	assert.Equal(t, events.SliceByCount, slicer.Mode())

	mode = config.SliceTime
	src, err = buildSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, events.SliceByInterval, src.(*events.Slicer).Mode())
}

func TestRun_WritesOutputs(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "series.png")
	html := filepath.Join(dir, "series.html")
	db := filepath.Join(dir, "runs.db")
	setFlag(t, "png", png)
	setFlag(t, "html", html)
	setFlag(t, "db", db)
	setFlag(t, "label", "cli")
	setFlag(t, "freq", "true")
	setFlag(t, "batches", "6")
	setFlag(t, "batch-size", "250")
	setFlag(t, "slice-count", "500")
	setFlag(t, "pipelined", "2")

	cfg := config.EmptyPipelineConfig()
	applyFlags(cfg)
	require.NoError(t, run(context.Background(), cfg))

	for _, p := range []string{png, html} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "cli", runs[0].Label)
	assert.Equal(t, 3, runs[0].Batches)
	assert.Equal(t, 1500, runs[0].Samples)
}
