package render

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/eventpca/internal/events"
	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/pca"
	"github.com/banshee-data/eventpca/internal/series"
)

func init() {
	monitoring.SetLogger(nil)
}

// syntheticSeries summarises n batches from the rotating-bar generator.
func syntheticSeries(t *testing.T, n int) *series.Series {
	t.Helper()
	cfg := events.DefaultSyntheticConfig()
	cfg.Batches = n
	cfg.BatchSize = 400
	src := events.NewSyntheticSource(cfg)

	s := series.New()
	for src.IsRunning() {
		b := src.NextBatch()
		sum, err := pca.Summarize(b)
		require.NoError(t, err)
		require.NoError(t, s.Append(sum, b))
	}
	s.Finalize()
	return s
}

func TestOrientation(t *testing.T) {
	r := 1 / math.Sqrt2
	tests := []struct {
		v    pca.Vec2
		want float64
	}{
		{pca.Vec2{X: 1, Y: 0}, 0},
		{pca.Vec2{X: -1, Y: 0}, 0},
		{pca.Vec2{X: 0, Y: 1}, 90},
		{pca.Vec2{X: 0, Y: -1}, 90},
		{pca.Vec2{X: r, Y: r}, 45},
		{pca.Vec2{X: -r, Y: -r}, 45},
		{pca.Vec2{X: -r, Y: r}, 135},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Orientation(tt.v), 1e-9, "v=%+v", tt.v)
	}
}

func TestWritePNG(t *testing.T) {
	s := syntheticSeries(t, 20)
	path := filepath.Join(t.TempDir(), "plots", "series.png")

	require.NoError(t, WritePNG(s, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")), "not a PNG file")
}

func TestWritePNG_Empty(t *testing.T) {
	err := WritePNG(series.New(), filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestRenderHTML(t *testing.T) {
	s := syntheticSeries(t, 5)
	var buf bytes.Buffer

	require.NoError(t, RenderHTML(s, &buf, ChartOptions{Stride: 100, Title: "Ruler sweep"}))

	html := buf.String()
	assert.Contains(t, html, "Ruler sweep")
	assert.Contains(t, html, "principal")
	assert.Contains(t, html, "minor")
	assert.Contains(t, html, "stride=100")
}

func TestRenderHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderHTML(series.New(), &buf, ChartOptions{}), ErrEmptySeries)
	assert.Zero(t, buf.Len())
}

func TestChartOptions_Defaults(t *testing.T) {
	o := ChartOptions{}.withDefaults()
	assert.Equal(t, 1000, o.Stride)
	assert.Equal(t, 50.0, o.VectorLength)
	assert.NotEmpty(t, o.Title)

	o = ChartOptions{Stride: 7, VectorLength: -10}.withDefaults()
	assert.Equal(t, 7, o.Stride)
	assert.Equal(t, -10.0, o.VectorLength)
}
