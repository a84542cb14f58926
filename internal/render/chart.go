package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/eventpca/internal/series"
)

// ChartOptions controls RenderHTML.
type ChartOptions struct {
	// Stride keeps every Stride-th raw sample. Defaults to 1000.
	Stride int
	// VectorLength scales the axis tips drawn from each centroid. Defaults to 50.
	VectorLength float64
	// Title overrides the chart title.
	Title string
	// AssetsHost serves the echarts scripts from a local prefix instead of
	// the public CDN.
	AssetsHost string
}

func (o ChartOptions) withDefaults() ChartOptions {
	if o.Stride <= 0 {
		o.Stride = 1000
	}
	if o.VectorLength == 0 {
		o.VectorLength = 50
	}
	if o.Title == "" {
		o.Title = "PCA Event Stream"
	}
	return o
}

// RenderHTML writes an interactive 3D chart of the series with time on the
// first axis: a stride-sampled cloud of raw samples, the batch centroids,
// and the tips of both principal axes drawn from each centroid.
func RenderHTML(s *series.Series, w io.Writer, o ChartOptions) error {
	if s.Len() == 0 {
		return ErrEmptySeries
	}
	o = o.withDefaults()

	raw := make([]opts.Chart3DData, 0, s.SampleCount()/o.Stride+1)
	for i := 0; i < s.SampleCount(); i += o.Stride {
		raw = append(raw, opts.Chart3DData{Value: []interface{}{float64(s.AllTimestamps[i]) / 1e6, s.AllX[i], s.AllY[i]}})
	}

	centers := make([]opts.Chart3DData, s.Len())
	major := make([]opts.Chart3DData, s.Len())
	minor := make([]opts.Chart3DData, s.Len())
	for i, t := range s.Times {
		sec := t / 1e6
		cx, cy := s.XCenters[i], s.YCenters[i]
		p1 := s.Principal1[i].Scale(o.VectorLength)
		p2 := s.Principal2[i].Scale(o.VectorLength)
		centers[i] = opts.Chart3DData{Value: []interface{}{sec, cx, cy}}
		major[i] = opts.Chart3DData{Value: []interface{}{sec, cx + p1.X, cy + p1.Y}}
		minor[i] = opts.Chart3DData{Value: []interface{}{sec, cx + p2.X, cy + p2.Y}}
	}

	chart := charts.NewScatter3D()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Theme: "dark", Width: "1200px", Height: "900px", AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: fmt.Sprintf("batches=%d samples=%d stride=%d", s.Len(), s.SampleCount(), o.Stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "Time (s)"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "X (px)"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Y (px)"}),
	)
	chart.AddSeries("samples", raw, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#1f77b4"}))
	chart.AddSeries("centroid", centers, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#eeeeee"}))
	chart.AddSeries("principal", major, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}))
	chart.AddSeries("minor", minor, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2ca02c"}))

	if err := chart.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
