// Package render draws finalized series as PNG plots and interactive HTML
// charts, and streams batch summaries to websocket clients.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/eventpca/internal/pca"
	"github.com/banshee-data/eventpca/internal/series"
)

// ErrEmptySeries is returned when there is nothing to draw.
var ErrEmptySeries = errors.New("render: series has no batches")

var (
	colorX       = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorY       = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorHeading = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Orientation folds the principal axis angle into [0, 180) degrees. The
// eigenvector sign is arbitrary so v and -v give the same value.
func Orientation(v pca.Vec2) float64 {
	deg := math.Atan2(v.Y, v.X) * 180 / math.Pi
	deg = math.Mod(deg, 180)
	if deg < 0 {
		deg += 180
	}
	return deg
}

// WritePNG draws the series with EncodePNG and saves the image to path,
// creating parent directories as needed.
func WritePNG(s *series.Series, path string) error {
	if s.Len() == 0 {
		return ErrEmptySeries
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plot dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if err := EncodePNG(s, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodePNG draws centroid position and principal axis orientation against
// batch time, stacked in two panels, and writes the PNG to w.
func EncodePNG(s *series.Series, w io.Writer) error {
	if s.Len() == 0 {
		return ErrEmptySeries
	}

	centroid := plot.New()
	centroid.Title.Text = fmt.Sprintf("Batch centroid (%d batches, %d samples)", s.Len(), s.SampleCount())
	centroid.X.Label.Text = "Time (s)"
	centroid.Y.Label.Text = "Position (px)"

	heading := plot.New()
	heading.Title.Text = "Principal axis orientation"
	heading.X.Label.Text = "Time (s)"
	heading.Y.Label.Text = "Angle (deg)"
	heading.Y.Min, heading.Y.Max = 0, 180

	xPts := make(plotter.XYs, s.Len())
	yPts := make(plotter.XYs, s.Len())
	hPts := make(plotter.XYs, 0, s.Len())
	for i, t := range s.Times {
		sec := t / 1e6
		xPts[i] = plotter.XY{X: sec, Y: s.XCenters[i]}
		yPts[i] = plotter.XY{X: sec, Y: s.YCenters[i]}
		// Fallback bases carry no orientation.
		if i < len(s.Summaries) && s.Summaries[i].Degenerate {
			continue
		}
		hPts = append(hPts, plotter.XY{X: sec, Y: Orientation(s.Principal1[i])})
	}

	xLine, err := plotter.NewLine(xPts)
	if err != nil {
		return fmt.Errorf("centroid x line: %w", err)
	}
	xLine.Color = colorX
	xLine.Width = vg.Points(1)
	centroid.Add(xLine)
	centroid.Legend.Add("x", xLine)

	yLine, err := plotter.NewLine(yPts)
	if err != nil {
		return fmt.Errorf("centroid y line: %w", err)
	}
	yLine.Color = colorY
	yLine.Width = vg.Points(1)
	centroid.Add(yLine)
	centroid.Legend.Add("y", yLine)

	centroid.Legend.Top = true
	centroid.Legend.Left = false
	centroid.Legend.XOffs = -10
	centroid.Legend.YOffs = -10

	if len(hPts) > 0 {
		sc, err := plotter.NewScatter(hPts)
		if err != nil {
			return fmt.Errorf("heading scatter: %w", err)
		}
		sc.GlyphStyle.Color = colorHeading
		sc.GlyphStyle.Radius = vg.Points(1.5)
		heading.Add(sc)
	}
	heading.Add(plotter.NewGrid())

	const width, height = 14 * vg.Inch, 10 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter, PadY: 4 * vg.Millimeter,
		PadTop: 2 * vg.Millimeter, PadBottom: 2 * vg.Millimeter, PadLeft: 2 * vg.Millimeter, PadRight: 2 * vg.Millimeter}
	plots := [][]*plot.Plot{{centroid}, {heading}}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
