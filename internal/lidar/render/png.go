package render

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuiicKi/LidarViz/internal/fsutil"
	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/colorize"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
)

const (
	projectionSize = 8 * vg.Inch
	histWidth      = 8 * vg.Inch
	histHeight     = 4 * vg.Inch
)

var histFill = color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}

// projectionPlot builds a 2D scatter of c on the view's axes, one glyph
// per kept point in the matching rgb colour.
func projectionPlot(c *cloud.PointCloud, rgb []colorize.RGB, o Options) (*plot.Plot, error) {
	n := c.Len()
	if n == 0 {
		return nil, &cloud.EmptyDataError{Stage: "render"}
	}
	if len(rgb) != n {
		return nil, &cloud.InvalidParameterError{Name: "colors", Value: len(rgb), Reason: fmt.Sprintf("need one colour per point (%d)", n)}
	}
	ha, va, ok := o.View.axes()
	if !ok {
		return nil, &cloud.InvalidParameterError{Name: "view", Value: o.View.String(), Reason: "static images support xy, xz and yz only"}
	}

	step := stride(n, o.MaxPoints)
	xys := make(plotter.XYs, 0, n/step+1)
	colors := make([]color.Color, 0, n/step+1)
	for i := 0; i < n; i += step {
		p := c.Point(i)
		xys = append(xys, plotter.XY{X: p.Coord(ha), Y: p.Coord(va)})
		colors = append(colors, rgb[i])
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("build scatter: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colors[i], Radius: vg.Points(1), Shape: draw.CircleGlyph{}}
	}

	p := plot.New()
	p.Title.Text = o.Title
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("Point cloud (%s view)", o.View)
	}
	p.X.Label.Text = ha.String() + " (m)"
	p.Y.Label.Text = va.String() + " (m)"
	p.Add(plotter.NewGrid(), scatter)
	return p, nil
}

// WriteProjectionPNG writes a static 2D projection of c to w as PNG.
// View3D has no static rendering and is rejected.
func WriteProjectionPNG(w io.Writer, c *cloud.PointCloud, rgb []colorize.RGB, o Options) error {
	p, err := projectionPlot(c, rgb, o)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(projectionSize, projectionSize, "png")
	if err != nil {
		return fmt.Errorf("encode projection: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write projection: %w", err)
	}
	return nil
}

// SavePNG writes the projection to path on fsys, creating the parent
// directory when needed.
func SavePNG(fsys fsutil.FileSystem, path string, c *cloud.PointCloud, rgb []colorize.RGB, o Options) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := WriteProjectionPNG(f, c, rgb, o); err != nil {
		return err
	}
	opsf("wrote %s (%d points, %s view)", path, c.Len(), o.View)
	return nil
}

// WriteHistogramPNG writes one histogram to w as PNG.
func WriteHistogramPNG(w io.Writer, h stats.Histogram) error {
	if len(h.Counts) == 0 || len(h.Edges) != len(h.Counts)+1 {
		return &cloud.InvalidParameterError{Name: "histogram", Value: h.Name, Reason: "needs len(Counts)+1 edges"}
	}
	bins := make([]plotter.HistogramBin, len(h.Counts))
	for i, count := range h.Counts {
		bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: float64(count)}
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     h.Edges[1] - h.Edges[0],
		FillColor: histFill,
		LineStyle: plotter.DefaultLineStyle,
	}

	p := plot.New()
	p.Title.Text = h.Name + " distribution"
	p.X.Label.Text = h.Name
	p.Y.Label.Text = "count"
	p.Add(plotter.NewGrid(), hist)

	wt, err := p.WriterTo(histWidth, histHeight, "png")
	if err != nil {
		return fmt.Errorf("encode histogram: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write histogram: %w", err)
	}
	return nil
}
