package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/colorize"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
)

// Options configures a rendered chart.
type Options struct {
	View      View
	Title     string
	Subtitle  string // e.g. the joined stats.Statistics.Lines
	MaxPoints int    // stride-downsample above this many points; 0 keeps all
	Ramp      colorize.Ramp
	// AssetsHost overrides where the echarts scripts are loaded from.
	AssetsHost string
}

func (o Options) initialization(pageTitle, width, height string) opts.Initialization {
	cfg := opts.Initialization{PageTitle: pageTitle, Theme: "dark", Width: width, Height: height}
	if o.AssetsHost != "" {
		cfg.AssetsHost = o.AssetsHost
	}
	return cfg
}

// rampStops returns the control colours of a ramp for a chart visual map.
func rampStops(r colorize.Ramp) ([]string, error) {
	if r == "" || r == colorize.Viridis {
		return colorize.ViridisStops, nil
	}
	samples := make([]float64, 10)
	for i := range samples {
		samples[i] = float64(i) / float64(len(samples)-1)
	}
	rgb, err := colorize.ToRGB(samples, r)
	if err != nil {
		return nil, err
	}
	stops := make([]string, len(rgb))
	for i, c := range rgb {
		stops[i] = c.Hex()
	}
	return stops, nil
}

// RenderHTML writes an interactive chart of c to w. colors holds one
// normalised colour value per point (see colorize.Colorize) and is mapped
// through the ramp by the chart's visual map.
func RenderHTML(w io.Writer, c *cloud.PointCloud, colors []float64, o Options) error {
	n := c.Len()
	if n == 0 {
		return &cloud.EmptyDataError{Stage: "render"}
	}
	if len(colors) != n {
		return &cloud.InvalidParameterError{Name: "colors", Value: len(colors), Reason: fmt.Sprintf("need one value per point (%d)", n)}
	}
	stops, err := rampStops(o.Ramp)
	if err != nil {
		return err
	}
	step := stride(n, o.MaxPoints)
	if step > 1 {
		diagf("downsampling %d points with stride %d for %s view", n, step, o.View)
	}
	title := o.Title
	if title == "" {
		title = "Point Cloud"
	}
	subtitle := o.Subtitle
	if subtitle == "" {
		subtitle = fmt.Sprintf("view=%s points=%d stride=%d", o.View, (n+step-1)/step, step)
	}
	visualMap := func(dim string) opts.VisualMap {
		return opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  dim,
			InRange:    &opts.VisualMapInRange{Color: stops},
		}
	}

	if o.View == View3D {
		data := make([]opts.Chart3DData, 0, n/step+1)
		for i := 0; i < n; i += step {
			p := c.Point(i)
			data = append(data, opts.Chart3DData{Value: []interface{}{p.X, p.Y, p.Z, colors[i]}})
		}
		scatter := charts.NewScatter3D()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(o.initialization(title, "1000px", "800px")),
			charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X (m)", Show: opts.Bool(true)}),
			charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y (m)", Show: opts.Bool(true)}),
			charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z (m)", Show: opts.Bool(true)}),
			charts.WithGrid3DOpts(opts.Grid3D{Show: opts.Bool(true)}),
			charts.WithVisualMapOpts(visualMap("3")),
		)
		scatter.AddSeries("points", data)
		if err := scatter.Render(w); err != nil {
			return fmt.Errorf("render 3d chart: %w", err)
		}
		return nil
	}

	ha, va, ok := o.View.axes()
	if !ok {
		return &cloud.InvalidParameterError{Name: "view", Value: o.View, Reason: "unknown"}
	}
	data := make([]opts.ScatterData, 0, n/step+1)
	hMin, hMax := math.Inf(1), math.Inf(-1)
	vMin, vMax := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i += step {
		p := c.Point(i)
		h, v := p.Coord(ha), p.Coord(va)
		hMin, hMax = math.Min(hMin, h), math.Max(hMax, h)
		vMin, vMax = math.Min(vMin, v), math.Max(vMax, v)
		data = append(data, opts.ScatterData{Value: []interface{}{h, v, colors[i]}})
	}
	// Add a small padding so points at the edges are visible
	hPad, vPad := pad(hMin, hMax), pad(vMin, vMax)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(o.initialization(title, "900px", "900px")),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: hMin - hPad, Max: hMax + hPad, Name: ha.String() + " (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: vMin - vPad, Max: vMax + vPad, Name: va.String() + " (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(visualMap("2")),
	)
	scatter.AddSeries("points", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render %s chart: %w", o.View, err)
	}
	return nil
}

func pad(lo, hi float64) float64 {
	if p := (hi - lo) * 0.05; p > 0 {
		return p
	}
	return 1
}

// RenderHistogramsHTML writes one bar chart per histogram on a single
// page.
func RenderHistogramsHTML(w io.Writer, hists []stats.Histogram, o Options) error {
	if len(hists) == 0 {
		return &cloud.EmptyDataError{Stage: "render histograms"}
	}
	page := components.NewPage()
	title := o.Title
	if title == "" {
		title = "Point Cloud Statistics"
	}
	page.SetPageTitle(title)
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}

	for _, h := range hists {
		labels := make([]string, len(h.Counts))
		bars := make([]opts.BarData, len(h.Counts))
		for i, center := range h.Centers() {
			labels[i] = fmt.Sprintf("%.2f", center)
			bars[i] = opts.BarData{Value: h.Counts[i]}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithInitializationOpts(o.initialization(title, "900px", "360px")),
			charts.WithTitleOpts(opts.Title{Title: h.Name + " distribution", Subtitle: fmt.Sprintf("%d values, %d bins", h.Total(), len(h.Counts))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		)
		bar.SetXAxis(labels).AddSeries(h.Name, bars)
		page.AddCharts(bar)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render histogram page: %w", err)
	}
	return nil
}
