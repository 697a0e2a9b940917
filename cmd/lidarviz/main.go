// Command lidarviz loads LiDAR point clouds (CSV, PCD or PLY), prepares
// them and writes charts, statistics and conversions.
//
// Usage:
//
//	lidarviz [flags] file...
//
// Every input is validated, sampled and coloured; a statistics report is
// printed for each. Rendered files are written to -out, named after the
// input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/YuiicKi/LidarViz/internal/config"
	"github.com/YuiicKi/LidarViz/internal/fsutil"
	"github.com/YuiicKi/LidarViz/internal/lidar/catalog"
	"github.com/YuiicKi/LidarViz/internal/lidar/colorize"
	"github.com/YuiicKi/LidarViz/internal/lidar/formats"
	"github.com/YuiicKi/LidarViz/internal/lidar/pipeline"
	"github.com/YuiicKi/LidarViz/internal/lidar/render"
	"github.com/YuiicKi/LidarViz/internal/monitoring"
	"github.com/YuiicKi/LidarViz/internal/security"
	"github.com/YuiicKi/LidarViz/internal/version"
)

// errUsage is returned for bad invocations; main exits with status 2.
var errUsage = errors.New("usage error")

type options struct {
	configPath string
	ratio      float64
	seed       string
	scheme     string
	fallback   bool
	view       string
	ramp       string
	voxel      float64
	outDir     string
	html       bool
	png        bool
	histHTML   bool
	histPNG    bool
	exportCSV  bool
	exportPCD  bool
	exportPLY  bool
	ascii      bool
	dbPath     string
	verbose    bool
	version    bool
	files      []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("lidarviz", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Pipeline config file (.json, .yaml); built-in defaults when empty")
	fs.Float64Var(&o.ratio, "ratio", 0, "Sample ratio in (0, 1]; 0 uses the config value")
	fs.StringVar(&o.seed, "seed", "", "Sample seed for reproducible output; empty uses the config value")
	fs.StringVar(&o.scheme, "scheme", "", "Colour scheme: height, intensity or distance")
	fs.BoolVar(&o.fallback, "fallback", false, "Colour by height when the scheme's attribute is missing")
	fs.StringVar(&o.view, "view", "3d", "View: 3d, xy, xz or yz")
	fs.StringVar(&o.ramp, "ramp", "", "Colour ramp: viridis, kindlmann or blackbody")
	fs.Float64Var(&o.voxel, "voxel", 0, "Voxel leaf size in metres; > 0 downsamples before sampling")
	fs.StringVar(&o.outDir, "out", ".", "Directory for rendered and exported files")
	fs.BoolVar(&o.html, "html", false, "Write an interactive HTML chart")
	fs.BoolVar(&o.png, "png", false, "Write a PNG projection (xy, xz or yz view)")
	fs.BoolVar(&o.histHTML, "hist-html", false, "Write an HTML page of histograms")
	fs.BoolVar(&o.histPNG, "hist-png", false, "Write one PNG per histogram")
	fs.BoolVar(&o.exportCSV, "export-csv", false, "Export the prepared cloud as CSV")
	fs.BoolVar(&o.exportPCD, "export-pcd", false, "Export the prepared cloud as PCD")
	fs.BoolVar(&o.exportPLY, "export-ply", false, "Export the prepared cloud as PLY")
	fs.BoolVar(&o.ascii, "ascii", false, "Use ascii encoding for PCD and PLY exports")
	fs.StringVar(&o.dbPath, "db", "", "SQLite catalog to record processed clouds in")
	fs.BoolVar(&o.verbose, "verbose", false, "Log per-stage diagnostics to stderr")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	o.files = fs.Args()
	if !o.version && len(o.files) == 0 {
		fmt.Fprintln(stderr, "lidarviz: no input files")
		fs.Usage()
		return nil, errUsage
	}
	return o, nil
}

// loadConfig reads the config file, or the defaults, and applies flag
// overrides. Validation happens in pipeline.New.
func loadConfig(o *options) (*config.PipelineConfig, error) {
	cfg := config.DefaultPipelineConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadPipelineConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.seed != "" {
		seed, err := strconv.ParseInt(o.seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -seed %q: %w", o.seed, err)
		}
		cfg.SampleSeed = &seed
	}
	if o.scheme != "" {
		cfg.ColorScheme = &o.scheme
	}
	if o.fallback {
		cfg.IntensityFallback = &o.fallback
	}
	if o.ramp != "" {
		cfg.ColorRamp = &o.ramp
	}
	if o.voxel > 0 {
		cfg.VoxelLeafSize = &o.voxel
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	formats.SetLogWriters(stderr, nil)
	render.SetLogWriters(stderr, nil)
	pipeline.SetLogWriters(stderr, nil, nil)
	if o.verbose {
		formats.SetLogWriters(stderr, stderr)
		render.SetLogWriters(stderr, stderr)
		pipeline.SetLogWriters(stderr, stderr, stderr)
	}
	monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	view, err := render.ParseView(o.view)
	if err != nil {
		return err
	}
	ramp, err := colorize.ParseRamp(cfg.GetColorRamp())
	if err != nil {
		return err
	}
	if o.png && view == render.View3D {
		return fmt.Errorf("-png needs a 2D view (-view xy, xz or yz)")
	}

	fsys := fsutil.OSFileSystem{}
	p, err := pipeline.New(cfg, pipeline.WithFileSystem(fsys))
	if err != nil {
		return err
	}

	var store *catalog.Store
	if o.dbPath != "" {
		if store, err = catalog.Open(o.dbPath); err != nil {
			return err
		}
		defer store.Close()
	}

	clouds, err := p.LoadAll(ctx, o.files)
	if err != nil {
		return err
	}

	out := &outputs{opts: o, fs: fsys, view: view, ramp: ramp, maxPoints: cfg.GetMaxRenderPoints()}
	runOpts := pipeline.RunOptions{SampleRatio: o.ratio, Downsample: cfg.GetVoxelLeafSize() > 0}
	for i, c := range clouds {
		res, err := p.Process(c, runOpts)
		if err != nil {
			return fmt.Errorf("%s: %w", o.files[i], err)
		}
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "== %s (%s, %d loaded, %d sampled)\n", o.files[i], c.Format(), c.Len(), res.Sampled.Len())
		if res.Coloring.FellBack {
			fmt.Fprintf(stdout, "Colour: %s unavailable, using %s\n", res.Coloring.Requested, res.Coloring.Applied)
		}
		if err := render.WriteReport(stdout, res.Stats); err != nil {
			return err
		}
		if err := out.write(p, o.files[i], res); err != nil {
			return err
		}
		if store != nil {
			if err := record(store, p, res, o.ratio); err != nil {
				return err
			}
		}
	}
	return nil
}

// record stores the full cloud's statistics and the sample drawn from it.
func record(store *catalog.Store, p *pipeline.Pipeline, res *pipeline.Result, ratio float64) error {
	full, err := p.Analyze(res.Cloud)
	if err != nil {
		return err
	}
	rec, err := store.RecordCloud(res.Cloud, full)
	if err != nil {
		return err
	}
	if ratio == 0 {
		ratio = p.Config().GetSampleRatio()
	}
	_, err = store.RecordSample(rec.ID, ratio, p.Config().GetSampleSeed(), res.Sampled.Len())
	return err
}

type outputs struct {
	opts      *options
	fs        fsutil.FileSystem
	view      render.View
	ramp      colorize.Ramp
	maxPoints int
}

func (w *outputs) path(source, suffix, ext string) string {
	return filepath.Join(w.opts.outDir, security.OutputName(source, suffix, ext))
}

func (w *outputs) create(path string, write func(io.Writer) error) (err error) {
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := w.fs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	monitoring.Logf("wrote %s", path)
	return nil
}

func (w *outputs) write(p *pipeline.Pipeline, source string, res *pipeline.Result) error {
	o := w.opts
	ro := render.Options{
		View:      w.view,
		Title:     filepath.Base(source),
		MaxPoints: w.maxPoints,
		Ramp:      w.ramp,
	}
	if o.html {
		path := w.path(source, "_"+w.view.String(), ".html")
		err := w.create(path, func(f io.Writer) error {
			return render.RenderHTML(f, res.Sampled, res.Coloring.Values, ro)
		})
		if err != nil {
			return err
		}
	}
	if o.png {
		rgb, err := colorize.ToRGB(res.Coloring.Values, w.ramp)
		if err != nil {
			return err
		}
		if err := render.SavePNG(w.fs, w.path(source, "_"+w.view.String(), ".png"), res.Sampled, rgb, ro); err != nil {
			return err
		}
	}
	if o.histHTML {
		err := w.create(w.path(source, "_hist", ".html"), func(f io.Writer) error {
			return render.RenderHistogramsHTML(f, res.Histograms, render.Options{Title: filepath.Base(source) + " statistics"})
		})
		if err != nil {
			return err
		}
	}
	if o.histPNG {
		for _, h := range res.Histograms {
			err := w.create(w.path(source, "_hist_"+h.Name, ".png"), func(f io.Writer) error {
				return render.WriteHistogramPNG(f, h)
			})
			if err != nil {
				return err
			}
		}
	}
	for _, exp := range []struct {
		on  bool
		ext string
	}{
		{o.exportCSV, ".csv"},
		{o.exportPCD, ".pcd"},
		{o.exportPLY, ".ply"},
	} {
		if exp.on {
			if err := p.Export(res.Sampled, w.path(source, "_sampled", exp.ext), o.ascii); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Fatalf("lidarviz: %v", err)
	}
}
