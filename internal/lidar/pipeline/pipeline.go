package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YuiicKi/LidarViz/internal/config"
	"github.com/YuiicKi/LidarViz/internal/fsutil"
	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/lidar/colorize"
	"github.com/YuiicKi/LidarViz/internal/lidar/formats"
	"github.com/YuiicKi/LidarViz/internal/lidar/preprocess"
	"github.com/YuiicKi/LidarViz/internal/lidar/sampling"
	"github.com/YuiicKi/LidarViz/internal/lidar/stats"
	"github.com/YuiicKi/LidarViz/internal/monitoring"
	"github.com/YuiicKi/LidarViz/internal/security"
)

var logf = monitoring.Prefixed("pipeline")

// Pipeline loads and prepares point clouds according to a configuration.
// It holds no per-cloud state and is safe for concurrent use.
type Pipeline struct {
	cfg      *config.PipelineConfig
	fs       fsutil.FileSystem
	readOpts formats.Options
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFileSystem replaces the host filesystem used for inputs and exports.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(p *Pipeline) { p.fs = fs }
}

// New returns a pipeline for cfg. A nil cfg uses the built-in defaults.
func New(cfg *config.PipelineConfig, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	p := &Pipeline{
		cfg: cfg,
		fs:  fsutil.OSFileSystem{},
		readOpts: formats.Options{Columns: formats.ColumnMap{
			X:         cfg.GetXColumn(),
			Y:         cfg.GetYColumn(),
			Z:         cfg.GetZColumn(),
			Intensity: cfg.GetIntensityColumn(),
			Distance:  cfg.GetDistanceColumn(),
			Timestamp: cfg.GetTimestampColumn(),
		}},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() *config.PipelineConfig { return p.cfg }

// Load reads the file at path, detecting its format, and returns the
// validated cloud with distance derived when the file carried none.
func (p *Pipeline) Load(path string) (*cloud.PointCloud, error) {
	if dir := p.cfg.GetDataDir(); dir != "" {
		if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	f, err := p.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := formats.Read(f, path, p.readOpts)
	if err != nil {
		return nil, err
	}
	tracef("read %s: %d points in %v", path, raw.Len(), time.Since(start))
	return p.prepare(raw)
}

// LoadReader decodes r as the given format and prepares it like Load.
// source names the data in errors and provenance.
func (p *Pipeline) LoadReader(r io.Reader, format cloud.Format, source string) (*cloud.PointCloud, error) {
	reader, err := formats.ReaderFor(format, p.readOpts)
	if err != nil {
		return nil, err
	}
	raw, err := reader.Read(r, source)
	if err != nil {
		return nil, err
	}
	return p.prepare(raw)
}

func (p *Pipeline) prepare(raw *cloud.PointCloud) (*cloud.PointCloud, error) {
	start := time.Now()
	valid, report, err := preprocess.Validate(raw, preprocess.ValidateOptions{DropZeroRange: p.cfg.GetDropZeroRange()})
	if err != nil {
		return nil, err
	}
	if report.Dropped() > 0 {
		diagf("%s: dropped non-finite=%d invalid-attribute=%d zero-range=%d",
			raw.Provenance().Source, report.NonFinite, report.InvalidAttribute, report.ZeroRange)
	}
	enriched, err := preprocess.Enrich(valid, preprocess.EnrichOptions{Origin: p.cfg.GetOrigin()})
	if err != nil {
		return nil, err
	}
	prov := enriched.Provenance()
	logf("loaded %s (%s): %d points, %d records skipped, %d points dropped",
		prov.Source, enriched.Format(), enriched.Len(), prov.SkippedRecords, prov.DroppedPoints)
	tracef("prepared %s in %v", prov.Source, time.Since(start))
	return enriched, nil
}

// Sample draws round(ratio*n) points (at least one) without replacement.
// A nil seed gives a non-reproducible sample.
func (p *Pipeline) Sample(c *cloud.PointCloud, ratio float64, seed *int64) (*cloud.PointCloud, error) {
	return sampling.Sample(c, ratio, seed)
}

// Downsample applies the configured voxel grid. A zero leaf size returns
// c unchanged.
func (p *Pipeline) Downsample(c *cloud.PointCloud) (*cloud.PointCloud, error) {
	out, err := sampling.VoxelDownsample(c, p.cfg.GetVoxelLeafSize())
	if err != nil {
		return nil, err
	}
	if out.Len() != c.Len() {
		diagf("voxel downsample %s: %d -> %d points", c.Provenance().Source, c.Len(), out.Len())
	}
	return out, nil
}

// Colorize returns one colour value in [0, 1] per point. A scheme whose
// attribute is missing fails with *cloud.MissingAttributeError.
func (p *Pipeline) Colorize(c *cloud.PointCloud, scheme colorize.Scheme) ([]float64, error) {
	return colorize.Colorize(c, scheme)
}

// Coloring is the outcome of ColorizeWithFallback.
type Coloring struct {
	Values    []float64
	Requested colorize.Scheme
	Applied   colorize.Scheme
	// FellBack is set when Requested was unavailable and height
	// colouring was applied instead.
	FellBack bool
}

// ColorizeWithFallback colours c with scheme. When the scheme's attribute
// is missing and the configuration allows intensity fallback, height
// colouring is applied and reported through FellBack.
func (p *Pipeline) ColorizeWithFallback(c *cloud.PointCloud, scheme colorize.Scheme) (Coloring, error) {
	res := Coloring{Requested: scheme, Applied: scheme}
	values, err := colorize.Colorize(c, scheme)
	var missing *cloud.MissingAttributeError
	if errors.As(err, &missing) && p.cfg.GetIntensityFallback() {
		opsf("%s has no %s; colouring by height instead", c.Provenance().Source, missing.Attribute)
		res.Applied = colorize.Height
		res.FellBack = true
		values, err = colorize.Colorize(c, colorize.Height)
	}
	if err != nil {
		return Coloring{}, err
	}
	res.Values = values
	return res, nil
}

// Analyze summarises c.
func (p *Pipeline) Analyze(c *cloud.PointCloud) (*stats.Statistics, error) {
	return stats.Analyze(c)
}

// Histograms bins every axis and present attribute of c with the
// configured bin count.
func (p *Pipeline) Histograms(c *cloud.PointCloud) ([]stats.Histogram, error) {
	return stats.Histograms(c, p.cfg.GetHistogramBins())
}

// RunOptions overrides configuration values for a single Run. Zero
// values fall back to the configuration.
type RunOptions struct {
	SampleRatio float64
	Seed        *int64
	Scheme      string
	// Downsample applies the configured voxel grid before sampling.
	Downsample bool
}

// Result bundles everything prepared for one file.
type Result struct {
	Cloud      *cloud.PointCloud // validated and enriched input
	Sampled    *cloud.PointCloud // the points that are coloured and summarised
	Coloring   Coloring
	Stats      *stats.Statistics
	Histograms []stats.Histogram
}

// Run loads path and prepares it with Process.
func (p *Pipeline) Run(path string, opts RunOptions) (*Result, error) {
	if _, err := p.scheme(opts); err != nil {
		return nil, err
	}
	c, err := p.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Process(c, opts)
}

// Process prepares a loaded cloud for display: optional voxel downsample,
// random sample, colour values, statistics and histograms of the sample.
func (p *Pipeline) Process(c *cloud.PointCloud, opts RunOptions) (*Result, error) {
	scheme, err := p.scheme(opts)
	if err != nil {
		return nil, err
	}
	ratio := opts.SampleRatio
	if ratio == 0 {
		ratio = p.cfg.GetSampleRatio()
	}
	seed := opts.Seed
	if seed == nil {
		seed = p.cfg.GetSampleSeed()
	}

	res := &Result{Cloud: c}
	working := c
	if opts.Downsample {
		if working, err = p.Downsample(working); err != nil {
			return nil, err
		}
	}
	if res.Sampled, err = p.Sample(working, ratio, seed); err != nil {
		return nil, err
	}
	if res.Coloring, err = p.ColorizeWithFallback(res.Sampled, scheme); err != nil {
		return nil, err
	}
	if res.Stats, err = p.Analyze(res.Sampled); err != nil {
		return nil, err
	}
	if res.Histograms, err = p.Histograms(res.Sampled); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) scheme(opts RunOptions) (colorize.Scheme, error) {
	name := opts.Scheme
	if name == "" {
		name = p.cfg.GetColorScheme()
	}
	return colorize.ParseScheme(name)
}

// LoadAll loads independent files concurrently, at most the configured
// number at a time. Results are in the order of paths. The first failure
// cancels the remaining loads and is returned.
func (p *Pipeline) LoadAll(ctx context.Context, paths []string) ([]*cloud.PointCloud, error) {
	out := make([]*cloud.PointCloud, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.GetMaxConcurrentLoads())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := p.Load(path)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Export writes c to path in the format named by its extension (.csv,
// .pcd or .ply). PCD and PLY are written in their binary encodings
// unless ascii is set.
func (p *Pipeline) Export(c *cloud.PointCloud, path string, ascii bool) (err error) {
	if c.Len() == 0 {
		return &cloud.EmptyDataError{Stage: "export"}
	}
	var write func(io.Writer) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		write = func(w io.Writer) error { return formats.WriteCSV(w, c, p.readOpts.Columns) }
	case ".pcd":
		enc := formats.PCDBinary
		if ascii {
			enc = formats.PCDASCII
		}
		write = func(w io.Writer) error { return formats.WritePCD(w, c, enc) }
	case ".ply":
		enc := formats.PLYBinaryLittle
		if ascii {
			enc = formats.PLYASCII
		}
		write = func(w io.Writer) error { return formats.WritePLY(w, c, enc) }
	default:
		return &cloud.InvalidParameterError{Name: "export path", Value: path, Reason: "extension must be .csv, .pcd or .ply"}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := p.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logf("exported %d points to %s", c.Len(), path)
	return nil
}
