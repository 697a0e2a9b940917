// Package config loads the point-cloud pipeline configuration.
//
// Every field is a pointer so a partial file leaves unspecified values at
// their defaults; the Get* accessors supply those defaults.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// Default values used when a field is omitted.
const (
	DefaultXColumn         = "Points_m_XYZ:0"
	DefaultYColumn         = "Points_m_XYZ:1"
	DefaultZColumn         = "Points_m_XYZ:2"
	DefaultIntensityColumn = "intensity"
	DefaultDistanceColumn  = "distance"
	DefaultTimestampColumn = "timestamp"

	DefaultSampleRatio        = 0.1
	DefaultColorScheme        = "height"
	DefaultColorRamp          = "viridis"
	DefaultHistogramBins      = 30
	DefaultMaxRenderPoints    = 50000
	DefaultMaxConcurrentLoads = 4
)

var (
	validSchemes = map[string]bool{"height": true, "intensity": true, "distance": true}
	validRamps   = map[string]bool{"viridis": true, "kindlmann": true, "blackbody": true}
)

// ColumnConfig names the CSV header columns holding each field.
type ColumnConfig struct {
	X         *string `json:"x,omitempty" yaml:"x,omitempty"`
	Y         *string `json:"y,omitempty" yaml:"y,omitempty"`
	Z         *string `json:"z,omitempty" yaml:"z,omitempty"`
	Intensity *string `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Distance  *string `json:"distance,omitempty" yaml:"distance,omitempty"`
	Timestamp *string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// PipelineConfig is the root configuration for loading and preparing
// point clouds.
type PipelineConfig struct {
	// Ingestion
	Columns       *ColumnConfig `json:"columns,omitempty" yaml:"columns,omitempty"`
	DataDir       *string       `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	DropZeroRange *bool         `json:"drop_zero_range,omitempty" yaml:"drop_zero_range,omitempty"`
	Origin        []float64     `json:"origin,omitempty" yaml:"origin,omitempty"` // sensor origin x,y,z in metres

	// Sampling
	SampleRatio   *float64 `json:"sample_ratio,omitempty" yaml:"sample_ratio,omitempty"`
	SampleSeed    *int64   `json:"sample_seed,omitempty" yaml:"sample_seed,omitempty"`
	VoxelLeafSize *float64 `json:"voxel_leaf_size,omitempty" yaml:"voxel_leaf_size,omitempty"`

	// Colouring
	ColorScheme       *string `json:"color_scheme,omitempty" yaml:"color_scheme,omitempty"`
	IntensityFallback *bool   `json:"intensity_fallback,omitempty" yaml:"intensity_fallback,omitempty"`
	ColorRamp         *string `json:"color_ramp,omitempty" yaml:"color_ramp,omitempty"`

	// Output
	HistogramBins   *int `json:"histogram_bins,omitempty" yaml:"histogram_bins,omitempty"`
	MaxRenderPoints *int `json:"max_render_points,omitempty" yaml:"max_render_points,omitempty"`

	MaxConcurrentLoads *int `json:"max_concurrent_loads,omitempty" yaml:"max_concurrent_loads,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with every field unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field populated with
// its default value.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Columns: &ColumnConfig{
			X:         ptrString(DefaultXColumn),
			Y:         ptrString(DefaultYColumn),
			Z:         ptrString(DefaultZColumn),
			Intensity: ptrString(DefaultIntensityColumn),
			Distance:  ptrString(DefaultDistanceColumn),
			Timestamp: ptrString(DefaultTimestampColumn),
		},
		DataDir:            ptrString(""),
		DropZeroRange:      ptrBool(true),
		Origin:             []float64{0, 0, 0},
		SampleRatio:        ptrFloat64(DefaultSampleRatio),
		VoxelLeafSize:      ptrFloat64(0),
		ColorScheme:        ptrString(DefaultColorScheme),
		IntensityFallback:  ptrBool(false),
		ColorRamp:          ptrString(DefaultColorRamp),
		HistogramBins:      ptrInt(DefaultHistogramBins),
		MaxRenderPoints:    ptrInt(DefaultMaxRenderPoints),
		MaxConcurrentLoads: ptrInt(DefaultMaxConcurrentLoads),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a .json, .yaml or .yml
// file no larger than 1MB. Omitted fields keep their defaults.
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
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *PipelineConfig) Validate() error {
	if c.SampleRatio != nil {
		r := *c.SampleRatio
		if math.IsNaN(r) || r <= 0 || r > 1 {
			return fmt.Errorf("sample_ratio must be in (0, 1], got %v", r)
		}
	}
	if c.Origin != nil && len(c.Origin) != 3 {
		return fmt.Errorf("origin must have 3 components, got %d", len(c.Origin))
	}
	for _, v := range c.Origin {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("origin must be finite, got %v", c.Origin)
		}
	}
	if c.VoxelLeafSize != nil && *c.VoxelLeafSize < 0 {
		return fmt.Errorf("voxel_leaf_size must be non-negative, got %v", *c.VoxelLeafSize)
	}
	if c.ColorScheme != nil && !validSchemes[strings.ToLower(*c.ColorScheme)] {
		return fmt.Errorf("unknown color_scheme %q", *c.ColorScheme)
	}
	if c.ColorRamp != nil && !validRamps[strings.ToLower(*c.ColorRamp)] {
		return fmt.Errorf("unknown color_ramp %q", *c.ColorRamp)
	}
	if c.HistogramBins != nil && *c.HistogramBins < 1 {
		return fmt.Errorf("histogram_bins must be at least 1, got %d", *c.HistogramBins)
	}
	if c.MaxRenderPoints != nil && *c.MaxRenderPoints < 0 {
		return fmt.Errorf("max_render_points must be non-negative, got %d", *c.MaxRenderPoints)
	}
	if c.MaxConcurrentLoads != nil && *c.MaxConcurrentLoads < 1 {
		return fmt.Errorf("max_concurrent_loads must be at least 1, got %d", *c.MaxConcurrentLoads)
	}
	if c.Columns != nil {
		for name, col := range map[string]*string{"x": c.Columns.X, "y": c.Columns.Y, "z": c.Columns.Z} {
			if col != nil && strings.TrimSpace(*col) == "" {
				return fmt.Errorf("columns.%s must not be empty", name)
			}
		}
	}
	return nil
}

// GetXColumn returns the CSV column holding x, or the default.
func (c *PipelineConfig) GetXColumn() string {
	if c.Columns == nil || c.Columns.X == nil {
		return DefaultXColumn
	}
	return *c.Columns.X
}

// GetYColumn returns the CSV column holding y, or the default.
func (c *PipelineConfig) GetYColumn() string {
	if c.Columns == nil || c.Columns.Y == nil {
		return DefaultYColumn
	}
	return *c.Columns.Y
}

// GetZColumn returns the CSV column holding z, or the default.
func (c *PipelineConfig) GetZColumn() string {
	if c.Columns == nil || c.Columns.Z == nil {
		return DefaultZColumn
	}
	return *c.Columns.Z
}

// GetIntensityColumn returns the CSV intensity column, or the default.
func (c *PipelineConfig) GetIntensityColumn() string {
	if c.Columns == nil || c.Columns.Intensity == nil {
		return DefaultIntensityColumn
	}
	return *c.Columns.Intensity
}

// GetDistanceColumn returns the CSV distance column, or the default.
func (c *PipelineConfig) GetDistanceColumn() string {
	if c.Columns == nil || c.Columns.Distance == nil {
		return DefaultDistanceColumn
	}
	return *c.Columns.Distance
}

// GetTimestampColumn returns the CSV timestamp column, or the default.
func (c *PipelineConfig) GetTimestampColumn() string {
	if c.Columns == nil || c.Columns.Timestamp == nil {
		return DefaultTimestampColumn
	}
	return *c.Columns.Timestamp
}

// GetDataDir returns the directory inputs must live in; empty means any.
func (c *PipelineConfig) GetDataDir() string {
	if c.DataDir == nil {
		return ""
	}
	return *c.DataDir
}

// GetDropZeroRange reports whether zero-distance points are discarded.
func (c *PipelineConfig) GetDropZeroRange() bool {
	if c.DropZeroRange == nil {
		return true
	}
	return *c.DropZeroRange
}

// GetOrigin returns the sensor origin used to derive distance.
func (c *PipelineConfig) GetOrigin() [3]float64 {
	var o [3]float64
	if len(c.Origin) == 3 {
		copy(o[:], c.Origin)
	}
	return o
}

// GetSampleRatio returns the sample_ratio value or the default.
func (c *PipelineConfig) GetSampleRatio() float64 {
	if c.SampleRatio == nil {
		return DefaultSampleRatio
	}
	return *c.SampleRatio
}

// GetSampleSeed returns the configured seed, or nil for a random one.
func (c *PipelineConfig) GetSampleSeed() *int64 {
	if c.SampleSeed == nil {
		return nil
	}
	seed := *c.SampleSeed
	return &seed
}

// GetVoxelLeafSize returns the voxel edge in metres; 0 disables it.
func (c *PipelineConfig) GetVoxelLeafSize() float64 {
	if c.VoxelLeafSize == nil {
		return 0
	}
	return *c.VoxelLeafSize
}

// GetColorScheme returns the color_scheme value or the default.
func (c *PipelineConfig) GetColorScheme() string {
	if c.ColorScheme == nil {
		return DefaultColorScheme
	}
	return strings.ToLower(*c.ColorScheme)
}

// GetIntensityFallback reports whether intensity colouring may fall back
// to height when a cloud has no intensity.
func (c *PipelineConfig) GetIntensityFallback() bool {
	if c.IntensityFallback == nil {
		return false
	}
	return *c.IntensityFallback
}

// GetColorRamp returns the color_ramp value or the default.
func (c *PipelineConfig) GetColorRamp() string {
	if c.ColorRamp == nil {
		return DefaultColorRamp
	}
	return strings.ToLower(*c.ColorRamp)
}

// GetHistogramBins returns the histogram_bins value or the default.
func (c *PipelineConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return DefaultHistogramBins
	}
	return *c.HistogramBins
}

// GetMaxRenderPoints returns the render cap; 0 means unlimited.
func (c *PipelineConfig) GetMaxRenderPoints() int {
	if c.MaxRenderPoints == nil {
		return DefaultMaxRenderPoints
	}
	return *c.MaxRenderPoints
}

// GetMaxConcurrentLoads returns the max_concurrent_loads value or the default.
func (c *PipelineConfig) GetMaxConcurrentLoads() int {
	if c.MaxConcurrentLoads == nil {
		return DefaultMaxConcurrentLoads
	}
	return *c.MaxConcurrentLoads
}
