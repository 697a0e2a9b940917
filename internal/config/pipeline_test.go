package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if cfg.SampleRatio == nil || *cfg.SampleRatio != 0.1 {
		t.Errorf("Expected SampleRatio 0.1, got %v", cfg.SampleRatio)
	}
	if cfg.DropZeroRange == nil || *cfg.DropZeroRange != true {
		t.Errorf("Expected DropZeroRange true, got %v", cfg.DropZeroRange)
	}
	if cfg.GetXColumn() != "Points_m_XYZ:0" || cfg.GetZColumn() != "Points_m_XYZ:2" {
		t.Errorf("unexpected coordinate columns %q %q", cfg.GetXColumn(), cfg.GetZColumn())
	}
	if cfg.GetHistogramBins() != 30 {
		t.Errorf("GetHistogramBins() = %d, want 30", cfg.GetHistogramBins())
	}
	if cfg.GetSampleSeed() != nil {
		t.Errorf("GetSampleSeed() = %v, want nil", cfg.GetSampleSeed())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := EmptyPipelineConfig()

	if cfg.GetSampleRatio() != DefaultSampleRatio {
		t.Errorf("GetSampleRatio() = %v", cfg.GetSampleRatio())
	}
	if !cfg.GetDropZeroRange() {
		t.Error("GetDropZeroRange() should default to true")
	}
	if cfg.GetColorScheme() != "height" || cfg.GetColorRamp() != "viridis" {
		t.Errorf("scheme/ramp = %q/%q", cfg.GetColorScheme(), cfg.GetColorRamp())
	}
	if cfg.GetIntensityFallback() {
		t.Error("GetIntensityFallback() should default to false")
	}
	if cfg.GetOrigin() != [3]float64{} {
		t.Errorf("GetOrigin() = %v", cfg.GetOrigin())
	}
	if cfg.GetIntensityColumn() != "intensity" || cfg.GetDistanceColumn() != "distance" || cfg.GetTimestampColumn() != "timestamp" {
		t.Error("unexpected optional column defaults")
	}
	if cfg.GetMaxConcurrentLoads() != 4 || cfg.GetMaxRenderPoints() != 50000 {
		t.Errorf("loads/points = %d/%d", cfg.GetMaxConcurrentLoads(), cfg.GetMaxRenderPoints())
	}
	if cfg.GetVoxelLeafSize() != 0 || cfg.GetDataDir() != "" {
		t.Error("voxel and data dir should default to disabled")
	}
}

func TestGetSampleSeed_ReturnsCopy(t *testing.T) {
	seed := int64(42)
	cfg := &PipelineConfig{SampleSeed: &seed}
	got := cfg.GetSampleSeed()
	if got == nil || *got != 42 {
		t.Fatalf("GetSampleSeed() = %v", got)
	}
	*got = 7
	if *cfg.SampleSeed != 42 {
		t.Error("GetSampleSeed leaked a pointer into the config")
	}
}

func TestLoadPipelineConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pipeline.json")

	testJSON := `{
  "columns": {"x": "X", "y": "Y", "z": "Z"},
  "sample_ratio": 0.25,
  "sample_seed": 99,
  "color_scheme": "Intensity",
  "intensity_fallback": true,
  "origin": [1, 2, 3]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadPipelineConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetXColumn() != "X" || cfg.GetIntensityColumn() != "intensity" {
		t.Errorf("columns = %q, %q", cfg.GetXColumn(), cfg.GetIntensityColumn())
	}
	if cfg.GetSampleRatio() != 0.25 {
		t.Errorf("GetSampleRatio() = %v", cfg.GetSampleRatio())
	}
	if s := cfg.GetSampleSeed(); s == nil || *s != 99 {
		t.Errorf("GetSampleSeed() = %v", s)
	}
	if cfg.GetColorScheme() != "intensity" || !cfg.GetIntensityFallback() {
		t.Errorf("scheme = %q fallback = %v", cfg.GetColorScheme(), cfg.GetIntensityFallback())
	}
	if cfg.GetOrigin() != [3]float64{1, 2, 3} {
		t.Errorf("GetOrigin() = %v", cfg.GetOrigin())
	}
	if cfg.GetHistogramBins() != DefaultHistogramBins {
		t.Errorf("omitted histogram_bins should keep default, got %d", cfg.GetHistogramBins())
	}
}

func TestLoadPipelineConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pipeline.yaml")

	testYAML := `columns:
  intensity: reflectivity
sample_ratio: 0.5
drop_zero_range: false
voxel_leaf_size: 0.2
color_ramp: kindlmann
histogram_bins: 12
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadPipelineConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetIntensityColumn() != "reflectivity" || cfg.GetXColumn() != DefaultXColumn {
		t.Errorf("columns = %q, %q", cfg.GetIntensityColumn(), cfg.GetXColumn())
	}
	if cfg.GetSampleRatio() != 0.5 || cfg.GetDropZeroRange() {
		t.Errorf("ratio = %v drop = %v", cfg.GetSampleRatio(), cfg.GetDropZeroRange())
	}
	if cfg.GetVoxelLeafSize() != 0.2 || cfg.GetColorRamp() != "kindlmann" || cfg.GetHistogramBins() != 12 {
		t.Errorf("voxel = %v ramp = %q bins = %d", cfg.GetVoxelLeafSize(), cfg.GetColorRamp(), cfg.GetHistogramBins())
	}
}

func TestLoadPipelineConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantSub string
	}{
		{"missing file", "/nonexistent/path/to/config.json", "failed to stat"},
		{"wrong extension", write("pipeline.toml", "x = 1"), "extension"},
		{"bad json", write("bad.json", `{"sample_ratio": "lots"`), "parse config JSON"},
		{"bad yaml", write("bad.yml", "sample_ratio: [1, 2"), "parse config YAML"},
		{"invalid value", write("ratio.json", `{"sample_ratio": 1.5}`), "invalid configuration"},
		{"too large", write("big.json", `{"data_dir": "`+strings.Repeat("a", maxConfigFileSize)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPipelineConfig(tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *PipelineConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultPipelineConfig()},
		{name: "empty config is valid", cfg: &PipelineConfig{}},
		{name: "ratio one", cfg: &PipelineConfig{SampleRatio: ptrFloat64(1)}},
		{name: "ratio zero", cfg: &PipelineConfig{SampleRatio: ptrFloat64(0)}, wantErr: true},
		{name: "ratio NaN", cfg: &PipelineConfig{SampleRatio: ptrFloat64(math.NaN())}, wantErr: true},
		{name: "origin wrong length", cfg: &PipelineConfig{Origin: []float64{1, 2}}, wantErr: true},
		{name: "origin infinite", cfg: &PipelineConfig{Origin: []float64{0, math.Inf(1), 0}}, wantErr: true},
		{name: "negative voxel", cfg: &PipelineConfig{VoxelLeafSize: ptrFloat64(-0.1)}, wantErr: true},
		{name: "unknown scheme", cfg: &PipelineConfig{ColorScheme: ptrString("rainbow")}, wantErr: true},
		{name: "scheme case-insensitive", cfg: &PipelineConfig{ColorScheme: ptrString("DISTANCE")}},
		{name: "unknown ramp", cfg: &PipelineConfig{ColorRamp: ptrString("jet")}, wantErr: true},
		{name: "zero bins", cfg: &PipelineConfig{HistogramBins: ptrInt(0)}, wantErr: true},
		{name: "negative render cap", cfg: &PipelineConfig{MaxRenderPoints: ptrInt(-1)}, wantErr: true},
		{name: "zero loads", cfg: &PipelineConfig{MaxConcurrentLoads: ptrInt(0)}, wantErr: true},
		{name: "blank x column", cfg: &PipelineConfig{Columns: &ColumnConfig{X: ptrString("  ")}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultPipelineConfig()
	if cfg.GetSampleRatio() != want.GetSampleRatio() ||
		cfg.GetColorScheme() != want.GetColorScheme() ||
		cfg.GetHistogramBins() != want.GetHistogramBins() ||
		cfg.GetXColumn() != want.GetXColumn() ||
		cfg.GetMaxRenderPoints() != want.GetMaxRenderPoints() {
		t.Errorf("defaults file disagrees with DefaultPipelineConfig: %+v", cfg)
	}
}
