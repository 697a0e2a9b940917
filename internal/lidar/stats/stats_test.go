package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
	"github.com/YuiicKi/LidarViz/internal/testutil"
)

func TestAnalyze(t *testing.T) {
	c := testutil.MustCloud(t, cloud.FormatCSV,
		[]cloud.Point{{X: 1, Y: 0, Z: -1}, {X: 2, Y: 0, Z: -1}, {X: 3, Y: 0, Z: -1}, {X: 4, Y: 0, Z: -1}},
		cloud.Attributes{Intensity: []float64{0, 10, 20, 30}})

	got, err := Analyze(c)
	testutil.AssertNoError(t, err)

	want := &Statistics{
		Count:     4,
		X:         Summary{Min: 1, Max: 4, Mean: 2.5, Std: math.Sqrt(1.25)},
		Y:         Summary{},
		Z:         Summary{Min: -1, Max: -1, Mean: -1},
		Intensity: &Summary{Min: 0, Max: 30, Mean: 15, Std: math.Sqrt(125)},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Analyze mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_SinglePoint(t *testing.T) {
	c := testutil.MustCloud(t, cloud.FormatPLY, []cloud.Point{{X: 7, Y: -3, Z: 0.25}},
		cloud.Attributes{Distance: []float64{5}})

	got, err := Analyze(c)
	testutil.AssertNoError(t, err)
	for name, s := range got.Attributes() {
		if s.Std != 0 || math.IsNaN(s.Std) {
			t.Errorf("%s std = %v, want 0", name, s.Std)
		}
		if s.Min != s.Max || s.Mean != s.Min {
			t.Errorf("%s summary = %+v", name, s)
		}
	}
	if got.Distance == nil || got.Intensity != nil || got.Timestamp != nil {
		t.Errorf("attribute presence wrong: %+v", got)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	_, err := Analyze(nil)
	e := testutil.AssertErrorAs[*cloud.EmptyDataError](t, err)
	if e.Stage != "analyze" {
		t.Errorf("Stage = %q", e.Stage)
	}
	empty := testutil.MustCloud(t, cloud.FormatCSV, nil, cloud.Attributes{})
	if _, err := Analyze(empty); err == nil {
		t.Error("expected error for empty cloud")
	}
}

func TestStatistics_Lines(t *testing.T) {
	s := &Statistics{
		Count:    3,
		X:        Summary{Min: -1, Max: 1},
		Y:        Summary{Min: 0, Max: 2.5},
		Z:        Summary{Min: 0.125, Max: 3},
		Distance: &Summary{Min: 1, Max: 9.999},
	}
	want := []string{
		"Points: 3",
		"X range: -1.00 to 1.00 m",
		"Y range: 0.00 to 2.50 m",
		"Z range: 0.12 to 3.00 m",
		"Distance range: 1.00 to 10.00 m",
	}
	if diff := cmp.Diff(want, s.Lines()); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}
}

func TestNewHistogram(t *testing.T) {
	values := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	h, err := NewHistogram("x", values, 5)
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff([]int{2, 2, 2, 2, 3}, h.Counts); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 2, 4, 6, 8, 10}, h.Edges, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Edges mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 3, 5, 7, 9}, h.Centers(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Centers mismatch (-want +got):\n%s", diff)
	}
	if h.Total() != len(values) {
		t.Errorf("Total = %d", h.Total())
	}
	if values[0] != 10 {
		t.Error("NewHistogram sorted its input in place")
	}
}

func TestNewHistogram_Degenerate(t *testing.T) {
	h, err := NewHistogram("z", []float64{2, 2, 2}, 30)
	testutil.AssertNoError(t, err)
	if len(h.Counts) != 1 || h.Counts[0] != 3 {
		t.Errorf("Counts = %v, want [3]", h.Counts)
	}
}

func TestHistograms(t *testing.T) {
	c := testutil.RandomCloud(t, 250, 8, true)
	hists, err := Histograms(c, DefaultBins)
	testutil.AssertNoError(t, err)

	var names []string
	for _, h := range hists {
		names = append(names, h.Name)
		if h.Total() != 250 {
			t.Errorf("%s total = %d", h.Name, h.Total())
		}
		if len(h.Counts) != DefaultBins || len(h.Edges) != DefaultBins+1 {
			t.Errorf("%s has %d bins", h.Name, len(h.Counts))
		}
	}
	if diff := cmp.Diff([]string{"x", "y", "z", "distance", "intensity"}, names); diff != "" {
		t.Errorf("histogram names (-want +got):\n%s", diff)
	}

	if _, err := Histograms(c, 0); err == nil {
		t.Error("expected error for zero bins")
	}
	if _, err := Histograms(nil, 10); err == nil {
		t.Error("expected error for nil cloud")
	}
}

func TestAnalyze_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		pts   []cloud.Point
		attrs cloud.Attributes
		col   string
	}{
		{"nan x", []cloud.Point{{X: 1, Y: 2, Z: 3}, {X: math.NaN()}}, cloud.Attributes{}, "x"},
		{"inf z", []cloud.Point{{X: 1, Y: 2, Z: 3}, {Z: math.Inf(-1)}}, cloud.Attributes{}, "z"},
		{"inf intensity", []cloud.Point{{X: 1}, {X: 2}}, cloud.Attributes{Intensity: []float64{1, math.Inf(1)}}, cloud.AttrIntensity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testutil.MustCloud(t, cloud.FormatCSV, tt.pts, tt.attrs)
			got, err := Analyze(c)
			e := testutil.AssertErrorAs[*cloud.InvalidParameterError](t, err)
			if e.Name != tt.col {
				t.Errorf("error names %q, want %q", e.Name, tt.col)
			}
			if got != nil {
				t.Errorf("Analyze returned statistics alongside an error: %+v", got)
			}
		})
	}
}

func TestHistograms_RejectsNonFinite(t *testing.T) {
	c := testutil.MustCloud(t, cloud.FormatCSV,
		[]cloud.Point{{X: 1, Y: 2, Z: 3}, {X: math.Inf(1), Y: 0, Z: 0}}, cloud.Attributes{})
	_, err := Histograms(c, DefaultBins)
	testutil.AssertErrorAs[*cloud.InvalidParameterError](t, err)

	_, err = NewHistogram("d", []float64{1, math.NaN()}, 10)
	testutil.AssertErrorAs[*cloud.InvalidParameterError](t, err)

	_, err = NewHistogram("d", nil, 10)
	testutil.AssertErrorAs[*cloud.EmptyDataError](t, err)
}
