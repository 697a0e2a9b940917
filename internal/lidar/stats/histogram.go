package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// DefaultBins is the bin count of the statistics chart.
const DefaultBins = 30

// Histogram is a fixed-width histogram of one column. Edges has one more
// element than Counts; bin i covers [Edges[i], Edges[i+1]), the last bin
// also includes its upper edge.
type Histogram struct {
	Name   string
	Edges  []float64
	Counts []int
}

// Total returns the number of values counted.
func (h Histogram) Total() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// Centers returns the midpoint of every bin.
func (h Histogram) Centers() []float64 {
	out := make([]float64, len(h.Counts))
	for i := range out {
		out[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	return out
}

// Histograms builds histograms of x, y, z and, when present, distance and
// intensity, each with the given number of bins. A column whose values
// are all equal gets a single bin holding every value.
func Histograms(c *cloud.PointCloud, bins int) ([]Histogram, error) {
	if bins < 1 {
		return nil, &cloud.InvalidParameterError{Name: "histogram bins", Value: bins, Reason: "must be at least 1"}
	}
	if c.Len() == 0 {
		return nil, &cloud.EmptyDataError{Stage: "histogram"}
	}

	columns := []struct {
		name string
		vals []float64
	}{
		{"x", c.Axis(cloud.AxisX)},
		{"y", c.Axis(cloud.AxisY)},
		{"z", c.Axis(cloud.AxisZ)},
	}
	for _, name := range []string{cloud.AttrDistance, cloud.AttrIntensity} {
		if vals, ok := c.Attribute(name); ok {
			columns = append(columns, struct {
				name string
				vals []float64
			}{name, vals})
		}
	}

	out := make([]Histogram, 0, len(columns))
	for _, col := range columns {
		h, err := NewHistogram(col.name, col.vals, bins)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// NewHistogram bins values into equal-width bins spanning their range.
// Values must be non-empty and finite.
func NewHistogram(name string, values []float64, bins int) (Histogram, error) {
	if bins < 1 {
		return Histogram{}, &cloud.InvalidParameterError{Name: "histogram bins", Value: bins, Reason: "must be at least 1"}
	}
	if len(values) == 0 {
		return Histogram{}, &cloud.EmptyDataError{Stage: "histogram"}
	}
	if err := checkFinite(name, values); err != nil {
		return Histogram{}, err
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		return Histogram{Name: name, Edges: []float64{lo, hi}, Counts: []int{len(x)}}, nil
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := append([]float64(nil), edges...)
	// stat.Histogram needs the top divider strictly above the maximum.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	weights := stat.Histogram(nil, dividers, x, nil)

	counts := make([]int, bins)
	for i, w := range weights {
		counts[i] = int(w)
	}
	return Histogram{Name: name, Edges: edges, Counts: counts}, nil
}
