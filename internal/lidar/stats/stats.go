package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// Summary describes one numeric column. Std is the population standard
// deviation, so a single value has Std 0.
type Summary struct {
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

// Range returns Max - Min.
func (s Summary) Range() float64 { return s.Max - s.Min }

// Statistics summarises a cloud. Attribute summaries are nil when the
// cloud does not carry the attribute.
type Statistics struct {
	Count     int
	X, Y, Z   Summary
	Intensity *Summary
	Distance  *Summary
	Timestamp *Summary
}

// Analyze summarises every coordinate axis and present attribute of c.
func Analyze(c *cloud.PointCloud) (*Statistics, error) {
	if c.Len() == 0 {
		return nil, &cloud.EmptyDataError{Stage: "analyze"}
	}
	s := &Statistics{Count: c.Len()}
	for _, a := range []struct {
		name string
		dst  *Summary
		vals []float64
	}{
		{"x", &s.X, c.Axis(cloud.AxisX)},
		{"y", &s.Y, c.Axis(cloud.AxisY)},
		{"z", &s.Z, c.Axis(cloud.AxisZ)},
	} {
		if err := checkFinite(a.name, a.vals); err != nil {
			return nil, err
		}
		*a.dst = summarize(a.vals)
	}
	for _, a := range []struct {
		name string
		dst  **Summary
	}{
		{cloud.AttrIntensity, &s.Intensity},
		{cloud.AttrDistance, &s.Distance},
		{cloud.AttrTimestamp, &s.Timestamp},
	} {
		if vals, ok := c.Attribute(a.name); ok {
			if err := checkFinite(a.name, vals); err != nil {
				return nil, err
			}
			sum := summarize(vals)
			*a.dst = &sum
		}
	}
	return s, nil
}

// checkFinite rejects NaN and infinite values so they never reach a summary.
func checkFinite(name string, vals []float64) error {
	for i, v := range vals {
		if !cloud.IsFinite(v) {
			return &cloud.InvalidParameterError{
				Name:   name,
				Value:  v,
				Reason: fmt.Sprintf("point %d is not finite; validate the cloud first", i),
			}
		}
	}
	return nil
}

func summarize(x []float64) Summary {
	mean, std := stat.PopMeanStdDev(x, nil)
	return Summary{Min: floats.Min(x), Max: floats.Max(x), Mean: mean, Std: std}
}

// Attributes returns the summaries keyed by column name, axes included.
func (s *Statistics) Attributes() map[string]Summary {
	out := map[string]Summary{"x": s.X, "y": s.Y, "z": s.Z}
	if s.Intensity != nil {
		out[cloud.AttrIntensity] = *s.Intensity
	}
	if s.Distance != nil {
		out[cloud.AttrDistance] = *s.Distance
	}
	if s.Timestamp != nil {
		out[cloud.AttrTimestamp] = *s.Timestamp
	}
	return out
}

// Lines returns the info-panel text: the point count followed by the
// range of each axis and of intensity and distance when present.
func (s *Statistics) Lines() []string {
	lines := []string{
		fmt.Sprintf("Points: %d", s.Count),
		fmt.Sprintf("X range: %.2f to %.2f m", s.X.Min, s.X.Max),
		fmt.Sprintf("Y range: %.2f to %.2f m", s.Y.Min, s.Y.Max),
		fmt.Sprintf("Z range: %.2f to %.2f m", s.Z.Min, s.Z.Max),
	}
	if s.Distance != nil {
		lines = append(lines, fmt.Sprintf("Distance range: %.2f to %.2f m", s.Distance.Min, s.Distance.Max))
	}
	if s.Intensity != nil {
		lines = append(lines, fmt.Sprintf("Intensity range: %.2f to %.2f", s.Intensity.Min, s.Intensity.Max))
	}
	return lines
}
