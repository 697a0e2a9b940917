package colorize

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// Scheme selects the scalar each point is coloured by.
type Scheme int

const (
	Height    Scheme = iota // z coordinate
	Intensity               // return intensity
	Distance                // range from the sensor origin
)

var schemeNames = map[Scheme]string{
	Height:    "height",
	Intensity: "intensity",
	Distance:  "distance",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// ParseScheme resolves a scheme name, case-insensitively.
func ParseScheme(s string) (Scheme, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for scheme, n := range schemeNames {
		if n == name {
			return scheme, nil
		}
	}
	return Height, &cloud.InvalidParameterError{Name: "colour scheme", Value: s, Reason: "must be height, intensity or distance"}
}

// Colorize returns one value in [0, 1] per point of c, the min-max
// normalisation of the attribute scheme selects. A cloud whose attribute
// is constant maps every point to 0.5.
func Colorize(c *cloud.PointCloud, scheme Scheme) ([]float64, error) {
	if c.Len() == 0 {
		return nil, &cloud.EmptyDataError{Stage: "colorize"}
	}

	var raw []float64
	switch scheme {
	case Height:
		raw = c.Axis(cloud.AxisZ)
	case Intensity, Distance:
		attr := cloud.AttrIntensity
		if scheme == Distance {
			attr = cloud.AttrDistance
		}
		vals, ok := c.Attribute(attr)
		if !ok {
			return nil, &cloud.MissingAttributeError{Attribute: attr, Scheme: scheme.String()}
		}
		raw = vals
	default:
		return nil, &cloud.InvalidParameterError{Name: "colour scheme", Value: int(scheme), Reason: "unknown"}
	}

	for i, v := range raw {
		if !cloud.IsFinite(v) {
			return nil, &cloud.InvalidParameterError{
				Name:   scheme.String(),
				Value:  v,
				Reason: fmt.Sprintf("point %d is not finite; validate the cloud first", i),
			}
		}
	}
	return Normalize(raw), nil
}

// Normalize rescales values linearly onto [0, 1]. When every value is the
// same the result is 0.5 throughout. values is not modified.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	for i, v := range values {
		if span == 0 {
			out[i] = 0.5
			continue
		}
		n := (v - lo) / span
		switch {
		case n < 0:
			n = 0
		case n > 1:
			n = 1
		}
		out[i] = n
	}
	return out
}
