package cloud

import (
	"fmt"
	"math"
	"strings"
)

// Format identifies the file format a cloud was read from.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatPCD
	FormatPLY
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "CSV"
	case FormatPCD:
		return "PCD"
	case FormatPLY:
		return "PLY"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name or file extension ("csv", ".PCD") to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "pcd":
		return FormatPCD, nil
	case "ply":
		return FormatPLY, nil
	}
	return FormatUnknown, &InvalidParameterError{Name: "format", Value: s, Reason: "expected csv, pcd or ply"}
}

// Axis selects one coordinate column.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Attribute names used in errors, statistics and storage.
const (
	AttrIntensity = "intensity"
	AttrDistance  = "distance"
	AttrTimestamp = "timestamp"
)

// Point is a cartesian coordinate in metres.
type Point struct {
	X, Y, Z float64
}

// Coord returns the coordinate on the given axis.
func (p Point) Coord(a Axis) float64 {
	switch a {
	case AxisY:
		return p.Y
	case AxisZ:
		return p.Z
	default:
		return p.X
	}
}

// Finite reports whether every coordinate is a finite number.
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// Norm returns the Euclidean distance from o to p.
func (p Point) Norm(o Point) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Attributes holds the optional per-point columns. A nil slice means the
// attribute is absent.
type Attributes struct {
	Intensity []float64
	Distance  []float64
	Timestamp []float64
}

// Provenance records where a cloud came from and how many records were
// discarded on the way in.
type Provenance struct {
	Source         string
	SkippedRecords int // malformed records skipped by the reader
	DroppedPoints  int // points removed by validation
}

// PointCloud is an immutable point-cloud snapshot.
type PointCloud struct {
	points     []Point
	intensity  []float64
	distance   []float64
	timestamp  []float64
	format     Format
	provenance Provenance
}

// New builds a cloud from copies of points and attrs. Every present
// attribute must have exactly len(points) values.
func New(format Format, points []Point, attrs Attributes) (*PointCloud, error) {
	n := len(points)
	for _, col := range []struct {
		name string
		vals []float64
	}{
		{AttrIntensity, attrs.Intensity},
		{AttrDistance, attrs.Distance},
		{AttrTimestamp, attrs.Timestamp},
	} {
		if col.vals != nil && len(col.vals) != n {
			return nil, &InvalidParameterError{
				Name:   col.name,
				Value:  len(col.vals),
				Reason: fmt.Sprintf("attribute length must equal point count %d", n),
			}
		}
	}
	return &PointCloud{
		points:    append([]Point(nil), points...),
		intensity: cloneFloats(attrs.Intensity),
		distance:  cloneFloats(attrs.Distance),
		timestamp: cloneFloats(attrs.Timestamp),
		format:    format,
	}, nil
}

// Len returns the number of points. A nil cloud has zero points.
func (c *PointCloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// Format returns the source format tag.
func (c *PointCloud) Format() Format { return c.format }

// Provenance returns the load provenance.
func (c *PointCloud) Provenance() Provenance { return c.provenance }

// Point returns the i-th point.
func (c *PointCloud) Point(i int) Point { return c.points[i] }

// Points returns a copy of the coordinates.
func (c *PointCloud) Points() []Point { return append([]Point(nil), c.points...) }

// Axis returns a copy of one coordinate column.
func (c *PointCloud) Axis(a Axis) []float64 {
	out := make([]float64, len(c.points))
	for i, p := range c.points {
		out[i] = p.Coord(a)
	}
	return out
}

// Intensity returns a copy of the intensity column and whether it is present.
func (c *PointCloud) Intensity() ([]float64, bool) {
	return cloneFloats(c.intensity), c.intensity != nil
}

// Distance returns a copy of the distance column and whether it is present.
func (c *PointCloud) Distance() ([]float64, bool) {
	return cloneFloats(c.distance), c.distance != nil
}

// Timestamp returns a copy of the timestamp column and whether it is present.
func (c *PointCloud) Timestamp() ([]float64, bool) {
	return cloneFloats(c.timestamp), c.timestamp != nil
}

// Attribute returns a copy of the named attribute column.
func (c *PointCloud) Attribute(name string) ([]float64, bool) {
	switch name {
	case AttrIntensity:
		return c.Intensity()
	case AttrDistance:
		return c.Distance()
	case AttrTimestamp:
		return c.Timestamp()
	}
	return nil, false
}

func (c *PointCloud) HasIntensity() bool { return c.intensity != nil }
func (c *PointCloud) HasDistance() bool  { return c.distance != nil }
func (c *PointCloud) HasTimestamp() bool { return c.timestamp != nil }

// Attributes returns copies of all optional columns.
func (c *PointCloud) Attributes() Attributes {
	return Attributes{
		Intensity: cloneFloats(c.intensity),
		Distance:  cloneFloats(c.distance),
		Timestamp: cloneFloats(c.timestamp),
	}
}

// Select returns a new cloud holding the points at indices, in the given
// order, with every attribute carried in lockstep. Provenance is kept.
func (c *PointCloud) Select(indices []int) (*PointCloud, error) {
	n := len(c.points)
	out := &PointCloud{
		points:     make([]Point, len(indices)),
		format:     c.format,
		provenance: c.provenance,
	}
	if c.intensity != nil {
		out.intensity = make([]float64, len(indices))
	}
	if c.distance != nil {
		out.distance = make([]float64, len(indices))
	}
	if c.timestamp != nil {
		out.timestamp = make([]float64, len(indices))
	}
	for j, i := range indices {
		if i < 0 || i >= n {
			return nil, &InvalidParameterError{Name: "index", Value: i, Reason: fmt.Sprintf("out of range [0,%d)", n)}
		}
		out.points[j] = c.points[i]
		if out.intensity != nil {
			out.intensity[j] = c.intensity[i]
		}
		if out.distance != nil {
			out.distance[j] = c.distance[i]
		}
		if out.timestamp != nil {
			out.timestamp[j] = c.timestamp[i]
		}
	}
	return out, nil
}

// WithDistance returns a copy of c carrying the given distance column.
func (c *PointCloud) WithDistance(distance []float64) (*PointCloud, error) {
	if len(distance) != len(c.points) {
		return nil, &InvalidParameterError{
			Name:   AttrDistance,
			Value:  len(distance),
			Reason: fmt.Sprintf("attribute length must equal point count %d", len(c.points)),
		}
	}
	out := c.shallowCopy()
	out.distance = cloneFloats(distance)
	return out, nil
}

// WithProvenance returns a copy of c with the given provenance.
func (c *PointCloud) WithProvenance(p Provenance) *PointCloud {
	out := c.shallowCopy()
	out.provenance = p
	return out
}

// Equal reports whether both clouds hold the same points and the same set
// of attributes with values within tol.
func (c *PointCloud) Equal(o *PointCloud, tol float64) bool {
	if c.Len() != o.Len() {
		return false
	}
	if c == nil || o == nil {
		return c == o
	}
	for i, p := range c.points {
		q := o.points[i]
		if !near(p.X, q.X, tol) || !near(p.Y, q.Y, tol) || !near(p.Z, q.Z, tol) {
			return false
		}
	}
	return floatsEqual(c.intensity, o.intensity, tol) &&
		floatsEqual(c.distance, o.distance, tol) &&
		floatsEqual(c.timestamp, o.timestamp, tol)
}

// shallowCopy shares the backing slices. Safe because no method writes
// into an existing slice.
func (c *PointCloud) shallowCopy() *PointCloud {
	cp := *c
	return &cp
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append(make([]float64, 0, len(v)), v...)
}

func floatsEqual(a, b []float64, tol float64) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !near(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

func near(a, b, tol float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool { return isFinite(v) }
