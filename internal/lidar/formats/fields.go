package formats

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// role is the canonical meaning of a PCD field or PLY property.
type role int

const (
	roleNone role = iota
	roleX
	roleY
	roleZ
	roleIntensity
	roleDistance
	roleTimestamp
	numRoles
)

var roleAliases = map[string]role{
	"x":            roleX,
	"y":            roleY,
	"z":            roleZ,
	"intensity":    roleIntensity,
	"i":            roleIntensity,
	"reflectivity": roleIntensity,
	"distance":     roleDistance,
	"range":        roleDistance,
	"timestamp":    roleTimestamp,
	"time":         roleTimestamp,
	"t":            roleTimestamp,
}

// roleOf resolves a field name. PLY exports from CloudCompare prefix
// scalar fields with "scalar_", which is accepted when allowScalarPrefix
// is set.
func roleOf(name string, allowScalarPrefix bool) role {
	n := strings.ToLower(strings.TrimSpace(name))
	if r, ok := roleAliases[n]; ok {
		return r
	}
	if allowScalarPrefix && strings.HasPrefix(n, "scalar_") {
		switch r := roleAliases[strings.TrimPrefix(n, "scalar_")]; r {
		case roleIntensity, roleDistance, roleTimestamp:
			return r
		}
	}
	return roleNone
}

// columnIndex maps each role to the first field carrying it, -1 if none.
type columnIndex [numRoles]int

func newColumnIndex() columnIndex {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	return idx
}

func (idx *columnIndex) assign(r role, field int) {
	if r != roleNone && idx[r] < 0 {
		idx[r] = field
	}
}

func (idx columnIndex) missingCoords() []string {
	var missing []string
	for _, c := range []struct {
		r    role
		name string
	}{{roleX, "x"}, {roleY, "y"}, {roleZ, "z"}} {
		if idx[c.r] < 0 {
			missing = append(missing, c.name)
		}
	}
	return missing
}

// pointBuilder accumulates decoded records into cloud columns.
type pointBuilder struct {
	idx       columnIndex
	points    []cloud.Point
	intensity []float64
	distance  []float64
	timestamp []float64
}

// maxPrealloc bounds the capacity taken from a header point count, which
// may declare far more records than the file holds.
const maxPrealloc = 1 << 16

func newPointBuilder(idx columnIndex, capacity int) *pointBuilder {
	capacity = max(0, min(capacity, maxPrealloc))
	b := &pointBuilder{idx: idx, points: make([]cloud.Point, 0, capacity)}
	if idx[roleIntensity] >= 0 {
		b.intensity = make([]float64, 0, capacity)
	}
	if idx[roleDistance] >= 0 {
		b.distance = make([]float64, 0, capacity)
	}
	if idx[roleTimestamp] >= 0 {
		b.timestamp = make([]float64, 0, capacity)
	}
	return b
}

// add appends one record whose per-field values are in vals.
func (b *pointBuilder) add(vals []float64) {
	b.points = append(b.points, cloud.Point{X: vals[b.idx[roleX]], Y: vals[b.idx[roleY]], Z: vals[b.idx[roleZ]]})
	if b.intensity != nil {
		b.intensity = append(b.intensity, vals[b.idx[roleIntensity]])
	}
	if b.distance != nil {
		b.distance = append(b.distance, vals[b.idx[roleDistance]])
	}
	if b.timestamp != nil {
		b.timestamp = append(b.timestamp, vals[b.idx[roleTimestamp]])
	}
}

func (b *pointBuilder) build(format cloud.Format, prov cloud.Provenance) (*cloud.PointCloud, error) {
	c, err := cloud.New(format, b.points, cloud.Attributes{
		Intensity: b.intensity,
		Distance:  b.distance,
		Timestamp: b.timestamp,
	})
	if err != nil {
		return nil, err
	}
	return c.WithProvenance(prov), nil
}

type scalarKind int

const (
	kindInt scalarKind = iota
	kindUint
	kindFloat
)

// scalarType is a fixed-width numeric field type.
type scalarType struct {
	kind scalarKind
	size int
}

func (s scalarType) valid() bool {
	switch s.kind {
	case kindFloat:
		return s.size == 4 || s.size == 8
	case kindInt, kindUint:
		return s.size == 1 || s.size == 2 || s.size == 4 || s.size == 8
	}
	return false
}

// decode reads one value of type s from the front of b.
func (s scalarType) decode(b []byte, order binary.ByteOrder) float64 {
	switch s.kind {
	case kindFloat:
		if s.size == 4 {
			return float64(math.Float32frombits(order.Uint32(b)))
		}
		return math.Float64frombits(order.Uint64(b))
	case kindInt:
		switch s.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(order.Uint16(b)))
		case 4:
			return float64(int32(order.Uint32(b)))
		default:
			return float64(int64(order.Uint64(b)))
		}
	default:
		switch s.size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(order.Uint16(b))
		case 4:
			return float64(order.Uint32(b))
		default:
			return float64(order.Uint64(b))
		}
	}
}

// encode writes v as type s into the front of b.
func (s scalarType) encode(b []byte, v float64, order binary.ByteOrder) {
	switch s.kind {
	case kindFloat:
		if s.size == 4 {
			order.PutUint32(b, math.Float32bits(float32(v)))
		} else {
			order.PutUint64(b, math.Float64bits(v))
		}
	case kindInt:
		switch s.size {
		case 1:
			b[0] = byte(int8(v))
		case 2:
			order.PutUint16(b, uint16(int16(v)))
		case 4:
			order.PutUint32(b, uint32(int32(v)))
		default:
			order.PutUint64(b, uint64(int64(v)))
		}
	default:
		switch s.size {
		case 1:
			b[0] = uint8(v)
		case 2:
			order.PutUint16(b, uint16(v))
		case 4:
			order.PutUint32(b, uint32(v))
		default:
			order.PutUint64(b, uint64(v))
		}
	}
}

func parseNumber(tok string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(tok), 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
