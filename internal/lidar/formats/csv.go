package formats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ColumnMap names the CSV header columns holding each field. Empty
// optional names disable that attribute.
type ColumnMap struct {
	X, Y, Z   string
	Intensity string
	Distance  string
	Timestamp string
}

// DefaultColumnMap returns the column names written by the sensor's CSV
// export.
func DefaultColumnMap() ColumnMap {
	return ColumnMap{
		X:         "Points_m_XYZ:0",
		Y:         "Points_m_XYZ:1",
		Z:         "Points_m_XYZ:2",
		Intensity: cloud.AttrIntensity,
		Distance:  cloud.AttrDistance,
		Timestamp: cloud.AttrTimestamp,
	}
}

// CSVReader decodes comma-separated point records with a header row.
type CSVReader struct {
	columns ColumnMap
}

// NewCSVReader returns a reader using cols; a zero ColumnMap selects the
// defaults.
func NewCSVReader(cols ColumnMap) *CSVReader {
	if cols == (ColumnMap{}) {
		cols = DefaultColumnMap()
	}
	return &CSVReader{columns: cols}
}

func (*CSVReader) Format() cloud.Format { return cloud.FormatCSV }

// optionalColumn tracks one optional attribute across accepted rows.
type optionalColumn struct {
	name   string
	field  int
	values []float64
	empty  int
}

// result resolves the column: fully populated columns are kept, fully
// empty ones are absent, and mixed ones are dropped with a warning.
func (oc *optionalColumn) result(source string) []float64 {
	if oc == nil || oc.field < 0 {
		return nil
	}
	filled := len(oc.values) - oc.empty
	switch {
	case oc.empty == 0 && filled > 0:
		return oc.values
	case filled == 0:
		return nil
	default:
		opsf("%s: column %q has %d empty and %d numeric cells, treating it as absent", source, oc.name, oc.empty, filled)
		return nil
	}
}

func (r *CSVReader) Read(in io.Reader, source string) (*cloud.PointCloud, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &cloud.FormatError{Source: source, Format: cloud.FormatCSV, Reason: "missing header row"}
	}
	if err != nil {
		return nil, &cloud.FormatError{Source: source, Format: cloud.FormatCSV, Line: 1, Reason: "unreadable header row", Err: err}
	}
	width := len(header)
	names := make([]string, width)
	columns := make(map[string]int, width)
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, string(utf8BOM)))
		names[i] = name
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := columns[name]; ok {
			return i
		}
		// Case-insensitive fallback takes the leftmost match.
		for i, h := range names {
			if strings.EqualFold(h, name) {
				return i
			}
		}
		return -1
	}

	xi, yi, zi := lookup(r.columns.X), lookup(r.columns.Y), lookup(r.columns.Z)
	var missing []string
	for _, c := range []struct {
		name string
		idx  int
	}{{r.columns.X, xi}, {r.columns.Y, yi}, {r.columns.Z, zi}} {
		if c.idx < 0 {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return nil, &cloud.FormatError{
			Source: source, Format: cloud.FormatCSV, Line: 1,
			Reason: fmt.Sprintf("missing coordinate column(s) %s", strings.Join(missing, ", ")),
		}
	}

	optional := []*optionalColumn{
		{name: r.columns.Intensity, field: lookup(r.columns.Intensity)},
		{name: r.columns.Distance, field: lookup(r.columns.Distance)},
		{name: r.columns.Timestamp, field: lookup(r.columns.Timestamp)},
	}
	var (
		points  []cloud.Point
		skipped int
		cells   = make([]float64, len(optional))
		isEmpty = make([]bool, len(optional))
	)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				diagf("%s: line %d: %v", source, perr.Line, perr.Err)
				continue
			}
			return nil, &cloud.FormatError{Source: source, Format: cloud.FormatCSV, Reason: "read failed", Err: err}
		}
		if len(rec) != width {
			skipped++
			continue
		}

		var p cloud.Point
		var perr error
		if p.X, perr = parseNumber(rec[xi]); perr != nil {
			skipped++
			continue
		}
		if p.Y, perr = parseNumber(rec[yi]); perr != nil {
			skipped++
			continue
		}
		if p.Z, perr = parseNumber(rec[zi]); perr != nil {
			skipped++
			continue
		}

		ok := true
		for j, oc := range optional {
			cells[j], isEmpty[j] = 0, false
			if oc.field < 0 {
				continue
			}
			cell := strings.TrimSpace(rec[oc.field])
			if cell == "" {
				isEmpty[j] = true
				continue
			}
			if cells[j], perr = parseNumber(cell); perr != nil {
				ok = false
				break
			}
		}
		if !ok {
			skipped++
			continue
		}

		points = append(points, p)
		for j, oc := range optional {
			if oc.field < 0 {
				continue
			}
			oc.values = append(oc.values, cells[j])
			if isEmpty[j] {
				oc.empty++
			}
		}
	}

	if len(points) == 0 {
		if skipped == 0 {
			return nil, &cloud.EmptyDataError{Source: source, Stage: "read"}
		}
		return nil, &cloud.FormatError{
			Source: source, Format: cloud.FormatCSV,
			Reason: fmt.Sprintf("all %d data rows are malformed", skipped),
		}
	}
	if skipped > 0 {
		opsf("%s: skipped %d malformed rows", source, skipped)
	}
	diagf("%s: read %d points", source, len(points))

	c, err := cloud.New(cloud.FormatCSV, points, cloud.Attributes{
		Intensity: optional[0].result(source),
		Distance:  optional[1].result(source),
		Timestamp: optional[2].result(source),
	})
	if err != nil {
		return nil, err
	}
	return c.WithProvenance(cloud.Provenance{Source: source, SkippedRecords: skipped}), nil
}

// WriteCSV writes c with a header row named by cols. Absent attributes
// and attributes with an empty column name are omitted.
func WriteCSV(w io.Writer, c *cloud.PointCloud, cols ColumnMap) error {
	if cols == (ColumnMap{}) {
		cols = DefaultColumnMap()
	}
	header := []string{cols.X, cols.Y, cols.Z}
	var extra [][]float64
	for _, a := range []struct {
		name string
		attr string
	}{
		{cols.Intensity, cloud.AttrIntensity},
		{cols.Distance, cloud.AttrDistance},
		{cols.Timestamp, cloud.AttrTimestamp},
	} {
		vals, ok := c.Attribute(a.attr)
		if !ok || a.name == "" {
			continue
		}
		header = append(header, a.name)
		extra = append(extra, vals)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(header))
	for i := 0; i < c.Len(); i++ {
		p := c.Point(i)
		row[0], row[1], row[2] = formatNumber(p.X), formatNumber(p.Y), formatNumber(p.Z)
		for j, vals := range extra {
			row[3+j] = formatNumber(vals[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
