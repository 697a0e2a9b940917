package formats

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// PCDEncoding selects the DATA section layout written by WritePCD.
type PCDEncoding string

const (
	PCDASCII  PCDEncoding = "ascii"
	PCDBinary PCDEncoding = "binary"
)

// PCDReader decodes Point Cloud Library .pcd files (ascii and binary DATA).
type PCDReader struct{}

func (PCDReader) Format() cloud.Format { return cloud.FormatPCD }

// maxFieldCount bounds COUNT so record strides cannot overflow.
const maxFieldCount = 1 << 20

// pcdHeader is the parsed header block of a PCD file.
type pcdHeader struct {
	fields []string
	types  []scalarType
	counts []int
	width  int
	height int
	points int
	// hasPoints is set once a POINTS line has been parsed.
	hasPoints bool
	data      string
	lines  int // header lines consumed, including DATA
}

// stride returns the byte size of one binary record.
func (h *pcdHeader) stride() int {
	n := 0
	for i, t := range h.types {
		n += t.size * h.counts[i]
	}
	return n
}

// valueCount returns the number of ascii tokens in one record.
func (h *pcdHeader) valueCount() int {
	n := 0
	for _, c := range h.counts {
		n += c
	}
	return n
}

func (PCDReader) Read(in io.Reader, source string) (*cloud.PointCloud, error) {
	br := bufio.NewReader(in)
	hdr, err := readPCDHeader(br, source)
	if err != nil {
		return nil, err
	}

	idx := newColumnIndex()
	for i, f := range hdr.fields {
		idx.assign(roleOf(f, false), i)
	}
	if missing := idx.missingCoords(); len(missing) > 0 {
		return nil, pcdErr(source, 0, fmt.Sprintf("missing coordinate field(s) %s", strings.Join(missing, ", ")), nil)
	}
	if hdr.points == 0 {
		return nil, &cloud.EmptyDataError{Source: source, Stage: "read"}
	}
	diagf("%s: PCD %s, %d points, fields %v", source, hdr.data, hdr.points, hdr.fields)

	switch hdr.data {
	case "ascii":
		return readPCDASCII(br, hdr, idx, source)
	case "binary":
		return readPCDBinary(br, hdr, idx, source)
	default:
		return nil, pcdErr(source, hdr.lines, fmt.Sprintf("unsupported DATA encoding %q", hdr.data), nil)
	}
}

func pcdErr(source string, line int, reason string, err error) error {
	return &cloud.FormatError{Source: source, Format: cloud.FormatPCD, Line: line, Reason: reason, Err: err}
}

func readPCDHeader(br *bufio.Reader, source string) (*pcdHeader, error) {
	h := &pcdHeader{height: 1}
	var sizes []int
	var typeCodes []string

	for {
		raw, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || raw == "") {
			if err == io.EOF {
				return nil, pcdErr(source, h.lines, "header ended before DATA line", nil)
			}
			return nil, pcdErr(source, h.lines, "read header", err)
		}
		h.lines++
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		key, vals := tokens[0], tokens[1:]
		err = nil

		switch strings.ToUpper(key) {
		case "VERSION", "VIEWPOINT":
		case "FIELDS":
			h.fields = vals
		case "SIZE":
			sizes, err = atoiAll(vals)
		case "TYPE":
			typeCodes = vals
		case "COUNT":
			h.counts, err = atoiAll(vals)
		case "WIDTH":
			h.width, err = atoiOne(vals)
		case "HEIGHT":
			h.height, err = atoiOne(vals)
		case "POINTS":
			h.points, err = atoiOne(vals)
			if err == nil && h.points < 0 {
				return nil, pcdErr(source, h.lines, fmt.Sprintf("negative point count %d", h.points), nil)
			}
			h.hasPoints = true
		case "DATA":
			if len(vals) != 1 {
				return nil, pcdErr(source, h.lines, "DATA needs one value", nil)
			}
			h.data = strings.ToLower(vals[0])
		default:
			return nil, pcdErr(source, h.lines, fmt.Sprintf("unknown header key %q", key), nil)
		}
		if err != nil {
			return nil, pcdErr(source, h.lines, fmt.Sprintf("bad %s value", key), err)
		}
		if h.data != "" {
			break
		}
	}

	if len(h.fields) == 0 {
		return nil, pcdErr(source, 0, "missing FIELDS", nil)
	}
	if h.counts == nil {
		h.counts = make([]int, len(h.fields))
		for i := range h.counts {
			h.counts[i] = 1
		}
	}
	if len(sizes) != len(h.fields) || len(typeCodes) != len(h.fields) || len(h.counts) != len(h.fields) {
		return nil, pcdErr(source, 0, fmt.Sprintf("FIELDS/SIZE/TYPE/COUNT lengths differ (%d/%d/%d/%d)",
			len(h.fields), len(sizes), len(typeCodes), len(h.counts)), nil)
	}
	h.types = make([]scalarType, len(h.fields))
	for i, code := range typeCodes {
		t := scalarType{size: sizes[i]}
		switch strings.ToUpper(code) {
		case "F":
			t.kind = kindFloat
		case "I":
			t.kind = kindInt
		case "U":
			t.kind = kindUint
		default:
			return nil, pcdErr(source, 0, fmt.Sprintf("field %s has unknown TYPE %q", h.fields[i], code), nil)
		}
		if !t.valid() {
			return nil, pcdErr(source, 0, fmt.Sprintf("field %s has unsupported TYPE %s SIZE %d", h.fields[i], code, sizes[i]), nil)
		}
		if h.counts[i] < 1 || h.counts[i] > maxFieldCount {
			return nil, pcdErr(source, 0, fmt.Sprintf("field %s has COUNT %d", h.fields[i], h.counts[i]), nil)
		}
		h.types[i] = t
	}
	if !h.hasPoints {
		if h.width < 0 || h.height < 0 || (h.height > 0 && h.width > math.MaxInt/h.height) {
			return nil, pcdErr(source, 0, fmt.Sprintf("bad WIDTH %d HEIGHT %d", h.width, h.height), nil)
		}
		h.points = h.width * h.height
	}
	return h, nil
}

func atoiOne(vals []string) (int, error) {
	if len(vals) != 1 {
		return 0, fmt.Errorf("expected one value, got %d", len(vals))
	}
	return strconv.Atoi(vals[0])
}

func atoiAll(vals []string) ([]int, error) {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// readPCDASCII reads one record per non-blank line. A present record that
// cannot be decoded is skipped and counted, but still counts toward the
// declared POINTS total.
func readPCDASCII(br *bufio.Reader, hdr *pcdHeader, idx columnIndex, source string) (*cloud.PointCloud, error) {
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	// offsets[i] is the token index of the first element of field i.
	offsets := make([]int, len(hdr.fields))
	for i := 1; i < len(offsets); i++ {
		offsets[i] = offsets[i-1] + hdr.counts[i-1]
	}
	want := hdr.valueCount()
	b := newPointBuilder(idx, hdr.points)
	vals := make([]float64, len(hdr.fields))
	rows, skipped := 0, 0
	line := hdr.lines

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		rows++
		toks := strings.Fields(text)
		if len(toks) != want {
			skipped++
			diagf("%s: line %d: %d values, want %d", source, line, len(toks), want)
			continue
		}
		ok := true
		for i := range hdr.fields {
			v, err := parseNumber(toks[offsets[i]])
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			skipped++
			diagf("%s: line %d: unparseable record", source, line)
			continue
		}
		b.add(vals)
	}
	if err := sc.Err(); err != nil {
		return nil, pcdErr(source, line, "read data", err)
	}
	if rows != hdr.points {
		return nil, pcdErr(source, 0, fmt.Sprintf("header declares %d points but data has %d records", hdr.points, rows), nil)
	}
	if len(b.points) == 0 {
		return nil, pcdErr(source, 0, fmt.Sprintf("all %d data records are malformed", rows), nil)
	}
	if skipped > 0 {
		opsf("%s: skipped %d malformed records", source, skipped)
	}
	return b.build(cloud.FormatPCD, cloud.Provenance{Source: source, SkippedRecords: skipped})
}

// readPCDBinary reads little-endian records packed back to back. The
// data section must hold exactly POINTS records.
func readPCDBinary(br *bufio.Reader, hdr *pcdHeader, idx columnIndex, source string) (*cloud.PointCloud, error) {
	stride := hdr.stride()
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, pcdErr(source, 0, "read binary data", err)
	}
	if stride == 0 || hdr.points > len(data)/stride || hdr.points*stride != len(data) {
		return nil, pcdErr(source, 0, fmt.Sprintf("header declares %d points of %d bytes but data has %d bytes",
			hdr.points, stride, len(data)), nil)
	}

	offsets := make([]int, len(hdr.fields))
	for i := 1; i < len(offsets); i++ {
		offsets[i] = offsets[i-1] + hdr.types[i-1].size*hdr.counts[i-1]
	}
	b := newPointBuilder(idx, hdr.points)
	vals := make([]float64, len(hdr.fields))
	for p := 0; p < hdr.points; p++ {
		rec := data[p*stride : (p+1)*stride]
		for i, t := range hdr.types {
			vals[i] = t.decode(rec[offsets[i]:], binary.LittleEndian)
		}
		b.add(vals)
	}
	return b.build(cloud.FormatPCD, cloud.Provenance{Source: source})
}

// WritePCD writes c as a PCD v0.7 file with float64 fields. Present
// attributes follow x y z in the order intensity, distance, timestamp.
func WritePCD(w io.Writer, c *cloud.PointCloud, enc PCDEncoding) error {
	if enc != PCDASCII && enc != PCDBinary {
		return &cloud.InvalidParameterError{Name: "pcd encoding", Value: enc, Reason: "must be ascii or binary"}
	}
	cols := exportColumns(c)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.name
	}
	n := c.Len()
	repeat := func(s string) string {
		return strings.TrimSpace(strings.Repeat(s+" ", len(cols)))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# .PCD v0.7 - Point Cloud Data file format")
	fmt.Fprintln(bw, "VERSION 0.7")
	fmt.Fprintf(bw, "FIELDS %s\n", strings.Join(names, " "))
	fmt.Fprintf(bw, "SIZE %s\n", repeat("8"))
	fmt.Fprintf(bw, "TYPE %s\n", repeat("F"))
	fmt.Fprintf(bw, "COUNT %s\n", repeat("1"))
	fmt.Fprintf(bw, "WIDTH %d\n", n)
	fmt.Fprintln(bw, "HEIGHT 1")
	fmt.Fprintln(bw, "VIEWPOINT 0 0 0 1 0 0 0")
	fmt.Fprintf(bw, "POINTS %d\n", n)
	fmt.Fprintf(bw, "DATA %s\n", enc)

	f64 := scalarType{kind: kindFloat, size: 8}
	rec := make([]byte, 8*len(cols))
	toks := make([]string, len(cols))
	for i := 0; i < n; i++ {
		for j, col := range cols {
			v := col.value(i)
			if enc == PCDBinary {
				f64.encode(rec[8*j:], v, binary.LittleEndian)
			} else {
				toks[j] = formatNumber(v)
			}
		}
		var err error
		if enc == PCDBinary {
			_, err = bw.Write(rec)
		} else {
			_, err = fmt.Fprintln(bw, strings.Join(toks, " "))
		}
		if err != nil {
			return fmt.Errorf("write pcd record %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush pcd: %w", err)
	}
	return nil
}

// exportColumn is one output field of a written cloud.
type exportColumn struct {
	name  string
	value func(i int) float64
}

func exportColumns(c *cloud.PointCloud) []exportColumn {
	cols := []exportColumn{
		{"x", func(i int) float64 { return c.Point(i).X }},
		{"y", func(i int) float64 { return c.Point(i).Y }},
		{"z", func(i int) float64 { return c.Point(i).Z }},
	}
	for _, name := range []string{cloud.AttrIntensity, cloud.AttrDistance, cloud.AttrTimestamp} {
		if vals, ok := c.Attribute(name); ok {
			cols = append(cols, exportColumn{name, func(i int) float64 { return vals[i] }})
		}
	}
	return cols
}
