package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// PLYEncoding is the body layout named on a PLY "format" line.
type PLYEncoding string

const (
	PLYASCII        PLYEncoding = "ascii"
	PLYBinaryLittle PLYEncoding = "binary_little_endian"
	PLYBinaryBig    PLYEncoding = "binary_big_endian"
)

func (e PLYEncoding) byteOrder() binary.ByteOrder {
	if e == PLYBinaryBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

var plyTypes = map[string]scalarType{
	"char": {kindInt, 1}, "int8": {kindInt, 1},
	"uchar": {kindUint, 1}, "uint8": {kindUint, 1},
	"short": {kindInt, 2}, "int16": {kindInt, 2},
	"ushort": {kindUint, 2}, "uint16": {kindUint, 2},
	"int": {kindInt, 4}, "int32": {kindInt, 4},
	"uint": {kindUint, 4}, "uint32": {kindUint, 4},
	"float": {kindFloat, 4}, "float32": {kindFloat, 4},
	"double": {kindFloat, 8}, "float64": {kindFloat, 8},
}

type plyProperty struct {
	name      string
	typ       scalarType
	list      bool
	countType scalarType // list length type
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	encoding PLYEncoding
	elements []plyElement
	lines    int
}

// PLYReader decodes the vertex element of Stanford .ply files.
type PLYReader struct{}

func (PLYReader) Format() cloud.Format { return cloud.FormatPLY }

func plyErr(source string, line int, reason string, err error) error {
	return &cloud.FormatError{Source: source, Format: cloud.FormatPLY, Line: line, Reason: reason, Err: err}
}

func (PLYReader) Read(in io.Reader, source string) (*cloud.PointCloud, error) {
	br := bufio.NewReader(in)
	hdr, err := readPLYHeader(br, source)
	if err != nil {
		return nil, err
	}

	vertex := -1
	for i, el := range hdr.elements {
		if el.name == "vertex" {
			vertex = i
			break
		}
	}
	if vertex < 0 {
		return nil, plyErr(source, 0, "no vertex element", nil)
	}
	el := hdr.elements[vertex]
	idx := newColumnIndex()
	for i, p := range el.props {
		if !p.list {
			idx.assign(roleOf(p.name, true), i)
		}
	}
	if missing := idx.missingCoords(); len(missing) > 0 {
		return nil, plyErr(source, 0, fmt.Sprintf("vertex element lacks property %s", strings.Join(missing, ", ")), nil)
	}
	if el.count == 0 {
		return nil, &cloud.EmptyDataError{Source: source, Stage: "read"}
	}
	diagf("%s: PLY %s, %d vertices", source, hdr.encoding, el.count)

	if hdr.encoding == PLYASCII {
		return readPLYASCII(br, hdr, vertex, idx, source)
	}
	return readPLYBinary(br, hdr, vertex, idx, source)
}

func readPLYHeader(br *bufio.Reader, source string) (*plyHeader, error) {
	h := &plyHeader{}
	for {
		raw, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || raw == "") {
			if err == io.EOF {
				return nil, plyErr(source, h.lines, "header ended before end_header", nil)
			}
			return nil, plyErr(source, h.lines, "read header", err)
		}
		h.lines++
		line := strings.TrimSpace(raw)
		if h.lines == 1 {
			if line != "ply" {
				return nil, plyErr(source, 1, "missing ply magic", nil)
			}
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		switch tokens[0] {
		case "comment", "obj_info":
		case "format":
			if len(tokens) != 3 {
				return nil, plyErr(source, h.lines, "malformed format line", nil)
			}
			switch enc := PLYEncoding(tokens[1]); enc {
			case PLYASCII, PLYBinaryLittle, PLYBinaryBig:
				h.encoding = enc
			default:
				return nil, plyErr(source, h.lines, fmt.Sprintf("unsupported format %q", tokens[1]), nil)
			}
		case "element":
			if len(tokens) != 3 {
				return nil, plyErr(source, h.lines, "malformed element line", nil)
			}
			count, err := strconv.Atoi(tokens[2])
			if err != nil || count < 0 {
				return nil, plyErr(source, h.lines, fmt.Sprintf("bad element count %q", tokens[2]), err)
			}
			h.elements = append(h.elements, plyElement{name: tokens[1], count: count})
		case "property":
			if len(h.elements) == 0 {
				return nil, plyErr(source, h.lines, "property before any element", nil)
			}
			prop, err := parsePLYProperty(tokens[1:])
			if err != nil {
				return nil, plyErr(source, h.lines, "malformed property line", err)
			}
			last := &h.elements[len(h.elements)-1]
			last.props = append(last.props, prop)
		case "end_header":
			if h.encoding == "" {
				return nil, plyErr(source, h.lines, "missing format line", nil)
			}
			return h, nil
		default:
			return nil, plyErr(source, h.lines, fmt.Sprintf("unknown header keyword %q", tokens[0]), nil)
		}
	}
}

func parsePLYProperty(tokens []string) (plyProperty, error) {
	if len(tokens) == 4 && tokens[0] == "list" {
		ct, ok := plyTypes[tokens[1]]
		if !ok || ct.kind == kindFloat {
			return plyProperty{}, fmt.Errorf("bad list count type %q", tokens[1])
		}
		it, ok := plyTypes[tokens[2]]
		if !ok {
			return plyProperty{}, fmt.Errorf("unknown type %q", tokens[2])
		}
		return plyProperty{name: tokens[3], typ: it, list: true, countType: ct}, nil
	}
	if len(tokens) != 2 {
		return plyProperty{}, fmt.Errorf("expected type and name, got %d tokens", len(tokens))
	}
	t, ok := plyTypes[tokens[0]]
	if !ok {
		return plyProperty{}, fmt.Errorf("unknown type %q", tokens[0])
	}
	return plyProperty{name: tokens[1], typ: t}, nil
}

// readPLYASCII reads one record per line. Records of elements before the
// vertex element are skipped whole; elements after it are never read.
func readPLYASCII(br *bufio.Reader, hdr *plyHeader, vertex int, idx columnIndex, source string) (*cloud.PointCloud, error) {
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := hdr.lines
	next := func() (string, bool) {
		for sc.Scan() {
			line++
			if text := strings.TrimSpace(sc.Text()); text != "" {
				return text, true
			}
		}
		return "", false
	}

	for _, el := range hdr.elements[:vertex] {
		for i := 0; i < el.count; i++ {
			if _, ok := next(); !ok {
				return nil, plyErr(source, line, fmt.Sprintf("element %s ended after %d of %d records", el.name, i, el.count), sc.Err())
			}
		}
	}

	el := hdr.elements[vertex]
	b := newPointBuilder(idx, el.count)
	vals := make([]float64, len(el.props))
	skipped := 0
	for i := 0; i < el.count; i++ {
		text, ok := next()
		if !ok {
			return nil, plyErr(source, line, fmt.Sprintf("header declares %d vertices but data has %d", el.count, i), sc.Err())
		}
		if err := parsePLYASCIIRecord(strings.Fields(text), el.props, vals); err != nil {
			skipped++
			diagf("%s: line %d: %v", source, line, err)
			continue
		}
		b.add(vals)
	}
	if len(b.points) == 0 {
		return nil, plyErr(source, 0, fmt.Sprintf("all %d vertex records are malformed", el.count), nil)
	}
	if skipped > 0 {
		opsf("%s: skipped %d malformed vertex records", source, skipped)
	}
	return b.build(cloud.FormatPLY, cloud.Provenance{Source: source, SkippedRecords: skipped})
}

func parsePLYASCIIRecord(toks []string, props []plyProperty, vals []float64) error {
	pos := 0
	for i, p := range props {
		if pos >= len(toks) {
			return fmt.Errorf("record has %d values, too few for %d properties", len(toks), len(props))
		}
		if p.list {
			n, err := strconv.Atoi(toks[pos])
			if err != nil || n < 0 {
				return fmt.Errorf("bad list length %q", toks[pos])
			}
			pos += 1 + n
			continue
		}
		v, err := parseNumber(toks[pos])
		if err != nil {
			return fmt.Errorf("property %s: %w", p.name, err)
		}
		vals[i] = v
		pos++
	}
	if pos != len(toks) {
		return fmt.Errorf("record has %d values, want %d", len(toks), pos)
	}
	return nil
}

// readPLYBinary walks records property by property so list properties of
// skipped elements are honoured.
func readPLYBinary(br *bufio.Reader, hdr *plyHeader, vertex int, idx columnIndex, source string) (*cloud.PointCloud, error) {
	order := hdr.encoding.byteOrder()
	var buf [8]byte

	readScalar := func(t scalarType) (float64, error) {
		if _, err := io.ReadFull(br, buf[:t.size]); err != nil {
			return 0, err
		}
		return t.decode(buf[:t.size], order), nil
	}
	readRecord := func(props []plyProperty, vals []float64) error {
		for i, p := range props {
			if !p.list {
				v, err := readScalar(p.typ)
				if err != nil {
					return err
				}
				if vals != nil {
					vals[i] = v
				}
				continue
			}
			n, err := readScalar(p.countType)
			if err != nil {
				return err
			}
			if _, err := br.Discard(int(n) * p.typ.size); err != nil {
				return err
			}
		}
		return nil
	}
	truncated := func(err error) bool {
		return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	}

	for _, el := range hdr.elements[:vertex] {
		for i := 0; i < el.count; i++ {
			if err := readRecord(el.props, nil); err != nil {
				if truncated(err) {
					return nil, plyErr(source, 0, fmt.Sprintf("element %s ended after %d of %d records", el.name, i, el.count), nil)
				}
				return nil, plyErr(source, 0, "read binary data", err)
			}
		}
	}

	el := hdr.elements[vertex]
	b := newPointBuilder(idx, el.count)
	vals := make([]float64, len(el.props))
	for i := 0; i < el.count; i++ {
		if err := readRecord(el.props, vals); err != nil {
			if truncated(err) {
				return nil, plyErr(source, 0, fmt.Sprintf("header declares %d vertices but data has %d", el.count, i), nil)
			}
			return nil, plyErr(source, 0, "read binary data", err)
		}
		b.add(vals)
	}
	return b.build(cloud.FormatPLY, cloud.Provenance{Source: source})
}

// WritePLY writes c as a PLY file with a single vertex element of double
// properties: x y z followed by the present attributes.
func WritePLY(w io.Writer, c *cloud.PointCloud, enc PLYEncoding) error {
	switch enc {
	case PLYASCII, PLYBinaryLittle, PLYBinaryBig:
	default:
		return &cloud.InvalidParameterError{Name: "ply encoding", Value: enc, Reason: "unsupported"}
	}
	cols := exportColumns(c)
	n := c.Len()

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "ply")
	fmt.Fprintf(bw, "format %s 1.0\n", enc)
	fmt.Fprintf(bw, "element vertex %d\n", n)
	for _, col := range cols {
		fmt.Fprintf(bw, "property double %s\n", col.name)
	}
	fmt.Fprintln(bw, "end_header")

	f64 := scalarType{kind: kindFloat, size: 8}
	order := enc.byteOrder()
	rec := make([]byte, 8*len(cols))
	toks := make([]string, len(cols))
	for i := 0; i < n; i++ {
		var err error
		if enc == PLYASCII {
			for j, col := range cols {
				toks[j] = formatNumber(col.value(i))
			}
			_, err = fmt.Fprintln(bw, strings.Join(toks, " "))
		} else {
			for j, col := range cols {
				f64.encode(rec[8*j:], col.value(i), order)
			}
			_, err = bw.Write(rec)
		}
		if err != nil {
			return fmt.Errorf("write ply vertex %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush ply: %w", err)
	}
	return nil
}
