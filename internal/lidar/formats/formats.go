package formats

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/YuiicKi/LidarViz/internal/lidar/cloud"
)

// Reader decodes one input format into a PointCloud.
type Reader interface {
	// Read decodes r. source labels the input in errors and provenance.
	Read(r io.Reader, source string) (*cloud.PointCloud, error)
	// Format returns the format this reader decodes.
	Format() cloud.Format
}

// Options configures reader construction.
type Options struct {
	// Columns maps CSV header names to fields. Ignored by PCD and PLY,
	// whose field names are resolved through fixed aliases.
	Columns ColumnMap
}

// DefaultOptions returns Options with the default CSV column names.
func DefaultOptions() Options {
	return Options{Columns: DefaultColumnMap()}
}

var registry = map[cloud.Format]func(Options) Reader{
	cloud.FormatCSV: func(o Options) Reader { return NewCSVReader(o.Columns) },
	cloud.FormatPCD: func(Options) Reader { return PCDReader{} },
	cloud.FormatPLY: func(Options) Reader { return PLYReader{} },
}

// ReaderFor returns the reader registered for format.
func ReaderFor(format cloud.Format, opts Options) (Reader, error) {
	newReader, ok := registry[format]
	if !ok {
		return nil, &cloud.FormatError{Format: format, Reason: "no reader registered"}
	}
	return newReader(opts), nil
}

// sniffLen is how many leading bytes DetectFormat needs for sniffing.
const sniffLen = 512

// DetectFormat resolves the format of an input from the extension of name
// and, when that is not conclusive, from its leading bytes.
func DetectFormat(name string, head []byte) (cloud.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return cloud.FormatCSV, nil
	case ".pcd":
		return cloud.FormatPCD, nil
	case ".ply":
		return cloud.FormatPLY, nil
	}

	head = bytes.TrimPrefix(head, utf8BOM)
	sc := bufio.NewScanner(bytes.NewReader(head))
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first && line == "ply" {
			return cloud.FormatPLY, nil
		}
		if strings.HasPrefix(line, "# .PCD") || strings.HasPrefix(line, "VERSION") || strings.HasPrefix(line, "FIELDS") {
			return cloud.FormatPCD, nil
		}
		if first && strings.Contains(line, ",") {
			return cloud.FormatCSV, nil
		}
		if !strings.HasPrefix(line, "#") {
			first = false
		}
	}
	return cloud.FormatUnknown, &cloud.FormatError{Source: name, Format: cloud.FormatUnknown, Reason: "cannot determine input format"}
}

// Read detects the format of r from name and its leading bytes and
// decodes it with the matching reader.
func Read(r io.Reader, name string, opts Options) (*cloud.PointCloud, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, &cloud.FormatError{Source: name, Reason: "read header", Err: err}
	}
	format, err := DetectFormat(name, head)
	if err != nil {
		return nil, err
	}
	reader, err := ReaderFor(format, opts)
	if err != nil {
		return nil, err
	}
	return reader.Read(br, name)
}
