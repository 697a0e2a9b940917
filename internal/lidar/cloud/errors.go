package cloud

import (
	"fmt"
)

// FormatError reports a malformed or unsupported file structure.
type FormatError struct {
	Source string // file name or other input label
	Format Format
	Line   int // 1-based header/data line, 0 when not applicable
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s format error", e.Format)
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// EmptyDataError reports that no valid points remain after a stage.
type EmptyDataError struct {
	Source string
	Stage  string
}

func (e *EmptyDataError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: no valid points", e.Stage)
	}
	return fmt.Sprintf("%s: no valid points in %s", e.Stage, e.Source)
}

// InvalidParameterError reports an out-of-range or unknown parameter,
// such as a sampling ratio outside (0, 1] or an unknown colour scheme.
type InvalidParameterError struct {
	Name   string
	Value  interface{}
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Name, e.Value, e.Reason)
}

// MissingAttributeError reports that an operation needs a per-point
// attribute the cloud does not carry.
type MissingAttributeError struct {
	Attribute string
	Scheme    string
}

func (e *MissingAttributeError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("cloud has no %s attribute", e.Attribute)
	}
	return fmt.Sprintf("%s colouring requires the %s attribute, which the cloud does not carry", e.Scheme, e.Attribute)
}
