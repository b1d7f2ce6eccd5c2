package analysis

import "fmt"

// ReadError reports a file that could not be opened, decoded or parsed
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a file extension the reader does not handle
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %q", e.Extension)
}

// ColumnProfilingError is raised while profiling a single column. It never
// aborts a dataset; the column gets a degraded profile instead.
type ColumnProfilingError struct {
	Column string
	Err    error
}

func (e *ColumnProfilingError) Error() string {
	return fmt.Sprintf("profiling column %q: %v", e.Column, e.Err)
}

func (e *ColumnProfilingError) Unwrap() error { return e.Err }
