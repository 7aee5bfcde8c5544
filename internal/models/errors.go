package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientData is returned by the correlation engine when fewer than two
// allow-listed metrics are present.
var ErrInsufficientData = errors.New("not enough numeric columns available for correlation matrix")

// ErrUnknownMetric is returned when a query names a metric outside the selectable list.
var ErrUnknownMetric = errors.New("unknown metric")

// FetchError reports a network or remote failure while retrieving a table.
type FetchError struct {
	URL    string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed payload. Line is 1-based, 0 when unknown.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaError reports that none of the expected key columns is present.
type SchemaError struct {
	Variant Variant
	Want    []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s table has none of the columns [%s]", e.Variant, strings.Join(e.Want, ", "))
}

// EmptySelectionError reports that no rows match the selected entity.
type EmptySelectionError struct {
	Entity string
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("no rows for entity %q", e.Entity)
}
