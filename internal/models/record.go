// Package models defines the core domain entities for the covidboard application.
// These models represent fetched OWID rows, per-entity selections, headline
// summaries and correlation matrices.
//
// Terminology (matching OWID's own naming):
//   - Entity: a country or region, identified by a key string (ISO code for the
//     per-country API, location name for the bulk dataset).
//   - Metric: a named numeric series such as total_cases or new_deaths.
package models

import (
	"errors"
	"math"
	"time"
)

// Record is one row of a source table.
// A metric missing from Values is absent. A NaN value is treated as absent by
// every consumer; use Value to read with that rule applied.
type Record struct {
	Entity string             `json:"entity"`
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// Value returns the metric value and whether it is present and a number.
func (r *Record) Value(metric string) (float64, bool) {
	v, ok := r.Values[metric]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Validate checks that the record is usable by the pipeline.
func (r *Record) Validate() error {
	if r.Entity == "" {
		return errors.New("record entity must not be empty")
	}
	if r.Date.IsZero() {
		return errors.New("record date must be set")
	}
	return nil
}

// Table is an ordered, not necessarily sorted, sequence of Records.
// All records share the metric schema listed in Metrics.
type Table struct {
	Metrics []string `json:"metrics"`
	Records []Record `json:"records"`
}

// HasMetric reports whether the table schema carries the named metric column.
func (t *Table) HasMetric(metric string) bool {
	for _, m := range t.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Selection is a Table restricted to one entity key and sorted by date ascending.
type Selection struct {
	Entity string `json:"entity"`
	Table
}

// Last returns the chronologically last record. The selection must be non-empty.
func (s *Selection) Last() Record {
	return s.Records[len(s.Records)-1]
}

// Point is one (date, value) sample of a metric.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is the time series of one metric for one entity. Absent values are skipped.
type Series struct {
	Entity string  `json:"entity"`
	Metric string  `json:"metric"`
	Points []Point `json:"points"`
}

// SeriesOf extracts a metric series from the selection.
func (s *Selection) SeriesOf(metric string) Series {
	series := Series{Entity: s.Entity, Metric: metric, Points: make([]Point, 0, len(s.Records))}
	for i := range s.Records {
		if v, ok := s.Records[i].Value(metric); ok {
			series.Points = append(series.Points, Point{Date: s.Records[i].Date, Value: v})
		}
	}
	return series
}
