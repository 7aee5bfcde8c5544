package owid

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cast"

	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
)

// DatePolicy decides what happens to rows whose date cannot be parsed.
type DatePolicy string

const (
	// DatePolicySkip drops the row and counts it in RawTable.SkippedRows.
	DatePolicySkip DatePolicy = "skip"
	// DatePolicyFail aborts the parse with a ParseError.
	DatePolicyFail DatePolicy = "fail"
)

const dateColumn = "date"

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// RawRow is one parsed source row before key normalization.
type RawRow struct {
	Date   time.Time
	Text   map[string]string
	Values map[string]float64
}

// RawTable is a parsed CSV with columns classified as text or numeric.
type RawTable struct {
	TextColumns   []string
	MetricColumns []string
	Rows          []RawRow
	SkippedRows   int
}

// HasColumn reports whether name is a text or metric column.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.TextColumns {
		if c == name {
			return true
		}
	}
	for _, c := range t.MetricColumns {
		if c == name {
			return true
		}
	}
	return false
}

// StampText adds a constant text column to every row. Used for the per-country
// endpoint, which omits the key column.
func (t *RawTable) StampText(column, value string) {
	t.TextColumns = append(t.TextColumns, column)
	for i := range t.Rows {
		t.Rows[i].Text[column] = value
	}
}

// ParseCSV reads a CSV table, transparently decompressing gzip input.
// Columns are numeric when most non-empty cells parse as numbers; other columns stay text.
func ParseCSV(r io.Reader, policy DatePolicy) (*RawTable, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &models.ParseError{Err: fmt.Errorf("gzip header: %w", err)}
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}

	reader := csv.NewReader(br)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &models.ParseError{Line: 1, Err: errors.New("empty payload")}
		}
		return nil, csvParseError(err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	dateIdx := -1
	for i, h := range header {
		if h == dateColumn {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return nil, &models.ParseError{Line: 1, Err: errors.New("missing date column")}
	}

	var cells [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvParseError(err)
		}
		cells = append(cells, rec)
	}

	numeric := classifyColumns(header, cells, dateIdx)

	table := &RawTable{Rows: make([]RawRow, 0, len(cells))}
	for i, h := range header {
		if i == dateIdx {
			continue
		}
		if numeric[i] {
			table.MetricColumns = append(table.MetricColumns, h)
		} else {
			table.TextColumns = append(table.TextColumns, h)
		}
	}

	for n, rec := range cells {
		date, ok := parseDate(rec[dateIdx])
		if !ok {
			if policy == DatePolicyFail {
				return nil, &models.ParseError{Line: n + 2, Err: fmt.Errorf("invalid date %q", rec[dateIdx])}
			}
			table.SkippedRows++
			continue
		}
		row := RawRow{
			Date:   date,
			Text:   make(map[string]string),
			Values: make(map[string]float64),
		}
		for i, cell := range rec {
			if i == dateIdx {
				continue
			}
			cell = strings.TrimSpace(cell)
			if !numeric[i] {
				row.Text[header[i]] = cell
				continue
			}
			if v, ok := parseNumber(cell); ok {
				row.Values[header[i]] = v
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if table.SkippedRows > 0 {
		logger.Warn("Skipped %d rows with unparseable dates", table.SkippedRows)
	}
	return table, nil
}

// textColumns are never treated as metrics, even when every cell is empty.
var textColumns = map[string]bool{
	"country":     true,
	"location":    true,
	"iso_code":    true,
	"continent":   true,
	"tests_units": true,
}

// classifyColumns marks a column numeric when its numeric cells are at least as
// many as its non-empty, non-numeric cells. Stray text in a metric column is
// then read as absent cell by cell instead of demoting the column. An all-empty
// column counts as numeric so that a metric with no data for an entity is still
// part of the schema.
func classifyColumns(header []string, cells [][]string, dateIdx int) []bool {
	numeric := make([]bool, len(header))
	for i, h := range header {
		if i == dateIdx || textColumns[h] {
			continue
		}
		nums, texts := 0, 0
		for _, rec := range cells {
			cell := strings.TrimSpace(rec[i])
			if cell == "" || isNaN(cell) {
				continue
			}
			if _, isNum := parseNumber(cell); isNum {
				nums++
			} else {
				texts++
			}
		}
		numeric[i] = nums >= texts
	}
	return numeric
}

// parseNumber returns false for empty, NaN and non-numeric cells.
func parseNumber(cell string) (float64, bool) {
	if cell == "" || isNaN(cell) {
		return 0, false
	}
	v, err := cast.ToFloat64E(cell)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isNaN(cell string) bool {
	return strings.EqualFold(cell, "nan") || strings.EqualFold(cell, "null") || strings.EqualFold(cell, "na")
}

func parseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func csvParseError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &models.ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &models.ParseError{Err: err}
}
