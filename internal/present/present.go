// Package present turns pipeline results into display-ready pieces: titles,
// heatmap cells, PNG line charts and plain-text reports.
package present

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/pipeline"
)

// ErrTooFewPoints is returned when a series cannot be drawn as a line.
var ErrTooFewPoints = errors.New("at least two points are required to draw a line chart")

var titleCaser = cases.Title(language.English)

// MetricTitle turns a metric name into a label: new_cases -> "New Cases".
func MetricTitle(metric string) string {
	return titleCaser.String(strings.ReplaceAll(metric, "_", " "))
}

// SectionTitle is the heading above the line chart.
func SectionTitle(metric, entity string) string {
	return fmt.Sprintf("%s Over Time — %s", MetricTitle(metric), entity)
}

// ChartTitle is the title drawn inside the line chart.
func ChartTitle(metric, entity string) string {
	return fmt.Sprintf("%s Trend in %s", MetricTitle(metric), entity)
}

// HeatmapCell is one labelled cell of the correlation heatmap.
type HeatmapCell struct {
	X     string   `json:"x"`
	Y     string   `json:"y"`
	Value *float64 `json:"value"`
	Label string   `json:"label"`
}

// HeatmapCells flattens a correlation matrix row by row.
func HeatmapCells(m *models.CorrelationMatrix) []HeatmapCell {
	if m == nil {
		return nil
	}
	cells := make([]HeatmapCell, 0, m.Size()*m.Size())
	for i, y := range m.Fields {
		for j, x := range m.Fields {
			cell := HeatmapCell{X: x, Y: y, Label: "n/a"}
			if v, ok := m.At(i, j); ok {
				cell.Value = &v
				cell.Label = fmt.Sprintf("%.2f", v)
			}
			cells = append(cells, cell)
		}
	}
	return cells
}

// RenderLineChart draws the series as a PNG.
func RenderLineChart(w io.Writer, series models.Series, width, height int) error {
	if len(series.Points) < 2 {
		return ErrTooFewPoints
	}

	xs := make([]time.Time, len(series.Points))
	ys := make([]float64, len(series.Points))
	lo, hi := series.Points[0].Value, series.Points[0].Value
	for i, p := range series.Points {
		xs[i] = p.Date
		ys[i] = p.Value
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}

	// go-chart rejects a zero-height range, so pad flat series.
	var yRange *chart.ContinuousRange
	if lo == hi {
		yRange = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	graph := chart.Chart{
		Title:  ChartTitle(series.Metric, series.Entity),
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           MetricTitle(series.Metric),
			Range:          yRange,
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return models.FormatCount(f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    MetricTitle(series.Metric),
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("4F46E5"),
					StrokeWidth: 2,
				},
			},
		},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteReport prints a plain-text dashboard for one result.
func WriteReport(w io.Writer, res *pipeline.Result, lastN int) {
	q := res.Query
	fmt.Fprintf(w, "COVID-19 Analytics: %s (%s source, data as of %s)\n", q.Entity, q.Variant, res.Summary.Date)
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-20s %s\n", "Total Cases", res.Formatted.TotalCases)
	fmt.Fprintf(w, "  %-20s %s\n", "Total Deaths", res.Formatted.TotalDeaths)
	fmt.Fprintf(w, "  %-20s %s\n", "People Vaccinated", res.Formatted.PeopleVaccinated)
	fmt.Fprintf(w, "  %-20s %s\n", "Total Tests", res.Formatted.TotalTests)

	fmt.Fprintf(w, "\n%s\n", SectionTitle(q.Metric, q.Entity))
	points := res.Series.Points
	if lastN > 0 && len(points) > lastN {
		points = points[len(points)-lastN:]
	}
	if len(points) == 0 {
		fmt.Fprintln(w, "  (no data)")
	}
	for _, p := range points {
		fmt.Fprintf(w, "  %s  %s\n", p.Date.Format("2006-01-02"), models.FormatCount(p.Value))
	}

	fmt.Fprintln(w, "\nCorrelation Heatmap — Country Level")
	if res.Correlation == nil {
		fmt.Fprintf(w, "  %s\n", res.CorrelationNote)
		return
	}
	m := res.Correlation
	fmt.Fprintf(w, "  %-18s", "")
	for _, f := range m.Fields {
		fmt.Fprintf(w, " %8.8s", f)
	}
	fmt.Fprintln(w)
	for i, row := range m.Fields {
		fmt.Fprintf(w, "  %-18s", row)
		for j := range m.Fields {
			if v, ok := m.At(i, j); ok {
				fmt.Fprintf(w, " %8.2f", v)
			} else {
				fmt.Fprintf(w, " %8s", "n/a")
			}
		}
		fmt.Fprintln(w)
	}
}
