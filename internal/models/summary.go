package models

import (
	"math"

	"github.com/dustin/go-humanize"
)

// Headline metric names read by the summarizer.
const (
	MetricTotalCases       = "total_cases"
	MetricTotalDeaths      = "total_deaths"
	MetricPeopleVaccinated = "people_vaccinated"
	MetricTotalTests       = "total_tests"
)

// Summary holds the four KPI tile numbers for the latest record of a selection.
// Every field is finite and non-negative; absent or NaN source values become 0.
type Summary struct {
	Date             string  `json:"date"`
	TotalCases       float64 `json:"total_cases"`
	TotalDeaths      float64 `json:"total_deaths"`
	PeopleVaccinated float64 `json:"people_vaccinated"`
	TotalTests       float64 `json:"total_tests"`
}

// FormattedSummary is Summary rendered for display with thousands grouping.
type FormattedSummary struct {
	TotalCases       string `json:"total_cases"`
	TotalDeaths      string `json:"total_deaths"`
	PeopleVaccinated string `json:"people_vaccinated"`
	TotalTests       string `json:"total_tests"`
}

// Formatted renders each field as a thousands-grouped integer string.
func (s Summary) Formatted() FormattedSummary {
	return FormattedSummary{
		TotalCases:       FormatCount(s.TotalCases),
		TotalDeaths:      FormatCount(s.TotalDeaths),
		PeopleVaccinated: FormatCount(s.PeopleVaccinated),
		TotalTests:       FormatCount(s.TotalTests),
	}
}

// FormatCount rounds v half-to-even and groups thousands: 1234567.5 -> "1,234,568".
func FormatCount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return humanize.Comma(int64(math.RoundToEven(v)))
}
