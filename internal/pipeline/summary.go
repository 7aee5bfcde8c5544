package pipeline

import (
	"github.com/rewired-gh/covidboard/internal/models"
)

// Summarize reads the four headline numbers from the chronologically last record.
// sel must be non-empty, which Select guarantees.
func Summarize(sel *models.Selection) models.Summary {
	last := sel.Last()
	return models.Summary{
		Date:             last.Date.Format("2006-01-02"),
		TotalCases:       valueOrDefault(last, models.MetricTotalCases),
		TotalDeaths:      valueOrDefault(last, models.MetricTotalDeaths),
		PeopleVaccinated: valueOrDefault(last, models.MetricPeopleVaccinated),
		TotalTests:       valueOrDefault(last, models.MetricTotalTests),
	}
}

// valueOrDefault is the single default-substitution rule: absent, NaN and
// negative values become 0.
func valueOrDefault(r models.Record, metric string) float64 {
	v, ok := r.Value(metric)
	if !ok || v < 0 {
		return 0
	}
	return v
}
