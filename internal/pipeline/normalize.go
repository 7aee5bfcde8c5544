package pipeline

import (
	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/owid"
)

// keyColumns lists the accepted entity key columns per variant, preferred first.
var keyColumns = map[models.Variant][]string{
	models.PerEntity: {owid.CountryColumn, owid.LocationColumn},
	models.Bulk:      {owid.LocationColumn, owid.CountryColumn},
}

// Normalize maps a raw table onto the canonical schema: every record carries its
// entity key and the key column is dropped from the metric list.
// The raw table is not modified; its value maps are shared with the result.
func Normalize(raw *owid.RawTable, variant models.Variant) (*models.Table, error) {
	candidates, ok := keyColumns[variant]
	if !ok {
		return nil, &models.SchemaError{Variant: variant, Want: []string{owid.CountryColumn, owid.LocationColumn}}
	}

	keyColumn := ""
	for _, c := range candidates {
		if raw.HasColumn(c) {
			keyColumn = c
			break
		}
	}
	if keyColumn == "" {
		return nil, &models.SchemaError{Variant: variant, Want: candidates}
	}

	metrics := make([]string, 0, len(raw.MetricColumns))
	for _, m := range raw.MetricColumns {
		if m != keyColumn {
			metrics = append(metrics, m)
		}
	}

	table := &models.Table{
		Metrics: metrics,
		Records: make([]models.Record, 0, len(raw.Rows)),
	}
	for _, row := range raw.Rows {
		table.Records = append(table.Records, models.Record{
			Entity: row.Text[keyColumn],
			Date:   row.Date,
			Values: row.Values,
		})
	}
	return table, nil
}
