package pipeline

import (
	"sort"

	"github.com/rewired-gh/covidboard/internal/models"
)

// Select restricts the table to rows whose entity equals key (case-sensitive)
// and stable-sorts them by date ascending, so equal dates keep source order.
func Select(table *models.Table, key string) (*models.Selection, error) {
	var records []models.Record
	for _, r := range table.Records {
		if r.Entity == key {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return nil, &models.EmptySelectionError{Entity: key}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	return &models.Selection{
		Entity: key,
		Table: models.Table{
			Metrics: table.Metrics,
			Records: records,
		},
	}, nil
}

// Entities returns the distinct entity keys of the table, sorted.
func Entities(table *models.Table) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, r := range table.Records {
		if r.Entity == "" || seen[r.Entity] {
			continue
		}
		seen[r.Entity] = true
		keys = append(keys, r.Entity)
	}
	sort.Strings(keys)
	return keys
}

// DefaultEntity returns preferred if it is one of entities, else the first entity.
// Empty input yields "".
func DefaultEntity(entities []string, preferred string) string {
	for _, e := range entities {
		if e == preferred {
			return e
		}
	}
	if len(entities) == 0 {
		return ""
	}
	return entities[0]
}
