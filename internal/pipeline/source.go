package pipeline

import (
	"context"
	"fmt"

	"github.com/rewired-gh/covidboard/internal/cache"
	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/owid"
)

// Fetcher retrieves raw tables. *owid.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, d models.Descriptor) (*owid.RawTable, error)
	FetchEntityList(ctx context.Context) ([]string, error)
}

const entityListKey = "entities:" + string(models.PerEntity)

// Source loads normalized tables through a cache keyed by descriptor.
type Source struct {
	fetcher  Fetcher
	tables   *cache.Cache[*models.Table]
	entities *cache.Cache[[]string]
}

// NewSource wires a fetcher to the given caches.
func NewSource(f Fetcher, tables *cache.Cache[*models.Table], entities *cache.Cache[[]string]) *Source {
	return &Source{fetcher: f, tables: tables, entities: entities}
}

// Load returns the normalized table for d, fetching it on a cache miss.
// The boolean reports a cache hit. A failed fetch leaves the cache unset for d.
func (s *Source) Load(ctx context.Context, d models.Descriptor) (*models.Table, bool, error) {
	if err := d.Validate(); err != nil {
		return nil, false, err
	}
	return s.tables.GetOrLoad(ctx, d.Key(), func(ctx context.Context) (*models.Table, error) {
		return s.fetch(ctx, d)
	})
}

// Reload fetches d afresh and replaces the cached table only on success, so a
// failed refresh keeps serving the previous snapshot.
func (s *Source) Reload(ctx context.Context, d models.Descriptor) (*models.Table, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	table, err := s.fetch(ctx, d)
	if err != nil {
		return nil, err
	}
	s.tables.Put(d.Key(), table)
	return table, nil
}

// ReloadEntityList refreshes the per-entity list, keeping the old one on failure.
func (s *Source) ReloadEntityList(ctx context.Context) ([]string, error) {
	keys, err := s.fetcher.FetchEntityList(ctx)
	if err != nil {
		return nil, err
	}
	s.entities.Put(entityListKey, keys)
	return keys, nil
}

func (s *Source) fetch(ctx context.Context, d models.Descriptor) (*models.Table, error) {
	logger.Info("Fetching %s from OWID", d)
	raw, err := s.fetcher.Fetch(ctx, d)
	if err != nil {
		return nil, err
	}
	table, err := Normalize(raw, d.Variant)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %s: %d records, %d metrics, %d rows skipped", d, table.Len(), len(table.Metrics), raw.SkippedRows)
	return table, nil
}

// EntityList returns the selectable entity keys for a variant.
// per_entity reads the latest snapshot; bulk lists the distinct locations of the bulk table.
func (s *Source) EntityList(ctx context.Context, variant models.Variant) ([]string, error) {
	switch variant {
	case models.PerEntity:
		keys, _, err := s.entities.GetOrLoad(ctx, entityListKey, s.fetcher.FetchEntityList)
		return keys, err
	case models.Bulk:
		table, _, err := s.Load(ctx, models.Descriptor{Variant: models.Bulk})
		if err != nil {
			return nil, err
		}
		return Entities(table), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}

// Invalidate drops the cached table for d.
func (s *Source) Invalidate(d models.Descriptor) {
	s.tables.Invalidate(d.Key())
	if d.Variant == models.PerEntity && d.Entity == "" {
		s.entities.Invalidate(entityListKey)
	}
}

// Purge drops every cached table and entity list.
func (s *Source) Purge() {
	s.tables.Purge()
	s.entities.Purge()
}

// CacheStats reports table cache counters.
func (s *Source) CacheStats() cache.Stats {
	return s.tables.Stats()
}
