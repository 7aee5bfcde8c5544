// Package pipeline turns fetched OWID tables into dashboard data.
//
// A run goes fetch-or-cache -> normalize -> select -> summarize -> correlate.
// Every step after the fetch is pure, in-memory and linear in the number of rows,
// so a run is synchronous and only the fetch honours cancellation.
//
// Use Pipeline.Run to execute one user query; the individual steps (Normalize,
// Select, Summarize, Correlate) are exported for reuse and testing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
)

// Config holds the externally supplied pipeline constants.
type Config struct {
	DefaultVariant    models.Variant
	DefaultEntity     string
	Metrics           []string
	CorrelationFields []string
}

// Query is one user interaction: which source, which entity, which metric.
type Query struct {
	Variant models.Variant `json:"source"`
	Entity  string         `json:"entity"`
	Metric  string         `json:"metric"`
}

// Result is everything the presentation layer needs for one query.
type Result struct {
	RunID           string                    `json:"run_id"`
	Query           Query                     `json:"query"`
	Summary         models.Summary            `json:"summary"`
	Formatted       models.FormattedSummary   `json:"formatted"`
	Series          models.Series             `json:"series"`
	Correlation     *models.CorrelationMatrix `json:"correlation,omitempty"`
	CorrelationNote string                    `json:"correlation_note,omitempty"`
	Rows            int                       `json:"rows"`
	CacheHit        bool                      `json:"cache_hit"`
}

// Pipeline executes queries against a Source.
type Pipeline struct {
	source *Source
	cfg    Config
}

// New creates a Pipeline.
func New(source *Source, cfg Config) *Pipeline {
	if cfg.DefaultVariant == "" {
		cfg.DefaultVariant = models.PerEntity
	}
	return &Pipeline{source: source, cfg: cfg}
}

// Config returns the pipeline constants.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Source returns the underlying table source.
func (p *Pipeline) Source() *Source {
	return p.source
}

// Resolve fills defaults into q and validates the metric.
// An empty entity becomes the default among the variant's selectable entities,
// so bulk queries default to a location name and per-entity queries to a code.
func (p *Pipeline) Resolve(ctx context.Context, q Query) (Query, error) {
	if q.Variant == "" {
		q.Variant = p.cfg.DefaultVariant
	}
	if q.Metric == "" && len(p.cfg.Metrics) > 0 {
		q.Metric = p.cfg.Metrics[0]
	}
	if !p.selectable(q.Metric) {
		return q, fmt.Errorf("%w: %q", models.ErrUnknownMetric, q.Metric)
	}
	if q.Entity == "" {
		entity, err := p.defaultEntity(ctx, q.Variant)
		if err != nil {
			return q, err
		}
		q.Entity = entity
	}
	if q.Entity == "" {
		return q, &models.EmptySelectionError{Entity: q.Entity}
	}
	return q, nil
}

// defaultEntity picks the configured default if the variant offers it, else
// the first selectable entity. A failed per-entity list falls back to the
// configured default; the bulk list is the bulk table itself, so its error is returned.
func (p *Pipeline) defaultEntity(ctx context.Context, variant models.Variant) (string, error) {
	keys, err := p.source.EntityList(ctx, variant)
	if err != nil {
		if variant == models.Bulk {
			return "", err
		}
		logger.Warn("Entity list unavailable, using configured default %q: %v", p.cfg.DefaultEntity, err)
		return p.cfg.DefaultEntity, nil
	}
	if def := DefaultEntity(keys, p.cfg.DefaultEntity); def != "" {
		return def, nil
	}
	return p.cfg.DefaultEntity, nil
}

// Descriptor maps a resolved query to the table it needs.
func Descriptor(q Query) models.Descriptor {
	if q.Variant == models.Bulk {
		return models.Descriptor{Variant: models.Bulk}
	}
	return models.Descriptor{Variant: models.PerEntity, Entity: q.Entity}
}

// Run executes one query.
func (p *Pipeline) Run(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()

	q, err := p.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	logger.Debug("[%s] Running query source=%s entity=%s metric=%s", runID, q.Variant, q.Entity, q.Metric)

	table, hit, err := p.source.Load(ctx, Descriptor(q))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", Descriptor(q), err)
	}

	sel, err := Select(table, q.Entity)
	if err != nil {
		return nil, err
	}

	summary := Summarize(sel)
	result := &Result{
		RunID:     runID,
		Query:     q,
		Summary:   summary,
		Formatted: summary.Formatted(),
		Series:    sel.SeriesOf(q.Metric),
		Rows:      sel.Len(),
		CacheHit:  hit,
	}

	matrix, err := Correlate(sel, p.cfg.CorrelationFields)
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		result.CorrelationNote = "Not enough numeric columns available for correlation matrix."
	case err != nil:
		return nil, err
	default:
		result.Correlation = matrix
	}

	logger.Info("[%s] %s/%s: %d rows, %d points, cache_hit=%v in %v",
		runID, q.Entity, q.Metric, result.Rows, len(result.Series.Points), hit, time.Since(start))
	return result, nil
}

// Entities returns the selectable entities for a variant and the default among them.
func (p *Pipeline) Entities(ctx context.Context, variant models.Variant) ([]string, string, error) {
	if variant == "" {
		variant = p.cfg.DefaultVariant
	}
	keys, err := p.source.EntityList(ctx, variant)
	if err != nil {
		return nil, "", err
	}
	return keys, DefaultEntity(keys, p.cfg.DefaultEntity), nil
}

func (p *Pipeline) selectable(metric string) bool {
	for _, m := range p.cfg.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}
