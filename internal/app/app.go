// Package app wires configuration into a ready-to-run pipeline.
package app

import (
	"github.com/rewired-gh/covidboard/internal/cache"
	"github.com/rewired-gh/covidboard/internal/config"
	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/owid"
	"github.com/rewired-gh/covidboard/internal/pipeline"
)

// NewPipeline builds the OWID client, caches and pipeline described by cfg.
func NewPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	variant, err := models.ParseVariant(cfg.Pipeline.DefaultSource, models.PerEntity)
	if err != nil {
		return nil, err
	}

	client := owid.NewClient(cfg.OWID.BaseURL, cfg.OWID.Timeout, owid.ClientConfig{
		BulkPath:            cfg.OWID.BulkPath,
		MaxRetries:          cfg.OWID.MaxRetries,
		RetryDelayBase:      cfg.OWID.RetryDelayBase,
		DatePolicy:          owid.DatePolicy(cfg.OWID.DatePolicy),
		MaxIdleConns:        cfg.OWID.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.OWID.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.OWID.IdleConnTimeout,
	})

	src := pipeline.NewSource(client,
		cache.New[*models.Table](cfg.Cache.TTL),
		cache.New[[]string](cfg.Cache.TTL),
	)

	return pipeline.New(src, pipeline.Config{
		DefaultVariant:    variant,
		DefaultEntity:     cfg.Pipeline.DefaultEntity,
		Metrics:           cfg.Pipeline.Metrics,
		CorrelationFields: cfg.Pipeline.CorrelationFields,
	}), nil
}
