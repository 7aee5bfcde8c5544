// Package warmup keeps the default entity's table fresh in the cache so the
// first dashboard request after a TTL expiry does not pay for the download.
// Refreshes replace entries in place rather than invalidating them first.
package warmup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/pipeline"
)

// Warmer refreshes the default query's table and the entity list.
type Warmer struct {
	pipe     *pipeline.Pipeline
	interval time.Duration
	timeout  time.Duration
}

// New creates a Warmer. An interval of 0 disables scheduling.
func New(pipe *pipeline.Pipeline, interval, timeout time.Duration) *Warmer {
	return &Warmer{pipe: pipe, interval: interval, timeout: timeout}
}

// Refresh reloads the default table and entity list. The cached entries are
// replaced only by successful fetches; a failed refresh leaves them in place.
func (w *Warmer) Refresh(ctx context.Context) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	src := w.pipe.Source()
	variant := w.pipe.Config().DefaultVariant

	// A bulk descriptor names no entity, so only per-entity needs resolving.
	d := models.Descriptor{Variant: models.Bulk}
	if variant == models.PerEntity {
		q, err := w.pipe.Resolve(ctx, pipeline.Query{Variant: variant})
		if err != nil {
			return fmt.Errorf("resolve default query: %w", err)
		}
		d = pipeline.Descriptor(q)
	}

	if _, err := src.Reload(ctx, d); err != nil {
		return fmt.Errorf("reload %s: %w", d, err)
	}

	// The bulk entity list is derived from the bulk table just reloaded.
	if variant == models.PerEntity {
		if _, err := src.ReloadEntityList(ctx); err != nil {
			return fmt.Errorf("reload entity list: %w", err)
		}
	}
	return nil
}

// Start runs Refresh every interval until ctx is cancelled. The first
// refresh runs immediately. Start blocks.
func (w *Warmer) Start(ctx context.Context) error {
	if w.interval <= 0 {
		logger.Debug("Cache warm-up disabled")
		return nil
	}

	scheduler := gocron.NewScheduler(time.UTC)
	logger.Info("Starting cache warm-up every %v", w.interval)

	_, err := scheduler.Every(w.interval).Do(func() {
		start := time.Now()
		if err := w.Refresh(ctx); err != nil {
			logger.Warn("Cache warm-up failed: %v", err)
			return
		}
		logger.Debug("Cache warm-up completed in %v", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule warm-up: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	logger.Info("Cache warm-up stopped")
	return nil
}
