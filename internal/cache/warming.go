package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// WarmTarget is one station/pollutant pair to prefetch.
type WarmTarget struct {
	StationID string
	Pollutant string
}

func (t WarmTarget) String() string {
	return t.StationID + "/" + t.Pollutant
}

// Prefetcher is implemented by the service layer to populate the cache for a target.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type Prefetcher interface {
	Prefetch(ctx context.Context, target WarmTarget) error
}

// CacheWarmer warms the cache by prefetching the datasets behind common queries.
type CacheWarmer struct {
	prefetcher  Prefetcher
	logger      *zap.Logger
	concurrency int
}

// NewCacheWarmer creates a CacheWarmer. concurrency bounds parallel prefetches; <=0 means 4.
func NewCacheWarmer(prefetcher Prefetcher, logger *zap.Logger, concurrency int) *CacheWarmer {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{prefetcher: prefetcher, logger: logger, concurrency: concurrency}
}

// Warm prefetches every target. A failed target does not stop the others;
// failures are aggregated into the returned error.
func (w *CacheWarmer) Warm(ctx context.Context, targets []WarmTarget) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("targets", len(targets)))

	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			if err := w.prefetcher.Prefetch(ctx, t); err != nil {
				errs[i] = fmt.Errorf("warm %s: %w", t, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("targets", len(targets)),
		zap.Int("errors", len(failed)),
		zap.Float64("duration_seconds", duration),
	)
	if len(failed) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", failed)
	}
	return nil
}

// Targets expands stations x pollutants into warm targets.
func Targets(stationIDs, pollutants []string) []WarmTarget {
	out := make([]WarmTarget, 0, len(stationIDs)*len(pollutants))
	for _, s := range stationIDs {
		for _, p := range pollutants {
			out = append(out, WarmTarget{StationID: s, Pollutant: p})
		}
	}
	return out
}
