package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/air-quality-service/internal/cache"
	"github.com/kjstillabower/air-quality-service/internal/mockdata"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// ErrStationNotFound is returned for unknown station ids.
var ErrStationNotFound = mockdata.ErrStationNotFound

// Datasets, used as cache-key prefixes and metric labels.
const (
	datasetForecast    = "forecast"
	datasetTimeseries  = "timeseries"
	datasetRisk        = "risk"
	datasetAttribution = "attribution"
)

// AirQualityService serves mock air-quality datasets using the cache-aside pattern.
// Concurrent misses for the same key share one generation.
type AirQualityService struct {
	gen     *mockdata.Generator
	catalog *mockdata.Catalog
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewAirQualityService creates the service. ttl bounds how long an encoded dataset
// is cached; entries never outlive the hour they were generated in, since keys carry
// the hour bucket.
func NewAirQualityService(gen *mockdata.Generator, catalog *mockdata.Catalog, c cache.Cache, ttl time.Duration, logger *zap.Logger) *AirQualityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AirQualityService{gen: gen, catalog: catalog, cache: c, ttl: ttl, logger: logger}
}

// Catalog returns the station catalog.
func (s *AirQualityService) Catalog() *mockdata.Catalog {
	return s.catalog
}

// Stations lists catalog stations, optionally filtered by region and paged.
func (s *AirQualityService) Stations(ctx context.Context, region string, limit, offset int) []models.Station {
	return s.catalog.List(region, limit, offset)
}

// Station returns one station or ErrStationNotFound.
func (s *AirQualityService) Station(ctx context.Context, stationID string) (models.Station, error) {
	st, err := s.catalog.Get(stationID)
	if err != nil {
		return models.Station{}, fmt.Errorf("station %q: %w", stationID, err)
	}
	return st, nil
}

// Forecasts returns hourly forecasts for the next hours. An empty stationID means the default station.
func (s *AirQualityService) Forecasts(ctx context.Context, stationID, pollutant string, hours int) (models.ForecastResponse, error) {
	st, err := s.resolve(stationID)
	if err != nil {
		return models.ForecastResponse{}, err
	}
	key := s.key(datasetForecast, st.StationID, pollutant, strconv.Itoa(hours))
	return load(ctx, s, datasetForecast, key, func() models.ForecastResponse {
		return models.ForecastResponse{
			StationID: st.StationID,
			Pollutant: pollutant,
			Units:     validation.Units(pollutant),
			Horizon:   strconv.Itoa(hours) + "h",
			Forecasts: s.gen.Forecasts(st.StationID, pollutant, hours),
		}
	})
}

// Timeseries returns hourly readings covering the last hours, oldest first.
func (s *AirQualityService) Timeseries(ctx context.Context, stationID, pollutant string, hours int) (models.TimeSeriesResponse, error) {
	st, err := s.resolve(stationID)
	if err != nil {
		return models.TimeSeriesResponse{}, err
	}
	key := s.key(datasetTimeseries, st.StationID, pollutant, strconv.Itoa(hours))
	return load(ctx, s, datasetTimeseries, key, func() models.TimeSeriesResponse {
		return models.TimeSeriesResponse{
			StationID: st.StationID,
			Pollutant: pollutant,
			Units:     validation.Units(pollutant),
			Series:    s.gen.Timeseries(st.StationID, pollutant, hours),
		}
	})
}

// RiskSummary returns the regional risk scores. An empty region means the default region.
func (s *AirQualityService) RiskSummary(ctx context.Context, region string) (models.RiskSummaryResponse, error) {
	if region == "" {
		region = mockdata.DefaultRegion
	}
	key := s.key(datasetRisk, strings.ToLower(region))
	return load(ctx, s, datasetRisk, key, func() models.RiskSummaryResponse {
		return s.gen.RiskSummary(region)
	})
}

// Attribution returns the source apportionment for a pollutant at a station.
func (s *AirQualityService) Attribution(ctx context.Context, stationID, pollutant string) (models.AttributionResponse, error) {
	st, err := s.resolve(stationID)
	if err != nil {
		return models.AttributionResponse{}, err
	}
	key := s.key(datasetAttribution, st.StationID, pollutant)
	return load(ctx, s, datasetAttribution, key, func() models.AttributionResponse {
		return s.gen.Attribution(st.StationID, pollutant)
	})
}

// Prefetch implements cache.Prefetcher: it loads the datasets behind the
// dashboard's default queries for one station and pollutant.
func (s *AirQualityService) Prefetch(ctx context.Context, t cache.WarmTarget) error {
	if _, err := s.Forecasts(ctx, t.StationID, t.Pollutant, 24); err != nil {
		return err
	}
	if _, err := s.Timeseries(ctx, t.StationID, t.Pollutant, 24); err != nil {
		return err
	}
	if _, err := s.Timeseries(ctx, t.StationID, t.Pollutant, 48); err != nil {
		return err
	}
	_, err := s.Attribution(ctx, t.StationID, t.Pollutant)
	return err
}

func (s *AirQualityService) resolve(stationID string) (models.Station, error) {
	st, err := s.catalog.Resolve(stationID)
	if err != nil {
		return models.Station{}, fmt.Errorf("station %q: %w", stationID, err)
	}
	observability.RecordStationQuery(st.StationID)
	return st, nil
}

// key builds "<dataset>:<hour>:<parts...>". The hour bucket keeps cached data
// aligned with what the generator produces for that hour.
func (s *AirQualityService) key(dataset string, parts ...string) string {
	return dataset + ":" + strconv.FormatInt(s.gen.Hour().Unix(), 10) + ":" + strings.Join(parts, ":")
}

// load is the cache-aside read path shared by every dataset. Cache failures are
// logged and counted but never fail the request.
func load[T any](ctx context.Context, s *AirQualityService, dataset, key string, generate func() T) (T, error) {
	start := time.Now()
	logger := observability.LoggerFrom(ctx, s.logger)

	if v, ok := s.cacheGet(ctx, logger, dataset, key); ok {
		var out T
		err := json.Unmarshal(v, &out)
		if err == nil {
			observability.CacheHitsTotal.WithLabelValues(dataset).Inc()
			logger.Debug("dataset served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
			return out, nil
		}
		observability.CacheErrorsTotal.WithLabelValues("decode").Inc()
		logger.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
	}
	observability.CacheMissesTotal.WithLabelValues(dataset).Inc()

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		observability.GenerationsTotal.WithLabelValues(dataset).Inc()
		data := generate()
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", dataset, err)
		}
		s.cacheSet(context.WithoutCancel(ctx), logger, key, raw)
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		observability.RequestCoalescingHitsTotal.WithLabelValues(dataset).Inc()
	}
	logger.Debug("dataset served", zap.String("key", key), zap.Bool("cached", false), zap.Bool("shared", shared), zap.Duration("duration", time.Since(start)))
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.New("unexpected generation result type")
	}
	return out, nil
}

func (s *AirQualityService) cacheGet(ctx context.Context, logger *zap.Logger, dataset, key string) ([]byte, bool) {
	getStart := time.Now()
	v, ok, err := s.cache.Get(ctx, key)
	observability.CacheOperationDurationSeconds.WithLabelValues("get").Observe(time.Since(getStart).Seconds())
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.String("category", categorizeCacheError(err)), zap.Error(err))
		return nil, false
	}
	return v, ok
}

func (s *AirQualityService) cacheSet(ctx context.Context, logger *zap.Logger, key string, raw []byte) {
	setStart := time.Now()
	err := s.cache.Set(ctx, key, raw, s.ttl)
	observability.CacheOperationDurationSeconds.WithLabelValues("set").Observe(time.Since(setStart).Seconds())
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		logger.Warn("cache set failed", zap.String("key", key), zap.String("category", categorizeCacheError(err)), zap.Error(err))
	}
}

// categorizeCacheError returns a stable label for cache errors (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
