package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, viz routes dominating.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Cache hits and misses per dataset. Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend failures. Requests still succeed; data is generated instead.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache backend latency. Watch for: memcached/redis slowness.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Concurrent identical generations folded into one. Watch for: hot keys.
	RequestCoalescingHitsTotal *prometheus.CounterVec

	// Mock datasets generated (cache misses that reached the generator).
	GenerationsTotal *prometheus.CounterVec

	// Per-station query count (allow-list; others go to "other").
	QueriesByStationTotal *prometheus.CounterVec

	// Chart rendering latency. Watch for: PNG rendering dominating CPU.
	RenderDurationSeconds *prometheus.HistogramVec
	RenderErrorsTotal     *prometheus.CounterVec

	AlertsFiredTotal    *prometheus.CounterVec
	AlertsResolvedTotal prometheus.Counter
	AlertsActive        prometheus.Gauge

	// Outbound notification outcomes per channel (webhook, kafka, stream).
	NotificationsTotal          *prometheus.CounterVec
	NotificationDurationSeconds *prometheus.HistogramVec
	NotificationRetriesTotal    *prometheus.CounterVec

	// Circuit breaker state per component: 0=closed, 1=open, 2=half-open.
	CircuitBreakerStateValue       *prometheus.GaugeVec
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	EventsPublishedTotal *prometheus.CounterVec

	StreamClients       prometheus.Gauge
	StreamMessagesTotal *prometheus.CounterVec

	// Rate limit denials per limiter (global, viz).
	RateLimitDeniedTotal *prometheus.CounterVec

	SchedulerRunsTotal *prometheus.CounterVec
	ConfigReloadsTotal *prometheus.CounterVec
	ShutdownInFlight   prometheus.Gauge

	trackedStationsMu sync.RWMutex
	trackedStations   map[string]struct{}

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits per dataset",
		},
		[]string{"dataset"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses per dataset",
		},
		[]string{"dataset"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation (get, set, decode)",
		},
		[]string{"operation"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache backend latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"operation"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs that had at least one failed target",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	RequestCoalescingHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Requests that shared an in-flight generation instead of starting their own",
		},
		[]string{"dataset"},
	)
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generationsTotal",
			Help: "Mock datasets generated",
		},
		[]string{"dataset"},
	)
	QueriesByStationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queriesByStationTotal",
			Help: "Station-scoped queries (allow-list; others use station=other)",
		},
		[]string{"station"},
	)
	RenderDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "renderDurationSeconds",
			Help:    "Chart rendering latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"chart", "format"},
	)
	RenderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderErrorsTotal",
			Help: "Chart rendering failures",
		},
		[]string{"chart"},
	)
	AlertsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsFiredTotal",
			Help: "Alerts raised by the rule engine",
		},
		[]string{"pollutant"},
	)
	AlertsResolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertsResolvedTotal",
			Help: "Alerts resolved by the rule engine",
		},
	)
	AlertsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertsActive",
			Help: "Alerts currently active",
		},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificationsTotal",
			Help: "Alert notifications by channel and outcome",
		},
		[]string{"channel", "status"},
	)
	NotificationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notificationDurationSeconds",
			Help:    "Notification delivery latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
	NotificationRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificationRetriesTotal",
			Help: "Retry attempts for notification delivery",
		},
		[]string{"channel"},
	)
	CircuitBreakerStateValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventsPublishedTotal",
			Help: "Events written to the event topic",
		},
		[]string{"type", "status"},
	)
	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamClients",
			Help: "Connected websocket clients",
		},
	)
	StreamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamMessagesTotal",
			Help: "Messages broadcast to websocket clients",
		},
		[]string{"type"},
	)
	RateLimitDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
		[]string{"limiter"},
	)
	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedulerRunsTotal",
			Help: "Scheduled task runs by outcome",
		},
		[]string{"task", "status"},
	)
	ConfigReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "configReloadsTotal",
			Help: "Config file reloads by outcome",
		},
		[]string{"status"},
	)
	ShutdownInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests observed when shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RequestCoalescingHitsTotal, GenerationsTotal, QueriesByStationTotal,
		RenderDurationSeconds, RenderErrorsTotal,
		AlertsFiredTotal, AlertsResolvedTotal, AlertsActive,
		NotificationsTotal, NotificationDurationSeconds, NotificationRetriesTotal,
		CircuitBreakerStateValue, CircuitBreakerTransitionsTotal,
		EventsPublishedTotal, StreamClients, StreamMessagesTotal,
		RateLimitDeniedTotal, SchedulerRunsTotal, ConfigReloadsTotal, ShutdownInFlight,
	)
}

// RegisterTrafficGauges registers sliding-window load gauges backed by the given counters.
// Call once from main after config load; later calls are ignored.
func RegisterTrafficGauges(requests, denials func() int) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "trafficRequestsInWindow",
					Help: "Requests on the rate-limited path in the overload window",
				},
				func() float64 { return float64(requests()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "trafficDenialsInWindow",
					Help: "Rate-limit denials in the overload window",
				},
				func() float64 { return float64(denials()) },
			),
		)
	})
}

// SetCircuitBreakerStateGauge publishes the numeric state for component.
func SetCircuitBreakerStateGauge(component string, state int) {
	CircuitBreakerStateValue.WithLabelValues(component).Set(float64(state))
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, state int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	SetCircuitBreakerStateGauge(component, state)
}

// RecordShutdownInFlight records the in-flight count at shutdown start.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlight.Set(float64(n))
}

// SetTrackedStations sets the station allow-list for per-station metrics.
// Station ids outside the list are counted as "other" to bound cardinality.
func SetTrackedStations(ids []string) {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[normalizeStationForMetrics(id)] = struct{}{}
	}
	trackedStationsMu.Lock()
	trackedStations = m
	trackedStationsMu.Unlock()
}

// MetricStationLabel returns the label value for stationID: itself when tracked, else "other".
func MetricStationLabel(stationID string) string {
	id := normalizeStationForMetrics(stationID)
	trackedStationsMu.RLock()
	_, ok := trackedStations[id]
	trackedStationsMu.RUnlock()
	if ok {
		return id
	}
	return "other"
}

// RecordStationQuery increments the per-station query counter.
func RecordStationQuery(stationID string) {
	QueriesByStationTotal.WithLabelValues(MetricStationLabel(stationID)).Inc()
}

func normalizeStationForMetrics(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
