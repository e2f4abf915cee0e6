package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

// Options configures the process-wide metrics registry.
type Options struct {
	Enabled bool
	// LatencyThreshold is the API latency counted as "good" for the latency SLO.
	LatencyThreshold time.Duration
	ScrapeInterval   time.Duration
}

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	aggregateOps       *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec
	consistencyAnomaly *CounterVec

	donationTransitions *CounterVec
	donationStatus      *GaugeVec
	eventsPublished     *CounterVec
	eventsReceived      *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	latencyThreshold float64
	scrapeInterval   time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when metrics are disabled,
// and every Metrics method is a no-op on a nil receiver.
func Init(log *logger.Logger, opts Options) *Metrics {
	if !opts.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New(opts)
		if log != nil {
			log.Info("Metrics enabled")
		}
	})
	return instance
}

// New builds an independent registry. Callers other than Init are tests.
func New(opts Options) *Metrics {
	threshold := opts.LatencyThreshold
	if threshold <= 0 {
		threshold = 500 * time.Millisecond
	}
	interval := opts.ScrapeInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Metrics{
		apiRequests: NewCounterVec("ft_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ft_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("ft_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("ft_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("ft_api_requests_error_total", "Total API requests with 5xx status."),
		apiReqGood:  NewCounter("ft_api_requests_good_latency_total", "Total API requests under SLO latency threshold."),

		aggregateOps: NewHistogramVec(
			"ft_aggregate_operation_duration_seconds",
			"Aggregate write duration in seconds by operation/status.",
			[]string{"operation", "status"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		aggregateConflicts: NewCounterVec("ft_aggregate_conflicts_total", "Aggregate compare-and-set conflicts by operation.", []string{"operation"}),
		aggregateRetries:   NewCounterVec("ft_aggregate_retries_total", "Aggregate transaction retries by operation.", []string{"operation"}),
		consistencyAnomaly: NewCounterVec("ft_ledger_consistency_anomalies_total", "Campaign totals found or forced out of step with completed donations.", []string{"operation"}),

		donationTransitions: NewCounterVec("ft_donation_transitions_total", "Committed donation status transitions.", []string{"from", "to"}),
		donationStatus:      NewGaugeVec("ft_donations", "Donations by current status.", []string{"status"}),
		eventsPublished:     NewCounterVec("ft_events_published_total", "Donation events published by type/result.", []string{"type", "result"}),
		eventsReceived:      NewCounterVec("ft_events_received_total", "Donation events read back from the bus by type/to_status.", []string{"type", "to"}),

		pgStats:   NewGaugeVec("ft_db_pool", "Database pool stats.", []string{"stat"}),
		redisUp:   NewGauge("ft_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("ft_redis_ping_seconds", "Redis ping latency in seconds."),

		latencyThreshold: threshold.Seconds(),
		scrapeInterval:   interval,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.apiReqTotal,
		m.apiReqError,
		m.apiReqGood,
		m.aggregateOps,
		m.aggregateConflicts,
		m.aggregateRetries,
		m.consistencyAnomaly,
		m.donationTransitions,
		m.donationStatus,
		m.eventsPublished,
		m.eventsReceived,
		m.pgStats,
		m.redisUp,
		m.redisPing,
	}
	for _, c := range all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
	if m.latencyThreshold > 0 && dur.Seconds() <= m.latencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Observe(dur.Seconds(), orUnknown(op), orUnknown(status))
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(orUnknown(op))
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(orUnknown(op))
}

func (m *Metrics) IncConsistencyAnomaly(op string) {
	if m == nil {
		return
	}
	m.consistencyAnomaly.Inc(orUnknown(op))
}

// ConsistencyAnomalies returns the anomaly count recorded for op.
func (m *Metrics) ConsistencyAnomalies(op string) float64 {
	if m == nil {
		return 0
	}
	return m.consistencyAnomaly.Value(orUnknown(op))
}

func (m *Metrics) IncDonationTransition(from, to string) {
	if m == nil {
		return
	}
	m.donationTransitions.Inc(orUnknown(from), orUnknown(to))
}

func (m *Metrics) IncEventPublished(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.eventsPublished.Inc(orUnknown(eventType), result)
}

func (m *Metrics) IncEventReceived(eventType, to string) {
	if m == nil {
		return
	}
	m.eventsReceived.Inc(orUnknown(eventType), orUnknown(to))
}

func (m *Metrics) EventsReceived(eventType, to string) float64 {
	if m == nil {
		return 0
	}
	return m.eventsReceived.Value(orUnknown(eventType), orUnknown(to))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

// StartDonationStatusCollector periodically samples donation counts per status.
func (m *Metrics) StartDonationStatusCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.CollectDonationStatus(ctx, db); err != nil && log != nil {
					log.Warn("metrics: donation status query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) CollectDonationStatus(ctx context.Context, db *gorm.DB) error {
	if m == nil || db == nil {
		return nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&ledger.Donation{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range ledger.Statuses() {
		m.donationStatus.Set(0, string(s))
	}
	for _, row := range rows {
		m.donationStatus.Set(float64(row.Count), orUnknown(row.Status))
	}
	return nil
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
