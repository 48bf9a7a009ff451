package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	activitiesCreatedTotal *prometheus.CounterVec
	activitiesDeletedTotal *prometheus.CounterVec
	pointsAppliedTotal     *prometheus.CounterVec
	pollerCourseRunsTotal  *prometheus.CounterVec
	pollerCourseSeconds    prometheus.Histogram
	scoreRecalcTotal       *prometheus.CounterVec
	leaderboardCacheTotal  *prometheus.CounterVec
	realtimeClientsActive  prometheus.Gauge
	digestBatchesTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exported by the API and poller.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "suitec_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		activitiesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_activities_created_total",
			Help: "Ledger activities inserted, by type.",
		}, []string{"type"})

		activitiesDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_activities_deleted_total",
			Help: "Ledger activities removed, by type.",
		}, []string{"type"})

		pointsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_points_applied_total",
			Help: "Absolute points applied to user totals, by direction.",
		}, []string{"direction"})

		pollerCourseRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_poller_course_runs_total",
			Help: "Poller course passes, by outcome.",
		}, []string{"status"})

		pollerCourseSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "suitec_poller_course_seconds",
			Help:    "Wall-clock time spent reconciling one course.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		})

		scoreRecalcTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_score_recalculations_total",
			Help: "Course-wide score recalculations, by kind.",
		}, []string{"kind"})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_leaderboard_cache_total",
			Help: "Leaderboard cache lookups, by result.",
		}, []string{"result"})

		realtimeClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "suitec_realtime_clients_active",
			Help: "Connected websocket clients receiving point updates.",
		})

		digestBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suitec_digest_batches_total",
			Help: "Digest batches handed to the notification dispatcher, by frequency.",
		}, []string{"frequency"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			activitiesCreatedTotal, activitiesDeletedTotal, pointsAppliedTotal,
			pollerCourseRunsTotal, pollerCourseSeconds, scoreRecalcTotal,
			leaderboardCacheTotal, realtimeClientsActive, digestBatchesTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

func ActivitiesCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return activitiesCreatedTotal
}

func ActivitiesDeleted() *prometheus.CounterVec {
	RegisterMetrics()
	return activitiesDeletedTotal
}

// PointsApplied counts absolute point movement; direction is "credit" or "debit".
func PointsApplied() *prometheus.CounterVec {
	RegisterMetrics()
	return pointsAppliedTotal
}

func PollerCourseRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return pollerCourseRunsTotal
}

func PollerCourseDuration() prometheus.Histogram {
	RegisterMetrics()
	return pollerCourseSeconds
}

func ScoreRecalculations() *prometheus.CounterVec {
	RegisterMetrics()
	return scoreRecalcTotal
}

// LeaderboardCache counts cache lookups; result is "hit" or "miss".
func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}

func RealtimeClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return realtimeClientsActive
}

func DigestBatches() *prometheus.CounterVec {
	RegisterMetrics()
	return digestBatchesTotal
}
