package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Workflow metrics
	caseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "case_transitions_total",
			Help: "Total number of case status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	casesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cases_created_total",
			Help: "Total number of cases created",
		},
		[]string{"origin", "crime_level"},
	)

	suspectTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suspect_transitions_total",
			Help: "Total number of suspect status transitions",
		},
		[]string{"from_status", "to_status", "trigger"},
	)

	rewardReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_reports_total",
			Help: "Total number of reward report status changes",
		},
		[]string{"status"},
	)

	rewardAmountApproved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reward_amount_approved_total",
			Help: "Sum of approved reward amounts in the smallest currency unit",
		},
	)

	rewardPayouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_payouts_total",
			Help: "Total number of reward payouts",
		},
		[]string{"channel"},
	)

	mostWantedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "most_wanted_entries",
			Help: "Number of groups in the last computed most-wanted ranking",
		},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource_type", "action", "decision"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath replaces ID-like segments with a placeholder to keep label
// cardinality bounded.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if len(seg) == 36 && strings.Count(seg, "-") == 4 {
		return true
	}
	if len(seg) < 6 {
		return false
	}
	for _, c := range seg {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// --- Workflow metric helpers ---

// RecordCaseCreated records a case creation
func RecordCaseCreated(origin string, crimeLevel int) {
	casesCreated.WithLabelValues(origin, strconv.Itoa(crimeLevel)).Inc()
}

// RecordCaseTransition records a case status change
func RecordCaseTransition(fromStatus, toStatus string) {
	caseTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordSuspectTransition records a suspect status change and what caused it
func RecordSuspectTransition(fromStatus, toStatus, trigger string) {
	suspectTransitions.WithLabelValues(fromStatus, toStatus, trigger).Inc()
}

// RecordRewardStatus records a reward report entering a status
func RecordRewardStatus(status string) {
	rewardReports.WithLabelValues(status).Inc()
}

// RecordRewardApproved adds an approved amount
func RecordRewardApproved(amount int64) {
	rewardAmountApproved.Add(float64(amount))
}

// RecordRewardPayout records a payout by channel ("desk" or "gateway")
func RecordRewardPayout(channel string) {
	rewardPayouts.WithLabelValues(channel).Inc()
}

// SetMostWantedEntries publishes the size of the latest ranking
func SetMostWantedEntries(n int) {
	mostWantedEntries.Set(float64(n))
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(resourceType, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(resourceType, action, decision).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
