package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/curaview/patient-portal/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Token metrics

	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "tokens_issued_total",
		Help:      "Auth tokens issued, by scope kind.",
	}, []string{"scope"})

	SessionVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "session_verifications_total",
		Help:      "Session cookie verifications, by outcome.",
	}, []string{"outcome"})

	// Email metrics

	EmailsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "emails_sent_total",
		Help:      "Outgoing emails, by outcome.",
	}, []string{"outcome"})

	// Maintenance metrics

	TokensPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "tokens_pruned_total",
		Help:      "Expired auth tokens removed by the pruner.",
	})

	PruneCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "prune_cycle_duration_seconds",
		Help:      "Time taken for one prune cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portal",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portal",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		TokensIssuedTotal,
		SessionVerificationsTotal,
		EmailsSentTotal,
		TokensPrunedTotal,
		PruneCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness and readiness probes on the
// internal port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, checker.Liveness(r.Context()), http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeResult(w, result, status)
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeResult(w http.ResponseWriter, result health.HealthResult, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}
