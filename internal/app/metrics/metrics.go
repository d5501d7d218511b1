package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	apiInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "escrowctl",
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight escrow API calls.",
		},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowctl",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of escrow API calls made.",
		},
		[]string{"method", "path", "status"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrowctl",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of escrow API calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	servedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowctl",
			Subsystem: "http",
			Name:      "served_requests_total",
			Help:      "Requests handled by local HTTP servers.",
		},
		[]string{"server", "method", "path", "status"},
	)

	servedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrowctl",
			Subsystem: "http",
			Name:      "served_request_duration_seconds",
			Help:      "Duration of requests handled by local HTTP servers.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"server", "method", "path"},
	)

	watchTransactions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "escrowctl",
			Subsystem: "watch",
			Name:      "transactions",
			Help:      "Watched transactions by party and progress label.",
		},
		[]string{"party", "label"},
	)

	watchChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowctl",
			Subsystem: "watch",
			Name:      "changes_total",
			Help:      "Observed transaction progress changes.",
		},
		[]string{"to"},
	)

	watchPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowctl",
			Subsystem: "watch",
			Name:      "polls_total",
			Help:      "Watcher polls by outcome.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		apiInFlight,
		apiRequests,
		apiDuration,
		servedRequests,
		servedDuration,
		watchTransactions,
		watchChanges,
		watchPolls,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentTransport wraps an outgoing transport with API call metrics.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(apiInFlight,
		roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			method := strings.ToUpper(req.Method)
			path := canonicalPath(req.URL.Path)
			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			apiRequests.WithLabelValues(method, path, status).Inc()
			apiDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return resp, err
		}))
}

// RecordServed records a request handled by one of the local servers.
func RecordServed(server, method, path, status string, duration time.Duration) {
	servedRequests.WithLabelValues(server, method, path, status).Inc()
	servedDuration.WithLabelValues(server, method, path).Observe(duration.Seconds())
}

// SetWatchCounts replaces the per-label gauges for one party.
func SetWatchCounts(party string, counts map[string]int) {
	watchTransactions.DeletePartialMatch(prometheus.Labels{"party": party})
	for label, n := range counts {
		watchTransactions.WithLabelValues(party, label).Set(float64(n))
	}
}

// RecordWatchChange counts one observed progress change.
func RecordWatchChange(to string) {
	watchChanges.WithLabelValues(to).Inc()
}

// RecordWatchPoll counts a watcher poll.
func RecordWatchPoll(success bool) {
	watchPolls.WithLabelValues(strconv.FormatBool(success)).Inc()
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// canonicalPath collapses record IDs so label cardinality stays bounded:
// /transactions/abc -> /transactions/:id, /products/remove/x -> /products/remove/:id.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch {
	case len(parts) == 1:
		return "/" + parts[0]
	case parts[1] == "remove" && len(parts) >= 3:
		return "/" + parts[0] + "/remove/:id"
	case parts[0] == "users" && (parts[1] == "login" || parts[1] == "signup" || parts[1] == "username"):
		return "/users/" + parts[1]
	case parts[0] == "auth":
		return "/auth/" + parts[1]
	case len(parts) == 2:
		return "/" + parts[0] + "/:id"
	}
	return "/" + parts[0] + "/:id/" + parts[2]
}
