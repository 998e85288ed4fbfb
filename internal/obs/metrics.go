package obs

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh token rotations by outcome.",
		},
		[]string{"result"},
	)

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "download_redemptions_total",
			Help: "Download link redemptions by outcome.",
		},
		[]string{"result"},
	)

	grantsIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "download_grants_issued_total",
		Help: "Download links issued.",
	})

	registerOnce sync.Once
)

// Init registers the collectors in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			refreshTotal,
			redemptionsTotal,
			grantsIssuedTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RequestStarted() {
	httpInFlight.Inc()
}

func RequestFinished(method, route, status string, elapsed time.Duration) {
	httpInFlight.Dec()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
}

func ObserveRefresh(result string) {
	refreshTotal.WithLabelValues(result).Inc()
}

func ObserveRedemption(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}

func ObserveGrantsIssued(n int) {
	grantsIssuedTotal.Add(float64(n))
}
