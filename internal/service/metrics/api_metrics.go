package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    APILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "finrank",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of recommendation API endpoints",
            Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
        },
        []string{"endpoint"},
    )

    APIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "finrank",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by API endpoint and code",
        },
        []string{"endpoint", "code"},
    )

    APIRateLimited = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "finrank",
            Subsystem: "api",
            Name:      "rate_limited_total",
            Help:      "Requests rejected by the per-client limiter",
        },
        []string{"endpoint"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(APILatency, APIErrors, APIRateLimited)
    })
}
