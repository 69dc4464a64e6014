// Package metrics collects and exposes Prometheus metrics for the session
// gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the interface the auth layer records through. A no-op
// implementation is available for tests.
type Collector interface {
	RecordSessionLookup(result string)
	RecordTokenRefresh(outcome string)
}

// Session lookup results.
const (
	LookupHit          = "hit"
	LookupMiss         = "miss"
	LookupMalformed    = "malformed"
	LookupUnauthorized = "unauthorized"
)

// Token refresh outcomes.
const (
	RefreshSuccess     = "success"
	RefreshFailed      = "failed"
	RefreshNoToken     = "no_refresh_token"
	RefreshLockSkipped = "lock_skipped"
	RefreshExpired     = "expired"
)

// PrometheusCollector registers and records gateway metrics.
type PrometheusCollector struct {
	registry       *prometheus.Registry
	sessionLookups *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		sessionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_gateway_session_lookups_total",
			Help: "Session store lookups by result",
		}, []string{"result"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_gateway_token_refreshes_total",
			Help: "Upstream access-token refresh attempts by outcome",
		}, []string{"outcome"}),
	}
	c.registry.MustRegister(c.sessionLookups, c.tokenRefreshes)
	return c
}

func (c *PrometheusCollector) RecordSessionLookup(result string) {
	c.sessionLookups.WithLabelValues(result).Inc()
}

func (c *PrometheusCollector) RecordTokenRefresh(outcome string) {
	c.tokenRefreshes.WithLabelValues(outcome).Inc()
}

// Handler serves the /metrics endpoint for this collector's registry.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// NopCollector discards all recordings.
type NopCollector struct{}

var _ Collector = NopCollector{}

func (NopCollector) RecordSessionLookup(string) {}
func (NopCollector) RecordTokenRefresh(string)  {}
