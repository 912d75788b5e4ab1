package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GatewayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ping_client_gateway_requests_total",
		Help: "Total number of API requests by method and outcome",
	}, []string{"method", "outcome"})
	GatewayRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ping_client_gateway_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	HubConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ping_client_hub_connected",
		Help: "1 while the realtime hub holds a live broker connection",
	})
	HubReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ping_client_hub_reconnects_total",
		Help: "Total number of broker dial attempts after the first",
	})
	HubEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ping_client_hub_events_total",
		Help: "Total number of push events delivered to subscribers",
	}, []string{"family"})
)

func init() {
	prometheus.MustRegister(GatewayRequestsTotal, GatewayRequestDuration, HubConnected, HubReconnectsTotal, HubEventsTotal)
}

// ObserveRequest records one finished gateway call.
func ObserveRequest(method, outcome string, started time.Time) {
	GatewayRequestsTotal.WithLabelValues(method, outcome).Inc()
	GatewayRequestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}
