// Package metrics provides a Prometheus-backed acp.ConnRecorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the Prometheus metrics for one or more acp connections.
// A single Recorder can be shared across connections (e.g. one process
// managing several agent subprocesses); the method label keeps per-method
// breakdowns distinct.
type Recorder struct {
	RequestsSent        *prometheus.CounterVec
	ResponsesReceived   *prometheus.CounterVec
	ResponseDuration    *prometheus.HistogramVec
	InboundHandledTotal *prometheus.CounterVec
	InboundDuration     *prometheus.HistogramVec
	NotificationsTotal  *prometheus.CounterVec
}

// NewRecorder creates and registers all metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		RequestsSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acp",
				Name:      "requests_sent_total",
				Help:      "Total outbound JSON-RPC requests sent.",
			},
			[]string{"method"},
		),
		ResponsesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acp",
				Name:      "responses_received_total",
				Help:      "Total responses received for outbound requests.",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		ResponseDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "acp",
				Name:      "response_duration_seconds",
				Help:      "Round-trip duration of outbound requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InboundHandledTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acp",
				Name:      "inbound_handled_total",
				Help:      "Total inbound JSON-RPC requests handled.",
			},
			[]string{"method", "status"},
		),
		InboundDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "acp",
				Name:      "inbound_duration_seconds",
				Help:      "Handler duration for inbound requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		NotificationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "acp",
				Name:      "notifications_received_total",
				Help:      "Total inbound notifications dispatched.",
			},
			[]string{"method"},
		),
	}
}

// RequestSent implements acp.ConnRecorder.
func (r *Recorder) RequestSent(method string) {
	r.RequestsSent.WithLabelValues(method).Inc()
}

// ResponseReceived implements acp.ConnRecorder.
func (r *Recorder) ResponseReceived(method string, dtSeconds float64, isError bool) {
	r.ResponsesReceived.WithLabelValues(method, statusLabel(isError)).Inc()
	r.ResponseDuration.WithLabelValues(method).Observe(dtSeconds)
}

// InboundHandled implements acp.ConnRecorder.
func (r *Recorder) InboundHandled(method string, dtSeconds float64, isError bool) {
	r.InboundHandledTotal.WithLabelValues(method, statusLabel(isError)).Inc()
	r.InboundDuration.WithLabelValues(method).Observe(dtSeconds)
}

// NotificationReceived implements acp.ConnRecorder.
func (r *Recorder) NotificationReceived(method string) {
	r.NotificationsTotal.WithLabelValues(method).Inc()
}

func statusLabel(isError bool) string {
	if isError {
		return "error"
	}
	return "ok"
}
