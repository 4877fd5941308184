package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chat gateway. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	TurnTotal          *prometheus.CounterVec
	TurnDurationMs     *prometheus.HistogramVec
	StreamEventTotal   *prometheus.CounterVec
	ContainerRetry     *prometheus.CounterVec
	UploadFailureTotal *prometheus.CounterVec
	FilterActionTotal  *prometheus.CounterVec
	RateLimitHitTotal  *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_turn_total",
			Help: "Total number of chat turns, by provider, model and outcome.",
		}, []string{"provider", "model", "status"}),

		TurnDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatgw_turn_duration_ms",
			Help:    "Chat turn duration in milliseconds, from request to end of stream.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
		}, []string{"provider", "model"}),

		StreamEventTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_stream_event_total",
			Help: "Events written to clients, by provider and event type.",
		}, []string{"provider", "type"}),

		ContainerRetry: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_container_retry_total",
			Help: "Turns retried with a fresh execution container after an explicit container was rejected.",
		}, []string{"provider"}),

		UploadFailureTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_upload_failure_total",
			Help: "Attachments dropped because their upload failed.",
		}, []string{"provider"}),

		FilterActionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_filter_action_total",
			Help: "Total filter actions taken.",
		}, []string{"filter", "action"}),

		RateLimitHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgw_ratelimit_hit_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"dimension"}),
	}
}

// RecordTurn records metrics for a finished chat turn.
func (m *Metrics) RecordTurn(labels TurnLabels) {
	if m == nil {
		return
	}
	m.TurnTotal.WithLabelValues(labels.Provider, labels.Model, labels.Status).Inc()
	m.TurnDurationMs.WithLabelValues(labels.Provider, labels.Model).Observe(labels.DurationMs)
}

func (m *Metrics) RecordStreamEvent(provider, eventType string) {
	if m == nil {
		return
	}
	m.StreamEventTotal.WithLabelValues(provider, eventType).Inc()
}

func (m *Metrics) RecordContainerRetry(provider string) {
	if m == nil {
		return
	}
	m.ContainerRetry.WithLabelValues(provider).Inc()
}

func (m *Metrics) RecordUploadFailure(provider string) {
	if m == nil {
		return
	}
	m.UploadFailureTotal.WithLabelValues(provider).Inc()
}

// RecordFilterAction records a filter action metric.
func (m *Metrics) RecordFilterAction(filter, action string) {
	if m == nil {
		return
	}
	m.FilterActionTotal.WithLabelValues(filter, action).Inc()
}

func (m *Metrics) RecordRateLimitHit(dimension string) {
	if m == nil {
		return
	}
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}

// TurnLabels holds the label values for recording a chat turn.
type TurnLabels struct {
	Provider   string
	Model      string
	Status     string
	DurationMs float64
}
