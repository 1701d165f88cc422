package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the call engine's collectors. It also satisfies the metrics
// hooks of the notification dispatcher and the event publisher.
type Metrics struct {
	CallsInitiated     *prometheus.CounterVec
	Fallbacks          prometheus.Counter
	Transitions        *prometheus.CounterVec
	Conflicts          *prometheus.CounterVec
	WebhookEvents      *prometheus.CounterVec
	Notifications      *prometheus.CounterVec
	Events             *prometheus.CounterVec
	EstablishLatency   *prometheus.HistogramVec
	SweptCalls         *prometheus.CounterVec
	RealtimeConnection prometheus.GaugeFunc
	reg                prometheus.Registerer
}

// New registers on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,
		CallsInitiated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_calls_initiated_total",
			Help: "Calls admitted, by established method and emergency flag",
		}, []string{"method", "emergency"}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "qrcall_masked_fallbacks_total",
			Help: "Masked call attempts served as direct calls",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_call_transitions_total",
			Help: "Committed call status transitions",
		}, []string{"to", "source"}),
		Conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_call_update_conflicts_total",
			Help: "Conditional call updates lost to a concurrent writer",
		}, []string{"source"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_webhook_events_total",
			Help: "Masked relay webhook events by kind and outcome",
		}, []string{"kind", "outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_notifications_total",
			Help: "Push notification dispatch outcomes",
		}, []string{"outcome"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_call_events_total",
			Help: "Lifecycle events published to the event stream",
		}, []string{"outcome"}),
		EstablishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrcall_channel_establish_duration_seconds",
			Help:    "Time spent establishing the call channel",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
		SweptCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qrcall_swept_calls_total",
			Help: "Calls closed by the ring timeout and max duration sweeper",
		}, []string{"to"}),
	}
}

func (m *Metrics) IncInitiated(method string, emergency bool) {
	label := "false"
	if emergency {
		label = "true"
	}
	m.CallsInitiated.WithLabelValues(method, label).Inc()
}

func (m *Metrics) IncFallback() {
	m.Fallbacks.Inc()
}

func (m *Metrics) IncTransition(to, source string) {
	m.Transitions.WithLabelValues(to, source).Inc()
}

func (m *Metrics) IncConflict(source string) {
	m.Conflicts.WithLabelValues(source).Inc()
}

func (m *Metrics) IncWebhook(kind, outcome string) {
	m.WebhookEvents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncSwept(to string) {
	m.SweptCalls.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveEstablish(method string, start time.Time) {
	m.EstablishLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// IncNotification implements notify.Metrics.
func (m *Metrics) IncNotification(outcome string) {
	m.Notifications.WithLabelValues(outcome).Inc()
}

// IncEvent implements events.Metrics.
func (m *Metrics) IncEvent(outcome string) {
	m.Events.WithLabelValues(outcome).Inc()
}

// TrackConnections exports the live websocket count.
func (m *Metrics) TrackConnections(count func() int) {
	m.RealtimeConnection = promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "qrcall_realtime_connections",
		Help: "Connected realtime clients on this instance",
	}, func() float64 { return float64(count()) })
}
