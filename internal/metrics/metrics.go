package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "timekeeper_"

// Metrics owns scheduler counters on a private registry.
// Params: created by New; a nil *Metrics is valid and records nothing.
// Returns: recording methods and scrape handler.
type Metrics struct {
	registry *prometheus.Registry

	alarmsFired          prometheus.Counter
	timersCompleted      prometheus.Counter
	persistenceErrors    *prometheus.CounterVec
	playbackErrors       *prometheus.CounterVec
	notificationsPending prometheus.Gauge
	notificationsClosed  *prometheus.CounterVec
	ticks                *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		alarmsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "alarms_fired_total",
			Help: "Total alarms fired",
		}),
		timersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "timers_completed_total",
			Help: "Total timers that reached zero",
		}),
		persistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "persistence_errors_total",
				Help: "Total store load/save failures by collection",
			},
			[]string{"key"},
		),
		playbackErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "playback_errors_total",
				Help: "Total sound playback failures by sound",
			},
			[]string{"sound"},
		),
		notificationsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "notifications_pending",
			Help: "Notifications waiting for acknowledgment",
		}),
		notificationsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_closed_total",
				Help: "Total closed notifications by kind and choice",
			},
			[]string{"kind", "choice"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scheduler_ticks_total",
				Help: "Total scheduler ticks by scheduler",
			},
			[]string{"scheduler"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.alarmsFired,
		m.timersCompleted,
		m.persistenceErrors,
		m.playbackErrors,
		m.notificationsPending,
		m.notificationsClosed,
		m.ticks,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AlarmFired() {
	if m == nil {
		return
	}
	m.alarmsFired.Inc()
}

func (m *Metrics) TimerCompleted() {
	if m == nil {
		return
	}
	m.timersCompleted.Inc()
}

func (m *Metrics) PersistenceFailed(key string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(key).Inc()
}

func (m *Metrics) PlaybackFailed(sound string) {
	if m == nil {
		return
	}
	m.playbackErrors.WithLabelValues(sound).Inc()
}

// SetNotificationsPending records current queue length.
func (m *Metrics) SetNotificationsPending(n int) {
	if m == nil {
		return
	}
	m.notificationsPending.Set(float64(n))
}

func (m *Metrics) NotificationClosed(kind, choice string) {
	if m == nil {
		return
	}
	m.notificationsClosed.WithLabelValues(kind, choice).Inc()
}

// Tick counts one scheduler tick.
func (m *Metrics) Tick(scheduler string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(scheduler).Inc()
}
