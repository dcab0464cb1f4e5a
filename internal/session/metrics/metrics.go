// Package metrics holds the Prometheus collectors of the session core.
//
// Every method is safe on a nil *Metrics so services can run without them.
package metrics

import (
	"net/http"
	"time"

	"github.com/Devilair/Replit-Wolfinder-sub003/internal/session/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sessiond"

// Revocation kinds, used as the "kind" label.
const (
	KindLogout     = "logout"
	KindFamily     = "family"
	KindAllForUser = "all_for_user"
	KindAdmin      = "admin"
	KindBreach     = "breach"
)

type Metrics struct {
	registry *prometheus.Registry

	issued           prometheus.Counter
	rotations        prometheus.Counter
	rejections       *prometheus.CounterVec
	breaches         prometheus.Counter
	revocations      *prometheus.CounterVec
	purged           prometheus.Counter
	rotationDuration prometheus.Histogram
}

// New builds the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		issued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Login sessions started.",
		}),
		rotations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Refresh tokens successfully rotated.",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotation_rejections_total",
			Help:      "Refresh attempts refused, by reason.",
		}, []string{"reason"}),
		breaches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaches_total",
			Help:      "Refresh token replays detected.",
		}),
		revocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Refresh records revoked, by kind.",
		}, []string{"kind"}),
		purged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_records_total",
			Help:      "Expired refresh records deleted by housekeeping.",
		}),
		rotationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rotation_duration_seconds",
			Help:      "Time spent in a rotate call, whatever its outcome.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *Metrics) Rotated(took time.Duration) {
	if m == nil {
		return
	}
	m.rotations.Inc()
	m.rotationDuration.Observe(took.Seconds())
}

func (m *Metrics) Rejected(reason domain.RejectReason, took time.Duration) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason.String()).Inc()
	m.rotationDuration.Observe(took.Seconds())
	if reason == domain.RejectBreach {
		m.breaches.Inc()
	}
}

func (m *Metrics) Revoked(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revocations.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}
