package echoapi

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "learnlink"

// Metrics holds the account counters exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	signups       prometheus.Counter
	signins       *prometheus.CounterVec // {outcome}
	invitations   *prometheus.CounterVec // {email_sent}
	resetRequests *prometheus.CounterVec // {email_sent}
	resets        *prometheus.CounterVec // {outcome}
}

// NewMetrics registers every counter, plus the Go and process collectors, on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signups_total",
			Help:      "Students self-registered.",
		}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signins_total",
			Help:      "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "staff_invitations_total",
			Help:      "Staff accounts provisioned, by credentials email delivery.",
		}, []string{"email_sent"}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "password_reset_requests_total",
			Help:      "Password reset tokens issued, by reset email delivery.",
		}, []string{"email_sent"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "password_resets_total",
			Help:      "Password reset token redemptions by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.signups,
		m.signins,
		m.invitations,
		m.resetRequests,
		m.resets,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) signedUp() { m.signups.Inc() }

func (m *Metrics) signedIn(outcome string) { m.signins.WithLabelValues(outcome).Inc() }

func (m *Metrics) invited(emailSent bool) {
	m.invitations.WithLabelValues(strconv.FormatBool(emailSent)).Inc()
}

func (m *Metrics) resetRequested(emailSent bool) {
	m.resetRequests.WithLabelValues(strconv.FormatBool(emailSent)).Inc()
}

func (m *Metrics) passwordReset(outcome string) { m.resets.WithLabelValues(outcome).Inc() }
