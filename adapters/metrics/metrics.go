// Package metrics exposes Prometheus counters for the authentication flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signon"

// Login outcomes
const (
	OutcomeSuccess       = "success"
	OutcomeBadRequest    = "bad_request"
	OutcomeInvalid       = "invalid_signature"
	OutcomeRateLimited   = "rate_limited"
	OutcomeUnavailable   = "unavailable"
	OutcomeInternalError = "error"
)

// Metrics owns a private registry so tests can create as many as they like
type Metrics struct {
	registry *prometheus.Registry

	ChallengesIssued  prometheus.Counter
	Logins            *prometheus.CounterVec
	RateLimited       *prometheus.CounterVec
	TokenRejections   *prometheus.CounterVec
	IdentitiesCreated prometheus.Counter
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Login payloads issued.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		TokenRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rejections_total",
			Help:      "Session tokens rejected by the auth middleware.",
		}, []string{"reason"}),
		IdentitiesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identities_created_total",
			Help:      "Identities provisioned on first login.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
