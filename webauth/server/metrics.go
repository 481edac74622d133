package server

import (
	"errors"
	"net/http"

	"github.com/ccontavalli/webauth/lib/oauth"
	"github.com/ccontavalli/webauth/lib/oauth/oform"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts logins and logouts.
type Metrics struct {
	registry *prometheus.Registry

	logins  *prometheus.CounterVec
	logouts prometheus.Counter
}

// NewMetrics creates the counters in a new registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webauth_login_total",
			Help: "Login attempts, by method and result.",
		}, []string{"method", "result"}),
		logouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "webauth_logout_total",
			Help: "Logouts performed.",
		}),
	}
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// LoginResult returns the result label of a login attempt.
func LoginResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, oform.ErrorInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, oauth.ErrorProviderDenied):
		return "denied"
	case errors.Is(err, oauth.ErrorStateMismatch), errors.Is(err, oauth.ErrorNotAuthenticated):
		return "invalid_state"
	}
	return "error"
}

// Login records a login attempt with method.
func (m *Metrics) Login(method string, err error) {
	m.logins.WithLabelValues(method, LoginResult(err)).Inc()
}

// LoginObserver returns an oauth.Observer recording attempts with method.
func (m *Metrics) LoginObserver(method string) oauth.Observer {
	return func(r *http.Request, data oauth.AuthData, err error) {
		m.Login(method, err)
	}
}

// LogoutObserver returns an oauth.Observer counting logouts.
func (m *Metrics) LogoutObserver() oauth.Observer {
	return func(r *http.Request, data oauth.AuthData, err error) {
		m.logouts.Inc()
	}
}
