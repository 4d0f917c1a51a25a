package auth

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels used by Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeForbidden   = "forbidden"
	OutcomeInactive    = "inactive"
	OutcomeThrottled   = "throttled"
	OutcomeUnavailable = "unavailable"
)

// Metrics counts auth outcomes.
type Metrics struct {
	logins     *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
	authorizes *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_total",
			Help:      "Login and join attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refresh_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		authorizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "authorize_total",
			Help:      "Authorization gate decisions by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.logins, m.refreshes, m.authorizes)
	}

	return m
}

func (m *Metrics) login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) authorize(outcome string) {
	if m == nil {
		return
	}
	m.authorizes.WithLabelValues(outcome).Inc()
}

// LoginCounter exposes the login counter, mainly for tests.
func (m *Metrics) LoginCounter() *prometheus.CounterVec { return m.logins }

// RefreshCounter exposes the refresh counter, mainly for tests.
func (m *Metrics) RefreshCounter() *prometheus.CounterVec { return m.refreshes }

// AuthorizeCounter exposes the authorize counter, mainly for tests.
func (m *Metrics) AuthorizeCounter() *prometheus.CounterVec { return m.authorizes }
