package metrics

import (
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the Prometheus collectors for the session bootstrap.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	GatewayRequests     *prometheus.CounterVec
	AuthExpirations     prometheus.Counter
	CSRFFetches         *prometheus.CounterVec
	CallbackResolutions *prometheus.CounterVec
	SessionWrites       *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		GatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthdash_gateway_requests_total",
			Help: "Outbound API requests by method and status class",
		}, []string{"method", "status"}),
		AuthExpirations: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthdash_gateway_auth_expirations_total",
			Help: "Sessions cleared after the backend rejected an authenticated request",
		}),
		CSRFFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthdash_csrf_fetches_total",
			Help: "CSRF token fetches by the source the token was extracted from",
		}, []string{"source"}),
		CallbackResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthdash_callback_resolutions_total",
			Help: "OAuth callback resolutions by terminal state",
		}, []string{"state"}),
		SessionWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthdash_session_writes_total",
			Help: "Session store writes by result",
		}, []string{"result"}),
	}
}

// ObserveRequest counts one gateway request. status 0 means the request
// never completed.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(method, statusClass(status)).Inc()
}

// IncrementAuthExpirations counts one authorization-failure redirect.
func (m *Metrics) IncrementAuthExpirations() {
	if m == nil {
		return
	}
	m.AuthExpirations.Inc()
}

// ObserveCSRFFetch counts one CSRF endpoint round trip.
func (m *Metrics) ObserveCSRFFetch(source string) {
	if m == nil {
		return
	}
	m.CSRFFetches.WithLabelValues(source).Inc()
}

// ObserveResolution counts one finished callback resolution.
func (m *Metrics) ObserveResolution(state string) {
	if m == nil {
		return
	}
	m.CallbackResolutions.WithLabelValues(state).Inc()
}

// ObserveSessionWrite counts one session write attempt.
func (m *Metrics) ObserveSessionWrite(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failure"
	}
	m.SessionWrites.WithLabelValues(result).Inc()
}

// WriteText writes every collected family in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func statusClass(status int) string {
	if status <= 0 {
		return "network_error"
	}
	return strconv.Itoa(status/100) + "xx"
}
