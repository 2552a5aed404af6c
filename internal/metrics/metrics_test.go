package metrics

import (
	"bytes"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest_StatusClasses(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", 200)
	m.ObserveRequest("GET", 204)
	m.ObserveRequest("POST", 401)
	m.ObserveRequest("POST", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("GET", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("POST", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("POST", "network_error")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", 200)
		m.IncrementAuthExpirations()
		m.ObserveCSRFFetch("body")
		m.ObserveResolution("SUCCEEDED")
		m.ObserveSessionWrite(nil)
		require.NoError(t, m.WriteText(&bytes.Buffer{}))
	})
}

func TestWriteText(t *testing.T) {
	m := New()
	m.IncrementAuthExpirations()
	m.ObserveSessionWrite(errors.New("quota exceeded"))

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "healthdash_gateway_auth_expirations_total 1")
	assert.Contains(t, out, `healthdash_session_writes_total{result="failure"} 1`)
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
