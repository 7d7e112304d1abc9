package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNode = errors.New("node down")

func TestCounters_ObserveRPC(t *testing.T) {
	t.Parallel()
	m := &Counters{}

	m.ObserveRPC("XRP", "ledger", 100*time.Millisecond, nil)
	assert.Equal(t, int64(1), m.RPCCallsTotal())
	assert.Equal(t, int64(0), m.RPCErrorsTotal())

	m.ObserveRPC("ETH", "eth_getBalance", 50*time.Millisecond, errNode)
	assert.Equal(t, int64(2), m.RPCCallsTotal())
	assert.Equal(t, int64(1), m.RPCErrorsTotal())

	snap := m.Snapshot()
	assert.Equal(t, map[string]int64{"XRP": 1, "ETH": 1}, snap.CallsByCurrency)
}

func TestCounters_ObservePayment(t *testing.T) {
	t.Parallel()
	m := &Counters{}

	m.ObservePayment("XRP", true)
	m.ObservePayment("XRP", true)
	m.ObservePayment("XRP", false)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.PaymentsOK)
	assert.Equal(t, int64(1), snap.PaymentsFailed)
}

func TestCounters_RPCLatencyAvg(t *testing.T) {
	t.Parallel()
	m := &Counters{}

	// No calls
	assert.InDelta(t, 0.0, m.RPCLatencyAvgMs(), 0.001)

	// Two calls: 100ms and 200ms = 150ms avg
	m.ObserveRPC("ETH", "eth_gasPrice", 100*time.Millisecond, nil)
	m.ObserveRPC("ETH", "eth_gasPrice", 200*time.Millisecond, nil)

	assert.InDelta(t, 150.0, m.RPCLatencyAvgMs(), 1.0)
}

func TestCounters_Reset(t *testing.T) {
	t.Parallel()
	m := &Counters{}

	m.ObserveRPC("BTC", "getblock", time.Millisecond, nil)
	m.ObservePayment("BTC", false)

	m.Reset()

	snap := m.Snapshot()
	assert.Equal(t, int64(0), snap.RPCCallsTotal)
	assert.Equal(t, int64(0), snap.PaymentsFailed)
	assert.Empty(t, snap.CallsByCurrency)
}

func TestPrometheus(t *testing.T) {
	t.Parallel()
	p := NewPrometheus()

	p.ObserveRPC("XRP", "submit", 10*time.Millisecond, nil)
	p.ObserveRPC("XRP", "submit", 10*time.Millisecond, errNode)
	p.ObservePayment("XRP", true)
	p.ObservePayment("XRP", false)
	p.ObservePayment("XRP", false)

	assert.InDelta(t, 2.0, testutil.ToFloat64(p.calls.WithLabelValues("XRP", "submit")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(p.errors.WithLabelValues("XRP", "submit")), 0.001)
	assert.InDelta(t, 2.0, testutil.ToFloat64(p.payments.WithLabelValues("XRP", "failure")), 0.001)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cryptorpc_payments_total")
}

func TestNoop(t *testing.T) {
	t.Parallel()
	var r Recorder = Noop{}
	assert.NotPanics(t, func() {
		r.ObserveRPC("XRP", "ledger", time.Second, errNode)
		r.ObservePayment("XRP", false)
	})
}
