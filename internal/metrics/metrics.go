// Package metrics provides application-level metrics collection.
// Recorders observe node round trips and payment outcomes; Counters keeps
// in-process atomic totals and Prometheus exports them for scraping.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recorder observes node traffic and payment outcomes.
type Recorder interface {
	// ObserveRPC records one node round trip.
	ObserveRPC(currency, method string, duration time.Duration, err error)

	// ObservePayment records the outcome of one payment in a batch.
	ObservePayment(currency string, ok bool)
}

// Noop discards all observations.
type Noop struct{}

// ObserveRPC implements Recorder.
func (Noop) ObserveRPC(string, string, time.Duration, error) {}

// ObservePayment implements Recorder.
func (Noop) ObservePayment(string, bool) {}

// Counters holds metrics using atomic counters for thread safety.
type Counters struct {
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	paymentsOK     atomic.Int64
	paymentsFailed atomic.Int64

	// Per-currency RPC calls
	perCurrency sync.Map // string -> *atomic.Int64
}

// ObserveRPC records an RPC call with its duration and success status.
func (m *Counters) ObserveRPC(currency, _ string, duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}

	v, _ := m.perCurrency.LoadOrStore(currency, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// ObservePayment records a payment outcome.
func (m *Counters) ObservePayment(_ string, ok bool) {
	if ok {
		m.paymentsOK.Add(1)
		return
	}
	m.paymentsFailed.Add(1)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	RPCCallsTotal   int64
	RPCErrorsTotal  int64
	RPCLatencyNanos int64
	PaymentsOK      int64
	PaymentsFailed  int64
	CallsByCurrency map[string]int64
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Counters) Snapshot() Snapshot {
	s := Snapshot{
		RPCCallsTotal:   m.rpcCallsTotal.Load(),
		RPCErrorsTotal:  m.rpcErrorsTotal.Load(),
		RPCLatencyNanos: m.rpcLatencyNanos.Load(),
		PaymentsOK:      m.paymentsOK.Load(),
		PaymentsFailed:  m.paymentsFailed.Load(),
		CallsByCurrency: make(map[string]int64),
	}
	m.perCurrency.Range(func(k, v any) bool {
		s.CallsByCurrency[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return s
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Counters) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCErrorsTotal returns the total number of RPC errors.
func (m *Counters) RPCErrorsTotal() int64 {
	return m.rpcErrorsTotal.Load()
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Counters) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	nanos := m.rpcLatencyNanos.Load()
	return float64(nanos) / float64(calls) / 1e6
}

// Reset resets all metrics to zero.
func (m *Counters) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.paymentsOK.Store(0)
	m.paymentsFailed.Store(0)
	m.perCurrency.Range(func(k, _ any) bool {
		m.perCurrency.Delete(k)
		return true
	})
}

// Compile-time interface checks
var (
	_ Recorder = Noop{}
	_ Recorder = (*Counters)(nil)
)
