package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for HTTP traffic and sweep
// activity.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	sweepCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		sweepCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Sweep counter names.
const (
	SweepTicketsEvaluated   = "tickets_evaluated"
	SweepEscalationsCreated = "escalations_created"
	SweepTicketsDeferred    = "tickets_deferred"
	SweepStoreErrors        = "store_errors"
	SweepDispatchFailures   = "dispatch_failures"
)

// RecordSweep adds to a per-tenant sweep counter.
func (m *Metrics) RecordSweep(tenantID, counter string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepCount[tenantID+"|"+counter] += delta
}

// SweepCount reads back a per-tenant sweep counter.
func (m *Metrics) SweepCount(tenantID, counter string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepCount[tenantID+"|"+counter]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
