package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	totalDuration map[string]time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		totalDuration: make(map[string]time.Duration),
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
	m.totalDuration[key] += duration
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

// Counter is one row of a metrics snapshot.
type Counter struct {
	Key       string  `json:"key"`
	Count     int64   `json:"count"`
	AvgMillis float64 `json:"avg_ms,omitempty"`
}

// Snapshot returns request and error counters sorted by key.
func (m *Metrics) Snapshot() (requests, errors []Counter) {
	if m == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, n := range m.requestCount {
		avg := float64(m.totalDuration[key].Microseconds()) / float64(n) / 1000
		requests = append(requests, Counter{Key: key, Count: n, AvgMillis: avg})
	}
	for key, n := range m.errorCount {
		errors = append(errors, Counter{Key: key, Count: n})
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].Key < requests[j].Key })
	sort.Slice(errors, func(i, j int) bool { return errors[i].Key < errors[j].Key })
	return requests, errors
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
