package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the per-dependency latency window used for
// percentile calculations.
const maxSamples = 1000

type Metrics struct {
	mutex              sync.RWMutex
	requestsAllowed    int64
	requestsLimited    int64
	limitedByClient    map[string]int64
	calls              map[string]int64
	failures           map[string]int64
	rejections         map[string]int64
	latencies          map[string][]time.Duration
	pauseTransitions   int64
	backpressurePaused bool
	startTime          time.Time
}

type Snapshot struct {
	Uptime       time.Duration                `json:"uptime"`
	Requests     RequestMetrics               `json:"requests"`
	Dependencies map[string]DependencyMetrics `json:"dependencies"`
	Backpressure BackpressureMetrics          `json:"backpressure"`
}

type RequestMetrics struct {
	Allowed         int64            `json:"allowed"`
	Limited         int64            `json:"limited"`
	LimitedByClient map[string]int64 `json:"limited_by_client"`
}

type BackpressureMetrics struct {
	Transitions int64 `json:"transitions"`
	Paused      bool  `json:"paused"`
}

type DependencyMetrics struct {
	Calls      int64         `json:"calls"`
	Failures   int64         `json:"failures"`
	Rejections int64         `json:"rejections"`
	AvgLatency time.Duration `json:"avg_latency"`
	P95Latency time.Duration `json:"p95_latency"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		limitedByClient: make(map[string]int64),
		calls:           make(map[string]int64),
		failures:        make(map[string]int64),
		rejections:      make(map[string]int64),
		latencies:       make(map[string][]time.Duration),
		startTime:       time.Now(),
	}
}

func (m *Metrics) RecordRequestAllowed() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requestsAllowed++
}

func (m *Metrics) RecordRequestLimited(clientKey string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requestsLimited++
	m.limitedByClient[clientKey]++
}

func (m *Metrics) RecordCall(dependency string, duration time.Duration, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls[dependency]++
	if failed {
		m.failures[dependency]++
	}

	m.latencies[dependency] = append(m.latencies[dependency], duration)
	if len(m.latencies[dependency]) > maxSamples {
		m.latencies[dependency] = m.latencies[dependency][1:]
	}
}

// RecordBackpressureTransition counts a pause/resume flip and tracks the
// side of the gate the controller landed on.
func (m *Metrics) RecordBackpressureTransition(paused bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pauseTransitions++
	m.backpressurePaused = paused
}

func (m *Metrics) RecordRejection(dependency string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[dependency]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime: time.Since(m.startTime),
		Requests: RequestMetrics{
			Allowed:         m.requestsAllowed,
			Limited:         m.requestsLimited,
			LimitedByClient: make(map[string]int64, len(m.limitedByClient)),
		},
		Dependencies: make(map[string]DependencyMetrics),
		Backpressure: BackpressureMetrics{
			Transitions: m.pauseTransitions,
			Paused:      m.backpressurePaused,
		},
	}

	for client, count := range m.limitedByClient {
		snap.Requests.LimitedByClient[client] = count
	}

	// Collect all dependency names across the counter maps
	allDeps := make(map[string]bool)
	for dep := range m.calls {
		allDeps[dep] = true
	}
	for dep := range m.rejections {
		allDeps[dep] = true
	}

	for dep := range allDeps {
		dm := DependencyMetrics{
			Calls:      m.calls[dep],
			Failures:   m.failures[dep],
			Rejections: m.rejections[dep],
		}

		durations := m.latencies[dep]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			dm.AvgLatency = average(sorted)
			dm.P95Latency = percentile(sorted, 0.95)
		}

		snap.Dependencies[dep] = dm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
