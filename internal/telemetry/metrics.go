package telemetry

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/stxkxs/ttr/internal/aggregate"
)

// Metrics collects runtime metrics
type Metrics struct {
	mu sync.RWMutex

	// Counters
	RunsTotal        int64
	RunsFailed       int64
	RecordsIngested  int64
	SentinelExcluded int64
	IgnoredStates    int64
	RowsReported     int64
	RowsUnpaired     int64
	RowsImplausible  int64

	// Gauges
	lastSummary *aggregate.Summary
	lastRunAt   time.Time

	// Histograms (simplified)
	runDurations []time.Duration
}

// maxRunDurations bounds the window used for the average run duration.
const maxRunDurations = 1000

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		runDurations: make([]time.Duration, 0, maxRunDurations),
	}
}

// ObserveRun records a completed analysis.
func (m *Metrics) ObserveRun(res aggregate.Result, d time.Duration) {
	atomic.AddInt64(&m.RunsTotal, 1)
	atomic.AddInt64(&m.RecordsIngested, int64(res.Stats.Records))
	atomic.AddInt64(&m.SentinelExcluded, int64(res.Stats.SentinelExcluded))
	atomic.AddInt64(&m.IgnoredStates, int64(res.Stats.IgnoredStates))
	atomic.AddInt64(&m.RowsReported, int64(len(res.Rows)))
	atomic.AddInt64(&m.RowsUnpaired, int64(res.Stats.Unpaired))
	atomic.AddInt64(&m.RowsImplausible, int64(res.Stats.Implausible))

	m.mu.Lock()
	defer m.mu.Unlock()
	if res.Summary != nil {
		s := *res.Summary
		m.lastSummary = &s
	} else {
		m.lastSummary = nil
	}
	m.lastRunAt = time.Now()
	if n := len(m.runDurations); n >= maxRunDurations {
		copy(m.runDurations, m.runDurations[n-maxRunDurations+1:])
		m.runDurations = m.runDurations[:maxRunDurations-1]
	}
	m.runDurations = append(m.runDurations, d)
}

// ObserveFailure records a run that failed before producing a report.
func (m *Metrics) ObserveFailure() {
	atomic.AddInt64(&m.RunsTotal, 1)
	atomic.AddInt64(&m.RunsFailed, 1)
}

// GetSummary returns a summary of collected metrics
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"runs_total":        atomic.LoadInt64(&m.RunsTotal),
		"runs_failed":       atomic.LoadInt64(&m.RunsFailed),
		"records_ingested":  atomic.LoadInt64(&m.RecordsIngested),
		"sentinel_excluded": atomic.LoadInt64(&m.SentinelExcluded),
		"ignored_states":    atomic.LoadInt64(&m.IgnoredStates),
		"rows_reported":     atomic.LoadInt64(&m.RowsReported),
		"rows_unpaired":     atomic.LoadInt64(&m.RowsUnpaired),
		"rows_implausible":  atomic.LoadInt64(&m.RowsImplausible),
	}

	if len(m.runDurations) > 0 {
		var total time.Duration
		for _, d := range m.runDurations {
			total += d
		}
		summary["avg_run_duration_ms"] = total.Milliseconds() / int64(len(m.runDurations))
	}

	if m.lastSummary != nil {
		summary["last_mean_seconds"] = m.lastSummary.Mean
		summary["last_median_seconds"] = m.lastSummary.Median
	}

	return summary
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.RunsTotal, 0)
	atomic.StoreInt64(&m.RunsFailed, 0)
	atomic.StoreInt64(&m.RecordsIngested, 0)
	atomic.StoreInt64(&m.SentinelExcluded, 0)
	atomic.StoreInt64(&m.IgnoredStates, 0)
	atomic.StoreInt64(&m.RowsReported, 0)
	atomic.StoreInt64(&m.RowsUnpaired, 0)
	atomic.StoreInt64(&m.RowsImplausible, 0)

	m.lastSummary = nil
	m.lastRunAt = time.Time{}
	m.runDurations = m.runDurations[:0]
}

const namespace = "ttr_"

func counterFamily(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(float64(v))}}},
	}
}

func gaugeFamily(name, help string, v float64, labels ...*dto.LabelPair) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Label: labels, Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

// Gather builds Prometheus metric families from the current counters,
// sorted by name.
func (m *Metrics) Gather() []*dto.MetricFamily {
	families := []*dto.MetricFamily{
		counterFamily("runs_total", "Analyses started.", atomic.LoadInt64(&m.RunsTotal)),
		counterFamily("runs_failed_total", "Analyses that failed while loading input.", atomic.LoadInt64(&m.RunsFailed)),
		counterFamily("records_ingested_total", "Event records fed to the aggregator.", atomic.LoadInt64(&m.RecordsIngested)),
		counterFamily("sentinel_excluded_total", "Records discarded for carrying the 00:00:00 sentinel.", atomic.LoadInt64(&m.SentinelExcluded)),
		counterFamily("ignored_states_total", "Records whose state was neither Login nor Ready.", atomic.LoadInt64(&m.IgnoredStates)),
		counterFamily("rows_reported_total", "Agents that appeared in a report.", atomic.LoadInt64(&m.RowsReported)),
		counterFamily("rows_unpaired_total", "Agents missing either a Login or a Ready.", atomic.LoadInt64(&m.RowsUnpaired)),
		counterFamily("rows_implausible_total", "Agents dropped by the plausibility filter.", atomic.LoadInt64(&m.RowsImplausible)),
	}

	m.mu.RLock()
	if s := m.lastSummary; s != nil {
		stat := func(name string) *dto.LabelPair {
			return &dto.LabelPair{Name: proto.String("stat"), Value: proto.String(name)}
		}
		mf := gaugeFamily("last_time_to_ready_seconds", "Summary statistics of the most recent report.", s.Mean, stat("mean"))
		for _, extra := range []struct {
			name string
			v    float64
		}{{"max", s.Max}, {"median", s.Median}, {"min", s.Min}} {
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label: []*dto.LabelPair{stat(extra.name)},
				Gauge: &dto.Gauge{Value: proto.Float64(extra.v)},
			})
		}
		families = append(families, mf)
	}
	if !m.lastRunAt.IsZero() {
		families = append(families, gaugeFamily("last_run_timestamp_seconds",
			"Unix time of the most recent report.", float64(m.lastRunAt.UnixNano())/1e9))
	}
	m.mu.RUnlock()

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	return families
}

// WritePrometheus writes the text exposition format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	for _, mf := range m.Gather() {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
