package eviction

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rcrowley/go-metrics"
)

// Stats records evictor activity in a go-metrics registry
type Stats struct {
	registry  metrics.Registry
	runs      metrics.Counter
	passes    metrics.Counter
	skipped   metrics.Counter
	samples   metrics.Histogram
	overshoot metrics.Histogram
	evicted   metrics.Meter
	rejected  metrics.Counter
}

// NewStats creates a recorder with its own registry
func NewStats() *Stats {
	r := metrics.NewRegistry()
	return &Stats{
		registry:  r,
		runs:      metrics.GetOrRegisterCounter("evictor_runs", r),
		passes:    metrics.GetOrRegisterCounter("eviction_passes", r),
		skipped:   metrics.GetOrRegisterCounter("eviction_skipped_in_flight", r),
		samples:   metrics.GetOrRegisterHistogram("eviction_samples", r, metrics.NewUniformSample(1028)),
		overshoot: metrics.GetOrRegisterHistogram("eviction_overshoot", r, metrics.NewUniformSample(1028)),
		evicted:   metrics.GetOrRegisterMeter("eviction_evicted", r),
		rejected:  metrics.GetOrRegisterCounter("eviction_cant_evict", r),
	}
}

func (s *Stats) run() {
	if s != nil {
		s.runs.Inc(1)
	}
}

func (s *Stats) pass(overshoot, samples int) {
	if s != nil {
		s.passes.Inc(1)
		s.overshoot.Update(int64(overshoot))
		s.samples.Update(int64(samples))
	}
}

func (s *Stats) skip() {
	if s != nil {
		s.skipped.Inc(1)
	}
}

func (s *Stats) evict(evicted, cantEvict int) {
	if s != nil {
		s.evicted.Mark(int64(evicted))
		s.rejected.Inc(int64(cantEvict))
	}
}

// Evicted returns the total number of evicted entries
func (s *Stats) Evicted() int64 {
	if s == nil {
		return 0
	}
	return s.evicted.Count()
}

// Passes returns the number of maps that were sampled
func (s *Stats) Passes() int64 {
	if s == nil {
		return 0
	}
	return s.passes.Count()
}

// Skipped returns the number of passes dropped because one was in flight
func (s *Stats) Skipped() int64 {
	if s == nil {
		return 0
	}
	return s.skipped.Count()
}

// WriteTo writes a plain text dump of the registry. A nil recorder writes
// nothing.
func (s *Stats) WriteTo(w io.Writer) {
	if s == nil {
		return
	}
	metrics.WriteOnce(s.registry, w)
}

// WritePrometheus writes the counters in Prometheus text format with a
// dso_ prefix. Histograms are exported as _count, _sum and _max.
func (s *Stats) WritePrometheus(w io.Writer) {
	if s == nil {
		return
	}
	var lines []string
	s.registry.Each(func(name string, i interface{}) {
		name = "dso_" + name
		switch m := i.(type) {
		case metrics.Counter:
			lines = append(lines, fmt.Sprintf("%s_total %d", name, m.Count()))
		case metrics.Meter:
			lines = append(lines, fmt.Sprintf("%s_total %d", name, m.Count()))
		case metrics.Histogram:
			lines = append(lines,
				fmt.Sprintf("%s_count %d", name, m.Count()),
				fmt.Sprintf("%s_sum %d", name, m.Sum()),
				fmt.Sprintf("%s_max %d", name, m.Max()))
		}
	})
	sort.Strings(lines)
	_, _ = io.WriteString(w, strings.Join(lines, "\n")+"\n")
}
