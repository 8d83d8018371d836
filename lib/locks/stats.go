package locks

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// MetricsStats records lock statistics in a VictoriaMetrics set
type MetricsStats struct {
	set           *metrics.Set
	requested     *metrics.Counter
	awardedGreedy *metrics.Counter
	awardedPlain  *metrics.Counter
	released      *metrics.Counter
	rejected      *metrics.Counter
	hops          *metrics.Counter
	pending       *metrics.Histogram
}

// NewMetricsStats creates a recorder with its own metrics set
func NewMetricsStats() *MetricsStats {
	set := metrics.NewSet()
	return &MetricsStats{
		set:           set,
		requested:     set.NewCounter("dso_lock_requests_total"),
		awardedGreedy: set.NewCounter(`dso_lock_awards_total{mode="greedy"}`),
		awardedPlain:  set.NewCounter(`dso_lock_awards_total{mode="plain"}`),
		released:      set.NewCounter("dso_lock_releases_total"),
		rejected:      set.NewCounter("dso_lock_rejections_total"),
		hops:          set.NewCounter("dso_lock_recalls_total"),
		pending:       set.NewHistogram("dso_lock_pending_requests"),
	}
}

func (s *MetricsStats) RecordRequested(_ LockID, _ ClientID, _ ThreadID, pending int) {
	s.requested.Inc()
	s.pending.Update(float64(pending))
}

func (s *MetricsStats) RecordAwarded(_ LockID, _ ClientID, _ ThreadID, greedy bool) {
	if greedy {
		s.awardedGreedy.Inc()
	} else {
		s.awardedPlain.Inc()
	}
}

func (s *MetricsStats) RecordReleased(LockID, ClientID, ThreadID) { s.released.Inc() }

func (s *MetricsStats) RecordRejected(LockID, ClientID, ThreadID) { s.rejected.Inc() }

func (s *MetricsStats) RecordHop(LockID) { s.hops.Inc() }

// WritePrometheus writes all lock metrics in Prometheus text format
func (s *MetricsStats) WritePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}
