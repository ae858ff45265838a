// Package telemetry counts fast/slow-path outcomes for a running
// gemcheckd (SPEC_FULL.md §9's addition to spec.md §4.7's telemetry
// sentence: "only uncanceled edits count for telemetry"). The
// prometheus adapter is grounded on michaelbomholt665-code-watch's
// internal/shared/observability/metrics.go, the pack's only direct user
// of prometheus/client_golang.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink records the coordinator's per-edit outcomes. Implementations
// must be safe for concurrent use.
type Sink interface {
	CommitFastPath()
	CommitSlowPath()
	CancelAttempt(succeeded bool)
	HashMismatch()
}

// PrometheusSink is a Sink backed by github.com/prometheus/client_golang
// counters.
type PrometheusSink struct {
	fastPathTotal    prometheus.Counter
	slowPathTotal    prometheus.Counter
	cancelSuccessful prometheus.Counter
	cancelFailed     prometheus.Counter
	hashMismatch     prometheus.Counter
}

// NewPrometheusSink registers gemcheck's counters against reg and
// returns a Sink backed by them. Callers running more than one instance
// per process (as in tests) should pass a fresh prometheus.Registerer
// per instance; production code typically passes
// prometheus.DefaultRegisterer, the same target the pack's own
// observability package registers against via promauto's package-level
// helpers.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)
	return &PrometheusSink{
		fastPathTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemcheck_commit_fast_path_total",
			Help: "Total number of edits dispatched on the fast path.",
		}),
		slowPathTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemcheck_commit_slow_path_total",
			Help: "Total number of edits dispatched on the slow path.",
		}),
		cancelSuccessful: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemcheck_slow_path_cancel_succeeded_total",
			Help: "Total number of successful try_cancel_slow_path attempts.",
		}),
		cancelFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemcheck_slow_path_cancel_failed_total",
			Help: "Total number of failed try_cancel_slow_path attempts.",
		}),
		hashMismatch: factory.NewCounter(prometheus.CounterOpts{
			Name: "gemcheck_hierarchy_hash_mismatch_total",
			Help: "Total number of updates whose hierarchy hash forced the slow path.",
		}),
	}
}

func (s *PrometheusSink) CommitFastPath() { s.fastPathTotal.Inc() }
func (s *PrometheusSink) CommitSlowPath() { s.slowPathTotal.Inc() }
func (s *PrometheusSink) HashMismatch()   { s.hashMismatch.Inc() }

func (s *PrometheusSink) CancelAttempt(succeeded bool) {
	if succeeded {
		s.cancelSuccessful.Inc()
		return
	}
	s.cancelFailed.Inc()
}

// NoopSink discards everything; the committer and LSP server default to
// it when no Sink is configured.
type NoopSink struct{}

func (NoopSink) CommitFastPath()          {}
func (NoopSink) CommitSlowPath()          {}
func (NoopSink) CancelAttempt(bool)       {}
func (NoopSink) HashMismatch()            {}
