package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MergeOutcomeMerged      = "merged"
	MergeOutcomeAdopted     = "adopted"
	MergeOutcomeFetchFailed = "fetch_failed"
	MergeOutcomeReplaceFail = "replace_failed"
)

// CartMetrics records reconciliation engine activity.
type CartMetrics struct {
	mergeDuration   prometheus.Histogram
	merges          *prometheus.CounterVec
	flushFailures   prometheus.Counter
	storageFailures *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	superseded      prometheus.Counter
}

// NewCartMetrics registers the cart metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mergeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_merge_duration_seconds",
		Help:    "Duration of merge-on-login including remote round trips.",
		Buckets: prometheus.DefBuckets,
	})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Merge-on-login attempts by outcome.",
	}, []string{"outcome"})
	flushFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_logout_flush_failures_total",
		Help: "Best-effort logout flushes that failed.",
	})
	storageFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_local_storage_failures_total",
		Help: "Local store operations that failed.",
	}, []string{"op"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_session_transitions_total",
		Help: "Session transitions by target state.",
	}, []string{"to"})
	superseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_transitions_superseded_total",
		Help: "Merge/flush results discarded because a newer transition started.",
	})
	reg.MustRegister(mergeDuration, merges, flushFailures, storageFailures, transitions, superseded)
	return &CartMetrics{
		mergeDuration:   mergeDuration,
		merges:          merges,
		flushFailures:   flushFailures,
		storageFailures: storageFailures,
		transitions:     transitions,
		superseded:      superseded,
	}
}

// ObserveMerge records one merge attempt.
func (c *CartMetrics) ObserveMerge(outcome string, duration time.Duration) {
	if c == nil || c.merges == nil {
		return
	}
	c.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.mergeDuration.Observe(duration.Seconds())
}

// IncFlushFailure counts a failed logout flush.
func (c *CartMetrics) IncFlushFailure() {
	if c == nil || c.flushFailures == nil {
		return
	}
	c.flushFailures.Inc()
}

// IncStorageFailure counts a failed local store operation.
func (c *CartMetrics) IncStorageFailure(op string) {
	if c == nil || c.storageFailures == nil {
		return
	}
	c.storageFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncTransition counts a session transition into state.
func (c *CartMetrics) IncTransition(state string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(state)).Inc()
}

// IncSuperseded counts a discarded stale transition.
func (c *CartMetrics) IncSuperseded() {
	if c == nil || c.superseded == nil {
		return
	}
	c.superseded.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
