// Package metrics collects vote metrics and exposes them to Prometheus
package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records vote ledger and optimistic update metrics
type Collector struct {
	votesApplied    *prometheus.CounterVec
	voteConflicts   prometheus.Counter
	voteFailures    *prometheus.CounterVec
	applyLatency    prometheus.Histogram
	optimisticVotes *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		votesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextup_votes_applied_total",
			Help: "Votes committed, by state transition",
		}, []string{"transition"}),
		voteConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextup_vote_conflicts_total",
			Help: "Vote transactions retried after losing a uniqueness race",
		}),
		voteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextup_vote_failures_total",
			Help: "Votes that failed, by error code",
		}, []string{"code"}),
		applyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nextup_vote_apply_seconds",
			Help:    "Time to apply one vote including retries",
			Buckets: prometheus.DefBuckets,
		}),
		optimisticVotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextup_optimistic_votes_total",
			Help: "Optimistic client votes, by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.votesApplied,
		c.voteConflicts,
		c.voteFailures,
		c.applyLatency,
		c.optimisticVotes,
	)
	return c
}

// RecordVoteApplied counts a committed vote, e.g. transition "NONE->UP"
func (c *Collector) RecordVoteApplied(transition string) {
	c.votesApplied.WithLabelValues(transition).Inc()
}

// RecordVoteConflict counts one retry caused by a duplicate insert
func (c *Collector) RecordVoteConflict() {
	c.voteConflicts.Inc()
}

// RecordVoteFailure counts a failed vote by its wire code
func (c *Collector) RecordVoteFailure(code string) {
	c.voteFailures.WithLabelValues(code).Inc()
}

// ObserveVoteLatency records the duration of one ApplyVote call
func (c *Collector) ObserveVoteLatency(d time.Duration) {
	c.applyLatency.Observe(d.Seconds())
}

// RecordOptimisticOutcome counts a settled client vote, "confirmed" or "rolled_back"
func (c *Collector) RecordOptimisticOutcome(outcome string) {
	c.optimisticVotes.WithLabelValues(outcome).Inc()
}

// Handler serves the gathered metrics on a fiber route
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
