package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "notebook"

	schedulerSubsystem = "scheduler"
	retrievalSubsystem = "retrieval"

	// Labels
	jobTypeLabel = "type"
	outcomeLabel = "outcome"
	stageLabel   = "stage"
)

// Job outcomes recorded by the scheduler.
const (
	OutcomeDone      = "done"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Rerank decisions recorded by the retrieval engine.
const (
	RerankSkipped  = "skipped"
	RerankApplied  = "applied"
	RerankFallback = "fallback"
)

// Collector groups the collectors shared by the scheduler and the retrieval engine.
// A nil *Collector is valid and records nothing.
type Collector struct {
	jobsClaimed   *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	activeWorkers prometheus.Gauge

	queries       prometheus.Counter
	queryDuration *prometheus.HistogramVec
	reranks       *prometheus.CounterVec
	contextChunks prometheus.Histogram
}

// NewCollector creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsClaimed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: schedulerSubsystem,
				Name:      "jobs_claimed_total",
				Help:      "number of jobs claimed by the scheduler",
			},
			[]string{jobTypeLabel},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: schedulerSubsystem,
				Name:      "jobs_finished_total",
				Help:      "number of job executions partitioned by type and outcome",
			},
			[]string{jobTypeLabel, outcomeLabel},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: schedulerSubsystem,
				Name:      "job_duration_seconds",
				Help:      "time spent executing a job",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{jobTypeLabel},
		),
		activeWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: schedulerSubsystem,
				Name:      "active_workers",
				Help:      "number of workers currently holding a slot",
			},
		),
		queries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: retrievalSubsystem,
				Name:      "queries_total",
				Help:      "number of retrieval queries",
			},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: retrievalSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "time spent in each retrieval stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{stageLabel},
		),
		reranks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: retrievalSubsystem,
				Name:      "rerank_total",
				Help:      "rerank decisions partitioned by outcome",
			},
			[]string{outcomeLabel},
		),
		contextChunks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: retrievalSubsystem,
				Name:      "context_chunks",
				Help:      "number of chunks placed in an answer context",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
		),
	}

	if reg != nil {
		reg.MustRegister(c.Collectors()...)
	}
	return c
}

// Collectors returns every collector for registration with a custom registry.
func (c *Collector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.jobsClaimed,
		c.jobsFinished,
		c.jobDuration,
		c.activeWorkers,
		c.queries,
		c.queryDuration,
		c.reranks,
		c.contextChunks,
	}
}

func (c *Collector) JobClaimed(jobType string) {
	if c == nil {
		return
	}
	c.jobsClaimed.With(prometheus.Labels{jobTypeLabel: jobType}).Inc()
}

func (c *Collector) JobFinished(jobType, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.jobsFinished.With(prometheus.Labels{jobTypeLabel: jobType, outcomeLabel: outcome}).Inc()
	c.jobDuration.With(prometheus.Labels{jobTypeLabel: jobType}).Observe(elapsed.Seconds())
}

func (c *Collector) SetActiveWorkers(n int) {
	if c == nil {
		return
	}
	c.activeWorkers.Set(float64(n))
}

func (c *Collector) QueryStarted() {
	if c == nil {
		return
	}
	c.queries.Inc()
}

// ObserveStage records how long a retrieval stage took.
func (c *Collector) ObserveStage(stage string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.queryDuration.With(prometheus.Labels{stageLabel: stage}).Observe(elapsed.Seconds())
}

func (c *Collector) Rerank(outcome string) {
	if c == nil {
		return
	}
	c.reranks.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func (c *Collector) ContextChunks(n int) {
	if c == nil {
		return
	}
	c.contextChunks.Observe(float64(n))
}
