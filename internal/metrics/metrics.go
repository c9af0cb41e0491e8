// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. All counters are registered on a
// private registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	JobRuns           *prometheus.CounterVec
	MentionsProcessed *prometheus.CounterVec
	IssuesCreated     prometheus.Counter
	RateLimitAborts   *prometheus.CounterVec
	SentimentUpdates  *prometheus.CounterVec
}

// Job run results.
const (
	RunOK          = "ok"
	RunError       = "error"
	RunOverlapSkip = "overlap_skipped"
)

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.JobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicwatch_job_runs_total",
		Help: "Job runs by job name and result.",
	}, []string{"job", "result"})

	m.MentionsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicwatch_mentions_processed_total",
		Help: "Mentions handled by the discovery job, by outcome.",
	}, []string{"outcome"})

	m.IssuesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "civicwatch_issues_created_total",
		Help: "Issue records persisted from classified mentions.",
	})

	m.RateLimitAborts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicwatch_rate_limit_aborts_total",
		Help: "Runs cut short by an upstream rate limit, by job name.",
	}, []string{"job"})

	m.SentimentUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civicwatch_sentiment_updates_total",
		Help: "Engagement summaries written, by overall sentiment.",
	}, []string{"sentiment"})

	m.registry.MustRegister(
		m.JobRuns,
		m.MentionsProcessed,
		m.IssuesCreated,
		m.RateLimitAborts,
		m.SentimentUpdates,
	)
	return m
}

// Handler returns the HTTP handler serving the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
