// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services, the outbox replayer and the HTTP layer report to.
type Recorder interface {
	RecordTurn(outcome string)
	RecordCompletionLatency(provider string, d time.Duration)
	RecordPersistenceFailure(kind string)
	RecordOutboxReplay(result string)
	RecordHTTPStatus(statusCode int)
}

// Turn outcomes.
const (
	TurnOK           = "ok"
	TurnRejected     = "rejected"
	TurnUpstreamFail = "upstream_error"
)

// Persistence failure kinds.
const (
	FailureUserMessage      = "user_message"
	FailureAssistantMessage = "assistant_message"
	FailureTitle            = "title"
	FailureOutbox           = "outbox"
)

// Outbox replay results.
const (
	ReplayApplied = "applied"
	ReplayFailed  = "failed"
	ReplayDropped = "dropped"
)

type Collector struct {
	turns               *prometheus.CounterVec
	completionLatency   *prometheus.HistogramVec
	persistenceFailures *prometheus.CounterVec
	outboxReplays       *prometheus.CounterVec
	httpStatus          *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galaxy_turns_total",
			Help: "Conversation turns by outcome.",
		}, []string{"outcome"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "galaxy_completion_latency_seconds",
			Help:    "Completion provider latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galaxy_persistence_failures_total",
			Help: "Writes that failed after a successful completion.",
		}, []string{"kind"}),
		outboxReplays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galaxy_outbox_replays_total",
			Help: "Outbox replay attempts by result.",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "galaxy_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.turns,
		c.completionLatency,
		c.persistenceFailures,
		c.outboxReplays,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordTurn(outcome string) {
	c.turns.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCompletionLatency(provider string, d time.Duration) {
	c.completionLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (c *Collector) RecordPersistenceFailure(kind string) {
	c.persistenceFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordOutboxReplay(result string) {
	c.outboxReplays.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordTurn(string) {}
func (Nop) RecordCompletionLatency(string, time.Duration) {}
func (Nop) RecordPersistenceFailure(string) {}
func (Nop) RecordOutboxReplay(string) {}
func (Nop) RecordHTTPStatus(int) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
