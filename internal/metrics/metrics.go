// Package metrics declares the Prometheus collectors shared by the
// command, edit and server packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Commands counts executed commands.
	// Labels: command, outcome (ok, error, malformed)
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgls",
		Subsystem: "command",
		Name:      "executions_total",
		Help:      "Total command executions",
	}, []string{"command", "outcome"})

	// CommandDuration measures command execution time.
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orgls",
		Subsystem: "command",
		Name:      "duration_seconds",
		Help:      "Command execution time in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"command"})

	// Edits counts edits handed to an applier.
	// Labels: mode (buffer, client, dry-run), outcome (ok, error)
	Edits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgls",
		Subsystem: "edit",
		Name:      "applied_total",
		Help:      "Total edits handed to an applier",
	}, []string{"mode", "outcome"})

	// Requests counts requests served by a surface.
	// Labels: surface (lsp, http, bridge), method
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgls",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Total requests served",
	}, []string{"surface", "method"})

	// SyntaxErrors counts syntax errors found in source blocks.
	// Labels: language
	SyntaxErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orgls",
		Subsystem: "srccheck",
		Name:      "syntax_errors_total",
		Help:      "Total syntax errors reported in source blocks",
	}, []string{"language"})

	// Documents tracks open documents.
	Documents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "orgls",
		Subsystem: "store",
		Name:      "documents",
		Help:      "Number of open documents",
	})
)

// ObserveCommand records one command execution.
func ObserveCommand(name, outcome string, start time.Time) {
	Commands.WithLabelValues(name, outcome).Inc()
	CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
