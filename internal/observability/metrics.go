// Package observability holds the Prometheus collectors exported on /metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "commands_total",
		Help:      "Session commands handled, labeled by command and outcome kind.",
	}, []string{"command", "outcome"})

	advancesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "exercise_advances_total",
		Help:      "Exercises promoted to in progress by auto-advance or skip.",
	})

	autoFinishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "sessions_auto_finished_total",
		Help:      "Sessions finished by completing the last set of the last exercise.",
	})

	sessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liftlog",
		Name:      "session_duration_minutes",
		Help:      "Duration of finished sessions in minutes.",
		Buckets:   []float64{5, 15, 30, 45, 60, 75, 90, 120, 180},
	})

	outboxDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "outbox_delivered_total",
		Help:      "Outbox events published to Kafka.",
	})

	outboxFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "liftlog",
		Name:      "outbox_failed_total",
		Help:      "Outbox events whose publish attempt failed.",
	})

	outboxBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "liftlog",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, publishing and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		commandsCounter,
		advancesCounter,
		autoFinishedCounter,
		sessionDuration,
		outboxDelivered,
		outboxFailed,
		outboxBatchDuration,
	)
}

// RecordCommand counts one command. outcome is "ok" or an error kind.
func RecordCommand(command, outcome string) {
	commandsCounter.WithLabelValues(command, outcome).Inc()
}

// RecordAdvance counts one exercise promotion.
func RecordAdvance() {
	advancesCounter.Inc()
}

// RecordSessionFinished observes the duration of a finished session.
func RecordSessionFinished(durationMinutes int, auto bool) {
	sessionDuration.Observe(float64(durationMinutes))
	if auto {
		autoFinishedCounter.Inc()
	}
}

// RecordOutboxBatch records the result of one dispatcher pass.
func RecordOutboxBatch(delivered, failed int, elapsed time.Duration) {
	outboxDelivered.Add(float64(delivered))
	outboxFailed.Add(float64(failed))
	outboxBatchDuration.Observe(elapsed.Seconds())
}
