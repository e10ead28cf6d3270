// Package metrics defines and registers the custom Prometheus metrics of the
// task API. It is the single source of truth for metric names, labels, and
// help strings.
//
// All metrics are registered with the default registry at package init via
// promauto; HTTP request metrics come from the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskmanager"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts signup and login outcomes.
// Labels:
//   - operation: "signup" or "login"
//   - result: "success", "duplicate" or "invalid"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of signup and login attempts, by outcome.",
	},
	[]string{"operation", "result"},
)

// TokenVerificationsTotal counts bearer token checks.
// Label:
//   - result: "ok", "missing", "invalid" or "expired"
var TokenVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_verifications_total",
		Help:      "Total number of bearer token verifications, by result.",
	},
	[]string{"result"},
)

// ── Task metrics ──────────────────────────────────────────────────────────────

// TaskConflictsTotal counts optimistic write retries lost to a concurrent
// mutation of the same task.
var TaskConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_conflicts_total",
		Help:      "Total number of task writes retried after a concurrent mutation.",
	},
)

// TaskMutationsTotal counts successful task mutations.
// Label:
//   - action: "created", "updated", "toggled" or "deleted"
var TaskMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_mutations_total",
		Help:      "Total number of successful task mutations, by action.",
	},
	[]string{"action"},
)

// IdempotencyTotal counts Idempotency-Key lookups on task creation.
// Label:
//   - result: "hit", "miss", "stale" (key known but task gone) or
//     "in_flight" (gave up waiting on a concurrent request)
var IdempotencyTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_lookups_total",
		Help:      "Total number of idempotency key lookups, by result.",
	},
	[]string{"result"},
)

// ── Activity pipeline metrics ─────────────────────────────────────────────────

// ActivityProcessedTotal counts activity records persisted to the audit trail.
var ActivityProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_processed_total",
		Help:      "Total number of task activity records persisted.",
	},
	[]string{"action"},
)

// ActivityErrorsTotal counts activity records that failed or were dropped.
// Label:
//   - reason: e.g. "invalid_action", "insert_failed", "queue_full"
var ActivityErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activity_errors_total",
		Help:      "Total number of task activity records that failed processing.",
	},
	[]string{"reason"},
)

// ActivityQueueDepth tracks pending records per dispatcher worker.
var ActivityQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "activity_queue_depth",
		Help:      "Current number of activity records pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ActivityProcessingDuration measures how long persisting one record takes.
// Label:
//   - action: the recorded action, or "error" on failure
var ActivityProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "activity_processing_duration_seconds",
		Help:      "Duration of activity processing from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"action"},
)
