package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// CommentSubmissions counts submit and reply attempts by outcome
	// (accepted, pending, or the rejecting error code).
	CommentSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modhub_comment_submissions_total",
		Help: "Comment submissions by outcome",
	}, []string{"outcome"})

	// ModerationTransitions counts approve, reject and delete transitions.
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modhub_moderation_transitions_total",
		Help: "Comment lifecycle transitions",
	}, []string{"transition"})

	// Votes counts vote ledger actions (added, removed, changed).
	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modhub_votes_total",
		Help: "Vote ledger actions",
	}, []string{"action"})

	// TimeoutsApplied counts timeouts written, by severity.
	TimeoutsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modhub_timeouts_applied_total",
		Help: "Submission timeouts applied by severity",
	}, []string{"severity"})

	// AuditFailures counts audit events that could not be delivered to a sink.
	AuditFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modhub_audit_failures_total",
		Help: "Audit events dropped per sink",
	}, []string{"sink"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modhub_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modhub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

const queryStartKey = "modhub:query_start"

// RegisterQueryMetrics installs gorm callbacks that observe per-statement latency.
func RegisterQueryMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			DatabaseQueryLatency.WithLabelValues(operation, tx.Statement.Table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	errs := []error{
		cb.Create().Before("gorm:create").Register("metrics:create:before", before),
		cb.Create().After("gorm:create").Register("metrics:create:after", after("create")),
		cb.Query().Before("gorm:query").Register("metrics:query:before", before),
		cb.Query().After("gorm:query").Register("metrics:query:after", after("query")),
		cb.Update().Before("gorm:update").Register("metrics:update:before", before),
		cb.Update().After("gorm:update").Register("metrics:update:after", after("update")),
		cb.Delete().Before("gorm:delete").Register("metrics:delete:before", before),
		cb.Delete().After("gorm:delete").Register("metrics:delete:after", after("delete")),
		cb.Raw().Before("gorm:raw").Register("metrics:raw:before", before),
		cb.Raw().After("gorm:raw").Register("metrics:raw:after", after("raw")),
	}
	return errors.Join(errs...)
}
