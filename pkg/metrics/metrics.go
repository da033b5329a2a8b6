package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Audit trail metrics
	AuditEntriesWritten prometheus.Counter
	AuditWriteFailures  prometheus.Counter
	AuditPublishErrors  prometheus.Counter

	// Verification code metrics
	CodesIssued         prometheus.Counter
	VerificationResults *prometheus.CounterVec

	// Bulk action metrics
	BulkActionsApplied *prometheus.CounterVec
	BulkBatchSize      prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		AuditEntriesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_entries_written_total",
			Help:      "Total number of audit entries durably written",
		}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_write_failures_total",
			Help:      "Total number of failed audit entry writes",
		}),
		AuditPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_publish_errors_total",
			Help:      "Total number of best-effort audit event publish failures",
		}),
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "verification_codes_issued_total",
			Help:      "Total number of verification codes issued",
		}),
		VerificationResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "verification_attempts_total",
			Help:      "Verification attempts by result",
		}, []string{"result"}),
		BulkActionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bulk_actions_applied_total",
			Help:      "Bulk identity actions by action type",
		}, []string{"action"}),
		BulkBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bulk_batch_size",
			Help:      "Number of identities affected per bulk action",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// New creates unregistered metrics, useful in tests where the default
// registry would reject duplicate registration.
func New(namespace string) *Metrics {
	return &Metrics{
		AuditEntriesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_written_total",
			Help:      "Total number of audit entries durably written",
		}),
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Total number of failed audit entry writes",
		}),
		AuditPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_publish_errors_total",
			Help:      "Total number of best-effort audit event publish failures",
		}),
		CodesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_codes_issued_total",
			Help:      "Total number of verification codes issued",
		}),
		VerificationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_attempts_total",
			Help:      "Verification attempts by result",
		}, []string{"result"}),
		BulkActionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_actions_applied_total",
			Help:      "Bulk identity actions by action type",
		}, []string{"action"}),
		BulkBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_batch_size",
			Help:      "Number of identities affected per bulk action",
		}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
		}, []string{"operation"}),
	}
}
