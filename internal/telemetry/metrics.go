package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/casekeeper"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Authorization metrics
	AuthzDecisionsTotal metric.Int64Counter

	// Assignment metrics
	AssignmentsTotal      metric.Int64Counter
	NoEligibleWorkers     metric.Int64Counter
	AssignConflictRetries metric.Int64Counter
	BulkAssignDuration    metric.Float64Histogram

	// Audit metrics
	AuditRecordsTotal  metric.Int64Counter
	AuditFailuresTotal metric.Int64Counter

	// Identity cache metrics
	IdentityCacheHits   metric.Int64Counter
	IdentityCacheMisses metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for engine spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.AuthzDecisionsTotal, _ = meter.Int64Counter(
		"casekeeper.authz.decisions.total",
		metric.WithDescription("Total number of authorization decisions by permission and outcome"),
		metric.WithUnit("{decision}"),
	)

	m.AssignmentsTotal, _ = meter.Int64Counter(
		"casekeeper.assignments.total",
		metric.WithDescription("Total number of client assignments by mode"),
		metric.WithUnit("{assignment}"),
	)

	m.NoEligibleWorkers, _ = meter.Int64Counter(
		"casekeeper.assignments.no_eligible.total",
		metric.WithDescription("Total number of assignment attempts with no eligible worker"),
		metric.WithUnit("{attempt}"),
	)

	m.AssignConflictRetries, _ = meter.Int64Counter(
		"casekeeper.assignments.conflict_retries.total",
		metric.WithDescription("Total number of assignment retries after a version conflict"),
		metric.WithUnit("{retry}"),
	)

	m.BulkAssignDuration, _ = meter.Float64Histogram(
		"casekeeper.bulk_assign.duration",
		metric.WithDescription("Duration of bulk assignment batches"),
		metric.WithUnit("ms"),
	)

	m.AuditRecordsTotal, _ = meter.Int64Counter(
		"casekeeper.audit.records.total",
		metric.WithDescription("Total number of audit entries appended"),
		metric.WithUnit("{entry}"),
	)

	m.AuditFailuresTotal, _ = meter.Int64Counter(
		"casekeeper.audit.failures.total",
		metric.WithDescription("Total number of audit entries that could not be appended"),
		metric.WithUnit("{entry}"),
	)

	m.IdentityCacheHits, _ = meter.Int64Counter(
		"casekeeper.identity.cache.hits.total",
		metric.WithDescription("Total number of identity lookups served from cache"),
		metric.WithUnit("{lookup}"),
	)

	m.IdentityCacheMisses, _ = meter.Int64Counter(
		"casekeeper.identity.cache.misses.total",
		metric.WithDescription("Total number of identity lookups that went to the store"),
		metric.WithUnit("{lookup}"),
	)

	return m
}
