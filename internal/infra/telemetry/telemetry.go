package telemetry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

// RBACMetricsOptions configures the authorization metrics.
type RBACMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// RBACMetrics implements port.SecurityMetrics with Prometheus collectors. Labels
// never carry user, role or tenant identifiers.
type RBACMetrics struct {
	RoleLevelViolations   prometheus.Counter
	CrossTenantViolations prometheus.Counter
	CacheInvalidations    *prometheus.CounterVec
	PermissionChanges     *prometheus.CounterVec
	AuditLogErrors        *prometheus.CounterVec
	CheckDuration         *prometheus.HistogramVec
	CheckErrors           *prometheus.CounterVec
}

// NewRBACMetrics registers the collectors, reusing any already registered under the same name.
func NewRBACMetrics(opts RBACMetricsOptions) (*RBACMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "rbac"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	}

	var (
		m   RBACMetrics
		err error
	)

	if m.RoleLevelViolations, err = Register(reg, "role level violations", prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_level_violations_total",
		Help:      "Attempts to act above the actor's role level.",
	})); err != nil {
		return nil, err
	}

	if m.CrossTenantViolations, err = Register(reg, "cross tenant violations", prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cross_tenant_violations_total",
		Help:      "Attempts to modify a role owned by another tenant.",
	})); err != nil {
		return nil, err
	}

	if m.CacheInvalidations, err = Register(reg, "cache invalidations", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Permission cache invalidations partitioned by kind and result.",
	}, []string{"type", "result"})); err != nil {
		return nil, err
	}

	if m.PermissionChanges, err = Register(reg, "permission changes", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_changes_total",
		Help:      "Committed role permission changes partitioned by action.",
	}, []string{"action"})); err != nil {
		return nil, err
	}

	if m.AuditLogErrors, err = Register(reg, "audit log errors", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_log_errors_total",
		Help:      "Audit events that could not be delivered.",
	}, []string{"event_type"})); err != nil {
		return nil, err
	}

	if m.CheckDuration, err = Register(reg, "permission check duration", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "permission_check_duration_seconds",
		Help:      "Latency of permission checks partitioned by cache hit.",
		Buckets:   buckets,
	}, []string{"cache_hit"})); err != nil {
		return nil, err
	}

	if m.CheckErrors, err = Register(reg, "permission check errors", prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "permission_check_errors_total",
		Help:      "Permission check failures partitioned by error type.",
	}, []string{"error_type"})); err != nil {
		return nil, err
	}

	return &m, nil
}

// Register adds collector to reg, returning the collector already registered under the same descriptor if any.
func Register[C prometheus.Collector](reg prometheus.Registerer, name string, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("existing %s collector has unexpected type %T", name, already.ExistingCollector)
		}
		var zero C
		return zero, fmt.Errorf("register %s collector: %w", name, err)
	}
	return collector, nil
}

// RecordRoleLevelViolation counts a rejected attempt to act above the actor's level.
func (m *RBACMetrics) RecordRoleLevelViolation(domain.RoleLevelViolation) {
	m.RoleLevelViolations.Inc()
}

// RecordCrossTenantViolation counts a rejected attempt to touch another tenant's role.
func (m *RBACMetrics) RecordCrossTenantViolation(domain.CrossTenantViolation) {
	m.CrossTenantViolations.Inc()
}

// RecordCacheInvalidation counts an invalidation by kind and result.
func (m *RBACMetrics) RecordCacheInvalidation(kind, result string) {
	m.CacheInvalidations.WithLabelValues(kind, result).Inc()
}

// RecordPermissionChange counts a permission mutation by action.
func (m *RBACMetrics) RecordPermissionChange(c domain.PermissionChange) {
	m.PermissionChanges.WithLabelValues(c.Action).Inc()
}

// RecordAuditLogError counts an audit event that could not be written.
func (m *RBACMetrics) RecordAuditLogError(eventType string) {
	m.AuditLogErrors.WithLabelValues(eventType).Inc()
}

// ObservePermissionCheck records how long a check took, labelled by cache hit.
func (m *RBACMetrics) ObservePermissionCheck(cacheHit bool, d time.Duration) {
	m.CheckDuration.WithLabelValues(strconv.FormatBool(cacheHit)).Observe(d.Seconds())
}

// RecordPermissionCheckError counts a check that failed closed, by error type.
func (m *RBACMetrics) RecordPermissionCheckError(errorType string) {
	m.CheckErrors.WithLabelValues(errorType).Inc()
}

var _ port.SecurityMetrics = (*RBACMetrics)(nil)
