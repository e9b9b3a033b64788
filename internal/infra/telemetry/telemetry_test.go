package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

func TestRBACMetricsRecords(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewRBACMetrics(RBACMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create rbac metrics: %v", err)
	}

	metrics.RecordRoleLevelViolation(domain.RoleLevelViolation{UserID: 3, AttemptedLevel: 60, UserLevel: 50})
	metrics.RecordCrossTenantViolation(domain.CrossTenantViolation{UserID: 3, UserTenant: "t-a", TargetTenant: "t-b", RoleID: 2})
	metrics.RecordCrossTenantViolation(domain.CrossTenantViolation{UserID: 3, UserTenant: "t-a", TargetTenant: "t-c", RoleID: 4})
	metrics.RecordCacheInvalidation("role", "success")
	metrics.RecordCacheInvalidation("role", "error")
	metrics.RecordPermissionChange(domain.PermissionChange{Action: "assign"})
	metrics.RecordAuditLogError(domain.AuditEventPermissionsAssigned)
	metrics.ObservePermissionCheck(true, 2*time.Millisecond)
	metrics.RecordPermissionCheckError("store")

	if got := testutil.ToFloat64(metrics.RoleLevelViolations); got != 1 {
		t.Fatalf("expected 1 role level violation, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CrossTenantViolations); got != 2 {
		t.Fatalf("expected 2 cross tenant violations, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CacheInvalidations.WithLabelValues("role", "error")); got != 1 {
		t.Fatalf("expected 1 failed invalidation, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.PermissionChanges.WithLabelValues("assign")); got != 1 {
		t.Fatalf("expected 1 permission change, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.AuditLogErrors.WithLabelValues(domain.AuditEventPermissionsAssigned)); got != 1 {
		t.Fatalf("expected 1 audit error, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CheckErrors.WithLabelValues("store")); got != 1 {
		t.Fatalf("expected 1 check error, got %f", got)
	}
	if samples := testutil.CollectAndCount(metrics.CheckDuration); samples != 1 {
		t.Fatalf("expected one duration series, got %d", samples)
	}
}

func TestRBACMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewRBACMetrics(RBACMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create rbac metrics: %v", err)
	}
	second, err := NewRBACMetrics(RBACMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("expected re-registration to succeed, got %v", err)
	}

	second.RecordRoleLevelViolation(domain.RoleLevelViolation{})
	if got := testutil.ToFloat64(first.RoleLevelViolations); got != 1 {
		t.Fatalf("expected shared counter, got %f", got)
	}
}
