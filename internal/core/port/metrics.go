package port

import (
	"time"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

// SecurityMetrics receives counters and timings from the authorization engine.
type SecurityMetrics interface {
	RecordRoleLevelViolation(v domain.RoleLevelViolation)
	RecordCrossTenantViolation(v domain.CrossTenantViolation)
	RecordCacheInvalidation(kind, result string)
	RecordPermissionChange(c domain.PermissionChange)
	RecordAuditLogError(eventType string)
	ObservePermissionCheck(cacheHit bool, d time.Duration)
	RecordPermissionCheckError(errorType string)
}

// NopSecurityMetrics discards everything.
type NopSecurityMetrics struct{}

func (NopSecurityMetrics) RecordRoleLevelViolation(domain.RoleLevelViolation)     {}
func (NopSecurityMetrics) RecordCrossTenantViolation(domain.CrossTenantViolation) {}
func (NopSecurityMetrics) RecordCacheInvalidation(string, string)                 {}
func (NopSecurityMetrics) RecordPermissionChange(domain.PermissionChange)         {}
func (NopSecurityMetrics) RecordAuditLogError(string)                             {}
func (NopSecurityMetrics) ObservePermissionCheck(bool, time.Duration)             {}
func (NopSecurityMetrics) RecordPermissionCheckError(string)                      {}
