package domain

import "time"

// Audit event types emitted by the permission assignment engine.
const (
	AuditEventPermissionsAssigned = "rbac.role.permissions_assigned"
	AuditEventPermissionsCleared  = "rbac.role.permissions_cleared"
)

// Audit severities.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityEvent is a single audit record handed to the audit sink.
type SecurityEvent struct {
	EventID    string
	Severity   string
	UserID     int64
	OccurredAt time.Time
	Details    PermissionChangeDetails
}

// PermissionChangeDetails carries the actor, tenant context and diff of a bulk assignment.
type PermissionChangeDetails struct {
	RoleID          int64
	RoleName        string
	PermissionIDs   []int64
	PermissionCount int
	TenantID        *string
	UserType        UserType
	AssignerLevel   int
	Added           []PermissionKey
	Removed         []PermissionKey
}

// RoleLevelViolation describes an attempt to act above the actor's authority.
type RoleLevelViolation struct {
	UserID         int64
	AttemptedLevel int
	UserLevel      int
}

// CrossTenantViolation describes an attempt to mutate a role owned by another tenant.
type CrossTenantViolation struct {
	UserID       int64
	UserTenant   string
	TargetTenant string
	RoleID       int64
}

// PermissionChange summarises a committed bulk assignment for metrics.
type PermissionChange struct {
	UserID    int64
	RoleID    int64
	RoleName  string
	RoleLevel int
	Action    string
	TenantID  string
}

// PermissionInvalidationEvent is broadcast to other nodes after a role's permissions change.
type PermissionInvalidationEvent struct {
	Type      string  `json:"type"`
	RoleID    int64   `json:"role_id"`
	UserIDs   []int64 `json:"user_ids"`
	Timestamp int64   `json:"timestamp"`
	Source    string  `json:"source"`
}
