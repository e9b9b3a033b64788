package domain

import "time"

// RoleStatus enumerates the lifecycle states of a role.
type RoleStatus string

const (
	RoleStatusActive   RoleStatus = "active"
	RoleStatusInactive RoleStatus = "inactive"
)

// Role groups permissions under an authority level. A nil TenantID marks a role
// that is not owned by any tenant.
type Role struct {
	ID          int64
	Name        string
	Description *string
	Level       int
	TenantID    *string
	Status      RoleStatus
}

// Action is a named verb such as read, write or delete.
type Action struct {
	ID   int64
	Name string
}

// Route is a protected resource path paired with an HTTP method.
type Route struct {
	ID     int64
	Path   string
	Method string
	Name   string
	Module string
}

// Permission grants an action on a route to a role.
type Permission struct {
	ID           int64
	RoleID       int64
	ActionID     int64
	RouteID      int64
	Granted      bool
	MinRoleLevel *int
}

// PermissionRequirement is a permission row joined with the level of the role that owns it.
type PermissionRequirement struct {
	PermissionID int64
	RoleID       int64
	ActionID     int64
	RouteID      int64
	RoleLevel    int
	MinRoleLevel *int
}

// RequiredLevel returns the clearance needed to wield the permission: the owning
// role's level or the per-permission override, whichever is greater.
func (p PermissionRequirement) RequiredLevel() int {
	if p.MinRoleLevel != nil && *p.MinRoleLevel > p.RoleLevel {
		return *p.MinRoleLevel
	}
	return p.RoleLevel
}

// PermissionKey identifies a grant independent of the role it belongs to.
type PermissionKey struct {
	ActionID int64
	RouteID  int64
}

// PermissionGrant is a row to be written for a role during a bulk assignment.
type PermissionGrant struct {
	RoleID   int64
	ActionID int64
	RouteID  int64
	Granted  bool
}

// Key returns the grant's action/route pair.
func (g PermissionGrant) Key() PermissionKey {
	return PermissionKey{ActionID: g.ActionID, RouteID: g.RouteID}
}

// ReplaceResult reports the outcome of an atomic replace-all of a role's permissions.
type ReplaceResult struct {
	Previous []PermissionKey
	Assigned int
}

// RolePermissionView is a role's permission joined with its action and route.
type RolePermissionView struct {
	PermissionID int64
	Granted      bool
	ActionName   string
	RoutePath    string
	RouteName    string
	RouteMethod  string
}

// UserPermissionView is a granted action/route pair reachable through a user's roles.
type UserPermissionView struct {
	RoutePath   string
	RouteMethod string
	ActionName  string
	Granted     bool
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID     int64
	RoleID     int64
	AssignedAt time.Time
}
