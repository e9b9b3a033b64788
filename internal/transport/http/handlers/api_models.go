package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorBody carries a typed error code, a message and optional structured details.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   ErrorBody `json:"error"`
	TraceID string    `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, code, message string, details map[string]any) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   ErrorBody{Code: code, Message: message, Details: details},
		TraceID: traceIDStr,
	}
}

// AssignPermissionsRequest replaces a role's permissions. An empty list clears them.
type AssignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" binding:"required"`
}

// AssignPermissionsResponse reports a committed assignment.
type AssignPermissionsResponse struct {
	Success  bool  `json:"success"`
	Assigned int   `json:"assigned"`
	RoleID   int64 `json:"role_id"`
}

// RoleSummary is the public view of a role.
type RoleSummary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Level       int     `json:"level"`
	TenantID    *string `json:"tenant_id"`
	Status      string  `json:"status"`
}

// RolePermissionPayload is one permission of a role.
type RolePermissionPayload struct {
	ID          int64  `json:"id"`
	Granted     bool   `json:"granted"`
	Action      string `json:"action"`
	RoutePath   string `json:"route_path"`
	RouteName   string `json:"route_name"`
	RouteMethod string `json:"route_method"`
}

// RolePermissionsResponse lists a role and its permissions.
type RolePermissionsResponse struct {
	Role        RoleSummary             `json:"role"`
	Permissions []RolePermissionPayload `json:"permissions"`
}

// UserPermissionPayload is an action the caller may perform on a route.
type UserPermissionPayload struct {
	RoutePath   string `json:"route_path"`
	RouteMethod string `json:"route_method"`
	Action      string `json:"action"`
}

// UserPermissionsResponse lists the caller's effective permissions.
type UserPermissionsResponse struct {
	UserID      int64                   `json:"user_id"`
	Permissions []UserPermissionPayload `json:"permissions"`
}

// CheckPermissionRequest asks whether the caller may perform action on path.
type CheckPermissionRequest struct {
	Action string `json:"action" binding:"required"`
	Path   string `json:"path" binding:"required"`
	Method string `json:"method"`
}

// CheckPermissionResponse answers a CheckPermissionRequest.
type CheckPermissionResponse struct {
	Allowed bool `json:"allowed"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
