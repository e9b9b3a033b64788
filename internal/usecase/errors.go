package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a typed authorization outcome.
type ErrorCode string

const (
	CodeRoleLevelViolation         ErrorCode = "ROLE_LEVEL_VIOLATION"
	CodeCrossTenantViolation       ErrorCode = "CROSS_TENANT_VIOLATION"
	CodeTenantMismatch             ErrorCode = "TENANT_MISMATCH"
	CodeGlobalRoleModification     ErrorCode = "GLOBAL_ROLE_MODIFICATION"
	CodeRoleNotFound               ErrorCode = "ROLE_NOT_FOUND"
	CodePermissionsNotFound        ErrorCode = "PERMISSIONS_NOT_FOUND"
	CodeInvalidInput               ErrorCode = "INVALID_INPUT"
	CodePermissionAssignmentFailed ErrorCode = "PERMISSION_ASSIGNMENT_FAILED"
	CodeTenantScopeCheckFailed     ErrorCode = "TENANT_SCOPE_CHECK_FAILED"
	CodeRoleLevelCheckFailed       ErrorCode = "ROLE_LEVEL_CHECK_FAILED"
)

// AuthzError is the typed error returned by the authorization engine.
type AuthzError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *AuthzError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthzError) Unwrap() error {
	return e.Err
}

// Is matches any AuthzError carrying the same code.
func (e *AuthzError) Is(target error) bool {
	var other *AuthzError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Status returns the HTTP status equivalent of the error code.
func (e *AuthzError) Status() int {
	switch e.Code {
	case CodeRoleLevelViolation, CodeCrossTenantViolation, CodeTenantMismatch, CodeGlobalRoleModification:
		return http.StatusForbidden
	case CodeRoleNotFound:
		return http.StatusNotFound
	case CodePermissionsNotFound, CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Validation reports whether the error is a deterministic rejection rather than an infrastructure failure.
func (e *AuthzError) Validation() bool {
	return e.Status() < http.StatusInternalServerError
}

var (
	ErrRoleLevelViolation         = &AuthzError{Code: CodeRoleLevelViolation, Message: "insufficient role level"}
	ErrCrossTenantViolation       = &AuthzError{Code: CodeCrossTenantViolation, Message: "role belongs to another tenant"}
	ErrTenantMismatch             = &AuthzError{Code: CodeTenantMismatch, Message: "actor has no tenant but role is tenant scoped"}
	ErrGlobalRoleModification     = &AuthzError{Code: CodeGlobalRoleModification, Message: "global roles cannot be modified by this actor"}
	ErrRoleNotFound               = &AuthzError{Code: CodeRoleNotFound, Message: "role not found"}
	ErrPermissionsNotFound        = &AuthzError{Code: CodePermissionsNotFound, Message: "permissions not found"}
	ErrInvalidInput               = &AuthzError{Code: CodeInvalidInput, Message: "invalid input"}
	ErrPermissionAssignmentFailed = &AuthzError{Code: CodePermissionAssignmentFailed, Message: "permission assignment failed"}
	ErrTenantScopeCheckFailed     = &AuthzError{Code: CodeTenantScopeCheckFailed, Message: "tenant scope check failed"}
	ErrRoleLevelCheckFailed       = &AuthzError{Code: CodeRoleLevelCheckFailed, Message: "role level check failed"}
)

func newAuthzError(code ErrorCode, message string, details map[string]any, err error) *AuthzError {
	return &AuthzError{Code: code, Message: message, Details: details, Err: err}
}

// AsAuthzError extracts the typed error from err.
func AsAuthzError(err error) (*AuthzError, bool) {
	var authzErr *AuthzError
	if errors.As(err, &authzErr) {
		return authzErr, true
	}
	return nil, false
}

// asCheckFailure passes typed errors through and converts anything else into code.
func asCheckFailure(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAuthzError(err); ok {
		return err
	}
	return newAuthzError(code, message, nil, err)
}
