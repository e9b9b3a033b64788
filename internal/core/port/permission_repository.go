package port

import (
	"context"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

// PermissionRepository manages permission storage.
type PermissionRepository interface {
	// ListRequirements returns the rows found for ids. Missing ids are simply absent.
	ListRequirements(ctx context.Context, ids []int64) ([]domain.PermissionRequirement, error)
	ListByRole(ctx context.Context, roleID int64) ([]domain.RolePermissionView, error)
	ListGrantedByUser(ctx context.Context, userID int64) ([]domain.UserPermissionView, error)
	HasGrantedPermission(ctx context.Context, userID int64, action, routePath, method string) (bool, error)
	// ReplaceForRole atomically swaps the role's permission set for grants.
	ReplaceForRole(ctx context.Context, roleID int64, grants []domain.PermissionGrant) (domain.ReplaceResult, error)
}
