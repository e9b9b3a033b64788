package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository"
)

// PermissionService exposes read views over role and user permissions.
type PermissionService struct {
	roles       port.RoleRepository
	permissions port.PermissionRepository
	scopes      *TenantScopeResolver
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(roles port.RoleRepository, permissions port.PermissionRepository, scopes *TenantScopeResolver) *PermissionService {
	return &PermissionService{roles: roles, permissions: permissions, scopes: scopes}
}

// ListRolePermissions returns the role and its permissions as seen by viewerID.
// Roles owned by another tenant are reported as not found to tenant-scoped viewers.
func (s *PermissionService) ListRolePermissions(ctx context.Context, roleID, viewerID int64, viewer *domain.ActorContext) (*domain.Role, []domain.RolePermissionView, error) {
	if roleID <= 0 || viewerID <= 0 {
		return nil, nil, newAuthzError(CodeInvalidInput, "role id and viewer id are required", nil, nil)
	}
	notFound := newAuthzError(CodeRoleNotFound, "role not found", map[string]any{"role_id": roleID}, nil)

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, notFound
		}
		return nil, nil, fmt.Errorf("get role: %w", err)
	}

	if role.TenantID != nil {
		info, err := s.scopes.ResolveActor(ctx, viewerID, viewer)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsGlobal && (info.TenantID == nil || !sameTenant(*info.TenantID, *role.TenantID)) {
			return nil, nil, notFound
		}
	}

	perms, err := s.permissions.ListByRole(ctx, roleID)
	if err != nil {
		return nil, nil, fmt.Errorf("list role permissions: %w", err)
	}
	return role, perms, nil
}

// ListUserPermissions returns every granted action and route reachable through the user's active roles.
func (s *PermissionService) ListUserPermissions(ctx context.Context, userID int64) ([]domain.UserPermissionView, error) {
	if userID <= 0 {
		return nil, newAuthzError(CodeInvalidInput, "user id is required", nil, nil)
	}
	perms, err := s.permissions.ListGrantedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user permissions: %w", err)
	}
	return perms, nil
}
