package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/transport/http/middleware"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/usecase"
)

// PermissionAssigner applies bulk permission assignments.
type PermissionAssigner interface {
	AssignPermissionsToRole(ctx context.Context, input usecase.AssignPermissionsInput) (usecase.AssignPermissionsResult, error)
}

// PermissionReader lists role and user permissions.
type PermissionReader interface {
	ListRolePermissions(ctx context.Context, roleID, viewerID int64, viewer *domain.ActorContext) (*domain.Role, []domain.RolePermissionView, error)
	ListUserPermissions(ctx context.Context, userID int64) ([]domain.UserPermissionView, error)
}

// RoleHandler serves the role permission endpoints.
type RoleHandler struct {
	assigner PermissionAssigner
	reader   PermissionReader
	checker  middleware.PermissionChecker
	logger   *zap.Logger
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(assigner PermissionAssigner, reader PermissionReader, checker middleware.PermissionChecker, logger *zap.Logger) *RoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleHandler{assigner: assigner, reader: reader, checker: checker, logger: logger}
}

// AssignPermissions replaces the permissions of the role in the path.
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required", nil))
		return
	}

	roleID, ok := roleIDParam(c)
	if !ok {
		return
	}

	var req AssignPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, string(usecase.CodeInvalidInput), "permission_ids must be an array of integers", nil))
		return
	}

	actorCtx := actor.Context
	result, err := h.assigner.AssignPermissionsToRole(c.Request.Context(), usecase.AssignPermissionsInput{
		RoleID:        roleID,
		AssignerID:    actor.UserID,
		PermissionIDs: req.PermissionIDs,
		Actor:         &actorCtx,
	})
	if err != nil {
		RespondWithAuthzError(c, h.logger, err, "failed to assign permissions")
		return
	}

	c.JSON(http.StatusOK, AssignPermissionsResponse{
		Success:  result.Success,
		Assigned: result.Assigned,
		RoleID:   result.RoleID,
	})
}

// ListRolePermissions returns the role in the path with its permissions.
func (h *RoleHandler) ListRolePermissions(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required", nil))
		return
	}

	roleID, ok := roleIDParam(c)
	if !ok {
		return
	}

	actorCtx := actor.Context
	role, perms, err := h.reader.ListRolePermissions(c.Request.Context(), roleID, actor.UserID, &actorCtx)
	if err != nil {
		RespondWithAuthzError(c, h.logger, err, "failed to list role permissions")
		return
	}

	payload := make([]RolePermissionPayload, 0, len(perms))
	for _, p := range perms {
		payload = append(payload, RolePermissionPayload{
			ID:          p.PermissionID,
			Granted:     p.Granted,
			Action:      p.ActionName,
			RoutePath:   p.RoutePath,
			RouteName:   p.RouteName,
			RouteMethod: p.RouteMethod,
		})
	}

	c.JSON(http.StatusOK, RolePermissionsResponse{
		Role: RoleSummary{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			Level:       role.Level,
			TenantID:    role.TenantID,
			Status:      string(role.Status),
		},
		Permissions: payload,
	})
}

// ListMyPermissions returns the caller's effective permissions.
func (h *RoleHandler) ListMyPermissions(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required", nil))
		return
	}

	perms, err := h.reader.ListUserPermissions(c.Request.Context(), actor.UserID)
	if err != nil {
		RespondWithAuthzError(c, h.logger, err, "failed to list permissions")
		return
	}

	payload := make([]UserPermissionPayload, 0, len(perms))
	for _, p := range perms {
		payload = append(payload, UserPermissionPayload{
			RoutePath:   p.RoutePath,
			RouteMethod: p.RouteMethod,
			Action:      p.ActionName,
		})
	}

	c.JSON(http.StatusOK, UserPermissionsResponse{UserID: actor.UserID, Permissions: payload})
}

// CheckPermission answers whether the caller may perform an action on a route.
// Failures answer false.
func (h *RoleHandler) CheckPermission(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required", nil))
		return
	}

	var req CheckPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, string(usecase.CodeInvalidInput), "action and path are required", nil))
		return
	}

	allowed := h.checker.CheckUserPermission(c.Request.Context(), actor.UserID, req.Action, req.Path, req.Method)
	c.JSON(http.StatusOK, CheckPermissionResponse{Allowed: allowed})
}

func roleIDParam(c *gin.Context) (int64, bool) {
	roleID, err := strconv.ParseInt(strings.TrimSpace(c.Param("roleId")), 10, 64)
	if err != nil || roleID <= 0 {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, string(usecase.CodeInvalidInput), "role id must be a positive integer", nil))
		return 0, false
	}
	return roleID, true
}
