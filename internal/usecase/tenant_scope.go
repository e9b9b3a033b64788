package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository"
)

// TenantScopeResolver determines the tenant scope of users and roles.
type TenantScopeResolver struct {
	users  port.UserRepository
	roles  port.RoleRepository
	policy LevelPolicy
}

// NewTenantScopeResolver constructs a TenantScopeResolver.
func NewTenantScopeResolver(users port.UserRepository, roles port.RoleRepository, policy LevelPolicy) *TenantScopeResolver {
	return &TenantScopeResolver{users: users, roles: roles, policy: policy}
}

// GetUserTenantInfo resolves a user's tenant scope. A hinted Enterprise Admin is
// answered without a lookup. A user with no stored type resolves to UNKNOWN.
func (r *TenantScopeResolver) GetUserTenantInfo(ctx context.Context, userID int64, hint *domain.UserType) (domain.UserTenantInfo, error) {
	if hint != nil && *hint == domain.UserTypeEnterpriseAdmin {
		return domain.UserTenantInfo{IsGlobal: true, UserType: domain.UserTypeEnterpriseAdmin}, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.UserTenantInfo{}, newAuthzError(CodeTenantScopeCheckFailed, "failed to resolve user tenant", nil, err)
		}
		if hint != nil && *hint == domain.UserTypeSuperAdmin {
			return domain.UserTenantInfo{IsGlobal: true, UserType: domain.UserTypeSuperAdmin}, nil
		}
		return domain.UserTenantInfo{UserType: domain.UserTypeUnknown}, nil
	}

	userType := user.UserType
	if hint != nil && *hint != domain.UserTypeUnknown {
		userType = *hint
	}

	switch userType {
	case domain.UserTypeEnterpriseAdmin:
		return domain.UserTenantInfo{IsGlobal: true, UserType: userType}, nil
	case domain.UserTypeSuperAdmin:
		return domain.UserTenantInfo{IsGlobal: true, UserType: userType, ProductScope: user.ProductScope}, nil
	case domain.UserTypeUser:
		return domain.UserTenantInfo{TenantID: user.TenantID, UserType: userType}, nil
	default:
		return domain.UserTenantInfo{TenantID: user.TenantID, UserType: domain.UserTypeUnknown}, nil
	}
}

// GetRoleTenantInfo resolves a role's tenant ownership. It returns nil when the role does not exist.
func (r *TenantScopeResolver) GetRoleTenantInfo(ctx context.Context, roleID int64) (*domain.RoleTenantInfo, error) {
	role, err := r.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, newAuthzError(CodeTenantScopeCheckFailed, "failed to resolve role tenant", nil, err)
	}
	return &domain.RoleTenantInfo{
		RoleID:       role.ID,
		TenantID:     role.TenantID,
		IsGlobalRole: r.policy.IsGlobalRole(role.Level),
		RoleName:     role.Name,
		Level:        role.Level,
	}, nil
}

// ResolveActor resolves userID's tenant scope. Set fields of actor replace the lookup.
func (r *TenantScopeResolver) ResolveActor(ctx context.Context, userID int64, actor *domain.ActorContext) (domain.UserTenantInfo, error) {
	if actor != nil && actor.UserType != nil {
		userType := *actor.UserType
		if userType.IsGlobal() {
			return domain.UserTenantInfo{IsGlobal: true, UserType: userType}, nil
		}
		if actor.TenantID != nil {
			return domain.UserTenantInfo{TenantID: actor.TenantID, UserType: userType}, nil
		}
	}

	var hint *domain.UserType
	if actor != nil {
		hint = actor.UserType
	}
	info, err := r.GetUserTenantInfo(ctx, userID, hint)
	if err != nil {
		return domain.UserTenantInfo{}, err
	}
	if actor != nil && actor.TenantID != nil && !info.IsGlobal {
		info.TenantID = actor.TenantID
	}
	return info, nil
}

// TenantScope is the outcome of a successful tenant scope validation.
type TenantScope struct {
	Valid      bool
	Actor      domain.UserTenantInfo
	ActorLevel int
	Role       domain.RoleTenantInfo
}

// ResolvedActor returns an actor context carrying the resolved scope, so later
// checks in the same operation reuse it.
func (s TenantScope) ResolvedActor() *domain.ActorContext {
	userType := s.Actor.UserType
	level := s.ActorLevel
	return &domain.ActorContext{UserType: &userType, TenantID: s.Actor.TenantID, Level: &level}
}

// TenantScopeValidator rejects modifications outside the actor's tenant.
type TenantScopeValidator struct {
	scopes  *TenantScopeResolver
	levels  *RoleLevelResolver
	policy  LevelPolicy
	metrics port.SecurityMetrics
	logger  *zap.Logger
}

// NewTenantScopeValidator constructs a TenantScopeValidator.
func NewTenantScopeValidator(scopes *TenantScopeResolver, levels *RoleLevelResolver, policy LevelPolicy, logger *zap.Logger) *TenantScopeValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantScopeValidator{
		scopes:  scopes,
		levels:  levels,
		policy:  policy,
		metrics: port.NopSecurityMetrics{},
		logger:  logger,
	}
}

// WithMetrics sets the sink for violation counters.
func (v *TenantScopeValidator) WithMetrics(metrics port.SecurityMetrics) *TenantScopeValidator {
	if metrics != nil {
		v.metrics = metrics
	}
	return v
}

// ValidateTenantScope checks whether assignerID may modify roleID. Set fields of
// actor replace the corresponding lookups.
func (v *TenantScopeValidator) ValidateTenantScope(ctx context.Context, assignerID, roleID int64, actor *domain.ActorContext) (TenantScope, error) {
	var (
		scope TenantScope
		role  *domain.RoleTenantInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := v.scopes.ResolveActor(gctx, assignerID, actor)
		if err != nil {
			return err
		}
		scope.Actor = info
		return nil
	})
	g.Go(func() error {
		level, err := v.levels.levelFor(gctx, assignerID, actor)
		if err != nil {
			return err
		}
		scope.ActorLevel = level
		return nil
	})
	g.Go(func() error {
		info, err := v.scopes.GetRoleTenantInfo(gctx, roleID)
		if err != nil {
			return err
		}
		role = info
		return nil
	})
	if err := g.Wait(); err != nil {
		return TenantScope{}, asCheckFailure(err, CodeTenantScopeCheckFailed, "failed to resolve tenant scope")
	}

	attempted := 0
	if role != nil {
		attempted = role.Level
	}
	if scope.Actor.UserType == domain.UserTypeUnknown || scope.ActorLevel <= 0 {
		recordLevelViolation(v.metrics, v.logger, assignerID, attempted, 0)
		return TenantScope{}, newAuthzError(CodeRoleLevelViolation, "actor has no authority", map[string]any{
			"user_type":  string(scope.Actor.UserType),
			"user_level": scope.ActorLevel,
		}, nil)
	}
	if role == nil {
		return TenantScope{}, newAuthzError(CodeRoleNotFound, "role not found", map[string]any{"role_id": roleID}, nil)
	}
	scope.Role = *role

	if err := v.checkScope(assignerID, scope); err != nil {
		return TenantScope{}, err
	}
	scope.Valid = true
	return scope, nil
}

func (v *TenantScopeValidator) checkScope(assignerID int64, scope TenantScope) error {
	actor, role := scope.Actor, scope.Role

	if actor.UserType == domain.UserTypeEnterpriseAdmin || (actor.IsGlobal && v.policy.IsEnterpriseLevel(scope.ActorLevel)) {
		return nil
	}

	if actor.IsGlobal {
		if v.policy.IsEnterpriseLevel(role.Level) {
			return v.globalRoleViolation(assignerID, role)
		}
		if !v.policy.SuperAdminCrossTenant && role.TenantID != nil {
			v.recordCrossTenant(assignerID, nil, role)
			return newAuthzError(CodeTenantMismatch, "super admin is not allowed to modify tenant roles", map[string]any{
				"role_id": role.RoleID,
			}, nil)
		}
		return nil
	}

	if role.IsGlobalRole {
		return v.globalRoleViolation(assignerID, role)
	}
	if role.TenantID != nil && actor.TenantID != nil && !sameTenant(*role.TenantID, *actor.TenantID) {
		v.recordCrossTenant(assignerID, actor.TenantID, role)
		return newAuthzError(CodeCrossTenantViolation, "role belongs to another tenant", map[string]any{
			"role_id": role.RoleID,
		}, nil)
	}
	if role.TenantID != nil && actor.TenantID == nil {
		v.recordCrossTenant(assignerID, nil, role)
		return newAuthzError(CodeTenantMismatch, "actor has no tenant but role is tenant scoped", map[string]any{
			"role_id": role.RoleID,
		}, nil)
	}
	if role.TenantID == nil && scope.ActorLevel < v.policy.SharedRoleMinLevel {
		recordLevelViolation(v.metrics, v.logger, assignerID, v.policy.SharedRoleMinLevel, scope.ActorLevel)
		return newAuthzError(CodeRoleLevelViolation, "insufficient level to modify a shared role", map[string]any{
			"required_level": v.policy.SharedRoleMinLevel,
			"user_level":     scope.ActorLevel,
		}, nil)
	}
	return nil
}

func (v *TenantScopeValidator) globalRoleViolation(assignerID int64, role domain.RoleTenantInfo) error {
	v.logger.Warn("global role modification attempt",
		zap.Int64("user_id", assignerID),
		zap.Int64("role_id", role.RoleID),
		zap.Int("role_level", role.Level),
	)
	return newAuthzError(CodeGlobalRoleModification, "global roles cannot be modified by this actor", map[string]any{
		"role_id":    role.RoleID,
		"role_level": role.Level,
	}, nil)
}

func (v *TenantScopeValidator) recordCrossTenant(assignerID int64, userTenant *string, role domain.RoleTenantInfo) {
	violation := domain.CrossTenantViolation{
		UserID:       assignerID,
		UserTenant:   domain.TenantString(userTenant),
		TargetTenant: domain.TenantString(role.TenantID),
		RoleID:       role.RoleID,
	}
	v.metrics.RecordCrossTenantViolation(violation)
	v.logger.Warn("cross tenant violation",
		zap.Int64("user_id", violation.UserID),
		zap.String("user_tenant", violation.UserTenant),
		zap.String("target_tenant", violation.TargetTenant),
		zap.Int64("role_id", violation.RoleID),
	)
}

// sameTenant compares tenant ids as UUIDs when both parse, otherwise verbatim.
func sameTenant(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return ua == ub
	}
	return a == b
}
