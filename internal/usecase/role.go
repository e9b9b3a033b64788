package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

// RoleLevelResolver computes a user's effective authority.
type RoleLevelResolver struct {
	roles port.RoleRepository
}

// NewRoleLevelResolver constructs a RoleLevelResolver.
func NewRoleLevelResolver(roles port.RoleRepository) *RoleLevelResolver {
	return &RoleLevelResolver{roles: roles}
}

// GetUserMaxLevel returns the highest level across the user's roles. A user with
// no role has level 0, which is not an error.
func (r *RoleLevelResolver) GetUserMaxLevel(ctx context.Context, userID int64) (int, error) {
	level, err := r.roles.MaxLevelByUser(ctx, userID)
	if err != nil {
		return 0, newAuthzError(CodeRoleLevelCheckFailed, "failed to resolve user level", nil, err)
	}
	if level < 0 {
		return 0, nil
	}
	return level, nil
}

// levelFor prefers an authoritative level hint over a store lookup.
func (r *RoleLevelResolver) levelFor(ctx context.Context, userID int64, actor *domain.ActorContext) (int, error) {
	if actor != nil && actor.Level != nil {
		if *actor.Level < 0 {
			return 0, nil
		}
		return *actor.Level, nil
	}
	return r.GetUserMaxLevel(ctx, userID)
}

// RoleLevelValidator rejects operations that require more authority than the actor holds.
type RoleLevelValidator struct {
	resolver    *RoleLevelResolver
	permissions port.PermissionRepository
	metrics     port.SecurityMetrics
	logger      *zap.Logger
}

// NewRoleLevelValidator constructs a RoleLevelValidator.
func NewRoleLevelValidator(resolver *RoleLevelResolver, permissions port.PermissionRepository, logger *zap.Logger) *RoleLevelValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleLevelValidator{
		resolver:    resolver,
		permissions: permissions,
		metrics:     port.NopSecurityMetrics{},
		logger:      logger,
	}
}

// WithMetrics sets the sink for violation counters.
func (v *RoleLevelValidator) WithMetrics(metrics port.SecurityMetrics) *RoleLevelValidator {
	if metrics != nil {
		v.metrics = metrics
	}
	return v
}

// ValidateLevelDirect checks the assigner against an explicit level.
func (v *RoleLevelValidator) ValidateLevelDirect(ctx context.Context, assignerID int64, requiredLevel int, actor *domain.ActorContext) error {
	return v.validate(ctx, assignerID, requiredLevel, actor)
}

// ValidateLevelForPermissions checks the assigner against the highest required level
// of the given permissions. An empty set is always valid. Unknown ids are ignored.
func (v *RoleLevelValidator) ValidateLevelForPermissions(ctx context.Context, assignerID int64, permissionIDs []int64, actor *domain.ActorContext) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	reqs, err := v.permissions.ListRequirements(ctx, permissionIDs)
	if err != nil {
		return newAuthzError(CodeRoleLevelCheckFailed, "failed to resolve permission levels", nil, err)
	}
	return v.validate(ctx, assignerID, MaxRequiredLevel(reqs), actor)
}

func (v *RoleLevelValidator) validate(ctx context.Context, assignerID int64, requiredLevel int, actor *domain.ActorContext) error {
	level, err := v.resolver.levelFor(ctx, assignerID, actor)
	if err != nil {
		return asCheckFailure(err, CodeRoleLevelCheckFailed, "failed to resolve assigner level")
	}
	// Level 0 is no authority, even against a requirement of 0.
	if level <= 0 || level < requiredLevel {
		return v.reject(assignerID, requiredLevel, level)
	}
	return nil
}

func (v *RoleLevelValidator) reject(assignerID int64, attempted, userLevel int) error {
	recordLevelViolation(v.metrics, v.logger, assignerID, attempted, userLevel)
	return newAuthzError(CodeRoleLevelViolation, "insufficient role level for this operation", map[string]any{
		"required_level": attempted,
		"user_level":     userLevel,
	}, nil)
}

func recordLevelViolation(metrics port.SecurityMetrics, logger *zap.Logger, userID int64, attempted, userLevel int) {
	metrics.RecordRoleLevelViolation(domain.RoleLevelViolation{
		UserID:         userID,
		AttemptedLevel: attempted,
		UserLevel:      userLevel,
	})
	logger.Warn("role level violation",
		zap.Int64("user_id", userID),
		zap.Int("attempted_level", attempted),
		zap.Int("user_level", userLevel),
	)
}

// MaxRequiredLevel returns the highest required level across reqs, or 0 for none.
func MaxRequiredLevel(reqs []domain.PermissionRequirement) int {
	maxLevel := 0
	for _, req := range reqs {
		if lvl := req.RequiredLevel(); lvl > maxLevel {
			maxLevel = lvl
		}
	}
	return maxLevel
}
