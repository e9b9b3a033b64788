package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

var tracer = otel.Tracer("github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/usecase")

// RoleInvalidator drops cached state for a role after its permissions change.
type RoleInvalidator interface {
	InvalidateRole(ctx context.Context, roleID int64) error
}

// AssignPermissionsInput is a bulk replace-all request.
type AssignPermissionsInput struct {
	RoleID        int64
	AssignerID    int64
	PermissionIDs []int64
	// Actor carries authoritative identity hints from the authentication layer.
	Actor *domain.ActorContext
}

// AssignPermissionsResult reports a committed assignment.
type AssignPermissionsResult struct {
	Success  bool
	Assigned int
	RoleID   int64
}

// PermissionAssignmentService validates and applies bulk permission assignments.
type PermissionAssignmentService struct {
	tenants     *TenantScopeValidator
	levels      *RoleLevelValidator
	permissions port.PermissionRepository
	invalidator RoleInvalidator
	audit       port.AuditLogger
	metrics     port.SecurityMetrics
	effects     effectRunner
	logger      *zap.Logger
	now         func() time.Time
}

// NewPermissionAssignmentService constructs a PermissionAssignmentService.
func NewPermissionAssignmentService(
	tenants *TenantScopeValidator,
	levels *RoleLevelValidator,
	permissions port.PermissionRepository,
	logger *zap.Logger,
) *PermissionAssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionAssignmentService{
		tenants:     tenants,
		levels:      levels,
		permissions: permissions,
		metrics:     port.NopSecurityMetrics{},
		effects:     newEffectRunner(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// WithInvalidator sets the cache invalidation target.
func (s *PermissionAssignmentService) WithInvalidator(invalidator RoleInvalidator) *PermissionAssignmentService {
	s.invalidator = invalidator
	return s
}

// WithAuditLogger sets the audit sink.
func (s *PermissionAssignmentService) WithAuditLogger(audit port.AuditLogger) *PermissionAssignmentService {
	s.audit = audit
	return s
}

// WithMetrics sets the metrics sink.
func (s *PermissionAssignmentService) WithMetrics(metrics port.SecurityMetrics) *PermissionAssignmentService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithSideEffectPolicy configures retries and the deadline of post-commit side effects.
func (s *PermissionAssignmentService) WithSideEffectPolicy(attempts int, timeout time.Duration) *PermissionAssignmentService {
	if attempts > 0 {
		s.effects.attempts = attempts
	}
	if timeout > 0 {
		s.effects.timeout = timeout
	}
	return s
}

// AssignPermissionsToRole replaces the role's permission set with clones of the
// referenced permissions. An empty set clears the role.
func (s *PermissionAssignmentService) AssignPermissionsToRole(ctx context.Context, input AssignPermissionsInput) (result AssignPermissionsResult, err error) {
	ctx, span := tracer.Start(ctx, "rbac.AssignPermissionsToRole")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.Int64("rbac.role_id", input.RoleID),
		attribute.Int("rbac.permission_count", len(input.PermissionIDs)),
	)

	permissionIDs, err := normalizeIDs(input)
	if err != nil {
		return result, err
	}

	scope, err := s.tenants.ValidateTenantScope(ctx, input.AssignerID, input.RoleID, input.Actor)
	if err != nil {
		return result, err
	}
	actor := scope.ResolvedActor()

	// Governing the destination role is required for every mutation, clearing included.
	if err := s.levels.ValidateLevelDirect(ctx, input.AssignerID, scope.Role.Level, actor); err != nil {
		return result, err
	}

	var grants []domain.PermissionGrant
	if len(permissionIDs) > 0 {
		reqs, err := s.permissions.ListRequirements(ctx, permissionIDs)
		if err != nil {
			return result, newAuthzError(CodePermissionAssignmentFailed, "failed to load permissions", nil, err)
		}
		if missing := missingIDs(permissionIDs, reqs); len(missing) > 0 {
			return result, newAuthzError(CodePermissionsNotFound, "permissions not found", map[string]any{
				"missing_ids": missing,
			}, nil)
		}

		if err := s.levels.ValidateLevelDirect(ctx, input.AssignerID, MaxRequiredLevel(reqs), actor); err != nil {
			return result, err
		}

		grants = buildGrants(input.RoleID, reqs)
	}

	replaced, err := s.permissions.ReplaceForRole(ctx, input.RoleID, grants)
	if err != nil {
		s.logger.Error("permission assignment failed",
			zap.Int64("role_id", input.RoleID),
			zap.Int64("user_id", input.AssignerID),
			zap.Error(err),
		)
		return result, newAuthzError(CodePermissionAssignmentFailed, "failed to replace role permissions", nil, err)
	}

	s.afterCommit(ctx, input, permissionIDs, scope, grants, replaced)

	return AssignPermissionsResult{Success: true, Assigned: replaced.Assigned, RoleID: input.RoleID}, nil
}

func (s *PermissionAssignmentService) afterCommit(
	ctx context.Context,
	input AssignPermissionsInput,
	permissionIDs []int64,
	scope TenantScope,
	grants []domain.PermissionGrant,
	replaced domain.ReplaceResult,
) {
	if s.invalidator != nil {
		err := s.effects.run(ctx, "cache_invalidation", func(ctx context.Context) error {
			return s.invalidator.InvalidateRole(ctx, input.RoleID)
		})
		if err != nil {
			s.metrics.RecordCacheInvalidation(invalidationTypeRole, "error")
		}
	}

	eventType := domain.AuditEventPermissionsAssigned
	action := "assign"
	severity := domain.SeverityMedium
	if len(grants) == 0 {
		eventType = domain.AuditEventPermissionsCleared
		action = "clear"
		severity = domain.SeverityHigh
	}

	s.metrics.RecordPermissionChange(domain.PermissionChange{
		UserID:    input.AssignerID,
		RoleID:    input.RoleID,
		RoleName:  scope.Role.RoleName,
		RoleLevel: scope.Role.Level,
		Action:    action,
		TenantID:  domain.TenantString(scope.Role.TenantID),
	})

	if s.audit == nil {
		return
	}
	added, removed := diffKeys(replaced.Previous, grants)
	tenantID := scope.Actor.TenantID
	if tenantID == nil {
		tenantID = scope.Role.TenantID
	}
	event := domain.SecurityEvent{
		EventID:    uuid.NewString(),
		Severity:   severity,
		UserID:     input.AssignerID,
		OccurredAt: s.now().UTC(),
		Details: domain.PermissionChangeDetails{
			RoleID:          input.RoleID,
			RoleName:        scope.Role.RoleName,
			PermissionIDs:   permissionIDs,
			PermissionCount: replaced.Assigned,
			TenantID:        tenantID,
			UserType:        scope.Actor.UserType,
			AssignerLevel:   scope.ActorLevel,
			Added:           added,
			Removed:         removed,
		},
	}
	err := s.effects.run(ctx, "audit_log", func(ctx context.Context) error {
		return s.audit.LogSecurityEvent(ctx, eventType, event)
	})
	if err != nil {
		s.metrics.RecordAuditLogError(eventType)
	}
}

func normalizeIDs(input AssignPermissionsInput) ([]int64, error) {
	if input.RoleID <= 0 || input.AssignerID <= 0 {
		return nil, newAuthzError(CodeInvalidInput, "role id and assigner id are required", nil, nil)
	}
	ids := make([]int64, 0, len(input.PermissionIDs))
	seen := make(map[int64]struct{}, len(input.PermissionIDs))
	for _, id := range input.PermissionIDs {
		if id <= 0 {
			return nil, newAuthzError(CodeInvalidInput, "permission ids must be positive", map[string]any{"permission_id": id}, nil)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func missingIDs(requested []int64, found []domain.PermissionRequirement) []int64 {
	present := make(map[int64]struct{}, len(found))
	for _, req := range found {
		present[req.PermissionID] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// buildGrants clones the referenced permissions onto roleID. Two sources with the
// same action and route collapse into one grant.
func buildGrants(roleID int64, reqs []domain.PermissionRequirement) []domain.PermissionGrant {
	grants := make([]domain.PermissionGrant, 0, len(reqs))
	seen := make(map[domain.PermissionKey]struct{}, len(reqs))
	for _, req := range reqs {
		key := domain.PermissionKey{ActionID: req.ActionID, RouteID: req.RouteID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		grants = append(grants, domain.PermissionGrant{
			RoleID:   roleID,
			ActionID: req.ActionID,
			RouteID:  req.RouteID,
			Granted:  true,
		})
	}
	return grants
}

func diffKeys(previous []domain.PermissionKey, grants []domain.PermissionGrant) (added, removed []domain.PermissionKey) {
	before := make(map[domain.PermissionKey]struct{}, len(previous))
	for _, key := range previous {
		before[key] = struct{}{}
	}
	after := make(map[domain.PermissionKey]struct{}, len(grants))
	for _, grant := range grants {
		key := grant.Key()
		after[key] = struct{}{}
		if _, ok := before[key]; !ok {
			added = append(added, key)
		}
	}
	for _, key := range previous {
		if _, ok := after[key]; !ok {
			removed = append(removed, key)
		}
	}
	sortKeys(added)
	sortKeys(removed)
	return added, removed
}

func sortKeys(keys []domain.PermissionKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ActionID != keys[j].ActionID {
			return keys[i].ActionID < keys[j].ActionID
		}
		return keys[i].RouteID < keys[j].RouteID
	})
}
