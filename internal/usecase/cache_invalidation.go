package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

const invalidationTypeRole = "role"

// PermissionInvalidator drops cached decisions after a role's permissions change
// and notifies other nodes. Failures are counted by the caller once retries are exhausted.
type PermissionInvalidator struct {
	roles     port.RoleRepository
	cache     port.DecisionCache
	publisher port.InvalidationPublisher
	metrics   port.SecurityMetrics
	logger    *zap.Logger
	source    string
}

// NewPermissionInvalidator constructs a PermissionInvalidator. cache and publisher may be nil.
func NewPermissionInvalidator(roles port.RoleRepository, cache port.DecisionCache, publisher port.InvalidationPublisher, logger *zap.Logger) *PermissionInvalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionInvalidator{
		roles:     roles,
		cache:     cache,
		publisher: publisher,
		metrics:   port.NopSecurityMetrics{},
		logger:    logger,
		source:    "rbac-engine",
	}
}

// WithMetrics sets the sink for invalidation counters.
func (i *PermissionInvalidator) WithMetrics(metrics port.SecurityMetrics) *PermissionInvalidator {
	if metrics != nil {
		i.metrics = metrics
	}
	return i
}

// WithSource sets the node name carried in published events.
func (i *PermissionInvalidator) WithSource(source string) *PermissionInvalidator {
	if source != "" {
		i.source = source
	}
	return i
}

// InvalidateRole drops the cached decisions of every user holding the role, then
// publishes the invalidation so other nodes do the same.
func (i *PermissionInvalidator) InvalidateRole(ctx context.Context, roleID int64) error {
	userIDs, err := i.roles.ListUserIDs(ctx, roleID)
	if err != nil {
		return fmt.Errorf("list role users: %w", err)
	}

	if i.cache != nil && len(userIDs) > 0 {
		if err := i.cache.InvalidateUsers(ctx, userIDs...); err != nil {
			return fmt.Errorf("invalidate user cache: %w", err)
		}
	}

	if i.publisher != nil {
		event := domain.PermissionInvalidationEvent{
			Type:      invalidationTypeRole,
			RoleID:    roleID,
			UserIDs:   userIDs,
			Timestamp: time.Now().UTC().UnixMilli(),
			Source:    i.source,
		}
		if err := i.publisher.PublishInvalidation(ctx, event); err != nil {
			return fmt.Errorf("publish invalidation: %w", err)
		}
	}

	i.metrics.RecordCacheInvalidation(invalidationTypeRole, "success")
	i.logger.Debug("role permissions invalidated",
		zap.Int64("role_id", roleID),
		zap.Int("users", len(userIDs)),
	)
	return nil
}
