package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

// DecisionKey builds the cache field for a permission check.
func DecisionKey(action, method, routePath string) string {
	return action + "|" + method + "|" + routePath
}

// PermissionChecker answers per-request authorization questions. It fails closed.
type PermissionChecker struct {
	permissions port.PermissionRepository
	cache       port.DecisionCache
	metrics     port.SecurityMetrics
	logger      *zap.Logger
}

// NewPermissionChecker constructs a PermissionChecker.
func NewPermissionChecker(permissions port.PermissionRepository, logger *zap.Logger) *PermissionChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionChecker{
		permissions: permissions,
		metrics:     port.NopSecurityMetrics{},
		logger:      logger,
	}
}

// WithCache sets the decision cache.
func (c *PermissionChecker) WithCache(cache port.DecisionCache) *PermissionChecker {
	c.cache = cache
	return c
}

// WithMetrics sets the metrics sink.
func (c *PermissionChecker) WithMetrics(metrics port.SecurityMetrics) *PermissionChecker {
	if metrics != nil {
		c.metrics = metrics
	}
	return c
}

// CheckUserPermission reports whether one of the user's active roles is granted
// action on routePath with method. An empty method means GET. Any failure yields false.
func (c *PermissionChecker) CheckUserPermission(ctx context.Context, userID int64, action, routePath, method string) bool {
	ctx, span := tracer.Start(ctx, "rbac.CheckUserPermission")
	defer span.End()

	start := time.Now()
	action = strings.TrimSpace(action)
	routePath = strings.TrimSpace(routePath)
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if userID <= 0 || action == "" || routePath == "" {
		c.metrics.RecordPermissionCheckError("invalid_input")
		return false
	}
	span.SetAttributes(
		attribute.String("rbac.action", action),
		attribute.String("http.route", routePath),
		attribute.String("http.method", method),
	)

	key := DecisionKey(action, method, routePath)
	cacheDown := false
	if c.cache != nil {
		allowed, found, err := c.cache.GetDecision(ctx, userID, key)
		switch {
		case err != nil:
			cacheDown = true
			c.metrics.RecordPermissionCheckError("cache")
			c.logger.Debug("decision cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		case found:
			c.metrics.ObservePermissionCheck(true, time.Since(start))
			span.SetAttributes(attribute.Bool("rbac.cache_hit", true), attribute.Bool("rbac.allowed", allowed))
			return allowed
		}
	}

	// The token must predate the store read so an invalidation that commits in
	// between makes the write-back a no-op.
	var (
		token     port.DecisionToken
		cacheable bool
	)
	if c.cache != nil && !cacheDown {
		var err error
		if token, err = c.cache.Snapshot(ctx, userID); err != nil {
			c.metrics.RecordPermissionCheckError("cache")
			c.logger.Debug("decision cache snapshot failed", zap.Int64("user_id", userID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	allowed, err := c.permissions.HasGrantedPermission(ctx, userID, action, routePath, method)
	if err != nil {
		c.metrics.RecordPermissionCheckError("store")
		c.logger.Warn("permission check failed, denying",
			zap.Int64("user_id", userID),
			zap.String("action", action),
			zap.String("route", routePath),
			zap.String("method", method),
			zap.Error(err),
		)
		return false
	}

	if cacheable {
		stored, err := c.cache.SetDecision(ctx, userID, key, allowed, token)
		switch {
		case err != nil:
			c.logger.Debug("decision cache write failed", zap.Int64("user_id", userID), zap.Error(err))
		case !stored:
			c.logger.Debug("decision not cached, user invalidated during check", zap.Int64("user_id", userID))
		}
	}
	c.metrics.ObservePermissionCheck(false, time.Since(start))
	span.SetAttributes(attribute.Bool("rbac.cache_hit", false), attribute.Bool("rbac.allowed", allowed))
	return allowed
}
