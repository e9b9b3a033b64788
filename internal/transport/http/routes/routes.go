package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/config"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/transport/http/handlers"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/transport/http/middleware"
)

// Actions required on the RBAC admin routes themselves.
const (
	actionRead  = "read"
	actionWrite = "write"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Assignments handlers.PermissionAssigner
	Permissions handlers.PermissionReader
	Checker     middleware.PermissionChecker
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Verifier    middleware.ActorVerifier
	Services    ServiceSet
	HTTPMetrics *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Services.Assignments == nil || deps.Services.Permissions == nil || deps.Services.Checker == nil {
		return r
	}

	roleHandler := handlers.NewRoleHandler(
		deps.Services.Assignments,
		deps.Services.Permissions,
		deps.Services.Checker,
		deps.Logger,
	)
	checker := deps.Services.Checker

	rbac := r.Group("/api/v1/rbac")
	rbac.Use(middleware.RequireActor(deps.Verifier))
	{
		rbac.GET("/me/permissions", roleHandler.ListMyPermissions)
		rbac.POST("/check", roleHandler.CheckPermission)

		roles := rbac.Group("/roles/:roleId")
		roles.GET("/permissions", middleware.RequirePermission(checker, actionRead), roleHandler.ListRolePermissions)
		roles.PUT("/permissions", middleware.RequirePermission(checker, actionWrite), roleHandler.AssignPermissions)
	}

	return r
}
