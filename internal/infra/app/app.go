package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/cache"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/config"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/database"
	kafkainfra "github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/kafka"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/logger"
	redisinfra "github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/redis"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/security"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/telemetry"
	postgresrepo "github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository/postgres"
	redisrepo "github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/repository/redis"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/transport/http/middleware"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/transport/http/routes"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/usecase"
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	store      *postgresrepo.Store
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	localCache *cache.LocalDecisionCache
	subscriber *redisrepo.InvalidationSubscriber
	source     string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	securityMetrics, err := telemetry.NewRBACMetrics(telemetry.RBACMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init rbac metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, cfg.App.Name, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	store := postgresrepo.NewStore(pool)
	repos := store.Repositories()

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, cfg.App.Name, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	sharedCache := redisrepo.NewDecisionCache(redisClient.Client(), cfg.Redis.DecisionPrefix, cfg.RBAC.DecisionCacheTTL)
	localCache := cache.NewLocalDecisionCache(cfg.RBAC.LocalCacheSize, cfg.RBAC.LocalCacheTTL, sharedCache)
	publisher := redisrepo.NewInvalidationPublisher(redisClient.Client(), cfg.Redis.InvalidationChannel)
	subscriber := redisrepo.NewInvalidationSubscriber(redisClient.Client(), cfg.Redis.InvalidationChannel, log)

	var (
		audit    port.AuditLogger
		producer *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub audit sink", zap.Error(err))
			audit = kafkainfra.NewStubPublisher(log)
		} else {
			producer.OnError(func(msg *sarama.ProducerMessage, _ error) {
				securityMetrics.RecordAuditLogError(kafkainfra.EventTypeOf(msg))
			})
			audit = kafkainfra.NewAuditPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub audit sink")
		audit = kafkainfra.NewStubPublisher(log)
	}

	policy := usecase.LevelPolicy{
		EnterpriseAdminLevel:  cfg.RBAC.EnterpriseAdminLevel,
		SuperAdminLevel:       cfg.RBAC.SuperAdminLevel,
		GlobalRoleLevel:       cfg.RBAC.GlobalRoleLevel,
		SharedRoleMinLevel:    cfg.RBAC.SharedRoleMinLevel,
		SuperAdminCrossTenant: cfg.RBAC.SuperAdminCrossTenant,
	}

	source := fmt.Sprintf("%s-%d", cfg.App.Name, time.Now().UnixNano())

	levelResolver := usecase.NewRoleLevelResolver(repos.Roles)
	levelValidator := usecase.NewRoleLevelValidator(levelResolver, repos.Permissions, log).
		WithMetrics(securityMetrics)
	scopes := usecase.NewTenantScopeResolver(repos.Users, repos.Roles, policy)
	tenantValidator := usecase.NewTenantScopeValidator(
		scopes,
		levelResolver,
		policy,
		log,
	).WithMetrics(securityMetrics)
	invalidator := usecase.NewPermissionInvalidator(repos.Roles, localCache, publisher, log).
		WithMetrics(securityMetrics).
		WithSource(source)
	assignments := usecase.NewPermissionAssignmentService(tenantValidator, levelValidator, repos.Permissions, log).
		WithInvalidator(invalidator).
		WithAuditLogger(audit).
		WithMetrics(securityMetrics).
		WithSideEffectPolicy(cfg.RBAC.SideEffectAttempts, cfg.RBAC.SideEffectTimeout)
	checker := usecase.NewPermissionChecker(repos.Permissions, log).
		WithCache(localCache).
		WithMetrics(securityMetrics)
	permissions := usecase.NewPermissionService(repos.Roles, repos.Permissions, scopes)

	var verifier middleware.ActorVerifier
	if actorVerifier, err := security.NewActorTokenVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.Leeway); err != nil {
		log.Warn("actor token verification disabled, rbac routes will refuse requests", zap.Error(err))
	} else {
		verifier = actorVerifier
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Verifier:    verifier,
		HTTPMetrics: httpMetrics,
		Database:    store,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Assignments: assignments,
			Permissions: permissions,
			Checker:     checker,
		},
	})

	return &Application{
		cfg:        cfg,
		engine:     engine,
		logger:     log,
		store:      store,
		redis:      redisClient,
		producer:   producer,
		tracer:     tracer,
		localCache: localCache,
		subscriber: subscriber,
		source:     source,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.store.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		_ = a.tracer.Shutdown(context.Background())
	}()

	subCtx, stopSubscriber := context.WithCancel(ctx)
	defer stopSubscriber()
	go func() {
		err := a.subscriber.Listen(subCtx, a.dropLocalEntries)
		if err != nil {
			a.logger.Error("permission invalidation subscriber stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting RBAC API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("source", a.source),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// dropLocalEntries clears in-process decisions for users named by another node's invalidation.
func (a *Application) dropLocalEntries(_ context.Context, event domain.PermissionInvalidationEvent) {
	if event.Source == a.source {
		return
	}
	removed := a.localCache.PurgeUsers(event.UserIDs...)
	a.logger.Debug("applied remote permission invalidation",
		zap.Int64("role_id", event.RoleID),
		zap.Int("users", len(event.UserIDs)),
		zap.Int("entries_removed", removed),
		zap.String("source", event.Source),
	)
}
