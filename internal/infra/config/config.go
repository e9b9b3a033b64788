package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RBAC      RBACSettings      `mapstructure:"rbac"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection used for decision caching and invalidation fan-out.
type RedisSettings struct {
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	DB                  int    `mapstructure:"db"`
	Password            string `mapstructure:"password"`
	TLSEnabled          bool   `mapstructure:"tls_enabled"`
	DecisionPrefix      string `mapstructure:"decision_prefix"`
	InvalidationChannel string `mapstructure:"invalidation_channel"`
}

// KafkaSettings configures the audit producer. An empty broker list selects the logging stub.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// AuthSettings configures verification of inbound actor tokens.
type AuthSettings struct {
	TokenSecret string        `mapstructure:"token_secret"`
	Issuer      string        `mapstructure:"issuer"`
	Leeway      time.Duration `mapstructure:"leeway"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RBACSettings holds the authority thresholds and the tuning of caches and side effects.
type RBACSettings struct {
	EnterpriseAdminLevel  int           `mapstructure:"enterprise_admin_level"`
	SuperAdminLevel       int           `mapstructure:"super_admin_level"`
	GlobalRoleLevel       int           `mapstructure:"global_role_level"`
	SharedRoleMinLevel    int           `mapstructure:"shared_role_min_level"`
	SuperAdminCrossTenant bool          `mapstructure:"super_admin_cross_tenant"`
	DecisionCacheTTL      time.Duration `mapstructure:"decision_cache_ttl"`
	LocalCacheSize        int           `mapstructure:"local_cache_size"`
	LocalCacheTTL         time.Duration `mapstructure:"local_cache_ttl"`
	SideEffectAttempts    int           `mapstructure:"side_effect_attempts"`
	SideEffectTimeout     time.Duration `mapstructure:"side_effect_timeout"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("RBAC")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.decision_prefix",
		"redis.invalidation_channel",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"auth.token_secret",
		"auth.issuer",
		"auth.leeway",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rbac.enterprise_admin_level",
		"rbac.super_admin_level",
		"rbac.global_role_level",
		"rbac.shared_role_min_level",
		"rbac.super_admin_cross_tenant",
		"rbac.decision_cache_ttl",
		"rbac.local_cache_size",
		"rbac.local_cache_ttl",
		"rbac.side_effect_attempts",
		"rbac.side_effect_timeout",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.RBAC.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (s RBACSettings) validate() error {
	if s.SuperAdminLevel > s.EnterpriseAdminLevel {
		return fmt.Errorf("rbac.super_admin_level (%d) exceeds rbac.enterprise_admin_level (%d)", s.SuperAdminLevel, s.EnterpriseAdminLevel)
	}
	if s.GlobalRoleLevel <= 0 {
		return fmt.Errorf("rbac.global_role_level must be positive")
	}
	if s.SideEffectAttempts <= 0 {
		return fmt.Errorf("rbac.side_effect_attempts must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rbac-engine")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "erp")
	v.SetDefault("postgres.password", "erp_password")
	v.SetDefault("postgres.database", "erp")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.decision_prefix", "rbac:perm")
	v.SetDefault("redis.invalidation_channel", "rbac:permissions:invalidate")

	// No brokers means audit events go to the log.
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "erp")
	v.SetDefault("kafka.async", true)

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "rbac-engine")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rbac.enterprise_admin_level", 100)
	v.SetDefault("rbac.super_admin_level", 90)
	v.SetDefault("rbac.global_role_level", 90)
	v.SetDefault("rbac.shared_role_min_level", 80)
	v.SetDefault("rbac.super_admin_cross_tenant", true)
	v.SetDefault("rbac.decision_cache_ttl", "5m")
	v.SetDefault("rbac.local_cache_size", 10000)
	v.SetDefault("rbac.local_cache_ttl", "30s")
	v.SetDefault("rbac.side_effect_attempts", 3)
	v.SetDefault("rbac.side_effect_timeout", "5s")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "RBAC_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
