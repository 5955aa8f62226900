package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Sweep        SweepConfig
	Escalation   EscalationConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token validation parameters. Tokens are issued by the
// platform's identity service; the engine only verifies them.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SweepConfig controls the escalation sweep cadence and limits.
type SweepConfig struct {
	IntervalSeconds     int
	TenantBudgetSeconds int
	Workers             int
	LockTTLSeconds      int
}

// EscalationConfig controls the level cascade. Level n fires once the
// resolution clock's active time reaches n * LevelMultiplier * target.
type EscalationConfig struct {
	MaxLevel        int
	LevelMultiplier float64
}

// NotificationConfig holds escalation alert dispatch settings.
type NotificationConfig struct {
	EmailFrom              string
	WebhookURL             string
	DispatchTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	levelMultiplier, err := strconv.ParseFloat(getEnv("ESCALATION_LEVEL_MULTIPLIER", "1.0"), 64)
	if err != nil || levelMultiplier <= 0 {
		return nil, fmt.Errorf("invalid ESCALATION_LEVEL_MULTIPLIER")
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Sweep: SweepConfig{
			IntervalSeconds:     getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60),
			TenantBudgetSeconds: getEnvAsInt("SWEEP_TENANT_BUDGET_SECONDS", 45),
			Workers:             getEnvAsInt("SWEEP_WORKERS", 8),
			LockTTLSeconds:      getEnvAsInt("SWEEP_LOCK_TTL_SECONDS", 90),
		},
		Escalation: EscalationConfig{
			MaxLevel:        getEnvAsInt("ESCALATION_MAX_LEVEL", 3),
			LevelMultiplier: levelMultiplier,
		},
		Notification: NotificationConfig{
			EmailFrom:              getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:             getEnv("NOTIFY_WEBHOOK_URL", ""),
			DispatchTimeoutSeconds: getEnvAsInt("NOTIFY_DISPATCH_TIMEOUT_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the sweep tick interval.
func (s SweepConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// TenantBudget returns the wall-clock budget for one tenant's pass.
func (s SweepConfig) TenantBudget() time.Duration {
	if s.TenantBudgetSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(s.TenantBudgetSeconds) * time.Second
}

// LockTTL returns the expiry for the per-tenant sweep lock.
func (s SweepConfig) LockTTL() time.Duration {
	if s.LockTTLSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(s.LockTTLSeconds) * time.Second
}

// DispatchTimeout bounds a single escalation alert delivery attempt.
func (n NotificationConfig) DispatchTimeout() time.Duration {
	if n.DispatchTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.DispatchTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
