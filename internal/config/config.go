package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/clinic-portal/internal/rbac"
)

// Config aggregates runtime configuration for the API and the portal client.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Portal       PortalConfig
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
	MigrationsDir  string
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

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret                string
	AccessTokenTTLMinutes    int
	RefreshTokenTTLMinutes   int
	PasswordResetTTLMinutes  int
	PasswordResendWindowMins int
	BcryptCost               int
	BootstrapAdminEmail      string
	BootstrapAdminPassword   string
}

// PortalConfig drives the session client used by clinicctl.
type PortalConfig struct {
	APIBaseURL            string
	RequestTimeoutSeconds int
	StorageDriver         string
	StoragePath           string
	StorageKeyPrefix      string
	RefreshOnRestore      bool
	ClockLeewaySeconds    int
	LoginPath             string
	ForbiddenPath         string
	AdminLandingPath      string
	EmployeeLandingPath   string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "clinic-auth-api"),
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
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
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
			JWTSecret:                getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:    getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLMinutes:   getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_MINUTES", 60*24),
			PasswordResetTTLMinutes:  getEnvAsInt("AUTH_PASSWORD_RESET_TTL_MINUTES", 15),
			PasswordResendWindowMins: getEnvAsInt("AUTH_PASSWORD_RESEND_WINDOW_MINUTES", 15),
			BcryptCost:               getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminEmail:      os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword:   os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Portal: PortalConfig{
			APIBaseURL:            getEnv("PORTAL_API_URL", "http://127.0.0.1:8080"),
			RequestTimeoutSeconds: getEnvAsInt("PORTAL_REQUEST_TIMEOUT_SECONDS", 10),
			StorageDriver:         getEnv("PORTAL_STORAGE_DRIVER", "file"),
			StoragePath:           getEnv("PORTAL_STORAGE_PATH", defaultStoragePath()),
			StorageKeyPrefix:      getEnv("PORTAL_STORAGE_KEY_PREFIX", "clinic-portal:"),
			RefreshOnRestore:      getEnvAsBool("PORTAL_REFRESH_ON_RESTORE", false),
			ClockLeewaySeconds:    getEnvAsInt("PORTAL_CLOCK_LEEWAY_SECONDS", 0),
			LoginPath:             getEnv("PORTAL_LOGIN_PATH", "/auth/login"),
			ForbiddenPath:         getEnv("PORTAL_FORBIDDEN_PATH", "/error/403"),
			AdminLandingPath:      getEnv("PORTAL_ADMIN_LANDING_PATH", "/admin/dashboard"),
			EmployeeLandingPath:   getEnv("PORTAL_EMPLOYEE_LANDING_PATH", "/employee/dashboard"),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
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

// RequestTimeout returns the portal's outbound call timeout.
func (p PortalConfig) RequestTimeout() time.Duration {
	if p.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// Paths returns the route table for the role gate and landing redirector.
func (p PortalConfig) Paths() rbac.Paths {
	return rbac.Paths{
		Login:           p.LoginPath,
		Forbidden:       p.ForbiddenPath,
		AdminLanding:    p.AdminLandingPath,
		EmployeeLanding: p.EmployeeLandingPath,
	}
}

// ClockLeeway returns the tolerated clock skew for expiry checks.
func (p PortalConfig) ClockLeeway() time.Duration {
	if p.ClockLeewaySeconds <= 0 {
		return 0
	}
	return time.Duration(p.ClockLeewaySeconds) * time.Second
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".clinic-portal.json"
	}
	return filepath.Join(dir, "clinic-portal", "storage.json")
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
