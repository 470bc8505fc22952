package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Tenant       TenantConfig
	Realtime     RealtimeConfig
	Notification NotificationConfig
	Scheduler    SchedulerConfig
	Telemetry    TelemetryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	BaseURL               string
	RequestTimeoutSeconds int
	// TrustedProxies are CIDRs whose X-Forwarded-For header is believed.
	TrustedProxies []string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
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
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	MagicLinkTTLMinutes   int
	BcryptCost            int
	SessionTTLHours       int
	InvitesPerMinute      int
}

// TenantConfig controls tenant routing.
type TenantConfig struct {
	DefaultSlug string
	Timezone    string
}

// RealtimeConfig configures the push listener.
type RealtimeConfig struct {
	Enabled            bool
	Port               string
	RateLimitPerMinute int
	RateLimitBurst     int
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	EmailFrom        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	// SendTimeoutSeconds caps one outbound message, including the provider call.
	SendTimeoutSeconds int
	OutboxSize         int
	OutboxWorkers      int
}

// SchedulerConfig controls background jobs.
type SchedulerConfig struct {
	Enabled          bool
	ReminderSpec     string
	DigestSpec       string
	ReminderLeadMins int
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// Load reads configuration from environment variables, applying defaults
// where possible. files are loaded into the environment first; with none,
// a .env in the working directory is used when present.
func Load(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

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
			Name:                  getEnv("APP_NAME", "jobtickets"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			BaseURL:               getEnv("APP_BASE_URL", "http://localhost:8080"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
			TrustedProxies:        getEnvAsList("APP_TRUSTED_PROXIES"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			MagicLinkTTLMinutes:   getEnvAsInt("AUTH_MAGIC_LINK_TTL_MINUTES", 15),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			SessionTTLHours:       getEnvAsInt("SESSION_TTL_HOURS", 8),
			InvitesPerMinute:      getEnvAsInt("INVITE_RATE_PER_MINUTE", 10),
		},
		Tenant: TenantConfig{
			DefaultSlug: getEnv("DEFAULT_TENANT_SLUG", "demo"),
			Timezone:    getEnv("TENANT_TIMEZONE", "America/New_York"),
		},
		Realtime: RealtimeConfig{
			Enabled:            getEnvAsBool("REALTIME_ENABLED", true),
			Port:               getEnv("REALTIME_PORT", "8081"),
			RateLimitPerMinute: getEnvAsInt("REALTIME_RATE_LIMIT_PER_MINUTE", 120),
			RateLimitBurst:     getEnvAsInt("REALTIME_RATE_LIMIT_BURST", 30),
		},
		Notification: NotificationConfig{
			EmailFrom:          getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber:   os.Getenv("TWILIO_PHONE_NUMBER"),
			SendTimeoutSeconds: getEnvAsInt("NOTIFY_SEND_TIMEOUT_SECONDS", 10),
			OutboxSize:         getEnvAsInt("NOTIFY_OUTBOX_SIZE", 256),
			OutboxWorkers:      getEnvAsInt("NOTIFY_OUTBOX_WORKERS", 2),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", true),
			ReminderSpec:     getEnv("SCHEDULER_REMINDER_SPEC", "*/15 * * * *"),
			DigestSpec:       getEnv("SCHEDULER_DIGEST_SPEC", "0 18 * * *"),
			ReminderLeadMins: getEnvAsInt("SCHEDULER_REMINDER_LEAD_MINUTES", 60),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if cfg.Auth.SessionTTLHours <= 0 {
		return nil, fmt.Errorf("invalid SESSION_TTL_HOURS: %d", cfg.Auth.SessionTTLHours)
	}
	if _, err := time.LoadLocation(cfg.Tenant.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TENANT_TIMEZONE: %w", err)
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

// SessionTTL returns how long a code-login session stays valid.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// MagicLinkTTL returns how long an emailed sign-in link stays valid.
func (a AuthConfig) MagicLinkTTL() time.Duration {
	if a.MagicLinkTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(a.MagicLinkTTLMinutes) * time.Minute
}

// Location returns the default tenant time zone.
func (t TenantConfig) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SMSEnabled reports whether Twilio credentials are configured.
func (n NotificationConfig) SMSEnabled() bool {
	return n.TwilioAccountSID != "" && n.TwilioAuthToken != "" && n.TwilioFromNumber != ""
}

// SendTimeout bounds a single outbound message.
func (n NotificationConfig) SendTimeout() time.Duration {
	if n.SendTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.SendTimeoutSeconds) * time.Second
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

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
