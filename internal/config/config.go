// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the session lifecycle and credential flows.
const (
	DefaultAccessTTL            = 15 * time.Minute
	DefaultRefreshTTL           = 30 * 24 * time.Hour
	DefaultSessionCap           = 5
	DefaultResetTokenTTL        = time.Hour
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPhoneCodeTTL         = 10 * time.Minute
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment ("development", "production"). Controls the log encoder.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; must match JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the session / refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionCap is the maximum number of active sessions per user.
	SessionCap int `mapstructure:"SESSION_CAP"`
	// ResetTokenTTLRaw is the password-reset token lifetime (e.g. "1h").
	ResetTokenTTLRaw string `mapstructure:"RESET_TOKEN_TTL"`
	// EmailVerificationTTLRaw is the email verification token lifetime (e.g. "24h").
	EmailVerificationTTLRaw string `mapstructure:"EMAIL_VERIFICATION_TTL"`
	// PhoneCodeTTLRaw is the phone verification code lifetime (e.g. "10m").
	PhoneCodeTTLRaw string `mapstructure:"PHONE_CODE_TTL"`

	// SMSLocalAPIKey is the API key the notification worker uses to deliver phone codes.
	SMSLocalAPIKey  string `mapstructure:"SMS_LOCAL_API_KEY"`
	SMSLocalSender  string `mapstructure:"SMS_LOCAL_SENDER"`
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`

	// RedisAddr enables request throttling when set (e.g. "localhost:6379").
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RateLimitMax is the number of throttled calls allowed per client IP per window.
	RateLimitMax int `mapstructure:"RATE_LIMIT_MAX"`
	// RateLimitWindowRaw is the throttling window (e.g. "1m").
	RateLimitWindowRaw string `mapstructure:"RATE_LIMIT_WINDOW"`
	// RateLimitBlockRaw is how long a client stays blocked after exceeding the limit (e.g. "5m").
	RateLimitBlockRaw string `mapstructure:"RATE_LIMIT_BLOCK"`
	// TrustProxyHeaders makes throttling key on x-forwarded-for. Enable only behind a proxy that sets it.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic receives one event per RPC.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// NotificationsKafkaTopic receives reset links and verification codes for delivery.
	NotificationsKafkaTopic string `mapstructure:"NOTIFICATIONS_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the notification worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTelEndpoint is the OTLP gRPC collector endpoint. Empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "marketplace-auth")
	v.SetDefault("JWT_AUDIENCE", "marketplace-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_CAP", DefaultSessionCap)
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("EMAIL_VERIFICATION_TTL", "24h")
	v.SetDefault("PHONE_CODE_TTL", "10m")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://app.smslocal.in/api/smsapi")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_MAX", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_BLOCK", "5m")
	v.SetDefault("TRUST_PROXY_HEADERS", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "marketplace-auth-telemetry")
	v.SetDefault("NOTIFICATIONS_KAFKA_TOPIC", "marketplace-notifications")
	v.SetDefault("KAFKA_GROUP_ID", "marketplace-notification-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "marketplace-auth")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.SessionCap < 1 {
		return nil, errors.New("config: SESSION_CAP must be at least 1")
	}
	if cfg.RateLimitMax < 1 {
		return nil, errors.New("config: RATE_LIMIT_MAX must be at least 1")
	}
	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}

	return &cfg, nil
}

// AuthEnabled reports whether a signing key pair is configured.
func (c *Config) AuthEnabled() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, DefaultAccessTTL)
}

// RefreshTTL parses JWTRefreshTTL. Returns 30 days if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, DefaultRefreshTTL)
}

// ResetTokenTTL returns the password-reset token lifetime, 1h by default.
func (c *Config) ResetTokenTTL() time.Duration {
	return parseDuration(c.ResetTokenTTLRaw, DefaultResetTokenTTL)
}

// EmailVerificationTTL returns the email verification token lifetime, 24h by default.
func (c *Config) EmailVerificationTTL() time.Duration {
	return parseDuration(c.EmailVerificationTTLRaw, DefaultEmailVerificationTTL)
}

// PhoneCodeTTL returns the phone code lifetime, 10m by default.
func (c *Config) PhoneCodeTTL() time.Duration {
	return parseDuration(c.PhoneCodeTTLRaw, DefaultPhoneCodeTTL)
}

// RateLimitWindow returns the throttling window, 1m by default.
func (c *Config) RateLimitWindow() time.Duration {
	return parseDuration(c.RateLimitWindowRaw, time.Minute)
}

// RateLimitBlock returns the block duration after the limit is exceeded, 5m by default.
func (c *Config) RateLimitBlock() time.Duration {
	return parseDuration(c.RateLimitBlockRaw, 5*time.Minute)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means Kafka is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
