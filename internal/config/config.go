// Package config loads settings for the phoneauth binaries from the
// environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/MrEthical07/goPhoneAuth/phone"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config holds binary configuration. Engine settings are translated by
// EngineConfig.
type Config struct {
	// HTTPAddr is the listen address of phoneauth-server.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the deployment environment; "production" forbids DevReturnOTP.
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// RedisAddr is a comma-separated list; empty starts an embedded miniredis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// AccountStore is one of memory, mongo or postgres.
	AccountStore    string `mapstructure:"ACCOUNT_STORE"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDatabase   string `mapstructure:"MONGO_DATABASE"`
	MongoCollection string `mapstructure:"MONGO_COLLECTION"`
	PostgresDSN     string `mapstructure:"POSTGRES_DSN"`

	DefaultRegion      string `mapstructure:"PHONE_DEFAULT_REGION"`
	RequireValidNumber bool   `mapstructure:"PHONE_REQUIRE_VALID"`
	// PhoneFormat is "cleaned" or "e164".
	PhoneFormat string `mapstructure:"PHONE_FORMAT"`

	OTPPrefix string        `mapstructure:"OTP_REDIS_PREFIX"`
	OTPMaxAge time.Duration `mapstructure:"OTP_MAX_AGE"`
	OTPDigits int           `mapstructure:"OTP_DIGITS"`
	// DevReturnOTP echoes issued codes in the /otp response instead of
	// expecting an SMS gateway.
	DevReturnOTP bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	AmbiguousErrors   bool `mapstructure:"LOGIN_AMBIGUOUS_ERRORS"`
	MetricsEnabled    bool `mapstructure:"METRICS_ENABLED"`
	LatencyHistograms bool `mapstructure:"METRICS_LATENCY"`
	AuditEnabled      bool `mapstructure:"AUDIT_ENABLED"`

	MaxVerifyAttempts int           `mapstructure:"VERIFY_MAX_ATTEMPTS"`
	VerifyWindow      time.Duration `mapstructure:"VERIFY_WINDOW"`

	// JWTSecret signs HS256 session tokens; at least 32 bytes.
	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	JWTIssuer   string        `mapstructure:"JWT_ISSUER"`
	JWTAudience string        `mapstructure:"JWT_AUDIENCE"`
	JWTTTL      time.Duration `mapstructure:"JWT_TTL"`
}

// Load reads envFile when it exists, then the environment, which wins.
// An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing file is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("ACCOUNT_STORE", StoreMemory)
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "phoneauth")
	v.SetDefault("MONGO_COLLECTION", "users")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("PHONE_DEFAULT_REGION", "")
	v.SetDefault("PHONE_REQUIRE_VALID", false)
	v.SetDefault("PHONE_FORMAT", "cleaned")
	v.SetDefault("OTP_REDIS_PREFIX", "apo")
	v.SetDefault("OTP_MAX_AGE", "10m")
	v.SetDefault("OTP_DIGITS", 6)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("LOGIN_AMBIGUOUS_ERRORS", true)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_LATENCY", true)
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("VERIFY_MAX_ATTEMPTS", 5)
	v.SetDefault("VERIFY_WINDOW", "15m")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "phoneauth")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("JWT_TTL", "15m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.DevReturnOTP && c.Env == "production" {
		return errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	switch c.AccountStore {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for ACCOUNT_STORE=mongo")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN is required for ACCOUNT_STORE=postgres")
		}
	default:
		return fmt.Errorf("config: unknown ACCOUNT_STORE %q", c.AccountStore)
	}

	if _, err := c.phoneFormat(); err != nil {
		return err
	}
	if c.MaxVerifyAttempts < 1 {
		return errors.New("config: VERIFY_MAX_ATTEMPTS must be >= 1")
	}
	if c.VerifyWindow <= 0 {
		return errors.New("config: VERIFY_WINDOW must be positive")
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	return nil
}

func (c *Config) phoneFormat() (phone.Format, error) {
	switch strings.ToLower(c.PhoneFormat) {
	case "", "cleaned":
		return phone.FormatCleaned, nil
	case "e164":
		return phone.FormatE164, nil
	default:
		return 0, fmt.Errorf("config: unknown PHONE_FORMAT %q", c.PhoneFormat)
	}
}

// RedisAddrs splits RedisAddr on commas.
func (c *Config) RedisAddrs() []string {
	if c == nil || c.RedisAddr == "" {
		return nil
	}
	parts := strings.Split(c.RedisAddr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EngineConfig maps the loaded settings onto goPhoneAuth.Config.
func (c *Config) EngineConfig() goPhoneAuth.Config {
	cfg := goPhoneAuth.DefaultConfig()

	cfg.Phone.DefaultRegion = c.DefaultRegion
	cfg.Phone.RequireValidNumber = c.RequireValidNumber
	cfg.Phone.Format, _ = c.phoneFormat()

	cfg.OTP.RedisPrefix = c.OTPPrefix
	cfg.OTP.MaxAge = c.OTPMaxAge
	cfg.OTP.Digits = c.OTPDigits

	cfg.Login.AmbiguousErrorMessages = c.AmbiguousErrors
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.LatencyHistograms
	cfg.Audit.Enabled = c.AuditEnabled
	return cfg
}
