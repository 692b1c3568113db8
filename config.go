package goPhoneAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goPhoneAuth/internal"
	"github.com/MrEthical07/goPhoneAuth/internal/stores"
	"github.com/MrEthical07/goPhoneAuth/phone"
)

// DefaultLoginPurpose is the OTP purpose used by phone login.
const DefaultLoginPurpose = "__login__"

// MaxOTPLength is the longest code SetPhoneOTP accepts.
const MaxOTPLength = stores.MaxCodeLength

// DefaultAmbiguousMessage replaces failure messages when
// LoginConfig.AmbiguousErrorMessages is set.
const DefaultAmbiguousMessage = "Login failure. Please check your login credentials."

// Config defines the engine configuration. Obtain a populated value from
// [DefaultConfig], adjust it, and pass it to [Builder.WithConfig].
type Config struct {
	Phone   PhoneConfig
	OTP     OTPConfig
	Login   LoginConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
PHONE CONFIG
====================================
*/

// PhoneConfig controls phone normalization.
type PhoneConfig struct {
	// DefaultRegion is an ISO 3166-1 alpha-2 code assumed for numbers
	// without a leading '+'. Empty rejects such numbers.
	DefaultRegion      string
	RequireValidNumber bool
	Format             phone.Format
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls OTP storage and generation.
type OTPConfig struct {
	LoginPurpose string
	RedisPrefix  string
	// MaxAge bounds how long a code stays usable. Zero disables expiry.
	MaxAge time.Duration
	// Digits is the length of codes produced by IssuePhoneOTP.
	Digits int
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig controls how login failures are reported.
type LoginConfig struct {
	AmbiguousErrorMessages bool
	AmbiguousMessage       string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Phone: PhoneConfig{
			DefaultRegion:      "",
			RequireValidNumber: false,
			Format:             phone.FormatCleaned,
		},
		OTP: OTPConfig{
			LoginPurpose: DefaultLoginPurpose,
			RedisPrefix:  "apo",
			MaxAge:       0,
			Digits:       6,
		},
		Login: LoginConfig{
			AmbiguousErrorMessages: false,
			AmbiguousMessage:       DefaultAmbiguousMessage,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Phone.DefaultRegion = strings.ToUpper(strings.TrimSpace(cfg.Phone.DefaultRegion))
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	// Phone
	if r := strings.TrimSpace(c.Phone.DefaultRegion); r != "" && !isAlpha2(r) {
		return errors.New("Phone DefaultRegion must be an ISO 3166-1 alpha-2 code")
	}
	if c.Phone.Format != phone.FormatCleaned && c.Phone.Format != phone.FormatE164 {
		return errors.New("unsupported Phone Format")
	}

	// OTP
	if strings.TrimSpace(c.OTP.LoginPurpose) == "" {
		return errors.New("OTP LoginPurpose must not be empty")
	}
	if strings.TrimSpace(c.OTP.RedisPrefix) == "" {
		return errors.New("OTP RedisPrefix must not be empty")
	}
	if c.OTP.MaxAge < 0 {
		return errors.New("OTP MaxAge must be >= 0")
	}
	if c.OTP.MaxAge > 0 && c.OTP.MaxAge < time.Second {
		return errors.New("OTP MaxAge must be at least 1s when set")
	}
	if c.OTP.Digits < internal.MinOTPDigits || c.OTP.Digits > internal.MaxOTPDigits {
		return errors.New("OTP Digits must be between 4 and 10")
	}

	// Login
	if c.Login.AmbiguousErrorMessages && strings.TrimSpace(c.Login.AmbiguousMessage) == "" {
		return errors.New("Login AmbiguousMessage must not be empty when AmbiguousErrorMessages is true")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func isAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
