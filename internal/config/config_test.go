package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/goPhoneAuth/phone"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.AccountStore != StoreMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OTPMaxAge != 10*time.Minute || cfg.VerifyWindow != 15*time.Minute || cfg.JWTTTL != 15*time.Minute {
		t.Fatalf("unexpected duration defaults %+v", cfg)
	}

	engine := cfg.EngineConfig()
	if err := engine.Validate(); err != nil {
		t.Fatalf("default engine config invalid: %v", err)
	}
	if !engine.Login.AmbiguousErrorMessages || engine.OTP.RedisPrefix != "apo" {
		t.Fatalf("unexpected engine config %+v", engine)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "ACCOUNT_STORE=postgres\nPOSTGRES_DSN=postgres://file\nPHONE_FORMAT=e164\nOTP_DIGITS=8\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("POSTGRES_DSN", "postgres://env")
	t.Setenv("PHONE_DEFAULT_REGION", "gb")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AccountStore != StorePostgres || cfg.PostgresDSN != "postgres://env" {
		t.Fatalf("expected env to win over file, got %+v", cfg)
	}

	engine := cfg.EngineConfig()
	if engine.Phone.Format != phone.FormatE164 || engine.OTP.Digits != 8 {
		t.Fatalf("unexpected engine config %+v", engine)
	}
	if err := engine.Validate(); err != nil {
		t.Fatalf("engine config invalid: %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":        {"ACCOUNT_STORE": "sqlite"},
		"mongo without uri":    {"ACCOUNT_STORE": "mongo"},
		"bad phone format":     {"PHONE_FORMAT": "national"},
		"dev otp in prod":      {"APP_ENV": "production", "OTP_RETURN_TO_CLIENT": "true"},
		"no verify attempts":   {"VERIFY_MAX_ATTEMPTS": "0"},
		"non-positive jwt ttl": {"JWT_TTL": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(missingEnvFile(t)); err == nil {
				t.Fatal("expected Load to fail")
			}
		})
	}
}

func TestRedisAddrs(t *testing.T) {
	cfg := &Config{RedisAddr: " a:6379, ,b:6379"}
	got := cfg.RedisAddrs()
	if len(got) != 2 || got[0] != "a:6379" || got[1] != "b:6379" {
		t.Fatalf("unexpected addrs %v", got)
	}
}
